package decision

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"tradeduel/internal/pkg/jsonutil"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

var (
	ErrNoJSON       = errors.New("no JSON object in model output")
	ErrInvalidJSON  = errors.New("model output is not valid JSON")
	ErrSchema       = errors.New("model output does not match the decision schema")
	ErrMissingField = errors.New("model output misses a required field")
)

const decisionSchema = `{
  "type": "object",
  "required": ["action", "message"],
  "properties": {
    "action":  {"type": "string"},
    "amount":  {"type": ["number", "string", "null"]},
    "price":   {"type": ["number", "string", "null"]},
    "message": {"type": "string"}
  }
}`

var (
	schemaOnce     sync.Once
	schemaCompiled *jsonschema.Schema
	schemaErr      error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("decision.json", strings.NewReader(decisionSchema)); err != nil {
			schemaErr = err
			return
		}
		schemaCompiled, schemaErr = compiler.Compile("decision.json")
	})
	return schemaCompiled, schemaErr
}

// ParseResponse turns raw model text into a normalized decision. price is the
// current close, used when the model leaves price out. Any error means the
// caller should fall back.
func ParseResponse(raw string, price float64) (Decision, error) {
	block, ok := jsonutil.ExtractObject(raw)
	if !ok {
		return Decision{}, ErrNoJSON
	}
	if !gjson.Valid(block) {
		return Decision{}, ErrInvalidJSON
	}
	parsed := gjson.Parse(block)
	for _, field := range []string{"action", "message"} {
		v := parsed.Get(field)
		if !v.Exists() || strings.TrimSpace(v.String()) == "" {
			return Decision{}, fmt.Errorf("%w: %s", ErrMissingField, field)
		}
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(block), &fields); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	schema, err := compiledSchema()
	if err != nil {
		return Decision{}, fmt.Errorf("compile decision schema: %w", err)
	}
	if err := schema.Validate(map[string]interface{}(fields)); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	d := Decision{
		Action:  NormalizeAction(coerceString(fields["action"])),
		Amount:  ClampAmount(coerceFloat64(fields["amount"])),
		Price:   price,
		Message: coerceString(fields["message"]),
	}
	if p := coerceFloat64(fields["price"]); p > 0 {
		d.Price = p
	}
	return d, nil
}

func coerceString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

func coerceFloat64(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		return x
	case json.Number:
		f, _ := x.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
