package decision

import (
	"fmt"
	"strings"
	"text/template"
)

// SystemPrompt 是激进交易员人设。
const SystemPrompt = "You are an AGGRESSIVE trading AI with a high-risk, high-reward strategy. " +
	"You actively seek trading opportunities and make bold moves. " +
	"You prefer action over caution. Always respond with valid JSON only."

const userTemplate = `You are an AGGRESSIVE day trader competing against another AI to maximize profits over a simulated trading period.

Current Candle ({{ .Candle.TimeString }}):
- Open: ${{ money .Candle.Open }}
- High: ${{ money .Candle.High }}
- Low: ${{ money .Candle.Low }}
- Close: ${{ money .Candle.Close }}
- Volume: {{ .Candle.Volume }}
- SMA20: ${{ money .Candle.SMA20 }}
- SMA50: ${{ money .Candle.SMA50 }}
- RSI: {{ money .Candle.RSI }}
{{ if .Previous }}
Previous {{ len .Previous }} Candles:
{{- range $i, $c := .Previous }}
{{ inc $i }}. Close: ${{ money $c.Close }}, Volume: {{ $c.Volume }}, SMA20: ${{ money $c.SMA20 }}, SMA50: ${{ money $c.SMA50 }}
{{- end }}
{{ end }}
Your Portfolio:
- Cash: ${{ money .Portfolio.Cash }}
- Shares: {{ .Portfolio.Shares }}
- Current Value: ${{ money .Portfolio.Value }}
{{ if .Past }}
Your Last {{ len .Past }} Decisions:
{{- range $i, $d := .Past }}
{{ inc $i }}. {{ upper $d.Action }} {{ $d.Amount }} shares @ ${{ money $d.Price }} - "{{ $d.Message }}"
{{- end }}
{{ end }}
Trading Strategy:
- You are AGGRESSIVE: act on any trend signal, idle cash is a lost opportunity.
- Price at or above SMA20 is bullish, below SMA20 is bearish; SMA50 gives the wider trend.
- Use your full buying power when the trend is up and exit quickly when it turns.

Rules:
- You can only buy if you have enough cash (amount x close <= cash).
- You can only sell shares you own.
- Maximum trade size: {{ .MaxTrade }} shares per decision.

Respond ONLY with valid JSON in this exact format:
{"action": "buy" | "sell" | "hold", "amount": <number 0-{{ .MaxTrade }}>, "message": "<short rationale>"}`

var userTmpl = template.Must(template.New("user").Funcs(template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"inc":   func(i int) int { return i + 1 },
	"upper": func(a Action) string { return strings.ToUpper(string(a)) },
}).Parse(userTemplate))

type promptData struct {
	Request
	MaxTrade int
}

// BuildPrompt renders the system and user prompt for one request.
func BuildPrompt(req Request) (Prompt, error) {
	var b strings.Builder
	if err := userTmpl.Execute(&b, promptData{Request: req, MaxTrade: MaxTradeSize}); err != nil {
		return Prompt{}, fmt.Errorf("render prompt: %w", err)
	}
	return Prompt{System: SystemPrompt, User: b.String()}, nil
}
