package market

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// FileSource replays a previously exported candle array (the tsla.json shape).
// Indicator fields in the file are ignored; they are rebuilt from OHLCV.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: strings.TrimSpace(path)}
}

func (s *FileSource) Name() string { return "file" }

func (s *FileSource) Fetch(ctx context.Context) ([]RawCandle, error) {
	if s.path == "" {
		return nil, fmt.Errorf("file source: path is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("file source: %w", err)
	}
	var rows []RawCandle
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("file source: decode %s: %w", s.path, err)
	}
	return rows, nil
}
