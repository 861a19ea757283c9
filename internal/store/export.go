package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"tradeduel/internal/market"
)

// WriteJSON 把蜡烛序列写成两空格缩进的 JSON 数组，与 market.FileSource 对应。
func WriteJSON(path string, series []market.Candle) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if series == nil {
		series = []market.Candle{}
	}
	data, err := json.MarshalIndent(series, "", "  ")
	if err != nil {
		return fmt.Errorf("encode candles: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
