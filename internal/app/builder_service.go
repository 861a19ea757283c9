package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"tradeduel/internal/config"
	"tradeduel/internal/logger"
	duelhttp "tradeduel/internal/transport/http/duel"

	"gopkg.in/natefinch/lumberjack.v2"
)

func buildHTTPServer(cfg config.AppConfig, a *App) (*duelhttp.Server, error) {
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return nil, nil
	}
	server, err := duelhttp.NewServer(duelhttp.ServerConfig{
		Addr:      cfg.HTTPAddr,
		Simulator: a.driver,
		Decider:   a.protocol,
		Metrics:   a.metrics.Handler(),
		Chart:     a,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 HTTP 失败: %w", err)
	}
	logger.Infof("✓ HTTP 接口监听 %s", server.Addr())
	return server, nil
}

// setupLogging 打开主日志与 LLM 对话日志的滚动文件。
func setupLogging(cfg config.AppConfig) ([]io.Closer, error) {
	var closers []io.Closer
	closer, err := logger.SetFileOutput(logger.FileOptions{
		Path:       cfg.LogPath,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	if err != nil {
		return nil, err
	}
	if closer != nil {
		closers = append(closers, closer)
	}
	if path := strings.TrimSpace(cfg.LLMLog); path != "" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return closers, fmt.Errorf("create llm log dir: %w", err)
			}
		}
		llm := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
		}
		logger.SetLLMWriter(llm)
		logger.EnableLLMPayloadDump(cfg.LLMDump)
		closers = append(closers, llmCloser{llm})
		logger.Infof("✓ LLM 对话日志写入 %s", path)
	}
	return closers, nil
}

type llmCloser struct{ w *lumberjack.Logger }

func (c llmCloser) Close() error {
	logger.SetLLMWriter(nil)
	return c.w.Close()
}
