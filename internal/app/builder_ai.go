package app

import (
	"time"

	"tradeduel/internal/config"
	"tradeduel/internal/decision"
	"tradeduel/internal/gateway/provider"
	"tradeduel/internal/logger"
	"tradeduel/internal/metrics"
)

// buildModelClient 构建 OpenRouter 客户端；没有 API key 时返回 nil，
// 所有决策直接走规则兜底。
func buildModelClient(cfg config.ModelConfig, m *metrics.Metrics) decision.ModelClient {
	client := provider.NewOpenRouterClient(provider.Config{
		BaseURL:          cfg.APIURL,
		APIKey:           cfg.APIKey,
		Referer:          cfg.Referer,
		Title:            cfg.Title,
		Temperature:      cfg.Temperature,
		MaxTokens:        cfg.MaxTokens,
		Timeout:          time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxRetries:       cfg.MaxRetries,
		RatePerSecond:    cfg.RatePerSecond,
		Burst:            cfg.Burst,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerCooldown:  time.Duration(cfg.BreakerCooldownSeconds) * time.Second,
	})
	if !client.HasCredential() {
		logger.Warnf("未配置 OpenRouter API key，所有 agent 使用规则兜底策略")
		return nil
	}
	if m != nil {
		client.Breaker().OnStateChange(m.ObserveBreaker)
	}
	logger.Infof("✓ 模型网关 %s", cfg.APIURL)
	return client
}

func buildProtocol(cfg config.ModelConfig, client decision.ModelClient, m *metrics.Metrics) *decision.Protocol {
	opts := []decision.Option{decision.WithTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)}
	if m != nil {
		opts = append(opts, decision.WithRecorder(m))
	}
	return decision.NewProtocol(client, opts...)
}
