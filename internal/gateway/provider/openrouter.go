package provider

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tradeduel/internal/decision"
	"tradeduel/internal/logger"
	"tradeduel/internal/pkg/circuit"
	"tradeduel/internal/pkg/text"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL     = "https://openrouter.ai/api/v1"
	DefaultReferer     = "http://localhost:3000"
	DefaultTitle       = "AI Trading Simulation"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 500

	maxErrorMessage = 200
)

// Config 描述 OpenRouter 兼容的 chat-completions 端点。
type Config struct {
	BaseURL          string
	APIKey           string
	Referer          string
	Title            string
	Temperature      float64
	MaxTokens        int
	Timeout          time.Duration
	MaxRetries       int
	RatePerSecond    float64
	Burst            int
	BreakerThreshold int
	BreakerCooldown  time.Duration
	Headers          map[string]string
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/chat/completions")
	if c.Referer == "" {
		c.Referer = DefaultReferer
	}
	if c.Title == "" {
		c.Title = DefaultTitle
	}
	if c.Temperature <= 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	return c
}

// OpenRouterClient implements decision.ModelClient over HTTP.
type OpenRouterClient struct {
	cfg     Config
	http    *resty.Client
	limiter *rate.Limiter
	breaker *circuit.Breaker
	sleep   func(ctx context.Context, d time.Duration) error
}

var _ decision.ModelClient = (*OpenRouterClient)(nil)

func NewOpenRouterClient(cfg Config) *OpenRouterClient {
	cfg = cfg.withDefaults()
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	httpc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("HTTP-Referer", cfg.Referer).
		SetHeader("X-Title", cfg.Title)
	for k, v := range cfg.Headers {
		httpc.SetHeader(k, v)
	}
	return &OpenRouterClient{
		cfg:     cfg,
		http:    httpc,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		breaker: circuit.New("openrouter", cfg.BreakerThreshold, cfg.BreakerCooldown),
		sleep:   sleepCtx,
	}
}

// Breaker exposes the circuit breaker for state callbacks.
func (c *OpenRouterClient) Breaker() *circuit.Breaker { return c.breaker }

// HasCredential reports whether an API key is configured.
func (c *OpenRouterClient) HasCredential() bool {
	return c != nil && strings.TrimSpace(c.cfg.APIKey) != ""
}

// Decide sends one system+user exchange and returns the raw assistant text.
func (c *OpenRouterClient) Decide(ctx context.Context, prompt decision.Prompt, modelID string) (string, error) {
	if !c.HasCredential() {
		return "", ErrNoCredential
	}
	if !c.breaker.Allow() {
		return "", ErrCircuitOpen
	}
	out, err := c.call(ctx, prompt, modelID)
	switch {
	case err == nil:
		c.breaker.RecordSuccess()
	case ctx.Err() != nil:
		// 调用方取消不计入熔断
		c.breaker.Release()
	default:
		c.breaker.RecordFailure()
	}
	return out, err
}

func (c *OpenRouterClient) call(ctx context.Context, prompt decision.Prompt, modelID string) (string, error) {
	body := chatRequest{
		Model:       modelID,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	if prompt.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: prompt.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: prompt.User})
	logger.Debugf("[AI] POST %s/chat/completions model=%s key=%s", c.cfg.BaseURL, modelID, maskKey(c.cfg.APIKey))

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("provider: rate limit wait: %w", err)
		}
		resp, err := c.http.R().
			SetContext(ctx).
			SetAuthToken(c.cfg.APIKey).
			SetBody(body).
			Post("/chat/completions")
		if err != nil {
			return "", fmt.Errorf("provider: request: %w", err)
		}
		raw := resp.Body()
		if resp.IsSuccess() {
			content := gjson.GetBytes(raw, "choices.0.message.content")
			if !content.Exists() {
				return "", errors.New("provider: empty choices")
			}
			return content.String(), nil
		}

		msg := strings.TrimSpace(gjson.GetBytes(raw, "error.message").String())
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		if msg == "" {
			msg = resp.Status()
		}
		msg = text.Truncate(msg, maxErrorMessage)
		serr := &StatusError{Status: resp.StatusCode(), Message: msg}
		lastErr = serr
		if !serr.Retryable() || attempt == c.cfg.MaxRetries {
			break
		}
		wait := retryAfter(resp.Header().Get("Retry-After"))
		if wait == 0 {
			wait = backoff(attempt)
		}
		logger.Warnf("[AI] %s status=%d, retry %d/%d in %s", modelID, serr.Status, attempt+1, c.cfg.MaxRetries, wait)
		if err := c.sleep(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

// backoff 基本指数退避：0.8s, 1.6s, 3.2s ... 上限 8s。
func backoff(attempt int) time.Duration {
	wait := (800 * time.Millisecond) << attempt
	if wait > 8*time.Second || wait <= 0 {
		wait = 8 * time.Second
	}
	return wait
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
