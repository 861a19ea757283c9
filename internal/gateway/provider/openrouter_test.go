package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tradeduel/internal/decision"
	"tradeduel/internal/pkg/circuit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, cfg Config) (*OpenRouterClient, *[]time.Duration) {
	t.Helper()
	cfg.BaseURL = url
	if cfg.APIKey == "" {
		cfg.APIKey = "sk-test-1234"
	}
	c := NewOpenRouterClient(cfg)
	var slept []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestDecide_SendsOpenRouterRequest(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test-1234", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultReferer, r.Header.Get("HTTP-Referer"))
		assert.Equal(t, DefaultTitle, r.Header.Get("X-Title"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, 200, `{"choices":[{"message":{"content":"{\"action\":\"hold\",\"message\":\"ok\"}"}}]}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL+"/chat/completions", Config{})
	out, err := c.Decide(context.Background(), decision.Prompt{System: "sys", User: "usr"}, "openai/gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, `{"action":"hold","message":"ok"}`, out)

	assert.Equal(t, "openai/gpt-4o", got.Model)
	assert.Equal(t, 0.7, got.Temperature)
	assert.Equal(t, 500, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "usr", got.Messages[1].Content)
}

func TestDecide_NoCredential(t *testing.T) {
	c := NewOpenRouterClient(Config{})
	_, err := c.Decide(context.Background(), decision.Prompt{User: "x"}, "m")
	assert.True(t, errors.Is(err, ErrNoCredential))
}

func TestDecide_RetriesWithRetryAfterThenBackoff(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch hits.Add(1) {
		case 1:
			w.Header().Set("Retry-After", "3")
			writeJSON(w, 429, `{"error":{"message":"slow down"}}`)
		case 2:
			writeJSON(w, 503, `{}`)
		default:
			writeJSON(w, 200, `{"choices":[{"message":{"content":"done"}}]}`)
		}
	}))
	defer srv.Close()

	c, slept := newTestClient(t, srv.URL, Config{MaxRetries: 2})
	out, err := c.Decide(context.Background(), decision.Prompt{User: "x"}, "m")
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, []time.Duration{3 * time.Second, 1600 * time.Millisecond}, *slept)
}

func TestDecide_NonRetryableStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, 401, `{"error":{"message":"bad key"}}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, Config{MaxRetries: 3})
	_, err := c.Decide(context.Background(), decision.Prompt{User: "x"}, "m")
	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 401, serr.Status)
	assert.Equal(t, "bad key", serr.Message)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDecide_PlainBodyIsTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
		_, _ = w.Write([]byte(strings.Repeat("x", 500)))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, Config{})
	_, err := c.Decide(context.Background(), decision.Prompt{User: "x"}, "m")
	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, strings.Repeat("x", maxErrorMessage)+"...", serr.Message)
}

func TestDecide_BreakerOpensAfterFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 500, `{}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, Config{BreakerThreshold: 2, BreakerCooldown: time.Hour})
	for i := 0; i < 2; i++ {
		_, err := c.Decide(context.Background(), decision.Prompt{User: "x"}, "m")
		require.Error(t, err)
	}
	assert.Equal(t, circuit.StateOpen, c.Breaker().State())
	_, err := c.Decide(context.Background(), decision.Prompt{User: "x"}, "m")
	assert.True(t, errors.Is(err, ErrCircuitOpen))
}

func TestDecide_CancelledCallFreesHalfOpenSlot(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			writeJSON(w, 400, `{"error":{"message":"bad"}}`)
			return
		}
		writeJSON(w, 200, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c, _ := newTestClient(t, srv.URL, Config{BreakerThreshold: 1, BreakerCooldown: time.Minute})
	c.Breaker().SetClock(func() time.Time { return now })
	_, err := c.Decide(context.Background(), decision.Prompt{User: "x"}, "m")
	require.Error(t, err)
	require.Equal(t, circuit.StateOpen, c.Breaker().State())

	now = now.Add(time.Minute)
	fail.Store(false)
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Decide(cancelled, decision.Prompt{User: "x"}, "m")
	require.Error(t, err)
	assert.Equal(t, circuit.StateHalfOpen, c.Breaker().State())

	out, err := c.Decide(context.Background(), decision.Prompt{User: "x"}, "m")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, circuit.StateClosed, c.Breaker().State())
}

func TestDecide_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"choices":[]}`)
	}))
	defer srv.Close()
	c, _ := newTestClient(t, srv.URL, Config{})
	_, err := c.Decide(context.Background(), decision.Prompt{User: "x"}, "m")
	assert.Error(t, err)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 800*time.Millisecond, backoff(0))
	assert.Equal(t, 3200*time.Millisecond, backoff(2))
	assert.Equal(t, 8*time.Second, backoff(5))
	assert.Equal(t, time.Duration(0), retryAfter("soon"))
}
