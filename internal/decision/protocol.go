package decision

import (
	"context"
	"fmt"
	"time"

	"tradeduel/internal/logger"
)

// CallRecorder observes model calls (latency, failures).
type CallRecorder interface {
	ObserveModelCall(agent, model string, dur time.Duration, err error)
}

// Protocol runs PREPARING_CONTEXT → AWAITING_MODEL → PARSED | FALLBACK for
// one agent step. It never mutates a portfolio and never returns an error.
type Protocol struct {
	client   ModelClient
	timeout  time.Duration
	recorder CallRecorder
}

type Option func(*Protocol)

// WithTimeout bounds a single model call; zero keeps the caller's deadline.
func WithTimeout(d time.Duration) Option {
	return func(p *Protocol) { p.timeout = d }
}

func WithRecorder(r CallRecorder) Option {
	return func(p *Protocol) { p.recorder = r }
}

// NewProtocol builds a protocol; a nil client means every step falls back.
func NewProtocol(client ModelClient, opts ...Option) *Protocol {
	p := &Protocol{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *Protocol) Decide(ctx context.Context, req Request) Outcome {
	state := StatePreparingContext
	price := req.Candle.Close
	fallback := func(reason string) Outcome {
		logger.Debugf("decision[%s]: %s -> %s (%s)", req.Agent, state, StateFallback, reason)
		d := Fallback(price, req.Candle.SMA20, req.Portfolio.Cash, req.Portfolio.Shares)
		return Outcome{Decision: d, Source: SourceFallback, State: StateFallback, Reason: reason}
	}

	if p == nil || p.client == nil {
		return fallback("no model client configured")
	}
	prompt, err := BuildPrompt(req)
	if err != nil {
		return fallback(err.Error())
	}

	state = StateAwaitingModel
	callCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	logger.LogLLMRequest(req.Agent, req.Model, prompt.System, prompt.User, "")
	start := time.Now()
	raw, err := p.client.Decide(callCtx, prompt, req.Model)
	if p.recorder != nil {
		p.recorder.ObserveModelCall(req.Agent, req.Model, time.Since(start), err)
	}
	if err != nil {
		logger.Warnf("decision[%s]: model %s failed: %v", req.Agent, req.Model, err)
		return fallback(fmt.Sprintf("model call failed: %v", err))
	}
	logger.LogLLMResponse(req.Agent, req.Model, raw)

	d, err := ParseResponse(raw, price)
	if err != nil {
		logger.Warnf("decision[%s]: unusable model output: %v", req.Agent, err)
		out := fallback(fmt.Sprintf("unusable model output: %v", err))
		out.Raw = raw
		return out
	}
	logger.Debugf("decision[%s]: %s -> %s", req.Agent, state, StateParsed)
	return Outcome{Decision: d, Source: SourceModel, State: StateParsed, Raw: raw}
}
