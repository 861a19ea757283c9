package simulation

import (
	"context"
	"sync"
	"testing"
	"time"

	"tradeduel/internal/decision"
	"tradeduel/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedDecider struct {
	mu    sync.Mutex
	calls []decision.Request
	next  func(req decision.Request) decision.Decision
}

func (s *scriptedDecider) Decide(ctx context.Context, req decision.Request) decision.Outcome {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	d := decision.Decision{Action: decision.ActionHold, Price: req.Candle.Close, Message: "wait"}
	if s.next != nil {
		d = s.next(req)
	}
	return decision.Outcome{Decision: d, Source: decision.SourceModel, State: decision.StateParsed}
}

type panicDecider struct{}

func (panicDecider) Decide(context.Context, decision.Request) decision.Outcome {
	panic("boom")
}

type blockingDecider struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingDecider) Decide(ctx context.Context, req decision.Request) decision.Outcome {
	select {
	case b.entered <- struct{}{}:
	default:
	}
	<-b.release
	return decision.Outcome{Decision: decision.Decision{Action: decision.ActionBuy, Amount: 1, Price: req.Candle.Close, Message: "in"}}
}

// blockingPanicDecider parks until released, then panics.
type blockingPanicDecider struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingPanicDecider) Decide(context.Context, decision.Request) decision.Outcome {
	select {
	case b.entered <- struct{}{}:
	default:
	}
	<-b.release
	panic("boom")
}

type recordingObserver struct {
	steps    []StepEvent
	finishes []Results
	resets   []string
}

func (r *recordingObserver) OnStep(ev StepEvent)  { r.steps = append(r.steps, ev) }
func (r *recordingObserver) OnFinish(res Results) { r.finishes = append(r.finishes, res) }
func (r *recordingObserver) OnReset(runID string) { r.resets = append(r.resets, runID) }

func candles(closes ...float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{Timestamp: int64(i+1) * 86_400_000, Open: c, High: c, Low: c, Close: c, SMA20: c}
	}
	return out
}

func newDriver(t *testing.T, series []market.Candle, dec Decider, opts ...DriverOption) *Driver {
	t.Helper()
	d, err := NewDriver(Config{}, series, dec, opts...)
	require.NoError(t, err)
	return d
}

func TestNewDriver_Validation(t *testing.T) {
	_, err := NewDriver(Config{}, nil, &scriptedDecider{})
	assert.Error(t, err)
	_, err = NewDriver(Config{}, candles(1), nil)
	assert.Error(t, err)
	_, err = NewDriver(Config{Agents: []AgentSpec{{ID: "a"}, {ID: "a"}}}, candles(1), &scriptedDecider{})
	assert.Error(t, err)
	_, err = NewDriver(Config{Agents: []AgentSpec{{ID: SystemAgent}}}, candles(1), &scriptedDecider{})
	assert.Error(t, err)
}

func TestTick_DecidesOnNextCandleInAgentOrder(t *testing.T) {
	dec := &scriptedDecider{}
	obs := &recordingObserver{}
	d := newDriver(t, candles(100, 101, 102), dec, WithObserver(obs))

	more, err := d.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, more)

	require.Len(t, dec.calls, 2)
	assert.Equal(t, "modelA", dec.calls[0].Agent)
	assert.Equal(t, "modelB", dec.calls[1].Agent)
	assert.Equal(t, 101.0, dec.calls[0].Candle.Close)
	require.Len(t, dec.calls[0].Previous, 1)
	assert.Equal(t, 100.0, dec.calls[0].Previous[0].Close)

	st := d.Snapshot()
	assert.Equal(t, 1, st.Index)
	require.Len(t, st.Messages, 2)
	assert.Equal(t, "modelA", st.Messages[0].Agent)
	assert.Len(t, obs.steps, 2)
}

func TestTick_ExecutesAtCloseAndCarriesPastDecisions(t *testing.T) {
	dec := &scriptedDecider{next: func(req decision.Request) decision.Decision {
		return decision.Decision{Action: decision.ActionBuy, Amount: 10, Price: 1, Message: "go"}
	}}
	d := newDriver(t, candles(100, 200, 300, 400), dec)
	for i := 0; i < 2; i++ {
		_, err := d.Tick(context.Background())
		require.NoError(t, err)
	}
	st := d.Snapshot()
	a := st.Agents[0]
	assert.Equal(t, 20, a.Portfolio.Shares)
	assert.InDelta(t, 10000-10*200-10*300, a.Portfolio.Cash, 1e-9)
	assert.Equal(t, 300.0, a.Portfolio.LastPrice)
	require.Len(t, a.Portfolio.History, 2)
	assert.Equal(t, 2, a.Decisions)

	last := dec.calls[len(dec.calls)-1]
	assert.Len(t, last.Past, 1)
	assert.Equal(t, 20, st.Agents[1].Portfolio.Shares)
}

func TestTick_FinalResultsOnce(t *testing.T) {
	dec := &scriptedDecider{next: func(req decision.Request) decision.Decision {
		if req.Agent == "modelA" {
			return decision.Decision{Action: decision.ActionBuy, Amount: 10, Price: req.Candle.Close, Message: "buy"}
		}
		return decision.Decision{Action: decision.ActionHold, Price: req.Candle.Close, Message: "hold"}
	}}
	obs := &recordingObserver{}
	d := newDriver(t, candles(100, 100, 150), dec, WithObserver(obs))

	more, err := d.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, more)
	more, err = d.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, more)

	more, err = d.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, more)

	require.Len(t, obs.finishes, 1)
	res := obs.finishes[0]
	assert.Equal(t, "Claude", res.Winner.Name)
	assert.InDelta(t, 10000-1000-1500+20*150, res.Winner.Value, 1e-9)

	st := d.Snapshot()
	assert.True(t, st.Finished)
	assert.False(t, st.Running)
	final := st.Messages[len(st.Messages)-1]
	assert.Equal(t, SystemAgent, final.Agent)
	assert.Equal(t, decision.ActionHold, final.Action)
	assert.Equal(t, 150.0, final.Price)
	assert.Contains(t, final.Message, "Claude wins with $10500.00")
}

func TestFinalResults_TieGoesToLaterAgent(t *testing.T) {
	d := newDriver(t, candles(100, 101), &scriptedDecider{})
	res := d.FinalResults()
	assert.Equal(t, "GPT-4", res.Winner.Name)
	assert.Equal(t, 10000.0, res.Winner.Value)
}

func TestTick_PanicPausesWithoutCommitting(t *testing.T) {
	d := newDriver(t, candles(100, 101, 102), panicDecider{})
	d.Play()
	more, err := d.Tick(context.Background())
	require.Error(t, err)
	assert.True(t, more)

	st := d.Snapshot()
	assert.False(t, st.Running)
	assert.Equal(t, 0, st.Index)
	assert.Empty(t, st.Messages)
	assert.Empty(t, st.Agents[0].Portfolio.History)
}

func TestReset_RestoresInitialState(t *testing.T) {
	dec := &scriptedDecider{next: func(req decision.Request) decision.Decision {
		return decision.Decision{Action: decision.ActionBuy, Amount: 3, Price: req.Candle.Close, Message: "x"}
	}}
	obs := &recordingObserver{}
	d := newDriver(t, candles(100, 101, 102), dec, WithObserver(obs))
	before := d.Snapshot().RunID
	_, err := d.Tick(context.Background())
	require.NoError(t, err)
	d.Play()

	d.Reset()
	st := d.Snapshot()
	assert.NotEqual(t, before, st.RunID)
	assert.Equal(t, 0, st.Index)
	assert.False(t, st.Running)
	assert.Empty(t, st.Messages)
	for _, a := range st.Agents {
		assert.Equal(t, 10000.0, a.Portfolio.Cash)
		assert.Zero(t, a.Portfolio.Shares)
		assert.Empty(t, a.Portfolio.History)
		assert.Zero(t, a.Portfolio.LastPrice)
		assert.Zero(t, a.Decisions)
	}
	assert.Equal(t, []string{st.RunID}, obs.resets)
}

func TestReset_DuringTickAppliesAtBoundary(t *testing.T) {
	dec := &blockingDecider{entered: make(chan struct{}, 1), release: make(chan struct{})}
	d := newDriver(t, candles(100, 101, 102), dec)

	done := make(chan error, 1)
	go func() {
		_, err := d.Tick(context.Background())
		done <- err
	}()
	<-dec.entered
	d.Reset()
	close(dec.release)
	require.NoError(t, <-done)

	st := d.Snapshot()
	assert.Equal(t, 0, st.Index)
	assert.Empty(t, st.Messages)
	assert.Zero(t, st.Agents[0].Portfolio.Shares)
	assert.Equal(t, 10000.0, st.Agents[1].Portfolio.Cash)
}

func TestPause_DuringTickCompletesTick(t *testing.T) {
	dec := &blockingDecider{entered: make(chan struct{}, 1), release: make(chan struct{})}
	d := newDriver(t, candles(100, 101, 102), dec)
	d.Play()

	done := make(chan error, 1)
	go func() {
		_, err := d.Tick(context.Background())
		done <- err
	}()
	<-dec.entered
	d.Pause()
	close(dec.release)
	require.NoError(t, <-done)

	st := d.Snapshot()
	assert.Equal(t, 1, st.Index)
	assert.False(t, st.Running)
	require.Len(t, st.Messages, 2)
	for _, ag := range st.Agents {
		assert.Equal(t, 1, ag.Portfolio.Shares)
		assert.InDelta(t, 10000-101.0, ag.Portfolio.Cash, 1e-9)
	}
}

func TestReset_PendingWhenTickPanics(t *testing.T) {
	dec := &blockingPanicDecider{entered: make(chan struct{}, 1), release: make(chan struct{})}
	obs := &recordingObserver{}
	d := newDriver(t, candles(100, 101, 102), dec, WithObserver(obs))
	before := d.Snapshot().RunID

	done := make(chan error, 1)
	go func() {
		_, err := d.Tick(context.Background())
		done <- err
	}()
	<-dec.entered
	d.Reset()
	close(dec.release)
	require.Error(t, <-done)

	st := d.Snapshot()
	assert.Equal(t, 0, st.Index)
	assert.NotEqual(t, before, st.RunID)
	require.Len(t, obs.resets, 1)
	assert.Equal(t, st.RunID, obs.resets[0])
	assert.Empty(t, obs.steps)
}

func TestControls(t *testing.T) {
	d := newDriver(t, candles(100, 101), &scriptedDecider{})
	assert.False(t, d.Running())
	assert.True(t, d.Toggle())
	assert.False(t, d.Toggle())

	require.NoError(t, d.SetSpeed(5*time.Second))
	assert.Equal(t, 5*time.Second, d.Interval())
	assert.Error(t, d.SetSpeed(time.Millisecond))
	assert.Equal(t, int64(5000), d.Snapshot().IntervalMS)
}

func TestRun_PlaysToTheEnd(t *testing.T) {
	d, err := NewDriver(Config{Interval: MinInterval}, candles(100, 101, 102), &scriptedDecider{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	d.Play()
	require.Eventually(t, func() bool { return d.Snapshot().Finished }, 5*time.Second, 20*time.Millisecond)
	st := d.Snapshot()
	assert.Equal(t, 2, st.Index)
	assert.False(t, st.Running)
	assert.Len(t, st.Messages, 5)
}

func TestMessagesSince(t *testing.T) {
	d := newDriver(t, candles(100, 101, 102), &scriptedDecider{})
	_, err := d.Tick(context.Background())
	require.NoError(t, err)
	assert.Len(t, d.Messages(0), 2)
	assert.Len(t, d.Messages(1), 1)
	assert.Empty(t, d.Messages(9))
	assert.Len(t, d.Candles(), 2)
}
