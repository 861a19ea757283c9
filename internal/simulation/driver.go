package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tradeduel/internal/decision"
	"tradeduel/internal/logger"
	"tradeduel/internal/market"
	"tradeduel/internal/portfolio"

	"github.com/google/uuid"
)

// Decider 是驱动器唯一依赖的决策能力，decision.Protocol 满足它。
type Decider interface {
	Decide(ctx context.Context, req decision.Request) decision.Outcome
}

// AgentState is the mutable per-agent part of a run.
type AgentState struct {
	AgentSpec
	Portfolio *portfolio.Portfolio `json:"portfolio"`
	Decisions []decision.Decision  `json:"decisions"`
}

func (a *AgentState) clone() *AgentState {
	out := &AgentState{AgentSpec: a.AgentSpec, Portfolio: a.Portfolio.Clone()}
	out.Decisions = append([]decision.Decision(nil), a.Decisions...)
	return out
}

// Driver owns the tick clock. Ticks are serialized; controls coming from
// other goroutines are honored at tick boundaries.
type Driver struct {
	cfg      Config
	series   []market.Candle
	decider  Decider
	ledger   *portfolio.Ledger
	observer Observer
	now      func() time.Time

	tickMu sync.Mutex

	mu           sync.RWMutex
	runID        string
	index        int
	running      bool
	finished     bool
	ticking      bool
	pendingReset bool
	interval     time.Duration
	agents       []*AgentState
	messages     []Message
	results      *Results

	wake chan struct{}
}

type DriverOption func(*Driver)

func WithObserver(o Observer) DriverOption {
	return func(d *Driver) { d.observer = o }
}

func WithClock(now func() time.Time) DriverOption {
	return func(d *Driver) {
		if now != nil {
			d.now = now
		}
	}
}

func NewDriver(cfg Config, series []market.Candle, decider Decider, opts ...DriverOption) (*Driver, error) {
	if len(series) == 0 {
		return nil, errors.New("simulation: empty candle series")
	}
	if decider == nil {
		return nil, errors.New("simulation: decider 不能为空")
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("simulation config: %w", err)
	}
	d := &Driver{
		cfg:     cfg,
		series:  append([]market.Candle(nil), series...),
		decider: decider,
		ledger:  portfolio.NewLedger(cfg.MinPrice),
		now:     time.Now,
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	d.interval = cfg.Interval
	d.resetLocked()
	return d, nil
}

// resetLocked restores the initial state; callers hold mu (or own d exclusively).
func (d *Driver) resetLocked() {
	d.runID = uuid.NewString()
	d.index = 0
	d.running = false
	d.finished = false
	d.pendingReset = false
	d.results = nil
	d.messages = nil
	d.agents = make([]*AgentState, 0, len(d.cfg.Agents))
	for _, spec := range d.cfg.Agents {
		d.agents = append(d.agents, &AgentState{AgentSpec: spec, Portfolio: portfolio.New(d.cfg.InitialCash)})
	}
}

// Tick moves to the next candle and lets every agent decide on it, in
// order. It returns false once the series is exhausted; the step that
// reaches the last candle also publishes the final results.
func (d *Driver) Tick(ctx context.Context) (more bool, err error) {
	d.tickMu.Lock()
	defer d.tickMu.Unlock()

	d.mu.Lock()
	if d.index >= len(d.series)-1 {
		res, first := d.finishLocked()
		d.mu.Unlock()
		if first {
			d.publishFinish(res)
		}
		return false, nil
	}
	next := d.index + 1
	runID := d.runID
	work := make([]*AgentState, len(d.agents))
	for i, a := range d.agents {
		work[i] = a.clone()
	}
	d.ticking = true
	d.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick %d panicked: %v", next, r)
			logger.Errorf("simulation: %v, pausing", err)
			d.mu.Lock()
			d.ticking = false
			d.running = false
			reset := d.pendingReset
			if reset {
				d.resetLocked()
			}
			newID := d.runID
			d.mu.Unlock()
			if reset {
				d.publishReset(newID)
			}
			more = true
		}
	}()

	candle := d.series[next]
	now := d.now().UnixMilli()
	msgs := make([]Message, 0, len(work))
	events := make([]StepEvent, 0, len(work))
	for _, a := range work {
		req := decision.NewRequest(a.ID, a.Model, d.series, next, a.Portfolio.Cash, a.Portfolio.Shares, a.Decisions)
		out := d.decider.Decide(ctx, req)
		exec := out.Decision
		exec.Price = candle.Close
		fill := d.ledger.Apply(a.Portfolio, exec, candle.Timestamp)
		a.Decisions = append(a.Decisions, out.Decision)
		msgs = append(msgs, agentMessage(a.AgentSpec, next, now, out, fill))
		events = append(events, StepEvent{
			RunID:   runID,
			Index:   next,
			Candle:  candle,
			Agent:   a.AgentSpec,
			Outcome: out,
			Fill:    fill,
			Cash:    a.Portfolio.Cash,
			Shares:  a.Portfolio.Shares,
			Value:   a.Portfolio.Value(candle.Close),
		})
		logger.Debugf("simulation[%s] #%d %s %s %d/%d @ %.2f (%s)", runID[:8], next, a.ID, out.Action, fill.Executed, out.Amount, candle.Close, out.Source)
	}

	d.mu.Lock()
	d.ticking = false
	if d.pendingReset {
		d.resetLocked()
		newID := d.runID
		d.mu.Unlock()
		d.publishReset(newID)
		return true, nil
	}
	d.index = next
	d.agents = work
	d.messages = append(d.messages, msgs...)
	var (
		res   Results
		first bool
	)
	last := next >= len(d.series)-1
	if last {
		res, first = d.finishLocked()
	}
	d.mu.Unlock()

	if d.observer != nil {
		for _, ev := range events {
			d.observer.OnStep(ev)
		}
	}
	if first {
		d.publishFinish(res)
	}
	return !last, nil
}

// finishLocked stops the clock and, the first time, appends the
// final-results system message.
func (d *Driver) finishLocked() (Results, bool) {
	d.running = false
	if d.finished && d.results != nil {
		return *d.results, false
	}
	res := d.resultsLocked()
	d.finished = true
	d.results = &res
	d.messages = append(d.messages, finalMessage(res, d.index, d.now().UnixMilli()))
	return res, true
}

func (d *Driver) publishFinish(res Results) {
	logger.Infof("=== FINAL RESULTS ===")
	for _, s := range res.Standings {
		logger.Infof("%s: $%.2f", s.Name, s.Value)
	}
	logger.Infof("Winner: %s with $%.2f", res.Winner.Name, res.Winner.Value)
	if d.observer != nil {
		d.observer.OnFinish(res)
	}
}

func (d *Driver) publishReset(runID string) {
	logger.Infof("simulation reset, run %s", runID)
	if d.observer != nil {
		d.observer.OnReset(runID)
	}
}

func (d *Driver) resultsLocked() Results {
	final := d.series[len(d.series)-1].Close
	res := Results{RunID: d.runID, FinalPrice: final, Standings: make([]Standing, 0, len(d.agents))}
	for _, a := range d.agents {
		res.Standings = append(res.Standings, Standing{
			ID:     a.ID,
			Name:   a.Name,
			Cash:   a.Portfolio.Cash,
			Shares: a.Portfolio.Shares,
			Value:  a.Portfolio.Value(final),
		})
	}
	res.Winner = pickWinner(res.Standings)
	return res
}

// FinalResults values every agent at the last close of the series, whether
// or not the run has reached it.
func (d *Driver) FinalResults() Results {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.resultsLocked()
}

// Run drives ticks at the current interval while playing, until ctx ends.
func (d *Driver) Run(ctx context.Context) error {
	timer := time.NewTimer(d.Interval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(d.Interval())
		case <-timer.C:
			if d.Running() {
				if _, err := d.Tick(ctx); err != nil {
					logger.Errorf("simulation tick failed: %v", err)
				}
			}
			timer.Reset(d.Interval())
		}
	}
}

func (d *Driver) notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Play 开始计时；已经结束的比赛需要先 Reset。
func (d *Driver) Play() {
	d.mu.Lock()
	if !d.finished {
		d.running = true
	}
	d.mu.Unlock()
	d.notify()
}

func (d *Driver) Pause() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	d.notify()
}

// Toggle flips play/pause and reports the new running state.
func (d *Driver) Toggle() bool {
	d.mu.Lock()
	if d.running {
		d.running = false
	} else if !d.finished {
		d.running = true
	}
	running := d.running
	d.mu.Unlock()
	d.notify()
	return running
}

// SetSpeed changes the tick interval; the next tick is scheduled from now.
func (d *Driver) SetSpeed(interval time.Duration) error {
	if interval < MinInterval {
		return fmt.Errorf("interval %s below minimum %s", interval, MinInterval)
	}
	d.mu.Lock()
	d.interval = interval
	d.mu.Unlock()
	d.notify()
	return nil
}

// Reset restores every portfolio and pauses. A reset that arrives during a
// tick is applied when the tick ends and that tick's results are dropped.
func (d *Driver) Reset() {
	d.mu.Lock()
	if d.ticking {
		d.pendingReset = true
		d.running = false
		d.mu.Unlock()
		d.notify()
		return
	}
	d.resetLocked()
	runID := d.runID
	d.mu.Unlock()
	d.notify()
	d.publishReset(runID)
}

func (d *Driver) Interval() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.interval
}

func (d *Driver) Running() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// Series returns the candle series; callers must not modify it.
func (d *Driver) Series() []market.Candle { return d.series }

func (d *Driver) Agents() []AgentSpec {
	return append([]AgentSpec(nil), d.cfg.Agents...)
}
