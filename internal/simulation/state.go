package simulation

import (
	"tradeduel/internal/market"
	"tradeduel/internal/portfolio"
)

// AgentView 是对外展示的 agent 快照。
type AgentView struct {
	AgentSpec
	Portfolio portfolio.Portfolio `json:"portfolio"`
	Value     float64             `json:"value"`
	Decisions int                 `json:"decisions"`
}

// State is a read-only copy of the driver for the HTTP layer.
type State struct {
	RunID      string        `json:"runId"`
	Index      int           `json:"index"`
	Total      int           `json:"total"`
	Progress   float64       `json:"progress"`
	Running    bool          `json:"running"`
	Finished   bool          `json:"finished"`
	IntervalMS int64         `json:"intervalMs"`
	Candle     market.Candle `json:"currentCandle"`
	Agents     []AgentView   `json:"agents"`
	Messages   []Message     `json:"messages"`
	Results    *Results      `json:"results,omitempty"`
}

// Snapshot copies the current state; nothing in it aliases the driver.
func (d *Driver) Snapshot() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	candle := d.series[d.index]
	st := State{
		RunID:      d.runID,
		Index:      d.index,
		Total:      len(d.series),
		Progress:   float64(d.index+1) / float64(len(d.series)),
		Running:    d.running,
		Finished:   d.finished,
		IntervalMS: d.interval.Milliseconds(),
		Candle:     candle,
		Agents:     make([]AgentView, 0, len(d.agents)),
		Messages:   append([]Message(nil), d.messages...),
	}
	for _, a := range d.agents {
		st.Agents = append(st.Agents, AgentView{
			AgentSpec: a.AgentSpec,
			Portfolio: *a.Portfolio.Clone(),
			Value:     a.Portfolio.Value(candle.Close),
			Decisions: len(a.Decisions),
		})
	}
	if d.results != nil {
		res := *d.results
		res.Standings = append([]Standing(nil), d.results.Standings...)
		st.Results = &res
	}
	return st
}

// Messages returns the feed entries from position since onwards.
func (d *Driver) Messages(since int) []Message {
	d.mu.RLock()
	defer d.mu.RUnlock()
	since = max(0, min(since, len(d.messages)))
	return append([]Message{}, d.messages[since:]...)
}

// Candles returns the series up to and including the current candle.
func (d *Driver) Candles() []market.Candle {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]market.Candle(nil), d.series[:d.index+1]...)
}
