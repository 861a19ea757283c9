package simulation

import (
	"tradeduel/internal/decision"
	"tradeduel/internal/market"
	"tradeduel/internal/portfolio"
)

// StepEvent 描述一个 agent 在一个时间步上的完整结果。
type StepEvent struct {
	RunID   string
	Index   int
	Candle  market.Candle
	Agent   AgentSpec
	Outcome decision.Outcome
	Fill    portfolio.Fill
	Cash    float64
	Shares  int
	Value   float64
}

// Observer receives committed driver events. Calls happen outside the
// driver lock and must not block for long.
type Observer interface {
	OnStep(ev StepEvent)
	OnFinish(res Results)
	OnReset(runID string)
}

// Observers fans out to several observers in order.
type Observers []Observer

func (o Observers) OnStep(ev StepEvent) {
	for _, obs := range o {
		if obs != nil {
			obs.OnStep(ev)
		}
	}
}

func (o Observers) OnFinish(res Results) {
	for _, obs := range o {
		if obs != nil {
			obs.OnFinish(res)
		}
	}
}

func (o Observers) OnReset(runID string) {
	for _, obs := range o {
		if obs != nil {
			obs.OnReset(runID)
		}
	}
}
