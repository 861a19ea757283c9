package decision

import (
	"context"

	"tradeduel/internal/market"
)

// Action 是模型可返回的三种动作。
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

const (
	// MaxTradeSize caps shares per decision.
	MaxTradeSize = 10
	// ContextWindow bounds the previous candles and past decisions sent along.
	ContextWindow = 10
)

// Decision 是单个 agent 在单个时间步上的决策，生成后不再修改。
type Decision struct {
	Action  Action  `json:"action"`
	Amount  int     `json:"amount"`
	Price   float64 `json:"price"`
	Message string  `json:"message"`
}

// Source tells where a decision came from.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// State 是决策协议的状态机节点。
type State string

const (
	StatePreparingContext State = "PREPARING_CONTEXT"
	StateAwaitingModel    State = "AWAITING_MODEL"
	StateParsed           State = "PARSED"
	StateFallback         State = "FALLBACK"
)

// Outcome wraps the final decision with how it was reached.
type Outcome struct {
	Decision
	Source Source `json:"source"`
	State  State  `json:"state"`
	Reason string `json:"reason,omitempty"`
	Raw    string `json:"-"`
}

// Snapshot 是发给模型的组合快照。
type Snapshot struct {
	Cash   float64 `json:"cash"`
	Shares int     `json:"shares"`
	Value  float64 `json:"value"`
}

// Request carries everything one decision may look at.
type Request struct {
	Agent     string          `json:"agent"`
	Model     string          `json:"model"`
	Candle    market.Candle   `json:"currentCandle"`
	Previous  []market.Candle `json:"previousCandles"`
	Portfolio Snapshot        `json:"portfolio"`
	Past      []Decision      `json:"previousMessages"`
}

// NewRequest assembles the context for series[index]: up to ContextWindow
// candles before it, the last ContextWindow own decisions and the portfolio
// valued at the current close.
func NewRequest(agent, model string, series []market.Candle, index int, cash float64, shares int, past []Decision) Request {
	cur := series[index]
	from := index - ContextWindow
	if from < 0 {
		from = 0
	}
	prev := append([]market.Candle(nil), series[from:index]...)
	return Request{
		Agent:    agent,
		Model:    model,
		Candle:   cur,
		Previous: prev,
		Portfolio: Snapshot{
			Cash:   cash,
			Shares: shares,
			Value:  cash + float64(shares)*cur.Close,
		},
		Past: lastDecisions(past, ContextWindow),
	}
}

func lastDecisions(past []Decision, n int) []Decision {
	if len(past) > n {
		past = past[len(past)-n:]
	}
	return append([]Decision(nil), past...)
}

// Prompt 是一次模型调用的系统与用户提示词。
type Prompt struct {
	System string
	User   string
}

// ModelClient hides the chat-completion transport. Any error sends the
// protocol to the rule-based fallback.
type ModelClient interface {
	Decide(ctx context.Context, prompt Prompt, modelID string) (string, error)
}
