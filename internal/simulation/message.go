package simulation

import (
	"fmt"

	"tradeduel/internal/decision"
	"tradeduel/internal/portfolio"

	"github.com/google/uuid"
)

// SystemAgent 用于系统消息（比如最终结果）。
const SystemAgent = "system"

// Message is one chat-feed entry.
type Message struct {
	ID        string          `json:"id"`
	Agent     string          `json:"ai"`
	Name      string          `json:"name,omitempty"`
	Index     int             `json:"index"`
	Timestamp int64           `json:"timestamp"`
	Action    decision.Action `json:"action"`
	Amount    int             `json:"amount"`
	Executed  int             `json:"executed"`
	Price     float64         `json:"price"`
	Message   string          `json:"message"`
	Source    decision.Source `json:"source,omitempty"`
}

func agentMessage(spec AgentSpec, index int, now int64, out decision.Outcome, fill portfolio.Fill) Message {
	return Message{
		ID:        uuid.NewString(),
		Agent:     spec.ID,
		Name:      spec.Name,
		Index:     index,
		Timestamp: now,
		Action:    out.Action,
		Amount:    out.Amount,
		Executed:  fill.Executed,
		Price:     fill.Price,
		Message:   out.Message,
		Source:    out.Source,
	}
}

func finalMessage(res Results, index int, now int64) Message {
	return Message{
		ID:        uuid.NewString(),
		Agent:     SystemAgent,
		Index:     index,
		Timestamp: now,
		Action:    decision.ActionHold,
		Price:     res.FinalPrice,
		Message:   fmt.Sprintf("🏆 Simulation Complete! %s wins with $%.2f!", res.Winner.Name, res.Winner.Value),
	}
}
