package decision

import (
	"math"
	"strings"
)

// NormalizeAction lowercases the action and maps anything unknown to hold.
func NormalizeAction(a string) Action {
	switch Action(strings.ToLower(strings.TrimSpace(a))) {
	case ActionBuy:
		return ActionBuy
	case ActionSell:
		return ActionSell
	default:
		return ActionHold
	}
}

// ClampAmount truncates to whole shares inside [0, MaxTradeSize].
func ClampAmount(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= MaxTradeSize {
		return MaxTradeSize
	}
	return int(math.Floor(v))
}
