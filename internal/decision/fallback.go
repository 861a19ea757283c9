package decision

import (
	"fmt"
	"math"
)

// Fallback is the deterministic SMA20 policy used whenever the model cannot
// be asked or cannot be understood. Exactly one branch fires for any input.
func Fallback(price, sma20, cash float64, shares int) Decision {
	d := Decision{Action: ActionHold, Price: price, Message: "Monitoring for entry point."}
	if price <= 0 {
		d.Message = "No valid price, holding."
		return d
	}
	affordable := int(math.Min(MaxTradeSize, math.Floor(cash/price)))
	switch {
	case price >= sma20 && cash >= price*MaxTradeSize:
		d.Action, d.Amount = ActionBuy, MaxTradeSize
		d.Message = fmt.Sprintf("AGGRESSIVE BUY: Price $%.2f at/above SMA20. Going all-in with %d shares!", price, MaxTradeSize)
	case price >= sma20 && cash >= price*5:
		d.Action, d.Amount = ActionBuy, affordable
		d.Message = fmt.Sprintf("Buying %d shares - price trending above SMA20. Deploying capital aggressively!", affordable)
	case price < sma20 && shares >= MaxTradeSize:
		d.Action, d.Amount = ActionSell, MaxTradeSize
		d.Message = fmt.Sprintf("QUICK SELL: Price $%.2f below SMA20. Exiting full position to preserve capital!", price)
	case price < sma20 && shares > 0:
		n := shares
		if n > MaxTradeSize {
			n = MaxTradeSize
		}
		d.Action, d.Amount = ActionSell, n
		d.Message = fmt.Sprintf("Selling %d shares - cutting losses on downtrend. Don't fight the trend!", n)
	case shares > 0 && cash < price:
		d.Message = "Holding position. Waiting to sell on next downturn or buy more on uptick."
	case cash >= price:
		d.Action, d.Amount = ActionBuy, affordable
		d.Message = fmt.Sprintf("Deploying available capital - %d shares. Can't let cash sit idle!", affordable)
	}
	return d
}
