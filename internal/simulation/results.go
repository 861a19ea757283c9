package simulation

// Standing is one agent's final valuation.
type Standing struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Cash   float64 `json:"cash"`
	Shares int     `json:"shares"`
	Value  float64 `json:"value"`
}

// Results 是整场比赛的结算。
type Results struct {
	RunID      string     `json:"runId"`
	FinalPrice float64    `json:"finalPrice"`
	Standings  []Standing `json:"standings"`
	Winner     Standing   `json:"winner"`
}

// pickWinner keeps the highest value; on a tie the later agent wins.
func pickWinner(standings []Standing) Standing {
	var best Standing
	for i, s := range standings {
		if i == 0 || s.Value >= best.Value {
			best = s
		}
	}
	return best
}
