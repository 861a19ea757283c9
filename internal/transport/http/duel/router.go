package duelhttp

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"tradeduel/internal/decision"
	"tradeduel/internal/market"
	"tradeduel/internal/simulation"

	"github.com/gin-gonic/gin"
)

// Simulator 是 HTTP 层看到的驱动器能力。
type Simulator interface {
	Snapshot() simulation.State
	Candles() []market.Candle
	Messages(since int) []simulation.Message
	Play()
	Pause()
	Toggle() bool
	Reset()
	SetSpeed(d time.Duration) error
}

// TradeDecider answers /api/trade; decision.Protocol satisfies it.
type TradeDecider interface {
	Decide(ctx context.Context, req decision.Request) decision.Outcome
}

// ChartRenderer renders the current run as an HTML page.
type ChartRenderer interface {
	RenderChart() ([]byte, error)
}

type Router struct {
	sim     Simulator
	decider TradeDecider
}

func NewRouter(sim Simulator, decider TradeDecider) *Router {
	return &Router{sim: sim, decider: decider}
}

// Register 将路由挂载到 /api 分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if r.sim != nil {
		group.GET("/state", r.handleState)
		group.GET("/candles", r.handleCandles)
		group.GET("/messages", r.handleMessages)
		ctl := group.Group("/control")
		ctl.POST("/play", r.handlePlay)
		ctl.POST("/pause", r.handlePause)
		ctl.POST("/toggle", r.handleToggle)
		ctl.POST("/reset", r.handleReset)
		ctl.POST("/speed", r.handleSpeed)
	}
	if r.decider != nil {
		group.POST("/trade", r.handleTrade)
	}
}

func (r *Router) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, r.sim.Snapshot())
}

func (r *Router) handleCandles(c *gin.Context) {
	c.JSON(http.StatusOK, r.sim.Candles())
}

func (r *Router) handleMessages(c *gin.Context) {
	since := 0
	if raw := c.Query("since"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be a non-negative integer"})
			return
		}
		since = v
	}
	c.JSON(http.StatusOK, r.sim.Messages(since))
}

func (r *Router) control(c *gin.Context) {
	st := r.sim.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"running":    st.Running,
		"finished":   st.Finished,
		"index":      st.Index,
		"intervalMs": st.IntervalMS,
		"runId":      st.RunID,
	})
}

func (r *Router) handlePlay(c *gin.Context) {
	r.sim.Play()
	r.control(c)
}

func (r *Router) handlePause(c *gin.Context) {
	r.sim.Pause()
	r.control(c)
}

func (r *Router) handleToggle(c *gin.Context) {
	r.sim.Toggle()
	r.control(c)
}

func (r *Router) handleReset(c *gin.Context) {
	r.sim.Reset()
	r.control(c)
}

type speedRequest struct {
	IntervalMS int64 `json:"interval_ms"`
}

func (r *Router) handleSpeed(c *gin.Context) {
	var req speedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	if err := r.sim.SetSpeed(time.Duration(req.IntervalMS) * time.Millisecond); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	r.control(c)
}

// tradeRequest 是 /api/trade 的请求体，字段名沿用前端约定。
type tradeRequest struct {
	Model            string              `json:"model"`
	CurrentCandle    *market.Candle      `json:"currentCandle"`
	PreviousCandles  []market.Candle     `json:"previousCandles"`
	Portfolio        *decision.Snapshot  `json:"portfolio"`
	PreviousMessages []decision.Decision `json:"previousMessages"`
}

func (r *Router) handleTrade(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	if req.Model == "" || req.CurrentCandle == nil || req.Portfolio == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: model, currentCandle, portfolio"})
		return
	}
	out := r.decider.Decide(c.Request.Context(), decision.Request{
		Agent:     "api",
		Model:     req.Model,
		Candle:    *req.CurrentCandle,
		Previous:  tail(req.PreviousCandles, decision.ContextWindow),
		Portfolio: *req.Portfolio,
		Past:      tail(req.PreviousMessages, decision.ContextWindow),
	})
	c.JSON(http.StatusOK, out)
}

func handleChart(chart ChartRenderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		html, err := chart.RenderChart()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", html)
	}
}

func tail[T any](items []T, n int) []T {
	if len(items) > n {
		items = items[len(items)-n:]
	}
	return append([]T(nil), items...)
}
