package simulation

import (
	"fmt"
	"strings"
	"time"

	"tradeduel/internal/portfolio"
)

const (
	DefaultInterval = 30 * time.Second
	MinInterval     = 100 * time.Millisecond
)

// SpeedPresets 是前端提供的几个速度档位。
var SpeedPresets = []time.Duration{5 * time.Second, 10 * time.Second, 30 * time.Second, 60 * time.Second}

// AgentSpec describes one competitor. Agents decide in slice order.
type AgentSpec struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Model string `json:"model"`
	Color string `json:"color"`
}

// DefaultAgents 对应两个默认对手。
func DefaultAgents() []AgentSpec {
	return []AgentSpec{
		{ID: "modelA", Name: "Claude", Model: "anthropic/claude-3.5-sonnet", Color: "#8B5CF6"},
		{ID: "modelB", Name: "GPT-4", Model: "openai/gpt-4o", Color: "#10B981"},
	}
}

// Config is fixed for the lifetime of a driver.
type Config struct {
	InitialCash float64
	Interval    time.Duration
	MinPrice    float64
	Agents      []AgentSpec
}

func (c Config) withDefaults() Config {
	if c.InitialCash <= 0 {
		c.InitialCash = portfolio.DefaultInitialCash
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MinPrice <= 0 {
		c.MinPrice = portfolio.DefaultMinPrice
	}
	if len(c.Agents) == 0 {
		c.Agents = DefaultAgents()
	}
	c.Agents = append([]AgentSpec(nil), c.Agents...)
	return c
}

func (c Config) validate() error {
	seen := make(map[string]struct{}, len(c.Agents))
	for i, a := range c.Agents {
		id := strings.TrimSpace(a.ID)
		if id == "" {
			return fmt.Errorf("agent[%d]: id 不能为空", i)
		}
		if id == SystemAgent {
			return fmt.Errorf("agent[%d]: id %q is reserved", i, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("agent[%d]: duplicate id %q", i, id)
		}
		seen[id] = struct{}{}
	}
	if c.Interval < MinInterval {
		return fmt.Errorf("interval %s below minimum %s", c.Interval, MinInterval)
	}
	return nil
}
