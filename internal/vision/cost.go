package vision

import (
	"sync"
	"time"
)

// Price is the USD cost per 1K tokens.
type Price struct {
	Prompt     float64
	Completion float64
}

// DefaultPrices are rough list prices per provider; unknown providers cost 0.
var DefaultPrices = map[string]Price{
	"openai":    {Prompt: 0.00015, Completion: 0.0006},
	"gemini":    {Prompt: 0.0001, Completion: 0.0004},
	"anthropic": {Prompt: 0.003, Completion: 0.015},
}

// CostStats is a snapshot of CostTracker.
type CostStats struct {
	TotalTokens      int           `json:"total_tokens"`
	TotalRequests    int           `json:"total_requests"`
	EstimatedCostUSD float64       `json:"estimated_cost_usd"`
	Uptime           time.Duration `json:"uptime_ns"`
}

// CostTracker tracks model usage and estimated spend.
type CostTracker struct {
	mu               sync.RWMutex
	prices           map[string]Price
	totalTokens      int
	totalRequests    int
	estimatedCostUSD float64
	startTime        time.Time
}

func NewCostTracker(prices map[string]Price) *CostTracker {
	if prices == nil {
		prices = DefaultPrices
	}
	return &CostTracker{prices: prices, startTime: time.Now()}
}

func (c *CostTracker) AddUsage(provider string, u Usage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalTokens += u.PromptTokens + u.CompletionTokens
	c.totalRequests++

	p := c.prices[provider]
	c.estimatedCostUSD += float64(u.PromptTokens)*p.Prompt/1000 + float64(u.CompletionTokens)*p.Completion/1000
}

func (c *CostTracker) GetStats() CostStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CostStats{
		TotalTokens:      c.totalTokens,
		TotalRequests:    c.totalRequests,
		EstimatedCostUSD: c.estimatedCostUSD,
		Uptime:           time.Since(c.startTime),
	}
}
