// Package agentclient is a stateless wrapper over the external AI analysis
// agents: single-event analyzer, group analyzer, and monitor (campaign
// detector). It serializes requests into each agent's expected envelope,
// invokes with retry/backoff behind a circuit breaker, and parses
// heterogeneous response envelopes into a normalized models.Verdict.
package agentclient

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/codeready-toolchain/wafcore/pkg/metrics"
	"github.com/codeready-toolchain/wafcore/pkg/models"
)

// Backend selects which third-party SDK a logical agent is invoked through.
type Backend string

const (
	// BackendAnthropic backs the structured envelope path via
	// anthropic-sdk-go's Messages API.
	BackendAnthropic Backend = "anthropic"
	// BackendLangchain backs the conversational-prompt envelope path via
	// langchaingo's llms package.
	BackendLangchain Backend = "langchain"
)

// AgentName identifies one of the three logical agents.
type AgentName string

const (
	AgentSingleAnalyzer   AgentName = "single_analyzer"
	AgentGroupAnalyzer    AgentName = "group_analyzer"
	AgentMonitor          AgentName = "monitor"
)

// AgentConfig configures one logical agent's backend and model handle.
type AgentConfig struct {
	Backend Backend
	Model   string
	// APIKey is not read by New; the Anthropic key is passed to
	// NewAnthropicBackend instead.
	APIKey string
}

// Config configures the Agent Client as a whole.
type Config struct {
	Agents map[AgentName]AgentConfig
	// RetryDelays overrides the fixed retry delay table; nil uses the
	// spec's default {0, 60s, 90s, 120s}.
	RetryDelays []int // seconds

	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.Metrics
}

// Campaign is one detected campaign returned by the monitor agent.
type Campaign struct {
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	Severity         int     `json:"severity"`
	AffectedEventIDs []int64 `json:"affected_event_ids"`
}

// Request is the action+input payload built for every agent call.
type Request struct {
	Action string      `json:"action"`
	Input  interface{} `json:"input"`
}

// completionBackend is the minimal interface both SDK wrappers satisfy,
// letting Client stay agnostic of which concrete backend an agent uses.
type completionBackend interface {
	// Complete sends req's JSON-encoded form through the backend's envelope
	// and returns the raw response bytes, unparsed.
	Complete(ctx context.Context, agent AgentName, req Request) ([]byte, error)
}

// Client is the single entry point for all three logical agents.
type Client struct {
	cfg      Config
	backends map[AgentName]completionBackend
	breakers map[AgentName]*gobreaker.CircuitBreaker
	logger   *slog.Logger
}

// New constructs a Client. The anthropic and langchain backend instances are
// built once and shared across calls (both SDKs are safe for concurrent use).
func New(cfg Config, anthropicBackend, langchainBackend completionBackend) *Client {
	c := &Client{
		cfg:      cfg,
		backends: map[AgentName]completionBackend{},
		breakers: map[AgentName]*gobreaker.CircuitBreaker{},
		logger:   slog.Default().With("component", "agentclient"),
	}

	for name, ac := range cfg.Agents {
		switch ac.Backend {
		case BackendLangchain:
			c.backends[name] = langchainBackend
		default:
			c.backends[name] = anthropicBackend
		}
		c.breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        string(name),
			MaxRequests: 1,
			Interval:    0,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !isColdStart(err)
			},
		})
	}
	return c
}

// AnalyzeEvent invokes the single-event analyzer.
func (c *Client) AnalyzeEvent(ctx context.Context, event map[string]interface{}) (*models.Verdict, error) {
	req := Request{Action: "analyze", Input: map[string]interface{}{"event": event}}
	body, err := c.invoke(ctx, AgentSingleAnalyzer, req)
	if err != nil {
		return nil, err
	}
	return parseVerdict(body)
}

// AnalyzeGroup invokes the group analyzer.
func (c *Client) AnalyzeGroup(ctx context.Context, summary models.GroupSummary, events []models.GroupMemberFields) (*models.Verdict, error) {
	req := Request{Action: "bulk_analyze", Input: map[string]interface{}{
		"summary": summary,
		"events":  events,
	}}
	body, err := c.invoke(ctx, AgentGroupAnalyzer, req)
	if err != nil {
		return nil, err
	}
	return parseVerdict(body)
}

// DetectCampaigns invokes the monitor agent.
func (c *Client) DetectCampaigns(ctx context.Context, window map[string]interface{}) ([]Campaign, error) {
	req := Request{Action: "detect_campaigns", Input: window}
	body, err := c.invoke(ctx, AgentMonitor, req)
	if err != nil {
		return nil, err
	}
	return parseCampaigns(body)
}

// invoke runs the retry/circuit-breaker orchestration around one backend
// call.
func (c *Client) invoke(ctx context.Context, agent AgentName, req Request) ([]byte, error) {
	backend, ok := c.backends[agent]
	if !ok {
		return nil, &AgentError{Agent: agent, Message: "no backend configured", Retryable: false}
	}
	breaker := c.breakers[agent]

	startedAt := time.Now()
	body, err := callWithRetry(ctx, c.delays(), func(ctx context.Context) ([]byte, error) {
		v, err := breaker.Execute(func() (interface{}, error) {
			return backend.Complete(ctx, agent, req)
		})
		if err != nil {
			if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
				return nil, &AgentError{Agent: agent, Message: err.Error(), Retryable: true}
			}
			return nil, err
		}
		return v.([]byte), nil
	})

	if c.cfg.Metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		c.cfg.Metrics.AgentCallTotal.WithLabelValues(string(agent), outcome).Inc()
		c.cfg.Metrics.AgentCallDuration.WithLabelValues(string(agent)).Observe(time.Since(startedAt).Seconds())
		c.cfg.Metrics.CircuitBreakerState.WithLabelValues(string(agent)).Set(float64(breaker.State()))
	}
	return body, err
}

func (c *Client) delays() []int {
	if len(c.cfg.RetryDelays) > 0 {
		return c.cfg.RetryDelays
	}
	return defaultRetryDelaysSeconds
}
