package slack

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goslack "github.com/slack-go/slack"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token   string
	Channel string
}

// Service handles Slack notification delivery for the Notification sink.
// Nil-safe: PostEscalation is a no-op returning an error when service is nil,
// so a misconfigured sink fails loud rather than pretending to succeed.
type Service struct {
	client *Client
	logger *slog.Logger
}

// NewService creates a new Slack notification service.
// Returns nil if Token or Channel is empty.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client: NewClient(cfg.Token, cfg.Channel),
		logger: slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client) *Service {
	return &Service{
		client: client,
		logger: slog.Default().With("component", "slack-service"),
	}
}

// PostEscalation publishes escalation blocks and returns the message
// timestamp as the sink's external id. Unlike the session-lifecycle
// notifications this wraps, errors are surfaced rather than swallowed:
// the Escalation Processor needs to know when a sink attempt failed so it
// can retry.
func (s *Service) PostEscalation(ctx context.Context, blocks []goslack.Block, timeout time.Duration) (string, error) {
	if s == nil {
		return "", fmt.Errorf("slack service not configured")
	}
	return s.client.PostMessage(ctx, blocks, timeout)
}
