package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/wafcore/pkg/models"
	wafslack "github.com/codeready-toolchain/wafcore/pkg/slack"
)

// NotificationSink publishes escalations to Slack via pkg/slack. Deliver
// surfaces any publish error to the Escalation Processor rather than
// swallowing it, and returns the published message timestamp as the
// external id.
type NotificationSink struct {
	Service *wafslack.Service
}

func (s *NotificationSink) Name() models.SinkName { return models.SinkNotification }

func (s *NotificationSink) Deliver(ctx context.Context, esc *models.Escalation) (string, error) {
	if s.Service == nil {
		return "", fmt.Errorf("notification sink not configured")
	}

	blocks := wafslack.BuildEscalationMessage(esc)
	ts, err := s.Service.PostEscalation(ctx, blocks, 10*time.Second)
	if err != nil {
		return "", fmt.Errorf("slack publish failed: %w", err)
	}
	if ts == "" {
		return "", fmt.Errorf("slack publish returned no message timestamp")
	}
	return ts, nil
}
