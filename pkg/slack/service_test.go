package slack

import (
	"context"
	"testing"
	"time"

	goslack "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService(t *testing.T) {
	t.Run("returns nil when token empty", func(t *testing.T) {
		svc := NewService(ServiceConfig{Token: "", Channel: "C123"})
		assert.Nil(t, svc)
	})

	t.Run("returns nil when channel empty", func(t *testing.T) {
		svc := NewService(ServiceConfig{Token: "xoxb-test", Channel: ""})
		assert.Nil(t, svc)
	})

	t.Run("returns service when configured", func(t *testing.T) {
		svc := NewService(ServiceConfig{Token: "xoxb-test", Channel: "C123"})
		assert.NotNil(t, svc)
	})
}

func TestService_PostEscalation_NilReceiverReturnsError(t *testing.T) {
	var s *Service

	_, err := s.PostEscalation(context.Background(), nil, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestService_PostEscalation_DelegatesToClient(t *testing.T) {
	client := NewClientWithAPIURL("xoxb-test", "C123", "http://127.0.0.1:0")
	svc := NewServiceWithClient(client)

	blocks := []goslack.Block{
		goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, "hi", false, false), nil, nil),
	}

	_, err := svc.PostEscalation(context.Background(), blocks, 50*time.Millisecond)
	require.Error(t, err, "unreachable API URL should surface an error rather than fail open")
}
