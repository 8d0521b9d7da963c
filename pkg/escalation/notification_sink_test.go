package escalation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/wafcore/pkg/models"
	wafslack "github.com/codeready-toolchain/wafcore/pkg/slack"
)

func TestNotificationSink_Name(t *testing.T) {
	sink := &NotificationSink{}
	assert.Equal(t, models.SinkNotification, sink.Name())
}

func TestNotificationSink_Deliver_NilServiceReturnsError(t *testing.T) {
	sink := &NotificationSink{}

	_, err := sink.Deliver(context.Background(), &models.Escalation{Title: "t"})

	require.Error(t, err)
}

func TestNotificationSink_Deliver_ReturnsMessageTimestamp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true, "channel": "C123", "ts": "1700000000.000100"}`))
	}))
	defer server.Close()

	client := wafslack.NewClientWithAPIURL("tok", "C123", server.URL+"/")
	sink := &NotificationSink{Service: wafslack.NewServiceWithClient(client)}

	id, err := sink.Deliver(context.Background(), &models.Escalation{Title: "Repeated SQLi", Severity: 5, SourceType: "group"})

	require.NoError(t, err)
	assert.NotEmpty(t, id)
}
