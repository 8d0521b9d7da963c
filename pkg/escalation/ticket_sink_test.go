package escalation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/wafcore/pkg/models"
)

// githubAPITransport redirects api.github.com requests to a test server.
type githubAPITransport struct {
	server *httptest.Server
}

func (t *githubAPITransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Host == "api.github.com" {
		parsed, _ := url.Parse(t.server.URL)
		req.URL.Scheme = parsed.Scheme
		req.URL.Host = parsed.Host
	}
	return http.DefaultTransport.RoundTrip(req)
}

func newTestTicketSink(cfg TicketSinkConfig, server *httptest.Server) *TicketSink {
	sink := NewTicketSink(cfg)
	sink.httpClient = &http.Client{Transport: &githubAPITransport{server: server}}
	return sink
}

func TestTicketSink_Name(t *testing.T) {
	sink := NewTicketSink(TicketSinkConfig{})
	assert.Equal(t, models.SinkTicket, sink.Name())
}

func TestTicketSink_Deliver_CreatesIssueAndReturnsNumber(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody createIssueRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(createIssueResponse{Number: 42, HTMLURL: "https://github.com/acme/waf/issues/42"})
	}))
	defer server.Close()

	sink := newTestTicketSink(TicketSinkConfig{Token: "tok-123", Owner: "acme", Repo: "waf"}, server)
	esc := &models.Escalation{Title: "Repeated SQLi from 203.0.113.7", Message: "body", Severity: 5}

	externalID, err := sink.Deliver(context.Background(), esc)

	require.NoError(t, err)
	assert.Equal(t, "42", externalID)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "/repos/acme/waf/issues", gotPath)
	assert.Equal(t, "[WAF] Repeated SQLi from 203.0.113.7", gotBody.Title)
	assert.Contains(t, gotBody.Labels, "severity-5")
}

func TestTicketSink_Deliver_NoAuthHeaderWhenTokenEmpty(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(createIssueResponse{Number: 1})
	}))
	defer server.Close()

	sink := newTestTicketSink(TicketSinkConfig{Owner: "acme", Repo: "waf"}, server)
	_, err := sink.Deliver(context.Background(), &models.Escalation{Title: "t", Message: "m"})

	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestTicketSink_Deliver_NotConfiguredReturnsError(t *testing.T) {
	sink := NewTicketSink(TicketSinkConfig{})

	_, err := sink.Deliver(context.Background(), &models.Escalation{Title: "t"})

	require.Error(t, err)
}

func TestTicketSink_Deliver_NonCreatedStatusReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"rate limited"}`))
	}))
	defer server.Close()

	sink := newTestTicketSink(TicketSinkConfig{Owner: "acme", Repo: "waf"}, server)
	_, err := sink.Deliver(context.Background(), &models.Escalation{Title: "t", Message: "m"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestTicketBody_IncludesDetailPayloadFields(t *testing.T) {
	detail, _ := json.Marshal(models.DetailPayload{
		IPAddress:         "203.0.113.7",
		AttackType:        "sql_injection",
		RecommendedAction: "block",
		AffectedEventIDs:  []int64{1, 2, 3},
	})
	esc := &models.Escalation{Message: "base message", DetailPayload: detail}

	body := ticketBody(esc)

	assert.Contains(t, body, "base message")
	assert.Contains(t, body, "203.0.113.7")
	assert.Contains(t, body, "sql_injection")
	assert.Contains(t, body, "block")
	assert.Contains(t, body, "3")
}

func TestTicketBody_NoDetailPayloadReturnsMessageOnly(t *testing.T) {
	esc := &models.Escalation{Message: "base message"}
	assert.Equal(t, "base message", ticketBody(esc))
}

func TestSeverityLabel(t *testing.T) {
	assert.Equal(t, "severity-5", severityLabel(5))
}
