package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeready-toolchain/wafcore/pkg/models"
)

// TicketSinkConfig configures a TicketSink backed by GitHub Issues: a small
// bearer-token-optional HTTP client rather than a ticketing SDK.
type TicketSinkConfig struct {
	Token string
	Owner string
	Repo  string
}

// TicketSink files each escalation as a GitHub issue.
type TicketSink struct {
	cfg        TicketSinkConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTicketSink constructs a TicketSink. Token may be empty for public
// repositories with low rate limits, mirroring runbook.NewGitHubClient.
func NewTicketSink(cfg TicketSinkConfig) *TicketSink {
	return &TicketSink{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default().With("component", "ticket-sink"),
	}
}

func (s *TicketSink) Name() models.SinkName { return models.SinkTicket }

type createIssueRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels,omitempty"`
}

type createIssueResponse struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

func (s *TicketSink) Deliver(ctx context.Context, esc *models.Escalation) (string, error) {
	if s.cfg.Owner == "" || s.cfg.Repo == "" {
		return "", fmt.Errorf("ticket sink not configured")
	}

	payload := createIssueRequest{
		Title:  fmt.Sprintf("[WAF] %s", esc.Title),
		Body:   ticketBody(esc),
		Labels: []string{"waf-escalation", severityLabel(esc.Severity)},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal issue payload: %w", err)
	}

	apiURL := fmt.Sprintf("https://api.github.com/repos/%s/%s/issues", s.cfg.Owner, s.cfg.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Content-Type", "application/json")
	s.setAuthHeader(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create issue: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("GitHub returned HTTP %d creating issue: %s", resp.StatusCode, string(respBody))
	}

	var created createIssueResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode issue response: %w", err)
	}

	return fmt.Sprintf("%d", created.Number), nil
}

func (s *TicketSink) setAuthHeader(req *http.Request) {
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}
}

func ticketBody(esc *models.Escalation) string {
	body := esc.Message
	if len(esc.DetailPayload) > 0 {
		var d models.DetailPayload
		if err := json.Unmarshal(esc.DetailPayload, &d); err == nil {
			if d.IPAddress != "" {
				body += fmt.Sprintf("\n\n**Source IP:** %s", d.IPAddress)
			}
			if d.AttackType != "" {
				body += fmt.Sprintf("\n**Attack type:** %s", d.AttackType)
			}
			if d.RecommendedAction != "" {
				body += fmt.Sprintf("\n**Recommended action:** %s", d.RecommendedAction)
			}
			if len(d.AffectedEventIDs) > 0 {
				body += fmt.Sprintf("\n**Affected events:** %d", len(d.AffectedEventIDs))
			}
		}
	}
	return body
}

func severityLabel(severity int) string {
	return fmt.Sprintf("severity-%d", severity)
}
