// Package campaignmonitor implements the periodic job that asks the
// monitor agent to scan a recent window of WAF activity for cross-event
// attack campaigns the single-event and grouped-analysis paths wouldn't
// surface on their own, and escalates whatever it reports.
package campaignmonitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/codeready-toolchain/wafcore/pkg/agentclient"
	"github.com/codeready-toolchain/wafcore/pkg/metrics"
	"github.com/codeready-toolchain/wafcore/pkg/models"
	"github.com/codeready-toolchain/wafcore/pkg/store"
)

// Result carries the counters RunOnce reports for one monitor pass.
type Result struct {
	CampaignsDetected  int
	EscalationsCreated int
}

// Config configures a Monitor.
type Config struct {
	// Schedule is a standard cron expression (robfig/cron/v3 syntax),
	// e.g. "*/15 * * * *" for every 15 minutes.
	Schedule string
	// Lookback is how far back the monitor agent is asked to scan on each
	// run. Deliberately wider than the schedule interval so a missed or
	// slow run doesn't leave a gap in coverage.
	Lookback time.Duration

	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.Metrics
}

// Monitor runs campaign detection on a schedule, turning every campaign the
// monitor agent reports into a source_type="campaign" Escalation.
type Monitor struct {
	store  *store.Store
	agent  *agentclient.Client
	cfg    Config
	cron   *cron.Cron
	logger *slog.Logger
}

// New constructs a Monitor.
func New(st *store.Store, agent *agentclient.Client, cfg Config) *Monitor {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 30 * time.Minute
	}
	return &Monitor{
		store:  st,
		agent:  agent,
		cfg:    cfg,
		logger: slog.Default().With("component", "campaign-monitor"),
	}
}

// Start registers RunOnce on the configured cron schedule.
func (m *Monitor) Start(ctx context.Context) error {
	m.cron = cron.New()
	_, err := m.cron.AddFunc(m.cfg.Schedule, func() {
		if _, err := m.RunOnce(ctx); err != nil {
			m.logger.Error("campaign monitor run failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	m.cron.Start()
	return nil
}

// Stop halts the cron schedule, waiting for any in-flight run to finish.
func (m *Monitor) Stop() {
	if m.cron != nil {
		ctx := m.cron.Stop()
		<-ctx.Done()
	}
}

// RunOnce asks the monitor agent to scan the configured lookback window and
// creates an Escalation for every campaign it reports. detectionID tags the
// run so every escalation it produces can be traced back to the same scan.
func (m *Monitor) RunOnce(ctx context.Context) (*Result, error) {
	result := &Result{}
	detectionID := uuid.New().String()

	window := map[string]interface{}{
		"since":        time.Now().Add(-m.cfg.Lookback).UTC().Format(time.RFC3339),
		"detection_id": detectionID,
	}

	campaigns, err := m.agent.DetectCampaigns(ctx, window)
	if err != nil {
		m.logger.Error("detect_campaigns failed", "detection_id", detectionID, "error", err)
		return result, err
	}
	result.CampaignsDetected = len(campaigns)

	for _, c := range campaigns {
		_, err := m.store.CreateEscalation(ctx, models.EscalationSpec{
			Title:      c.Title,
			Message:    c.Description,
			Severity:   c.Severity,
			SourceType: models.SourceTypeCampaign,
			Detail: models.DetailPayload{
				AffectedEventIDs: c.AffectedEventIDs,
				DetectionID:      detectionID,
			},
		})
		if err != nil {
			m.logger.Warn("create_escalation failed for detected campaign",
				"detection_id", detectionID, "title", c.Title, "error", err)
			continue
		}
		result.EscalationsCreated++
	}

	if m.cfg.Metrics != nil {
		m.cfg.Metrics.CampaignRunsTotal.Inc()
		m.cfg.Metrics.CampaignsDetected.Add(float64(result.CampaignsDetected))
	}
	m.logger.Info("campaign monitor run complete",
		"detection_id", detectionID,
		"campaigns_detected", result.CampaignsDetected,
		"escalations_created", result.EscalationsCreated)
	return result, nil
}
