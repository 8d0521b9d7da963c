// Package escalation implements the Escalation Processor: a periodic job
// that drains unfinished escalations to three independent sinks
// (notification, ticket, IP-blocklist), marking each sink's completion
// independently.
package escalation

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/codeready-toolchain/wafcore/pkg/metrics"
	"github.com/codeready-toolchain/wafcore/pkg/models"
	"github.com/codeready-toolchain/wafcore/pkg/store"
)

// Sink is the capability every escalation fan-out destination implements.
type Sink interface {
	Name() models.SinkName
	// Deliver sends the escalation to the external system and returns its
	// external handle on success: the message timestamp, the ticket number,
	// or, for the blocklist sink, the blocked IP address (not the blocklist
	// row id).
	Deliver(ctx context.Context, esc *models.Escalation) (externalID string, err error)
}

// Config configures a Processor.
type Config struct {
	// Schedule is a standard cron expression, e.g. "*/5 * * * *".
	Schedule string
	Limit    int

	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.Metrics
}

// Processor drains all three sinks independently on a schedule.
type Processor struct {
	store  *store.Store
	sinks  []Sink
	cfg    Config
	cron   *cron.Cron
	logger *slog.Logger
}

// New constructs a Processor over the given sinks.
func New(st *store.Store, sinks []Sink, cfg Config) *Processor {
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	return &Processor{
		store:  st,
		sinks:  sinks,
		cfg:    cfg,
		logger: slog.Default().With("component", "escalation-processor"),
	}
}

// Start registers RunOnce on the configured cron schedule.
func (p *Processor) Start(ctx context.Context) error {
	p.cron = cron.New()
	_, err := p.cron.AddFunc(p.cfg.Schedule, func() {
		if err := p.RunOnce(ctx); err != nil {
			p.logger.Error("escalation processor run failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	p.cron.Start()
	return nil
}

// Stop halts the cron schedule.
func (p *Processor) Stop() {
	if p.cron != nil {
		ctx := p.cron.Stop()
		<-ctx.Done()
	}
}

// RunOnce drains every sink independently. A failure on one
// escalation/sink never stops processing of the others.
func (p *Processor) RunOnce(ctx context.Context) error {
	for _, sink := range p.sinks {
		pending, err := p.store.ListPendingEscalations(ctx, sink.Name(), p.cfg.Limit)
		if err != nil {
			p.logger.Error("list_pending_escalations failed", "sink", sink.Name(), "error", err)
			continue
		}

		for _, esc := range pending {
			if sink.Name() == models.SinkBlocklist && !blocklistApplicable(esc) {
				continue
			}

			externalID, err := sink.Deliver(ctx, esc)
			if err != nil {
				if mErr := p.store.MarkSinkFailed(ctx, esc.ID, sink.Name(), err.Error()); mErr != nil {
					p.logger.Error("mark_sink_failed failed", "escalation_id", esc.ID, "sink", sink.Name(), "error", mErr)
				}
				p.logger.Warn("sink delivery failed", "escalation_id", esc.ID, "sink", sink.Name(), "error", err)
				p.countDelivery(sink.Name(), "failed")
				continue
			}

			if mErr := p.store.MarkSinkSuccess(ctx, esc.ID, sink.Name(), externalID); mErr != nil {
				p.logger.Error("mark_sink_success failed", "escalation_id", esc.ID, "sink", sink.Name(), "error", mErr)
			}
			p.countDelivery(sink.Name(), "success")
		}
	}
	return nil
}

func (p *Processor) countDelivery(sink models.SinkName, outcome string) {
	if p.cfg.Metrics == nil {
		return
	}
	p.cfg.Metrics.SinkDeliveryTotal.WithLabelValues(string(sink), outcome).Inc()
}

// blocklistApplicable reports whether the blocklist sink applies: severity
// at or above threshold and a blockable IP derivable from detail_payload.
func blocklistApplicable(esc *models.Escalation) bool {
	ip := derivedIP(esc)
	return esc.Applicable(models.SinkBlocklist, ip)
}

// derivedIP extracts the blockable IP from an escalation's detail_payload.
func derivedIP(esc *models.Escalation) string {
	if len(esc.DetailPayload) == 0 {
		return ""
	}
	var d models.DetailPayload
	if err := json.Unmarshal(esc.DetailPayload, &d); err != nil {
		return ""
	}
	return d.IPAddress
}
