// Package grouper implements the periodic batch job that groups unlinked
// open events by (source_ip, minute-truncated timestamp) into analysis
// tasks, and optionally enqueues grouped-analysis jobs for them.
package grouper

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/codeready-toolchain/wafcore/pkg/metrics"
	"github.com/codeready-toolchain/wafcore/pkg/models"
	"github.com/codeready-toolchain/wafcore/pkg/store"
)

// Result carries the counters RunOnce reports for one grouping pass.
type Result struct {
	GroupsCreated int
	EventsLinked  int
	JobsCreated   int
	IPsProcessed  int
}

// Config configures a Grouper.
type Config struct {
	// Schedule is a standard cron expression (robfig/cron/v3 syntax),
	// e.g. "*/5 * * * *" for every 5 minutes.
	Schedule string
	// AutoEnqueue, when true, enqueues a group-job for every newly created
	// Group immediately rather than waiting for a separate trigger.
	AutoEnqueue bool
	JobPriority int

	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.Metrics
}

// Grouper runs the grouping algorithm on a schedule and on operator demand.
type Grouper struct {
	store  *store.Store
	cfg    Config
	cron   *cron.Cron
	logger *slog.Logger
}

// New constructs a Grouper.
func New(st *store.Store, cfg Config) *Grouper {
	return &Grouper{
		store:  st,
		cfg:    cfg,
		logger: slog.Default().With("component", "grouper"),
	}
}

// Start registers RunOnce on the configured cron schedule and begins
// running it. Cancel ctx or call Stop to end the schedule.
func (g *Grouper) Start(ctx context.Context) error {
	g.cron = cron.New()
	_, err := g.cron.AddFunc(g.cfg.Schedule, func() {
		if _, err := g.RunOnce(ctx); err != nil {
			g.logger.Error("grouper run failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	g.cron.Start()
	return nil
}

// Stop halts the cron schedule, waiting for any in-flight run to finish.
func (g *Grouper) Stop() {
	if g.cron != nil {
		ctx := g.cron.Stop()
		<-ctx.Done()
	}
}

// RunNow runs the grouping algorithm immediately, for the operator-demand
// path (run_grouper_now). Calls the same method the cron schedule calls, so
// cron-driven and on-demand runs are identical and equally idempotent.
func (g *Grouper) RunNow(ctx context.Context) (*Result, error) {
	return g.RunOnce(ctx)
}

// RunOnce scans for events that share a source IP and time bucket but
// aren't yet linked to a Group, creates or reuses a Group for each bucket,
// and links the events to it.
func (g *Grouper) RunOnce(ctx context.Context) (*Result, error) {
	result := &Result{}

	buckets, err := g.store.FindUnlinkedGroupsSnapshot(ctx)
	if err != nil {
		g.logger.Error("find_unlinked_groups_snapshot failed", "error", err)
		return result, err
	}

	seenIPs := map[string]bool{}

	for _, b := range buckets {
		seenIPs[b.SourceIP] = true

		group, created, err := g.store.FindOrCreateGroup(ctx, b.SourceIP, b.TimeBucket, b.Count)
		if err != nil {
			g.logger.Warn("find_or_create_group failed, skipping bucket",
				"source_ip", b.SourceIP, "time_bucket", b.TimeBucket, "error", err)
			continue
		}
		if created {
			result.GroupsCreated++
		}

		events, err := g.store.FindUnlinkedEventsInBucket(ctx, b.SourceIP, b.TimeBucket)
		if err != nil {
			g.logger.Warn("find_unlinked_events_in_bucket failed, skipping bucket",
				"source_ip", b.SourceIP, "time_bucket", b.TimeBucket, "error", err)
			continue
		}
		if len(events) == 0 {
			continue
		}

		if err := g.store.LinkMembersToGroup(ctx, group.ID, events); err != nil {
			g.logger.Warn("link_members_to_group failed", "group_id", group.ID, "error", err)
			continue
		}
		result.EventsLinked += len(events)

		if created && g.cfg.AutoEnqueue {
			if _, err := g.store.Enqueue(ctx, models.QueueGroup, group.ID, g.cfg.JobPriority); err != nil {
				if err != store.ErrAlreadyExists {
					g.logger.Warn("enqueue group-job failed", "group_id", group.ID, "error", err)
					continue
				}
			} else {
				result.JobsCreated++
			}
		}
	}

	result.IPsProcessed = len(seenIPs)
	if g.cfg.Metrics != nil {
		g.cfg.Metrics.GrouperRunsTotal.Inc()
		g.cfg.Metrics.GrouperGroupsCreated.Add(float64(result.GroupsCreated))
	}
	g.logger.Info("grouper run complete",
		"groups_created", result.GroupsCreated,
		"events_linked", result.EventsLinked,
		"jobs_created", result.JobsCreated,
		"ips_processed", result.IPsProcessed)
	return result, nil
}
