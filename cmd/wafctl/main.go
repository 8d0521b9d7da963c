// Command wafctl is the operator CLI for wafcore: it connects directly to
// the database and drives the same Store and Grouper operations the HTTP
// control surface exposes, for use in scripts and incident response where
// a running wafcore process's HTTP port isn't reachable.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/wafcore/pkg/database"
	"github.com/codeready-toolchain/wafcore/pkg/grouper"
	"github.com/codeready-toolchain/wafcore/pkg/models"
	"github.com/codeready-toolchain/wafcore/pkg/store"
)

var queueFlag string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "wafctl",
		Short: "Operator CLI for the wafcore event queue and escalation store",
	}
	root.AddCommand(
		runGrouperCmd(),
		listJobsCmd(),
		retryJobCmd(),
		cancelJobCmd(),
		bulkPauseCmd(),
		bulkResumeCmd(),
		resetStuckJobsCmd(),
		listEscalationsCmd(),
		retryEscalationSinkCmd(),
	)
	return root
}

func openStore(ctx context.Context) (*store.Store, func(), error) {
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("load database config: %w", err)
	}
	client, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return store.New(client), func() { _ = client.Close() }, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func parseQueue(raw string) (models.Queue, error) {
	switch raw {
	case "single":
		return models.QueueSingle, nil
	case "group":
		return models.QueueGroup, nil
	default:
		return "", fmt.Errorf("--queue must be \"single\" or \"group\", got %q", raw)
	}
}

func parseSink(raw string) (models.SinkName, error) {
	switch raw {
	case "notification":
		return models.SinkNotification, nil
	case "ticket":
		return models.SinkTicket, nil
	case "blocklist":
		return models.SinkBlocklist, nil
	default:
		return "", fmt.Errorf("sink must be \"notification\", \"ticket\", or \"blocklist\", got %q", raw)
	}
}

func runGrouperCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-grouper",
		Short: "Run one Grouper pass immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, closeFn, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			grp := grouper.New(st, grouper.Config{})
			result, err := grp.RunOnce(ctx)
			if err != nil {
				return err
			}
			printJSON(result)
			return nil
		},
	}
}

func listJobsCmd() *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list-jobs",
		Short: "List jobs in a queue, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := parseQueue(queueFlag)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, closeFn, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			jobs, err := st.ListJobs(ctx, queue, status, limit)
			if err != nil {
				return err
			}
			printJSON(jobs)
			return nil
		},
	}
	cmd.Flags().StringVar(&queueFlag, "queue", "", `"single" or "group" (required)`)
	cmd.Flags().StringVar(&status, "status", "", "filter by job status, empty for all")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum rows returned")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func retryJobCmd() *cobra.Command {
	var jobID int64
	cmd := &cobra.Command{
		Use:   "retry-job",
		Short: "Requeue a failed job",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := parseQueue(queueFlag)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, closeFn, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := st.Retry(ctx, queue, jobID); err != nil {
				return err
			}
			fmt.Printf("job %d requeued on %s\n", jobID, queue)
			return nil
		},
	}
	cmd.Flags().StringVar(&queueFlag, "queue", "", `"single" or "group" (required)`)
	cmd.Flags().Int64Var(&jobID, "id", 0, "job id (required)")
	_ = cmd.MarkFlagRequired("queue")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func cancelJobCmd() *cobra.Command {
	var jobID int64
	cmd := &cobra.Command{
		Use:   "cancel-job",
		Short: "Cancel a pending or queued job",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := parseQueue(queueFlag)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, closeFn, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := st.Cancel(ctx, queue, jobID); err != nil {
				return err
			}
			fmt.Printf("job %d cancelled on %s\n", jobID, queue)
			return nil
		},
	}
	cmd.Flags().StringVar(&queueFlag, "queue", "", `"single" or "group" (required)`)
	cmd.Flags().Int64Var(&jobID, "id", 0, "job id (required)")
	_ = cmd.MarkFlagRequired("queue")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func bulkPauseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk-pause",
		Short: "Pause all pending jobs in a queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := parseQueue(queueFlag)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, closeFn, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := st.BulkPause(ctx, queue)
			if err != nil {
				return err
			}
			fmt.Printf("paused %d jobs on %s\n", count, queue)
			return nil
		},
	}
	cmd.Flags().StringVar(&queueFlag, "queue", "", `"single" or "group" (required)`)
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func bulkResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk-resume",
		Short: "Resume all on-hold jobs in a queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := parseQueue(queueFlag)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, closeFn, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := st.BulkResume(ctx, queue)
			if err != nil {
				return err
			}
			fmt.Printf("resumed %d jobs on %s\n", count, queue)
			return nil
		},
	}
	cmd.Flags().StringVar(&queueFlag, "queue", "", `"single" or "group" (required)`)
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func resetStuckJobsCmd() *cobra.Command {
	var minAge time.Duration
	cmd := &cobra.Command{
		Use:   "reset-stuck-jobs",
		Short: "Mark running jobs stuck past the given age as failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := parseQueue(queueFlag)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, closeFn, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := st.ResetIfStuck(ctx, queue, minAge)
			if err != nil {
				return err
			}
			fmt.Printf("reset %d stuck jobs on %s\n", count, queue)
			return nil
		},
	}
	cmd.Flags().StringVar(&queueFlag, "queue", "", `"single" or "group" (required)`)
	cmd.Flags().DurationVar(&minAge, "min-running-age", 5*time.Minute, "minimum time a job must have been running to count as stuck")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func listEscalationsCmd() *cobra.Command {
	var sinkName string
	var limit int
	cmd := &cobra.Command{
		Use:   "list-escalations",
		Short: "List escalations still pending delivery on a sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			sink, err := parseSink(sinkName)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, closeFn, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			escalations, err := st.ListPendingEscalations(ctx, sink, limit)
			if err != nil {
				return err
			}
			printJSON(escalations)
			return nil
		},
	}
	cmd.Flags().StringVar(&sinkName, "sink", "", `"notification", "ticket", or "blocklist" (required)`)
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum rows returned")
	_ = cmd.MarkFlagRequired("sink")
	return cmd
}

func retryEscalationSinkCmd() *cobra.Command {
	var escalationID int64
	var sinkName string
	cmd := &cobra.Command{
		Use:   "retry-escalation-sink",
		Short: "Clear a sink's failure state so the next Escalation Processor pass retries it",
		RunE: func(cmd *cobra.Command, args []string) error {
			sink, err := parseSink(sinkName)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, closeFn, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := st.RetrySink(ctx, escalationID, sink); err != nil {
				return err
			}
			fmt.Printf("escalation %d sink %s marked for retry\n", escalationID, sink)
			return nil
		},
	}
	cmd.Flags().Int64Var(&escalationID, "id", 0, "escalation id (required)")
	cmd.Flags().StringVar(&sinkName, "sink", "", `"notification", "ticket", or "blocklist" (required)`)
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("sink")
	return cmd
}
