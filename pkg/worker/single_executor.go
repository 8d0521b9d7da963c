package worker

import (
	"context"

	"github.com/codeready-toolchain/wafcore/pkg/agentclient"
	"github.com/codeready-toolchain/wafcore/pkg/models"
	"github.com/codeready-toolchain/wafcore/pkg/store"
)

// SingleJobExecutor implements JobExecutor for the single-event queue.
type SingleJobExecutor struct {
	Store       *store.Store
	AgentClient *agentclient.Client
	AnalyzedBy  string
}

func (e *SingleJobExecutor) Execute(ctx context.Context, jobID int64) ExecutionResult {
	job, err := e.Store.GetJob(ctx, models.QueueSingle, jobID)
	if err != nil {
		return ExecutionResult{Err: err, Recoverable: true}
	}

	event, err := e.Store.GetEvent(ctx, *job.TargetEventID)
	if err != nil {
		return ExecutionResult{Err: err, Recoverable: true}
	}

	payload := map[string]interface{}{
		"id":        event.ID,
		"timestamp": event.Timestamp,
		"source_ip": event.SourceIP,
		"action":    event.Action,
		"uri":       event.URI,
		"method":    event.Method,
		"rule_name": event.RuleName,
		"country":   event.Country,
	}

	verdict, err := e.AgentClient.AnalyzeEvent(ctx, payload)
	if err != nil {
		return ExecutionResult{Err: err, Recoverable: isRecoverableAgentErr(err)}
	}

	if err := e.Store.UpdateVerdict(ctx, event.ID, *verdict, e.AnalyzedBy); err != nil {
		return ExecutionResult{Err: err, Recoverable: true}
	}

	if err := e.Store.Append(ctx, models.TimelineEntry{
		EventID:   event.ID,
		Type:      models.TimelineTypeAIAnalysis,
		ActorKind: models.ActorKindSystem,
		Title:     "AI analysis completed",
	}); err != nil {
		return ExecutionResult{Err: err, Recoverable: true}
	}

	if verdict.Severity >= models.EscalationSeverityThreshold {
		_, escErr := e.Store.CreateEscalation(ctx, models.EscalationSpec{
			Title:         "High-severity WAF event",
			Message:       verdict.AnalysisText,
			Severity:      verdict.Severity,
			SourceType:    models.SourceTypeEvent,
			SourceEventID: &event.ID,
			Detail: models.DetailPayload{
				IPAddress:         event.SourceIP,
				RecommendedAction: verdict.FollowUpText,
			},
		})
		if escErr != nil {
			return ExecutionResult{Err: escErr, Recoverable: true}
		}
	}

	if err := e.Store.MarkCompleted(ctx, models.QueueSingle, jobID, *verdict); err != nil {
		return ExecutionResult{Err: err, Recoverable: true}
	}
	return ExecutionResult{}
}

// isRecoverableAgentErr classifies an Agent Client failure for the worker's
// retry decision: cold-start failures are recoverable; parse errors and
// explicit agent failures are not — a non-retryable agent error fails the
// job immediately rather than consuming another identical attempt.
func isRecoverableAgentErr(err error) bool {
	if ae, ok := err.(*agentclient.AgentError); ok {
		return ae.Retryable
	}
	if _, ok := err.(*agentclient.ParseError); ok {
		return false
	}
	return true
}
