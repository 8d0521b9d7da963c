package worker

import (
	"context"

	"github.com/codeready-toolchain/wafcore/pkg/agentclient"
	"github.com/codeready-toolchain/wafcore/pkg/models"
	"github.com/codeready-toolchain/wafcore/pkg/store"
)

// GroupJobExecutor implements JobExecutor for the grouped-analysis queue.
type GroupJobExecutor struct {
	Store       *store.Store
	AgentClient *agentclient.Client
	AnalyzedBy  string
}

func (e *GroupJobExecutor) Execute(ctx context.Context, jobID int64) ExecutionResult {
	job, err := e.Store.GetJob(ctx, models.QueueGroup, jobID)
	if err != nil {
		return ExecutionResult{Err: err, Recoverable: true}
	}

	members, err := e.Store.ListGroupMembers(ctx, *job.TargetGroupID)
	if err != nil {
		return ExecutionResult{Err: err, Recoverable: true}
	}
	if len(members) == 0 {
		return ExecutionResult{Err: store.ErrNotFound, Recoverable: false}
	}

	summary := models.BuildGroupSummary(members)
	fields := make([]models.GroupMemberFields, 0, len(members))
	eventIDs := make([]int64, 0, len(members))
	for _, m := range members {
		fields = append(fields, models.ProjectMemberFields(m))
		eventIDs = append(eventIDs, m.ID)
	}

	verdict, err := e.AgentClient.AnalyzeGroup(ctx, summary, fields)
	if err != nil {
		return ExecutionResult{Err: err, Recoverable: isRecoverableAgentErr(err)}
	}

	updatedIDs, err := e.Store.UpdateGroupVerdict(ctx, *job.TargetGroupID, *verdict, e.AnalyzedBy)
	if err != nil {
		return ExecutionResult{Err: err, Recoverable: true}
	}

	if err := e.Store.BulkAppend(ctx, updatedIDs, models.TimelineEntry{
		Type:      models.TimelineTypeAIAnalysis,
		ActorKind: models.ActorKindSystem,
		Title:     "AI analysis completed (group)",
	}); err != nil {
		return ExecutionResult{Err: err, Recoverable: true}
	}

	if verdict.Severity >= models.EscalationSeverityThreshold {
		detail := models.DetailPayload{
			AffectedEventIDs:  updatedIDs,
			AttackType:        verdict.AttackType,
			RecommendedAction: verdict.FollowUpText,
		}
		if len(members) > 0 {
			detail.IPAddress = members[0].SourceIP
		}
		_, escErr := e.Store.CreateEscalation(ctx, models.EscalationSpec{
			Title:         "High-severity WAF campaign",
			Message:       verdict.AnalysisText,
			Severity:      verdict.Severity,
			SourceType:    models.SourceTypeGroup,
			SourceGroupID: job.TargetGroupID,
			Detail:        detail,
		})
		if escErr != nil {
			return ExecutionResult{Err: escErr, Recoverable: true}
		}
	}

	if err := e.Store.MarkCompleted(ctx, models.QueueGroup, jobID, *verdict); err != nil {
		return ExecutionResult{Err: err, Recoverable: true}
	}
	return ExecutionResult{}
}
