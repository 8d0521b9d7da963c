package agentclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdict_Step1_TopLevelVerdictFields(t *testing.T) {
	body := []byte(`{"severity_rating": 4, "security_analysis": "SQLi probe", "follow_up_suggestion": "block IP"}`)

	v, err := parseVerdict(body)

	require.NoError(t, err)
	assert.Equal(t, 4, v.Severity)
	assert.Equal(t, "SQLi probe", v.AnalysisText)
	assert.Equal(t, "block IP", v.FollowUpText)
}

func TestParseVerdict_Step1_AlternateFieldNames(t *testing.T) {
	body := []byte(`{"severity": 2, "analysis_text": "low risk", "follow_up_or_actions_text": "monitor"}`)

	v, err := parseVerdict(body)

	require.NoError(t, err)
	assert.Equal(t, 2, v.Severity)
	assert.Equal(t, "low risk", v.AnalysisText)
	assert.Equal(t, "monitor", v.FollowUpText)
}

func TestParseVerdict_Step2_AssistantContentEnvelope(t *testing.T) {
	body := []byte(`{"result": {"role": "assistant", "content": [{"text": "{\"severity\": 5, \"analysis_text\": \"campaign detected\"}"}]}}`)

	v, err := parseVerdict(body)

	require.NoError(t, err)
	assert.Equal(t, 5, v.Severity)
	assert.Equal(t, "campaign detected", v.AnalysisText)
}

func TestParseVerdict_Step2_FencedJSONBlock(t *testing.T) {
	body := []byte("{\"result\": {\"role\": \"assistant\", \"content\": [{\"text\": \"```json\\n{\\\"severity\\\": 3, \\\"analysis_text\\\": \\\"fenced\\\"}\\n```\"}]}}")

	v, err := parseVerdict(body)

	require.NoError(t, err)
	assert.Equal(t, 3, v.Severity)
	assert.Equal(t, "fenced", v.AnalysisText)
}

func TestParseVerdict_Step3_ResponseStringEnvelope(t *testing.T) {
	body := []byte(`{"result": {"response": "{\"severity\": 1, \"analysis_text\": \"benign\"}"}}`)

	v, err := parseVerdict(body)

	require.NoError(t, err)
	assert.Equal(t, 1, v.Severity)
	assert.Equal(t, "benign", v.AnalysisText)
}

func TestParseVerdict_Step4_NestedResultObject(t *testing.T) {
	body := []byte(`{"result": {"result": {"severity": 4, "analysis_text": "nested"}}}`)

	v, err := parseVerdict(body)

	require.NoError(t, err)
	assert.Equal(t, 4, v.Severity)
	assert.Equal(t, "nested", v.AnalysisText)
}

func TestParseVerdict_AttackTypePassesThrough(t *testing.T) {
	body := []byte(`{"severity": 5, "attack_type": "sql_injection"}`)

	v, err := parseVerdict(body)

	require.NoError(t, err)
	assert.Equal(t, "sql_injection", v.AttackType)
}

func TestParseVerdict_NotJSON(t *testing.T) {
	_, err := parseVerdict([]byte("not json at all"))

	require.Error(t, err)
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestParseVerdict_NoVerdictFieldsAnywhere(t *testing.T) {
	_, err := parseVerdict([]byte(`{"foo": "bar"}`))

	require.Error(t, err)
}

func TestParseVerdict_RecursionLimitExceeded(t *testing.T) {
	body := []byte(`{"result": {"result": {"result": {"result": {"result": {"result": {"result": {"result": {"result": {"result": {"result": {"result": {}}}}}}}}}}}}}`)

	_, err := parseVerdict(body)

	require.Error(t, err)
}

func TestParseCampaigns_DirectArray(t *testing.T) {
	body := []byte(`{"campaigns": [{"title": "Credential stuffing", "severity": 4, "affected_event_ids": [1, 2, 3]}]}`)

	campaigns, err := parseCampaigns(body)

	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	assert.Equal(t, "Credential stuffing", campaigns[0].Title)
	assert.Equal(t, 4, campaigns[0].Severity)
	assert.Equal(t, []int64{1, 2, 3}, campaigns[0].AffectedEventIDs)
}

func TestParseCampaigns_AssistantEnvelope(t *testing.T) {
	body := []byte(`{"result": {"role": "assistant", "content": [{"text": "{\"campaigns\": [{\"title\": \"Scraper sweep\", \"severity\": 2, \"affected_event_ids\": []}]}"}]}}`)

	campaigns, err := parseCampaigns(body)

	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	assert.Equal(t, "Scraper sweep", campaigns[0].Title)
}

func TestParseCampaigns_NoCampaignsField(t *testing.T) {
	_, err := parseCampaigns([]byte(`{"foo": "bar"}`))

	require.Error(t, err)
}

func TestAgentError_Error(t *testing.T) {
	err := &AgentError{Agent: AgentSingleAnalyzer, Message: "timeout", Retryable: true}

	assert.Equal(t, "agent single_analyzer: timeout", err.Error())
}
