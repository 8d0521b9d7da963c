package agentclient

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/codeready-toolchain/wafcore/pkg/models"
)

// fencedJSONBlock matches a fenced ```json ... ``` or ``` ... ``` code block.
var fencedJSONBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// balancedJSONObject locates the first brace-to-brace span. It is not a
// true balanced-brace matcher (greedy regex can't be, for nested braces),
// but combined with json.Unmarshal's own validation below it is sufficient
// for the envelopes this cascade sees in practice: one JSON object per text
// blob.
var balancedJSONObject = regexp.MustCompile(`(?s)\{.*\}`)

type verdictEnvelope struct {
	SeverityRating       *int     `json:"severity_rating"`
	Severity             *int     `json:"severity"`
	SecurityAnalysis     string   `json:"security_analysis"`
	AnalysisText         string   `json:"analysis_text"`
	FollowUpSuggestion   string   `json:"follow_up_suggestion"`
	FollowUpText         string   `json:"follow_up_or_actions_text"`
	RecommendedActions   string   `json:"recommended_actions"`
	AttackType           string   `json:"attack_type"`

	Result json.RawMessage `json:"result"`
}

type assistantResult struct {
	Role    string `json:"role"`
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Response string          `json:"response"`
	Result   json.RawMessage `json:"result"`
}

// parseVerdict runs the parse cascade: verdict fields at the top level, the
// JSON object in an assistant message's content text, a result.response
// string, then a nested result object; anything else is a *ParseError.
func parseVerdict(body []byte) (*models.Verdict, error) {
	env, err := cascadeToEnvelope(body, 0)
	if err != nil {
		return nil, err
	}
	return envelopeToVerdict(env), nil
}

// cascadeToEnvelope runs steps 1-4 of the cascade, returning the first
// object that looks like a verdict envelope.
func cascadeToEnvelope(body []byte, depth int) (*verdictEnvelope, error) {
	if depth > 5 {
		return nil, &ParseError{Reason: "cascade recursion limit exceeded"}
	}

	var env verdictEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &ParseError{Reason: "not valid JSON: " + err.Error(), Body: string(body)}
	}

	// Step 1: does the top-level object already carry verdict fields?
	if env.SeverityRating != nil || env.Severity != nil {
		return &env, nil
	}

	if len(env.Result) == 0 {
		return nil, &ParseError{Reason: "no verdict fields and no result envelope", Body: string(body)}
	}

	var res assistantResult
	if err := json.Unmarshal(env.Result, &res); err != nil {
		return nil, &ParseError{Reason: "result is not an object: " + err.Error()}
	}

	// Step 2: result.role == "assistant" with content[0].text.
	if res.Role == "assistant" && len(res.Content) > 0 {
		extracted, err := extractJSONObject(res.Content[0].Text)
		if err != nil {
			return nil, err
		}
		return cascadeToEnvelope(extracted, depth+1)
	}

	// Step 3: result.response as a string, same extraction as step 2.
	if res.Response != "" {
		extracted, err := extractJSONObject(res.Response)
		if err != nil {
			return nil, err
		}
		return cascadeToEnvelope(extracted, depth+1)
	}

	// Step 4: result as a sub-object, repeat from step 1.
	if len(res.Result) > 0 {
		return cascadeToEnvelope(res.Result, depth+1)
	}

	// result itself may directly be the verdict object.
	return cascadeToEnvelope(env.Result, depth+1)
}

// extractJSONObject strips a fenced code block if present, then locates the
// first balanced-looking JSON object span.
func extractJSONObject(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if m := fencedJSONBlock.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	match := balancedJSONObject.FindString(text)
	if match == "" {
		return nil, &ParseError{Reason: "no JSON object found in assistant text", Body: text}
	}
	return []byte(match), nil
}

func envelopeToVerdict(env *verdictEnvelope) *models.Verdict {
	v := &models.Verdict{}
	if env.SeverityRating != nil {
		v.Severity = *env.SeverityRating
	} else if env.Severity != nil {
		v.Severity = *env.Severity
	}

	v.AnalysisText = firstNonEmpty(env.SecurityAnalysis, env.AnalysisText)
	v.FollowUpText = firstNonEmpty(env.FollowUpSuggestion, env.FollowUpText, env.RecommendedActions)
	v.AttackType = env.AttackType
	return v
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseCampaigns parses the monitor agent's list-of-campaigns response,
// applying the same envelope-unwrapping cascade used for single verdicts.
func parseCampaigns(body []byte) ([]Campaign, error) {
	var direct struct {
		Campaigns []Campaign      `json:"campaigns"`
		Result    json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &direct); err != nil {
		return nil, &ParseError{Reason: "not valid JSON: " + err.Error()}
	}
	if direct.Campaigns != nil {
		return direct.Campaigns, nil
	}

	if len(direct.Result) == 0 {
		return nil, &ParseError{Reason: "no campaigns field and no result envelope"}
	}

	var res assistantResult
	if err := json.Unmarshal(direct.Result, &res); err != nil {
		return nil, &ParseError{Reason: "result is not an object: " + err.Error()}
	}
	var textSrc string
	switch {
	case res.Role == "assistant" && len(res.Content) > 0:
		textSrc = res.Content[0].Text
	case res.Response != "":
		textSrc = res.Response
	default:
		return nil, &ParseError{Reason: "no campaign text found"}
	}

	extracted, err := extractJSONObject(textSrc)
	if err != nil {
		return nil, err
	}
	return parseCampaigns(extracted)
}
