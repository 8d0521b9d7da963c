package agentclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
)

// LangchainBackend backs the conversational-prompt envelope path: the
// request is rendered as a single free-text prompt and the single-string
// completion is wrapped into a {"result":{"response": "..."}} envelope
// before the parse cascade runs, exercising cascade step 3.
type LangchainBackend struct {
	model llms.Model
}

// NewLangchainBackend constructs a backend over langchaingo's Anthropic
// chat-model wrapper (the same upstream provider as AnthropicBackend, but
// reached through a conversational-completion library instead of the
// structured-message SDK).
func NewLangchainBackend(apiKey, model string) (*LangchainBackend, error) {
	opts := []anthropic.Option{}
	if apiKey != "" {
		opts = append(opts, anthropic.WithToken(apiKey))
	}
	if model != "" {
		opts = append(opts, anthropic.WithModel(model))
	}
	m, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("construct langchaingo anthropic model: %w", err)
	}
	return &LangchainBackend{model: m}, nil
}

func (b *LangchainBackend) Complete(ctx context.Context, agent AgentName, req Request) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	prompt := fmt.Sprintf(
		"Analyze the following WAF security event payload and respond with a single JSON object "+
			"containing severity_rating, security_analysis, and follow_up_suggestion fields.\n\n%s",
		string(payload))

	completion, err := llms.GenerateFromSinglePrompt(ctx, b.model, prompt)
	if err != nil {
		return nil, &AgentError{Agent: agent, Message: err.Error(), Retryable: isRetryableLangchainErr(err)}
	}

	envelope := map[string]interface{}{
		"result": map[string]interface{}{
			"response": completion,
		},
	}
	return json.Marshal(envelope)
}

func isRetryableLangchainErr(err error) bool {
	msg := err.Error()
	for _, m := range coldStartMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
