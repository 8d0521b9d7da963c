package agentclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicBackend backs the structured envelope path: the request payload
// is sent as-is (JSON-encoded) in a single user turn, and the response is
// handed back in the SDK's own {role, content[].text} shape so the parse
// cascade's step 2 applies uniformly whether the upstream agent responded
// natively or this backend is fronting it.
type AnthropicBackend struct {
	client anthropic.Client
	models map[AgentName]string
}

// NewAnthropicBackend constructs a backend using the given API key (falls
// back to ANTHROPIC_API_KEY when empty) and per-agent model handles.
func NewAnthropicBackend(apiKey string, models map[AgentName]string) *AnthropicBackend {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &AnthropicBackend{
		client: anthropic.NewClient(opts...),
		models: models,
	}
}

func (b *AnthropicBackend) Complete(ctx context.Context, agent AgentName, req Request) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	model := b.models[agent]
	if model == "" {
		model = anthropic.ModelClaude3_7SonnetLatest
	}

	msg, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(string(payload))),
		},
	})
	if err != nil {
		return nil, &AgentError{Agent: agent, Message: err.Error(), Retryable: isRetryableAnthropicErr(err)}
	}

	text := ""
	if len(msg.Content) > 0 {
		text = msg.Content[0].Text
	}

	envelope := map[string]interface{}{
		"result": map[string]interface{}{
			"role": "assistant",
			"content": []map[string]string{
				{"text": text},
			},
		},
	}
	return json.Marshal(envelope)
}

func isRetryableAnthropicErr(err error) bool {
	msg := err.Error()
	for _, m := range coldStartMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
