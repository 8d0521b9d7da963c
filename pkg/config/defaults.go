package config

import "time"

// DefaultQueueConfig mirrors pkg/worker.DefaultConfig's numbers so the two
// packages agree when no YAML override is present.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		SingleWorkerCount: 2,
		SingleConcurrency: 5,
		GroupWorkerCount:  1,
		GroupConcurrency:  2,
		PollIntervalMS:    3000,
	}
}

func defaultAgentsConfig() *AgentsConfig {
	return &AgentsConfig{
		AnthropicAPIKeyEnv: "ANTHROPIC_API_KEY",
		Single:             AgentBackendConfig{Backend: "anthropic", Model: "claude-3-5-haiku-latest"},
		Group:              AgentBackendConfig{Backend: "anthropic", Model: "claude-3-5-sonnet-latest"},
		Campaign:           AgentBackendConfig{Backend: "langchain", Model: "claude-3-5-sonnet-latest"},
	}
}

func defaultSinksConfig() *SinksConfig {
	return &SinksConfig{
		Slack:  SlackSinkConfig{TokenEnv: "SLACK_BOT_TOKEN"},
		Ticket: TicketSinkYAML{TokenEnv: "GITHUB_TOKEN"},
		Blocklist: BlocklistSinkYAML{
			Scope:  "REGIONAL",
			Region: "us-east-1",
		},
		Limit: 100,
	}
}

const (
	defaultGrouperSchedule    = "*/1 * * * *"
	defaultEscalationSchedule = "*/5 * * * *"
	defaultCampaignSchedule   = "*/15 * * * *"
	defaultCampaignLookback   = 30 * time.Minute
	defaultStuckJobAge        = 5 * time.Minute
)
