package config

import "time"

// FileConfig is the on-disk YAML shape, loaded from wafcore.yaml.
type FileConfig struct {
	Queue       *QueueConfig      `yaml:"queue"`
	Agents      *AgentsConfig     `yaml:"agents"`
	Sinks       *SinksConfig      `yaml:"sinks"`
	Grouper     *ScheduleConfig   `yaml:"grouper"`
	Escalation  *EscalationConfig `yaml:"escalation"`
	Campaign    *CampaignConfig   `yaml:"campaign"`
	StuckJobAge string            `yaml:"stuck_job_age,omitempty"`
}

// QueueConfig holds the worker pool sizing per queue.
type QueueConfig struct {
	SingleWorkerCount int `yaml:"single_worker_count,omitempty"`
	SingleConcurrency int `yaml:"single_concurrency_cap,omitempty"`
	GroupWorkerCount  int `yaml:"group_worker_count,omitempty"`
	GroupConcurrency  int `yaml:"group_concurrency_cap,omitempty"`
	PollIntervalMS    int `yaml:"poll_interval_ms,omitempty"`
}

// AgentsConfig selects the backend and model per logical agent and carries
// the shared Anthropic API key.
type AgentsConfig struct {
	AnthropicAPIKeyEnv string             `yaml:"anthropic_api_key_env,omitempty"`
	Single             AgentBackendConfig `yaml:"single"`
	Group              AgentBackendConfig `yaml:"group"`
	Campaign           AgentBackendConfig `yaml:"campaign"`
}

// AgentBackendConfig selects which backend (anthropic or langchain) and
// model serves one logical agent.
type AgentBackendConfig struct {
	Backend string `yaml:"backend"` // "anthropic" or "langchain"
	Model   string `yaml:"model"`
}

// SinksConfig configures the three escalation fan-out destinations.
type SinksConfig struct {
	Slack     SlackSinkConfig   `yaml:"slack"`
	Ticket    TicketSinkYAML    `yaml:"ticket"`
	Blocklist BlocklistSinkYAML `yaml:"blocklist"`
	Limit     int               `yaml:"limit,omitempty"`
}

type SlackSinkConfig struct {
	TokenEnv string `yaml:"token_env,omitempty"`
	Channel  string `yaml:"channel,omitempty"`
}

type TicketSinkYAML struct {
	TokenEnv string `yaml:"token_env,omitempty"`
	Owner    string `yaml:"owner,omitempty"`
	Repo     string `yaml:"repo,omitempty"`
}

type BlocklistSinkYAML struct {
	IPSetID   string `yaml:"ip_set_id,omitempty"`
	IPSetName string `yaml:"ip_set_name,omitempty"`
	Scope     string `yaml:"scope,omitempty"`
	Region    string `yaml:"region,omitempty"`
}

// ScheduleConfig configures a cron-driven periodic component.
type ScheduleConfig struct {
	Schedule string `yaml:"schedule,omitempty"`
}

// EscalationConfig configures the Escalation Processor.
type EscalationConfig struct {
	Schedule string `yaml:"schedule,omitempty"`
	Limit    int    `yaml:"limit,omitempty"`
}

// CampaignConfig configures the campaign monitor's schedule and the lookback
// window it asks the monitor agent to scan on each run.
type CampaignConfig struct {
	Schedule string `yaml:"schedule,omitempty"`
	Lookback string `yaml:"lookback,omitempty"`
}

// Resolved is the fully-merged, defaulted, ready-to-use configuration.
type Resolved struct {
	Queue            QueueConfig
	Agents           AgentsConfig
	Sinks            SinksConfig
	GrouperCron      string
	EscalationCron   string
	EscalationLimit  int
	CampaignCron     string
	CampaignLookback time.Duration
	StuckJobAge      time.Duration
}
