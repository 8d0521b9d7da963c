package config

import (
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Load reads wafcore.yaml from configPath, layers it over built-in
// defaults with mergo (user values override, zero values inherit the
// default), and returns the resolved configuration.
func Load(configPath string) (*Resolved, error) {
	file, err := loadFile(configPath)
	if err != nil {
		return nil, err
	}

	queue := DefaultQueueConfig()
	if file.Queue != nil {
		if err := mergo.Merge(queue, file.Queue, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge queue config: %w", err)
		}
	}

	agents := defaultAgentsConfig()
	if file.Agents != nil {
		if err := mergo.Merge(agents, file.Agents, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge agents config: %w", err)
		}
	}

	sinks := defaultSinksConfig()
	if file.Sinks != nil {
		if err := mergo.Merge(sinks, file.Sinks, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge sinks config: %w", err)
		}
	}

	grouperSchedule := defaultGrouperSchedule
	if file.Grouper != nil && file.Grouper.Schedule != "" {
		grouperSchedule = file.Grouper.Schedule
	}

	escalationSchedule := defaultEscalationSchedule
	escalationLimit := sinks.Limit
	if file.Escalation != nil {
		if file.Escalation.Schedule != "" {
			escalationSchedule = file.Escalation.Schedule
		}
		if file.Escalation.Limit > 0 {
			escalationLimit = file.Escalation.Limit
		}
	}

	campaignSchedule := defaultCampaignSchedule
	campaignLookback := defaultCampaignLookback
	if file.Campaign != nil {
		if file.Campaign.Schedule != "" {
			campaignSchedule = file.Campaign.Schedule
		}
		if file.Campaign.Lookback != "" {
			d, err := time.ParseDuration(file.Campaign.Lookback)
			if err != nil {
				return nil, fmt.Errorf("invalid campaign.lookback %q: %w", file.Campaign.Lookback, err)
			}
			campaignLookback = d
		}
	}

	stuckAge := defaultStuckJobAge
	if file.StuckJobAge != "" {
		d, err := time.ParseDuration(file.StuckJobAge)
		if err != nil {
			return nil, fmt.Errorf("invalid stuck_job_age %q: %w", file.StuckJobAge, err)
		}
		stuckAge = d
	}

	return &Resolved{
		Queue:            *queue,
		Agents:           *agents,
		Sinks:            *sinks,
		GrouperCron:      grouperSchedule,
		EscalationCron:   escalationSchedule,
		EscalationLimit:  escalationLimit,
		CampaignCron:     campaignSchedule,
		CampaignLookback: campaignLookback,
		StuckJobAge:      stuckAge,
	}, nil
}

func loadFile(path string) (*FileConfig, error) {
	var cfg FileConfig
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, NewLoadError(path, err)
	}

	data = ExpandEnv(data)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return &cfg, nil
}
