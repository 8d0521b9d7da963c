// Package config loads wafcore's process configuration: queue sizing, agent
// backend selection, and sink credentials from a YAML file, with
// environment-variable expansion and defaults merged in with mergo.
package config

import "fmt"

// Validate checks for configuration combinations that would fail at
// runtime in a way better caught at startup.
func (r *Resolved) Validate() error {
	if r.Queue.SingleWorkerCount <= 0 {
		return fmt.Errorf("%w: queue.single_worker_count must be positive", ErrValidationFailed)
	}
	if r.Queue.GroupWorkerCount <= 0 {
		return fmt.Errorf("%w: queue.group_worker_count must be positive", ErrValidationFailed)
	}
	for name, backend := range map[string]AgentBackendConfig{
		"single":   r.Agents.Single,
		"group":    r.Agents.Group,
		"campaign": r.Agents.Campaign,
	} {
		if backend.Backend != "anthropic" && backend.Backend != "langchain" {
			return fmt.Errorf("%w: agents.%s.backend must be \"anthropic\" or \"langchain\", got %q",
				ErrValidationFailed, name, backend.Backend)
		}
	}
	return nil
}
