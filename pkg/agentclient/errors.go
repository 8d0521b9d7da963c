package agentclient

import "fmt"

// AgentError is returned by a failed agent call. Retryable distinguishes
// cold-start/runtime-startup errors (retried at this layer) from parse
// errors and explicit agent failures (not retried here — the job's own
// attempt counter still governs further retries).
type AgentError struct {
	Agent     AgentName
	Message   string
	Retryable bool
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent %s: %s", e.Agent, e.Message)
}

// ParseError reports that the response body did not match any step of the
// parse cascade.
type ParseError struct {
	Reason string
	Body   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("agent response parse failed: %s", e.Reason)
}
