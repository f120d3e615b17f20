package models

import (
	"fmt"
	"strings"
)

// Environment selects where an intent is executed
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentStaging    Environment = "staging"
	EnvironmentProduction Environment = "production"
)

// IsValid reports whether e is one of the known environments.
func (e Environment) IsValid() bool {
	switch e {
	case EnvironmentSandbox, EnvironmentStaging, EnvironmentProduction:
		return true
	default:
		return false
	}
}

// IntentStatus is the lifecycle state of an executed intent
type IntentStatus string

const (
	IntentAccepted IntentStatus = "accepted"
	IntentExecuted IntentStatus = "executed"
	IntentFailed   IntentStatus = "failed"
)

// Intent actions a channel may support
const (
	ActionPublishPost = "publish_post"
	ActionSendAlert   = "send_alert"
)

// IntentContent is the material to publish
type IntentContent struct {
	Title     string   `json:"title,omitempty"`
	Body      string   `json:"body"`
	MediaRefs []string `json:"mediaRefs,omitempty"`
}

// ExecutionIntent is a caller-declared publishing action
type ExecutionIntent struct {
	IntentID string            `json:"intentId"`
	PlanID   string            `json:"planId,omitempty"`
	TaskID   string            `json:"taskId,omitempty"`
	Action   string            `json:"action"`
	Channel  string            `json:"channel"`
	Target   string            `json:"target,omitempty"`
	Content  IntentContent     `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ExecutionIntentRequest asks the publish skill to execute one intent
type ExecutionIntentRequest struct {
	Intent      ExecutionIntent `json:"intent"`
	Environment Environment     `json:"environment"`
}

// ExecutionIntentResponse reports how an intent ended
type ExecutionIntentResponse struct {
	IntentID    string       `json:"intentId"`
	Status      IntentStatus `json:"status"`
	ExternalRef *string      `json:"externalRef,omitempty"`
	Error       *ErrorObject `json:"error,omitempty"`
}

// Validate checks the environment and the fields every channel needs.
func (r *ExecutionIntentRequest) Validate() error {
	if !r.Environment.IsValid() {
		return validationError("environment", fmt.Sprintf("%q is not one of sandbox, staging, production", r.Environment))
	}
	if strings.TrimSpace(r.Intent.IntentID) == "" {
		return validationError("intent.intentId", "must not be empty")
	}
	if strings.TrimSpace(r.Intent.Action) == "" {
		return validationError("intent.action", "must name a target action")
	}
	if strings.TrimSpace(r.Intent.Channel) == "" {
		return validationError("intent.channel", "must not be empty")
	}
	return nil
}

// NewAccepted starts the lifecycle of an intent.
func NewAccepted(intentID string) *ExecutionIntentResponse {
	return &ExecutionIntentResponse{IntentID: intentID, Status: IntentAccepted}
}

// MarkExecuted moves an accepted intent to executed.
func (r *ExecutionIntentResponse) MarkExecuted(externalRef string) error {
	if r.Status != IntentAccepted {
		return fmt.Errorf("invalid transition for intent %q: %s -> %s", r.IntentID, r.Status, IntentExecuted)
	}
	if externalRef == "" {
		return fmt.Errorf("intent %q executed without an external reference", r.IntentID)
	}
	r.Status = IntentExecuted
	r.ExternalRef = &externalRef
	r.Error = nil
	return nil
}

// MarkFailed moves an accepted intent to failed.
func (r *ExecutionIntentResponse) MarkFailed(cause error) error {
	if r.Status != IntentAccepted {
		return fmt.Errorf("invalid transition for intent %q: %s -> %s", r.IntentID, r.Status, IntentFailed)
	}
	msg := "unknown failure"
	if cause != nil {
		msg = cause.Error()
	}
	r.Status = IntentFailed
	r.ExternalRef = nil
	r.Error = &ErrorObject{Kind: KindExecutionFailure, Message: msg}
	return nil
}
