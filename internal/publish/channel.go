package publish

import (
	"context"

	"github.com/chimera-labs/trend-skills/internal/models"
)

// Channel is an external publishing target
type Channel interface {
	Name() string
	Supports(action string) bool
	// Publish delivers the intent to the environment's target and returns an
	// external reference for the delivery.
	Publish(ctx context.Context, env models.Environment, intent models.ExecutionIntent) (string, error)
}

func supportsAction(action string) bool {
	return action == models.ActionPublishPost || action == models.ActionSendAlert
}
