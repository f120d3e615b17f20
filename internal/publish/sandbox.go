package publish

import (
	"context"
	"sync"
	"time"

	"github.com/chimera-labs/trend-skills/internal/models"
	"github.com/google/uuid"
)

// Delivery is one intent recorded by the sandbox channel
type Delivery struct {
	Ref         string                 `json:"ref"`
	Environment models.Environment     `json:"environment"`
	Intent      models.ExecutionIntent `json:"intent"`
	DeliveredAt time.Time              `json:"deliveredAt"`
}

// SandboxChannel keeps deliveries in memory and never leaves the process
type SandboxChannel struct {
	mu         sync.Mutex
	deliveries []Delivery
}

// Ensure SandboxChannel implements Channel
var _ Channel = (*SandboxChannel)(nil)

func NewSandboxChannel() *SandboxChannel {
	return &SandboxChannel{}
}

func (c *SandboxChannel) Name() string {
	return "sandbox"
}

func (c *SandboxChannel) Supports(action string) bool {
	return supportsAction(action)
}

func (c *SandboxChannel) Publish(ctx context.Context, env models.Environment, intent models.ExecutionIntent) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ref := "sandbox:" + uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.deliveries = append(c.deliveries, Delivery{
		Ref:         ref,
		Environment: env,
		Intent:      intent,
		DeliveredAt: time.Now().UTC(),
	})

	return ref, nil
}

// Deliveries returns a copy of everything delivered so far.
func (c *SandboxChannel) Deliveries() []Delivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Delivery, len(c.deliveries))
	copy(out, c.deliveries)
	return out
}
