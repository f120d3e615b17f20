// Package publish implements the publish intent execution skill. Each intent
// is routed to a channel and moves from accepted to executed or failed.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chimera-labs/trend-skills/internal/config"
	"github.com/chimera-labs/trend-skills/internal/metrics"
	"github.com/chimera-labs/trend-skills/internal/models"
	"github.com/chimera-labs/trend-skills/internal/storage"
	"github.com/sirupsen/logrus"
)

// AuditPrefix is where every executed or failed intent is recorded
const AuditPrefix = "intents/"

// AuditRecord is the stored trail for one intent
type AuditRecord struct {
	Request    models.ExecutionIntentRequest  `json:"request"`
	Response   models.ExecutionIntentResponse `json:"response"`
	Channel    string                         `json:"channel"`
	ExecutedAt time.Time                      `json:"executedAt"`
}

// Executor runs intents against registered channels
type Executor struct {
	channels map[string]Channel
	sandbox  *SandboxChannel
	storage  storage.StorageInterface
	metrics  *metrics.Metrics
}

// DefaultChannels returns the Teams and email channels. They stay
// registered without configuration and fail per intent instead.
func DefaultChannels(cfg *config.Config) []Channel {
	return []Channel{NewTeamsChannel(cfg), NewEmailChannel(cfg)}
}

// NewExecutor creates an executor. The sandbox channel is always present.
func NewExecutor(store storage.StorageInterface, m *metrics.Metrics, channels ...Channel) *Executor {
	sandbox := NewSandboxChannel()
	e := &Executor{
		channels: map[string]Channel{sandbox.Name(): sandbox},
		sandbox:  sandbox,
		storage:  store,
		metrics:  m,
	}
	for _, c := range channels {
		e.channels[strings.ToLower(c.Name())] = c
	}
	return e
}

// Sandbox exposes the in-memory channel used for the sandbox environment.
func (e *Executor) Sandbox() *SandboxChannel {
	return e.sandbox
}

// Run executes one intent. Malformed requests are returned as errors;
// delivery failures come back as a response with status failed.
func (e *Executor) Run(ctx context.Context, request models.ExecutionIntentRequest) (*models.ExecutionIntentResponse, error) {
	start := time.Now()
	resp, err := e.run(ctx, request)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = models.ErrorKind(err)
	case resp.Status == models.IntentFailed:
		outcome = models.KindExecutionFailure
	}
	if resp != nil {
		e.metrics.ObserveIntent(string(request.Environment), string(resp.Status))
	}
	e.metrics.ObserveSkill(metrics.SkillPublishIntent, outcome, time.Since(start))

	return resp, err
}

func (e *Executor) run(ctx context.Context, request models.ExecutionIntentRequest) (*models.ExecutionIntentResponse, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	intent := request.Intent
	named, ok := e.channels[strings.ToLower(intent.Channel)]
	if !ok {
		return nil, models.Validationf("intent.channel", "%q is not a registered channel", intent.Channel)
	}
	if !named.Supports(intent.Action) {
		return nil, models.Validationf("intent.action", "%q is not supported by channel %s", intent.Action, named.Name())
	}

	target := named
	if request.Environment == models.EnvironmentSandbox {
		target = e.sandbox
	}

	log := logrus.WithFields(logrus.Fields{
		"intentId":    intent.IntentID,
		"planId":      intent.PlanID,
		"taskId":      intent.TaskID,
		"environment": request.Environment,
		"channel":     target.Name(),
	})

	resp := models.NewAccepted(intent.IntentID)
	log.Infof("Executing %s intent", intent.Action)

	ref, err := target.Publish(ctx, request.Environment, cloneIntent(intent))
	if err == nil {
		err = resp.MarkExecuted(ref)
	}
	if err != nil {
		log.Errorf("Intent execution failed: %v", err)
		if markErr := resp.MarkFailed(fmt.Errorf("%s: %w", target.Name(), err)); markErr != nil {
			return nil, markErr
		}
	} else {
		log.Infof("Intent executed (ref %s)", ref)
	}

	if err := e.audit(ctx, request, resp, target.Name()); err != nil {
		log.Errorf("Failed to store intent audit record: %v", err)
	}

	return resp, nil
}

func (e *Executor) audit(ctx context.Context, request models.ExecutionIntentRequest, resp *models.ExecutionIntentResponse, channel string) error {
	if e.storage == nil {
		return nil
	}

	data, err := json.Marshal(AuditRecord{
		Request:    request,
		Response:   *resp,
		Channel:    channel,
		ExecutedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	return e.storage.Store(ctx, AuditPrefix+request.Intent.IntentID+".json", data)
}

func cloneIntent(intent models.ExecutionIntent) models.ExecutionIntent {
	out := intent
	if intent.Content.MediaRefs != nil {
		out.Content.MediaRefs = append([]string(nil), intent.Content.MediaRefs...)
	}
	if intent.Metadata != nil {
		out.Metadata = make(map[string]string, len(intent.Metadata))
		for k, v := range intent.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
