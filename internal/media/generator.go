// Package media implements the media generation skill. Generation itself
// is delegated to a Backend; the generator enforces the request's budget
// and latency bounds and records where the asset came from.
package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/chimera-labs/trend-skills/internal/config"
	"github.com/chimera-labs/trend-skills/internal/metrics"
	"github.com/chimera-labs/trend-skills/internal/models"
	"github.com/chimera-labs/trend-skills/internal/storage"
	"github.com/sirupsen/logrus"
)

// AssetPrefix is where generated assets are persisted
const AssetPrefix = "media/"

// Generator runs media generation requests against its backends
type Generator struct {
	backends      []Backend
	storage       storage.StorageInterface
	metrics       *metrics.Metrics
	defaultBudget float64
	now           func() time.Time
}

// DefaultBackends returns the HTTP backend when one is configured, then the
// offline template backend. Earlier backends win while they fit the request
// budget, so a text request the HTTP backend cannot afford falls back to the
// free template backend.
func DefaultBackends(cfg *config.Config) []Backend {
	var backends []Backend
	if cfg.MediaBackendURL != "" {
		backends = append(backends, NewHTTPBackend(cfg.MediaBackendURL, cfg.MediaBackendAPIKey))
	}
	return append(backends, NewTemplateBackend())
}

// NewGenerator creates a generator. store and m may be nil.
func NewGenerator(cfg *config.Config, store storage.StorageInterface, m *metrics.Metrics, backends ...Backend) *Generator {
	return &Generator{
		backends:      backends,
		storage:       store,
		metrics:       m,
		defaultBudget: cfg.MediaDefaultBudgetUSD,
		now:           time.Now,
	}
}

// SetClock replaces the generator's clock.
func (g *Generator) SetClock(now func() time.Time) {
	g.now = now
}

// Run generates one asset. Unsupported types, budget overruns and latency
// overruns are returned as errors, never as partial responses.
func (g *Generator) Run(ctx context.Context, request models.MediaGenerationRequest) (*models.MediaGenerationResponse, error) {
	start := time.Now()
	resp, err := g.run(ctx, request)
	outcome := "ok"
	if err != nil {
		outcome = models.ErrorKind(err)
	} else {
		g.metrics.AddMediaCost(string(resp.Output.Type), resp.CostUSD)
	}
	g.metrics.ObserveSkill(metrics.SkillGenerateMedia, outcome, time.Since(start))
	return resp, err
}

func (g *Generator) run(ctx context.Context, request models.MediaGenerationRequest) (*models.MediaGenerationResponse, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	log := logrus.WithFields(logrus.Fields{
		"taskId":    request.TaskID,
		"planId":    request.PlanID,
		"requestId": request.Trace.RequestID,
		"type":      request.Type,
	})

	budget := g.defaultBudget
	if request.Constraints.BudgetUSD != nil {
		budget = *request.Constraints.BudgetUSD
	}

	backend, estimate := g.selectBackend(request, budget)
	if estimate > budget {
		return nil, models.BudgetExceededf("estimated cost %.4f USD exceeds budget %.4f USD", estimate, budget)
	}

	if backend == nil {
		return nil, models.UnsupportedTypef("no backend configured for %q", request.Type)
	}

	startedAt := g.now().UTC()

	genCtx := ctx
	if limit := request.Constraints.MaxLatencySec; limit > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, time.Duration(limit)*time.Second)
		defer cancel()
	}

	log.Infof("Generating %s asset with %s backend (estimate %.4f USD, budget %.4f USD)", request.Type, backend.Name(), estimate, budget)

	result, err := backend.Generate(genCtx, request)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, models.LatencyExceededf("generation did not finish within %ds", request.Constraints.MaxLatencySec)
		}
		return nil, fmt.Errorf("%s backend failed: %w", backend.Name(), err)
	}
	if genCtx.Err() != nil && ctx.Err() == nil {
		return nil, models.LatencyExceededf("generation did not finish within %ds", request.Constraints.MaxLatencySec)
	}

	cost := result.CostUSD
	if math.IsNaN(cost) || math.IsInf(cost, 0) || cost < 0 {
		cost = 0
	}
	if cost > budget {
		return nil, models.BudgetExceededf("backend reported cost %.4f USD exceeds budget %.4f USD", cost, budget)
	}

	output := result.Output
	output.Type = request.Type

	evidence := []models.Evidence{
		{Kind: "backend", Ref: backend.Name(), Detail: result.Model},
		{Kind: "prompt", Ref: promptDigest(request.Brief)},
	}
	for _, ref := range request.Brief.TrendRefs {
		evidence = append(evidence, models.Evidence{Kind: "trend", Ref: ref})
	}

	if key, err := g.persist(ctx, request, output.MimeType, result.Data); err != nil {
		log.Errorf("Failed to store generated asset: %v", err)
	} else if key != "" {
		evidence = append(evidence, models.Evidence{Kind: "storage", Ref: key, Detail: output.MimeType})
		if output.URI == "" {
			output.URI = key
		}
	}

	endedAt := g.now().UTC()
	if endedAt.Before(startedAt) {
		endedAt = startedAt
	}

	log.Infof("Generated %s asset (%d bytes, cost %.4f USD)", request.Type, output.Bytes, cost)

	return &models.MediaGenerationResponse{
		TaskID:     request.TaskID,
		PlanID:     request.PlanID,
		Output:     output,
		Evidence:   evidence,
		Confidence: models.ClampConfidence(result.Confidence),
		CostUSD:    cost,
		StartedAt:  startedAt,
		EndedAt:    endedAt,
	}, nil
}

// selectBackend returns the first backend that supports the request type and
// whose estimate fits the budget. When none fits, the cheapest supporting
// backend is returned with its estimate so the caller reports the overrun.
// Without a supporting backend the default price table still decides whether
// the request could ever fit its budget.
func (g *Generator) selectBackend(request models.MediaGenerationRequest, budget float64) (Backend, float64) {
	var cheapest Backend
	cheapestEstimate := math.Inf(1)
	for _, b := range g.backends {
		if !b.Supports(request.Type) {
			continue
		}
		estimate := b.Estimate(request)
		if estimate <= budget {
			return b, estimate
		}
		if estimate < cheapestEstimate {
			cheapest, cheapestEstimate = b, estimate
		}
	}
	if cheapest == nil {
		return nil, EstimateCost(DefaultPrices, request)
	}
	return cheapest, cheapestEstimate
}

func (g *Generator) persist(ctx context.Context, request models.MediaGenerationRequest, mimeType string, data []byte) (string, error) {
	if g.storage == nil || len(data) == 0 {
		return "", nil
	}
	key := AssetKey(request.PlanID, request.TaskID, mimeType)
	if err := g.storage.Store(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}

// AssetKey is the storage key for a generated asset.
func AssetKey(planID, taskID, mimeType string) string {
	return fmt.Sprintf("%s%s/%s.%s", AssetPrefix, planID, taskID, extensionFor(mimeType))
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "text/plain":
		return "txt"
	case "text/markdown":
		return "md"
	case "text/html":
		return "html"
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "video/mp4":
		return "mp4"
	case "video/webm":
		return "webm"
	default:
		return "bin"
	}
}

func promptDigest(brief models.Brief) string {
	sum := sha256.Sum256([]byte(brief.Persona + "\x00" + brief.Prompt))
	return "sha256:" + hex.EncodeToString(sum[:8])
}
