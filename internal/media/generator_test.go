package media

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chimera-labs/trend-skills/internal/config"
	"github.com/chimera-labs/trend-skills/internal/metrics"
	"github.com/chimera-labs/trend-skills/internal/models"
	"github.com/chimera-labs/trend-skills/internal/storage"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend returns a canned result, optionally after a delay
type stubBackend struct {
	types    []models.MediaType
	estimate float64
	result   *Result
	err      error
	delay    time.Duration
	calls    int
}

func (b *stubBackend) Name() string { return "stub" }

func (b *stubBackend) Supports(t models.MediaType) bool {
	for _, s := range b.types {
		if s == t {
			return true
		}
	}
	return false
}

func (b *stubBackend) Estimate(models.MediaGenerationRequest) float64 { return b.estimate }

func (b *stubBackend) Generate(ctx context.Context, req models.MediaGenerationRequest) (*Result, error) {
	b.calls++
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.err != nil {
		return nil, b.err
	}
	return b.result, nil
}

func budget(v float64) *float64 { return &v }

func testConfig() *config.Config {
	return &config.Config{MediaDefaultBudgetUSD: 1.0}
}

func baseRequest(t models.MediaType) models.MediaGenerationRequest {
	return models.MediaGenerationRequest{
		TaskID: "task-1",
		PlanID: "plan-1",
		Type:   t,
		Brief: models.Brief{
			Prompt:    "Announce the new release",
			Persona:   "dev advocate",
			TrendRefs: []string{"hackernews_1"},
		},
		Trace: models.Trace{RequestID: "req-1"},
	}
}

func TestGenerator_VideoWithZeroBudget(t *testing.T) {
	backend := &stubBackend{types: []models.MediaType{models.MediaTypeVideo}, estimate: 0.85}
	gen := NewGenerator(testConfig(), nil, nil, backend)

	req := baseRequest(models.MediaTypeVideo)
	req.Constraints.BudgetUSD = budget(0)

	resp, err := gen.Run(context.Background(), req)
	assert.ErrorIs(t, err, models.ErrBudgetExceeded)
	assert.Nil(t, resp)
	assert.Equal(t, 0, backend.calls, "backend must not run when the estimate is over budget")
}

func TestGenerator_VideoWithZeroBudgetAndNoBackend(t *testing.T) {
	gen := NewGenerator(testConfig(), nil, nil, NewTemplateBackend())

	req := baseRequest(models.MediaTypeVideo)
	req.Constraints.BudgetUSD = budget(0)

	_, err := gen.Run(context.Background(), req)
	assert.ErrorIs(t, err, models.ErrBudgetExceeded)
}

func TestGenerator_Errors(t *testing.T) {
	tests := []struct {
		name     string
		backends []Backend
		mutate   func(*models.MediaGenerationRequest)
		expected error
	}{
		{
			name:     "Unknown type",
			backends: []Backend{NewTemplateBackend()},
			mutate:   func(r *models.MediaGenerationRequest) { r.Type = "hologram" },
			expected: models.ErrUnsupportedType,
		},
		{
			name:     "No backend for image",
			backends: []Backend{NewTemplateBackend()},
			mutate:   func(r *models.MediaGenerationRequest) { r.Type = models.MediaTypeImage },
			expected: models.ErrUnsupportedType,
		},
		{
			name:     "Missing task id",
			backends: []Backend{NewTemplateBackend()},
			mutate:   func(r *models.MediaGenerationRequest) { r.TaskID = "" },
			expected: models.ErrValidation,
		},
		{
			name:     "Negative budget",
			backends: []Backend{NewTemplateBackend()},
			mutate:   func(r *models.MediaGenerationRequest) { r.Constraints.BudgetUSD = budget(-1) },
			expected: models.ErrValidation,
		},
		{
			name: "Reported cost over budget",
			backends: []Backend{&stubBackend{
				types:  []models.MediaType{models.MediaTypeText},
				result: &Result{Output: models.MediaOutput{MimeType: "text/plain", Text: "x"}, CostUSD: 0.5},
			}},
			mutate:   func(r *models.MediaGenerationRequest) { r.Constraints.BudgetUSD = budget(0.1) },
			expected: models.ErrBudgetExceeded,
		},
		{
			name: "Latency exceeded",
			backends: []Backend{&stubBackend{
				types:  []models.MediaType{models.MediaTypeText},
				delay:  3 * time.Second,
				result: &Result{Output: models.MediaOutput{MimeType: "text/plain", Text: "late"}},
			}},
			mutate:   func(r *models.MediaGenerationRequest) { r.Constraints.MaxLatencySec = 1 },
			expected: models.ErrLatencyExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := NewGenerator(testConfig(), nil, nil, tt.backends...)
			req := baseRequest(models.MediaTypeText)
			tt.mutate(&req)

			resp, err := gen.Run(context.Background(), req)
			assert.ErrorIs(t, err, tt.expected)
			assert.Nil(t, resp)
		})
	}
}

func TestGenerator_BackendFailure(t *testing.T) {
	backend := &stubBackend{types: []models.MediaType{models.MediaTypeText}, err: errors.New("boom")}
	gen := NewGenerator(testConfig(), nil, nil, backend)

	_, err := gen.Run(context.Background(), baseRequest(models.MediaTypeText))
	require.Error(t, err)
	assert.Equal(t, models.KindInternal, models.ErrorKind(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestGenerator_ResponseBounds(t *testing.T) {
	tests := []struct {
		name               string
		confidence         float64
		cost               float64
		expectedConfidence float64
		expectedCost       float64
	}{
		{name: "In range", confidence: 0.7, cost: 0.2, expectedConfidence: 0.7, expectedCost: 0.2},
		{name: "Confidence above one", confidence: 3, cost: 0, expectedConfidence: 1, expectedCost: 0},
		{name: "Negative values", confidence: -0.5, cost: -2, expectedConfidence: 0, expectedCost: 0},
		{name: "NaN values", confidence: math.NaN(), cost: math.NaN(), expectedConfidence: 0, expectedCost: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &stubBackend{
				types: []models.MediaType{models.MediaTypeImage},
				result: &Result{
					Output:     models.MediaOutput{MimeType: "image/png", URI: "https://cdn.example.com/a.png"},
					CostUSD:    tt.cost,
					Confidence: tt.confidence,
				},
			}
			gen := NewGenerator(testConfig(), nil, nil, backend)

			resp, err := gen.Run(context.Background(), baseRequest(models.MediaTypeImage))
			require.NoError(t, err)

			assert.Equal(t, tt.expectedConfidence, resp.Confidence)
			assert.Equal(t, tt.expectedCost, resp.CostUSD)
			assert.GreaterOrEqual(t, resp.Confidence, 0.0)
			assert.LessOrEqual(t, resp.Confidence, 1.0)
			assert.GreaterOrEqual(t, resp.CostUSD, 0.0)
		})
	}
}

func TestGenerator_TemplateDraftIsStored(t *testing.T) {
	store := storage.NewMemoryStorage()
	m := metrics.New("test")
	gen := NewGenerator(testConfig(), store, m, NewTemplateBackend())

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ticks := 0
	gen.SetClock(func() time.Time {
		ticks++
		return started.Add(time.Duration(ticks) * time.Second)
	})

	req := baseRequest(models.MediaTypeText)
	req.Constraints.BudgetUSD = budget(0)

	resp, err := gen.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "task-1", resp.TaskID)
	assert.Equal(t, "plan-1", resp.PlanID)
	assert.Equal(t, models.MediaTypeText, resp.Output.Type)
	assert.Equal(t, "[dev advocate] Announce the new release\n\nTrending: #hackernews_1", resp.Output.Text)
	assert.Equal(t, 0.0, resp.CostUSD)
	assert.False(t, resp.EndedAt.Before(resp.StartedAt))

	key := AssetKey("plan-1", "task-1", "text/plain")
	assert.Equal(t, "media/plan-1/task-1.txt", key)
	assert.Equal(t, key, resp.Output.URI)

	data, err := store.Retrieve(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, resp.Output.Text, string(data))

	kinds := make([]string, 0, len(resp.Evidence))
	for _, e := range resp.Evidence {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []string{"backend", "prompt", "trend", "storage"}, kinds)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SkillInvocations.WithLabelValues(metrics.SkillGenerateMedia, "ok")))
}

func TestGenerator_DefaultBudgetApplies(t *testing.T) {
	backend := &stubBackend{
		types:    []models.MediaType{models.MediaTypeVideo},
		estimate: 2,
	}
	gen := NewGenerator(&config.Config{MediaDefaultBudgetUSD: 1.5}, nil, nil, backend)

	_, err := gen.Run(context.Background(), baseRequest(models.MediaTypeVideo))
	assert.ErrorIs(t, err, models.ErrBudgetExceeded)
}

func TestGenerator_FallsBackToBackendWithinBudget(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := &config.Config{MediaDefaultBudgetUSD: 1.0, MediaBackendURL: server.URL}
	gen := NewGenerator(cfg, nil, nil, DefaultBackends(cfg)...)

	req := baseRequest(models.MediaTypeText)
	req.Constraints.BudgetUSD = budget(0)

	resp, err := gen.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, calls, "paid backend must not run when it cannot fit the budget")
	assert.Equal(t, 0.0, resp.CostUSD)
	assert.Equal(t, "template", resp.Evidence[0].Ref)
}

func TestGenerator_BackendPreference(t *testing.T) {
	paid := &stubBackend{
		types:    []models.MediaType{models.MediaTypeImage},
		estimate: 0.5,
		result:   &Result{Output: models.MediaOutput{MimeType: "image/png"}, Confidence: 0.9},
	}
	pricier := &stubBackend{types: []models.MediaType{models.MediaTypeImage}, estimate: 3}
	cheaper := &stubBackend{types: []models.MediaType{models.MediaTypeImage}, estimate: 2}

	tests := []struct {
		name      string
		backends  []Backend
		budget    float64
		wantErr   error
		wantCalls *stubBackend
	}{
		{name: "first fitting backend wins", backends: []Backend{paid, cheaper}, budget: 1, wantCalls: paid},
		{name: "skips backends over budget", backends: []Backend{pricier, paid}, budget: 1, wantCalls: paid},
		{name: "none fits", backends: []Backend{pricier, cheaper}, budget: 1, wantErr: models.ErrBudgetExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, b := range []*stubBackend{paid, pricier, cheaper} {
				b.calls = 0
			}
			gen := NewGenerator(testConfig(), nil, nil, tt.backends...)
			req := baseRequest(models.MediaTypeImage)
			req.Constraints.BudgetUSD = budget(tt.budget)

			_, err := gen.Run(context.Background(), req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Contains(t, err.Error(), "2.0000", "cheapest estimate is reported")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, tt.wantCalls.calls)
		})
	}
}

func TestTemplateBackend_TruncatesToLength(t *testing.T) {
	backend := NewTemplateBackend()
	req := baseRequest(models.MediaTypeText)
	req.Brief.Persona = ""
	req.Brief.TrendRefs = nil
	req.Brief.Prompt = "one two three four five"
	req.Constraints.Length = 3

	result, err := backend.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "one two three", result.Output.Text)
	assert.False(t, backend.Supports(models.MediaTypeVideo))
}

func TestHTTPBackend_Generate(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/generate", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body generateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, models.MediaTypeImage, body.Type)
		assert.Equal(t, "req-1", body.RequestID)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"mimeType":"image/png","contentBase64":%q,"costUsd":0.04,"confidence":0.8,"model":"img-1"}`,
			base64.StdEncoding.EncodeToString(png))
	}))
	defer server.Close()

	store := storage.NewMemoryStorage()
	gen := NewGenerator(testConfig(), store, nil, NewHTTPBackend(server.URL+"/", "secret"))

	resp, err := gen.Run(context.Background(), baseRequest(models.MediaTypeImage))
	require.NoError(t, err)

	assert.Equal(t, "image/png", resp.Output.MimeType)
	assert.Equal(t, len(png), resp.Output.Bytes)
	assert.Equal(t, 0.04, resp.CostUSD)
	assert.Equal(t, 0.8, resp.Confidence)
	assert.Equal(t, "img-1", resp.Evidence[0].Detail)

	data, err := store.Retrieve(context.Background(), "media/plan-1/task-1.png")
	require.NoError(t, err)
	assert.Equal(t, png, data)
}

func TestHTTPBackend_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	backend := NewHTTPBackend(server.URL, "")
	_, err := backend.Generate(context.Background(), baseRequest(models.MediaTypeText))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestEstimateCost(t *testing.T) {
	video := baseRequest(models.MediaTypeVideo)
	assert.InDelta(t, 0.85, EstimateCost(DefaultPrices, video), 1e-9)

	video.Constraints.Length = 4
	assert.InDelta(t, 0.30, EstimateCost(DefaultPrices, video), 1e-9)

	assert.InDelta(t, 0.04, EstimateCost(DefaultPrices, baseRequest(models.MediaTypeImage)), 1e-9)
}

func TestDefaultBackends(t *testing.T) {
	assert.Len(t, DefaultBackends(&config.Config{}), 1)

	backends := DefaultBackends(&config.Config{MediaBackendURL: "http://localhost:9000"})
	require.Len(t, backends, 2)
	assert.Equal(t, "http", backends[0].Name())
}
