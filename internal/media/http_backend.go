package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/chimera-labs/trend-skills/internal/models"
	"github.com/go-resty/resty/v2"
)

// HTTPBackend calls a JSON generation API
type HTTPBackend struct {
	client  *resty.Client
	baseURL string
	apiKey  string
	prices  map[models.MediaType]Price
}

type generateRequest struct {
	Type         models.MediaType `json:"type"`
	Prompt       string           `json:"prompt"`
	Persona      string           `json:"persona,omitempty"`
	Length       int              `json:"length,omitempty"`
	TrendRefs    []string         `json:"trendRefs,omitempty"`
	MediaContext map[string]any   `json:"mediaContext,omitempty"`
	BudgetUSD    *float64         `json:"budgetUsd,omitempty"`
	RequestID    string           `json:"requestId,omitempty"`
}

type generateResponse struct {
	MimeType      string  `json:"mimeType"`
	Text          string  `json:"text"`
	URI           string  `json:"uri"`
	ContentBase64 string  `json:"contentBase64"`
	CostUSD       float64 `json:"costUsd"`
	Confidence    float64 `json:"confidence"`
	Model         string  `json:"model"`
}

// NewHTTPBackend creates a backend posting to baseURL + "/v1/generate".
func NewHTTPBackend(baseURL, apiKey string) *HTTPBackend {
	return &HTTPBackend{
		client:  resty.New().SetTimeout(2 * time.Minute),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		prices:  DefaultPrices,
	}
}

func (b *HTTPBackend) Name() string {
	return "http"
}

func (b *HTTPBackend) Supports(t models.MediaType) bool {
	_, ok := b.prices[t]
	return ok
}

func (b *HTTPBackend) Estimate(req models.MediaGenerationRequest) float64 {
	return EstimateCost(b.prices, req)
}

func (b *HTTPBackend) Generate(ctx context.Context, req models.MediaGenerationRequest) (*Result, error) {
	body := generateRequest{
		Type:         req.Type,
		Prompt:       req.Brief.Prompt,
		Persona:      req.Brief.Persona,
		Length:       req.Constraints.Length,
		TrendRefs:    req.Brief.TrendRefs,
		MediaContext: req.Brief.MediaContext,
		BudgetUSD:    req.Constraints.BudgetUSD,
		RequestID:    req.Trace.RequestID,
	}

	var out generateResponse
	r := b.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out)
	if b.apiKey != "" {
		r.SetAuthToken(b.apiKey)
	}

	resp, err := r.Post(b.baseURL + "/v1/generate")
	if err != nil {
		return nil, fmt.Errorf("failed to call media backend: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("media backend returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	if out.Text == "" && out.URI == "" && out.ContentBase64 == "" {
		return nil, fmt.Errorf("media backend returned no output")
	}

	var data []byte
	if out.ContentBase64 != "" {
		data, err = base64.StdEncoding.DecodeString(out.ContentBase64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode media content: %w", err)
		}
	} else if out.Text != "" {
		data = []byte(out.Text)
	}

	mimeType := out.MimeType
	if mimeType == "" {
		mimeType = defaultMimeType(req.Type)
	}

	return &Result{
		Output: models.MediaOutput{
			Type:     req.Type,
			MimeType: mimeType,
			Text:     out.Text,
			URI:      out.URI,
			Bytes:    len(data),
		},
		Data:       data,
		CostUSD:    out.CostUSD,
		Confidence: out.Confidence,
		Model:      out.Model,
	}, nil
}

func defaultMimeType(t models.MediaType) string {
	switch t {
	case models.MediaTypeImage:
		return "image/png"
	case models.MediaTypeVideo:
		return "video/mp4"
	default:
		return "text/plain"
	}
}
