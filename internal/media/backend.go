package media

import (
	"context"

	"github.com/chimera-labs/trend-skills/internal/models"
)

// Backend is a generative collaborator that can produce some media types
type Backend interface {
	Name() string
	Supports(t models.MediaType) bool
	// Estimate returns the expected cost in USD before any work is done.
	Estimate(req models.MediaGenerationRequest) float64
	Generate(ctx context.Context, req models.MediaGenerationRequest) (*Result, error)
}

// Result is what a backend hands back for one request
type Result struct {
	Output     models.MediaOutput
	Data       []byte // raw asset to persist, may be empty when Output.URI is remote
	CostUSD    float64
	Confidence float64
	Model      string
}

// Price is a per-type cost model: Base plus PerUnit for every unit of length.
type Price struct {
	Base          float64
	PerUnit       float64
	DefaultLength int
}

// DefaultPrices approximates hosted generation pricing. Text units are
// words, video units are seconds; images are flat.
var DefaultPrices = map[models.MediaType]Price{
	models.MediaTypeText:  {Base: 0.001, PerUnit: 0.00002, DefaultLength: 300},
	models.MediaTypeImage: {Base: 0.04},
	models.MediaTypeVideo: {Base: 0.10, PerUnit: 0.05, DefaultLength: 15},
}

// EstimateCost applies prices to a request.
func EstimateCost(prices map[models.MediaType]Price, req models.MediaGenerationRequest) float64 {
	p, ok := prices[req.Type]
	if !ok {
		return 0
	}
	length := req.Constraints.Length
	if length == 0 {
		length = p.DefaultLength
	}
	return p.Base + p.PerUnit*float64(length)
}
