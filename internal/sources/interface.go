package sources

import (
	"context"
	"time"

	"github.com/chimera-labs/trend-skills/internal/models"
)

const userAgent = "trend-skills/1.0"

// Source interface defines the contract for all trend signal sources.
// GetKind is the category reported in TrendFeedItem.Source.
type Source interface {
	GetName() string
	GetKind() string
	FetchTrends(ctx context.Context, tags []string, since time.Duration) ([]models.TrendFeedItem, error)
	IsEnabled() bool
}
