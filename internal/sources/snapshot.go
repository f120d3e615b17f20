package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chimera-labs/trend-skills/internal/models"
	"github.com/chimera-labs/trend-skills/internal/storage"
	"github.com/sirupsen/logrus"
)

// SnapshotPrefix is where scheduled ingest runs store their responses
const SnapshotPrefix = "trends/snapshots/"

// SnapshotKey names the snapshot captured at t; keys sort chronologically.
func SnapshotKey(t time.Time) string {
	return SnapshotPrefix + t.UTC().Format("20060102T150405.000Z") + ".json"
}

// SnapshotSource replays the most recent stored ingest response, giving
// callers a frozen feed that returns the same items on every call.
type SnapshotSource struct {
	store  storage.StorageInterface
	prefix string
}

// NewSnapshotSource reads snapshots stored under SnapshotPrefix
func NewSnapshotSource(store storage.StorageInterface) *SnapshotSource {
	return &SnapshotSource{store: store, prefix: SnapshotPrefix}
}

func (s *SnapshotSource) GetName() string {
	return "snapshot"
}

func (s *SnapshotSource) GetKind() string {
	return models.SourceKindSnapshot
}

func (s *SnapshotSource) IsEnabled() bool {
	return s.store != nil
}

// FetchTrends returns the latest snapshot's items whose tag is one of tags.
// The window is measured back from the snapshot's capture time, not from
// now, so replaying a snapshot later yields the same items.
func (s *SnapshotSource) FetchTrends(ctx context.Context, tags []string, since time.Duration) ([]models.TrendFeedItem, error) {
	if !s.IsEnabled() {
		return nil, nil
	}

	snapshot, key, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		logrus.Debug("No trend snapshot stored yet")
		return nil, nil
	}

	wanted := make(map[string]bool, len(tags))
	for _, tag := range tags {
		wanted[strings.ToLower(tag)] = true
	}

	cutoff := snapshot.CapturedAt.Add(-since)

	var items []models.TrendFeedItem
	for _, item := range snapshot.Items {
		if len(wanted) > 0 && !wanted[strings.ToLower(item.Tag)] {
			continue
		}
		if since > 0 && item.CapturedAt.Before(cutoff) {
			continue
		}
		if item.Payload == nil {
			item.Payload = map[string]any{}
		}
		item.Payload["snapshot"] = key
		items = append(items, item)
	}

	return items, nil
}

// Latest loads the newest snapshot, returning nil when none is stored.
func (s *SnapshotSource) Latest(ctx context.Context) (*models.TrendIngestResponse, string, error) {
	keys, err := s.store.List(ctx, s.prefix)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list snapshots: %w", err)
	}
	if len(keys) == 0 {
		return nil, "", nil
	}

	key := keys[len(keys)-1]
	data, err := s.store.Retrieve(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}

	var snapshot models.TrendIngestResponse
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, "", fmt.Errorf("failed to decode snapshot %s: %w", key, err)
	}

	return &snapshot, key, nil
}
