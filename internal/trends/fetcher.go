// Package trends implements the trend ingestion skill: it fans a request out
// to the configured signal sources and merges what they return into one
// ordered, filtered TrendIngestResponse.
package trends

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chimera-labs/trend-skills/internal/config"
	"github.com/chimera-labs/trend-skills/internal/metrics"
	"github.com/chimera-labs/trend-skills/internal/models"
	"github.com/chimera-labs/trend-skills/internal/sources"
	"github.com/chimera-labs/trend-skills/internal/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestPrefix is where every ingest response is recorded
const RequestPrefix = "trends/requests/"

// Fetcher runs trend ingest requests against a fixed set of sources
type Fetcher struct {
	sources         []sources.Source
	storage         storage.StorageInterface
	metrics         *metrics.Metrics
	defaultTags     []string
	defaultLookback time.Duration
	now             func() time.Time
}

// DefaultSources builds the live sources plus the snapshot replay source.
func DefaultSources(cfg *config.Config, store storage.StorageInterface) []sources.Source {
	srcs := []sources.Source{
		sources.NewHackerNewsSource(),
		sources.NewRedditSource(cfg.RedditClientID, cfg.RedditClientSecret),
		sources.NewStackOverflowSource(),
	}
	if store != nil {
		srcs = append(srcs, sources.NewSnapshotSource(store))
	}
	return srcs
}

// NewFetcher creates a fetcher. store and m may be nil.
func NewFetcher(cfg *config.Config, store storage.StorageInterface, m *metrics.Metrics, srcs ...sources.Source) *Fetcher {
	return &Fetcher{
		sources:         srcs,
		storage:         store,
		metrics:         m,
		defaultTags:     cfg.TrendTags,
		defaultLookback: time.Duration(cfg.TrendLookbackHours) * time.Hour,
		now:             time.Now,
	}
}

// SetClock replaces the fetcher's clock; tests use it to freeze time.
func (f *Fetcher) SetClock(now func() time.Time) {
	f.now = now
}

// FetchTrends answers one ingest request. A request that matches nothing
// gets an empty item list, never an error; only malformed requests fail.
func (f *Fetcher) FetchTrends(ctx context.Context, request models.TrendIngestRequest) (*models.TrendIngestResponse, error) {
	start := time.Now()
	resp, err := f.fetch(ctx, request)
	outcome := "ok"
	if err != nil {
		outcome = models.ErrorKind(err)
	}
	f.metrics.ObserveSkill(metrics.SkillIngestTrends, outcome, time.Since(start))
	return resp, err
}

func (f *Fetcher) fetch(ctx context.Context, request models.TrendIngestRequest) (*models.TrendIngestResponse, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	log := logrus.WithFields(logrus.Fields{
		"requestId": request.RequestID,
		"goalId":    request.Goal.ID,
		"planId":    request.Trace.PlanID,
		"taskId":    request.Trace.TaskID,
	})

	tagFilter := cleanList(request.Filters.Tags)
	queryTags := tagFilter
	if len(queryTags) == 0 {
		queryTags = f.defaultTags
	}

	lookback := f.defaultLookback
	if lh := request.Filters.LookbackHours; lh != nil && *lh > 0 {
		lookback = time.Duration(*lh) * time.Hour
	}

	selected := f.selectSources(cleanList(request.Filters.Sources))
	log.Infof("Fetching trends from %d sources (tags: %v, window: %v)", len(selected), queryTags, lookback)

	// Each source writes only its own slot so the merge below is deterministic
	results := make([][]models.TrendFeedItem, len(selected))
	var wg sync.WaitGroup
	for i, source := range selected {
		wg.Add(1)
		go func(i int, src sources.Source) {
			defer wg.Done()

			items, err := src.FetchTrends(ctx, queryTags, lookback)
			f.metrics.ObserveSource(src.GetName(), len(items), err)
			if err != nil {
				log.Errorf("Error fetching from %s: %v", src.GetName(), err)
				return
			}

			log.Debugf("Found %d items from %s", len(items), src.GetName())
			results[i] = items
		}(i, source)
	}
	wg.Wait()

	now := f.now()
	items := f.merge(selected, results, tagFilter, now.Add(-lookback))

	response := &models.TrendIngestResponse{
		RequestID:  request.RequestID,
		GoalID:     request.Goal.ID,
		Items:      items,
		CapturedAt: now.UTC(),
	}

	log.Infof("Collected %d trend items", len(items))

	if err := f.store(ctx, RequestPrefix+request.RequestID+".json", response); err != nil {
		log.Errorf("Failed to store ingest response: %v", err)
	}

	return response, nil
}

// CaptureSnapshot runs an unfiltered request over the live sources and
// stores the response as the newest snapshot.
func (f *Fetcher) CaptureSnapshot(ctx context.Context) (*models.TrendIngestResponse, string, error) {
	if f.storage == nil {
		return nil, "", fmt.Errorf("snapshot capture requires storage")
	}

	request := models.TrendIngestRequest{
		RequestID: "snapshot-" + uuid.NewString(),
		Goal:      models.Goal{ID: "scheduled-snapshot", Title: "Scheduled trend snapshot"},
	}

	resp, err := f.FetchTrends(ctx, request)
	if err != nil {
		f.metrics.ObserveSnapshot("error")
		return nil, "", err
	}

	key := sources.SnapshotKey(resp.CapturedAt)
	if err := f.store(ctx, key, resp); err != nil {
		f.metrics.ObserveSnapshot("error")
		return nil, "", fmt.Errorf("failed to store snapshot: %w", err)
	}

	f.metrics.ObserveSnapshot("ok")
	return resp, key, nil
}

// selectSources picks enabled sources by name or kind. The snapshot source
// replays earlier results, so it only runs when asked for explicitly.
func (f *Fetcher) selectSources(wanted []string) []sources.Source {
	want := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		want[strings.ToLower(w)] = true
	}

	var selected []sources.Source
	for _, src := range f.sources {
		if !src.IsEnabled() {
			continue
		}
		if len(want) == 0 {
			if src.GetKind() != models.SourceKindSnapshot {
				selected = append(selected, src)
			}
			continue
		}
		if want[strings.ToLower(src.GetName())] || want[strings.ToLower(src.GetKind())] {
			selected = append(selected, src)
		}
	}
	return selected
}

// merge flattens per-source results in source order. Snapshot items were
// already windowed against their capture time, so the live cutoff skips them.
func (f *Fetcher) merge(selected []sources.Source, results [][]models.TrendFeedItem, tagFilter []string, cutoff time.Time) []models.TrendFeedItem {
	tags := make(map[string]bool, len(tagFilter))
	for _, tag := range tagFilter {
		tags[strings.ToLower(tag)] = true
	}

	seen := make(map[string]bool)
	items := make([]models.TrendFeedItem, 0)

	for i, batch := range results {
		live := selected[i].GetKind() != models.SourceKindSnapshot
		for _, item := range batch {
			if seen[item.TrendID] {
				continue
			}
			if err := item.Validate(); err != nil {
				logrus.Warnf("Dropping trend item %q: %v", item.TrendID, err)
				continue
			}
			if live && item.CapturedAt.Before(cutoff) {
				continue
			}
			if len(tags) > 0 && !tags[strings.ToLower(item.Tag)] {
				continue
			}
			seen[item.TrendID] = true
			items = append(items, item.Clone())
		}
	}

	return items
}

func (f *Fetcher) store(ctx context.Context, key string, resp *models.TrendIngestResponse) error {
	if f.storage == nil {
		return nil
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal trends: %w", err)
	}

	return f.storage.Store(ctx, key, data)
}

func cleanList(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
