package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/chimera-labs/trend-skills/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// HackerNewsSource searches Hacker News stories through the Algolia HN API
type HackerNewsSource struct {
	client  *resty.Client
	baseURL string
}

type hackerNewsSearchResponse struct {
	Hits []hackerNewsHit `json:"hits"`
}

type hackerNewsHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	StoryText   string `json:"story_text"`
	Author      string `json:"author"`
	URL         string `json:"url"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	CreatedAtI  int64  `json:"created_at_i"`
}

// NewHackerNewsSource creates a new Hacker News source
func NewHackerNewsSource() *HackerNewsSource {
	return &HackerNewsSource{
		client: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", userAgent),
		baseURL: "https://hn.algolia.com/api/v1",
	}
}

func (h *HackerNewsSource) GetName() string {
	return "hackernews"
}

func (h *HackerNewsSource) GetKind() string {
	return models.SourceKindNews
}

func (h *HackerNewsSource) IsEnabled() bool {
	return true // the search API doesn't require authentication
}

func (h *HackerNewsSource) FetchTrends(ctx context.Context, tags []string, since time.Duration) ([]models.TrendFeedItem, error) {
	now := time.Now()
	cutoff := now.Add(-since)

	var allItems []models.TrendFeedItem
	var lastErr error
	failures := 0

	for _, tag := range tags {
		select {
		case <-ctx.Done():
			return allItems, ctx.Err()
		default:
		}

		hits, err := h.search(ctx, tag, cutoff)
		if err != nil {
			logrus.Errorf("Failed to search Hacker News for tag '%s': %v", tag, err)
			failures++
			lastErr = err
			continue
		}

		for _, hit := range hits {
			publishedAt := time.Unix(hit.CreatedAtI, 0)
			if hit.CreatedAtI == 0 || publishedAt.Before(cutoff) {
				continue
			}

			matched := matchTags(hit.Title+" "+hit.StoryText+" "+hit.URL, tags)
			if len(matched) == 0 {
				continue
			}

			sig := signal{
				id:          fmt.Sprintf("hackernews_%s", hit.ObjectID),
				platform:    "Hacker News",
				kind:        h.GetKind(),
				title:       hit.Title,
				text:        hit.StoryText,
				author:      hit.Author,
				url:         fmt.Sprintf("https://news.ycombinator.com/item?id=%s", hit.ObjectID),
				points:      hit.Points,
				comments:    hit.NumComments,
				publishedAt: publishedAt,
			}
			// Prefer the story's own link when it has one
			if hit.URL != "" {
				sig.url = hit.URL
			}

			allItems = append(allItems, sig.toItem(matched, now, since))
		}
	}

	if len(tags) > 0 && failures == len(tags) {
		return nil, fmt.Errorf("all hacker news searches failed: %w", lastErr)
	}

	return deduplicateItems(allItems), nil
}

func (h *HackerNewsSource) search(ctx context.Context, tag string, cutoff time.Time) ([]hackerNewsHit, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"query":          tag,
			"tags":           "story",
			"numericFilters": "created_at_i>" + strconv.FormatInt(cutoff.Unix(), 10),
			"hitsPerPage":    "100",
		}).
		Get(h.baseURL + "/search_by_date")

	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("hacker news API returned status %d", resp.StatusCode())
	}

	var searchResp hackerNewsSearchResponse
	if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
		return nil, err
	}

	return searchResp.Hits, nil
}
