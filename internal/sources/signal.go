package sources

import (
	"math"
	"strings"
	"time"

	"github.com/chimera-labs/trend-skills/internal/models"
)

// signal is the platform-neutral shape every source maps its posts into
type signal struct {
	id          string
	platform    string
	kind        string
	title       string
	text        string
	author      string
	url         string
	points      int
	comments    int
	publishedAt time.Time
}

// matchTags returns the tags found in content, in the order they were requested.
func matchTags(content string, tags []string) []string {
	content = strings.ToLower(content)
	var matched []string
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if strings.Contains(content, strings.ToLower(tag)) {
			matched = append(matched, tag)
		}
	}
	return matched
}

// engagementScore combines points and comments, decayed by age across the window.
func engagementScore(points, comments int, age, window time.Duration) float64 {
	if points < 0 {
		points = 0
	}
	if comments < 0 {
		comments = 0
	}
	raw := math.Log1p(float64(points)) + 0.5*math.Log1p(float64(comments))

	recency := 1.0
	if window > 0 {
		recency = 1 - float64(age)/float64(window)
		if recency < 0.1 {
			recency = 0.1
		}
		if recency > 1 {
			recency = 1
		}
	}
	return math.Round(raw*recency*1000) / 1000
}

// toItem converts a signal that matched at least one tag into a feed item.
func (s signal) toItem(matched []string, now time.Time, window time.Duration) models.TrendFeedItem {
	return models.TrendFeedItem{
		TrendID:    s.id,
		Source:     s.kind,
		Tag:        matched[0],
		Score:      engagementScore(s.points, s.comments, now.Sub(s.publishedAt), window),
		CapturedAt: s.publishedAt.UTC(),
		Payload: map[string]any{
			"platform":    s.platform,
			"title":       s.title,
			"text":        s.text,
			"author":      s.author,
			"url":         s.url,
			"points":      s.points,
			"comments":    s.comments,
			"matchedTags": matched,
		},
	}
}

func deduplicateItems(items []models.TrendFeedItem) []models.TrendFeedItem {
	seen := make(map[string]bool)
	var unique []models.TrendFeedItem

	for _, item := range items {
		if !seen[item.TrendID] {
			seen[item.TrendID] = true
			unique = append(unique, item)
		}
	}

	return unique
}
