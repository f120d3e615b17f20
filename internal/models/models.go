package models

import (
	"math"
	"strings"
	"time"
)

// Source kinds reported in TrendFeedItem.Source
const (
	SourceKindNews     = "news"
	SourceKindSocial   = "social"
	SourceKindMentions = "mentions"
	SourceKindSnapshot = "snapshot"
)

// Goal identifies the campaign goal a trend request serves
type Goal struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// TrendFilters narrows an ingest request. Every field is optional.
type TrendFilters struct {
	Tags          []string `json:"tags,omitempty"`
	Sources       []string `json:"sources,omitempty"`
	LookbackHours *int     `json:"lookbackHours,omitempty"`
}

// Trace carries caller correlation ids through a skill call
type Trace struct {
	PlanID    string `json:"planId,omitempty"`
	TaskID    string `json:"taskId,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// TrendIngestRequest asks the ingest skill for trend signals
type TrendIngestRequest struct {
	RequestID string       `json:"requestId"`
	Goal      Goal         `json:"goal"`
	Filters   TrendFilters `json:"filters"`
	Trace     Trace        `json:"trace"`
}

// TrendFeedItem is one ingested trend signal
type TrendFeedItem struct {
	TrendID    string         `json:"trendId"`
	Source     string         `json:"source"` // "news", "social", "mentions", "snapshot"
	Tag        string         `json:"tag"`
	Score      float64        `json:"score"`
	CapturedAt time.Time      `json:"capturedAt"`
	Payload    map[string]any `json:"payload"`
}

// TrendIngestResponse is returned by the ingest skill
type TrendIngestResponse struct {
	RequestID  string          `json:"requestId"`
	GoalID     string          `json:"goalId"`
	Items      []TrendFeedItem `json:"items"`
	CapturedAt time.Time       `json:"capturedAt"`
}

// Validate checks the required fields of an ingest request.
func (r *TrendIngestRequest) Validate() error {
	if strings.TrimSpace(r.RequestID) == "" {
		return validationError("requestId", "must not be empty")
	}
	if strings.TrimSpace(r.Goal.ID) == "" {
		return validationError("goal.id", "must not be empty")
	}
	if r.Filters.LookbackHours != nil && *r.Filters.LookbackHours < 0 {
		return validationError("filters.lookbackHours", "must not be negative")
	}
	return nil
}

// Validate checks a feed item before it is returned to a caller.
func (i *TrendFeedItem) Validate() error {
	if i.TrendID == "" {
		return validationError("trendId", "must not be empty")
	}
	if i.Source == "" {
		return validationError("source", "must not be empty")
	}
	if math.IsNaN(i.Score) || math.IsInf(i.Score, 0) {
		return validationError("score", "must be finite")
	}
	if i.CapturedAt.IsZero() {
		return validationError("capturedAt", "must be set")
	}
	return nil
}

// Clone returns a deep copy so responses never alias a source's data.
func (i TrendFeedItem) Clone() TrendFeedItem {
	out := i
	if i.Payload != nil {
		out.Payload = make(map[string]any, len(i.Payload))
		for k, v := range i.Payload {
			out.Payload[k] = v
		}
	}
	return out
}
