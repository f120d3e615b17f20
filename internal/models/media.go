package models

import (
	"math"
	"strings"
	"time"
)

// MediaType is the kind of asset a generation request asks for
type MediaType string

const (
	MediaTypeText  MediaType = "text"
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// IsValid reports whether t is one of the supported media types.
func (t MediaType) IsValid() bool {
	switch t {
	case MediaTypeText, MediaTypeImage, MediaTypeVideo:
		return true
	default:
		return false
	}
}

// Brief describes what the asset should say
type Brief struct {
	Prompt       string         `json:"prompt"`
	Persona      string         `json:"persona,omitempty"`
	GoalID       string         `json:"goalId,omitempty"`
	TrendRefs    []string       `json:"trendRefs,omitempty"`
	MediaContext map[string]any `json:"mediaContext,omitempty"`
}

// Constraints bound the work a generation may perform.
// Length is words for text and seconds for video; images ignore it.
type Constraints struct {
	BudgetUSD     *float64 `json:"budgetUsd,omitempty"`
	MaxLatencySec int      `json:"maxLatencySec,omitempty"`
	Length        int      `json:"length,omitempty"`
}

// MediaGenerationRequest asks the media skill for one asset
type MediaGenerationRequest struct {
	TaskID      string      `json:"taskId"`
	PlanID      string      `json:"planId"`
	Type        MediaType   `json:"type"`
	Brief       Brief       `json:"brief"`
	Constraints Constraints `json:"constraints"`
	Trace       Trace       `json:"trace"`
}

// MediaOutput is the generated asset. Either Text or URI is set.
type MediaOutput struct {
	Type     MediaType `json:"type"`
	MimeType string    `json:"mimeType"`
	Text     string    `json:"text,omitempty"`
	URI      string    `json:"uri,omitempty"`
	Bytes    int       `json:"bytes,omitempty"`
}

// Evidence records where an asset came from
type Evidence struct {
	Kind   string `json:"kind"` // "backend", "prompt", "trend", "storage"
	Ref    string `json:"ref"`
	Detail string `json:"detail,omitempty"`
}

// MediaGenerationResponse is returned by the media skill
type MediaGenerationResponse struct {
	TaskID     string      `json:"taskId"`
	PlanID     string      `json:"planId"`
	Output     MediaOutput `json:"output"`
	Evidence   []Evidence  `json:"evidence"`
	Confidence float64     `json:"confidence"`
	CostUSD    float64     `json:"costUsd"`
	StartedAt  time.Time   `json:"startedAt"`
	EndedAt    time.Time   `json:"endedAt"`
}

// Validate checks identifiers, the media type and numeric constraints.
func (r *MediaGenerationRequest) Validate() error {
	if strings.TrimSpace(r.TaskID) == "" {
		return validationError("taskId", "must not be empty")
	}
	if strings.TrimSpace(r.PlanID) == "" {
		return validationError("planId", "must not be empty")
	}
	if !r.Type.IsValid() {
		return UnsupportedTypef("%q is not one of text, image, video", r.Type)
	}
	if b := r.Constraints.BudgetUSD; b != nil && (math.IsNaN(*b) || math.IsInf(*b, 0) || *b < 0) {
		return validationError("constraints.budgetUsd", "must be a finite non-negative number")
	}
	if r.Constraints.MaxLatencySec < 0 {
		return validationError("constraints.maxLatencySec", "must not be negative")
	}
	if r.Constraints.Length < 0 {
		return validationError("constraints.length", "must not be negative")
	}
	return nil
}

// ClampConfidence forces c into [0,1]; NaN becomes 0.
func ClampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c) || c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
