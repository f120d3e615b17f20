package publish

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chimera-labs/trend-skills/internal/config"
	"github.com/chimera-labs/trend-skills/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// TeamsChannel posts MessageCards to Microsoft Teams incoming webhooks
type TeamsChannel struct {
	client     *resty.Client
	webhookURL map[models.Environment]string
}

// Ensure TeamsChannel implements Channel
var _ Channel = (*TeamsChannel)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	ActivityText  string      `json:"activityText,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Markdown      bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewTeamsChannel creates a Teams channel using the production and staging webhooks.
func NewTeamsChannel(cfg *config.Config) *TeamsChannel {
	return &TeamsChannel{
		client: resty.New().SetTimeout(30 * time.Second),
		webhookURL: map[models.Environment]string{
			models.EnvironmentProduction: cfg.TeamsWebhookURL,
			models.EnvironmentStaging:    cfg.TeamsStagingWebhookURL,
		},
	}
}

func (c *TeamsChannel) Name() string {
	return "teams"
}

func (c *TeamsChannel) Supports(action string) bool {
	return supportsAction(action)
}

func (c *TeamsChannel) Publish(ctx context.Context, env models.Environment, intent models.ExecutionIntent) (string, error) {
	url := c.webhookURL[env]
	if url == "" {
		return "", fmt.Errorf("no Teams webhook configured for %s", env)
	}

	message := buildTeamsMessage(intent)

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(url)

	if err != nil {
		return "", fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return "teams:" + uuid.NewString(), nil
}

func buildTeamsMessage(intent models.ExecutionIntent) *TeamsMessage {
	title := intent.Content.Title
	if title == "" {
		title = fmt.Sprintf("Intent %s", intent.IntentID)
	}

	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   title,
		Text:    intent.Content.Body,
	}
	if intent.Action == models.ActionSendAlert {
		message.ThemeColor = "d13438"
		message.Title = "ALERT: " + title
	}

	facts := []TeamsFact{{Name: "Intent", Value: intent.IntentID}}
	if intent.PlanID != "" {
		facts = append(facts, TeamsFact{Name: "Plan", Value: intent.PlanID})
	}
	keys := make([]string, 0, len(intent.Metadata))
	for k := range intent.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		facts = append(facts, TeamsFact{Name: k, Value: intent.Metadata[k]})
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Details",
		Facts:         facts,
		Markdown:      true,
	})

	if len(intent.Content.MediaRefs) > 0 {
		refs := make([]string, 0, len(intent.Content.MediaRefs))
		for _, ref := range intent.Content.MediaRefs {
			refs = append(refs, "- "+ref)
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Media",
			ActivityText:  strings.Join(refs, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}
