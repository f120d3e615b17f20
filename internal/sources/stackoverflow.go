package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/chimera-labs/trend-skills/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// StackOverflowSource implements Stack Exchange API source
type StackOverflowSource struct {
	client  *resty.Client
	baseURL string
}

type stackOverflowResponse struct {
	Items []stackOverflowQuestion `json:"items"`
}

type stackOverflowQuestion struct {
	QuestionID int      `json:"question_id"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Tags       []string `json:"tags"`
	Owner      struct {
		DisplayName string `json:"display_name"`
	} `json:"owner"`
	CreationDate int64  `json:"creation_date"`
	Score        int    `json:"score"`
	ViewCount    int    `json:"view_count"`
	AnswerCount  int    `json:"answer_count"`
	Link         string `json:"link"`
}

// NewStackOverflowSource creates a new Stack Overflow source
func NewStackOverflowSource() *StackOverflowSource {
	return &StackOverflowSource{
		client: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", userAgent),
		baseURL: "https://api.stackexchange.com/2.3",
	}
}

func (s *StackOverflowSource) GetName() string {
	return "stackoverflow"
}

func (s *StackOverflowSource) GetKind() string {
	return models.SourceKindMentions
}

func (s *StackOverflowSource) IsEnabled() bool {
	return true // anonymous quota is enough for periodic searches
}

func (s *StackOverflowSource) FetchTrends(ctx context.Context, tags []string, since time.Duration) ([]models.TrendFeedItem, error) {
	now := time.Now()
	var allItems []models.TrendFeedItem
	var lastErr error
	failures := 0

	for _, tag := range tags {
		questions, err := s.search(ctx, tag, now.Add(-since))
		if err != nil {
			logrus.Errorf("Failed to search Stack Overflow for tag '%s': %v", tag, err)
			failures++
			lastErr = err
			continue
		}

		for _, question := range questions {
			publishedAt := time.Unix(question.CreationDate, 0)
			body := s.stripHTMLTags(question.Body)
			title := html.UnescapeString(question.Title)

			matched := matchTags(title+" "+body+" "+strings.Join(question.Tags, " "), tags)
			if len(matched) == 0 {
				continue
			}

			sig := signal{
				id:          fmt.Sprintf("stackoverflow_%d", question.QuestionID),
				platform:    "Stack Overflow",
				kind:        s.GetKind(),
				title:       title,
				text:        body,
				author:      question.Owner.DisplayName,
				url:         question.Link,
				points:      question.Score,
				comments:    question.AnswerCount,
				publishedAt: publishedAt,
			}
			allItems = append(allItems, sig.toItem(matched, now, since))
		}
	}

	if len(tags) > 0 && failures == len(tags) {
		return nil, fmt.Errorf("all stack overflow searches failed: %w", lastErr)
	}

	return deduplicateItems(allItems), nil
}

func (s *StackOverflowSource) search(ctx context.Context, tag string, from time.Time) ([]stackOverflowQuestion, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"order":    "desc",
			"sort":     "creation",
			"q":        tag,
			"site":     "stackoverflow",
			"fromdate": strconv.FormatInt(from.Unix(), 10),
			"pagesize": "100",
			"filter":   "withbody",
		}).
		Get(s.baseURL + "/search/advanced")

	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("stack overflow API returned status %d", resp.StatusCode())
	}

	var soResp stackOverflowResponse
	if err := json.Unmarshal(resp.Body(), &soResp); err != nil {
		return nil, err
	}

	return soResp.Items, nil
}

func (s *StackOverflowSource) stripHTMLTags(content string) string {
	content = strings.ReplaceAll(content, "<p>", "\n")
	content = strings.ReplaceAll(content, "</p>", "\n")
	content = strings.ReplaceAll(content, "<br>", "\n")
	content = strings.ReplaceAll(content, "<br/>", "\n")
	content = strings.ReplaceAll(content, "<code>", "`")
	content = strings.ReplaceAll(content, "</code>", "`")

	for strings.Contains(content, "<") && strings.Contains(content, ">") {
		start := strings.Index(content, "<")
		end := strings.Index(content, ">")
		if start < end {
			content = content[:start] + content[end+1:]
		} else {
			break
		}
	}

	return strings.TrimSpace(html.UnescapeString(content))
}
