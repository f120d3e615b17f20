package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chimera-labs/trend-skills/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// RedditSource implements Reddit API source
type RedditSource struct {
	clientID     string
	clientSecret string
	client       *resty.Client
	authURL      string
	apiURL       string

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

type redditAuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type redditSearchResponse struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	Created     float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
}

// NewRedditSource creates a new Reddit source
func NewRedditSource(clientID, clientSecret string) *RedditSource {
	return &RedditSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		client: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", userAgent),
		authURL: "https://www.reddit.com/api/v1/access_token",
		apiURL:  "https://oauth.reddit.com",
	}
}

func (r *RedditSource) GetName() string {
	return "reddit"
}

func (r *RedditSource) GetKind() string {
	return models.SourceKindSocial
}

func (r *RedditSource) IsEnabled() bool {
	return r.clientID != "" && r.clientSecret != ""
}

func (r *RedditSource) FetchTrends(ctx context.Context, tags []string, since time.Duration) ([]models.TrendFeedItem, error) {
	if !r.IsEnabled() {
		logrus.Debug("Reddit source disabled - missing credentials")
		return nil, nil
	}

	token, err := r.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("reddit authentication failed: %w", err)
	}

	now := time.Now()
	var allItems []models.TrendFeedItem
	var lastErr error
	failures := 0

	for _, tag := range tags {
		posts, err := r.search(ctx, token, tag, since)
		if err != nil {
			logrus.Errorf("Failed to search Reddit for tag '%s': %v", tag, err)
			failures++
			lastErr = err
			continue
		}

		cutoff := now.Add(-since)
		for _, post := range posts {
			publishedAt := time.Unix(int64(post.Created), 0)
			if publishedAt.Before(cutoff) {
				continue
			}

			matched := matchTags(post.Title+" "+post.Selftext, tags)
			if len(matched) == 0 {
				continue
			}

			sig := signal{
				id:          fmt.Sprintf("reddit_%s", post.ID),
				platform:    fmt.Sprintf("r/%s", post.Subreddit),
				kind:        r.GetKind(),
				title:       post.Title,
				text:        post.Selftext,
				author:      post.Author,
				url:         fmt.Sprintf("https://reddit.com%s", post.Permalink),
				points:      post.Score,
				comments:    post.NumComments,
				publishedAt: publishedAt,
			}
			allItems = append(allItems, sig.toItem(matched, now, since))
		}
	}

	if len(tags) > 0 && failures == len(tags) {
		return nil, fmt.Errorf("all reddit searches failed: %w", lastErr)
	}

	return deduplicateItems(allItems), nil
}

// redditTimeRange picks the narrowest search window Reddit offers that still covers since.
func redditTimeRange(since time.Duration) string {
	switch {
	case since <= 0:
		return "all"
	case since <= time.Hour:
		return "hour"
	case since <= 24*time.Hour:
		return "day"
	case since <= 7*24*time.Hour:
		return "week"
	case since <= 31*24*time.Hour:
		return "month"
	case since <= 366*24*time.Hour:
		return "year"
	default:
		return "all"
	}
}

// token returns a cached application token, refreshing it shortly before expiry.
func (r *RedditSource) token(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.accessToken != "" && time.Now().Before(r.expiresAt) {
		return r.accessToken, nil
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetBasicAuth(r.clientID, r.clientSecret).
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
		}).
		Post(r.authURL)

	if err != nil {
		return "", err
	}

	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("reddit auth returned status %d", resp.StatusCode())
	}

	var authResp redditAuthResponse
	if err := json.Unmarshal(resp.Body(), &authResp); err != nil {
		return "", err
	}
	if authResp.AccessToken == "" {
		return "", fmt.Errorf("reddit auth returned no access token")
	}

	r.accessToken = authResp.AccessToken
	r.expiresAt = time.Now().Add(time.Duration(authResp.ExpiresIn)*time.Second - time.Minute)
	return r.accessToken, nil
}

func (r *RedditSource) search(ctx context.Context, token, tag string, since time.Duration) ([]redditPost, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(map[string]string{
			"q":     tag,
			"sort":  "new",
			"limit": "100",
			"t":     redditTimeRange(since),
		}).
		Get(r.apiURL + "/search.json")

	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("reddit API returned status %d", resp.StatusCode())
	}

	var searchResp redditSearchResponse
	if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
		return nil, err
	}

	posts := make([]redditPost, 0, len(searchResp.Data.Children))
	for _, child := range searchResp.Data.Children {
		posts = append(posts, child.Data)
	}
	return posts, nil
}
