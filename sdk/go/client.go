package comassistsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal L'Assistant Com' HTTP API client.
type Client struct {
	BaseURL     string
	UserID      string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, userID string) *Client {
	return &Client{
		BaseURL: baseURL,
		UserID:  userID,
		Timeout: 10 * time.Second,
	}
}

// Plan is the weekly communication plan.
type Plan struct {
	UserID               string   `json:"user_id"`
	DailyTime            int      `json:"daily_time"`
	ActiveDays           []string `json:"active_days"`
	Channels             []string `json:"channels"`
	InstaPostsPerWeek    int      `json:"insta_posts_per_week"`
	InstaStoriesPerWeek  int      `json:"insta_stories_per_week"`
	InstaReelsPerMonth   int      `json:"insta_reels_per_month"`
	LinkedinPostsPerWeek int      `json:"linkedin_posts_per_week"`
	NewsletterFrequency  string   `json:"newsletter_frequency"`
	MonthlyGoal          string   `json:"monthly_goal,omitempty"`
}

// RoutineTask is one generated routine entry.
type RoutineTask struct {
	Title      string `json:"title"`
	Type       string `json:"type"`
	Channel    string `json:"channel,omitempty"`
	Recurrence string `json:"recurrence"`
	DayOfWeek  string `json:"day_of_week,omitempty"`
	Duration   int    `json:"duration_minutes"`
	SortOrder  int    `json:"sort_order"`
}

// ContentItem is a calendar entry.
type ContentItem struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Channel     string `json:"channel"`
	Format      string `json:"format,omitempty"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	Date        string `json:"date,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

// Score is the composite communication score.
type Score struct {
	UserID     string `json:"user_id"`
	Total      int    `json:"total"`
	Branding   int    `json:"branding"`
	Regularity int    `json:"regularity"`
	Engagement int    `json:"engagement"`
	Channels   int    `json:"channels"`
	AIUsage    int    `json:"ai_usage"`
	Trend      int    `json:"trend"`
	ComputedAt string `json:"computed_at,omitempty"`
}

// WeekStatus is one evaluated calendar week.
type WeekStatus struct {
	WeekStart string `json:"week_start"`
	Planned   int    `json:"planned"`
	Published int    `json:"published"`
	Status    string `json:"status"`
}

// Streaks bundles the week history with the current streak count.
type Streaks struct {
	Weeks  []WeekStatus `json:"weeks"`
	Streak int          `json:"streak"`
}

// Badge is a catalogue entry with its unlock state.
type Badge struct {
	ID          string `json:"id"`
	Emoji       string `json:"emoji"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Unlocked    bool   `json:"unlocked"`
	UnlockedAt  string `json:"unlocked_at,omitempty"`
}

// AuditScore is the scored questionnaire result.
type AuditScore struct {
	Total      int                      `json:"total"`
	Label      string                   `json:"label"`
	Categories map[string]AuditCategory `json:"categories"`
	Pages      map[string]int           `json:"pages,omitempty"`
}

// AuditCategory is one scored audit category.
type AuditCategory struct {
	Score           int              `json:"score"`
	Max             int              `json:"max"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Recommendation is a prioritized improvement hint.
type Recommendation struct {
	Priority string `json:"priority"`
	Text     string `json:"text"`
}

// Event is a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	UserID     string         `json:"user_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// GetPlan fetches the stored weekly plan.
func (c *Client) GetPlan(ctx context.Context) (Plan, error) {
	var resp Plan
	err := c.do(ctx, http.MethodGet, c.userPath("plan"), nil, &resp)
	return resp, err
}

// PutPlan saves the weekly plan.
func (c *Client) PutPlan(ctx context.Context, plan Plan) (Plan, error) {
	var resp Plan
	err := c.do(ctx, http.MethodPut, c.userPath("plan"), plan, &resp)
	return resp, err
}

// Routine returns the tasks generated from the plan.
func (c *Client) Routine(ctx context.Context) ([]RoutineTask, error) {
	var resp []RoutineTask
	err := c.do(ctx, http.MethodGet, c.userPath("routine"), nil, &resp)
	return resp, err
}

// CreateContent adds a calendar entry.
func (c *Client) CreateContent(ctx context.Context, channel, format, title, date string) (ContentItem, error) {
	body := map[string]any{
		"channel": channel,
		"format":  format,
		"title":   title,
		"date":    date,
	}
	var resp ContentItem
	err := c.do(ctx, http.MethodPost, c.userPath("content"), body, &resp)
	return resp, err
}

// SetContentStatus moves an item through its lifecycle.
func (c *Client) SetContentStatus(ctx context.Context, id, status string, force bool) (ContentItem, error) {
	body := map[string]any{"status": status, "force": force}
	var resp ContentItem
	endpoint := c.userPath(fmt.Sprintf("content/%s/status", url.PathEscape(id)))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// PublishContent publishes an item, stamping published_at.
func (c *Client) PublishContent(ctx context.Context, id string, force bool) (ContentItem, error) {
	endpoint := c.userPath(fmt.Sprintf("content/%s/publish", url.PathEscape(id)))
	if force {
		endpoint += "?force=true"
	}
	var resp ContentItem
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// LogEngagement records the daily engagement routine.
func (c *Client) LogEngagement(ctx context.Context, logDate string, streakMaintained bool, tasksDone int) error {
	body := map[string]any{
		"log_date":          logDate,
		"streak_maintained": streakMaintained,
		"tasks_done":        tasksDone,
	}
	return c.do(ctx, http.MethodPost, c.userPath("engagement"), body, nil)
}

// Score computes the composite score. Set cached to serve the latest
// snapshot instead of recomputing.
func (c *Client) Score(ctx context.Context, cached bool) (Score, error) {
	endpoint := c.userPath("score")
	if cached {
		endpoint += "?cached=true"
	}
	var resp Score
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// RefreshScore recomputes and caches a score snapshot.
func (c *Client) RefreshScore(ctx context.Context) (Score, error) {
	var resp Score
	err := c.do(ctx, http.MethodPost, c.userPath("score/refresh"), nil, &resp)
	return resp, err
}

// Streaks returns the trailing week history and current streak.
func (c *Client) Streaks(ctx context.Context, weeks int) (Streaks, error) {
	endpoint := c.userPath("streaks")
	if weeks > 0 {
		endpoint = fmt.Sprintf("%s?weeks=%d", endpoint, weeks)
	}
	var resp Streaks
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Badges lists the badge catalogue with unlock state.
func (c *Client) Badges(ctx context.Context) ([]Badge, error) {
	var resp []Badge
	err := c.do(ctx, http.MethodGet, c.userPath("badges"), nil, &resp)
	return resp, err
}

// CheckBadges evaluates badge predicates and unlocks any newly earned ones.
func (c *Client) CheckBadges(ctx context.Context) ([]Badge, error) {
	var resp struct {
		NewBadges []Badge `json:"new_badges"`
	}
	err := c.do(ctx, http.MethodPost, c.userPath("badges/check"), nil, &resp)
	return resp.NewBadges, err
}

// ScoreAudit scores a questionnaire without recording it.
func (c *Client) ScoreAudit(ctx context.Context, answers map[string]string) (AuditScore, error) {
	body := map[string]any{"answers": answers}
	var resp AuditScore
	err := c.do(ctx, http.MethodPost, "v1/audit/score", body, &resp)
	return resp, err
}

// SubmitAudit scores and records a questionnaire.
func (c *Client) SubmitAudit(ctx context.Context, answers map[string]string) (AuditScore, error) {
	body := map[string]any{"answers": answers}
	var resp AuditScore
	err := c.do(ctx, http.MethodPost, c.userPath("audits"), body, &resp)
	return resp, err
}

// Events returns recent events, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := c.userPath("events")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp struct {
		Items []Event `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) userPath(p string) string {
	user := url.PathEscape(c.UserID)
	return fmt.Sprintf("v1/users/%s/%s", user, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
