package domain

// Channel identifiers used across plans, content items and scoring.
const (
	ChannelInstagram = "instagram"
	ChannelLinkedin  = "linkedin"
	ChannelPinterest = "pinterest"
	ChannelWebsite   = "website"
)

// Newsletter frequency values on a CommPlan.
const (
	NewsletterNone    = "none"
	NewsletterWeekly  = "weekly"
	NewsletterMonthly = "monthly"
)

type User struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// CommPlan is a user's weekly communication plan: the time budget, the days
// they work on their communication, and per-channel content quotas.
type CommPlan struct {
	UserID               string   `json:"user_id"`
	DailyTime            int      `json:"daily_time"`
	ActiveDays           []string `json:"active_days"`
	Channels             []string `json:"channels"`
	InstaPostsPerWeek    int      `json:"insta_posts_per_week"`
	InstaStoriesPerWeek  int      `json:"insta_stories_per_week"`
	InstaReelsPerMonth   int      `json:"insta_reels_per_month"`
	LinkedinPostsPerWeek int      `json:"linkedin_posts_per_week"`
	NewsletterFrequency  string   `json:"newsletter_frequency" enum:"none,weekly,monthly"`
	MonthlyGoal          string   `json:"monthly_goal,omitempty"`
	UpdatedAt            string   `json:"updated_at" format:"date-time"`
}

// GeneratedTask is one recurring routine task derived from a CommPlan.
// The list is regenerated wholesale whenever the plan changes.
type GeneratedTask struct {
	Title      string  `json:"title"`
	Type       string  `json:"type" enum:"content_post,content_story,content_reel,content_newsletter,engagement,admin"`
	Channel    *string `json:"channel,omitempty"`
	Recurrence string  `json:"recurrence" enum:"daily,weekly,monthly"`
	DayOfWeek  *string `json:"day_of_week,omitempty"`
	Duration   int     `json:"duration_minutes"`
	SortOrder  int     `json:"sort_order"`
}

type ContentItem struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Channel     string  `json:"channel"`
	Format      string  `json:"format,omitempty"`
	Title       string  `json:"title"`
	Status      string  `json:"status" enum:"idea,a_rediger,drafting,ready,published"`
	Date        string  `json:"date" format:"date"`
	PublishedAt *string `json:"published_at,omitempty" format:"date-time"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

// WeekStatus classifies one calendar week of scheduled-vs-published content.
type WeekStatus struct {
	WeekStart string `json:"week_start" format:"date"`
	Planned   int    `json:"planned"`
	Published int    `json:"published"`
	Status    string `json:"status" enum:"empty,missed,partial,complete"`
}

type DailyLog struct {
	UserID           string `json:"user_id"`
	LogDate          string `json:"log_date" format:"date"`
	StreakMaintained bool   `json:"streak_maintained"`
	TasksDone        int    `json:"tasks_done"`
}

type BrandingProfile struct {
	UserID       string `json:"user_id"`
	Mission      string `json:"mission,omitempty"`
	Values       string `json:"values,omitempty"`
	Audience     string `json:"audience,omitempty"`
	Tone         string `json:"tone,omitempty"`
	Palette      string `json:"palette,omitempty"`
	Bio          string `json:"bio,omitempty"`
	BioValidated bool   `json:"bio_validated"`
	UpdatedAt    string `json:"updated_at" format:"date-time"`
}

type AIGeneration struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Channel   string `json:"channel,omitempty"`
	Kind      string `json:"kind,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Pin struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Board     string `json:"board,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type SitePage struct {
	UserID    string `json:"user_id"`
	Page      string `json:"page"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

// ComScore is the weighted composite communication score.
type ComScore struct {
	Branding   int    `json:"branding"`
	Regularity int    `json:"regularity"`
	Engagement int    `json:"engagement"`
	Channels   int    `json:"channels"`
	AIUsage    int    `json:"ai_usage"`
	Total      int    `json:"total"`
	Trend      int    `json:"trend"`
	ComputedAt string `json:"computed_at" format:"date-time"`
}

type UnlockedBadge struct {
	UserID     string `json:"user_id"`
	BadgeID    string `json:"badge_id"`
	UnlockedAt string `json:"unlocked_at" format:"date-time"`
}

type Notification struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Emoji     string `json:"emoji,omitempty"`
	Title     string `json:"title"`
	Body      string `json:"body,omitempty"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Audit struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	ScoreGlobal int    `json:"score_global"`
	AnswersJSON string `json:"answers_json,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	UserID     string `json:"user_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
