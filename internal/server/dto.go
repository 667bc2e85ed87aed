package server

import (
	"encoding/json"

	"comassist/internal/domain"
	"comassist/internal/engine"
)

type PlanRequest struct {
	DailyTime            int      `json:"daily_time" minimum:"0"`
	ActiveDays           []string `json:"active_days,omitempty"`
	Channels             []string `json:"channels,omitempty"`
	InstaPostsPerWeek    int      `json:"insta_posts_per_week,omitempty" minimum:"0"`
	InstaStoriesPerWeek  int      `json:"insta_stories_per_week,omitempty" minimum:"0"`
	InstaReelsPerMonth   int      `json:"insta_reels_per_month,omitempty" minimum:"0"`
	LinkedinPostsPerWeek int      `json:"linkedin_posts_per_week,omitempty" minimum:"0"`
	NewsletterFrequency  string   `json:"newsletter_frequency,omitempty" enum:"none,weekly,monthly"`
	MonthlyGoal          string   `json:"monthly_goal,omitempty"`
}

type CreateContentRequest struct {
	ID      *string `json:"id,omitempty"`
	Channel string  `json:"channel"`
	Format  string  `json:"format,omitempty"`
	Title   string  `json:"title"`
	Status  string  `json:"status,omitempty" enum:"idea,a_rediger,drafting,ready,published"`
	Date    string  `json:"date,omitempty" format:"date"`
}

type ContentStatusRequest struct {
	Status string `json:"status" enum:"idea,a_rediger,drafting,ready,published"`
	Force  bool   `json:"force,omitempty"`
}

type EngagementRequest struct {
	LogDate          string `json:"log_date,omitempty" format:"date"`
	StreakMaintained bool   `json:"streak_maintained"`
	TasksDone        int    `json:"tasks_done,omitempty" minimum:"0"`
}

type BrandingRequest struct {
	Mission      string `json:"mission,omitempty"`
	Values       string `json:"values,omitempty"`
	Audience     string `json:"audience,omitempty"`
	Tone         string `json:"tone,omitempty"`
	Palette      string `json:"palette,omitempty"`
	Bio          string `json:"bio,omitempty"`
	BioValidated bool   `json:"bio_validated,omitempty"`
}

type AuditSubmitRequest struct {
	Answers map[string]string `json:"answers"`
}

type AuditScoreRequest struct {
	Answers map[string]string            `json:"answers,omitempty"`
	Pages   map[string]map[string]string `json:"pages,omitempty"`
}

type CategoryResult struct {
	Score           int                     `json:"score"`
	Max             int                     `json:"max"`
	Recommendations []engine.Recommendation `json:"recommendations"`
}

type AuditScoreResponse struct {
	Total      int                       `json:"total"`
	Label      string                    `json:"label"`
	Categories map[string]CategoryResult `json:"categories"`
	Pages      map[string]int            `json:"pages,omitempty"`
}

type AuditResponse struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	ScoreGlobal int            `json:"score_global"`
	Label       string         `json:"label"`
	Answers     map[string]any `json:"answers,omitempty"`
	CreatedAt   string         `json:"created_at" format:"date-time"`
}

type StreaksResponse struct {
	Weeks  []domain.WeekStatus `json:"weeks"`
	Streak int                 `json:"streak"`
}

type BadgeResponse struct {
	ID          string `json:"id"`
	Emoji       string `json:"emoji"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Unlocked    bool   `json:"unlocked"`
	UnlockedAt  string `json:"unlocked_at,omitempty" format:"date-time"`
}

type CheckBadgesResponse struct {
	NewBadges []BadgeResponse `json:"new_badges"`
}

type DevLoginRequest struct {
	UserID string `json:"user_id"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type WhoAmIResponse struct {
	UserID string `json:"user_id"`
	Source string `json:"source"`
}

type paginatedEvents struct {
	Items []EventResponse `json:"items"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	UserID     string         `json:"user_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

func auditScoreResponse(result engine.AuditScoreResult) AuditScoreResponse {
	resp := AuditScoreResponse{
		Total:      result.Total,
		Label:      engine.WebsiteScoreLabel(result.Total),
		Categories: make(map[string]CategoryResult, len(result.Categories)),
	}
	for id, cat := range result.Categories {
		resp.Categories[id] = CategoryResult{
			Score:           cat.Score,
			Max:             cat.Max,
			Recommendations: nonNilSlice(engine.CategoryRecommendations(id, cat.Score, cat.Max)),
		}
	}
	return resp
}

func auditResponse(a domain.Audit) AuditResponse {
	resp := AuditResponse{
		ID:          a.ID,
		UserID:      a.UserID,
		ScoreGlobal: a.ScoreGlobal,
		Label:       engine.WebsiteScoreLabel(a.ScoreGlobal),
		CreatedAt:   a.CreatedAt,
	}
	if a.AnswersJSON != "" {
		var answers map[string]any
		if err := json.Unmarshal([]byte(a.AnswersJSON), &answers); err == nil {
			resp.Answers = answers
		}
	}
	return resp
}

func badgeResponses(unlocked []domain.UnlockedBadge) []BadgeResponse {
	byID := map[string]domain.UnlockedBadge{}
	for _, b := range unlocked {
		byID[b.BadgeID] = b
	}
	out := make([]BadgeResponse, 0, len(engine.BadgeCatalog))
	for _, def := range engine.BadgeCatalog {
		resp := BadgeResponse{
			ID:          def.ID,
			Emoji:       def.Emoji,
			Title:       def.Title,
			Description: def.Description,
		}
		if b, ok := byID[def.ID]; ok {
			resp.Unlocked = true
			resp.UnlockedAt = b.UnlockedAt
		}
		out = append(out, resp)
	}
	return out
}

func newBadgeResponses(badges []domain.UnlockedBadge) []BadgeResponse {
	out := make([]BadgeResponse, 0, len(badges))
	for _, b := range badges {
		def, _ := engine.BadgeByID(b.BadgeID)
		out = append(out, BadgeResponse{
			ID:          b.BadgeID,
			Emoji:       def.Emoji,
			Title:       def.Title,
			Description: def.Description,
			Unlocked:    true,
			UnlockedAt:  b.UnlockedAt,
		})
	}
	return out
}

func eventResponse(e domain.Event) EventResponse {
	resp := EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		UserID:     e.UserID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
	}
	if e.Payload != "" {
		var payload map[string]any
		if err := json.Unmarshal([]byte(e.Payload), &payload); err == nil {
			resp.Payload = payload
		}
	}
	return resp
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
