package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"comassist/internal/config"
	"comassist/internal/domain"
	"comassist/internal/events"
	"comassist/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

var weekdayNames = []string{"lun", "mar", "mer", "jeu", "ven", "sam", "dim"}

func validWeekday(day string) bool {
	for _, d := range weekdayNames {
		if d == day {
			return true
		}
	}
	return false
}

// InitUser creates a user row with its seed config.
func (e Engine) InitUser(ctx context.Context, userID, email, name string) (domain.User, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	u := domain.User{
		ID:        userID,
		Email:     email,
		Name:      name,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO users(id,email,name,created_at) VALUES (?,?,?,?)`,
		u.ID, nullable(u.Email), nullable(u.Name), u.CreatedAt); err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	if err := e.Repo.UpsertUserConfigTx(ctx, tx, u.ID, config.Default(u.ID)); err != nil {
		return domain.User{}, fmt.Errorf("insert user config: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "user.created", u.ID, "user", u.ID, events.EventPayload{}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// SaveCommPlan validates and upserts the weekly plan, then logs the change.
func (e Engine) SaveCommPlan(ctx context.Context, p domain.CommPlan) (domain.CommPlan, error) {
	if e.Config == nil {
		return p, errors.New("config not loaded")
	}
	if p.UserID == "" {
		return p, errors.New("user is required")
	}
	if p.DailyTime < 0 {
		return p, errors.New("daily_time must not be negative")
	}
	for _, d := range p.ActiveDays {
		if !validWeekday(d) {
			return p, fmt.Errorf("invalid active day %s", d)
		}
	}
	for _, ch := range p.Channels {
		if !e.Config.KnownChannel(ch) {
			return p, fmt.Errorf("unknown channel %s", ch)
		}
	}
	switch p.NewsletterFrequency {
	case "":
		p.NewsletterFrequency = domain.NewsletterNone
	case domain.NewsletterNone, domain.NewsletterWeekly, domain.NewsletterMonthly:
	default:
		return p, fmt.Errorf("invalid newsletter frequency %s", p.NewsletterFrequency)
	}
	if _, err := e.Repo.GetUser(ctx, p.UserID); err != nil {
		return p, err
	}
	p.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertCommPlanTx(ctx, tx, p); err != nil {
		return p, err
	}
	if err := e.Events.Append(ctx, tx, "plan.updated", p.UserID, "plan", p.UserID, events.EventPayload{
		"daily_time": p.DailyTime,
		"channels":   p.Channels,
	}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	return p, nil
}

// RoutineTasks loads the user's plan and generates the routine from it.
func (e Engine) RoutineTasks(ctx context.Context, userID string) ([]domain.GeneratedTask, error) {
	plan, err := e.Repo.GetCommPlan(ctx, userID)
	if err != nil {
		return nil, err
	}
	return GenerateRoutineTasks(plan), nil
}

// ContentCreateOptions are parameters for creating a calendar item.
type ContentCreateOptions struct {
	ID      string
	UserID  string
	Channel string
	Format  string
	Title   string
	Status  string
	Date    string
}

func (e Engine) CreateContent(ctx context.Context, opts ContentCreateOptions) (domain.ContentItem, error) {
	if e.Config == nil {
		return domain.ContentItem{}, errors.New("config not loaded")
	}
	if opts.Title == "" {
		return domain.ContentItem{}, errors.New("title is required")
	}
	if opts.UserID == "" {
		return domain.ContentItem{}, errors.New("user is required")
	}
	if !e.Config.KnownChannel(opts.Channel) {
		return domain.ContentItem{}, fmt.Errorf("unknown channel %s", opts.Channel)
	}
	if opts.Status == "" {
		opts.Status = "idea"
	}
	if !knownContentStatus(opts.Status) {
		return domain.ContentItem{}, fmt.Errorf("invalid status %s", opts.Status)
	}
	if opts.Date == "" {
		opts.Date = e.now().UTC().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", opts.Date); err != nil {
		return domain.ContentItem{}, fmt.Errorf("invalid date %s", opts.Date)
	}
	if _, err := e.Repo.GetUser(ctx, opts.UserID); err != nil {
		return domain.ContentItem{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	id := opts.ID
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(opts.UserID+"|"+opts.Channel+"|"+opts.Title+"|"+now)).String()
	}
	c := domain.ContentItem{
		ID:        id,
		UserID:    opts.UserID,
		Channel:   opts.Channel,
		Format:    opts.Format,
		Title:     opts.Title,
		Status:    opts.Status,
		Date:      opts.Date,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertContentItemTx(ctx, tx, c); err != nil {
		return c, err
	}
	if err := e.Events.Append(ctx, tx, "content.created", c.UserID, "content", c.ID, events.EventPayload{
		"channel": c.Channel,
		"status":  c.Status,
	}); err != nil {
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return c, err
	}
	return c, nil
}

func knownContentStatus(status string) bool {
	switch status {
	case "idea", "a_rediger", "drafting", "ready", "published":
		return true
	}
	return false
}

func ensureContentTransition(oldStatus, newStatus string, force bool) error {
	if force {
		return nil
	}
	switch oldStatus {
	case "idea":
		if newStatus == "a_rediger" || newStatus == "drafting" {
			return nil
		}
	case "a_rediger", "drafting":
		if newStatus == "ready" || newStatus == "published" {
			return nil
		}
	case "ready":
		if newStatus == "published" {
			return nil
		}
	}
	return fmt.Errorf("invalid content status transition %s -> %s", oldStatus, newStatus)
}

// SetContentStatus moves an item through the editorial lifecycle; reaching
// published stamps published_at.
func (e Engine) SetContentStatus(ctx context.Context, id, status string, force bool) (domain.ContentItem, error) {
	c, err := e.Repo.GetContentItem(ctx, id)
	if err != nil {
		return c, err
	}
	if !knownContentStatus(status) {
		return c, fmt.Errorf("invalid status %s", status)
	}
	if status == c.Status {
		return c, nil
	}
	if err := ensureContentTransition(c.Status, status, force); err != nil {
		return c, err
	}
	from := c.Status
	now := e.now().UTC().Format(time.RFC3339)
	c.Status = status
	c.UpdatedAt = now
	if status == "published" && c.PublishedAt == nil {
		c.PublishedAt = &now
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateContentItemTx(ctx, tx, c); err != nil {
		return c, err
	}
	evtType := "content.updated"
	if status == "published" {
		evtType = "content.published"
	}
	if err := e.Events.Append(ctx, tx, evtType, c.UserID, "content", c.ID, events.EventPayload{
		"from_status": from,
		"to_status":   status,
	}); err != nil {
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return c, err
	}
	return c, nil
}

// PublishContent is a shortcut for the common publish action.
func (e Engine) PublishContent(ctx context.Context, id string, force bool) (domain.ContentItem, error) {
	return e.SetContentStatus(ctx, id, "published", force)
}

// LogEngagement upserts the daily engagement log for one calendar day.
func (e Engine) LogEngagement(ctx context.Context, userID, logDate string, streakMaintained bool, tasksDone int) (domain.DailyLog, error) {
	if userID == "" {
		return domain.DailyLog{}, errors.New("user is required")
	}
	if logDate == "" {
		logDate = e.now().UTC().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", logDate); err != nil {
		return domain.DailyLog{}, fmt.Errorf("invalid log date %s", logDate)
	}
	if _, err := e.Repo.GetUser(ctx, userID); err != nil {
		return domain.DailyLog{}, err
	}
	l := domain.DailyLog{
		UserID:           userID,
		LogDate:          logDate,
		StreakMaintained: streakMaintained,
		TasksDone:        tasksDone,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return l, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertDailyLogTx(ctx, tx, l); err != nil {
		return l, err
	}
	if err := e.Events.Append(ctx, tx, "engagement.logged", userID, "daily_log", logDate, events.EventPayload{
		"streak_maintained": streakMaintained,
	}); err != nil {
		return l, err
	}
	if err := tx.Commit(); err != nil {
		return l, err
	}
	return l, nil
}

// SaveBrandingProfile upserts the branding questionnaire answers.
func (e Engine) SaveBrandingProfile(ctx context.Context, b domain.BrandingProfile) (domain.BrandingProfile, error) {
	if b.UserID == "" {
		return b, errors.New("user is required")
	}
	if _, err := e.Repo.GetUser(ctx, b.UserID); err != nil {
		return b, err
	}
	b.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return b, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertBrandingProfileTx(ctx, tx, b); err != nil {
		return b, err
	}
	if err := e.Events.Append(ctx, tx, "branding.updated", b.UserID, "branding", b.UserID, events.EventPayload{
		"bio_validated": b.BioValidated,
	}); err != nil {
		return b, err
	}
	if err := tx.Commit(); err != nil {
		return b, err
	}
	return b, nil
}

// RecordAudit scores the questionnaire answers and persists the result.
func (e Engine) RecordAudit(ctx context.Context, userID string, answers map[string]string) (domain.Audit, AuditScoreResult, error) {
	if userID == "" {
		return domain.Audit{}, AuditScoreResult{}, errors.New("user is required")
	}
	if _, err := e.Repo.GetUser(ctx, userID); err != nil {
		return domain.Audit{}, AuditScoreResult{}, err
	}
	result := CalculateWebsiteAuditScore(answers)
	payload, err := json.Marshal(answers)
	if err != nil {
		return domain.Audit{}, result, err
	}
	a := domain.Audit{
		ID:          uuid.New().String(),
		UserID:      userID,
		ScoreGlobal: result.Total,
		AnswersJSON: string(payload),
		CreatedAt:   e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, result, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAudit(ctx, tx, a); err != nil {
		return a, result, err
	}
	if err := e.Events.Append(ctx, tx, "audit.submitted", userID, "audit", a.ID, events.EventPayload{
		"score_global": a.ScoreGlobal,
	}); err != nil {
		return a, result, err
	}
	if err := tx.Commit(); err != nil {
		return a, result, err
	}
	return a, result, nil
}

// --- helpers ---

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
