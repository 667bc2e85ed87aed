package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"comassist/internal/config"
	"comassist/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertUser(ctx context.Context, u domain.User) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO users(id,email,name,created_at) VALUES (?,?,?,?)`,
		u.ID, nullable(u.Email), nullable(u.Name), u.CreatedAt)
	return err
}

func (r Repo) EnsureUser(ctx context.Context, tx *sql.Tx, id, createdAt string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO users(id,created_at) VALUES (?,?)`, id, createdAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	var email, name sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,email,name,created_at FROM users WHERE id=?`, id).
		Scan(&u.ID, &email, &name, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if email.Valid {
		u.Email = email.String
	}
	if name.Valid {
		u.Name = name.String
	}
	return u, err
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,COALESCE(email,''),COALESCE(name,''),created_at FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, nil
}

// SingleUser returns the only user in the workspace, or an error when zero
// or several exist.
func (r Repo) SingleUser(ctx context.Context) (domain.User, error) {
	users, err := r.ListUsers(ctx)
	if err != nil {
		return domain.User{}, err
	}
	if len(users) == 0 {
		return domain.User{}, ErrNotFound
	}
	if len(users) > 1 {
		return domain.User{}, fmt.Errorf("multiple users exist; specify --user-id")
	}
	return users[0], nil
}

func (r Repo) UpsertUserConfig(ctx context.Context, userID string, cfg *config.Config) error {
	return upsertUserConfig(ctx, r.DB, nil, userID, cfg)
}

func (r Repo) UpsertUserConfigTx(ctx context.Context, tx *sql.Tx, userID string, cfg *config.Config) error {
	return upsertUserConfig(ctx, nil, tx, userID, cfg)
}

func upsertUserConfig(ctx context.Context, db *sql.DB, tx *sql.Tx, userID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.User.ID = userID
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return db.ExecContext(ctx, query, args...)
	}
	_, err = exec(`INSERT INTO user_configs(user_id,config_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(user_id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, userID, string(payload), now, now)
	return err
}

func (r Repo) GetUserConfig(ctx context.Context, userID string) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM user_configs WHERE user_id=?`, userID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	if cfg.User.ID == "" {
		cfg.User.ID = userID
	}
	return &cfg, cfg.Validate()
}

func (r Repo) UpsertCommPlanTx(ctx context.Context, tx *sql.Tx, p domain.CommPlan) error {
	days, err := json.Marshal(p.ActiveDays)
	if err != nil {
		return err
	}
	channels, err := json.Marshal(p.Channels)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO comm_plans(user_id,daily_time,active_days,channels,insta_posts_per_week,insta_stories_per_week,insta_reels_per_month,linkedin_posts_per_week,newsletter_frequency,monthly_goal,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(user_id) DO UPDATE SET daily_time=excluded.daily_time, active_days=excluded.active_days, channels=excluded.channels,
insta_posts_per_week=excluded.insta_posts_per_week, insta_stories_per_week=excluded.insta_stories_per_week,
insta_reels_per_month=excluded.insta_reels_per_month, linkedin_posts_per_week=excluded.linkedin_posts_per_week,
newsletter_frequency=excluded.newsletter_frequency, monthly_goal=excluded.monthly_goal, updated_at=excluded.updated_at`,
		p.UserID, p.DailyTime, string(days), string(channels), p.InstaPostsPerWeek, p.InstaStoriesPerWeek,
		p.InstaReelsPerMonth, p.LinkedinPostsPerWeek, p.NewsletterFrequency, nullable(p.MonthlyGoal), p.UpdatedAt)
	return err
}

func (r Repo) GetCommPlan(ctx context.Context, userID string) (domain.CommPlan, error) {
	var p domain.CommPlan
	var days, channels string
	var goal sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT user_id,daily_time,active_days,channels,insta_posts_per_week,insta_stories_per_week,insta_reels_per_month,linkedin_posts_per_week,newsletter_frequency,monthly_goal,updated_at FROM comm_plans WHERE user_id=?`, userID).
		Scan(&p.UserID, &p.DailyTime, &days, &channels, &p.InstaPostsPerWeek, &p.InstaStoriesPerWeek,
			&p.InstaReelsPerMonth, &p.LinkedinPostsPerWeek, &p.NewsletterFrequency, &goal, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if goal.Valid {
		p.MonthlyGoal = goal.String
	}
	if err := json.Unmarshal([]byte(days), &p.ActiveDays); err != nil {
		return p, fmt.Errorf("plan active_days: %w", err)
	}
	if err := json.Unmarshal([]byte(channels), &p.Channels); err != nil {
		return p, fmt.Errorf("plan channels: %w", err)
	}
	return p, nil
}

func (r Repo) InsertNotificationTx(ctx context.Context, tx *sql.Tx, n domain.Notification) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO notifications(id,user_id,emoji,title,body,read,created_at) VALUES (?,?,?,?,?,?,?)`,
		n.ID, n.UserID, nullable(n.Emoji), n.Title, nullable(n.Body), n.Read, n.CreatedAt)
	return err
}

type NotificationFilters struct {
	UserID     string
	UnreadOnly bool
	Limit      int
}

func (r Repo) ListNotifications(ctx context.Context, f NotificationFilters) ([]domain.Notification, error) {
	clauses := []string{"user_id=?"}
	args := []any{f.UserID}
	if f.UnreadOnly {
		clauses = append(clauses, "read=0")
	}
	query := `SELECT id,user_id,COALESCE(emoji,''),title,COALESCE(body,''),read,created_at FROM notifications WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Emoji, &n.Title, &n.Body, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, nil
}

func (r Repo) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE notifications SET read=1 WHERE user_id=? AND id=?`, userID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) LatestEvents(ctx context.Context, limit int, userID, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if userID != "" {
		clauses = append(clauses, "user_id=?")
		args = append(args, userID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,COALESCE(user_id,''),entity_kind,COALESCE(entity_id,''),payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.UserID, &e.EntityKind, &e.EntityID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
