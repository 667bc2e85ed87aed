package repo

import (
	"context"
	"database/sql"

	"comassist/internal/domain"
)

// Aggregation queries backing the score calculator and badge engine. Windows
// are half-open [from, to) on RFC3339 timestamps unless noted.

func (r Repo) CountPublishedBetween(ctx context.Context, userID, from, to string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM content_items WHERE user_id=? AND status='published' AND published_at>=? AND published_at<?`,
		userID, from, to).Scan(&n)
	return n, err
}

func (r Repo) CountPublishedTotal(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM content_items WHERE user_id=? AND status='published'`, userID).Scan(&n)
	return n, err
}

func (r Repo) CountPublishedByFormat(ctx context.Context, userID, format string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM content_items WHERE user_id=? AND status='published' AND format=?`,
		userID, format).Scan(&n)
	return n, err
}

func (r Repo) CountStreakDays(ctx context.Context, userID, from, to string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM daily_logs WHERE user_id=? AND streak_maintained=1 AND log_date>=? AND log_date<?`,
		userID, from, to).Scan(&n)
	return n, err
}

func (r Repo) CountAIGenerations(ctx context.Context, userID, from, to string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM ai_generations WHERE user_id=? AND created_at>=? AND created_at<?`,
		userID, from, to).Scan(&n)
	return n, err
}

func (r Repo) HasChannelPublicationSince(ctx context.Context, userID, channel, since string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM content_items WHERE user_id=? AND channel=? AND status='published' AND published_at>=? LIMIT 1`,
		userID, channel, since).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) HasAIGenerationSince(ctx context.Context, userID, channel, since string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM ai_generations WHERE user_id=? AND channel=? AND created_at>=? LIMIT 1`,
		userID, channel, since).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) HasPinSince(ctx context.Context, userID, since string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM pins WHERE user_id=? AND created_at>=? LIMIT 1`, userID, since).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) HomepageUpdatedSince(ctx context.Context, userID, since string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM site_pages WHERE user_id=? AND page='accueil' AND updated_at>=? LIMIT 1`,
		userID, since).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// BrandingCompletion derives the branding completion percentage from how many
// profile sections are filled in. A missing profile is 0, not an error.
func (r Repo) BrandingCompletion(ctx context.Context, userID string) (int, error) {
	b, err := r.GetBrandingProfile(ctx, userID)
	if err != nil {
		if err == ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	sections := []string{b.Mission, b.Values, b.Audience, b.Tone, b.Palette, b.Bio}
	filled := 0
	for _, s := range sections {
		if s != "" {
			filled++
		}
	}
	return filled * 100 / len(sections), nil
}

func (r Repo) InsertAudit(ctx context.Context, tx *sql.Tx, a domain.Audit) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO audits(id,user_id,score_global,answers_json,created_at) VALUES (?,?,?,?,?)`,
		a.ID, a.UserID, a.ScoreGlobal, nullable(a.AnswersJSON), a.CreatedAt)
	return err
}

func (r Repo) ListAudits(ctx context.Context, userID string, limit int) ([]domain.Audit, error) {
	query := `SELECT id,user_id,score_global,COALESCE(answers_json,''),created_at FROM audits WHERE user_id=? ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Audit
	for rows.Next() {
		var a domain.Audit
		if err := rows.Scan(&a.ID, &a.UserID, &a.ScoreGlobal, &a.AnswersJSON, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, nil
}

// LastTwoAuditScores returns the most recent audit scores, newest first.
func (r Repo) LastTwoAuditScores(ctx context.Context, userID string) ([]int, error) {
	audits, err := r.ListAudits(ctx, userID, 2)
	if err != nil {
		return nil, err
	}
	scores := make([]int, 0, len(audits))
	for _, a := range audits {
		scores = append(scores, a.ScoreGlobal)
	}
	return scores, nil
}

func (r Repo) ListUnlockedBadgeIDs(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT badge_id FROM unlocked_badges WHERE user_id=?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, nil
}

func (r Repo) ListUnlockedBadges(ctx context.Context, userID string) ([]domain.UnlockedBadge, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT user_id,badge_id,unlocked_at FROM unlocked_badges WHERE user_id=? ORDER BY unlocked_at ASC, badge_id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.UnlockedBadge
	for rows.Next() {
		var b domain.UnlockedBadge
		if err := rows.Scan(&b.UserID, &b.BadgeID, &b.UnlockedAt); err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, nil
}

func (r Repo) InsertUnlockedBadgeTx(ctx context.Context, tx *sql.Tx, b domain.UnlockedBadge) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO unlocked_badges(user_id,badge_id,unlocked_at) VALUES (?,?,?)`,
		b.UserID, b.BadgeID, b.UnlockedAt)
	return err
}

func (r Repo) UpsertScoreSnapshot(ctx context.Context, userID string, s domain.ComScore) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO score_snapshots(user_id,computed_at,branding,regularity,engagement,channels,ai_usage,total,trend)
VALUES (?,?,?,?,?,?,?,?,?)
ON CONFLICT(user_id,computed_at) DO UPDATE SET branding=excluded.branding, regularity=excluded.regularity,
engagement=excluded.engagement, channels=excluded.channels, ai_usage=excluded.ai_usage, total=excluded.total, trend=excluded.trend`,
		userID, s.ComputedAt, s.Branding, s.Regularity, s.Engagement, s.Channels, s.AIUsage, s.Total, s.Trend)
	return err
}

func (r Repo) LatestScoreSnapshot(ctx context.Context, userID string) (domain.ComScore, error) {
	var s domain.ComScore
	err := r.DB.QueryRowContext(ctx, `SELECT computed_at,branding,regularity,engagement,channels,ai_usage,total,trend FROM score_snapshots WHERE user_id=? ORDER BY computed_at DESC LIMIT 1`, userID).
		Scan(&s.ComputedAt, &s.Branding, &s.Regularity, &s.Engagement, &s.Channels, &s.AIUsage, &s.Total, &s.Trend)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}
