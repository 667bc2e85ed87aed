package repo

import (
	"context"
	"database/sql"
	"strings"

	"comassist/internal/domain"
)

func scanContentItem(scan func(dest ...any) error) (domain.ContentItem, error) {
	var c domain.ContentItem
	var format, publishedAt sql.NullString
	err := scan(&c.ID, &c.UserID, &c.Channel, &format, &c.Title, &c.Status, &c.Date, &publishedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	if format.Valid {
		c.Format = format.String
	}
	if publishedAt.Valid {
		c.PublishedAt = &publishedAt.String
	}
	return c, nil
}

const contentColumns = `id,user_id,channel,format,title,status,date,published_at,created_at,updated_at`

func (r Repo) InsertContentItemTx(ctx context.Context, tx *sql.Tx, c domain.ContentItem) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO content_items(`+contentColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.UserID, c.Channel, nullable(c.Format), c.Title, c.Status, c.Date, nullableStringPtr(c.PublishedAt), c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) UpdateContentItemTx(ctx context.Context, tx *sql.Tx, c domain.ContentItem) error {
	_, err := tx.ExecContext(ctx, `UPDATE content_items SET channel=?, format=?, title=?, status=?, date=?, published_at=?, updated_at=? WHERE id=?`,
		c.Channel, nullable(c.Format), c.Title, c.Status, c.Date, nullableStringPtr(c.PublishedAt), c.UpdatedAt, c.ID)
	return err
}

func (r Repo) GetContentItem(ctx context.Context, id string) (domain.ContentItem, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM content_items WHERE id=?`, id)
	c, err := scanContentItem(row.Scan)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

type ContentFilters struct {
	UserID   string
	Channel  string
	Status   string
	DateFrom string
	DateTo   string
	Limit    int
}

func (r Repo) ListContentItems(ctx context.Context, f ContentFilters) ([]domain.ContentItem, error) {
	clauses := []string{"user_id=?"}
	args := []any{f.UserID}
	if f.Channel != "" {
		clauses = append(clauses, "channel=?")
		args = append(args, f.Channel)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.DateFrom != "" {
		clauses = append(clauses, "date>=?")
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		clauses = append(clauses, "date<=?")
		args = append(args, f.DateTo)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := `SELECT ` + contentColumns + ` FROM content_items ` + where + ` ORDER BY date ASC, id ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ContentItem
	for rows.Next() {
		c, err := scanContentItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, nil
}

func (r Repo) UpsertDailyLogTx(ctx context.Context, tx *sql.Tx, l domain.DailyLog) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO daily_logs(user_id,log_date,streak_maintained,tasks_done) VALUES (?,?,?,?)
ON CONFLICT(user_id,log_date) DO UPDATE SET streak_maintained=excluded.streak_maintained, tasks_done=excluded.tasks_done`,
		l.UserID, l.LogDate, l.StreakMaintained, l.TasksDone)
	return err
}

func (r Repo) GetDailyLog(ctx context.Context, userID, logDate string) (domain.DailyLog, error) {
	var l domain.DailyLog
	err := r.DB.QueryRowContext(ctx, `SELECT user_id,log_date,streak_maintained,tasks_done FROM daily_logs WHERE user_id=? AND log_date=?`, userID, logDate).
		Scan(&l.UserID, &l.LogDate, &l.StreakMaintained, &l.TasksDone)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	return l, err
}

func (r Repo) UpsertBrandingProfileTx(ctx context.Context, tx *sql.Tx, b domain.BrandingProfile) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO branding_profiles(user_id,mission,brand_values,audience,tone,palette,bio,bio_validated,updated_at)
VALUES (?,?,?,?,?,?,?,?,?)
ON CONFLICT(user_id) DO UPDATE SET mission=excluded.mission, brand_values=excluded.brand_values, audience=excluded.audience,
tone=excluded.tone, palette=excluded.palette, bio=excluded.bio, bio_validated=excluded.bio_validated, updated_at=excluded.updated_at`,
		b.UserID, nullable(b.Mission), nullable(b.Values), nullable(b.Audience), nullable(b.Tone),
		nullable(b.Palette), nullable(b.Bio), b.BioValidated, b.UpdatedAt)
	return err
}

func (r Repo) GetBrandingProfile(ctx context.Context, userID string) (domain.BrandingProfile, error) {
	var b domain.BrandingProfile
	err := r.DB.QueryRowContext(ctx, `SELECT user_id,COALESCE(mission,''),COALESCE(brand_values,''),COALESCE(audience,''),COALESCE(tone,''),COALESCE(palette,''),COALESCE(bio,''),bio_validated,updated_at FROM branding_profiles WHERE user_id=?`, userID).
		Scan(&b.UserID, &b.Mission, &b.Values, &b.Audience, &b.Tone, &b.Palette, &b.Bio, &b.BioValidated, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	return b, err
}

func (r Repo) InsertAIGeneration(ctx context.Context, g domain.AIGeneration) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO ai_generations(id,user_id,channel,kind,created_at) VALUES (?,?,?,?,?)`,
		g.ID, g.UserID, nullable(g.Channel), nullable(g.Kind), g.CreatedAt)
	return err
}

func (r Repo) InsertPin(ctx context.Context, p domain.Pin) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO pins(id,user_id,board,created_at) VALUES (?,?,?,?)`,
		p.ID, p.UserID, nullable(p.Board), p.CreatedAt)
	return err
}

func (r Repo) TouchSitePage(ctx context.Context, s domain.SitePage) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO site_pages(user_id,page,updated_at) VALUES (?,?,?)
ON CONFLICT(user_id,page) DO UPDATE SET updated_at=excluded.updated_at`, s.UserID, s.Page, s.UpdatedAt)
	return err
}
