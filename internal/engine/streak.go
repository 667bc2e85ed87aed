package engine

import (
	"context"
	"time"

	"comassist/internal/domain"
	"comassist/internal/repo"
)

// Week status values.
const (
	WeekEmpty    = "empty"
	WeekMissed   = "missed"
	WeekPartial  = "partial"
	WeekComplete = "complete"
)

// plannedStatuses are the content states that count as scheduled work.
// a_rediger is the legacy tag for drafting.
var plannedStatuses = map[string]bool{
	"ready":     true,
	"published": true,
	"drafting":  true,
	"a_rediger": true,
}

// ComputeWeekStatus classifies the items whose date falls within
// [weekStart, weekEnd] inclusive. Dates are YYYY-MM-DD strings, so string
// comparison is date comparison.
func ComputeWeekStatus(items []domain.ContentItem, weekStart, weekEnd string) domain.WeekStatus {
	w := domain.WeekStatus{WeekStart: weekStart}
	for _, item := range items {
		if item.Date < weekStart || item.Date > weekEnd {
			continue
		}
		if !plannedStatuses[item.Status] {
			continue
		}
		w.Planned++
		if item.Status == "published" {
			w.Published++
		}
	}
	switch {
	case w.Planned == 0:
		w.Status = WeekEmpty
	case w.Published == w.Planned:
		w.Status = WeekComplete
	case w.Published == 0:
		w.Status = WeekMissed
	default:
		w.Status = WeekPartial
	}
	return w
}

// ConsecutiveStreaks counts the trailing run of complete weeks, walking the
// list from the most recent week backwards and stopping at the first week
// that is not complete. The input must be in chronological order (oldest
// first) for the result to mean "current streak"; ordering is the caller's
// responsibility. WeekHistory always returns chronological weeks.
func ConsecutiveStreaks(weeks []domain.WeekStatus) int {
	streak := 0
	for i := len(weeks) - 1; i >= 0; i-- {
		if weeks[i].Status != WeekComplete {
			break
		}
		streak++
	}
	return streak
}

// weekStart returns the Monday of the week containing t.
func weekStart(t time.Time) time.Time {
	t = t.UTC().Truncate(24 * time.Hour)
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

// WeekHistory returns the last n calendar weeks for a user in chronological
// order, each classified by ComputeWeekStatus. The current week is last.
func (e Engine) WeekHistory(ctx context.Context, userID string, n int) ([]domain.WeekStatus, error) {
	if n <= 0 {
		n = 12
	}
	current := weekStart(e.now())
	first := current.AddDate(0, 0, -7*(n-1))
	items, err := e.Repo.ListContentItems(ctx, repo.ContentFilters{
		UserID:   userID,
		DateFrom: first.Format("2006-01-02"),
		DateTo:   current.AddDate(0, 0, 6).Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}
	weeks := make([]domain.WeekStatus, 0, n)
	for i := 0; i < n; i++ {
		start := first.AddDate(0, 0, 7*i)
		end := start.AddDate(0, 0, 6)
		weeks = append(weeks, ComputeWeekStatus(items, start.Format("2006-01-02"), end.Format("2006-01-02")))
	}
	return weeks, nil
}

// CurrentStreak is the consecutive complete-week count over a trailing
// 12-week window.
func (e Engine) CurrentStreak(ctx context.Context, userID string) (int, error) {
	weeks, err := e.WeekHistory(ctx, userID, 12)
	if err != nil {
		return 0, err
	}
	return ConsecutiveStreaks(weeks), nil
}
