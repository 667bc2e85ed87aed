package engine_test

import (
	"testing"

	"comassist/internal/domain"
	"comassist/internal/engine"
)

func item(status, date string) domain.ContentItem {
	return domain.ContentItem{Status: status, Date: date}
}

func TestComputeWeekStatus(t *testing.T) {
	start, end := "2024-01-01", "2024-01-07"
	cases := []struct {
		name   string
		items  []domain.ContentItem
		status string
	}{
		{"empty", nil, engine.WeekEmpty},
		{"ideas only", []domain.ContentItem{item("idea", "2024-01-02")}, engine.WeekEmpty},
		{"outside window", []domain.ContentItem{item("published", "2024-01-08")}, engine.WeekEmpty},
		{"all published", []domain.ContentItem{item("published", "2024-01-02"), item("published", "2024-01-05")}, engine.WeekComplete},
		{"none published", []domain.ContentItem{item("ready", "2024-01-02"), item("a_rediger", "2024-01-03")}, engine.WeekMissed},
		{"some published", []domain.ContentItem{item("published", "2024-01-02"), item("drafting", "2024-01-03")}, engine.WeekPartial},
	}
	for _, tc := range cases {
		w := engine.ComputeWeekStatus(tc.items, start, end)
		if w.Status != tc.status {
			t.Errorf("%s: expected %s, got %s (planned=%d published=%d)", tc.name, tc.status, w.Status, w.Planned, w.Published)
		}
	}
}

func TestComputeWeekStatusInclusiveBounds(t *testing.T) {
	items := []domain.ContentItem{
		item("published", "2024-01-01"),
		item("published", "2024-01-07"),
	}
	w := engine.ComputeWeekStatus(items, "2024-01-01", "2024-01-07")
	if w.Planned != 2 || w.Published != 2 {
		t.Fatalf("boundary dates must count: planned=%d published=%d", w.Planned, w.Published)
	}
}

func week(status string) domain.WeekStatus {
	return domain.WeekStatus{Status: status}
}

func TestConsecutiveStreaks(t *testing.T) {
	trailing := []domain.WeekStatus{
		week(engine.WeekMissed),
		week(engine.WeekComplete),
		week(engine.WeekComplete),
		week(engine.WeekComplete),
	}
	if n := engine.ConsecutiveStreaks(trailing); n != 3 {
		t.Fatalf("expected streak 3, got %d", n)
	}

	// a partial week before the trailing run does not affect the count
	withPartial := []domain.WeekStatus{
		week(engine.WeekPartial),
		week(engine.WeekComplete),
		week(engine.WeekComplete),
		week(engine.WeekComplete),
	}
	if n := engine.ConsecutiveStreaks(withPartial); n != 3 {
		t.Fatalf("partial before run: expected 3, got %d", n)
	}

	// a missed week as most recent resets the streak
	reset := append(append([]domain.WeekStatus{}, trailing...), week(engine.WeekMissed))
	if n := engine.ConsecutiveStreaks(reset); n != 0 {
		t.Fatalf("missed most recent week: expected 0, got %d", n)
	}

	if n := engine.ConsecutiveStreaks(nil); n != 0 {
		t.Fatalf("empty list: expected 0, got %d", n)
	}
}
