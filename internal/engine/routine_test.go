package engine_test

import (
	"testing"

	"comassist/internal/domain"
	"comassist/internal/engine"
)

func basePlan() domain.CommPlan {
	return domain.CommPlan{
		UserID:               "user-1",
		DailyTime:            30,
		ActiveDays:           []string{"lun", "mer", "ven"},
		Channels:             []string{domain.ChannelInstagram, domain.ChannelLinkedin},
		InstaPostsPerWeek:    3,
		InstaStoriesPerWeek:  5,
		InstaReelsPerMonth:   2,
		LinkedinPostsPerWeek: 2,
		NewsletterFrequency:  domain.NewsletterNone,
	}
}

func countByChannel(tasks []domain.GeneratedTask, ch string) int {
	n := 0
	for _, t := range tasks {
		if t.Channel != nil && *t.Channel == ch {
			n++
		}
	}
	return n
}

func TestRoutineOmitsDisabledChannels(t *testing.T) {
	plan := basePlan()
	plan.Channels = []string{domain.ChannelLinkedin}
	tasks := engine.GenerateRoutineTasks(plan)
	if n := countByChannel(tasks, domain.ChannelInstagram); n != 0 {
		t.Fatalf("instagram disabled but got %d tasks", n)
	}
	if n := countByChannel(tasks, domain.ChannelLinkedin); n != 2 {
		t.Fatalf("expected 2 linkedin tasks, got %d", n)
	}

	plan = basePlan()
	plan.LinkedinPostsPerWeek = 0
	tasks = engine.GenerateRoutineTasks(plan)
	if n := countByChannel(tasks, domain.ChannelLinkedin); n != 0 {
		t.Fatalf("linkedin quota zero but got %d tasks", n)
	}
}

func TestRoutineDailyDurationBound(t *testing.T) {
	for _, budget := range []int{15, 30, 60} {
		plan := basePlan()
		plan.DailyTime = budget
		for _, task := range engine.GenerateRoutineTasks(plan) {
			if task.Recurrence == "daily" && task.Duration > budget {
				t.Fatalf("daily task %q duration %d exceeds budget %d", task.Title, task.Duration, budget)
			}
		}
	}
}

func TestRoutineNoDailyTaskWithoutBudget(t *testing.T) {
	plan := basePlan()
	plan.DailyTime = 0
	for _, task := range engine.GenerateRoutineTasks(plan) {
		if task.Recurrence == "daily" {
			t.Fatalf("unexpected daily task %q with zero budget", task.Title)
		}
	}
}

func TestRoutineSortOrderStrictlyIncreasing(t *testing.T) {
	tasks := engine.GenerateRoutineTasks(basePlan())
	for i := 1; i < len(tasks); i++ {
		if tasks[i].SortOrder <= tasks[i-1].SortOrder {
			t.Fatalf("sort order not strictly increasing at %d: %d then %d", i, tasks[i-1].SortOrder, tasks[i].SortOrder)
		}
	}
}

func TestRoutineWeeklyDaysWithinActiveSet(t *testing.T) {
	plan := basePlan()
	active := map[string]bool{"lun": true, "mer": true, "ven": true}
	for _, task := range engine.GenerateRoutineTasks(plan) {
		if task.Recurrence != "weekly" {
			continue
		}
		if task.DayOfWeek == nil {
			t.Fatalf("weekly task %q has no day", task.Title)
		}
		if !active[*task.DayOfWeek] {
			t.Fatalf("weekly task %q assigned to %s outside active days", task.Title, *task.DayOfWeek)
		}
	}
}

func TestRoutineNewsletterCardinality(t *testing.T) {
	cases := []struct {
		freq       string
		count      int
		recurrence string
	}{
		{domain.NewsletterNone, 0, ""},
		{domain.NewsletterWeekly, 1, "weekly"},
		{domain.NewsletterMonthly, 1, "monthly"},
	}
	for _, tc := range cases {
		plan := basePlan()
		plan.NewsletterFrequency = tc.freq
		var got []domain.GeneratedTask
		for _, task := range engine.GenerateRoutineTasks(plan) {
			if task.Type == "content_newsletter" {
				got = append(got, task)
			}
		}
		if len(got) != tc.count {
			t.Fatalf("freq %s: expected %d newsletter tasks, got %d", tc.freq, tc.count, len(got))
		}
		if tc.count == 1 && got[0].Recurrence != tc.recurrence {
			t.Fatalf("freq %s: expected recurrence %s, got %s", tc.freq, tc.recurrence, got[0].Recurrence)
		}
	}
}

func TestRoutineAdminTasksAlwaysPresent(t *testing.T) {
	plan := domain.CommPlan{UserID: "user-1"}
	tasks := engine.GenerateRoutineTasks(plan)
	admin := 0
	for _, task := range tasks {
		if task.Type == "admin" {
			admin++
		}
	}
	if admin != 2 {
		t.Fatalf("expected 2 admin tasks on empty plan, got %d (total %d)", admin, len(tasks))
	}
}

func TestRoutineDeterministic(t *testing.T) {
	plan := basePlan()
	a := engine.GenerateRoutineTasks(plan)
	b := engine.GenerateRoutineTasks(plan)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Title != b[i].Title || a[i].SortOrder != b[i].SortOrder {
			t.Fatalf("task %d differs between runs", i)
		}
	}
}
