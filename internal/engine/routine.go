package engine

import (
	"fmt"

	"comassist/internal/domain"
)

// Default task durations in minutes.
const (
	postDuration       = 30
	storyDuration      = 15
	reelDuration       = 45
	pinDuration        = 20
	newsletterDuration = 45
	planningDuration   = 20
	statsDuration      = 30
	engagementDuration = 15
)

// GenerateRoutineTasks turns a weekly plan into the concrete recurring task
// list. Pure and deterministic: the same plan always yields the same tasks in
// the same order. Channels absent from the plan, or whose quotas are all
// zero, contribute no tasks; admin tasks are always present.
func GenerateRoutineTasks(plan domain.CommPlan) []domain.GeneratedTask {
	g := taskBuilder{activeDays: plan.ActiveDays}

	if plan.DailyTime > 0 {
		g.add(domain.GeneratedTask{
			Title:      "Interagir avec votre communauté",
			Type:       "engagement",
			Recurrence: "daily",
			Duration:   minInt(engagementDuration, plan.DailyTime),
		})
	}

	if hasChannel(plan.Channels, domain.ChannelInstagram) {
		for i := 0; i < plan.InstaPostsPerWeek; i++ {
			g.addWeekly(domain.GeneratedTask{
				Title:    fmt.Sprintf("Préparer un post Instagram (%d/%d)", i+1, plan.InstaPostsPerWeek),
				Type:     "content_post",
				Channel:  optionalString(domain.ChannelInstagram),
				Duration: postDuration,
			})
		}
		if plan.InstaStoriesPerWeek > 0 {
			g.addWeekly(domain.GeneratedTask{
				Title:    fmt.Sprintf("Publier %d stories Instagram", plan.InstaStoriesPerWeek),
				Type:     "content_story",
				Channel:  optionalString(domain.ChannelInstagram),
				Duration: storyDuration,
			})
		}
		if plan.InstaReelsPerMonth > 0 {
			g.add(domain.GeneratedTask{
				Title:      fmt.Sprintf("Tourner %d réels Instagram", plan.InstaReelsPerMonth),
				Type:       "content_reel",
				Channel:    optionalString(domain.ChannelInstagram),
				Recurrence: "monthly",
				Duration:   reelDuration,
			})
		}
	}

	if hasChannel(plan.Channels, domain.ChannelLinkedin) {
		for i := 0; i < plan.LinkedinPostsPerWeek; i++ {
			g.addWeekly(domain.GeneratedTask{
				Title:    fmt.Sprintf("Rédiger un post LinkedIn (%d/%d)", i+1, plan.LinkedinPostsPerWeek),
				Type:     "content_post",
				Channel:  optionalString(domain.ChannelLinkedin),
				Duration: postDuration,
			})
		}
	}

	if hasChannel(plan.Channels, domain.ChannelPinterest) {
		g.addWeekly(domain.GeneratedTask{
			Title:    "Épingler de nouvelles idées sur Pinterest",
			Type:     "content_post",
			Channel:  optionalString(domain.ChannelPinterest),
			Duration: pinDuration,
		})
	}

	switch plan.NewsletterFrequency {
	case domain.NewsletterWeekly:
		g.addWeekly(domain.GeneratedTask{
			Title:    "Écrire votre newsletter",
			Type:     "content_newsletter",
			Channel:  optionalString(domain.ChannelWebsite),
			Duration: newsletterDuration,
		})
	case domain.NewsletterMonthly:
		g.add(domain.GeneratedTask{
			Title:      "Écrire votre newsletter mensuelle",
			Type:       "content_newsletter",
			Channel:    optionalString(domain.ChannelWebsite),
			Recurrence: "monthly",
			Duration:   newsletterDuration,
		})
	}

	// Housekeeping tasks, independent of channel configuration.
	g.addWeekly(domain.GeneratedTask{
		Title:    "Planifier votre semaine de communication",
		Type:     "admin",
		Duration: planningDuration,
	})
	g.add(domain.GeneratedTask{
		Title:      "Faire le point sur vos statistiques",
		Type:       "admin",
		Recurrence: "monthly",
		Duration:   statsDuration,
	})

	return g.tasks
}

// taskBuilder assigns sort order and spreads weekly tasks over active days
// round-robin.
type taskBuilder struct {
	tasks      []domain.GeneratedTask
	activeDays []string
	dayIdx     int
}

func (g *taskBuilder) add(t domain.GeneratedTask) {
	t.SortOrder = len(g.tasks) + 1
	g.tasks = append(g.tasks, t)
}

func (g *taskBuilder) addWeekly(t domain.GeneratedTask) {
	t.Recurrence = "weekly"
	if len(g.activeDays) > 0 {
		day := g.activeDays[g.dayIdx%len(g.activeDays)]
		t.DayOfWeek = &day
		g.dayIdx++
	}
	g.add(t)
}

func hasChannel(channels []string, ch string) bool {
	for _, c := range channels {
		if c == ch {
			return true
		}
	}
	return false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
