package engine_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"comassist/internal/config"
	"comassist/internal/db"
	"comassist/internal/domain"
	"comassist/internal/engine"
	"comassist/internal/migrate"
	"comassist/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

// testNow is a Monday so week windows line up predictably.
var testNow = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("user-1")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return testNow }
	ctx := context.Background()
	if _, err := eng.InitUser(ctx, "user-1", "solo@example.com", "Solo"); err != nil {
		t.Fatalf("init user: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func TestSaveCommPlanValidation(t *testing.T) {
	env := newTestEnv(t)
	plan := domain.CommPlan{
		UserID:     "user-1",
		DailyTime:  30,
		ActiveDays: []string{"lun", "mer"},
		Channels:   []string{domain.ChannelInstagram},
	}
	saved, err := env.Engine.SaveCommPlan(env.Ctx, plan)
	if err != nil {
		t.Fatalf("save plan: %v", err)
	}
	if saved.NewsletterFrequency != domain.NewsletterNone {
		t.Fatalf("expected newsletter default none, got %s", saved.NewsletterFrequency)
	}

	bad := plan
	bad.ActiveDays = []string{"monday"}
	if _, err := env.Engine.SaveCommPlan(env.Ctx, bad); err == nil {
		t.Fatal("expected invalid weekday error")
	}
	bad = plan
	bad.Channels = []string{"tiktok"}
	if _, err := env.Engine.SaveCommPlan(env.Ctx, bad); err == nil {
		t.Fatal("expected unknown channel error")
	}
	bad = plan
	bad.NewsletterFrequency = "daily"
	if _, err := env.Engine.SaveCommPlan(env.Ctx, bad); err == nil {
		t.Fatal("expected invalid newsletter frequency error")
	}
	bad = plan
	bad.UserID = "ghost"
	if _, err := env.Engine.SaveCommPlan(env.Ctx, bad); err == nil {
		t.Fatal("expected unknown user error")
	}
}

func TestRoutineTasksFromStoredPlan(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.SaveCommPlan(env.Ctx, domain.CommPlan{
		UserID:            "user-1",
		DailyTime:         30,
		ActiveDays:        []string{"lun", "jeu"},
		Channels:          []string{domain.ChannelInstagram},
		InstaPostsPerWeek: 2,
	})
	if err != nil {
		t.Fatalf("save plan: %v", err)
	}
	tasks, err := env.Engine.RoutineTasks(env.Ctx, "user-1")
	if err != nil {
		t.Fatalf("routine: %v", err)
	}
	if len(tasks) == 0 {
		t.Fatal("expected tasks")
	}
	for _, task := range tasks {
		if task.DayOfWeek != nil && *task.DayOfWeek != "lun" && *task.DayOfWeek != "jeu" {
			t.Fatalf("task %q assigned outside active days: %s", task.Title, *task.DayOfWeek)
		}
	}
}

func TestContentStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	item, err := env.Engine.CreateContent(env.Ctx, engine.ContentCreateOptions{
		UserID:  "user-1",
		Channel: domain.ChannelInstagram,
		Title:   "Post de lancement",
	})
	if err != nil {
		t.Fatalf("create content: %v", err)
	}
	if item.Status != "idea" {
		t.Fatalf("expected default status idea, got %s", item.Status)
	}

	// idea cannot go straight to published
	if _, err := env.Engine.SetContentStatus(env.Ctx, item.ID, "published", false); err == nil {
		t.Fatal("expected transition error idea -> published")
	}

	item, err = env.Engine.SetContentStatus(env.Ctx, item.ID, "drafting", false)
	if err != nil {
		t.Fatalf("to drafting: %v", err)
	}
	item, err = env.Engine.SetContentStatus(env.Ctx, item.ID, "ready", false)
	if err != nil {
		t.Fatalf("to ready: %v", err)
	}
	item, err = env.Engine.PublishContent(env.Ctx, item.ID, false)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if item.PublishedAt == nil {
		t.Fatal("expected published_at to be stamped")
	}

	// force bypasses the guard
	item, err = env.Engine.SetContentStatus(env.Ctx, item.ID, "idea", true)
	if err != nil {
		t.Fatalf("forced transition: %v", err)
	}
	if item.Status != "idea" {
		t.Fatalf("expected idea after force, got %s", item.Status)
	}
}

func TestWeekHistoryAndStreak(t *testing.T) {
	env := newTestEnv(t)
	// fill the three most recent weeks (including the current one) with
	// published items, one item the week before that left unpublished
	for w := 0; w < 3; w++ {
		date := testNow.AddDate(0, 0, -7*w).Format("2006-01-02")
		item, err := env.Engine.CreateContent(env.Ctx, engine.ContentCreateOptions{
			UserID:  "user-1",
			Channel: domain.ChannelInstagram,
			Title:   fmt.Sprintf("Semaine %d", w),
			Date:    date,
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := env.Engine.SetContentStatus(env.Ctx, item.ID, "published", true); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if _, err := env.Engine.CreateContent(env.Ctx, engine.ContentCreateOptions{
		UserID:  "user-1",
		Channel: domain.ChannelInstagram,
		Title:   "Restée en plan",
		Status:  "ready",
		Date:    testNow.AddDate(0, 0, -21).Format("2006-01-02"),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	weeks, err := env.Engine.WeekHistory(env.Ctx, "user-1", 12)
	if err != nil {
		t.Fatalf("week history: %v", err)
	}
	if len(weeks) != 12 {
		t.Fatalf("expected 12 weeks, got %d", len(weeks))
	}
	last := weeks[len(weeks)-1]
	if last.Status != engine.WeekComplete {
		t.Fatalf("current week: expected complete, got %s", last.Status)
	}
	if weeks[len(weeks)-4].Status != engine.WeekMissed {
		t.Fatalf("week -3: expected missed, got %s", weeks[len(weeks)-4].Status)
	}

	streak, err := env.Engine.CurrentStreak(env.Ctx, "user-1")
	if err != nil {
		t.Fatalf("streak: %v", err)
	}
	if streak != 3 {
		t.Fatalf("expected streak 3, got %d", streak)
	}
}

func TestRecordAuditPersistsScore(t *testing.T) {
	env := newTestEnv(t)
	answers := map[string]string{}
	for _, q := range engine.AuditQuestions {
		answers[q.ID] = engine.AnswerOui
	}
	audit, result, err := env.Engine.RecordAudit(env.Ctx, "user-1", answers)
	if err != nil {
		t.Fatalf("record audit: %v", err)
	}
	if result.Total != 100 || audit.ScoreGlobal != 100 {
		t.Fatalf("expected 100, got result=%d stored=%d", result.Total, audit.ScoreGlobal)
	}
	audits, err := env.Engine.Repo.ListAudits(env.Ctx, "user-1", 0)
	if err != nil {
		t.Fatalf("list audits: %v", err)
	}
	if len(audits) != 1 {
		t.Fatalf("expected 1 audit, got %d", len(audits))
	}
}

func seedMaximalActivity(t *testing.T, env testEnv) {
	t.Helper()
	if _, err := env.Engine.SaveCommPlan(env.Ctx, domain.CommPlan{
		UserID:            "user-1",
		DailyTime:         30,
		ActiveDays:        []string{"lun", "mer", "ven"},
		Channels:          []string{domain.ChannelInstagram, domain.ChannelWebsite},
		InstaPostsPerWeek: 5,
	}); err != nil {
		t.Fatalf("plan: %v", err)
	}
	if _, err := env.Engine.SaveBrandingProfile(env.Ctx, domain.BrandingProfile{
		UserID: "user-1", Mission: "m", Values: "v", Audience: "a",
		Tone: "t", Palette: "p", Bio: "b", BioValidated: true,
	}); err != nil {
		t.Fatalf("branding: %v", err)
	}
	// enough published items to hit the monthly regularity target
	for i := 0; i < 25; i++ {
		item, err := env.Engine.CreateContent(env.Ctx, engine.ContentCreateOptions{
			UserID:  "user-1",
			Channel: domain.ChannelInstagram,
			Format:  "carousel",
			Title:   fmt.Sprintf("Contenu %d", i),
			Date:    testNow.AddDate(0, 0, -(i % 21)).Format("2006-01-02"),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := env.Engine.SetContentStatus(env.Ctx, item.ID, "published", true); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	for i := 0; i < 20; i++ {
		date := testNow.AddDate(0, 0, -i).Format("2006-01-02")
		if _, err := env.Engine.LogEngagement(env.Ctx, "user-1", date, true, 3); err != nil {
			t.Fatalf("log engagement: %v", err)
		}
	}
	for i := 0; i < 20; i++ {
		if err := env.Engine.Repo.InsertAIGeneration(env.Ctx, domain.AIGeneration{
			ID: uuid.NewString(), UserID: "user-1",
			Channel:   domain.ChannelInstagram,
			Kind:      "post",
			CreatedAt: testNow.AddDate(0, 0, -1).Format(time.RFC3339),
		}); err != nil {
			t.Fatalf("ai generation: %v", err)
		}
	}
	if err := env.Engine.Repo.TouchSitePage(env.Ctx, domain.SitePage{
		UserID: "user-1", Page: "accueil",
		UpdatedAt: testNow.AddDate(0, 0, -2).Format(time.RFC3339),
	}); err != nil {
		t.Fatalf("site page: %v", err)
	}
}

func TestComputeComScoreCappedAt100(t *testing.T) {
	env := newTestEnv(t)
	seedMaximalActivity(t, env)
	// move past the seeded timestamps so they fall inside the half-open window
	env.Engine.Now = func() time.Time { return testNow.AddDate(0, 0, 1) }
	score, err := env.Engine.ComputeComScore(env.Ctx, "user-1")
	if err != nil {
		t.Fatalf("compute score: %v", err)
	}
	if score.Total > 100 {
		t.Fatalf("total above 100: %d", score.Total)
	}
	if score.Total < 90 {
		t.Fatalf("maximal activity should score high, got %d (%+v)", score.Total, score)
	}
	if score.Branding != 35 {
		t.Fatalf("expected branding 35, got %d", score.Branding)
	}
	if score.AIUsage != 15 {
		t.Fatalf("expected ai usage capped at 15, got %d", score.AIUsage)
	}
}

func TestComputeComScoreEmptyUser(t *testing.T) {
	env := newTestEnv(t)
	score, err := env.Engine.ComputeComScore(env.Ctx, "user-1")
	if err != nil {
		t.Fatalf("compute score: %v", err)
	}
	if score.Total != 0 {
		t.Fatalf("expected 0 for untouched user, got %d", score.Total)
	}
}

func TestScoreTrendReflectsDecline(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.SaveCommPlan(env.Ctx, domain.CommPlan{
		UserID:            "user-1",
		DailyTime:         30,
		ActiveDays:        []string{"lun", "mer", "ven"},
		Channels:          []string{domain.ChannelInstagram},
		InstaPostsPerWeek: 5,
	}); err != nil {
		t.Fatalf("plan: %v", err)
	}
	// a full month of publications 35 to 45 days back, nothing since
	for i := 0; i < 20; i++ {
		past := testNow.AddDate(0, 0, -(35 + i%11))
		env.Engine.Now = func() time.Time { return past }
		item, err := env.Engine.CreateContent(env.Ctx, engine.ContentCreateOptions{
			UserID:  "user-1",
			Channel: domain.ChannelInstagram,
			Title:   fmt.Sprintf("Ancien contenu %d", i),
			Date:    past.Format("2006-01-02"),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := env.Engine.SetContentStatus(env.Ctx, item.ID, "published", true); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	env.Engine.Now = func() time.Time { return testNow }

	score, err := env.Engine.ComputeComScore(env.Ctx, "user-1")
	if err != nil {
		t.Fatalf("compute score: %v", err)
	}
	if score.Regularity != 0 || score.Total != 0 {
		t.Fatalf("current window should be empty, got %+v", score)
	}
	// the previous window hit the full regularity ceiling, so the
	// decline-only trend equals that ceiling
	if score.Trend != 25 {
		t.Fatalf("expected trend 25, got %d", score.Trend)
	}
}

func TestComputeComScoreIsolatesBranchFailure(t *testing.T) {
	env := newTestEnv(t)
	seedMaximalActivity(t, env)
	env.Engine.Now = func() time.Time { return testNow.AddDate(0, 0, 1) }
	// every AI-usage read now fails; the other branches must be unaffected
	if _, err := env.Engine.DB.ExecContext(env.Ctx, `DROP TABLE ai_generations`); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	score, err := env.Engine.ComputeComScore(env.Ctx, "user-1")
	if err != nil {
		t.Fatalf("expected degraded score, got error: %v", err)
	}
	if score.AIUsage != 0 {
		t.Fatalf("failed branch should score 0, got %d", score.AIUsage)
	}
	if score.Branding != 35 {
		t.Fatalf("expected branding 35, got %d", score.Branding)
	}
	if score.Regularity != 25 {
		t.Fatalf("expected regularity 25, got %d", score.Regularity)
	}
	if score.Engagement != 15 {
		t.Fatalf("expected engagement 15, got %d", score.Engagement)
	}
	if score.Trend != 0 {
		t.Fatalf("trend should degrade to 0 when a window read fails, got %d", score.Trend)
	}
}

func TestRefreshScoreCachesSnapshot(t *testing.T) {
	env := newTestEnv(t)
	seedMaximalActivity(t, env)
	env.Engine.Now = func() time.Time { return testNow.AddDate(0, 0, 1) }
	score, err := env.Engine.RefreshScore(env.Ctx, "user-1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	cached, err := env.Engine.Repo.LatestScoreSnapshot(env.Ctx, "user-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if cached.Total != score.Total {
		t.Fatalf("snapshot total %d != computed %d", cached.Total, score.Total)
	}
}

func TestCheckBadgesIdempotent(t *testing.T) {
	env := newTestEnv(t)
	seedMaximalActivity(t, env)

	first, err := env.Engine.CheckBadges(env.Ctx, "user-1")
	if err != nil {
		t.Fatalf("check badges: %v", err)
	}
	if len(first) == 0 {
		t.Fatal("expected new unlocks on first run")
	}
	got := map[string]bool{}
	for _, b := range first {
		got[b.BadgeID] = true
	}
	for _, id := range []string{"premiere_publication", "createur_regulier", "identite_posee", "bio_validee", "roi_du_carrousel"} {
		if !got[id] {
			t.Errorf("expected badge %s to unlock", id)
		}
	}

	second, err := env.Engine.CheckBadges(env.Ctx, "user-1")
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("expected no new unlocks on second run, got %d", len(second))
	}

	// one notification per unlocked badge, none added by the second run
	notifs, err := env.Engine.Repo.ListNotifications(env.Ctx, repo.NotificationFilters{UserID: "user-1"})
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(notifs) != len(first) {
		t.Fatalf("expected %d notifications, got %d", len(first), len(notifs))
	}
}

func TestAuditImprovedBadge(t *testing.T) {
	env := newTestEnv(t)
	low := map[string]string{}
	high := map[string]string{}
	for _, q := range engine.AuditQuestions {
		low[q.ID] = engine.AnswerNon
		high[q.ID] = engine.AnswerOui
	}
	if _, _, err := env.Engine.RecordAudit(env.Ctx, "user-1", low); err != nil {
		t.Fatalf("first audit: %v", err)
	}
	// later timestamp so ordering by created_at is deterministic
	env.Engine.Now = func() time.Time { return testNow.Add(time.Hour) }
	if _, _, err := env.Engine.RecordAudit(env.Ctx, "user-1", high); err != nil {
		t.Fatalf("second audit: %v", err)
	}

	unlocked, err := env.Engine.CheckBadges(env.Ctx, "user-1")
	if err != nil {
		t.Fatalf("check badges: %v", err)
	}
	found := false
	for _, b := range unlocked {
		if b.BadgeID == "site_en_progres" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected site_en_progres to unlock after improved audit")
	}
}
