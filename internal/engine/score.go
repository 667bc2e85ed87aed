package engine

import (
	"context"
	"math"
	"sync"
	"time"

	"comassist/internal/domain"
)

// Sub-score ceilings. They sum to 100.
const (
	brandingCeiling   = 35
	regularityCeiling = 25
	engagementCeiling = 15
	channelsCeiling   = 10
	aiUsageCeiling    = 15
)

// ComputeComScore aggregates the five communication sub-scores for a user.
// The five signals are fetched concurrently; each branch recovers to 0 on
// failure so a partial backend outage lowers the score instead of failing
// the call. The trend compares regularity, engagement and AI usage against
// the previous 28-day window and counts only declines.
func (e Engine) ComputeComScore(ctx context.Context, userID string) (domain.ComScore, error) {
	now := e.now()
	from28 := now.AddDate(0, 0, -28)
	from56 := now.AddDate(0, 0, -56)
	from30 := now.AddDate(0, 0, -30)

	var plan domain.CommPlan
	if p, err := e.Repo.GetCommPlan(ctx, userID); err == nil {
		plan = p
	}

	score := domain.ComScore{ComputedAt: now.Format(time.RFC3339)}
	var wg sync.WaitGroup
	wg.Add(5)
	go func() {
		defer wg.Done()
		score.Branding = e.scoreBranding(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		score.Regularity, _ = e.scoreRegularity(ctx, userID, plan, from28, now)
	}()
	go func() {
		defer wg.Done()
		score.Engagement, _ = e.scoreEngagement(ctx, userID, from28, now)
	}()
	go func() {
		defer wg.Done()
		score.Channels = e.scoreChannels(ctx, userID, plan, from30)
	}()
	go func() {
		defer wg.Done()
		score.AIUsage, _ = e.scoreAIUsage(ctx, userID, from30, now)
	}()
	wg.Wait()

	score.Total = score.Branding + score.Regularity + score.Engagement + score.Channels + score.AIUsage
	if score.Total > 100 {
		score.Total = 100
	}
	score.Trend = e.scoreTrend(ctx, userID, plan, score, from56, from28, now)
	return score, nil
}

func (e Engine) scoreBranding(ctx context.Context, userID string) int {
	completion, err := e.Repo.BrandingCompletion(ctx, userID)
	if err != nil {
		return 0
	}
	return int(math.Round(float64(completion) * brandingCeiling / 100))
}

func (e Engine) scoreRegularity(ctx context.Context, userID string, plan domain.CommPlan, from, to time.Time) (int, error) {
	published, err := e.Repo.CountPublishedBetween(ctx, userID, from.Format(time.RFC3339), to.Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	target := e.Config.WeeklyTarget(plan.DailyTime) * 4
	if target <= 0 {
		return 0, nil
	}
	pct := float64(published) * 100 / float64(target)
	if pct > 100 {
		pct = 100
	}
	return int(math.Round(pct * regularityCeiling / 100)), nil
}

func (e Engine) scoreEngagement(ctx context.Context, userID string, from, to time.Time) (int, error) {
	days, err := e.Repo.CountStreakDays(ctx, userID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return 0, err
	}
	target := e.Config.Score.EngagementTarget
	if target <= 0 {
		return 0, nil
	}
	ratio := float64(days) / float64(target)
	if ratio > 1 {
		ratio = 1
	}
	return int(math.Round(ratio * engagementCeiling)), nil
}

// scoreChannels checks each declared channel for recent activity evidence.
// A failed evidence check counts as no evidence for that channel only.
func (e Engine) scoreChannels(ctx context.Context, userID string, plan domain.CommPlan, since time.Time) int {
	if len(plan.Channels) == 0 {
		return 0
	}
	sinceStr := since.Format(time.RFC3339)
	active := 0
	for _, ch := range plan.Channels {
		var ok bool
		switch ch {
		case domain.ChannelInstagram, domain.ChannelLinkedin:
			ok, _ = e.Repo.HasChannelPublicationSince(ctx, userID, ch, sinceStr)
			if !ok {
				ok, _ = e.Repo.HasAIGenerationSince(ctx, userID, ch, sinceStr)
			}
		case domain.ChannelPinterest:
			ok, _ = e.Repo.HasPinSince(ctx, userID, sinceStr)
		case domain.ChannelWebsite:
			ok, _ = e.Repo.HomepageUpdatedSince(ctx, userID, sinceStr)
		}
		if ok {
			active++
		}
	}
	return int(math.Round(float64(active) * channelsCeiling / float64(len(plan.Channels))))
}

func (e Engine) scoreAIUsage(ctx context.Context, userID string, from, to time.Time) (int, error) {
	count, err := e.Repo.CountAIGenerations(ctx, userID, from.Format(time.RFC3339), to.Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	if count > aiUsageCeiling {
		return aiUsageCeiling, nil
	}
	return count, nil
}

// scoreTrend recomputes regularity, engagement and AI usage over the
// previous window and subtracts only the per-metric decline from the current
// total. Any failure while recomputing degrades the trend to 0.
func (e Engine) scoreTrend(ctx context.Context, userID string, plan domain.CommPlan, score domain.ComScore, from, to, now time.Time) int {
	prevRegularity, err := e.scoreRegularity(ctx, userID, plan, from, to)
	if err != nil {
		return 0
	}
	prevEngagement, err := e.scoreEngagement(ctx, userID, from, to)
	if err != nil {
		return 0
	}
	prevAI, err := e.scoreAIUsage(ctx, userID, from, to)
	if err != nil {
		return 0
	}
	prevTotal := score.Total
	for _, d := range []int{prevRegularity - score.Regularity, prevEngagement - score.Engagement, prevAI - score.AIUsage} {
		if d > 0 {
			prevTotal -= d
		}
	}
	return score.Total - prevTotal
}

// RefreshScore recomputes the score and caches it as a snapshot row. The
// snapshot is a cache for dashboards and the scheduler, not the source of
// truth; ComputeComScore stays read-only.
func (e Engine) RefreshScore(ctx context.Context, userID string) (domain.ComScore, error) {
	score, err := e.ComputeComScore(ctx, userID)
	if err != nil {
		return score, err
	}
	if err := e.Repo.UpsertScoreSnapshot(ctx, userID, score); err != nil {
		return score, err
	}
	return score, nil
}
