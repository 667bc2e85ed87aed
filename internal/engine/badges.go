package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"comassist/internal/domain"
	"comassist/internal/events"
)

// BadgeStats is the snapshot badge predicates are evaluated against. Each
// field is fetched independently and degrades to its zero value when the
// underlying read fails.
type BadgeStats struct {
	TotalPublished     int
	CompletedWeeks     int
	ConsecutiveStreak  int
	BrandingCompletion int
	CarouselsPublished int
	ReelsPublished     int
	BioValidated       bool
	AuditImproved      bool
}

// BadgeDef is one entry of the fixed catalogue.
type BadgeDef struct {
	ID          string
	Emoji       string
	Title       string
	Description string
	Condition   func(BadgeStats) bool
}

// BadgeCatalog is the fixed badge catalogue. Order is display order.
var BadgeCatalog = []BadgeDef{
	{
		ID: "premiere_publication", Emoji: "🎉", Title: "Première publication",
		Description: "Vous avez publié votre premier contenu.",
		Condition:   func(s BadgeStats) bool { return s.TotalPublished >= 1 },
	},
	{
		ID: "createur_regulier", Emoji: "📅", Title: "Créateur régulier",
		Description: "20 contenus publiés, la machine est lancée.",
		Condition:   func(s BadgeStats) bool { return s.TotalPublished >= 20 },
	},
	{
		ID: "premiere_semaine", Emoji: "✅", Title: "Semaine complète",
		Description: "Tout le contenu prévu d'une semaine a été publié.",
		Condition:   func(s BadgeStats) bool { return s.CompletedWeeks >= 1 },
	},
	{
		ID: "serie_de_trois", Emoji: "🔥", Title: "En feu",
		Description: "3 semaines complètes d'affilée.",
		Condition:   func(s BadgeStats) bool { return s.ConsecutiveStreak >= 3 },
	},
	{
		ID: "marathonien", Emoji: "🏃", Title: "Marathonien",
		Description: "8 semaines complètes d'affilée.",
		Condition:   func(s BadgeStats) bool { return s.ConsecutiveStreak >= 8 },
	},
	{
		ID: "identite_posee", Emoji: "🎨", Title: "Identité posée",
		Description: "Votre profil de marque est complet.",
		Condition:   func(s BadgeStats) bool { return s.BrandingCompletion >= 100 },
	},
	{
		ID: "bio_validee", Emoji: "✍️", Title: "Bio validée",
		Description: "Votre bio est rédigée et validée.",
		Condition:   func(s BadgeStats) bool { return s.BioValidated },
	},
	{
		ID: "roi_du_carrousel", Emoji: "🎠", Title: "Roi du carrousel",
		Description: "5 carrousels publiés.",
		Condition:   func(s BadgeStats) bool { return s.CarouselsPublished >= 5 },
	},
	{
		ID: "as_du_reel", Emoji: "🎬", Title: "As du réel",
		Description: "5 réels publiés.",
		Condition:   func(s BadgeStats) bool { return s.ReelsPublished >= 5 },
	},
	{
		ID: "site_en_progres", Emoji: "📈", Title: "Site en progrès",
		Description: "Votre score d'audit a progressé entre deux audits.",
		Condition:   func(s BadgeStats) bool { return s.AuditImproved },
	},
}

// buildBadgeStats assembles the snapshot. Every read is isolated: an error
// leaves the corresponding field at its neutral value.
func (e Engine) buildBadgeStats(ctx context.Context, userID string) BadgeStats {
	var stats BadgeStats
	if n, err := e.Repo.CountPublishedTotal(ctx, userID); err == nil {
		stats.TotalPublished = n
	}
	if weeks, err := e.WeekHistory(ctx, userID, 12); err == nil {
		for _, w := range weeks {
			if w.Status == WeekComplete {
				stats.CompletedWeeks++
			}
		}
		stats.ConsecutiveStreak = ConsecutiveStreaks(weeks)
	}
	if pct, err := e.Repo.BrandingCompletion(ctx, userID); err == nil {
		stats.BrandingCompletion = pct
	}
	if n, err := e.Repo.CountPublishedByFormat(ctx, userID, "carousel"); err == nil {
		stats.CarouselsPublished = n
	}
	if n, err := e.Repo.CountPublishedByFormat(ctx, userID, "reel"); err == nil {
		stats.ReelsPublished = n
	}
	if b, err := e.Repo.GetBrandingProfile(ctx, userID); err == nil {
		stats.BioValidated = b.BioValidated
	}
	if scores, err := e.Repo.LastTwoAuditScores(ctx, userID); err == nil && len(scores) >= 2 {
		stats.AuditImproved = scores[0] > scores[1]
	}
	return stats
}

// CheckBadges evaluates the catalogue against a fresh stats snapshot, diffs
// it against the persisted unlock set and persists new unlocks in one
// transaction with one notification per badge. Unlocks are monotonic: a
// persisted badge is never revoked, and repeated calls with unchanged stats
// unlock nothing new.
func (e Engine) CheckBadges(ctx context.Context, userID string) ([]domain.UnlockedBadge, error) {
	stats := e.buildBadgeStats(ctx, userID)
	unlocked, err := e.Repo.ListUnlockedBadgeIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	var earned []BadgeDef
	for _, def := range BadgeCatalog {
		if unlocked[def.ID] {
			continue
		}
		if def.Condition(stats) {
			earned = append(earned, def)
		}
	}
	if len(earned) == 0 {
		return nil, nil
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := e.now().Format(time.RFC3339)
	newBadges := make([]domain.UnlockedBadge, 0, len(earned))
	for _, def := range earned {
		badge := domain.UnlockedBadge{UserID: userID, BadgeID: def.ID, UnlockedAt: now}
		if err := e.Repo.InsertUnlockedBadgeTx(ctx, tx, badge); err != nil {
			return nil, err
		}
		if err := e.Repo.InsertNotificationTx(ctx, tx, domain.Notification{
			ID:        uuid.NewString(),
			UserID:    userID,
			Emoji:     def.Emoji,
			Title:     fmt.Sprintf("Badge débloqué : %s", def.Title),
			Body:      def.Description,
			CreatedAt: now,
		}); err != nil {
			return nil, err
		}
		if err := e.Events.Append(ctx, tx, "badge.unlocked", userID, "badge", def.ID, events.EventPayload{
			"badge_id": def.ID,
			"title":    def.Title,
		}); err != nil {
			return nil, err
		}
		newBadges = append(newBadges, badge)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return newBadges, nil
}

// BadgeByID looks a badge definition up in the catalogue.
func BadgeByID(id string) (BadgeDef, bool) {
	for _, def := range BadgeCatalog {
		if def.ID == id {
			return def, true
		}
	}
	return BadgeDef{}, false
}
