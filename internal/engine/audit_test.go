package engine_test

import (
	"testing"

	"comassist/internal/engine"
)

func allAnswers(value string) map[string]string {
	answers := map[string]string{}
	for _, q := range engine.AuditQuestions {
		answers[q.ID] = value
	}
	return answers
}

func TestAuditScoreBoundaries(t *testing.T) {
	cases := []struct {
		name  string
		value string
		total int
	}{
		{"all oui", engine.AnswerOui, 100},
		{"all non", engine.AnswerNon, 0},
		{"all pas_sure", engine.AnswerPasSure, 60},
		{"unrecognized", "peut-etre", 0},
	}
	for _, tc := range cases {
		res := engine.CalculateWebsiteAuditScore(allAnswers(tc.value))
		if res.Total != tc.total {
			t.Errorf("%s: expected total %d, got %d", tc.name, tc.total, res.Total)
		}
	}

	res := engine.CalculateWebsiteAuditScore(nil)
	if res.Total != 0 {
		t.Errorf("nil answers: expected 0, got %d", res.Total)
	}
	if len(res.Categories) != len(engine.AuditCategories) {
		t.Errorf("expected %d categories, got %d", len(engine.AuditCategories), len(res.Categories))
	}
}

func TestAuditScoreAlwaysInRange(t *testing.T) {
	values := []string{engine.AnswerOui, engine.AnswerNon, engine.AnswerPasSure, "", "42"}
	for i, v := range values {
		answers := allAnswers(engine.AnswerOui)
		// perturb a few questions with each value
		for j, q := range engine.AuditQuestions {
			if j%len(values) == i {
				answers[q.ID] = v
			}
		}
		res := engine.CalculateWebsiteAuditScore(answers)
		if res.Total < 0 || res.Total > 100 {
			t.Fatalf("total out of range: %d", res.Total)
		}
		for id, cat := range res.Categories {
			if cat.Score < 0 || cat.Score > cat.Max {
				t.Fatalf("category %s out of range: %d/%d", id, cat.Score, cat.Max)
			}
		}
	}
}

func TestAuditCategoryRounding(t *testing.T) {
	// pas_sure on every clarte question sums half-weights to 2.5, which
	// rounds up once at the category level.
	answers := map[string]string{}
	for _, q := range engine.AuditQuestions {
		if q.Category == "clarte" {
			answers[q.ID] = engine.AnswerPasSure
		}
	}
	res := engine.CalculateWebsiteAuditScore(answers)
	if got := res.Categories["clarte"].Score; got != 3 {
		t.Fatalf("expected clarte score 3 from category-level rounding, got %d", got)
	}
}

func TestPageByPageScore(t *testing.T) {
	res := engine.CalculatePageByPageScore(nil)
	if res.Total != 0 {
		t.Fatalf("empty page set: expected 0, got %d", res.Total)
	}

	res = engine.CalculatePageByPageScore(map[string]map[string]string{
		"accueil": {"q1": engine.AnswerOui, "q2": engine.AnswerOui},
		"contact": {"q1": engine.AnswerOui, "q2": engine.AnswerNon},
	})
	if res.Pages["accueil"] != 100 {
		t.Fatalf("accueil: expected 100, got %d", res.Pages["accueil"])
	}
	if res.Pages["contact"] != 50 {
		t.Fatalf("contact: expected 50, got %d", res.Pages["contact"])
	}
	if res.Total != 75 {
		t.Fatalf("total: expected 75, got %d", res.Total)
	}
}

func TestWebsiteScoreLabel(t *testing.T) {
	cases := map[int]string{
		100: "Excellent",
		80:  "Excellent",
		79:  "Bien",
		60:  "Bien",
		59:  "À améliorer",
		40:  "À améliorer",
		39:  "Prioritaire",
		0:   "Prioritaire",
	}
	for score, label := range cases {
		if got := engine.WebsiteScoreLabel(score); got != label {
			t.Errorf("score %d: expected %s, got %s", score, label, got)
		}
	}
}

func TestCategoryRecommendationThresholds(t *testing.T) {
	recs := engine.CategoryRecommendations("clarte", 5, 20)
	if len(recs) == 0 || recs[0].Priority != "haute" {
		t.Fatalf("25%%: expected haute, got %+v", recs)
	}
	recs = engine.CategoryRecommendations("clarte", 12, 20)
	if len(recs) == 0 || recs[0].Priority != "moyenne" {
		t.Fatalf("60%%: expected moyenne, got %+v", recs)
	}
	recs = engine.CategoryRecommendations("clarte", 20, 20)
	if len(recs) == 0 || recs[0].Priority != "basse" {
		t.Fatalf("100%%: expected basse, got %+v", recs)
	}
	// zero max must not divide
	recs = engine.CategoryRecommendations("clarte", 3, 0)
	if len(recs) == 0 || recs[0].Priority != "basse" {
		t.Fatalf("max=0: expected basse, got %+v", recs)
	}
	if recs := engine.CategoryRecommendations("inconnue", 20, 20); len(recs) != 0 {
		t.Fatalf("unknown category: expected empty, got %+v", recs)
	}
}

func TestAuditCatalogueShape(t *testing.T) {
	if len(engine.AuditQuestions) != 20 {
		t.Fatalf("expected 20 questions, got %d", len(engine.AuditQuestions))
	}
	perCategory := map[string]int{}
	for _, q := range engine.AuditQuestions {
		perCategory[q.Category] += q.Weight
	}
	for _, cat := range engine.AuditCategories {
		if perCategory[cat.ID] != cat.Max {
			t.Errorf("category %s: weights sum to %d, max is %d", cat.ID, perCategory[cat.ID], cat.Max)
		}
	}
}
