package engine

import "math"

// Questionnaire answer values. Anything else counts for zero.
const (
	AnswerOui     = "oui"
	AnswerNon     = "non"
	AnswerPasSure = "pas_sure"
)

// AuditCategory groups questions and carries the category point ceiling.
type AuditCategory struct {
	ID    string
	Title string
	Max   int
}

// AuditQuestion belongs to exactly one category and contributes Weight
// points when answered "oui".
type AuditQuestion struct {
	ID       string
	Category string
	Label    string
	Weight   int
}

// AuditCategories is the fixed scoring grid. Maxima sum to 30.
var AuditCategories = []AuditCategory{
	{ID: "clarte", Title: "Clarté du message", Max: 5},
	{ID: "navigation", Title: "Navigation", Max: 5},
	{ID: "contenu", Title: "Contenu", Max: 5},
	{ID: "conversion", Title: "Conversion", Max: 5},
	{ID: "confiance", Title: "Confiance", Max: 5},
	{ID: "technique", Title: "Technique", Max: 5},
}

// AuditQuestions is the fixed 20-question catalogue. Per-category weights sum
// to that category's maximum.
var AuditQuestions = []AuditQuestion{
	{ID: "clarte_proposition", Category: "clarte", Label: "Votre proposition de valeur est-elle visible en moins de 5 secondes ?", Weight: 2},
	{ID: "clarte_cible", Category: "clarte", Label: "Un visiteur comprend-il immédiatement à qui s'adresse le site ?", Weight: 2},
	{ID: "clarte_jargon", Category: "clarte", Label: "Le vocabulaire est-il simple, sans jargon ?", Weight: 1},

	{ID: "navigation_menu", Category: "navigation", Label: "Le menu contient-il 6 rubriques ou moins ?", Weight: 2},
	{ID: "navigation_mobile", Category: "navigation", Label: "La navigation est-elle confortable sur mobile ?", Weight: 2},
	{ID: "navigation_clics", Category: "navigation", Label: "Les pages importantes sont-elles accessibles en 2 clics ?", Weight: 1},

	{ID: "contenu_actualise", Category: "contenu", Label: "Le contenu a-t-il été mis à jour ces 3 derniers mois ?", Weight: 2},
	{ID: "contenu_visuels", Category: "contenu", Label: "Les visuels sont-ils de bonne qualité et cohérents ?", Weight: 1},
	{ID: "contenu_textes", Category: "contenu", Label: "Les textes sont-ils aérés et faciles à lire ?", Weight: 1},
	{ID: "contenu_ressources", Category: "contenu", Label: "Proposez-vous du contenu utile (blog, ressources) ?", Weight: 1},

	{ID: "conversion_cta", Category: "conversion", Label: "Chaque page a-t-elle un appel à l'action clair ?", Weight: 2},
	{ID: "conversion_contact", Category: "conversion", Label: "Peut-on vous contacter facilement ?", Weight: 1},
	{ID: "conversion_formulaire", Category: "conversion", Label: "Vos formulaires sont-ils courts ?", Weight: 1},
	{ID: "conversion_offre", Category: "conversion", Label: "Votre offre principale est-elle mise en avant ?", Weight: 1},

	{ID: "confiance_temoignages", Category: "confiance", Label: "Affichez-vous des témoignages clients ?", Weight: 2},
	{ID: "confiance_apropos", Category: "confiance", Label: "Votre page À propos raconte-t-elle votre histoire ?", Weight: 2},
	{ID: "confiance_mentions", Category: "confiance", Label: "Les mentions légales sont-elles présentes ?", Weight: 1},

	{ID: "technique_vitesse", Category: "technique", Label: "Le site se charge-t-il en moins de 3 secondes ?", Weight: 2},
	{ID: "technique_https", Category: "technique", Label: "Le site est-il servi en HTTPS ?", Weight: 2},
	{ID: "technique_liens", Category: "technique", Label: "Tous les liens fonctionnent-ils ?", Weight: 1},
}

// CategoryScore is a scored category with its ceiling.
type CategoryScore struct {
	Score int `json:"score"`
	Max   int `json:"max"`
}

// AuditScoreResult is the normalized outcome of a questionnaire.
type AuditScoreResult struct {
	Total      int                      `json:"total"`
	Categories map[string]CategoryScore `json:"categories"`
}

// CalculateWebsiteAuditScore normalizes a map of answers into per-category
// scores and an overall percentage. "oui" counts the question's full weight,
// "pas_sure" half its weight, anything else zero. Half-weights accumulate
// and are rounded once per category, not per question; that asymmetry is
// load-bearing for the displayed totals and must stay.
func CalculateWebsiteAuditScore(answers map[string]string) AuditScoreResult {
	sums := map[string]float64{}
	for _, q := range AuditQuestions {
		switch answers[q.ID] {
		case AnswerOui:
			sums[q.Category] += float64(q.Weight)
		case AnswerPasSure:
			sums[q.Category] += float64(q.Weight) / 2
		}
	}

	res := AuditScoreResult{Categories: make(map[string]CategoryScore, len(AuditCategories))}
	points, maxPoints := 0, 0
	for _, cat := range AuditCategories {
		score := int(math.Round(sums[cat.ID]))
		if score > cat.Max {
			score = cat.Max
		}
		if score < 0 {
			score = 0
		}
		res.Categories[cat.ID] = CategoryScore{Score: score, Max: cat.Max}
		points += score
		maxPoints += cat.Max
	}
	if maxPoints > 0 {
		res.Total = clampScore(int(math.Round(float64(points) / float64(maxPoints) * 100)))
	}
	return res
}

// PageScoreResult holds per-page percentages plus the overall percentage.
type PageScoreResult struct {
	Total int            `json:"total"`
	Pages map[string]int `json:"pages"`
}

// CalculatePageByPageScore scores an arbitrary set of named pages, each with
// its own answer map. Every question weighs one point. An empty page set, or
// a page with no answers, yields 0 rather than an error.
func CalculatePageByPageScore(pages map[string]map[string]string) PageScoreResult {
	res := PageScoreResult{Pages: make(map[string]int, len(pages))}
	var points, maxPoints float64
	for name, answers := range pages {
		var pagePoints float64
		for _, a := range answers {
			switch a {
			case AnswerOui:
				pagePoints++
			case AnswerPasSure:
				pagePoints += 0.5
			}
		}
		pageMax := float64(len(answers))
		if pageMax > 0 {
			res.Pages[name] = clampScore(int(math.Round(pagePoints / pageMax * 100)))
		} else {
			res.Pages[name] = 0
		}
		points += pagePoints
		maxPoints += pageMax
	}
	if maxPoints > 0 {
		res.Total = clampScore(int(math.Round(points / maxPoints * 100)))
	}
	return res
}

// WebsiteScoreLabel maps an overall score to its qualitative label.
func WebsiteScoreLabel(score int) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 60:
		return "Bien"
	case score >= 40:
		return "À améliorer"
	default:
		return "Prioritaire"
	}
}

// Recommendation is a priority-tagged suggestion for one audit category.
type Recommendation struct {
	Priority string `json:"priority"`
	Text     string `json:"text"`
}

var categoryAdvice = map[string]struct{ haute, moyenne, basse string }{
	"clarte": {
		haute:   "Réécrivez votre page d'accueil autour d'une proposition de valeur unique, visible sans scroller.",
		moyenne: "Testez votre message auprès de personnes extérieures et simplifiez les formulations floues.",
		basse:   "Votre message est clair ; surveillez qu'il le reste à chaque refonte.",
	},
	"navigation": {
		haute:   "Réduisez le menu aux pages essentielles et vérifiez chaque parcours sur mobile.",
		moyenne: "Regroupez les rubriques secondaires et raccourcissez les chemins vers vos pages clés.",
		basse:   "La navigation fonctionne bien ; gardez le menu court quand vous ajoutez des pages.",
	},
	"contenu": {
		haute:   "Mettez à jour vos pages principales et remplacez les visuels datés ou de mauvaise qualité.",
		moyenne: "Planifiez une relecture trimestrielle et aérez les textes les plus denses.",
		basse:   "Le contenu est solide ; continuez à publier régulièrement.",
	},
	"conversion": {
		haute:   "Ajoutez un appel à l'action clair sur chaque page, à commencer par l'accueil.",
		moyenne: "Raccourcissez vos formulaires et rendez le contact accessible depuis toutes les pages.",
		basse:   "Vos parcours de conversion sont en place ; mesurez-les pour les affiner.",
	},
	"confiance": {
		haute:   "Collectez deux ou trois témoignages clients et affichez-les sur vos pages d'offre.",
		moyenne: "Étoffez votre page À propos avec votre histoire et votre visage.",
		basse:   "Les signaux de confiance sont présents ; renouvelez les témoignages régulièrement.",
	},
	"technique": {
		haute:   "Corrigez les liens cassés et passez le site en HTTPS sans attendre.",
		moyenne: "Compressez les images les plus lourdes pour accélérer le chargement.",
		basse:   "La base technique est saine ; contrôlez la vitesse après chaque ajout de contenu.",
	},
}

// CategoryRecommendations returns the suggestion matching how far the
// category score sits from its ceiling. A zero max is treated as a perfect
// score, never a division. Unknown categories return nothing.
func CategoryRecommendations(category string, score, max int) []Recommendation {
	advice, ok := categoryAdvice[category]
	if !ok {
		return nil
	}
	pct := 100
	if max > 0 {
		pct = score * 100 / max
	}
	switch {
	case pct < 50:
		return []Recommendation{{Priority: "haute", Text: advice.haute}}
	case pct <= 75:
		return []Recommendation{{Priority: "moyenne", Text: advice.moyenne}}
	default:
		return []Recommendation{{Priority: "basse", Text: advice.basse}}
	}
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
