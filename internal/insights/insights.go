// Package insights turns a finished run's judgments into comparative
// findings. Every computation is an independent pure reducer over the same
// judgment set; Derive concatenates their results and never suppresses one
// insight type because another fired.
package insights

import (
	"fmt"

	"github.com/tetraminz/persona_panel/internal/domain"
)

// Severity levels.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeveritySuccess = "success"
)

// Insight types.
const (
	TypePolarizing = "polarizing"
	TypeStable     = "stable"
	TypeUniversal  = "universal"
	TypeBestOffer  = "best_offer"
	TypeAvgValue   = "avg_value"
)

// Insight is one derived comparative finding.
type Insight struct {
	Type      string
	Severity  string
	Title     string
	Detail    string
	OfferID   string
	PersonaID string
	Value     float64
}

// Derive computes all insight types over completed judgments. Callers
// filter to completed before invoking; judgments without an evaluation are
// skipped defensively rather than panicking. Iteration order is the order
// of the judgments slice, so the output is deterministic for a given input.
func Derive(judgments []domain.Judgment, personas []domain.Persona, offers []domain.Offer) []Insight {
	valid := make([]domain.Judgment, 0, len(judgments))
	for _, j := range judgments {
		if j.Evaluation != nil {
			valid = append(valid, j)
		}
	}
	if len(valid) == 0 {
		return []Insight{}
	}

	offerNames := map[string]string{}
	for _, o := range offers {
		offerNames[o.ID] = o.Headline
	}
	personaNames := map[string]string{}
	for _, p := range personas {
		personaNames[p.ID] = p.Name
	}

	byOffer := groupByOffer(valid)
	byPersona := groupByPersona(valid)

	var out []Insight
	out = append(out, polarizingInsights(byOffer, offerNames)...)
	out = append(out, stableInsight(byOffer, offerNames)...)
	out = append(out, universalInsights(byOffer, offerNames)...)
	out = append(out, bestOfferInsights(byPersona, personaNames, offerNames)...)
	out = append(out, avgValueInsights(byOffer, offerNames)...)
	return out
}

// grouped preserves first-seen key order so tie-breaks stay deterministic.
type grouped struct {
	order  []string
	groups map[string][]domain.Judgment
}

func groupByOffer(judgments []domain.Judgment) grouped {
	g := grouped{groups: map[string][]domain.Judgment{}}
	for _, j := range judgments {
		if _, seen := g.groups[j.OfferID]; !seen {
			g.order = append(g.order, j.OfferID)
		}
		g.groups[j.OfferID] = append(g.groups[j.OfferID], j)
	}
	return g
}

func groupByPersona(judgments []domain.Judgment) grouped {
	g := grouped{groups: map[string][]domain.Judgment{}}
	for _, j := range judgments {
		if _, seen := g.groups[j.PersonaID]; !seen {
			g.order = append(g.order, j.PersonaID)
		}
		g.groups[j.PersonaID] = append(g.groups[j.PersonaID], j)
	}
	return g
}

func nameOr(names map[string]string, id string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return id
}

// polarizingInsights flags offers that draw both strong acceptance and
// strong rejection at once.
func polarizingInsights(byOffer grouped, offerNames map[string]string) []Insight {
	var out []Insight
	for _, offerID := range byOffer.order {
		var strongYes, strongNo int
		for _, j := range byOffer.groups[offerID] {
			switch j.Evaluation.Decision {
			case domain.DecisionStrongYes:
				strongYes++
			case domain.DecisionStrongNo, domain.DecisionNotForMe:
				strongNo++
			}
		}
		if strongYes > 0 && strongNo > 0 {
			out = append(out, Insight{
				Type:     TypePolarizing,
				Severity: SeverityWarning,
				Title:    fmt.Sprintf("Polarizing offer: %s", nameOr(offerNames, offerID)),
				Detail: fmt.Sprintf(
					"%d strongly for and %d strongly against. Reactions to this offer are split.",
					strongYes, strongNo,
				),
				OfferID: offerID,
			})
		}
	}
	return out
}

// stableInsight picks the single offer with the lowest population variance
// of perceived value, among offers with at least two samples. An exact
// variance tie keeps the offer encountered first.
func stableInsight(byOffer grouped, offerNames map[string]string) []Insight {
	bestID := ""
	bestVariance := 0.0
	for _, offerID := range byOffer.order {
		values := perceivedValues(byOffer.groups[offerID])
		if len(values) < 2 {
			continue
		}
		variance := populationVariance(values)
		if bestID == "" || variance < bestVariance {
			bestID = offerID
			bestVariance = variance
		}
	}
	if bestID == "" {
		return nil
	}
	return []Insight{{
		Type:     TypeStable,
		Severity: SeverityInfo,
		Title:    fmt.Sprintf("Most stable offer: %s", nameOr(offerNames, bestID)),
		Detail: fmt.Sprintf(
			"Lowest spread in perceived value (variance %.2f). Audience reaction is predictable.",
			bestVariance,
		),
		OfferID: bestID,
		Value:   bestVariance,
	}}
}

// universalInsights flags offers every persona leans toward, requiring at
// least two judgments so a single enthusiastic persona does not qualify.
func universalInsights(byOffer grouped, offerNames map[string]string) []Insight {
	var out []Insight
	for _, offerID := range byOffer.order {
		group := byOffer.groups[offerID]
		if len(group) < 2 {
			continue
		}
		allPositive := true
		for _, j := range group {
			d := j.Evaluation.Decision
			if d != domain.DecisionStrongYes && d != domain.DecisionMaybeYes {
				allPositive = false
				break
			}
		}
		if allPositive {
			out = append(out, Insight{
				Type:     TypeUniversal,
				Severity: SeveritySuccess,
				Title:    fmt.Sprintf("Universal offer: %s", nameOr(offerNames, offerID)),
				Detail:   "Every persona reacts positively. Works for a broad audience.",
				OfferID:  offerID,
			})
		}
	}
	return out
}

// bestOfferInsights names the top-scoring offer for every persona with at
// least one judgment. A score tie keeps the first-seen judgment.
func bestOfferInsights(byPersona grouped, personaNames, offerNames map[string]string) []Insight {
	var out []Insight
	for _, personaID := range byPersona.order {
		group := byPersona.groups[personaID]
		best := group[0]
		bestScore := domain.DecisionScores[best.Evaluation.Decision]
		for _, j := range group[1:] {
			if score := domain.DecisionScores[j.Evaluation.Decision]; score > bestScore {
				best = j
				bestScore = score
			}
		}
		out = append(out, Insight{
			Type:     TypeBestOffer,
			Severity: SeverityInfo,
			Title:    fmt.Sprintf("Best offer for %s", nameOr(personaNames, personaID)),
			Detail: fmt.Sprintf(
				"%q wins with decision %s, perceived value %.1f/10.",
				nameOr(offerNames, best.OfferID), best.Evaluation.Decision, best.Evaluation.PerceivedValue,
			),
			OfferID:   best.OfferID,
			PersonaID: personaID,
			Value:     float64(bestScore),
		})
	}
	return out
}

// avgValueInsights reports the mean perceived value per offer; the mean
// drives the severity band.
func avgValueInsights(byOffer grouped, offerNames map[string]string) []Insight {
	var out []Insight
	for _, offerID := range byOffer.order {
		values := perceivedValues(byOffer.groups[offerID])
		if len(values) == 0 {
			continue
		}
		var sum float64
		for _, v := range values {
			sum += v
		}
		avg := sum / float64(len(values))

		severity := SeverityWarning
		switch {
		case avg >= 6:
			severity = SeveritySuccess
		case avg >= 4:
			severity = SeverityInfo
		}
		out = append(out, Insight{
			Type:     TypeAvgValue,
			Severity: severity,
			Title:    fmt.Sprintf("Average value: %s", nameOr(offerNames, offerID)),
			Detail:   fmt.Sprintf("Average perceived value: %.1f/10.", avg),
			OfferID:  offerID,
			Value:    avg,
		})
	}
	return out
}

func perceivedValues(judgments []domain.Judgment) []float64 {
	values := make([]float64, 0, len(judgments))
	for _, j := range judgments {
		values = append(values, j.Evaluation.PerceivedValue)
	}
	return values
}

func populationVariance(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return sq / float64(len(values))
}
