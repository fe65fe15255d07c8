package insights

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetraminz/persona_panel/internal/domain"
)

func judgment(persona, offer, decision string, value float64) domain.Judgment {
	return domain.Judgment{
		PersonaID: "p-" + persona,
		OfferID:   "o-" + offer,
		Status:    domain.JudgmentCompleted,
		Evaluation: &domain.Evaluation{
			Decision:       decision,
			PerceivedValue: value,
			Confidence:     0.8,
			Emotion:        "neutral",
			Objections:     []string{},
			ValueAlignment: map[string]float64{},
		},
	}
}

func personas(names ...string) []domain.Persona {
	out := make([]domain.Persona, 0, len(names))
	for _, n := range names {
		out = append(out, domain.Persona{ID: "p-" + n, Name: n})
	}
	return out
}

func offers(headlines ...string) []domain.Offer {
	out := make([]domain.Offer, 0, len(headlines))
	for _, h := range headlines {
		out = append(out, domain.Offer{ID: "o-" + h, Headline: h})
	}
	return out
}

func byType(list []Insight, typ string) []Insight {
	var out []Insight
	for _, ins := range list {
		if ins.Type == typ {
			out = append(out, ins)
		}
	}
	return out
}

func TestDerive_EmptyInput(t *testing.T) {
	require.Empty(t, Derive(nil, nil, nil))
	require.Empty(t, Derive([]domain.Judgment{}, []domain.Persona{}, []domain.Offer{}))
}

func TestDerive_SkipsJudgmentsWithoutEvaluation(t *testing.T) {
	broken := domain.Judgment{PersonaID: "p-a", OfferID: "o-x", Status: domain.JudgmentCompleted}
	require.Empty(t, Derive([]domain.Judgment{broken}, personas("a"), offers("x")))
}

func TestPolarizing_StrongBothWays(t *testing.T) {
	js := []domain.Judgment{
		judgment("a", "x", domain.DecisionStrongYes, 9),
		judgment("b", "x", domain.DecisionStrongNo, 2),
		judgment("c", "x", domain.DecisionNeutral, 5),
	}
	got := byType(Derive(js, personas("a", "b", "c"), offers("x")), TypePolarizing)
	require.Len(t, got, 1)
	require.Equal(t, SeverityWarning, got[0].Severity)
	require.Equal(t, "o-x", got[0].OfferID)
	require.Contains(t, got[0].Detail, "1 strongly for")
	require.Contains(t, got[0].Detail, "1 strongly against")
}

func TestPolarizing_NotForMeCountsAsStrongNo(t *testing.T) {
	js := []domain.Judgment{
		judgment("a", "x", domain.DecisionStrongYes, 9),
		judgment("b", "x", domain.DecisionNotForMe, 1),
	}
	got := byType(Derive(js, personas("a", "b"), offers("x")), TypePolarizing)
	require.Len(t, got, 1)
}

func TestPolarizing_OneSidedOfferDoesNotFire(t *testing.T) {
	js := []domain.Judgment{
		judgment("a", "x", domain.DecisionStrongYes, 9),
		judgment("b", "x", domain.DecisionMaybeYes, 7),
	}
	require.Empty(t, byType(Derive(js, personas("a", "b"), offers("x")), TypePolarizing))
}

func TestStable_PicksLowestVarianceWithFirstSeenTieBreak(t *testing.T) {
	js := []domain.Judgment{
		// o-x: values 5,5 -> variance 0
		judgment("a", "x", domain.DecisionNeutral, 5),
		judgment("b", "x", domain.DecisionNeutral, 5),
		// o-y: values 3,3 -> variance 0, ties with o-x, seen later
		judgment("a", "y", domain.DecisionNeutral, 3),
		judgment("b", "y", domain.DecisionNeutral, 3),
		// o-z: spread
		judgment("a", "z", domain.DecisionNeutral, 1),
		judgment("b", "z", domain.DecisionNeutral, 9),
	}
	got := byType(Derive(js, personas("a", "b"), offers("x", "y", "z")), TypeStable)
	require.Len(t, got, 1)
	require.Equal(t, "o-x", got[0].OfferID)
	require.Equal(t, SeverityInfo, got[0].Severity)
	require.Equal(t, 0.0, got[0].Value)
}

func TestStable_RequiresTwoSamples(t *testing.T) {
	js := []domain.Judgment{judgment("a", "x", domain.DecisionNeutral, 5)}
	require.Empty(t, byType(Derive(js, personas("a"), offers("x")), TypeStable))
}

func TestUniversal_AllPositiveWithAtLeastTwo(t *testing.T) {
	js := []domain.Judgment{
		judgment("a", "x", domain.DecisionStrongYes, 9),
		judgment("b", "x", domain.DecisionMaybeYes, 7),
		judgment("a", "y", domain.DecisionStrongYes, 9),
		judgment("b", "y", domain.DecisionNeutral, 5),
		judgment("a", "z", domain.DecisionStrongYes, 9),
	}
	got := byType(Derive(js, personas("a", "b"), offers("x", "y", "z")), TypeUniversal)
	require.Len(t, got, 1)
	require.Equal(t, "o-x", got[0].OfferID)
	require.Equal(t, SeveritySuccess, got[0].Severity)
}

func TestBestOffer_OnePerPersonaWithFirstSeenTieBreak(t *testing.T) {
	js := []domain.Judgment{
		judgment("a", "x", domain.DecisionMaybeYes, 7),
		judgment("a", "y", domain.DecisionMaybeYes, 6), // same score, first wins
		judgment("a", "z", domain.DecisionStrongNo, 2),
		judgment("b", "x", domain.DecisionNeutral, 5),
		judgment("b", "y", domain.DecisionStrongYes, 9),
	}
	got := byType(Derive(js, personas("a", "b"), offers("x", "y", "z")), TypeBestOffer)
	require.Len(t, got, 2)
	require.Equal(t, "p-a", got[0].PersonaID)
	require.Equal(t, "o-x", got[0].OfferID)
	require.Equal(t, "p-b", got[1].PersonaID)
	require.Equal(t, "o-y", got[1].OfferID)
}

func TestAvgValue_SeverityBands(t *testing.T) {
	js := []domain.Judgment{
		judgment("a", "high", domain.DecisionStrongYes, 8),
		judgment("b", "high", domain.DecisionMaybeYes, 6),
		judgment("a", "mid", domain.DecisionNeutral, 5),
		judgment("b", "mid", domain.DecisionNeutral, 4),
		judgment("a", "low", domain.DecisionStrongNo, 2),
	}
	got := byType(Derive(js, personas("a", "b"), offers("high", "mid", "low")), TypeAvgValue)
	require.Len(t, got, 3)

	byOffer := map[string]Insight{}
	for _, ins := range got {
		byOffer[ins.OfferID] = ins
	}
	require.Equal(t, SeveritySuccess, byOffer["o-high"].Severity)
	require.Equal(t, 7.0, byOffer["o-high"].Value)
	require.Equal(t, SeverityInfo, byOffer["o-mid"].Severity)
	require.Equal(t, SeverityWarning, byOffer["o-low"].Severity)
}

func TestDerive_FullGridCounts(t *testing.T) {
	// 2 personas x 3 offers fully evaluated: expect one best_offer per
	// persona and one avg_value per offer.
	var js []domain.Judgment
	decisions := []string{
		domain.DecisionStrongYes, domain.DecisionNeutral, domain.DecisionProbablyNot,
		domain.DecisionMaybeYes, domain.DecisionStrongNo, domain.DecisionNotForMe,
	}
	i := 0
	for _, p := range []string{"a", "b"} {
		for _, o := range []string{"x", "y", "z"} {
			js = append(js, judgment(p, o, decisions[i], float64(i+2)))
			i++
		}
	}
	all := Derive(js, personas("a", "b"), offers("x", "y", "z"))
	require.Len(t, byType(all, TypeBestOffer), 2)
	require.Len(t, byType(all, TypeAvgValue), 3)
}

func TestDerive_Deterministic(t *testing.T) {
	js := []domain.Judgment{
		judgment("a", "x", domain.DecisionStrongYes, 9),
		judgment("b", "x", domain.DecisionStrongNo, 2),
		judgment("a", "y", domain.DecisionMaybeYes, 7),
		judgment("b", "y", domain.DecisionMaybeYes, 7),
	}
	first := Derive(js, personas("a", "b"), offers("x", "y"))
	second := Derive(js, personas("a", "b"), offers("x", "y"))
	require.Equal(t, first, second)
}
