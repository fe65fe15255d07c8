package domain

import "strings"

// Run lifecycle. There is no FAILED terminal state: a run where every pair
// failed still ends COMPLETED, the contract is "resolved", not "succeeded".
const (
	RunStatusPending   = "PENDING"
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
)

// Judgment lifecycle.
const (
	JudgmentPending   = "pending"
	JudgmentCompleted = "completed"
	JudgmentFailed    = "failed"
)

// Decision is the categorical purchase-intent outcome.
const (
	DecisionStrongYes   = "strong_yes"
	DecisionMaybeYes    = "maybe_yes"
	DecisionNeutral     = "neutral"
	DecisionProbablyNot = "probably_not"
	DecisionStrongNo    = "strong_no"
	DecisionNotForMe    = "not_for_me"
)

// DecisionScores ranks decisions for per-persona winner selection.
var DecisionScores = map[string]int{
	DecisionStrongYes:   5,
	DecisionMaybeYes:    4,
	DecisionNeutral:     3,
	DecisionProbablyNot: 2,
	DecisionStrongNo:    1,
	DecisionNotForMe:    0,
}

// ValidDecision reports whether raw is one of the six decision values.
func ValidDecision(raw string) bool {
	_, ok := DecisionScores[raw]
	return ok
}

// Project владеет персонами и офферами; один run всегда принадлежит проекту.
type Project struct {
	ID     string
	Name   string
	Niche  string
	IsDemo bool
}

// Persona is an audience archetype with a full behavioral profile.
type Persona struct {
	ID               string
	ProjectID        string
	Name             string
	Description      string
	AgeGroup         string
	IncomeLevel      string
	Occupation       string
	PersonalityTraits []string
	Values           []string
	PainPoints       []string
	Goals            []string
	TriggersPositive string
	TriggersNegative string
	DecisionFactors  []string
	BackgroundStory  string
}

// Offer is one ad copy variant under test.
type Offer struct {
	ID           string
	ProjectID    string
	Headline     string
	Body         string
	CallToAction string
	Price        string
	StrategyType string
}

// Run is one evaluation batch over the project's personas × offers.
// Pair counts are fixed at creation; completed+failed never exceeds total.
type Run struct {
	ID             string
	ProjectID      string
	Status         string
	PromptVersion  string
	TotalPairs     int
	CompletedPairs int
	FailedPairs    int
}

// Evaluation holds the structured judgment fields produced by the parser.
// Either all of them are persisted (status completed) or none are.
type Evaluation struct {
	Decision          string
	Confidence        float64
	PerceivedValue    float64
	Emotion           string
	EmotionIntensity  float64
	FirstReaction     string
	Reasoning         string
	Objections        []string
	WhatWouldConvince *string
	ValueAlignment    map[string]float64
}

// Judgment is the evaluation unit for one persona×offer pair within a run.
type Judgment struct {
	ID         string
	RunID      string
	PersonaID  string
	OfferID    string
	Status     string
	RetryCount int
	Evaluation *Evaluation
}

// DisplayText renders the offer the way a reader would see the ad.
func (o Offer) DisplayText() string {
	var b strings.Builder
	b.WriteString(o.Headline)
	if strings.TrimSpace(o.Body) != "" {
		b.WriteString("\n")
		b.WriteString(o.Body)
	}
	if strings.TrimSpace(o.Price) != "" {
		b.WriteString("\n")
		b.WriteString(o.Price)
	}
	if strings.TrimSpace(o.CallToAction) != "" {
		b.WriteString("\n")
		b.WriteString(o.CallToAction)
	}
	return b.String()
}

// Clamp01 bounds v into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
