package domain

import (
	"github.com/go-playground/validator/v10"
)

// Input bounds mirror the product rules: short string lists carry 1-5 items,
// age group and income level are closed enums.

// ProjectInput is the payload for creating a project.
type ProjectInput struct {
	Name  string `validate:"required,max=100"`
	Niche string `validate:"required,max=500"`
}

// PersonaInput is the payload for creating a persona.
type PersonaInput struct {
	Name              string   `validate:"required,max=100"`
	Description       string   `validate:"required,max=300"`
	AgeGroup          string   `validate:"required,oneof=18-23 24-29 30-39 40-54 55+"`
	IncomeLevel       string   `validate:"required,oneof=low medium high luxury"`
	Occupation        string   `validate:"required,max=100"`
	PersonalityTraits []string `validate:"min=1,max=5,dive,max=50"`
	Values            []string `validate:"min=1,max=5,dive,max=100"`
	PainPoints        []string `validate:"min=1,max=5,dive,max=200"`
	Goals             []string `validate:"min=1,max=5,dive,max=200"`
	TriggersPositive  string   `validate:"max=1000"`
	TriggersNegative  string   `validate:"max=1000"`
	DecisionFactors   []string `validate:"min=1,max=5,dive,max=200"`
	BackgroundStory   string   `validate:"max=2000"`
}

// OfferInput is the payload for creating an offer. Only headline is required.
type OfferInput struct {
	Headline     string `validate:"required,max=200"`
	Body         string `validate:"max=2000"`
	CallToAction string `validate:"max=200"`
	Price        string `validate:"max=50"`
	StrategyType string `validate:"max=100"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// CheckInput validates any of the *Input payloads and wraps failures
// into the ErrValidation kind.
func CheckInput(in any) error {
	if err := validate.Struct(in); err != nil {
		return Validationf("%v", err)
	}
	return nil
}
