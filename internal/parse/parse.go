// Package parse is the trust boundary between the model and the datastore.
// Model output is adversarial text: it is decoded against a closed contract
// and anything off-schema is discarded wholesale. Parse never returns a
// partially filled judgment and never returns an error.
package parse

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tetraminz/persona_panel/internal/domain"
)

var (
	fenceJSONRegex = regexp.MustCompile("```json\\s*")
	fenceRegex     = regexp.MustCompile("```\\s*")
)

// wire mirrors the response contract. Pointer fields distinguish "absent"
// from zero values; a type mismatch anywhere fails the whole decode.
type wire struct {
	Decision          *string            `json:"decision"`
	Confidence        *float64           `json:"confidence"`
	PerceivedValue    *float64           `json:"perceivedValue"`
	Emotion           *string            `json:"emotion"`
	EmotionIntensity  *float64           `json:"emotionIntensity"`
	FirstReaction     *string            `json:"firstReaction"`
	Reasoning         *string            `json:"reasoning"`
	Objections        *[]string          `json:"objections"`
	WhatWouldConvince *string            `json:"whatWouldConvince"`
	ValueAlignment    map[string]float64 `json:"valueAlignment"`
}

// Evaluation validates raw model output and normalizes it into judgment
// fields. Returns nil on any contract violation: non-JSON text, unknown
// decision, out-of-range numerics, wrong field types, missing required
// fields. Markdown code fences around the JSON are accepted.
func Evaluation(raw string) *domain.Evaluation {
	cleaned := fenceJSONRegex.ReplaceAllString(raw, "")
	cleaned = fenceRegex.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	var w wire
	if err := json.Unmarshal([]byte(cleaned), &w); err != nil {
		return nil
	}

	if w.Decision == nil || !domain.ValidDecision(*w.Decision) {
		return nil
	}
	if w.Confidence == nil || *w.Confidence < 0 || *w.Confidence > 1 {
		return nil
	}
	if w.PerceivedValue == nil || *w.PerceivedValue < 0 || *w.PerceivedValue > 10 {
		return nil
	}
	if w.Emotion == nil || *w.Emotion == "" {
		return nil
	}
	if w.EmotionIntensity == nil || *w.EmotionIntensity < 0 || *w.EmotionIntensity > 1 {
		return nil
	}
	if w.Objections == nil {
		return nil
	}
	if w.FirstReaction == nil || w.Reasoning == nil {
		return nil
	}

	alignment := w.ValueAlignment
	if alignment == nil {
		alignment = map[string]float64{}
	}

	return &domain.Evaluation{
		Decision:          *w.Decision,
		Confidence:        *w.Confidence,
		PerceivedValue:    *w.PerceivedValue,
		Emotion:           *w.Emotion,
		EmotionIntensity:  *w.EmotionIntensity,
		FirstReaction:     *w.FirstReaction,
		Reasoning:         *w.Reasoning,
		Objections:        append([]string(nil), (*w.Objections)...),
		WhatWouldConvince: w.WhatWouldConvince,
		ValueAlignment:    alignment,
	}
}
