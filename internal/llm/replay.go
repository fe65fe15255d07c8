package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
)

// Replay — детерминированная замена живой модели: на каждую пару prompt'ов
// возвращает заранее построенный schema-valid judgment. Используется в demo
// onboarding и в прогонах без API ключа.
type Replay struct{}

var replayDecisions = []string{
	"strong_yes", "maybe_yes", "neutral", "probably_not", "strong_no", "not_for_me",
}

var replayEmotions = []string{
	"excited", "interested", "neutral", "skeptical", "annoyed", "curious",
}

var replayReactions = map[string]string{
	"strong_yes":   "This is exactly what I have been looking for.",
	"maybe_yes":    "Looks interesting, I would want a couple of details first.",
	"neutral":      "I can take it or leave it, nothing here speaks to me.",
	"probably_not": "I doubt this is for me, the offer feels generic.",
	"strong_no":    "No. This pushes exactly the wrong buttons for me.",
	"not_for_me":   "I am simply not the audience for this.",
}

// Complete returns a canned judgment derived from a stable hash of the two
// prompts, so re-running the same persona×offer pair replays the same result.
func (Replay) Complete(_ context.Context, req Request) (string, error) {
	h := fnv.New64a()
	h.Write([]byte(req.System))
	h.Write([]byte("\x00"))
	h.Write([]byte(req.User))
	seed := h.Sum64()

	decision := replayDecisions[seed%uint64(len(replayDecisions))]
	emotion := replayEmotions[(seed>>8)%uint64(len(replayEmotions))]
	confidence := 0.5 + float64((seed>>16)%50)/100.0
	intensity := 0.4 + float64((seed>>24)%60)/100.0
	value := float64((seed>>32)%101) / 10.0

	payload := map[string]any{
		"decision":          decision,
		"confidence":        confidence,
		"perceivedValue":    value,
		"emotion":           emotion,
		"emotionIntensity":  intensity,
		"firstReaction":     replayReactions[decision],
		"reasoning":         fmt.Sprintf("Replayed evaluation: the offer lands as %s for this profile, with perceived value %.1f out of 10.", decision, value),
		"objections":        replayObjections(decision),
		"whatWouldConvince": nil,
		"valueAlignment":    map[string]float64{},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal replay judgment: %w", err)
	}
	return string(raw), nil
}

func replayObjections(decision string) []string {
	switch decision {
	case "strong_yes", "maybe_yes":
		return []string{}
	case "neutral":
		return []string{"Nothing concrete enough to act on"}
	default:
		return []string{"Does not address my actual needs", "No proof behind the claims"}
	}
}
