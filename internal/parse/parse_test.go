package parse

import (
	"fmt"
	"testing"
)

const validReply = `{
	"decision": "maybe_yes",
	"confidence": 0.8,
	"perceivedValue": 7.5,
	"emotion": "interested",
	"emotionIntensity": 0.6,
	"firstReaction": "Looks useful.",
	"reasoning": "The price fits my budget and the pickup flow saves time.",
	"objections": ["not sure about quality"],
	"whatWouldConvince": "a free sample",
	"valueAlignment": {"speed": 0.9}
}`

func TestEvaluation_ValidReply(t *testing.T) {
	eval := Evaluation(validReply)
	if eval == nil {
		t.Fatal("valid reply rejected")
	}
	if eval.Decision != "maybe_yes" {
		t.Fatalf("decision=%q want=maybe_yes", eval.Decision)
	}
	if eval.Confidence != 0.8 {
		t.Fatalf("confidence=%v want=0.8", eval.Confidence)
	}
	if eval.PerceivedValue != 7.5 {
		t.Fatalf("perceived_value=%v want=7.5", eval.PerceivedValue)
	}
	if len(eval.Objections) != 1 || eval.Objections[0] != "not sure about quality" {
		t.Fatalf("objections=%v", eval.Objections)
	}
	if eval.WhatWouldConvince == nil || *eval.WhatWouldConvince != "a free sample" {
		t.Fatalf("what_would_convince=%v", eval.WhatWouldConvince)
	}
	if eval.ValueAlignment["speed"] != 0.9 {
		t.Fatalf("value_alignment=%v", eval.ValueAlignment)
	}
}

func TestEvaluation_MarkdownFencesAccepted(t *testing.T) {
	fenced := "```json\n" + validReply + "\n```"
	if Evaluation(fenced) == nil {
		t.Fatal("fenced json rejected")
	}
	bareFence := "```\n" + validReply + "\n```"
	if Evaluation(bareFence) == nil {
		t.Fatal("bare-fenced json rejected")
	}
}

func TestEvaluation_NonJSONRejected(t *testing.T) {
	for _, raw := range []string{
		"",
		"I love this offer!",
		"{broken json",
		"null",
		"[]",
	} {
		if Evaluation(raw) != nil {
			t.Fatalf("accepted non-object input %q", raw)
		}
	}
}

func TestEvaluation_UnknownDecisionRejected(t *testing.T) {
	raw := replyWith("decision", `"definitely"`)
	if Evaluation(raw) != nil {
		t.Fatal("unknown decision accepted")
	}
}

func TestEvaluation_NumericBoundaries(t *testing.T) {
	cases := []struct {
		field string
		value string
		ok    bool
	}{
		{"confidence", "0", true},
		{"confidence", "1", true},
		{"confidence", "1.01", false},
		{"confidence", "-0.1", false},
		{"perceivedValue", "0", true},
		{"perceivedValue", "10", true},
		{"perceivedValue", "10.5", false},
		{"perceivedValue", "-1", false},
		{"emotionIntensity", "0", true},
		{"emotionIntensity", "1", true},
		{"emotionIntensity", "1.5", false},
	}
	for _, tc := range cases {
		raw := replyWith(tc.field, tc.value)
		got := Evaluation(raw) != nil
		if got != tc.ok {
			t.Fatalf("%s=%s: accepted=%v want=%v", tc.field, tc.value, got, tc.ok)
		}
	}
}

func TestEvaluation_WrongFieldTypesRejected(t *testing.T) {
	for field, value := range map[string]string{
		"objections": `"just one objection"`,
		"confidence": `"0.8"`,
		"decision":   `5`,
	} {
		raw := replyWith(field, value)
		if Evaluation(raw) != nil {
			t.Fatalf("wrong type for %s accepted", field)
		}
	}
}

func TestEvaluation_MissingRequiredFieldsRejected(t *testing.T) {
	for _, field := range []string{
		"decision", "confidence", "perceivedValue", "emotion",
		"emotionIntensity", "firstReaction", "reasoning", "objections",
	} {
		raw := replyWithout(field)
		if Evaluation(raw) != nil {
			t.Fatalf("missing %s accepted", field)
		}
	}
}

func TestEvaluation_EmptyEmotionRejected(t *testing.T) {
	if Evaluation(replyWith("emotion", `""`)) != nil {
		t.Fatal("empty emotion accepted")
	}
}

func TestEvaluation_OptionalFieldDefaults(t *testing.T) {
	raw := replyWithout("whatWouldConvince", "valueAlignment")
	eval := Evaluation(raw)
	if eval == nil {
		t.Fatal("reply without optional fields rejected")
	}
	if eval.WhatWouldConvince != nil {
		t.Fatalf("what_would_convince=%v want=nil", *eval.WhatWouldConvince)
	}
	if eval.ValueAlignment == nil || len(eval.ValueAlignment) != 0 {
		t.Fatalf("value_alignment=%v want empty map", eval.ValueAlignment)
	}
}

func TestEvaluation_EmptyObjectionsAccepted(t *testing.T) {
	eval := Evaluation(replyWith("objections", `[]`))
	if eval == nil {
		t.Fatal("empty objections array rejected")
	}
	if len(eval.Objections) != 0 {
		t.Fatalf("objections=%v want empty", eval.Objections)
	}
}

// replyWith rebuilds the valid reply with one field overridden.
func replyWith(field, value string) string {
	fields := baseFields()
	fields[field] = value
	return renderReply(fields)
}

// replyWithout rebuilds the valid reply with fields dropped.
func replyWithout(dropped ...string) string {
	fields := baseFields()
	for _, field := range dropped {
		delete(fields, field)
	}
	return renderReply(fields)
}

func baseFields() map[string]string {
	return map[string]string{
		"decision":          `"maybe_yes"`,
		"confidence":        `0.8`,
		"perceivedValue":    `7.5`,
		"emotion":           `"interested"`,
		"emotionIntensity":  `0.6`,
		"firstReaction":     `"Looks useful."`,
		"reasoning":         `"Fits my budget."`,
		"objections":        `["not sure"]`,
		"whatWouldConvince": `"a sample"`,
		"valueAlignment":    `{"speed": 0.9}`,
	}
}

func renderReply(fields map[string]string) string {
	parts := make([]string, 0, len(fields))
	for name, value := range fields {
		parts = append(parts, fmt.Sprintf("%q: %s", name, value))
	}
	out := "{"
	for i, part := range parts {
		if i > 0 {
			out += ", "
		}
		out += part
	}
	return out + "}"
}
