package llm

import (
	"context"
	"testing"

	"github.com/tetraminz/persona_panel/internal/parse"
)

func TestReplay_DeterministicAndParseable(t *testing.T) {
	req := Request{System: "persona profile", User: "offer text", Model: "replay"}

	first, err := Replay{}.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("replay complete: %v", err)
	}
	second, err := Replay{}.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("replay complete: %v", err)
	}
	if first != second {
		t.Fatal("replay output is not deterministic")
	}

	eval := parse.Evaluation(first)
	if eval == nil {
		t.Fatalf("replay output rejected by parser: %s", first)
	}
}

func TestReplay_VariesAcrossInputs(t *testing.T) {
	a, _ := Replay{}.Complete(context.Background(), Request{System: "aaa", User: "one"})
	b, _ := Replay{}.Complete(context.Background(), Request{System: "bbb", User: "two"})
	if a == b {
		t.Fatal("replay output does not depend on the request")
	}
}
