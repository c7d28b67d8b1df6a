package failure

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"
)

var errSlot = errors.New("slot missing")

func TestPolicyTable(t *testing.T) {
	p := NewPolicy(Is(errSlot, KindSessionDataMissing))

	cases := []struct {
		name      string
		err       error
		kind      Kind
		terminate bool
		escalate  bool
		level     slog.Level
		msg       string
	}{
		{"user input", UserInput("crop.percentage.invalid"), KindUserInput, false, false, 0, "crop.percentage.invalid"},
		{"missing slot by rule", fmt.Errorf("crop: %w", errSlot), KindSessionDataMissing, true, true, slog.LevelWarn, MsgSession},
		{"stale", Stale(errors.New("query is too old")), KindTransportStale, true, false, 0, MsgExpired},
		{"silent", Silent(errors.New("forbidden")), KindSilent, false, false, 0, ""},
		{"unknown", errors.New("boom"), KindUnexpected, true, true, slog.LevelError, MsgGeneric},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, d := p.Resolve(tc.err)
			if kind != tc.kind {
				t.Fatalf("kind = %s, want %s", kind, tc.kind)
			}
			if d.Terminate != tc.terminate || d.Escalate != tc.escalate {
				t.Fatalf("decision = %+v", d)
			}
			if d.Escalate && d.Level != tc.level {
				t.Fatalf("level = %v, want %v", d.Level, tc.level)
			}
			if d.MessageKey != tc.msg {
				t.Fatalf("message = %q, want %q", d.MessageKey, tc.msg)
			}
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	root := errors.New("root")
	err := fmt.Errorf("handler: %w", Stale(root))
	if !errors.Is(err, root) {
		t.Fatal("wrapped root should stay reachable")
	}
	if got := NewPolicy().Classify(err); got != KindTransportStale {
		t.Fatalf("kind = %s", got)
	}
}

func TestWithDecisionOverride(t *testing.T) {
	p := NewPolicy().WithDecision(KindTransportStale, Decision{Terminate: false, MessageKey: "custom"})
	_, d := p.Resolve(Stale(errors.New("old")))
	if d.Terminate || d.MessageKey != "custom" {
		t.Fatalf("override not applied: %+v", d)
	}
}
