package observability

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/getsentry/sentry-go"

	coreconfig "github.com/m3rciful/pdfbot/core/config"
)

func TestMultiFansOut(t *testing.T) {
	var got []string
	a := SinkFunc(func(_ context.Context, r Report) { got = append(got, "a:"+r.Err.Error()) })
	b := SinkFunc(func(_ context.Context, r Report) { got = append(got, "b:"+r.Err.Error()) })

	Multi(a, nil, b).Capture(context.Background(), Report{Err: errors.New("x")})
	if len(got) != 2 || got[0] != "a:x" || got[1] != "b:x" {
		t.Fatalf("unexpected fan-out: %v", got)
	}
}

func TestDefaultSinkSwap(t *testing.T) {
	defer SetDefault(nil)

	var captured Report
	SetDefault(SinkFunc(func(_ context.Context, r Report) { captured = r }))
	Capture(context.Background(), Report{Err: errors.New("boom"), Level: slog.LevelWarn, UserID: 5})
	if captured.UserID != 5 || captured.Level != slog.LevelWarn {
		t.Fatalf("unexpected report: %+v", captured)
	}

	SetDefault(nil)
	if _, ok := Default().(LogSink); !ok {
		t.Fatalf("expected LogSink fallback, got %T", Default())
	}
}

func TestInitSentryWithoutDSN(t *testing.T) {
	sink, flush, err := InitSentry(coreconfig.SentryConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sink != nil {
		t.Fatal("expected nil sink without DSN")
	}
	flush()
	// A nil sink must be safe to call.
	sink.Capture(context.Background(), Report{Err: errors.New("ignored")})
}

func TestSentryLevelMapping(t *testing.T) {
	cases := map[slog.Level]sentry.Level{
		slog.LevelError: sentry.LevelError,
		slog.LevelWarn:  sentry.LevelWarning,
		slog.LevelInfo:  sentry.LevelInfo,
		slog.LevelDebug: sentry.LevelDebug,
	}
	for in, want := range cases {
		if got := sentryLevel(in); got != want {
			t.Fatalf("sentryLevel(%v) = %v, want %v", in, got, want)
		}
	}
}
