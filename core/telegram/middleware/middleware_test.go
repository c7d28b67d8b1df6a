package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m3rciful/pdfbot/core/observability"
	tghelpers "github.com/m3rciful/pdfbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

func offlineBot(t *testing.T) *tele.Bot {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("bot: %v", err)
	}
	return b
}

func message(b *tele.Bot, updateID int, userID int64, text string) tele.Context {
	return b.NewContext(tele.Update{
		ID: updateID,
		Message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		},
	})
}

func TestRateLimitDropsBurst(t *testing.T) {
	b := offlineBot(t)
	var handled, limited int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	h := mw(func(tele.Context) error { handled++; return nil })

	for i := 0; i < 3; i++ {
		_ = h(message(b, i, 1, "hi"))
	}
	_ = h(message(b, 9, 2, "hi"))
	if handled != 2 || limited != 2 {
		t.Fatalf("handled=%d limited=%d", handled, limited)
	}
}

func TestRateLimitExclusions(t *testing.T) {
	b := offlineBot(t)
	var handled int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  map[string]struct{}{KindCallback: {}},
	})
	h := mw(func(tele.Context) error { handled++; return nil })
	for i := 0; i < 3; i++ {
		_ = h(b.NewContext(tele.Update{
			ID:       i,
			Callback: &tele.Callback{Sender: &tele.User{ID: 1}, Data: "set_lang"},
		}))
	}
	if handled != 3 {
		t.Fatalf("callbacks were limited: handled=%d", handled)
	}
}

func TestAdminOnly(t *testing.T) {
	b := offlineBot(t)
	var ran, rejected int
	h := AdminOnlyMiddleware(AdminOptions{
		AdminID:  7,
		OnReject: func(tele.Context) error { rejected++; return nil },
	})(func(tele.Context) error { ran++; return nil })

	_ = h(message(b, 1, 7, "/send 1 hi"))
	_ = h(message(b, 2, 8, "/send 1 hi"))
	if ran != 1 || rejected != 1 {
		t.Fatalf("ran=%d rejected=%d", ran, rejected)
	}

	closed := AdminOnlyMiddleware(AdminOptions{})(func(tele.Context) error { ran++; return nil })
	_ = closed(message(b, 3, 7, "/send 1 hi"))
	if ran != 1 {
		t.Fatal("admin commands must be closed without an admin id")
	}
}

func TestRecoverEscalatesPanics(t *testing.T) {
	b := offlineBot(t)
	var got []observability.Report
	observability.SetDefault(observability.SinkFunc(func(_ context.Context, r observability.Report) {
		got = append(got, r)
	}))
	defer observability.SetDefault(nil)

	err := RecoverMiddleware(func(tele.Context) error { panic("boom") })(message(b, 1, 5, "x"))
	if err != nil {
		t.Fatalf("recovered handler returned %v", err)
	}
	if len(got) != 1 || got[0].UserID != 5 || got[0].Err == nil {
		t.Fatalf("reports = %+v", got)
	}

	want := errors.New("plain")
	if err := RecoverMiddleware(func(tele.Context) error { return want })(message(b, 2, 5, "x")); !errors.Is(err, want) {
		t.Fatalf("errors must pass through, got %v", err)
	}
}

func TestSendCounters(t *testing.T) {
	b := offlineBot(t)
	c := message(b, 1, 5, "x")
	h := MessageMetricsMiddleware(LoggerMiddleware(func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		CountSent(ctx, false)
		CountSent(ctx, true)
		return nil
	}))
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if n, kb := GetCounters(c); n != 2 || !kb {
		t.Fatalf("counters = %d %v", n, kb)
	}
}

func TestRateLimitSkipsPayments(t *testing.T) {
	b := offlineBot(t)
	var handled int
	h := RateLimitMiddleware(RateLimitOptions{Interval: time.Hour})(func(tele.Context) error { handled++; return nil })
	for i := 0; i < 2; i++ {
		_ = h(b.NewContext(tele.Update{ID: i, Message: &tele.Message{
			Sender:  &tele.User{ID: 4},
			Chat:    &tele.Chat{ID: 4},
			Payment: &tele.Payment{Currency: "USD", Total: 300},
		}}))
	}
	if handled != 2 {
		t.Fatalf("payments were limited: handled=%d", handled)
	}
}
