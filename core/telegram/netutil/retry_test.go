package netutil

import (
	"context"
	"errors"
	"net"
	"net/url"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestShouldRetry(t *testing.T) {
	dial := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad request"), false},
		{"dial", dial, true},
		{"wrapped dial", &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: dial}, true},
		{"timeout", &url.Error{Op: "Post", URL: "x", Err: context.DeadlineExceeded}, true},
		{"flood", tele.FloodError{RetryAfter: 3}, true},
		{"long flood", tele.FloodError{RetryAfter: 600}, false},
	}
	for _, tc := range cases {
		if got := ShouldRetry(tc.err); got != tc.want {
			t.Fatalf("%s: ShouldRetry = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRetryAfter(t *testing.T) {
	if d, ok := RetryAfter(tele.FloodError{RetryAfter: 2}); !ok || d != 2*time.Second {
		t.Fatalf("got %v %v", d, ok)
	}
	if _, ok := RetryAfter(errors.New("x")); ok {
		t.Fatal("plain errors carry no wait")
	}
}
