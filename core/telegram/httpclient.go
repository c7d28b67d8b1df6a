package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/pdfbot/core/telegram/netutil"
)

// HTTPClientOptions tunes BuildHTTPClient. Zero values pick defaults.
type HTTPClientOptions struct {
	// LongPoll is the getUpdates timeout; response headers may take that long.
	LongPoll time.Duration
	// Timeout bounds a whole request, document downloads included.
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

func (o HTTPClientOptions) withDefaults() HTTPClientOptions {
	if o.LongPoll <= 0 {
		o.LongPoll = defaultLongPollSeconds * time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Minute
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = 2 * time.Second
	}
	return o
}

// BuildHTTPClient returns the client the bot uses for Bot API calls and file
// transfers. Dial and timeout failures are retried below the bot.
func BuildHTTPClient(opts HTTPClientOptions) *http.Client {
	opts = opts.withDefaults()
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: opts.LongPoll + 10*time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: &retryTransport{base: base, retries: opts.MaxRetries, backoff: opts.Backoff},
	}
}

type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

// RoundTrip resends req on transient network errors. A body without GetBody
// cannot be replayed, so such requests get a single attempt.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	limit := t.retries + 1
	if req.Body != nil && req.GetBody == nil {
		limit = 1
	}
	ctx := req.Context()
	for attempt := 1; ; attempt++ {
		resp, err := t.base.RoundTrip(req)
		if err == nil || attempt == limit || !netutil.ShouldRetry(err) {
			return resp, err
		}

		timer := time.NewTimer(t.backoff * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		req = req.Clone(ctx)
		if req.GetBody != nil {
			if req.Body, err = req.GetBody(); err != nil {
				return nil, err
			}
		}
	}
}
