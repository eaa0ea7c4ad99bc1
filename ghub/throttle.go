package ghub

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Throttle enforces a minimum spacing between outbound GitHub requests
// across every session in the process. GitHub's secondary rate limits
// are account-wide, so the throttle is deliberately global.
type Throttle struct {
	lim *rate.Limiter
}

// NewThrottle spaces requests at least minInterval apart. A zero or
// negative interval disables pacing.
func NewThrottle(minInterval time.Duration) *Throttle {
	if minInterval <= 0 {
		return &Throttle{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttle{lim: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// Wait blocks until the next request slot or the context ends.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.lim.Wait(ctx)
}

// throttledTransport paces requests through the shared throttle and
// retries once when GitHub answers 429 or a secondary-limit 403 with a
// Retry-After it can honor within maxRetryWait.
type throttledTransport struct {
	base         http.RoundTripper
	throttle     *Throttle
	maxRetryWait time.Duration
}

func (t *throttledTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.throttle.Wait(req.Context()); err != nil {
		return nil, err
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	wait, ok := retryAfter(resp)
	if !ok || wait > t.maxRetryWait {
		return resp, nil
	}
	// A request body has already been consumed; only replayable
	// requests are retried.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	resp.Body.Close()
	select {
	case <-req.Context().Done():
		return nil, req.Context().Err()
	case <-time.After(wait):
	}

	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		req = req.Clone(req.Context())
		req.Body = body
	}
	if err := t.throttle.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

// retryAfter reports the server-requested backoff for rate-limited
// responses.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusForbidden {
		return 0, false
	}
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
