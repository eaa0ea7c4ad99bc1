package ghub

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestThrottle_SpacesRequests(t *testing.T) {
	const interval = 20 * time.Millisecond
	th := NewThrottle(interval)
	ctx := context.Background()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := th.Wait(ctx); err != nil {
				t.Errorf("Wait() unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// Three slots at 20ms spacing: the last cannot clear before 40ms.
	if elapsed := time.Since(start); elapsed < 2*interval {
		t.Fatalf("three waits finished in %v, want at least %v", elapsed, 2*interval)
	}
}

func TestThrottle_ZeroIntervalDoesNotBlock(t *testing.T) {
	th := NewThrottle(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := th.Wait(ctx); err != nil {
			t.Fatalf("Wait() unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("100 waits with pacing disabled took %v", elapsed)
	}
}

// scriptedTransport returns canned responses in order and counts calls.
type scriptedTransport struct {
	mu        sync.Mutex
	responses []*http.Response
	calls     int
}

func (s *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := s.responses[s.calls]
	s.calls = s.calls + 1
	resp.Request = req
	return resp, nil
}

func canned(status int, retryAfter string) *http.Response {
	resp := &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("{}")),
	}
	if retryAfter != "" {
		resp.Header.Set("Retry-After", retryAfter)
	}
	return resp
}

func TestThrottledTransport_RetriesOnceAfterRateLimit(t *testing.T) {
	base := &scriptedTransport{responses: []*http.Response{
		canned(http.StatusTooManyRequests, "0"),
		canned(http.StatusOK, ""),
	}}
	tr := &throttledTransport{base: base, throttle: NewThrottle(0), maxRetryWait: time.Second}

	req, _ := http.NewRequest(http.MethodGet, "https://api.github.com/user", nil)
	resp, err := tr.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip() unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("RoundTrip() status = %d, want 200 after retry", resp.StatusCode)
	}
	if base.calls != 2 {
		t.Fatalf("RoundTrip() made %d upstream calls, want 2", base.calls)
	}
}

func TestThrottledTransport_DoesNotRetryBeyondCap(t *testing.T) {
	base := &scriptedTransport{responses: []*http.Response{
		canned(http.StatusForbidden, "3600"),
	}}
	tr := &throttledTransport{base: base, throttle: NewThrottle(0), maxRetryWait: time.Second}

	req, _ := http.NewRequest(http.MethodGet, "https://api.github.com/user", nil)
	resp, err := tr.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip() unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("RoundTrip() status = %d, want the original 403", resp.StatusCode)
	}
	if base.calls != 1 {
		t.Fatalf("RoundTrip() made %d upstream calls, want 1", base.calls)
	}
}

func TestThrottledTransport_PassesThroughPlainErrors(t *testing.T) {
	base := &scriptedTransport{responses: []*http.Response{
		canned(http.StatusNotFound, ""),
	}}
	tr := &throttledTransport{base: base, throttle: NewThrottle(0), maxRetryWait: time.Second}

	req, _ := http.NewRequest(http.MethodGet, "https://api.github.com/missing", nil)
	resp, err := tr.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip() unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound || base.calls != 1 {
		t.Fatalf("RoundTrip() = %d after %d calls, want a single 404", resp.StatusCode, base.calls)
	}
}

func TestResolveRESTBase(t *testing.T) {
	tests := []struct {
		host    string
		want    string
		wantErr bool
	}{
		{host: "", want: "https://api.github.com/"},
		{host: "https://github.com", want: "https://api.github.com/"},
		{host: "https://tenant.ghe.com", want: "https://api.tenant.ghe.com/"},
		{host: "https://ghes.corp.example", want: "https://ghes.corp.example/api/v3/"},
		{host: "ghes.corp.example", wantErr: true},
		{host: "https://", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			got, err := resolveRESTBase(tt.host)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("resolveRESTBase(%q) expected error, got %v", tt.host, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveRESTBase(%q) unexpected error: %v", tt.host, err)
			}
			if got.String() != tt.want {
				t.Errorf("resolveRESTBase(%q) = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}
