// Package ghub builds the upstream GitHub REST client shared by every
// session: bearer auth, versioned user agent, host resolution for
// github.com and GitHub Enterprise, and a process-wide request
// throttle.
package ghub

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v79/github"
)

// NewClient constructs the REST client every tool handler shares. An
// empty host targets github.com. The throttle is optional; when set,
// every outbound request passes through it.
func NewClient(host, token, version string, throttle *Throttle) (*gogithub.Client, error) {
	baseURL, err := resolveRESTBase(host)
	if err != nil {
		return nil, err
	}

	var rt http.RoundTripper = http.DefaultTransport
	if throttle != nil {
		rt = &throttledTransport{base: rt, throttle: throttle, maxRetryWait: 30 * time.Second}
	}

	client := gogithub.NewClient(&http.Client{
		Transport: rt,
		Timeout:   60 * time.Second,
	}).WithAuthToken(token)
	client.UserAgent = fmt.Sprintf("forge-mcp-server/%s", version)
	client.BaseURL = baseURL
	return client, nil
}

// resolveRESTBase maps a configured host to the REST API base URL.
// github.com and ghe.com tenants use the api subdomain; anything else
// is treated as GitHub Enterprise Server with its /api/v3/ prefix.
func resolveRESTBase(host string) (*url.URL, error) {
	if host == "" {
		return url.Parse("https://api.github.com/")
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("ghub: parse host %q: %w", host, err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("ghub: host must include a scheme (http or https): %q", host)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("ghub: host has no hostname: %q", host)
	}

	hostname := u.Hostname()
	switch {
	case strings.HasSuffix(hostname, "github.com"):
		return url.Parse("https://api.github.com/")
	case strings.HasSuffix(hostname, "ghe.com"):
		return url.Parse(fmt.Sprintf("%s://api.%s/", u.Scheme, strings.TrimPrefix(hostname, "api.")))
	default:
		return u.Parse("/api/v3/")
	}
}
