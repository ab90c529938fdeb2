// Package mirror replays ingest traffic to a secondary endpoint.
//
// Mirroring is strictly fire-and-forget: the copy is sent on its own
// goroutine with its own timeout, and no outcome, not even a dead mirror
// target, ever reaches the primary request path. Credentials are scrubbed
// from the copy before it leaves the process.
package mirror

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// DefaultTimeout bounds one mirrored request.
const DefaultTimeout = 5 * time.Second

// scrubHeaders are removed from mirrored requests.
var scrubHeaders = []string{"Authorization", "Cookie", "Proxy-Authorization"}

// Mirror forwards copies of requests to a base URL.
type Mirror struct {
	base    *url.URL
	match   *regexp.Regexp
	client  *http.Client
	log     *slog.Logger
	timeout time.Duration
}

// New creates a Mirror targeting baseURL. matchPattern is a regular
// expression selecting which request paths to mirror; empty mirrors
// everything. A nil logger defaults to slog.Default().
func New(baseURL, matchPattern string, log *slog.Logger) (*Mirror, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if matchPattern == "" {
		matchPattern = ".*"
	}
	match, err := regexp.Compile(matchPattern)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Mirror{
		base:    base,
		match:   match,
		client:  &http.Client{},
		log:     log,
		timeout: DefaultTimeout,
	}, nil
}

// Forward mirrors one request. It returns immediately; the copy is sent in
// the background and failures are only logged.
//
// Requests already marked as mirrored, and requests that would target the
// mirror host itself, are skipped to avoid replay loops.
func (m *Mirror) Forward(src *http.Request, body []byte) {
	if src.Header.Get("X-Mirrored-From") != "" {
		return
	}
	if !m.match.MatchString(src.URL.Path) {
		return
	}
	if src.Host == m.base.Host {
		return
	}

	target := *m.base
	if target.Path != "" && target.Path != "/" {
		target.Path = strings.TrimRight(target.Path, "/") + src.URL.Path
	} else {
		target.Path = src.URL.Path
	}
	target.RawQuery = src.URL.RawQuery

	headers := src.Header.Clone()
	for _, h := range scrubHeaders {
		headers.Del(h)
	}
	headers.Set("X-Mirrored-From", src.Host+src.URL.Path)

	method := src.Method
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, method, target.String(), bytes.NewReader(body))
		if err != nil {
			m.log.Warn("mirror request build failed", "target", target.String(), "error", err)
			return
		}
		req.Header = headers

		resp, err := m.client.Do(req)
		if err != nil {
			m.log.Warn("mirror delivery failed", "target", target.String(), "error", err)
			return
		}
		resp.Body.Close()
	}()
}
