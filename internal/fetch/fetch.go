// Package fetch retrieves remote payloads referenced by specifications.
//
// A [Router] picks a [Fetcher] by URL scheme: [HTTPFetcher] serves http and
// https, [S3Fetcher] serves s3://bucket/key.
package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// MaxBodyBytes bounds how much of a payload is read.
const MaxBodyBytes = 32 << 20

// Resource is a fetched payload.
type Resource struct {
	URL       string
	Body      []byte
	MediaType string
}

// Fetcher retrieves the payload at a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Resource, error)
}

// StatusError reports a non-success HTTP status.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: HTTP %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

// DefaultAccept prefers RDF serializations, then query and result formats.
const DefaultAccept = "text/turtle, application/n-triples;q=0.9, application/sparql-query;q=0.8, application/sparql-results+json;q=0.8, text/csv;q=0.5, */*;q=0.1"

// HTTPFetcher fetches http and https URLs.
type HTTPFetcher struct {
	client *http.Client
	accept string
}

// NewHTTP returns an HTTP fetcher. A zero timeout leaves requests bounded
// only by the context.
func NewHTTP(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}, accept: DefaultAccept}
}

// NewHTTPWithClient returns an HTTP fetcher using client.
func NewHTTPWithClient(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client, accept: DefaultAccept}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	req.Header.Set("Accept", f.accept)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: rawURL, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", rawURL, err)
	}
	return &Resource{URL: rawURL, Body: body, MediaType: mediaType(resp.Header.Get("Content-Type"))}, nil
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// Router dispatches by URL scheme.
type Router struct {
	schemes map[string]Fetcher
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{schemes: make(map[string]Fetcher)}
}

// Handle registers f for scheme, replacing any previous fetcher.
func (r *Router) Handle(scheme string, f Fetcher) *Router {
	r.schemes[strings.ToLower(scheme)] = f
	return r
}

// Schemes lists the registered schemes, sorted.
func (r *Router) Schemes() []string {
	out := make([]string, 0, len(r.schemes))
	for s := range r.schemes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Fetch implements Fetcher.
func (r *Router) Fetch(ctx context.Context, rawURL string) (*Resource, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	f, ok := r.schemes[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("fetch %s: no fetcher for scheme %q", rawURL, u.Scheme)
	}
	return f.Fetch(ctx, rawURL)
}
