// CLAUDE:SUMMARY Default HTTP fetch collaborator: size-capped GET with SSRF guard, redirect limit, SHA-256 hashing.
// Package fetchhttp is the default content-fetch collaborator.
//
// It performs plain HTTP GETs with a timeout, a response size cap, a redirect
// limit, and SSRF validation on the initial URL and every redirect hop.
// Browser rendering and PDF extraction live behind other collaborators.
package fetchhttp

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Result is the outcome of one fetch.
type Result struct {
	Content  []byte
	MimeType string
	Size     int64
	Headers  http.Header
	Hash     string // SHA-256 of Content, hex
	Status   int
}

// Config configures the fetcher.
type Config struct {
	Timeout      time.Duration // HTTP timeout. Default: 30s.
	MaxBytes     int64         // Max response body size. Default: 10MB.
	UserAgent    string        // Default: "recolte/1.0".
	MaxRedirects int           // Default: 5.
	// URLValidator validates URLs before fetch and on redirects.
	// Default: ValidateURL.
	URLValidator func(string) error
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "recolte/1.0"
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = 5
	}
	if c.URLValidator == nil {
		c.URLValidator = ValidateURL
	}
}

// Fetcher performs HTTP requests.
type Fetcher struct {
	client *http.Client
	config Config
}

// New creates a Fetcher with SSRF protection on redirects.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	maxRedirects := cfg.MaxRedirects
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		config: cfg,
	}
}

// CanFetch reports whether this fetcher handles the URL (http/https only).
func (f *Fetcher) CanFetch(rawURL string) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	return (scheme == "http" || scheme == "https") && parsed.Host != ""
}

// Fetch retrieves a URL, hashing the body with SHA-256.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	if err := f.config.URLValidator(rawURL); err != nil {
		return nil, fmt.Errorf("URL blocked: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("not found: http %d", resp.StatusCode)
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("access denied: http %d", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limit: http %d", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 400:
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	h := sha256.Sum256(body)

	return &Result{
		Content:  body,
		MimeType: mimeType(resp.Header.Get("Content-Type")),
		Size:     int64(len(body)),
		Headers:  resp.Header.Clone(),
		Hash:     fmt.Sprintf("%x", h),
		Status:   resp.StatusCode,
	}, nil
}

// mimeType strips parameters ("; charset=...") from a Content-Type header.
func mimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return mt
}
