package fetchhttp

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestFetcher() *Fetcher {
	// httptest binds to 127.0.0.1, which the default validator blocks.
	return New(Config{URLValidator: func(string) error { return nil }, MaxBytes: 64})
}

func TestFetchHashAndMime(t *testing.T) {
	// WHAT: Fetch returns body, stripped MIME type, and the SHA-256 hash.
	body := "hello recolte"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	f := newTestFetcher()
	res, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(res.Content) != body {
		t.Errorf("content = %q", res.Content)
	}
	if res.MimeType != "text/html" {
		t.Errorf("mime = %q, want text/html", res.MimeType)
	}
	want := fmt.Sprintf("%x", sha256.Sum256([]byte(body)))
	if res.Hash != want {
		t.Errorf("hash = %s, want %s", res.Hash, want)
	}
	if res.Size != int64(len(body)) {
		t.Errorf("size = %d", res.Size)
	}
}

func TestFetchErrorFlavors(t *testing.T) {
	// WHAT: HTTP error statuses produce messages the fault classifier
	// recognizes (not found / access denied / rate limit).
	cases := []struct {
		status int
		want   string
	}{
		{404, "not found"},
		{403, "access denied"},
		{401, "access denied"},
		{429, "rate limit"},
		{500, "http 500"},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		f := newTestFetcher()
		_, err := f.Fetch(context.Background(), srv.URL)
		srv.Close()
		if err == nil {
			t.Errorf("status %d: no error", tc.status)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("status %d: err %q lacks %q", tc.status, err, tc.want)
		}
	}
}

func TestFetchSizeCap(t *testing.T) {
	// WHAT: Bodies are truncated at MaxBytes rather than read unbounded.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 1024))
	}))
	defer srv.Close()

	f := newTestFetcher()
	res, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Size != 64 {
		t.Errorf("size = %d, want cap 64", res.Size)
	}
}

func TestValidateURL(t *testing.T) {
	// WHAT: SSRF guard blocks local/private targets and odd schemes.
	blocked := []string{
		"http://localhost/x",
		"http://127.0.0.1/x",
		"http://10.1.2.3/x",
		"http://192.168.1.1/x",
		"http://169.254.169.254/latest/meta-data",
		"http://[::1]/x",
		"http://printer.local/x",
		"ftp://example.com/x",
		"http:///nohost",
	}
	for _, u := range blocked {
		if err := ValidateURL(u); err == nil {
			t.Errorf("ValidateURL(%q) = nil, want error", u)
		}
	}
	allowed := []string{
		"https://example.com/a",
		"http://8.8.8.8/x",
	}
	for _, u := range allowed {
		if err := ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%q) = %v", u, err)
		}
	}
}

func TestCanFetch(t *testing.T) {
	f := New(Config{})
	if !f.CanFetch("https://example.com/a") {
		t.Error("https declined")
	}
	if f.CanFetch("file:///etc/passwd") || f.CanFetch("nonsense") {
		t.Error("non-http accepted")
	}
}
