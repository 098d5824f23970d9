package classify

import "testing"

func TestCanHandle(t *testing.T) {
	d := New()
	cases := []struct {
		url  string
		want bool
	}{
		{"https://example.com/a", true},
		{"http://example.com", true},
		{"ftp://example.com/a", false},
		{"file:///etc/passwd", false},
		{"not a url", false},
		{"", false},
		{"//example.com/a", false}, // scheme-relative: declined
	}
	for _, tc := range cases {
		if got := d.CanHandle(tc.url); got != tc.want {
			t.Errorf("CanHandle(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}

func TestDetect(t *testing.T) {
	d := New()
	cases := []struct {
		url      string
		wantType string
		wantMime string
	}{
		{"https://example.com/readme.md", "markdown", "text/markdown"},
		{"https://example.com/notes.txt", "text", "text/plain"},
		{"https://example.com/paper.pdf", "document", "application/pdf"},
		{"https://example.com/logo.PNG", "image", "image/png"},
		{"https://example.com/feed.rss", "feed", "application/rss+xml"},
		{"https://example.com/page.html", "web", "text/html"},
		{"https://example.com/about", "web", "text/html"},
		{"https://example.com/", "web", "text/html"},
	}
	for _, tc := range cases {
		det, ok := d.Detect(tc.url)
		if !ok {
			t.Errorf("Detect(%q) declined", tc.url)
			continue
		}
		if det.Type != tc.wantType || det.MimeType != tc.wantMime {
			t.Errorf("Detect(%q) = %s/%s, want %s/%s",
				tc.url, det.Type, det.MimeType, tc.wantType, tc.wantMime)
		}
		if det.Metadata["host"] != "example.com" {
			t.Errorf("Detect(%q) host = %q", tc.url, det.Metadata["host"])
		}
	}

	if _, ok := d.Detect("ftp://example.com/x"); ok {
		t.Error("unsupported scheme accepted")
	}
}
