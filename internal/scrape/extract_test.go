package scrape

import (
	"testing"
	"time"

	"leadgen-engine/internal/domain"
)

var now = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func addresses(html string) []string {
	var out []string
	for _, e := range ExtractEmails(html, "homepage", "plumber", now) {
		out = append(out, e.Address)
	}
	return out
}

func TestExtract_RejectsPlaceholderDomains(t *testing.T) {
	got := addresses(`<p>a@example.com b@real.com</p>`)
	if len(got) != 1 || got[0] != "b@real.com" {
		t.Errorf("got %v, want [b@real.com]", got)
	}
}

func TestExtract_RejectsAssetFilenames(t *testing.T) {
	cases := []string{
		"logo@2x.png", "hero@desktop.jpg", "icon@small.jpeg",
		"anim@load.gif", "main@build.css", "app@bundle.js",
		"pic@large.svg", "fav@16.ico",
	}
	for _, c := range cases {
		if got := addresses("<p>" + c + " real@acme.io</p>"); len(got) != 1 || got[0] != "real@acme.io" {
			t.Errorf("%s: got %v, want only real@acme.io", c, got)
		}
	}
}

func TestExtract_ParsesMailtoAndStripsQuery(t *testing.T) {
	html := `<a href="mailto:Info@Acme.com?subject=Hello">write us</a>`
	got := addresses(html)
	if len(got) != 1 || got[0] != "info@acme.com" {
		t.Errorf("got %v, want [info@acme.com]", got)
	}
}

func TestExtract_LowercasesAndDedupsWithinPage(t *testing.T) {
	html := `<p>Sales@Acme.com</p><a href="mailto:sales@acme.com">mail</a>`
	got := addresses(html)
	if len(got) != 1 || got[0] != "sales@acme.com" {
		t.Errorf("got %v, want [sales@acme.com]", got)
	}
}

func TestExtract_RequiresDotAfterAt(t *testing.T) {
	if got := addresses(`<p>broken@localhost hi@ok.dev</p>`); len(got) != 1 || got[0] != "hi@ok.dev" {
		t.Errorf("got %v, want [hi@ok.dev]", got)
	}
}

func TestExtract_MarksPatternValidOnly(t *testing.T) {
	got := ExtractEmails(`<p>x@ok.dev</p>`, "contact page", "salon", now)
	if len(got) != 1 {
		t.Fatalf("got %d emails, want 1", len(got))
	}
	e := got[0]
	if !e.Verified || e.Source != "contact page" || e.Category != "salon" || !e.ScrapedAt.Equal(now) {
		t.Errorf("record fields wrong: %+v", e)
	}
}

func TestDedupe_IsIdempotent(t *testing.T) {
	in := ExtractEmails(`<p>a@ok.dev b@ok.dev</p>`, "homepage", "", now)
	in = append(in, in[0]) // duplicate tail

	once := dedupeEmails(append([]domain.ScrapedEmail(nil), in...))
	twice := dedupeEmails(append([]domain.ScrapedEmail(nil), once...))
	if len(once) != 2 || len(twice) != len(once) {
		t.Errorf("dedupe not idempotent: once=%d twice=%d", len(once), len(twice))
	}
}
