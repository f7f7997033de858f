package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func testCrawler() *Crawler {
	return NewCrawler(CrawlerOpts{
		PageTimeout:    2 * time.Second,
		ProbeTimeout:   time.Second,
		MaxParallel:    2,
		RequestsPerSec: 1000, // don't throttle localhost tests
		Burst:          1000,
	})
}

// The homepage carries a mailto and a "Contact Us" link to /reach, which
// holds a second address. Both pages repeat the homepage address, which
// must collapse to one record.
func TestCrawl_MailtoPlusDiscoveredContactPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Write([]byte(`<html><body>
				<a href="mailto:info@acme.com">mail</a>
				<a href="/reach">Contact Us</a>
			</body></html>`))
		case "/reach":
			w.Write([]byte(`<html><body>sales@acme.com and again info@acme.com</body></html>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	emails := testCrawler().Crawl(context.Background(), srv.URL, "plumber")

	byAddr := map[string]string{}
	for _, e := range emails {
		byAddr[e.Address] = e.Source
	}
	if len(emails) != 2 {
		t.Fatalf("got %d emails (%v), want 2", len(emails), byAddr)
	}
	if byAddr["info@acme.com"] != "homepage" {
		t.Errorf("info@acme.com source: got %q, want homepage", byAddr["info@acme.com"])
	}
	// /reach matches the "reach" keyword but neither contact nor about.
	if byAddr["sales@acme.com"] != "info page" {
		t.Errorf("sales@acme.com source: got %q, want info page", byAddr["sales@acme.com"])
	}
}

func TestCrawl_CanonicalContactPathProbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Write([]byte(`<html><body>welcome</body></html>`))
		case "/contact":
			w.Write([]byte(`<html><body>office@widgets.io</body></html>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	emails := testCrawler().Crawl(context.Background(), srv.URL, "")
	if len(emails) != 1 || emails[0].Address != "office@widgets.io" || emails[0].Source != "contact page" {
		t.Errorf("got %+v, want office@widgets.io from contact page", emails)
	}
}

func TestCrawl_SeedFailureYieldsEmptyNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if emails := testCrawler().Crawl(context.Background(), srv.URL, ""); len(emails) != 0 {
		t.Errorf("got %v, want empty result for failing seed", emails)
	}
}

func TestCrawl_UnreachableSeedYieldsEmpty(t *testing.T) {
	if emails := testCrawler().Crawl(context.Background(), "http://127.0.0.1:1", ""); len(emails) != 0 {
		t.Errorf("got %v, want empty result", emails)
	}
}

func TestCrawl_DeadlineReturnsAccumulated(t *testing.T) {
	slow := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.Write([]byte(`<html><body>root@acme.dev</body></html>`))
			return
		}
		<-slow // hang every candidate page
	}))
	defer srv.Close()
	defer close(slow)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	emails := testCrawler().Crawl(ctx, srv.URL, "")
	found := false
	for _, e := range emails {
		if e.Address == "root@acme.dev" {
			found = true
		}
	}
	if !found {
		t.Errorf("homepage result lost on deadline: %v", emails)
	}
}

func TestDiscoverLinks_KeywordInTextOrHref(t *testing.T) {
	base, err := url.Parse("https://acme.test")
	if err != nil {
		t.Fatal(err)
	}
	html := `<html><body>
		<a href="/reach">Get in Touch</a>
		<a href="/our-team">People</a>
		<a href="/pricing">Pricing</a>
		<a href="#top">About</a>
		<a href="https://elsewhere.test/about">About them</a>
	</body></html>`

	got := discoverContactLinks(html, base)
	want := map[string]bool{"/reach": true, "/our-team": true}
	if len(got) != len(want) {
		t.Fatalf("got %v, want keys of %v", got, want)
	}
	for _, l := range got {
		if !want[l] {
			t.Errorf("unexpected link %q", l)
		}
	}
}
