package scrape

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"leadgen-engine/internal/domain"
)

// Canonical paths most small-business sites hang their contact info on.
// Checked in addition to whatever the homepage itself links to.
var candidatePaths = []string{
	"/contact", "/contact-us", "/contactus", "/contact_us",
	"/get-in-touch", "/reach-us", "/contact.html", "/contact.php",
	"/about", "/about-us", "/aboutus", "/about_us",
	"/about.html", "/about.php",
	"/support", "/help", "/info", "/team",
}

var contactKeywords = []string{
	"contact", "about", "reach", "touch", "support", "help", "team", "info",
}

type CrawlerOpts struct {
	PageTimeout   time.Duration // full content fetch
	ProbeTimeout  time.Duration // cheap existence check
	MaxParallel   int           // concurrent candidate pages per site
	RequestsPerSec float64
	Burst         int
}

func (o CrawlerOpts) withDefaults() CrawlerOpts {
	if o.PageTimeout <= 0 {
		o.PageTimeout = 10 * time.Second
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 3 * time.Second
	}
	if o.MaxParallel <= 0 {
		o.MaxParallel = 4
	}
	if o.RequestsPerSec <= 0 {
		o.RequestsPerSec = 4.0
	}
	if o.Burst <= 0 {
		o.Burst = 4
	}
	return o
}

type Crawler struct {
	opts    CrawlerOpts
	client  *http.Client // follows redirects, for content fetches
	prober  *http.Client // no redirects, so 301/302 stay visible
	limiter *HostLimiter
}

func NewCrawler(opts CrawlerOpts) *Crawler {
	opts = opts.withDefaults()
	return &Crawler{
		opts:   opts,
		client: &http.Client{Timeout: opts.PageTimeout},
		prober: &http.Client{
			Timeout: opts.ProbeTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter: NewHostLimiter(opts.RequestsPerSec, opts.Burst),
	}
}

// Crawl walks a site's likely contact-bearing pages and returns every
// address found, deduplicated across the whole crawl (first hit wins).
//
// Failure policy: a dead page is skipped and a dead seed yields an empty
// result; "no emails" and "site unreachable" are the same answer to the
// caller. The crawl honors ctx; on deadline it returns whatever it has.
func (c *Crawler) Crawl(ctx context.Context, seedURL, category string) []domain.ScrapedEmail {
	base, err := url.Parse(strings.TrimSpace(seedURL))
	if err != nil || base.Host == "" {
		return nil
	}

	body, err := c.fetchPage(ctx, base.String())
	if err != nil {
		log.Printf("[crawl] seed fetch failed url=%s err=%v", base.String(), err)
		return nil
	}

	emails := ExtractEmails(body, "homepage", category, time.Now())
	discovered := discoverContactLinks(body, base)

	// Candidate set: canonical paths plus homepage-discovered links, minus
	// the seed itself, first mention wins.
	seen := map[string]bool{base.String(): true}
	type candidate struct{ pageURL, path string }
	var cands []candidate
	for _, p := range append(append([]string{}, candidatePaths...), discovered...) {
		ref, err := url.Parse(p)
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		if abs.Host != base.Host || seen[abs.String()] {
			continue
		}
		seen[abs.String()] = true
		cands = append(cands, candidate{pageURL: abs.String(), path: abs.Path})
	}

	results := make([][]domain.ScrapedEmail, len(cands))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.MaxParallel)
	for i, cand := range cands {
		i, cand := i, cand
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil // deadline: keep what we have
			}
			if !c.pageExists(gctx, cand.pageURL) {
				return nil
			}
			body, err := c.fetchPage(gctx, cand.pageURL)
			if err != nil {
				log.Printf("[crawl] skip page url=%s err=%v", cand.pageURL, err)
				return nil
			}
			results[i] = ExtractEmails(body, sourceForPath(cand.path), category, time.Now())
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		emails = append(emails, r...)
	}
	return dedupeEmails(emails)
}

func (c *Crawler) fetchPage(ctx context.Context, pageURL string) (string, error) {
	if err := c.limiter.WaitURL(ctx, pageURL); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode, url: pageURL}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// pageExists does a cheap HEAD probe. Redirect codes count as existing:
// the content fetch follows them.
func (c *Crawler) pageExists(ctx context.Context, pageURL string) bool {
	if err := c.limiter.WaitURL(ctx, pageURL); err != nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, pageURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := c.prober.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	switch resp.StatusCode {
	case http.StatusOK, http.StatusMovedPermanently, http.StatusFound:
		return true
	}
	return false
}

// discoverContactLinks pulls same-site anchors whose href or visible text
// carries a contact-intent keyword. Pure anchors (#...) and cross-domain
// absolute links are excluded.
func discoverContactLinks(pageHTML string, base *url.URL) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lh := strings.ToLower(href)
		if strings.HasPrefix(lh, "mailto:") || strings.HasPrefix(lh, "tel:") || strings.HasPrefix(lh, "javascript:") {
			return
		}
		if strings.HasPrefix(lh, "http://") || strings.HasPrefix(lh, "https://") {
			u, err := url.Parse(href)
			if err != nil || u.Host != base.Host {
				return
			}
		}
		text := strings.ToLower(strings.TrimSpace(a.Text()))
		for _, kw := range contactKeywords {
			if strings.Contains(lh, kw) || strings.Contains(text, kw) {
				links = append(links, href)
				return
			}
		}
	})
	return links
}

func sourceForPath(path string) string {
	lp := strings.ToLower(path)
	switch {
	case strings.Contains(lp, "contact"):
		return "contact page"
	case strings.Contains(lp, "about"):
		return "about page"
	default:
		return "info page"
	}
}

type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.code, e.url)
}
