package scrape

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"leadgen-engine/internal/domain"
)

// Permissive RFC-5322-ish matcher: local@domain.tld with a 2+ char TLD.
// False positives are handled by isValidEmail, not by tightening this.
var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)

var invalidExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".css", ".js", ".svg", ".ico",
}

var placeholderDomains = []string{
	"example.com", "yourdomain.com", "email.com", "test.com", "domain.com",
}

// ExtractEmails scans raw page content for addresses and returns them as
// validated, lowercased, per-page-deduplicated records.
//
// Verified=true on the results means the address is pattern-valid and
// survived the filter lists. It says nothing about deliverability.
func ExtractEmails(pageHTML, source, category string, now time.Time) []domain.ScrapedEmail {
	found := emailPattern.FindAllString(pageHTML, -1)

	// mailto: anchors catch obfuscation-free addresses the body regex can
	// miss (e.g. inside attributes), and carry ?subject=... suffixes.
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML)); err == nil {
		doc.Find(`a[href^="mailto:"]`).Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			addr := strings.TrimPrefix(href, "mailto:")
			if i := strings.IndexByte(addr, '?'); i >= 0 {
				addr = addr[:i]
			}
			if addr != "" {
				found = append(found, addr)
			}
		})
	}

	seen := make(map[string]bool, len(found))
	var out []domain.ScrapedEmail
	for _, raw := range found {
		addr := strings.ToLower(strings.TrimSpace(raw))
		if addr == "" || seen[addr] || !isValidEmail(addr) {
			continue
		}
		seen[addr] = true
		out = append(out, domain.ScrapedEmail{
			Address:   addr,
			Source:    source,
			Category:  category,
			ScrapedAt: now.UTC(),
			Verified:  true,
		})
	}
	return out
}

// isValidEmail filters the usual scrape false positives: asset filenames
// that look like addresses, placeholder domains from templates, and
// strings without a real domain part. Expects a lowercased address.
func isValidEmail(addr string) bool {
	for _, ext := range invalidExtensions {
		if strings.HasSuffix(addr, ext) {
			return false
		}
	}
	for _, ph := range placeholderDomains {
		if strings.Contains(addr, ph) {
			return false
		}
	}
	at := strings.IndexByte(addr, '@')
	if at < 0 || !strings.Contains(addr[at+1:], ".") {
		return false
	}
	return true
}

// dedupeEmails keeps the first occurrence of each address across a whole
// crawl. Idempotent: running it over already-deduplicated input is a no-op.
func dedupeEmails(emails []domain.ScrapedEmail) []domain.ScrapedEmail {
	seen := make(map[string]bool, len(emails))
	out := emails[:0]
	for _, e := range emails {
		if seen[e.Address] {
			continue
		}
		seen[e.Address] = true
		out = append(out, e)
	}
	return out
}
