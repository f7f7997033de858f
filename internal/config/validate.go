package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy alongside the findings.
// Errors block saving; warnings are advisory.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	if out.Search.PageDelaySeconds < 0 {
		res.addErr("search.page_delay_seconds must be >= 0")
	}
	if out.Search.MaxPages <= 0 {
		res.addErr("search.max_pages must be > 0")
	}
	if strings.TrimSpace(out.Search.PlacesAPIKey) == "" {
		res.addWarn("search.places_api_key is empty; lead search will fail until it is set.")
	}

	if out.Crawl.MaxParallel < 0 {
		res.addErr("crawl.max_parallel must be >= 0")
	}
	if out.Crawl.RequestsPerSec < 0 {
		res.addErr("crawl.requests_per_sec must be >= 0")
	}

	if out.Dispatch.DelayMinSeconds < 0 {
		res.addErr("dispatch.delay_min_seconds must be >= 0")
	}
	if out.Dispatch.DelayMaxSeconds < out.Dispatch.DelayMinSeconds {
		res.addErr("dispatch.delay_max_seconds must be >= dispatch.delay_min_seconds")
	}

	seen := map[string]bool{}
	for i := range out.Dispatch.Senders {
		s := &out.Dispatch.Senders[i]
		s.Address = strings.ToLower(strings.TrimSpace(s.Address))
		if s.Address == "" {
			res.addErr("dispatch.senders[%d].address is required", i)
			continue
		}
		if !strings.Contains(s.Address, "@") {
			res.addErr("dispatch.senders[%d].address %q is not an email address", i, s.Address)
		}
		if seen[s.Address] {
			res.addErr("dispatch.senders has duplicate address %q", s.Address)
		}
		seen[s.Address] = true
		if s.DailyLimit <= 0 {
			res.addErr("dispatch.senders[%d].daily_limit must be > 0", i)
		} else if s.DailyLimit > 500 {
			res.addWarn("dispatch.senders[%d].daily_limit is %d; most providers throttle well below that.", i, s.DailyLimit)
		}
	}

	if out.FollowUp.Enabled {
		if out.FollowUp.Days <= 0 {
			res.addErr("follow_up.days must be > 0 when follow_up.enabled=true")
		}
		if out.FollowUp.MaxCount <= 0 {
			res.addErr("follow_up.max_count must be > 0 when follow_up.enabled=true")
		}
		if strings.TrimSpace(out.FollowUp.Cron) == "" {
			res.addErr("follow_up.cron is required when follow_up.enabled=true")
		}
	}

	if out.Replies.Enabled {
		if strings.TrimSpace(out.Replies.IMAPHost) == "" {
			res.addErr("replies.imap_host is required when replies.enabled=true")
		}
		if out.Replies.IMAPPort == 0 {
			res.addErr("replies.imap_port is required when replies.enabled=true")
		}
		if strings.TrimSpace(out.Replies.Username) == "" {
			res.addErr("replies.username is required when replies.enabled=true")
		}
		if strings.TrimSpace(out.Replies.Mailbox) == "" {
			res.addErr("replies.mailbox is required when replies.enabled=true")
		}
		if out.Replies.CheckSeconds > 0 && out.Replies.CheckSeconds < 30 {
			res.addWarn("replies.check_seconds is very low (%d) and may cause rate limits.", out.Replies.CheckSeconds)
		}
	}

	return out, res
}
