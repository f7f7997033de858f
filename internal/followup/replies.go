package followup

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"leadgen-engine/internal/store"
)

// ReplyChecker scans an inbox for unseen mail from leads with a pending
// follow-up and retires those follow-ups: a lead that wrote back should
// never get chased again.
type ReplyChecker struct {
	Store *store.Store

	IMAPHost string
	IMAPPort int
	Username string
	Password func() (string, error) // keyring lookup, resolved per run
	Mailbox  string
}

// CheckOnce connects, matches unseen senders against pending follow-ups,
// marks the matches responded and their messages seen.
func (r *ReplyChecker) CheckOnce(ctx context.Context) (matched int, err error) {
	pending, err := r.Store.PendingFollowUps(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending follow-ups: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	byEmail := make(map[string][]store.FollowUp, len(pending))
	for _, f := range pending {
		k := strings.ToLower(strings.TrimSpace(f.LeadEmail))
		byEmail[k] = append(byEmail[k], f)
	}

	pass, err := r.Password()
	if err != nil {
		return 0, err
	}

	c, err := r.dial(ctx, pass)
	if err != nil {
		return 0, err
	}
	defer logoutAndClose(c)

	mailbox := r.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := c.Select(mailbox, &imap.SelectOptions{ReadOnly: false}).Wait(); err != nil {
		return 0, fmt.Errorf("imap select %q: %w", mailbox, err)
	}

	froms, err := fetchUnseenSenders(c)
	if err != nil {
		return 0, err
	}

	var seen []imap.UID
	for uid, from := range froms {
		matches, ok := byEmail[strings.ToLower(from)]
		if !ok {
			continue
		}
		for _, f := range matches {
			if err := r.Store.SetFollowUpStatus(ctx, f.ID, store.FollowUpResponded); err != nil {
				log.Printf("[replies] follow-up id=%d mark responded: %v", f.ID, err)
				continue
			}
			matched++
		}
		seen = append(seen, uid)
	}

	if err := markSeen(c, seen); err != nil {
		log.Printf("[replies] mark seen: %v", err)
	}
	return matched, nil
}

func (r *ReplyChecker) dial(ctx context.Context, password string) (*imapclient.Client, error) {
	if r.IMAPHost == "" || r.Username == "" {
		return nil, errors.New("imap host/username not configured")
	}
	addr := r.IMAPHost
	if r.IMAPPort != 0 && !strings.Contains(addr, ":") {
		addr = fmt.Sprintf("%s:%d", addr, r.IMAPPort)
	} else if !strings.Contains(addr, ":") {
		addr += ":993"
	}

	c, err := imapclient.DialTLS(addr, &imapclient.Options{
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12, ServerName: r.IMAPHost},
	})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}

	// Best-effort close on context cancel.
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	if err := c.Login(r.Username, password).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return c, nil
}

// fetchUnseenSenders pulls envelope From addresses for recent unseen
// mail, keyed by UID. BODY is never fetched and \Seen is untouched here.
func fetchUnseenSenders(c *imapclient.Client) (map[imap.UID]string, error) {
	cutoff := time.Now().AddDate(0, -1, 0)

	searchData, err := c.UIDSearch(&imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
		Since:   cutoff,
	}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search unseen: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	fetchCmd := c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:      true,
		Envelope: true,
	})
	defer func() { _ = fetchCmd.Close() }()

	out := make(map[imap.UID]string)
	for {
		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}
		buf, err := msgData.Collect()
		if err != nil {
			return nil, fmt.Errorf("imap fetch collect: %w", err)
		}
		if buf.Envelope != nil && len(buf.Envelope.From) > 0 {
			out[buf.UID] = strings.TrimSpace(buf.Envelope.From[0].Addr())
		}
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("imap fetch close: %w", err)
	}
	return out, nil
}

func markSeen(c *imapclient.Client, uids []imap.UID) error {
	if len(uids) == 0 {
		return nil
	}
	cmd := c.Store(imap.UIDSetNum(uids...), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("imap store add seen: %w", err)
	}
	return nil
}

func logoutAndClose(c *imapclient.Client) {
	if err := c.Logout().Wait(); err != nil {
		log.Printf("[replies] imap logout: %v", err)
	}
	_ = c.Close()
}
