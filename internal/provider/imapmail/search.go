package imapmail

import (
	"context"
	"fmt"
	"sort"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/mailbridge/internal/model"
)

// SearchEmails translates the provider-neutral criteria into IMAP
// SEARCH predicates, truncates the UID list newest-first before any
// detail fetch, and returns summaries in UID-descending order. No
// matches is an empty result, not an error.
func (a *Adapter) SearchEmails(
	_ context.Context, criteria model.SearchCriteria,
) ([]model.EmailSummary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	folder := criteria.Folder
	if folder == "" {
		folder = "INBOX"
	}

	maxResults := criteria.MaxResults
	if maxResults < 1 {
		maxResults = 50
	}

	var summaries []model.EmailSummary
	err := a.withSession(folder, func(s *session) error {
		searchData, err := s.conn.UIDSearch(translateCriteria(criteria), nil).Wait()
		if err != nil {
			return fmt.Errorf("searching %s: %w", folder, err)
		}

		uids := searchData.AllUIDs()
		if len(uids) == 0 {
			summaries = nil
			return nil
		}

		// Newest first, truncated before the per-message fetch.
		sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
		if len(uids) > maxResults {
			uids = uids[:maxResults]
		}

		fetchOpts := &imap.FetchOptions{
			Envelope: true,
			Flags:    true,
			UID:      true,
		}
		bufs, err := s.conn.Fetch(imap.UIDSetNum(uids...), fetchOpts).Collect()
		if err != nil {
			return fmt.Errorf("fetching summaries in %s: %w", folder, err)
		}

		byUID := make(map[imap.UID]*imapclient.FetchMessageBuffer, len(bufs))
		for _, buf := range bufs {
			byUID[buf.UID] = buf
		}

		summaries = make([]model.EmailSummary, 0, len(uids))
		for _, uid := range uids {
			buf, ok := byUID[uid]
			if !ok {
				continue
			}
			summaries = append(summaries, summaryFromBuffer(folder, buf))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return summaries, nil
}

// translateCriteria maps the neutral criteria onto IMAP SEARCH keys.
// An all-zero criteria produces the empty criteria set, which the
// protocol treats as ALL.
func translateCriteria(c model.SearchCriteria) *imap.SearchCriteria {
	sc := &imap.SearchCriteria{}

	if c.From != "" {
		sc.Header = append(sc.Header, imap.SearchCriteriaHeaderField{
			Key: "From", Value: c.From,
		})
	}
	if c.To != "" {
		sc.Header = append(sc.Header, imap.SearchCriteriaHeaderField{
			Key: "To", Value: c.To,
		})
	}
	if c.Subject != "" {
		sc.Header = append(sc.Header, imap.SearchCriteriaHeaderField{
			Key: "Subject", Value: c.Subject,
		})
	}
	if !c.Since.IsZero() {
		sc.Since = c.Since
	}
	if !c.Before.IsZero() {
		sc.Before = c.Before
	}
	if c.UnreadOnly {
		sc.NotFlag = append(sc.NotFlag, imap.FlagSeen)
	}
	if c.Flagged {
		sc.Flag = append(sc.Flag, imap.FlagFlagged)
	}
	if c.BodyText != "" {
		sc.Body = append(sc.Body, c.BodyText)
	}

	return sc
}

// summaryFromBuffer builds an EmailSummary from a fetch buffer.
func summaryFromBuffer(folder string, buf *imapclient.FetchMessageBuffer) model.EmailSummary {
	sum := model.EmailSummary{
		Ref:    model.MessageRef{Folder: folder, UID: uint32(buf.UID)},
		Unread: true,
	}

	if buf.Envelope != nil {
		sum.Subject = buf.Envelope.Subject
		sum.Date = buf.Envelope.Date
		sum.From = formatAddress(buf.Envelope.From)
		for _, to := range buf.Envelope.To {
			sum.To = append(sum.To, to.Addr())
		}
	}

	for _, flag := range buf.Flags {
		switch flag {
		case imap.FlagSeen:
			sum.Unread = false
		case imap.FlagFlagged:
			sum.Flagged = true
		}
	}

	return sum
}

// formatAddress renders the first address of a list, preferring the
// display name.
func formatAddress(addrs []imap.Address) string {
	if len(addrs) == 0 {
		return ""
	}
	a := addrs[0]
	if a.Name != "" {
		return fmt.Sprintf("%s <%s>", a.Name, a.Addr())
	}
	return a.Addr()
}
