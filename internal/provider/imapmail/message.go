package imapmail

import (
	"context"
	"fmt"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/mailbridge/internal/model"
	"github.com/nhle/mailbridge/internal/provider"
	"github.com/nhle/mailbridge/internal/provider/rfc822"
)

// ReadEmail fetches the full message source plus envelope and flags,
// parsing the source into structured bodies and an attachment index.
func (a *Adapter) ReadEmail(
	_ context.Context, ref model.MessageRef,
) (*model.EmailDetail, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf, raw, err := a.fetchFull(ref)
	if err != nil {
		return nil, err
	}

	textBody, htmlBody, parts := rfc822.Parse(raw)

	detail := &model.EmailDetail{
		Ref:      ref,
		TextBody: textBody,
		HTMLBody: htmlBody,
	}

	if buf.Envelope != nil {
		detail.MessageID = buf.Envelope.MessageID
		detail.Subject = buf.Envelope.Subject
		detail.Date = buf.Envelope.Date
		detail.From = formatAddress(buf.Envelope.From)
		for _, to := range buf.Envelope.To {
			detail.To = append(detail.To, to.Addr())
		}
		for _, cc := range buf.Envelope.Cc {
			detail.CC = append(detail.CC, cc.Addr())
		}
	}
	for _, flag := range buf.Flags {
		detail.Flags = append(detail.Flags, string(flag))
	}
	for i := range parts {
		p := &parts[i]
		detail.Attachments = append(detail.Attachments, model.Attachment{
			PartID:   p.ID(),
			Filename: p.Filename,
			MIMEType: p.MIMEType,
			Size:     int64(len(p.Data)),
		})
	}

	return detail, nil
}

// DownloadAttachment re-fetches and re-parses the message, locating
// the attachment by the same three-tier identifier used to build the
// index: Content-ID exact match, else filename exact match, else
// positional index.
func (a *Adapter) DownloadAttachment(
	_ context.Context, ref model.MessageRef, partID string,
) (*model.AttachmentData, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, raw, err := a.fetchFull(ref)
	if err != nil {
		return nil, err
	}

	_, _, parts := rfc822.Parse(raw)

	match := rfc822.Find(parts, partID)
	if match == nil {
		return nil, &provider.NotFoundError{Kind: "attachment", Name: partID}
	}

	return &model.AttachmentData{
		Attachment: model.Attachment{
			PartID:   match.ID(),
			Filename: match.Filename,
			MIMEType: match.MIMEType,
			Size:     int64(len(match.Data)),
		},
		Data: match.Data,
	}, nil
}

// fetchFull retrieves the envelope, flags, and raw source of one
// message by UID.
func (a *Adapter) fetchFull(ref model.MessageRef) (*imapclient.FetchMessageBuffer, []byte, error) {
	folder := ref.Folder
	if folder == "" {
		folder = "INBOX"
	}

	var buf *imapclient.FetchMessageBuffer
	var raw []byte

	err := a.withSession(folder, func(s *session) error {
		bodySection := &imap.FetchItemBodySection{Peek: true}
		fetchOpts := &imap.FetchOptions{
			Envelope:    true,
			Flags:       true,
			UID:         true,
			BodySection: []*imap.FetchItemBodySection{bodySection},
		}

		bufs, err := s.conn.Fetch(imap.UIDSetNum(imap.UID(ref.UID)), fetchOpts).Collect()
		if err != nil {
			return fmt.Errorf("fetching message %d in %s: %w", ref.UID, folder, err)
		}
		if len(bufs) == 0 {
			return &provider.NotFoundError{
				Kind: "message",
				Name: fmt.Sprintf("%s/%d", folder, ref.UID),
			}
		}

		buf = bufs[0]
		raw = buf.FindBodySection(bodySection)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return buf, raw, nil
}
