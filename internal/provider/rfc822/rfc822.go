// Package rfc822 parses and builds raw RFC 5322 message bytes for the
// provider adapters. Both backends hand entire messages around as raw
// source, so the MIME walk and the outgoing composer live here.
package rfc822

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/mailbridge/internal/model"
)

// Part is one attachment discovered while walking the MIME tree, with
// the material for the three-tier part identifier.
type Part struct {
	Index     int
	ContentID string
	Filename  string
	MIMEType  string
	Data      []byte
}

// ID returns the stable identifier for this attachment: the Content-ID
// when present, else the filename, else the positional index in
// decimal.
func (p *Part) ID() string {
	if p.ContentID != "" {
		return p.ContentID
	}
	if p.Filename != "" {
		return p.Filename
	}
	return strconv.Itoa(p.Index)
}

// Parse walks a raw message with go-message, accumulating the
// text/plain body, text/html body, and attachment parts. A message
// that fails to parse is treated as plain text.
func Parse(raw []byte) (textBody, htmlBody string, parts []Part) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw), "", nil
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				if textBody == "" {
					textBody = string(body)
				}
			case strings.HasPrefix(contentType, "text/html"):
				if htmlBody == "" {
					htmlBody = string(body)
				}
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			parts = append(parts, Part{
				Index:     len(parts),
				ContentID: trimContentID(h.Get("Content-Id")),
				Filename:  filename,
				MIMEType:  contentType,
				Data:      body,
			})
		}
	}

	return textBody, htmlBody, parts
}

// Find applies the three identifier tiers in order: Content-ID exact
// match, else filename exact match, else positional index.
func Find(parts []Part, partID string) *Part {
	for i := range parts {
		if parts[i].ContentID != "" && parts[i].ContentID == partID {
			return &parts[i]
		}
	}
	for i := range parts {
		if parts[i].Filename != "" && parts[i].Filename == partID {
			return &parts[i]
		}
	}
	if idx, err := strconv.Atoi(partID); err == nil {
		for i := range parts {
			if parts[i].Index == idx {
				return &parts[i]
			}
		}
	}
	return nil
}

// Build renders an OutgoingMessage into RFC 5322 bytes using
// go-message. Text and HTML bodies become a multipart/alternative
// message; a single body stays a single part. BCC recipients are never
// written into the headers.
func Build(from string, msg model.OutgoingMessage) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetSubject(msg.Subject)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", toAddressList(msg.To))
	if len(msg.CC) > 0 {
		h.SetAddressList("Cc", toAddressList(msg.CC))
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("creating inline writer: %w", err)
	}

	writePart := func(contentType, body string) error {
		var ph mail.InlineHeader
		ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
		pw, err := iw.CreatePart(ph)
		if err != nil {
			return fmt.Errorf("creating %s part: %w", contentType, err)
		}
		if _, err := io.WriteString(pw, body); err != nil {
			return fmt.Errorf("writing %s part: %w", contentType, err)
		}
		return pw.Close()
	}

	if msg.TextBody != "" || msg.HTMLBody == "" {
		if err := writePart("text/plain", msg.TextBody); err != nil {
			return nil, err
		}
	}
	if msg.HTMLBody != "" {
		if err := writePart("text/html", msg.HTMLBody); err != nil {
			return nil, err
		}
	}

	if err := iw.Close(); err != nil {
		return nil, fmt.Errorf("closing inline writer: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing message writer: %w", err)
	}

	return buf.Bytes(), nil
}

func toAddressList(addrs []string) []*mail.Address {
	list := make([]*mail.Address, 0, len(addrs))
	for _, a := range addrs {
		list = append(list, &mail.Address{Address: a})
	}
	return list
}

// trimContentID strips the angle brackets from a Content-ID header.
func trimContentID(cid string) string {
	return strings.Trim(strings.TrimSpace(cid), "<>")
}
