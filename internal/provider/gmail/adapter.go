package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/http"
	netmail "net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/mailbridge/internal/account"
	"github.com/nhle/mailbridge/internal/credential"
	"github.com/nhle/mailbridge/internal/model"
	"github.com/nhle/mailbridge/internal/provider"
	"github.com/nhle/mailbridge/internal/provider/rfc822"
)

const defaultMaxResults = 50

// rest is the narrow HTTP surface the adapter needs. Tests substitute
// a scripted fake.
type rest interface {
	Get(ctx context.Context, path string, result interface{}) error
	Post(ctx context.Context, path string, body, result interface{}) error
	Put(ctx context.Context, path string, body, result interface{}) error
	Delete(ctx context.Context, path string) error
}

// Adapter implements the mailbox operation surface over the Gmail
// REST API. It is stateless: every call stands alone, and batch
// operations chunk their input with per-item retry on chunk failure.
type Adapter struct {
	email     string
	api       rest
	chunkSize int
	logger    *log.Logger
}

// New builds a Gmail adapter for one registry entry. chunkSize bounds
// batch request sizes; zero or negative selects the default.
func New(
	entry *account.Entry,
	bundle *credential.OAuthBundle,
	chunkSize int,
	logger *log.Logger,
) *Adapter {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Adapter{
		email:     entry.Email,
		api:       NewClient(context.Background(), bundle),
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// wrapErr maps well-known API statuses onto the provider error
// taxonomy. 401 means the token bundle is no longer usable.
func (a *Adapter) wrapErr(err error) error {
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return &provider.AuthError{
			Account: a.email,
			Message: "authentication failed (401): reconnect the account to refresh its OAuth grant",
		}
	}
	return err
}

// notFound reports whether err is an API 404.
func notFound(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// SearchEmails translates criteria into a Gmail query, lists matching
// message ids (newest first), and fetches metadata for each of them.
func (a *Adapter) SearchEmails(
	ctx context.Context, criteria model.SearchCriteria,
) ([]model.EmailSummary, error) {
	max := criteria.MaxResults
	if max <= 0 {
		max = defaultMaxResults
	}

	path := "/messages?maxResults=" + strconv.Itoa(max)
	if q := buildQuery(criteria); q != "" {
		path += "&q=" + url.QueryEscape(q)
	}

	var list messageList
	if err := a.api.Get(ctx, path, &list); err != nil {
		return nil, a.wrapErr(fmt.Errorf("listing messages: %w", err))
	}

	ids := list.Messages
	if len(ids) > max {
		ids = ids[:max]
	}

	summaries := make([]model.EmailSummary, 0, len(ids))
	for _, id := range ids {
		metaPath := "/messages/" + id.ID +
			"?format=metadata" +
			"&metadataHeaders=From&metadataHeaders=To" +
			"&metadataHeaders=Subject&metadataHeaders=Date"

		var msg wireMessage
		if err := a.api.Get(ctx, metaPath, &msg); err != nil {
			return nil, a.wrapErr(fmt.Errorf("fetching message %s: %w", id.ID, err))
		}

		summaries = append(summaries, summaryFromWire(&msg, criteria.Folder))
	}

	return summaries, nil
}

// summaryFromWire maps a metadata-format message onto the listing
// shape.
func summaryFromWire(msg *wireMessage, folder string) model.EmailSummary {
	summary := model.EmailSummary{
		Ref:     model.MessageRef{Folder: folder, ID: msg.ID},
		Snippet: msg.Snippet,
		Date:    internalDate(msg.InternalDate),
	}

	if msg.Payload != nil {
		summary.Subject = headerValue(msg.Payload.Headers, "Subject")
		summary.From = headerValue(msg.Payload.Headers, "From")
		if to := headerValue(msg.Payload.Headers, "To"); to != "" {
			summary.To = splitAddresses(to)
		}
		if raw := headerValue(msg.Payload.Headers, "Date"); raw != "" {
			if parsed, err := netmail.ParseDate(raw); err == nil {
				summary.Date = parsed
			}
		}
	}

	for _, label := range msg.LabelIDs {
		switch label {
		case "UNREAD":
			summary.Unread = true
		case "STARRED":
			summary.Flagged = true
		}
	}

	return summary
}

// ReadEmail fetches the raw message source and parses it into
// structured bodies, address lists, and the attachment index.
func (a *Adapter) ReadEmail(
	ctx context.Context, ref model.MessageRef,
) (*model.EmailDetail, error) {
	msg, raw, err := a.fetchRaw(ctx, ref)
	if err != nil {
		return nil, err
	}

	textBody, htmlBody, parts := rfc822.Parse(raw)

	detail := &model.EmailDetail{
		Ref:      model.MessageRef{Folder: ref.Folder, ID: msg.ID},
		TextBody: textBody,
		HTMLBody: htmlBody,
		Flags:    msg.LabelIDs,
		Date:     internalDate(msg.InternalDate),
	}

	if parsed, err := netmail.ReadMessage(strings.NewReader(string(raw))); err == nil {
		h := parsed.Header
		detail.MessageID = strings.Trim(h.Get("Message-Id"), "<>")
		detail.Subject = decodeHeader(h.Get("Subject"))
		detail.From = h.Get("From")
		detail.To = addressList(h, "To")
		detail.CC = addressList(h, "Cc")
		if date, err := h.Date(); err == nil {
			detail.Date = date
		}
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
// the attachment by the three-tier identifier: Content-ID exact
// match, else filename exact match, else positional index.
func (a *Adapter) DownloadAttachment(
	ctx context.Context, ref model.MessageRef, partID string,
) (*model.AttachmentData, error) {
	_, raw, err := a.fetchRaw(ctx, ref)
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

// fetchRaw retrieves one message in raw format and decodes its source
// bytes.
func (a *Adapter) fetchRaw(
	ctx context.Context, ref model.MessageRef,
) (*wireMessage, []byte, error) {
	if ref.ID == "" {
		return nil, nil, fmt.Errorf("message reference has no id")
	}

	var msg wireMessage
	if err := a.api.Get(ctx, "/messages/"+ref.ID+"?format=raw", &msg); err != nil {
		if notFound(err) {
			return nil, nil, &provider.NotFoundError{Kind: "message", Name: ref.ID}
		}
		return nil, nil, a.wrapErr(fmt.Errorf("fetching message %s: %w", ref.ID, err))
	}

	raw, err := decodeRaw(msg.Raw)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding message %s: %w", ref.ID, err)
	}

	return &msg, raw, nil
}

// SendEmail composes a MIME message and submits it via messages.send.
func (a *Adapter) SendEmail(
	ctx context.Context, msg model.OutgoingMessage,
) (*model.Ack, error) {
	if len(msg.To) == 0 {
		return nil, fmt.Errorf("message has no recipients")
	}

	raw, err := rfc822.Build(a.email, msg)
	if err != nil {
		return nil, err
	}

	var sent messageID
	body := rawMessageRequest{Raw: encodeRaw(raw)}
	if err := a.api.Post(ctx, "/messages/send", body, &sent); err != nil {
		return nil, a.wrapErr(fmt.Errorf("sending mail: %w", err))
	}

	recipients := len(msg.To) + len(msg.CC) + len(msg.BCC)
	return &model.Ack{
		Status: "sent",
		Detail: fmt.Sprintf("%d recipients", recipients),
	}, nil
}

// SaveDraft stores the message via drafts.create. Gmail tracks drafts
// by opaque id, not UID, so the append result always carries the
// accepted-but-untracked sentinel.
func (a *Adapter) SaveDraft(
	ctx context.Context, msg model.OutgoingMessage,
) (*model.AppendResult, error) {
	raw, err := rfc822.Build(a.email, msg)
	if err != nil {
		return nil, err
	}

	var draft draftResponse
	body := draftRequest{Message: rawMessageRequest{Raw: encodeRaw(raw)}}
	if err := a.api.Post(ctx, "/drafts", body, &draft); err != nil {
		return nil, a.wrapErr(fmt.Errorf("creating draft: %w", err))
	}

	return &model.AppendResult{Folder: "DRAFT", UID: 0}, nil
}

// MoveEmail relocates one message by swapping its folder labels.
func (a *Adapter) MoveEmail(
	ctx context.Context, ref model.MessageRef, destFolder string,
) (*model.Ack, error) {
	destID, err := a.labelIDForFolder(ctx, destFolder)
	if err != nil {
		return nil, err
	}

	if err := a.moveOne(ctx, ref, destID); err != nil {
		return nil, err
	}

	return &model.Ack{
		Status: "moved",
		Detail: fmt.Sprintf("to %s", destFolder),
	}, nil
}

// MoveEmails relocates several messages, reporting per-item outcomes.
// The destination label is resolved once; a single unresolvable
// destination fails the whole call rather than every item.
func (a *Adapter) MoveEmails(
	ctx context.Context, refs []model.MessageRef, destFolder string,
) (*model.BatchResult, error) {
	destID, err := a.labelIDForFolder(ctx, destFolder)
	if err != nil {
		return nil, err
	}

	result := &model.BatchResult{}
	for _, ref := range refs {
		if err := a.moveOne(ctx, ref, destID); err != nil {
			result.Failed = append(result.Failed, model.BatchItemError{
				ID:    ref.ID,
				Error: err.Error(),
			})
			continue
		}
		result.Succeeded = append(result.Succeeded, ref.ID)
	}

	return result, nil
}

// moveOne swaps the source folder label for the destination label on
// one message. An unresolvable source folder only skips the removal.
func (a *Adapter) moveOne(
	ctx context.Context, ref model.MessageRef, destLabelID string,
) error {
	if ref.ID == "" {
		return fmt.Errorf("message reference has no id")
	}

	body := modifyRequest{AddLabelIDs: []string{destLabelID}}
	if ref.Folder != "" {
		if srcID, err := a.labelIDForFolder(ctx, ref.Folder); err == nil {
			body.RemoveLabelIDs = []string{srcID}
		}
	}

	if err := a.api.Post(ctx, "/messages/"+ref.ID+"/modify", body, nil); err != nil {
		if notFound(err) {
			return &provider.NotFoundError{Kind: "message", Name: ref.ID}
		}
		return a.wrapErr(fmt.Errorf("moving message %s: %w", ref.ID, err))
	}

	return nil
}

// DeleteEmail trashes the message, or deletes it outright when
// permanent is set. Gmail always has a trash, so no fallback search
// is needed.
func (a *Adapter) DeleteEmail(
	ctx context.Context, ref model.MessageRef, permanent bool,
) (*model.Ack, error) {
	if ref.ID == "" {
		return nil, fmt.Errorf("message reference has no id")
	}

	if permanent {
		if err := a.api.Delete(ctx, "/messages/"+ref.ID); err != nil {
			if notFound(err) {
				return nil, &provider.NotFoundError{Kind: "message", Name: ref.ID}
			}
			return nil, a.wrapErr(fmt.Errorf("deleting message %s: %w", ref.ID, err))
		}
		return &model.Ack{Status: "deleted", Detail: "permanently removed"}, nil
	}

	if err := a.api.Post(ctx, "/messages/"+ref.ID+"/trash", nil, nil); err != nil {
		if notFound(err) {
			return nil, &provider.NotFoundError{Kind: "message", Name: ref.ID}
		}
		return nil, a.wrapErr(fmt.Errorf("trashing message %s: %w", ref.ID, err))
	}

	return &model.Ack{Status: "trashed", Detail: "moved to TRASH"}, nil
}

// MarkRead sets or clears the UNREAD label on several messages via
// the chunked batch path.
func (a *Adapter) MarkRead(
	ctx context.Context, refs []model.MessageRef, read bool,
) (*model.BatchResult, error) {
	result := &model.BatchResult{}

	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.ID == "" {
			result.Failed = append(result.Failed, model.BatchItemError{
				ID:    ref.Folder,
				Error: "message reference has no id",
			})
			continue
		}
		ids = append(ids, ref.ID)
	}

	var add, remove []string
	if read {
		remove = []string{"UNREAD"}
	} else {
		add = []string{"UNREAD"}
	}

	batch, err := a.BatchModifyLabels(ctx, ids, add, remove, false)
	if err != nil {
		return nil, err
	}

	result.Succeeded = batch.Succeeded
	result.Failed = append(result.Failed, batch.Failed...)
	return result, nil
}

// ListFolders exposes the account's labels as folders.
func (a *Adapter) ListFolders(ctx context.Context) ([]model.Folder, error) {
	var list labelList
	if err := a.api.Get(ctx, "/labels", &list); err != nil {
		return nil, a.wrapErr(fmt.Errorf("listing labels: %w", err))
	}

	folders := make([]model.Folder, 0, len(list.Labels))
	for _, label := range list.Labels {
		folders = append(folders, model.Folder{
			Name:        label.Name,
			Attributes:  []string{label.Type},
			TotalCount:  uint32(label.MessagesTotal),
			UnreadCount: uint32(label.MessagesUnread),
		})
	}

	return folders, nil
}

// CreateFolder creates a user label acting as a folder.
func (a *Adapter) CreateFolder(
	ctx context.Context, name string,
) (*model.Ack, error) {
	if _, err := a.CreateLabel(ctx, name); err != nil {
		return nil, err
	}
	return &model.Ack{Status: "created", Detail: name}, nil
}

// labelIDForFolder resolves a folder name to a label id: built-in
// system ids first, then an exact name match over the account's
// labels, then a case-insensitive match.
func (a *Adapter) labelIDForFolder(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("folder name is empty")
	}
	if _, ok := systemLabels[strings.ToUpper(name)]; ok {
		return strings.ToUpper(name), nil
	}

	labels, err := a.ListLabels(ctx)
	if err != nil {
		return "", err
	}

	for _, label := range labels {
		if label.Name == name {
			return label.ID, nil
		}
	}
	for _, label := range labels {
		if strings.EqualFold(label.Name, name) {
			return label.ID, nil
		}
	}

	available := make([]string, 0, len(labels))
	for _, label := range labels {
		available = append(available, label.Name)
	}
	return "", &provider.NotFoundError{Kind: "label", Name: name, Available: available}
}

// headerValue finds a header by case-insensitive name in a payload
// header list.
func headerValue(headers []wireHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// splitAddresses breaks a raw address-list header into individual
// addresses, preferring proper parsing.
func splitAddresses(raw string) []string {
	if parsed, err := netmail.ParseAddressList(raw); err == nil {
		addrs := make([]string, 0, len(parsed))
		for _, addr := range parsed {
			addrs = append(addrs, addr.Address)
		}
		return addrs
	}
	return []string{raw}
}

// addressList extracts plain addresses from a parsed message header,
// falling back to the raw value.
func addressList(h netmail.Header, key string) []string {
	raw := h.Get(key)
	if raw == "" {
		return nil
	}
	return splitAddresses(raw)
}

// decodeHeader decodes RFC 2047 encoded words, returning the raw
// value when decoding fails.
func decodeHeader(value string) string {
	decoded, err := new(mime.WordDecoder).DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// internalDate parses Gmail's millisecond epoch timestamp string.
func internalDate(ms string) time.Time {
	if ms == "" {
		return time.Time{}
	}
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(n)
}

// encodeRaw encodes RFC 5322 bytes the way the API expects raw
// message bodies.
func encodeRaw(raw []byte) string {
	return base64.URLEncoding.EncodeToString(raw)
}

// decodeRaw accepts base64url with or without padding.
func decodeRaw(encoded string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
}
