package model

import "time"

// MessageRef addresses a single message. For IMAP accounts Folder and UID
// identify the message; for Gmail accounts ID is the provider message id
// and Folder is informational.
type MessageRef struct {
	Folder string `json:"folder"`
	UID    uint32 `json:"uid,omitempty"`
	ID     string `json:"id,omitempty"`
}

// EmailSummary is the compact listing shape returned by search operations.
type EmailSummary struct {
	Ref     MessageRef `json:"ref"`
	Subject string     `json:"subject"`
	From    string     `json:"from"`
	To      []string   `json:"to,omitempty"`
	Date    time.Time  `json:"date"`
	Snippet string     `json:"snippet,omitempty"`
	Unread  bool       `json:"unread"`
	Flagged bool       `json:"flagged"`
}

// EmailDetail is the full message shape returned by read operations.
type EmailDetail struct {
	Ref         MessageRef   `json:"ref"`
	MessageID   string       `json:"message_id,omitempty"`
	Subject     string       `json:"subject"`
	From        string       `json:"from"`
	To          []string     `json:"to,omitempty"`
	CC          []string     `json:"cc,omitempty"`
	Date        time.Time    `json:"date"`
	TextBody    string       `json:"text_body,omitempty"`
	HTMLBody    string       `json:"html_body,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Flags       []string     `json:"flags,omitempty"`
}

// Attachment describes one attachment of a message. PartID is the stable
// identifier used to download it: the part's Content-ID when present,
// else the filename, else the decimal positional index.
type Attachment struct {
	PartID   string `json:"part_id"`
	Filename string `json:"filename,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size"`
}

// AttachmentData carries the downloaded bytes of a single attachment.
// Data serializes as base64 so the bytes survive the JSON tool result.
type AttachmentData struct {
	Attachment
	Data []byte `json:"data"`
}

// Folder describes one mailbox folder (or Gmail label acting as one).
type Folder struct {
	Name        string   `json:"name"`
	Delimiter   string   `json:"delimiter,omitempty"`
	Attributes  []string `json:"attributes,omitempty"`
	TotalCount  uint32   `json:"total_count,omitempty"`
	UnreadCount uint32   `json:"unread_count,omitempty"`
}

// SearchCriteria is the provider-neutral search predicate set. Zero-value
// fields are not applied; an all-zero criteria matches every message.
type SearchCriteria struct {
	Folder     string    `json:"folder,omitempty"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	Since      time.Time `json:"since,omitempty"`
	Before     time.Time `json:"before,omitempty"`
	UnreadOnly bool      `json:"unread_only,omitempty"`
	Flagged    bool      `json:"flagged,omitempty"`
	BodyText   string    `json:"body_text,omitempty"`
	MaxResults int       `json:"max_results,omitempty"`
}

// OutgoingMessage holds everything needed to send or draft a message.
type OutgoingMessage struct {
	To       []string `json:"to"`
	CC       []string `json:"cc,omitempty"`
	BCC      []string `json:"bcc,omitempty"`
	Subject  string   `json:"subject"`
	TextBody string   `json:"text_body,omitempty"`
	HTMLBody string   `json:"html_body,omitempty"`
}

// Ack is the generic acknowledgement for mutating operations.
type Ack struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// AppendResult reports the outcome of saving a message into a folder.
// UID is 0 when the server did not report one; callers must treat that
// as accepted but untracked, not as a failure.
type AppendResult struct {
	Folder string `json:"folder"`
	UID    uint32 `json:"uid"`
}

// BatchItemError records one failed identifier in a bulk operation.
type BatchItemError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchResult partitions a bulk operation's input into successes and
// failures. A failing item never aborts the remaining items.
type BatchResult struct {
	Succeeded []string         `json:"succeeded"`
	Failed    []BatchItemError `json:"failed"`
}

// SuccessCount returns the number of items that succeeded.
func (r *BatchResult) SuccessCount() int { return len(r.Succeeded) }

// FailureCount returns the number of items that failed.
func (r *BatchResult) FailureCount() int { return len(r.Failed) }

// Label is a Gmail label.
type Label struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type,omitempty"`
	MessagesTotal  int64  `json:"messages_total,omitempty"`
	MessagesUnread int64  `json:"messages_unread,omitempty"`
}

// LabelResult reports a label together with whether it was newly created
// by a get-or-create operation.
type LabelResult struct {
	Label   Label `json:"label"`
	Created bool  `json:"created"`
}

// FilterCriteria mirrors the Gmail filter matching fields.
type FilterCriteria struct {
	From          string `json:"from,omitempty"`
	To            string `json:"to,omitempty"`
	Subject       string `json:"subject,omitempty"`
	Query         string `json:"query,omitempty"`
	HasAttachment bool   `json:"has_attachment,omitempty"`
}

// FilterAction mirrors the Gmail filter action fields.
type FilterAction struct {
	AddLabelIDs    []string `json:"add_label_ids,omitempty"`
	RemoveLabelIDs []string `json:"remove_label_ids,omitempty"`
	Forward        string   `json:"forward,omitempty"`
}

// Filter is a Gmail filter.
type Filter struct {
	ID       string         `json:"id"`
	Criteria FilterCriteria `json:"criteria"`
	Action   FilterAction   `json:"action"`
}
