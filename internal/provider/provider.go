package provider

import (
	"context"

	"github.com/nhle/mailbridge/internal/model"
)

// Type identifies the kind of backend a mailbox account is served by.
type Type string

const (
	// TypeIMAP is the stateful IMAP/SMTP backend authenticated with an
	// app-specific password.
	TypeIMAP Type = "imap"

	// TypeGmail is the stateless REST backend authenticated with an
	// OAuth2 token bundle.
	TypeGmail Type = "gmail"
)

// Mailbox is the uniform operation surface every backend implements.
// All message addressing goes through model.MessageRef: a (folder, UID)
// pair for IMAP, an opaque message id for Gmail. Implementations return
// the normalized model shapes so callers never branch on provider type.
type Mailbox interface {
	// SearchEmails finds messages matching criteria. An all-zero
	// criteria matches everything. Results are newest-first and never
	// exceed criteria.MaxResults. No matches is an empty slice, not an
	// error.
	SearchEmails(ctx context.Context, criteria model.SearchCriteria) ([]model.EmailSummary, error)

	// ReadEmail fetches the full message for ref, including parsed
	// bodies and the attachment index.
	ReadEmail(ctx context.Context, ref model.MessageRef) (*model.EmailDetail, error)

	// SendEmail submits msg for delivery.
	SendEmail(ctx context.Context, msg model.OutgoingMessage) (*model.Ack, error)

	// SaveDraft stores msg as a draft without sending it.
	SaveDraft(ctx context.Context, msg model.OutgoingMessage) (*model.AppendResult, error)

	// MoveEmail relocates one message to destFolder.
	MoveEmail(ctx context.Context, ref model.MessageRef, destFolder string) (*model.Ack, error)

	// MoveEmails relocates several messages to destFolder, reporting
	// per-item outcomes.
	MoveEmails(ctx context.Context, refs []model.MessageRef, destFolder string) (*model.BatchResult, error)

	// DeleteEmail removes a message. When permanent is false it is
	// moved to the account's trash folder when one exists; otherwise
	// it is deleted outright.
	DeleteEmail(ctx context.Context, ref model.MessageRef, permanent bool) (*model.Ack, error)

	// MarkRead sets or clears the read state on several messages.
	MarkRead(ctx context.Context, refs []model.MessageRef, read bool) (*model.BatchResult, error)

	// DownloadAttachment fetches one attachment addressed by the part
	// identifier reported in the message's attachment index.
	DownloadAttachment(ctx context.Context, ref model.MessageRef, partID string) (*model.AttachmentData, error)

	// ListFolders enumerates the account's folders.
	ListFolders(ctx context.Context) ([]model.Folder, error)

	// CreateFolder creates a new folder (or label, on Gmail).
	CreateFolder(ctx context.Context, name string) (*model.Ack, error)
}

// LabelManager is the Gmail-only label, filter, and thread surface.
// The facade type-asserts a Mailbox to LabelManager and rejects label
// operations on accounts whose backend does not provide it.
type LabelManager interface {
	ListLabels(ctx context.Context) ([]model.Label, error)
	CreateLabel(ctx context.Context, name string) (*model.Label, error)
	UpdateLabel(ctx context.Context, id, newName string) (*model.Label, error)
	DeleteLabel(ctx context.Context, id string) error

	// GetOrCreateLabel returns the label with an exact (case-sensitive)
	// name match, creating it when none exists, and reports which
	// branch was taken.
	GetOrCreateLabel(ctx context.Context, name string) (*model.LabelResult, error)

	// ModifyMessageLabels applies add/remove label changes to one
	// message. An empty add or remove set is a no-op for that
	// direction.
	ModifyMessageLabels(ctx context.Context, id string, add, remove []string) error

	// ModifyThreadLabels applies add/remove label changes to one
	// thread.
	ModifyThreadLabels(ctx context.Context, threadID string, add, remove []string) error

	// BatchModifyLabels applies add/remove label changes to many
	// messages or threads, chunked, with per-item retry on chunk
	// failure.
	BatchModifyLabels(ctx context.Context, ids []string, add, remove []string, threads bool) (*model.BatchResult, error)

	// BatchDelete trashes (or permanently deletes) many messages,
	// chunked, with per-item retry on chunk failure.
	BatchDelete(ctx context.Context, ids []string, permanent bool) (*model.BatchResult, error)

	// CreateFilterFromTemplate expands a named filter template
	// (from-to-label, subject-to-label, mailing-list-archive) into
	// concrete criteria and action, creating the target label when it
	// does not exist yet.
	CreateFilterFromTemplate(ctx context.Context, template, value, labelName string) (*model.Filter, error)

	ListFilters(ctx context.Context) ([]model.Filter, error)
	GetFilter(ctx context.Context, id string) (*model.Filter, error)
	CreateFilter(ctx context.Context, criteria model.FilterCriteria, action model.FilterAction) (*model.Filter, error)
	DeleteFilter(ctx context.Context, id string) error
}
