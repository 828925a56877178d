package imapmail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/mailbridge/internal/model"
	"github.com/nhle/mailbridge/internal/provider/rfc822"
)

// wellKnownTrash are folder names probed when the server reports no
// \Trash special-use attribute and no name contains "trash".
var wellKnownTrash = []string{"Trash", "Deleted Items", "Deleted Messages", "INBOX.Trash"}

// wellKnownDrafts are folder names probed for saving drafts when the
// server reports no \Drafts special-use attribute.
var wellKnownDrafts = []string{"Drafts", "INBOX.Drafts", "[Gmail]/Drafts"}

// ListFolders enumerates the account's mailboxes with message counts.
func (a *Adapter) ListFolders(_ context.Context) ([]model.Folder, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var folders []model.Folder
	err := a.withSession("", func(s *session) error {
		var err error
		folders, err = listFolders(s)
		return err
	})
	if err != nil {
		return nil, err
	}
	return folders, nil
}

func listFolders(s *session) ([]model.Folder, error) {
	listOpts := &imap.ListOptions{
		ReturnStatus: &imap.StatusOptions{
			NumMessages: true,
			NumUnseen:   true,
		},
	}
	data, err := s.conn.List("", "*", listOpts).Collect()
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}

	folders := make([]model.Folder, 0, len(data))
	for _, d := range data {
		f := model.Folder{
			Name:      d.Mailbox,
			Delimiter: string(d.Delim),
		}
		for _, attr := range d.Attrs {
			f.Attributes = append(f.Attributes, string(attr))
		}
		if d.Status != nil {
			if d.Status.NumMessages != nil {
				f.TotalCount = *d.Status.NumMessages
			}
			if d.Status.NumUnseen != nil {
				f.UnreadCount = *d.Status.NumUnseen
			}
		}
		folders = append(folders, f)
	}
	return folders, nil
}

// CreateFolder creates a new mailbox.
func (a *Adapter) CreateFolder(_ context.Context, name string) (*model.Ack, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.withSession("", func(s *session) error {
		if err := s.conn.Create(name, nil).Wait(); err != nil {
			return fmt.Errorf("creating folder %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &model.Ack{Status: "created", Detail: name}, nil
}

// MoveEmail relocates one message. The selected-mailbox cache is
// invalidated afterward: the move changes message counts and UIDs in
// both folders.
func (a *Adapter) MoveEmail(
	_ context.Context, ref model.MessageRef, destFolder string,
) (*model.Ack, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.moveOne(ref, destFolder); err != nil {
		return nil, err
	}
	return &model.Ack{
		Status: "moved",
		Detail: fmt.Sprintf("%s/%d -> %s", ref.Folder, ref.UID, destFolder),
	}, nil
}

func (a *Adapter) moveOne(ref model.MessageRef, destFolder string) error {
	folder := ref.Folder
	if folder == "" {
		folder = "INBOX"
	}
	return a.withSession(folder, func(s *session) error {
		defer func() { s.selected = "" }()
		if _, err := s.conn.Move(imap.UIDSetNum(imap.UID(ref.UID)), destFolder).Wait(); err != nil {
			return fmt.Errorf("moving %d to %s: %w", ref.UID, destFolder, err)
		}
		return nil
	})
}

// MoveEmails relocates several messages, reporting per-item outcomes.
// One failing message never aborts the rest.
func (a *Adapter) MoveEmails(
	_ context.Context, refs []model.MessageRef, destFolder string,
) (*model.BatchResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := &model.BatchResult{}
	for _, ref := range refs {
		id := fmt.Sprintf("%s/%d", ref.Folder, ref.UID)
		if err := a.moveOne(ref, destFolder); err != nil {
			result.Failed = append(result.Failed, model.BatchItemError{
				ID: id, Error: err.Error(),
			})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return result, nil
}

// DeleteEmail removes a message. With permanent false the message is
// moved to the account's trash-equivalent folder; when no such folder
// exists the deletion falls back to permanent (flag plus expunge).
func (a *Adapter) DeleteEmail(
	_ context.Context, ref model.MessageRef, permanent bool,
) (*model.Ack, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	folder := ref.Folder
	if folder == "" {
		folder = "INBOX"
	}

	if !permanent {
		var trash string
		err := a.withSession("", func(s *session) error {
			folders, err := listFolders(s)
			if err != nil {
				return err
			}
			trash = findTrashFolder(folders)
			return nil
		})
		if err != nil {
			return nil, err
		}

		if trash != "" {
			if err := a.moveOne(ref, trash); err != nil {
				return nil, err
			}
			return &model.Ack{Status: "trashed", Detail: trash}, nil
		}
		// No trash-like folder: fall through to permanent deletion.
	}

	err := a.withSession(folder, func(s *session) error {
		defer func() { s.selected = "" }()

		uidSet := imap.UIDSetNum(imap.UID(ref.UID))
		store := &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  []imap.Flag{imap.FlagDeleted},
		}
		if err := s.conn.Store(uidSet, store, nil).Close(); err != nil {
			return fmt.Errorf("flagging %d deleted: %w", ref.UID, err)
		}
		if err := s.conn.UIDExpunge(uidSet).Close(); err != nil {
			return fmt.Errorf("expunging %d: %w", ref.UID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &model.Ack{Status: "deleted"}, nil
}

// findTrashFolder locates the trash-equivalent: the \Trash special-use
// attribute first, then a case-insensitive "trash" substring, then the
// well-known names.
func findTrashFolder(folders []model.Folder) string {
	for _, f := range folders {
		for _, attr := range f.Attributes {
			if strings.EqualFold(attr, string(imap.MailboxAttrTrash)) {
				return f.Name
			}
		}
	}
	for _, f := range folders {
		if strings.Contains(strings.ToLower(f.Name), "trash") {
			return f.Name
		}
	}
	for _, f := range folders {
		for _, known := range wellKnownTrash {
			if f.Name == known {
				return f.Name
			}
		}
	}
	return ""
}

// MarkRead sets or clears \Seen on several messages, grouped by
// folder. Flag changes invalidate the selected-mailbox cache.
func (a *Adapter) MarkRead(
	_ context.Context, refs []model.MessageRef, read bool,
) (*model.BatchResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	op := imap.StoreFlagsAdd
	if !read {
		op = imap.StoreFlagsDel
	}

	byFolder := map[string][]model.MessageRef{}
	for _, ref := range refs {
		folder := ref.Folder
		if folder == "" {
			folder = "INBOX"
		}
		byFolder[folder] = append(byFolder[folder], ref)
	}

	result := &model.BatchResult{}
	for folder, group := range byFolder {
		uids := make([]imap.UID, 0, len(group))
		for _, ref := range group {
			uids = append(uids, imap.UID(ref.UID))
		}

		err := a.withSession(folder, func(s *session) error {
			defer func() { s.selected = "" }()
			store := &imap.StoreFlags{
				Op:     op,
				Silent: true,
				Flags:  []imap.Flag{imap.FlagSeen},
			}
			if err := s.conn.Store(imap.UIDSetNum(uids...), store, nil).Close(); err != nil {
				return fmt.Errorf("storing flags in %s: %w", folder, err)
			}
			return nil
		})

		for _, ref := range group {
			id := fmt.Sprintf("%s/%d", folder, ref.UID)
			if err != nil {
				result.Failed = append(result.Failed, model.BatchItemError{
					ID: id, Error: err.Error(),
				})
			} else {
				result.Succeeded = append(result.Succeeded, id)
			}
		}
	}
	return result, nil
}

// SaveDraft appends the message to the drafts folder with the \Draft
// flag. A server that does not report the new UID yields UID 0,
// meaning accepted but untracked.
func (a *Adapter) SaveDraft(
	_ context.Context, msg model.OutgoingMessage,
) (*model.AppendResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	raw, err := rfc822.Build(a.email, msg)
	if err != nil {
		return nil, err
	}

	var result *model.AppendResult
	err = a.withSession("", func(s *session) error {
		folders, err := listFolders(s)
		if err != nil {
			return err
		}
		drafts := findDraftsFolder(folders)
		if drafts == "" {
			drafts = "Drafts"
		}

		appendOpts := &imap.AppendOptions{
			Flags: []imap.Flag{imap.FlagDraft},
			Time:  time.Now(),
		}
		cmd := s.conn.Append(drafts, int64(len(raw)), appendOpts)
		if _, err := cmd.Write(raw); err != nil {
			return fmt.Errorf("writing draft: %w", err)
		}
		if err := cmd.Close(); err != nil {
			return fmt.Errorf("closing draft append: %w", err)
		}
		data, err := cmd.Wait()
		if err != nil {
			return fmt.Errorf("appending draft to %s: %w", drafts, err)
		}

		result = &model.AppendResult{Folder: drafts}
		if data != nil {
			result.UID = uint32(data.UID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// findDraftsFolder locates the drafts folder by special-use attribute,
// then by well-known name.
func findDraftsFolder(folders []model.Folder) string {
	for _, f := range folders {
		for _, attr := range f.Attributes {
			if strings.EqualFold(attr, string(imap.MailboxAttrDrafts)) {
				return f.Name
			}
		}
	}
	for _, f := range folders {
		for _, known := range wellKnownDrafts {
			if f.Name == known {
				return f.Name
			}
		}
	}
	return ""
}
