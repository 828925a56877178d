// Package mailbox is the operations facade: it resolves an account
// identifier to the adapter bound to that account's provider type and
// invokes the requested operation, so the dispatcher above never
// branches on provider. IMAP adapters are cached per account for the
// process lifetime; Gmail adapters are rebuilt per call, which is what
// a stateless backend wants.
package mailbox

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/nhle/mailbridge/internal/account"
	"github.com/nhle/mailbridge/internal/cache"
	"github.com/nhle/mailbridge/internal/credential"
	"github.com/nhle/mailbridge/internal/model"
	"github.com/nhle/mailbridge/internal/provider"
	"github.com/nhle/mailbridge/internal/provider/gmail"
	"github.com/nhle/mailbridge/internal/provider/imapmail"
)

// Service owns the adapter table and fans operations out to the right
// backend.
type Service struct {
	mu       sync.Mutex
	accounts *account.Manager
	store    *cache.Store
	logger   *log.Logger

	chunkSize  int
	maxResults int
	sessions   map[string]provider.Mailbox

	// Adapter constructors, replaceable in tests.
	newIMAP  func(entry *account.Entry, password string) provider.Mailbox
	newGmail func(entry *account.Entry, bundle *credential.OAuthBundle) provider.Mailbox
}

// NewService builds the facade. store may be nil when the summary
// cache is disabled.
func NewService(
	accounts *account.Manager,
	store *cache.Store,
	cfg *model.AppConfig,
	logger *log.Logger,
) *Service {
	s := &Service{
		accounts:   accounts,
		store:      store,
		logger:     logger,
		chunkSize:  cfg.Batch.ChunkSize,
		maxResults: cfg.Search.MaxResults,
		sessions:   make(map[string]provider.Mailbox),
	}
	s.newIMAP = func(entry *account.Entry, password string) provider.Mailbox {
		return imapmail.New(entry, password, logger)
	}
	s.newGmail = func(entry *account.Entry, bundle *credential.OAuthBundle) provider.Mailbox {
		return gmail.New(entry, bundle, s.chunkSize, logger)
	}
	return s
}

// adapterFor resolves the identifier through the account manager and
// returns the adapter for its provider.
func (s *Service) adapterFor(identifier string) (provider.Mailbox, *account.Entry, error) {
	rec, entry, err := s.accounts.Credentials(identifier)
	if err != nil {
		return nil, nil, err
	}

	switch entry.Provider {
	case provider.TypeIMAP:
		if rec.AppPassword == "" {
			return nil, nil, fmt.Errorf(
				"account %s has no app password stored", entry.Email,
			)
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if adapter, ok := s.sessions[entry.Email]; ok {
			return adapter, entry, nil
		}
		adapter := s.newIMAP(entry, rec.AppPassword)
		s.sessions[entry.Email] = adapter
		return adapter, entry, nil

	case provider.TypeGmail:
		if rec.OAuth == nil {
			return nil, nil, fmt.Errorf(
				"account %s has no OAuth token bundle stored", entry.Email,
			)
		}
		return s.newGmail(entry, rec.OAuth), entry, nil

	default:
		return nil, nil, fmt.Errorf(
			"account %s has unknown provider %q", entry.Email, entry.Provider,
		)
	}
}

// labelsFor returns the label surface of an account's adapter, or
// UnsupportedError when its backend has none.
func (s *Service) labelsFor(identifier, op string) (provider.LabelManager, error) {
	adapter, entry, err := s.adapterFor(identifier)
	if err != nil {
		return nil, err
	}

	manager, ok := adapter.(provider.LabelManager)
	if !ok {
		return nil, &provider.UnsupportedError{
			Operation: op,
			Provider:  entry.Provider,
		}
	}
	return manager, nil
}

// cachePut records fresh summaries, best effort.
func (s *Service) cachePut(ctx context.Context, email string, summaries []model.EmailSummary) {
	if s.store == nil || len(summaries) == 0 {
		return
	}
	if err := s.store.PutSummaries(ctx, email, summaries); err != nil {
		s.logger.Printf("cache: storing summaries for %s: %v", email, err)
	}
}

// cacheInvalidate drops cached rows after a mutating operation,
// best effort.
func (s *Service) cacheInvalidate(ctx context.Context, email string, folders ...string) {
	if s.store == nil {
		return
	}
	for _, folder := range folders {
		if err := s.store.Invalidate(ctx, email, folder); err != nil {
			s.logger.Printf("cache: invalidating %s/%s: %v", email, folder, err)
		}
	}
}

// refFolders collects the distinct folders named by a set of refs.
func refFolders(refs []model.MessageRef) []string {
	seen := make(map[string]bool)
	var folders []string
	for _, ref := range refs {
		if !seen[ref.Folder] {
			seen[ref.Folder] = true
			folders = append(folders, ref.Folder)
		}
	}
	return folders
}

// SearchEmails runs a search on the resolved account and refreshes
// the summary cache with the results. The configured search.max_results
// applies when the caller does not cap the search itself.
func (s *Service) SearchEmails(
	ctx context.Context, accountID string, criteria model.SearchCriteria,
) ([]model.EmailSummary, error) {
	adapter, entry, err := s.adapterFor(accountID)
	if err != nil {
		return nil, err
	}

	if criteria.MaxResults <= 0 {
		criteria.MaxResults = s.maxResults
	}

	summaries, err := adapter.SearchEmails(ctx, criteria)
	if err != nil {
		return nil, err
	}

	s.cachePut(ctx, entry.Email, summaries)
	return summaries, nil
}

func (s *Service) ReadEmail(
	ctx context.Context, accountID string, ref model.MessageRef,
) (*model.EmailDetail, error) {
	adapter, _, err := s.adapterFor(accountID)
	if err != nil {
		return nil, err
	}
	return adapter.ReadEmail(ctx, ref)
}

func (s *Service) SendEmail(
	ctx context.Context, accountID string, msg model.OutgoingMessage,
) (*model.Ack, error) {
	adapter, _, err := s.adapterFor(accountID)
	if err != nil {
		return nil, err
	}
	return adapter.SendEmail(ctx, msg)
}

func (s *Service) SaveDraft(
	ctx context.Context, accountID string, msg model.OutgoingMessage,
) (*model.AppendResult, error) {
	adapter, _, err := s.adapterFor(accountID)
	if err != nil {
		return nil, err
	}
	return adapter.SaveDraft(ctx, msg)
}

func (s *Service) MoveEmail(
	ctx context.Context, accountID string, ref model.MessageRef, destFolder string,
) (*model.Ack, error) {
	adapter, entry, err := s.adapterFor(accountID)
	if err != nil {
		return nil, err
	}

	ack, err := adapter.MoveEmail(ctx, ref, destFolder)
	if err != nil {
		return nil, err
	}

	s.cacheInvalidate(ctx, entry.Email, ref.Folder, destFolder)
	return ack, nil
}

func (s *Service) MoveEmails(
	ctx context.Context, accountID string, refs []model.MessageRef, destFolder string,
) (*model.BatchResult, error) {
	adapter, entry, err := s.adapterFor(accountID)
	if err != nil {
		return nil, err
	}

	result, err := adapter.MoveEmails(ctx, refs, destFolder)
	if err != nil {
		return nil, err
	}

	s.cacheInvalidate(ctx, entry.Email, append(refFolders(refs), destFolder)...)
	return result, nil
}

func (s *Service) DeleteEmail(
	ctx context.Context, accountID string, ref model.MessageRef, permanent bool,
) (*model.Ack, error) {
	adapter, entry, err := s.adapterFor(accountID)
	if err != nil {
		return nil, err
	}

	ack, err := adapter.DeleteEmail(ctx, ref, permanent)
	if err != nil {
		return nil, err
	}

	s.cacheInvalidate(ctx, entry.Email, ref.Folder)
	return ack, nil
}

func (s *Service) MarkRead(
	ctx context.Context, accountID string, refs []model.MessageRef, read bool,
) (*model.BatchResult, error) {
	adapter, entry, err := s.adapterFor(accountID)
	if err != nil {
		return nil, err
	}

	result, err := adapter.MarkRead(ctx, refs, read)
	if err != nil {
		return nil, err
	}

	s.cacheInvalidate(ctx, entry.Email, refFolders(refs)...)
	return result, nil
}

func (s *Service) DownloadAttachment(
	ctx context.Context, accountID string, ref model.MessageRef, partID string,
) (*model.AttachmentData, error) {
	adapter, _, err := s.adapterFor(accountID)
	if err != nil {
		return nil, err
	}
	return adapter.DownloadAttachment(ctx, ref, partID)
}

func (s *Service) ListFolders(
	ctx context.Context, accountID string,
) ([]model.Folder, error) {
	adapter, _, err := s.adapterFor(accountID)
	if err != nil {
		return nil, err
	}
	return adapter.ListFolders(ctx)
}

func (s *Service) CreateFolder(
	ctx context.Context, accountID, name string,
) (*model.Ack, error) {
	adapter, _, err := s.adapterFor(accountID)
	if err != nil {
		return nil, err
	}
	return adapter.CreateFolder(ctx, name)
}

// Label, filter, and thread operations, available only on backends
// exposing a label surface.

func (s *Service) ListLabels(ctx context.Context, accountID string) ([]model.Label, error) {
	manager, err := s.labelsFor(accountID, "list_labels")
	if err != nil {
		return nil, err
	}
	return manager.ListLabels(ctx)
}

func (s *Service) CreateLabel(ctx context.Context, accountID, name string) (*model.Label, error) {
	manager, err := s.labelsFor(accountID, "create_label")
	if err != nil {
		return nil, err
	}
	return manager.CreateLabel(ctx, name)
}

func (s *Service) UpdateLabel(ctx context.Context, accountID, id, newName string) (*model.Label, error) {
	manager, err := s.labelsFor(accountID, "update_label")
	if err != nil {
		return nil, err
	}
	return manager.UpdateLabel(ctx, id, newName)
}

func (s *Service) DeleteLabel(ctx context.Context, accountID, id string) error {
	manager, err := s.labelsFor(accountID, "delete_label")
	if err != nil {
		return err
	}
	return manager.DeleteLabel(ctx, id)
}

func (s *Service) GetOrCreateLabel(ctx context.Context, accountID, name string) (*model.LabelResult, error) {
	manager, err := s.labelsFor(accountID, "get_or_create_label")
	if err != nil {
		return nil, err
	}
	return manager.GetOrCreateLabel(ctx, name)
}

func (s *Service) ModifyMessageLabels(
	ctx context.Context, accountID, id string, add, remove []string,
) error {
	manager, err := s.labelsFor(accountID, "modify_message_labels")
	if err != nil {
		return err
	}
	return manager.ModifyMessageLabels(ctx, id, add, remove)
}

func (s *Service) ModifyThreadLabels(
	ctx context.Context, accountID, threadID string, add, remove []string,
) error {
	manager, err := s.labelsFor(accountID, "modify_thread_labels")
	if err != nil {
		return err
	}
	return manager.ModifyThreadLabels(ctx, threadID, add, remove)
}

func (s *Service) BatchModifyLabels(
	ctx context.Context, accountID string, ids []string, add, remove []string, threads bool,
) (*model.BatchResult, error) {
	manager, err := s.labelsFor(accountID, "batch_modify_labels")
	if err != nil {
		return nil, err
	}
	return manager.BatchModifyLabels(ctx, ids, add, remove, threads)
}

func (s *Service) BatchDelete(
	ctx context.Context, accountID string, ids []string, permanent bool,
) (*model.BatchResult, error) {
	manager, err := s.labelsFor(accountID, "batch_delete")
	if err != nil {
		return nil, err
	}
	return manager.BatchDelete(ctx, ids, permanent)
}

func (s *Service) ListFilters(ctx context.Context, accountID string) ([]model.Filter, error) {
	manager, err := s.labelsFor(accountID, "list_filters")
	if err != nil {
		return nil, err
	}
	return manager.ListFilters(ctx)
}

func (s *Service) GetFilter(ctx context.Context, accountID, id string) (*model.Filter, error) {
	manager, err := s.labelsFor(accountID, "get_filter")
	if err != nil {
		return nil, err
	}
	return manager.GetFilter(ctx, id)
}

func (s *Service) CreateFilter(
	ctx context.Context, accountID string,
	criteria model.FilterCriteria, action model.FilterAction,
) (*model.Filter, error) {
	manager, err := s.labelsFor(accountID, "create_filter")
	if err != nil {
		return nil, err
	}
	return manager.CreateFilter(ctx, criteria, action)
}

func (s *Service) CreateFilterFromTemplate(
	ctx context.Context, accountID, template, value, labelName string,
) (*model.Filter, error) {
	manager, err := s.labelsFor(accountID, "create_filter")
	if err != nil {
		return nil, err
	}
	return manager.CreateFilterFromTemplate(ctx, template, value, labelName)
}

func (s *Service) DeleteFilter(ctx context.Context, accountID, id string) error {
	manager, err := s.labelsFor(accountID, "delete_filter")
	if err != nil {
		return err
	}
	return manager.DeleteFilter(ctx, id)
}

// Account management passthrough.

func (s *Service) ListAccounts() ([]*account.Entry, error) {
	return s.accounts.List()
}

func (s *Service) SwitchAccount(identifier string) (*model.Ack, error) {
	if err := s.accounts.SetActive(identifier); err != nil {
		return nil, err
	}
	email, err := s.accounts.Resolve(identifier)
	if err != nil {
		return nil, err
	}
	return &model.Ack{Status: "active", Detail: email}, nil
}

func (s *Service) ActiveAccount() (string, error) {
	return s.accounts.Active()
}

func (s *Service) SetAlias(identifier, alias string) (*model.Ack, error) {
	if err := s.accounts.SetAlias(identifier, alias); err != nil {
		return nil, err
	}
	return &model.Ack{Status: "aliased", Detail: alias}, nil
}

// RemoveAccount drops the registry entry and credentials, closes any
// cached session, and clears the account's cache rows.
func (s *Service) RemoveAccount(ctx context.Context, identifier string) (*model.Ack, error) {
	email, err := s.accounts.Resolve(identifier)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.RemoveAccount(identifier); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if adapter, ok := s.sessions[email]; ok {
		delete(s.sessions, email)
		if closer, ok := adapter.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				s.logger.Printf("closing session for %s: %v", email, err)
			}
		}
	}
	s.mu.Unlock()

	s.cacheInvalidate(ctx, email, "")
	return &model.Ack{Status: "removed", Detail: email}, nil
}

// CacheStats reports summary-cache contents.
func (s *Service) CacheStats(ctx context.Context) (*cache.Stats, error) {
	if s.store == nil {
		return &cache.Stats{}, nil
	}
	return s.store.Stats(ctx)
}

// Close logs out every cached session.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for email, adapter := range s.sessions {
		if closer, ok := adapter.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				s.logger.Printf("closing session for %s: %v", email, err)
			}
		}
		delete(s.sessions, email)
	}
}
