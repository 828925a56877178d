package account

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mailbridge/internal/credential"
	"github.com/nhle/mailbridge/internal/provider"
)

// CredentialStore is the slice of the credential layer the manager
// needs. Satisfied by *credential.Store.
type CredentialStore interface {
	Get(handle string) (*credential.Record, error)
	Set(handle string, rec *credential.Record) error
	Delete(handle string) error
}

// Manager owns the account registry, the active-account marker, alias
// resolution, and credential retrieval policy. All mutation goes
// through a single mutex; the files underneath are last-writer-wins
// across processes.
type Manager struct {
	mu    sync.Mutex
	reg   *Registry
	creds CredentialStore
	now   func() time.Time
}

// NewManager creates an account manager over the given registry and
// credential store.
func NewManager(reg *Registry, creds CredentialStore) *Manager {
	return &Manager{
		reg:   reg,
		creds: creds,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Resolve maps an alias-or-email identifier to a canonical account
// email. An unknown identifier is passed through unchanged so the
// credential lookup stage can report it against the known-account
// list. An empty identifier resolves to the active account; when none
// is active and exactly one account exists, that account is promoted
// to active.
func (m *Manager) Resolve(identifier string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolveLocked(identifier)
}

func (m *Manager) resolveLocked(identifier string) (string, error) {
	entries, err := m.reg.Load()
	if err != nil {
		return "", err
	}

	if identifier != "" {
		for _, e := range entries {
			if e.Alias != "" && e.Alias == identifier {
				return e.Email, nil
			}
		}
		lower := strings.ToLower(identifier)
		if _, ok := entries[lower]; ok {
			return lower, nil
		}
		// Unknown: defer failure to the lookup stage.
		return identifier, nil
	}

	active, err := m.reg.Active()
	if err != nil {
		return "", err
	}
	if active != "" {
		if _, ok := entries[active]; ok {
			return active, nil
		}
		// Stale marker; fall through as if unset.
	}

	if len(entries) == 1 {
		for email := range entries {
			if err := m.reg.SetActive(email); err != nil {
				return "", err
			}
			return email, nil
		}
	}

	return "", &provider.AmbiguousAccountError{
		Available: identifierList(entries),
	}
}

// Credentials resolves identifier and loads its credential record,
// refreshing the entry's last-used timestamp as a side effect.
func (m *Manager) Credentials(identifier string) (*credential.Record, *Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email, err := m.resolveLocked(identifier)
	if err != nil {
		return nil, nil, err
	}

	entries, err := m.reg.Load()
	if err != nil {
		return nil, nil, err
	}

	entry, ok := entries[email]
	if !ok {
		return nil, nil, &provider.NotFoundError{
			Kind:      "account",
			Name:      email,
			Available: identifierList(entries),
		}
	}

	rec, err := m.creds.Get(entry.CredentialHandle)
	if err != nil {
		return nil, nil, &provider.NotFoundError{
			Kind:      "account",
			Name:      email,
			Available: identifierList(entries),
		}
	}

	entry.LastUsed = m.now()
	if err := m.reg.Save(entries); err != nil {
		return nil, nil, err
	}

	return rec, entry, nil
}

// AddAccount persists a credential record and registers (or replaces)
// the entry for its email. The first account added becomes active.
// Alias collisions are rejected before anything is written.
func (m *Manager) AddAccount(entry *Entry, rec *credential.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.Email = strings.ToLower(entry.Email)
	if entry.Email == "" {
		return fmt.Errorf("account email must not be empty")
	}

	entries, err := m.reg.Load()
	if err != nil {
		return err
	}

	if entry.Alias != "" {
		if err := checkAliasCollision(entries, entry.Email, entry.Alias); err != nil {
			return err
		}
	}

	// Reuse the handle when re-adding an existing account so the old
	// credential file is overwritten, not orphaned.
	if prev, ok := entries[entry.Email]; ok && prev.CredentialHandle != "" {
		entry.CredentialHandle = prev.CredentialHandle
	}
	if entry.CredentialHandle == "" {
		entry.CredentialHandle = uuid.NewString()
	}

	if err := m.creds.Set(entry.CredentialHandle, rec); err != nil {
		return err
	}

	entry.LastUsed = m.now()
	entries[entry.Email] = entry
	if err := m.reg.Save(entries); err != nil {
		return err
	}

	if len(entries) == 1 {
		return m.reg.SetActive(entry.Email)
	}
	return nil
}

// RemoveAccount deletes the account's credential record and registry
// entry, clearing the active marker when it pointed at this account.
func (m *Manager) RemoveAccount(identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email, err := m.resolveLocked(identifier)
	if err != nil {
		return err
	}

	entries, err := m.reg.Load()
	if err != nil {
		return err
	}

	entry, ok := entries[email]
	if !ok {
		return &provider.NotFoundError{
			Kind:      "account",
			Name:      identifier,
			Available: identifierList(entries),
		}
	}

	if err := m.creds.Delete(entry.CredentialHandle); err != nil {
		return err
	}

	delete(entries, email)
	if err := m.reg.Save(entries); err != nil {
		return err
	}

	active, err := m.reg.Active()
	if err != nil {
		return err
	}
	if active == email {
		return m.reg.ClearActive()
	}
	return nil
}

// SetAlias assigns a new alias to an existing account, with the same
// collision rules as AddAccount.
func (m *Manager) SetAlias(identifier, newAlias string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email, err := m.resolveLocked(identifier)
	if err != nil {
		return err
	}

	entries, err := m.reg.Load()
	if err != nil {
		return err
	}

	entry, ok := entries[email]
	if !ok {
		return &provider.NotFoundError{
			Kind:      "account",
			Name:      identifier,
			Available: identifierList(entries),
		}
	}

	if newAlias != "" {
		if err := checkAliasCollision(entries, email, newAlias); err != nil {
			return err
		}
	}

	entry.Alias = newAlias
	return m.reg.Save(entries)
}

// SetActive switches the active account and refreshes its last-used
// timestamp.
func (m *Manager) SetActive(identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email, err := m.resolveLocked(identifier)
	if err != nil {
		return err
	}

	entries, err := m.reg.Load()
	if err != nil {
		return err
	}

	entry, ok := entries[email]
	if !ok {
		return &provider.NotFoundError{
			Kind:      "account",
			Name:      identifier,
			Available: identifierList(entries),
		}
	}

	if err := m.reg.SetActive(email); err != nil {
		return err
	}

	entry.LastUsed = m.now()
	return m.reg.Save(entries)
}

// Active returns the active account's email, or "" when none is set.
func (m *Manager) Active() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reg.Active()
}

// List returns all accounts ordered by last-used, most recent first.
func (m *Manager) List() ([]*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.reg.Load()
	if err != nil {
		return nil, err
	}

	list := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		list = append(list, e)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].LastUsed.After(list[j].LastUsed)
	})

	return list, nil
}

// checkAliasCollision rejects an alias that matches another account's
// email or alias. Matching the owning account's own email is allowed.
func checkAliasCollision(entries map[string]*Entry, owner, alias string) error {
	if other, ok := entries[strings.ToLower(alias)]; ok && other.Email != owner {
		return &provider.CollisionError{
			Alias:         alias,
			ConflictsWith: other.Email,
		}
	}
	for _, e := range entries {
		if e.Email == owner {
			continue
		}
		if e.Alias != "" && e.Alias == alias {
			return &provider.CollisionError{
				Alias:         alias,
				ConflictsWith: e.Email,
			}
		}
	}
	return nil
}

// identifierList flattens emails and aliases for error messages,
// emails first, sorted for stable output.
func identifierList(entries map[string]*Entry) []string {
	var ids []string
	for email := range entries {
		ids = append(ids, email)
	}
	sort.Strings(ids)
	for _, e := range entries {
		if e.Alias != "" {
			ids = append(ids, e.Alias)
		}
	}
	return ids
}
