package account

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nhle/mailbridge/internal/provider"
)

const (
	registryFile = "accounts.json"
	activeFile   = "active_account"
)

// Endpoints holds the server addresses for an IMAP/SMTP account.
type Endpoints struct {
	IMAPHost string `json:"imap_host"`
	IMAPPort string `json:"imap_port"`
	SMTPHost string `json:"smtp_host"`
	SMTPPort string `json:"smtp_port"`
	// StartTLS selects STARTTLS instead of implicit TLS.
	StartTLS bool `json:"starttls,omitempty"`
}

// Entry is one onboarded account in the registry. Email is the unique
// key, stored lowercase.
type Entry struct {
	Email            string        `json:"email"`
	Alias            string        `json:"alias,omitempty"`
	Provider         provider.Type `json:"provider"`
	CredentialHandle string        `json:"credential_handle"`
	LastUsed         time.Time     `json:"last_used"`
	Scopes           []string      `json:"scopes,omitempty"`
	Endpoints        *Endpoints    `json:"endpoints,omitempty"`
}

// Registry persists the account map and the active-account marker as
// plain files under dir. The registry file is rewritten in full on
// every mutation; concurrent writers from separate processes are
// last-writer-wins (accepted limitation, callers serialize in-process).
type Registry struct {
	dir string
}

// NewRegistry creates a registry rooted at dir, creating it if needed.
func NewRegistry(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
	}
	return &Registry{dir: dir}, nil
}

// Load reads all registry entries. A missing registry file is an empty
// registry, not an error.
func (r *Registry) Load() (map[string]*Entry, error) {
	path := filepath.Join(r.dir, registryFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*Entry{}, nil
		}
		return nil, fmt.Errorf("reading registry %s: %w", path, err)
	}

	entries := map[string]*Entry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing registry %s: %w", path, err)
	}

	return entries, nil
}

// Save rewrites the registry file with the given entries.
func (r *Registry) Save(entries map[string]*Entry) error {
	path := filepath.Join(r.dir, registryFile)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing registry %s: %w", path, err)
	}

	return nil
}

// Active returns the active account's email, or "" when none is set.
// A stale marker (pointing at a removed account) is returned as-is;
// resolution handles it.
func (r *Registry) Active() (string, error) {
	path := filepath.Join(r.dir, activeFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading active account %s: %w", path, err)
	}

	return strings.TrimSpace(string(data)), nil
}

// SetActive persists the active account marker.
func (r *Registry) SetActive(email string) error {
	path := filepath.Join(r.dir, activeFile)
	if err := os.WriteFile(path, []byte(email+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing active account %s: %w", path, err)
	}
	return nil
}

// ClearActive removes the active account marker.
func (r *Registry) ClearActive() error {
	path := filepath.Join(r.dir, activeFile)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing active account %s: %w", path, err)
	}
	return nil
}
