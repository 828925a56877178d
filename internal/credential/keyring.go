package credential

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/99designs/keyring"
)

const serviceName = "mailbridge"

// Record is the opaque credential material for one account. Exactly one
// of AppPassword or OAuth is populated, matching the account's provider.
type Record struct {
	// AppPassword is the application-specific password for IMAP/SMTP
	// accounts.
	AppPassword string `json:"app_password,omitempty"`

	// OAuth is the token bundle for REST accounts.
	OAuth *OAuthBundle `json:"oauth,omitempty"`
}

// OAuthBundle holds an OAuth2 token set plus the client identity needed
// to refresh it. Refresh itself is performed by the HTTP client layer.
type OAuthBundle struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// Store persists credential records in the system keyring, falling back
// to encrypted files under dataDir when no native backend is available.
type Store struct {
	dataDir string
}

// NewStore creates a credential store rooted at dataDir.
func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// openKeyring returns a configured keyring instance.
func (s *Store) openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(s.dataDir, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("mailbridge-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves the credential record stored under handle.
func (s *Store) Get(handle string) (*Record, error) {
	ring, err := s.openKeyring()
	if err != nil {
		return nil, err
	}

	item, err := ring.Get(handle)
	if err != nil {
		return nil, fmt.Errorf("getting credential %q: %w", handle, err)
	}

	var rec Record
	if err := json.Unmarshal(item.Data, &rec); err != nil {
		return nil, fmt.Errorf("decoding credential %q: %w", handle, err)
	}

	return &rec, nil
}

// Set stores a credential record under handle.
func (s *Store) Set(handle string, rec *Record) error {
	ring, err := s.openKeyring()
	if err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding credential %q: %w", handle, err)
	}

	err = ring.Set(keyring.Item{
		Key:  handle,
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", handle, err)
	}

	return nil
}

// Delete removes the credential record stored under handle.
func (s *Store) Delete(handle string) error {
	ring, err := s.openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(handle)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", handle, err)
	}

	return nil
}
