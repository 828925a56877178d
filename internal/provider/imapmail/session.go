package imapmail

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/mailbridge/internal/account"
	"github.com/nhle/mailbridge/internal/provider"
)

// session is a live authenticated connection plus the mailbox currently
// selected on it. selected is "" when no mailbox is selected or the
// selection was invalidated by a mutating operation.
type session struct {
	conn     client
	selected string
}

// Adapter is the stateful IMAP/SMTP backend for one account. It caches
// at most one session for the process lifetime, reconnecting on demand:
// a failed usability probe or a connection-level error mid-operation
// triggers one transparent reconnect; a second failure surfaces to the
// caller. The adapter is not safe for concurrent use; the facade
// serializes operations per account.
type Adapter struct {
	mu sync.Mutex

	email     string
	password  string
	endpoints *account.Endpoints

	dial    func() (client, error)
	logger  *log.Logger
	session *session

	// sendMail is swappable for tests; defaults to SMTP submission.
	sendMail func(ep *account.Endpoints, from, password string, to []string, raw []byte) error
}

// New creates an IMAP adapter for the given account entry and app
// password.
func New(entry *account.Entry, appPassword string, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = log.Default()
	}
	ep := entry.Endpoints
	a := &Adapter{
		email:     entry.Email,
		password:  appPassword,
		endpoints: ep,
		logger:    logger,
		sendMail:  submitSMTP,
	}
	a.dial = func() (client, error) {
		return dialClient(ep, 10*time.Second)
	}
	return a
}

// connect dials and authenticates a fresh session.
func (a *Adapter) connect() (*session, error) {
	conn, err := a.dial()
	if err != nil {
		return nil, err
	}

	if err := conn.Login(a.email, a.password).Wait(); err != nil {
		_ = conn.Close()
		return nil, &provider.AuthError{
			Account: a.email,
			Message: err.Error(),
		}
	}

	return &session{conn: conn}, nil
}

// ensureSession returns a usable cached session, probing it with NOOP
// and silently replacing it when the probe fails.
func (a *Adapter) ensureSession() (*session, error) {
	if a.session != nil {
		if err := a.session.conn.Noop().Wait(); err == nil {
			return a.session, nil
		}
		a.logger.Printf("imap %s: stale connection, reconnecting", a.email)
		a.invalidate()
	}

	s, err := a.connect()
	if err != nil {
		return nil, err
	}
	a.session = s
	return s, nil
}

// invalidate discards the cached session. The connection is closed
// best-effort; a poisoned handle must never be reused.
func (a *Adapter) invalidate() {
	if a.session == nil {
		return
	}
	if err := a.session.conn.Close(); err != nil {
		a.logger.Printf("imap %s: close error: %v", a.email, err)
	}
	a.session = nil
}

// selectMailbox opens the named mailbox unless it is already selected
// on this session.
func (a *Adapter) selectMailbox(s *session, name string) error {
	if s.selected == name {
		return nil
	}
	if _, err := s.conn.Select(name, nil).Wait(); err != nil {
		return err
	}
	s.selected = name
	return nil
}

// withSession runs fn against a connected session with mailbox
// selected (when non-empty). A connection-level failure invalidates
// the session and retries the whole operation once on a fresh
// connection; the second failure propagates as a ConnectionError.
// Auth failures are never retried.
func (a *Adapter) withSession(mailbox string, fn func(s *session) error) error {
	run := func() error {
		s, err := a.ensureSession()
		if err != nil {
			return err
		}
		if mailbox != "" {
			if err := a.selectMailbox(s, mailbox); err != nil {
				return err
			}
		}
		return fn(s)
	}

	err := run()
	if err == nil || !isConnErr(err) {
		return err
	}

	a.logger.Printf("imap %s: retrying after connection error: %v", a.email, err)
	a.invalidate()

	if err := run(); err != nil {
		if isConnErr(err) {
			return &provider.ConnectionError{Account: a.email, Err: err}
		}
		return err
	}
	return nil
}

// isConnErr reports whether err is a connection-level failure rather
// than a server NO/BAD response or a local typed error.
func isConnErr(err error) bool {
	if err == nil {
		return false
	}
	var imapErr *imap.Error
	if errors.As(err, &imapErr) {
		return false
	}
	var authErr *provider.AuthError
	if errors.As(err, &authErr) {
		return false
	}
	var nf *provider.NotFoundError
	return !errors.As(err, &nf)
}

// Close logs out and discards the cached session, if any.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		return nil
	}
	err := a.session.conn.Logout().Wait()
	a.session = nil
	return err
}
