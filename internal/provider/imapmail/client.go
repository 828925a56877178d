package imapmail

import (
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/mailbridge/internal/account"
)

// client is the narrow slice of imapclient.Client the adapter uses.
// Keeping it an interface lets tests substitute an in-memory fake.
type client interface {
	Login(username, password string) cmdWaiter
	Logout() cmdWaiter
	Close() error
	Noop() cmdWaiter
	Select(mailbox string, options *imap.SelectOptions) selectCmd
	List(ref, pattern string, options *imap.ListOptions) listCmd
	Create(mailbox string, options *imap.CreateOptions) cmdWaiter
	UIDSearch(criteria *imap.SearchCriteria, options *imap.SearchOptions) searchCmd
	Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchCmd
	Store(numSet imap.NumSet, store *imap.StoreFlags, options *imap.StoreOptions) fetchCmd
	Move(numSet imap.NumSet, mailbox string) moveCmd
	UIDExpunge(uids imap.UIDSet) expungeCmd
	Append(mailbox string, size int64, options *imap.AppendOptions) appendCmd
}

type cmdWaiter interface{ Wait() error }

type selectCmd interface {
	Wait() (*imap.SelectData, error)
}

type listCmd interface {
	Collect() ([]*imap.ListData, error)
}

type searchCmd interface {
	Wait() (*imap.SearchData, error)
}

type fetchCmd interface {
	Collect() ([]*imapclient.FetchMessageBuffer, error)
	Close() error
}

type moveCmd interface {
	Wait() (*imapclient.MoveData, error)
}

type expungeCmd interface{ Close() error }

type appendCmd interface {
	Write(p []byte) (int, error)
	Close() error
	Wait() (*imap.AppendData, error)
}

// clientWrapper adapts *imapclient.Client to the client interface.
type clientWrapper struct{ *imapclient.Client }

func (w *clientWrapper) Login(username, password string) cmdWaiter {
	return w.Client.Login(username, password)
}

func (w *clientWrapper) Logout() cmdWaiter { return w.Client.Logout() }

func (w *clientWrapper) Noop() cmdWaiter { return w.Client.Noop() }

func (w *clientWrapper) Select(mailbox string, options *imap.SelectOptions) selectCmd {
	return w.Client.Select(mailbox, options)
}

func (w *clientWrapper) List(ref, pattern string, options *imap.ListOptions) listCmd {
	return w.Client.List(ref, pattern, options)
}

func (w *clientWrapper) Create(mailbox string, options *imap.CreateOptions) cmdWaiter {
	return w.Client.Create(mailbox, options)
}

func (w *clientWrapper) UIDSearch(criteria *imap.SearchCriteria, options *imap.SearchOptions) searchCmd {
	return w.Client.UIDSearch(criteria, options)
}

func (w *clientWrapper) Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchCmd {
	return w.Client.Fetch(numSet, options)
}

func (w *clientWrapper) Store(numSet imap.NumSet, store *imap.StoreFlags, options *imap.StoreOptions) fetchCmd {
	return w.Client.Store(numSet, store, options)
}

func (w *clientWrapper) Move(numSet imap.NumSet, mailbox string) moveCmd {
	return w.Client.Move(numSet, mailbox)
}

func (w *clientWrapper) UIDExpunge(uids imap.UIDSet) expungeCmd {
	return w.Client.UIDExpunge(uids)
}

func (w *clientWrapper) Append(mailbox string, size int64, options *imap.AppendOptions) appendCmd {
	return w.Client.Append(mailbox, size, options)
}

// dialClient establishes a TLS (or STARTTLS) connection to the
// account's IMAP endpoint.
func dialClient(ep *account.Endpoints, dialTimeout time.Duration) (client, error) {
	addr := ep.IMAPHost + ":" + ep.IMAPPort
	opts := &imapclient.Options{
		Dialer: &net.Dialer{Timeout: dialTimeout},
	}

	var c *imapclient.Client
	var err error
	if ep.StartTLS {
		c, err = imapclient.DialStartTLS(addr, opts)
	} else {
		c, err = imapclient.DialTLS(addr, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	return &clientWrapper{Client: c}, nil
}
