package imapmail

import (
	"bytes"
	"errors"
	"io"
	"log"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/mailbridge/internal/account"
)

// fakeConn is an in-memory scripted client.
type fakeConn struct {
	noopErrs   []error
	loginErr   error
	loginCount int

	selectCount int
	selectNames []string

	searchErrs []error
	searchUIDs []imap.UID
	criteria   []*imap.SearchCriteria

	fetchBufs []*imapclient.FetchMessageBuffer

	listData []*imap.ListData

	moves    []string
	moveErrs []error

	stores   []imap.StoreFlags
	expunged []imap.UIDSet

	created []string

	appendFolder string
	appendBytes  bytes.Buffer
	appendFlags  []imap.Flag
	appendUID    imap.UID

	closed bool
}

type errCmd struct{ err error }

func (c errCmd) Wait() error { return c.err }

type fakeSelectCmd struct {
	data *imap.SelectData
	err  error
}

func (c fakeSelectCmd) Wait() (*imap.SelectData, error) { return c.data, c.err }

type fakeListCmd struct {
	data []*imap.ListData
	err  error
}

func (c fakeListCmd) Collect() ([]*imap.ListData, error) { return c.data, c.err }

type fakeSearchCmd struct {
	data *imap.SearchData
	err  error
}

func (c fakeSearchCmd) Wait() (*imap.SearchData, error) { return c.data, c.err }

type fakeFetchCmd struct {
	bufs []*imapclient.FetchMessageBuffer
	err  error
}

func (c fakeFetchCmd) Collect() ([]*imapclient.FetchMessageBuffer, error) {
	return c.bufs, c.err
}

func (c fakeFetchCmd) Close() error { return c.err }

type fakeMoveCmd struct{ err error }

func (c fakeMoveCmd) Wait() (*imapclient.MoveData, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &imapclient.MoveData{}, nil
}

type fakeExpungeCmd struct{ err error }

func (c fakeExpungeCmd) Close() error { return c.err }

type fakeAppendCmd struct {
	conn *fakeConn
}

func (c *fakeAppendCmd) Write(p []byte) (int, error) {
	return c.conn.appendBytes.Write(p)
}

func (c *fakeAppendCmd) Close() error { return nil }

func (c *fakeAppendCmd) Wait() (*imap.AppendData, error) {
	return &imap.AppendData{UID: c.conn.appendUID}, nil
}

func (f *fakeConn) Login(username, password string) cmdWaiter {
	f.loginCount++
	return errCmd{err: f.loginErr}
}

func (f *fakeConn) Logout() cmdWaiter { return errCmd{} }

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func (f *fakeConn) Noop() cmdWaiter {
	if len(f.noopErrs) > 0 {
		err := f.noopErrs[0]
		f.noopErrs = f.noopErrs[1:]
		return errCmd{err: err}
	}
	return errCmd{}
}

func (f *fakeConn) Select(mailbox string, _ *imap.SelectOptions) selectCmd {
	f.selectCount++
	f.selectNames = append(f.selectNames, mailbox)
	return fakeSelectCmd{data: &imap.SelectData{}}
}

func (f *fakeConn) List(_, _ string, _ *imap.ListOptions) listCmd {
	return fakeListCmd{data: f.listData}
}

func (f *fakeConn) Create(mailbox string, _ *imap.CreateOptions) cmdWaiter {
	f.created = append(f.created, mailbox)
	return errCmd{}
}

func (f *fakeConn) UIDSearch(criteria *imap.SearchCriteria, _ *imap.SearchOptions) searchCmd {
	f.criteria = append(f.criteria, criteria)
	if len(f.searchErrs) > 0 {
		err := f.searchErrs[0]
		f.searchErrs = f.searchErrs[1:]
		if err != nil {
			return fakeSearchCmd{err: err}
		}
	}
	return fakeSearchCmd{
		data: &imap.SearchData{All: imap.UIDSetNum(f.searchUIDs...)},
	}
}

func (f *fakeConn) Fetch(_ imap.NumSet, _ *imap.FetchOptions) fetchCmd {
	return fakeFetchCmd{bufs: f.fetchBufs}
}

func (f *fakeConn) Store(_ imap.NumSet, store *imap.StoreFlags, _ *imap.StoreOptions) fetchCmd {
	f.stores = append(f.stores, *store)
	return fakeFetchCmd{}
}

func (f *fakeConn) Move(_ imap.NumSet, mailbox string) moveCmd {
	if len(f.moveErrs) > 0 {
		err := f.moveErrs[0]
		f.moveErrs = f.moveErrs[1:]
		if err != nil {
			return fakeMoveCmd{err: err}
		}
	}
	f.moves = append(f.moves, mailbox)
	return fakeMoveCmd{}
}

func (f *fakeConn) UIDExpunge(uids imap.UIDSet) expungeCmd {
	f.expunged = append(f.expunged, uids)
	return fakeExpungeCmd{}
}

func (f *fakeConn) Append(mailbox string, _ int64, options *imap.AppendOptions) appendCmd {
	f.appendFolder = mailbox
	if options != nil {
		f.appendFlags = options.Flags
	}
	return &fakeAppendCmd{conn: f}
}

// testAdapter wires an Adapter to scripted connections. Each dial
// hands out the next connection in conns, repeating the last one.
func testAdapter(conns ...*fakeConn) (*Adapter, *int) {
	dials := 0
	a := &Adapter{
		email:    "a@example.com",
		password: "pw",
		endpoints: &account.Endpoints{
			IMAPHost: "imap.example.com", IMAPPort: "993",
			SMTPHost: "smtp.example.com", SMTPPort: "465",
		},
		logger: log.New(io.Discard, "", 0),
	}
	a.sendMail = func(_ *account.Endpoints, _, _ string, _ []string, _ []byte) error {
		return nil
	}
	a.dial = func() (client, error) {
		i := dials
		if i >= len(conns) {
			i = len(conns) - 1
		}
		dials++
		return conns[i], nil
	}
	return a, &dials
}

func envBuf(uid imap.UID, subject string) *imapclient.FetchMessageBuffer {
	return &imapclient.FetchMessageBuffer{
		UID: uid,
		Envelope: &imap.Envelope{
			Subject: subject,
			From: []imap.Address{
				{Name: "Sender", Mailbox: "sender", Host: "example.com"},
			},
		},
		Flags: []imap.Flag{imap.FlagSeen},
	}
}

var errConnReset = errors.New("connection reset by peer")
