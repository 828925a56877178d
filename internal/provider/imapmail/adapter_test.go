package imapmail

import (
	"context"
	"strings"
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailbridge/internal/account"
	"github.com/nhle/mailbridge/internal/model"
	"github.com/nhle/mailbridge/internal/provider"
)

func TestSearchSortsDescendingAndTruncates(t *testing.T) {
	conn := &fakeConn{
		searchUIDs: []imap.UID{3, 9, 1, 7, 5},
		fetchBufs: []*imapclient.FetchMessageBuffer{
			envBuf(9, "nine"), envBuf(7, "seven"), envBuf(5, "five"),
		},
	}
	a, _ := testAdapter(conn)

	got, err := a.SearchEmails(context.Background(), model.SearchCriteria{
		MaxResults: 3,
	})
	require.NoError(t, err)
	require.Len(t, got, 3)

	for i, want := range []uint32{9, 7, 5} {
		assert.Equal(t, want, got[i].Ref.UID)
	}
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i-1].Ref.UID, got[i].Ref.UID)
	}
}

func TestSearchEmptyCriteriaMatchesAll(t *testing.T) {
	conn := &fakeConn{}
	a, _ := testAdapter(conn)

	got, err := a.SearchEmails(context.Background(), model.SearchCriteria{})
	require.NoError(t, err)
	assert.Empty(t, got)

	require.Len(t, conn.criteria, 1)
	sent := conn.criteria[0]
	assert.Empty(t, sent.Header)
	assert.Empty(t, sent.Flag)
	assert.Empty(t, sent.NotFlag)
	assert.Empty(t, sent.Body)
	assert.True(t, sent.Since.IsZero())
}

func TestSearchCriteriaTranslation(t *testing.T) {
	conn := &fakeConn{}
	a, _ := testAdapter(conn)

	_, err := a.SearchEmails(context.Background(), model.SearchCriteria{
		From:       "boss@example.com",
		Subject:    "quarterly",
		UnreadOnly: true,
		Flagged:    true,
		BodyText:   "numbers",
	})
	require.NoError(t, err)

	require.Len(t, conn.criteria, 1)
	sent := conn.criteria[0]
	assert.Contains(t, sent.Header, imap.SearchCriteriaHeaderField{
		Key: "From", Value: "boss@example.com",
	})
	assert.Contains(t, sent.Header, imap.SearchCriteriaHeaderField{
		Key: "Subject", Value: "quarterly",
	})
	assert.Contains(t, sent.NotFlag, imap.FlagSeen)
	assert.Contains(t, sent.Flag, imap.FlagFlagged)
	assert.Contains(t, sent.Body, "numbers")
}

func TestConsecutiveSameFolderOpsSelectOnce(t *testing.T) {
	conn := &fakeConn{}
	a, _ := testAdapter(conn)

	ctx := context.Background()
	_, err := a.SearchEmails(ctx, model.SearchCriteria{Folder: "INBOX"})
	require.NoError(t, err)
	_, err = a.SearchEmails(ctx, model.SearchCriteria{Folder: "INBOX"})
	require.NoError(t, err)

	assert.Equal(t, 1, conn.selectCount)

	_, err = a.SearchEmails(ctx, model.SearchCriteria{Folder: "Archive"})
	require.NoError(t, err)
	assert.Equal(t, 2, conn.selectCount)
}

func TestMutatingOpInvalidatesSelection(t *testing.T) {
	conn := &fakeConn{}
	a, _ := testAdapter(conn)

	ctx := context.Background()
	_, err := a.SearchEmails(ctx, model.SearchCriteria{Folder: "INBOX"})
	require.NoError(t, err)
	require.Equal(t, 1, conn.selectCount)

	refs := []model.MessageRef{{Folder: "INBOX", UID: 4}}
	_, err = a.MarkRead(ctx, refs, true)
	require.NoError(t, err)
	// Cached selection was reused for the STORE itself.
	require.Equal(t, 1, conn.selectCount)

	// But the next operation on the same folder must re-select.
	_, err = a.SearchEmails(ctx, model.SearchCriteria{Folder: "INBOX"})
	require.NoError(t, err)
	assert.Equal(t, 2, conn.selectCount)
}

func TestFailedProbeReconnectsSilently(t *testing.T) {
	conn1 := &fakeConn{}
	conn2 := &fakeConn{}
	a, dials := testAdapter(conn1, conn2)

	ctx := context.Background()
	_, err := a.SearchEmails(ctx, model.SearchCriteria{})
	require.NoError(t, err)
	require.Equal(t, 1, *dials)

	// The cached handle fails its usability probe; the adapter must
	// reconnect without surfacing the probe error.
	conn1.noopErrs = []error{errConnReset}
	_, err = a.SearchEmails(ctx, model.SearchCriteria{})
	require.NoError(t, err)
	assert.Equal(t, 2, *dials)
	assert.True(t, conn1.closed)
}

func TestConnectionErrorRetriedOnce(t *testing.T) {
	conn1 := &fakeConn{searchErrs: []error{errConnReset}}
	conn2 := &fakeConn{searchUIDs: []imap.UID{2}, fetchBufs: []*imapclient.FetchMessageBuffer{envBuf(2, "ok")}}
	a, dials := testAdapter(conn1, conn2)

	got, err := a.SearchEmails(context.Background(), model.SearchCriteria{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, *dials)
}

func TestSecondConnectionFailurePropagates(t *testing.T) {
	conn1 := &fakeConn{searchErrs: []error{errConnReset}}
	conn2 := &fakeConn{searchErrs: []error{errConnReset}}
	a, _ := testAdapter(conn1, conn2)

	_, err := a.SearchEmails(context.Background(), model.SearchCriteria{})
	var connErr *provider.ConnectionError
	require.ErrorAs(t, err, &connErr)
}

func TestServerNoIsNotRetried(t *testing.T) {
	noErr := &imap.Error{Type: imap.StatusResponseTypeNo, Text: "search rejected"}
	conn := &fakeConn{searchErrs: []error{noErr}}
	a, dials := testAdapter(conn)

	_, err := a.SearchEmails(context.Background(), model.SearchCriteria{})
	require.Error(t, err)
	assert.ErrorAs(t, err, &noErr)
	assert.Equal(t, 1, *dials)
}

func TestDeleteMovesToSpecialUseTrash(t *testing.T) {
	conn := &fakeConn{
		listData: []*imap.ListData{
			{Mailbox: "INBOX", Delim: '/'},
			{Mailbox: "Papierkorb", Delim: '/', Attrs: []imap.MailboxAttr{imap.MailboxAttrTrash}},
		},
	}
	a, _ := testAdapter(conn)

	ack, err := a.DeleteEmail(context.Background(), model.MessageRef{Folder: "INBOX", UID: 12}, false)
	require.NoError(t, err)
	assert.Equal(t, "trashed", ack.Status)
	assert.Equal(t, []string{"Papierkorb"}, conn.moves)
	assert.Empty(t, conn.expunged)
}

func TestDeleteFindsTrashBySubstring(t *testing.T) {
	conn := &fakeConn{
		listData: []*imap.ListData{
			{Mailbox: "INBOX", Delim: '/'},
			{Mailbox: "INBOX/Trash", Delim: '/'},
		},
	}
	a, _ := testAdapter(conn)

	ack, err := a.DeleteEmail(context.Background(), model.MessageRef{Folder: "INBOX", UID: 12}, false)
	require.NoError(t, err)
	assert.Equal(t, "trashed", ack.Status)
	assert.Equal(t, []string{"INBOX/Trash"}, conn.moves)
}

func TestDeleteFallsBackToPermanentWithoutTrash(t *testing.T) {
	conn := &fakeConn{
		listData: []*imap.ListData{
			{Mailbox: "INBOX", Delim: '/'},
			{Mailbox: "Archive", Delim: '/'},
		},
	}
	a, _ := testAdapter(conn)

	ack, err := a.DeleteEmail(context.Background(), model.MessageRef{Folder: "INBOX", UID: 12}, false)
	require.NoError(t, err)
	assert.Equal(t, "deleted", ack.Status)
	assert.Empty(t, conn.moves)

	require.Len(t, conn.stores, 1)
	assert.Equal(t, imap.StoreFlagsAdd, conn.stores[0].Op)
	assert.Contains(t, conn.stores[0].Flags, imap.FlagDeleted)
	assert.Len(t, conn.expunged, 1)
}

func TestDeletePermanent(t *testing.T) {
	conn := &fakeConn{}
	a, _ := testAdapter(conn)

	ack, err := a.DeleteEmail(context.Background(), model.MessageRef{Folder: "INBOX", UID: 3}, true)
	require.NoError(t, err)
	assert.Equal(t, "deleted", ack.Status)
	require.Len(t, conn.stores, 1)
	assert.Contains(t, conn.stores[0].Flags, imap.FlagDeleted)
	assert.Len(t, conn.expunged, 1)
}

func TestMoveEmailsReportsPerItemOutcomes(t *testing.T) {
	noErr := &imap.Error{Type: imap.StatusResponseTypeNo, Text: "no such message"}
	conn := &fakeConn{moveErrs: []error{noErr, nil, nil}}
	a, _ := testAdapter(conn)

	refs := []model.MessageRef{
		{Folder: "INBOX", UID: 1},
		{Folder: "INBOX", UID: 2},
		{Folder: "INBOX", UID: 3},
	}
	result, err := a.MoveEmails(context.Background(), refs, "Archive")
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount())
	require.Equal(t, 1, result.FailureCount())
	assert.Equal(t, "INBOX/1", result.Failed[0].ID)
	assert.Contains(t, result.Failed[0].Error, "no such message")
}

const mixedRaw = "From: sender@example.com\r\n" +
	"To: a@example.com\r\n" +
	"Subject: report\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"BOUND\"\r\n" +
	"\r\n" +
	"--BOUND\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"hello body\r\n" +
	"--BOUND\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>hello body</p>\r\n" +
	"--BOUND\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"report.pdf\"\r\n" +
	"Content-Id: <cid-123@example.com>\r\n" +
	"\r\n" +
	"PDFDATA\r\n" +
	"--BOUND--\r\n"

const anonAttachmentRaw = "From: sender@example.com\r\n" +
	"To: a@example.com\r\n" +
	"Subject: blob\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"BOUND\"\r\n" +
	"\r\n" +
	"--BOUND\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"see attached\r\n" +
	"--BOUND\r\n" +
	"Content-Type: application/octet-stream\r\n" +
	"Content-Disposition: attachment\r\n" +
	"\r\n" +
	"RAWBYTES\r\n" +
	"--BOUND--\r\n"

func rawBuf(uid imap.UID, raw string) *imapclient.FetchMessageBuffer {
	buf := envBuf(uid, "report")
	buf.BodySection = []imapclient.FetchBodySectionBuffer{
		{
			Section: &imap.FetchItemBodySection{Peek: true},
			Bytes:   []byte(raw),
		},
	}
	return buf
}

func TestReadEmailParsesBodiesAndAttachments(t *testing.T) {
	conn := &fakeConn{
		fetchBufs: []*imapclient.FetchMessageBuffer{rawBuf(8, mixedRaw)},
	}
	a, _ := testAdapter(conn)

	detail, err := a.ReadEmail(context.Background(), model.MessageRef{Folder: "INBOX", UID: 8})
	require.NoError(t, err)

	assert.Equal(t, "hello body", strings.TrimSpace(detail.TextBody))
	assert.Contains(t, detail.HTMLBody, "<p>hello body</p>")
	require.Len(t, detail.Attachments, 1)
	assert.Equal(t, "cid-123@example.com", detail.Attachments[0].PartID)
	assert.Equal(t, "report.pdf", detail.Attachments[0].Filename)
}

func TestReadEmailNotFound(t *testing.T) {
	conn := &fakeConn{}
	a, _ := testAdapter(conn)

	_, err := a.ReadEmail(context.Background(), model.MessageRef{Folder: "INBOX", UID: 404})
	var nf *provider.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "message", nf.Kind)
}

func TestDownloadAttachmentByContentID(t *testing.T) {
	conn := &fakeConn{
		fetchBufs: []*imapclient.FetchMessageBuffer{rawBuf(8, mixedRaw)},
	}
	a, _ := testAdapter(conn)

	att, err := a.DownloadAttachment(
		context.Background(),
		model.MessageRef{Folder: "INBOX", UID: 8},
		"cid-123@example.com",
	)
	require.NoError(t, err)
	assert.Equal(t, "PDFDATA", string(att.Data))
	assert.Equal(t, "report.pdf", att.Filename)
}

func TestDownloadAttachmentPositionalFallback(t *testing.T) {
	conn := &fakeConn{
		fetchBufs: []*imapclient.FetchMessageBuffer{rawBuf(9, anonAttachmentRaw)},
	}
	a, _ := testAdapter(conn)

	att, err := a.DownloadAttachment(
		context.Background(),
		model.MessageRef{Folder: "INBOX", UID: 9},
		"0",
	)
	require.NoError(t, err)
	assert.Equal(t, "RAWBYTES", string(att.Data))
	assert.Equal(t, "0", att.PartID)
}

func TestDownloadAttachmentNotFound(t *testing.T) {
	conn := &fakeConn{
		fetchBufs: []*imapclient.FetchMessageBuffer{rawBuf(8, mixedRaw)},
	}
	a, _ := testAdapter(conn)

	_, err := a.DownloadAttachment(
		context.Background(),
		model.MessageRef{Folder: "INBOX", UID: 8},
		"nope.bin",
	)
	var nf *provider.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "attachment", nf.Kind)
}

func TestSaveDraftUsesSpecialUseFolderAndFlag(t *testing.T) {
	conn := &fakeConn{
		listData: []*imap.ListData{
			{Mailbox: "INBOX", Delim: '/'},
			{Mailbox: "Entwürfe", Delim: '/', Attrs: []imap.MailboxAttr{imap.MailboxAttrDrafts}},
		},
		appendUID: 77,
	}
	a, _ := testAdapter(conn)

	result, err := a.SaveDraft(context.Background(), model.OutgoingMessage{
		To:       []string{"b@example.com"},
		Subject:  "wip",
		TextBody: "draft text",
	})
	require.NoError(t, err)
	assert.Equal(t, "Entwürfe", result.Folder)
	assert.Equal(t, uint32(77), result.UID)
	assert.Contains(t, conn.appendFlags, imap.FlagDraft)
	assert.Contains(t, conn.appendBytes.String(), "draft text")
}

func TestSaveDraftUnknownUIDIsNotAnError(t *testing.T) {
	conn := &fakeConn{
		listData:  []*imap.ListData{{Mailbox: "Drafts", Delim: '/'}},
		appendUID: 0,
	}
	a, _ := testAdapter(conn)

	result, err := a.SaveDraft(context.Background(), model.OutgoingMessage{
		To:      []string{"b@example.com"},
		Subject: "wip",
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), result.UID)
}

func TestSendEmailSubmitsToAllRecipients(t *testing.T) {
	conn := &fakeConn{}
	a, _ := testAdapter(conn)

	var gotFrom string
	var gotTo []string
	var gotRaw []byte
	a.sendMail = func(_ *account.Endpoints, from, _ string, to []string, raw []byte) error {
		gotFrom, gotTo, gotRaw = from, to, raw
		return nil
	}

	ack, err := a.SendEmail(context.Background(), model.OutgoingMessage{
		To:       []string{"b@example.com"},
		CC:       []string{"c@example.com"},
		BCC:      []string{"d@example.com"},
		Subject:  "hi",
		TextBody: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "sent", ack.Status)
	assert.Equal(t, "a@example.com", gotFrom)
	assert.Equal(t, []string{"b@example.com", "c@example.com", "d@example.com"}, gotTo)

	body := string(gotRaw)
	assert.Contains(t, body, "Subject: hi")
	assert.Contains(t, body, "hello")
	// BCC recipients get the message but never appear in headers.
	assert.NotContains(t, body, "d@example.com")
}

func TestSendEmailRequiresRecipients(t *testing.T) {
	conn := &fakeConn{}
	a, _ := testAdapter(conn)

	_, err := a.SendEmail(context.Background(), model.OutgoingMessage{Subject: "hi"})
	require.Error(t, err)
}

func TestListFoldersMapsStatus(t *testing.T) {
	total := uint32(10)
	unseen := uint32(3)
	conn := &fakeConn{
		listData: []*imap.ListData{
			{
				Mailbox: "INBOX",
				Delim:   '/',
				Status:  &imap.StatusData{NumMessages: &total, NumUnseen: &unseen},
			},
		},
	}
	a, _ := testAdapter(conn)

	folders, err := a.ListFolders(context.Background())
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "INBOX", folders[0].Name)
	assert.Equal(t, uint32(10), folders[0].TotalCount)
	assert.Equal(t, uint32(3), folders[0].UnreadCount)
}

func TestCreateFolder(t *testing.T) {
	conn := &fakeConn{}
	a, _ := testAdapter(conn)

	ack, err := a.CreateFolder(context.Background(), "Receipts")
	require.NoError(t, err)
	assert.Equal(t, "created", ack.Status)
	assert.Equal(t, []string{"Receipts"}, conn.created)
}
