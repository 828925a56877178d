package rfc822

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailbridge/internal/model"
)

const multipartRaw = "From: Alice <alice@example.com>\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: quarterly report\r\n" +
	"Date: Mon, 02 Jan 2006 15:04:05 -0700\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"see attached\r\n" +
	"--b1\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>see attached</p>\r\n" +
	"--b1\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Id: <cid-123@example.com>\r\n" +
	"Content-Disposition: attachment; filename=\"report.pdf\"\r\n" +
	"\r\n" +
	"PDFDATA\r\n" +
	"--b1\r\n" +
	"Content-Type: application/octet-stream\r\n" +
	"Content-Disposition: attachment\r\n" +
	"\r\n" +
	"RAWBYTES\r\n" +
	"--b1--\r\n"

func TestParseCollectsBodiesAndAttachments(t *testing.T) {
	text, html, parts := Parse([]byte(multipartRaw))

	assert.Equal(t, "see attached", strings.TrimSpace(text))
	assert.Equal(t, "<p>see attached</p>", strings.TrimSpace(html))

	require.Len(t, parts, 2)
	assert.Equal(t, "cid-123@example.com", parts[0].ContentID)
	assert.Equal(t, "report.pdf", parts[0].Filename)
	assert.Equal(t, "application/pdf", parts[0].MIMEType)
	assert.Equal(t, "PDFDATA", strings.TrimSpace(string(parts[0].Data)))

	// The anonymous attachment falls back to its position.
	assert.Empty(t, parts[1].ContentID)
	assert.Empty(t, parts[1].Filename)
	assert.Equal(t, "1", parts[1].ID())
}

func TestParseFallsBackToPlainTextOnGarbage(t *testing.T) {
	text, html, parts := Parse([]byte("not a mime message at all"))

	assert.Equal(t, "not a mime message at all", text)
	assert.Empty(t, html)
	assert.Empty(t, parts)
}

func TestFindTriesContentIDThenFilenameThenIndex(t *testing.T) {
	parts := []Part{
		{Index: 0, ContentID: "cid-a", Filename: "a.txt"},
		{Index: 1, Filename: "b.txt"},
		{Index: 2},
	}

	require.NotNil(t, Find(parts, "cid-a"))
	assert.Equal(t, 0, Find(parts, "cid-a").Index)

	require.NotNil(t, Find(parts, "b.txt"))
	assert.Equal(t, 1, Find(parts, "b.txt").Index)

	require.NotNil(t, Find(parts, "2"))
	assert.Equal(t, 2, Find(parts, "2").Index)

	assert.Nil(t, Find(parts, "missing"))
}

func TestBuildRoundTripsThroughParse(t *testing.T) {
	raw, err := Build("alice@example.com", model.OutgoingMessage{
		To:       []string{"bob@example.com"},
		CC:       []string{"carol@example.com"},
		BCC:      []string{"hidden@example.com"},
		Subject:  "hello",
		TextBody: "plain body",
		HTMLBody: "<p>rich body</p>",
	})
	require.NoError(t, err)

	src := string(raw)
	assert.Contains(t, src, "Subject: hello")
	assert.Contains(t, src, "bob@example.com")
	assert.Contains(t, src, "carol@example.com")
	assert.NotContains(t, src, "hidden@example.com")

	text, html, parts := Parse(raw)
	assert.Equal(t, "plain body", strings.TrimSpace(text))
	assert.Equal(t, "<p>rich body</p>", strings.TrimSpace(html))
	assert.Empty(t, parts)
}

func TestBuildHTMLOnlySkipsEmptyTextPart(t *testing.T) {
	raw, err := Build("alice@example.com", model.OutgoingMessage{
		To:       []string{"bob@example.com"},
		Subject:  "html only",
		HTMLBody: "<p>only html</p>",
	})
	require.NoError(t, err)

	text, html, _ := Parse(raw)
	assert.Empty(t, strings.TrimSpace(text))
	assert.Equal(t, "<p>only html</p>", strings.TrimSpace(html))
}
