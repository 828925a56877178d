package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailbridge/internal/account"
	"github.com/nhle/mailbridge/internal/credential"
	"github.com/nhle/mailbridge/internal/mailbox"
	"github.com/nhle/mailbridge/internal/model"
	"github.com/nhle/mailbridge/internal/provider"
)

type memCreds struct {
	records map[string]*credential.Record
}

func (m *memCreds) Get(handle string) (*credential.Record, error) {
	rec, ok := m.records[handle]
	if !ok {
		return nil, &provider.NotFoundError{Kind: "credential", Name: handle}
	}
	return rec, nil
}

func (m *memCreds) Set(handle string, rec *credential.Record) error {
	m.records[handle] = rec
	return nil
}

func (m *memCreds) Delete(handle string) error {
	delete(m.records, handle)
	return nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	reg, err := account.NewRegistry(t.TempDir())
	require.NoError(t, err)
	manager := account.NewManager(reg, &memCreds{records: map[string]*credential.Record{}})

	require.NoError(t, manager.AddAccount(&account.Entry{
		Email:    "work@example.com",
		Alias:    "work",
		Provider: provider.TypeIMAP,
		Endpoints: &account.Endpoints{
			IMAPHost: "imap.example.com", IMAPPort: "993",
			SMTPHost: "smtp.example.com", SMTPPort: "587",
		},
	}, &credential.Record{AppPassword: "secret"}))
	require.NoError(t, manager.AddAccount(&account.Entry{
		Email:    "personal@example.com",
		Provider: provider.TypeIMAP,
		Endpoints: &account.Endpoints{
			IMAPHost: "imap.example.com", IMAPPort: "993",
			SMTPHost: "smtp.example.com", SMTPPort: "587",
		},
	}, &credential.Record{AppPassword: "secret"}))

	logger := log.New(&strings.Builder{}, "", 0)
	service := mailbox.NewService(manager, nil, &model.AppConfig{}, logger)
	t.Cleanup(service.Close)

	return NewServer(service, logger)
}

func send(t *testing.T, s *Server, method string, id any, params any) Response {
	t.Helper()

	req := Request{JSONRPC: "2.0", ID: id, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		require.NoError(t, err)
		req.Params = raw
	}
	msg, err := json.Marshal(req)
	require.NoError(t, err)

	data, err := s.HandleMessage(context.Background(), msg)
	require.NoError(t, err)
	require.NotNil(t, data)

	var resp Response
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

func callTool(t *testing.T, s *Server, name string, args map[string]any) ToolCallResult {
	t.Helper()

	resp := send(t, s, "tools/call", 1, ToolCallParams{Name: name, Arguments: args})
	require.Nil(t, resp.Error)

	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result ToolCallResult
	require.NoError(t, json.Unmarshal(raw, &result))
	require.NotEmpty(t, result.Content)
	return result
}

func TestInitializeHandshake(t *testing.T) {
	s := newTestServer(t)

	resp := send(t, s, "initialize", 1, map[string]any{
		"protocolVersion": ProtocolVersion,
		"clientInfo":      map[string]string{"name": "test-client", "version": "0.1"},
	})

	require.Nil(t, resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result InitializeResult
	require.NoError(t, json.Unmarshal(raw, &result))

	assert.Equal(t, ProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, ServerName, result.ServerInfo.Name)
	assert.NotNil(t, result.Capabilities.Tools)
}

func TestInitializedNotificationProducesNoResponse(t *testing.T) {
	s := newTestServer(t)

	data, err := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"initialized"}`))
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestToolsListCoversRegistry(t *testing.T) {
	s := newTestServer(t)

	resp := send(t, s, "tools/list", 2, nil)
	require.Nil(t, resp.Error)

	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result ToolsListResult
	require.NoError(t, json.Unmarshal(raw, &result))

	require.Len(t, result.Tools, len(ToolRegistry))
	names := make(map[string]bool, len(result.Tools))
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"send_email", "search_emails", "create_filter", "switch_account", "cache_stats"} {
		assert.True(t, names[want], "missing tool %s", want)
	}
}

func TestPing(t *testing.T) {
	s := newTestServer(t)

	resp := send(t, s, "ping", 3, nil)
	assert.Nil(t, resp.Error)
}

func TestUnknownMethod(t *testing.T) {
	s := newTestServer(t)

	resp := send(t, s, "resources/list", 4, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)
}

func TestMalformedMessageReturnsParseError(t *testing.T) {
	s := newTestServer(t)

	data, err := s.HandleMessage(context.Background(), []byte(`{not json`))
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(data, &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeParse, resp.Error.Code)
}

func TestUnknownToolReportsError(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "summon_mail_daemon", nil)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "unknown tool")
}

func TestListAccountsTool(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "list_accounts", nil)
	require.False(t, result.IsError, result.Content[0].Text)
	assert.Contains(t, result.Content[0].Text, "work@example.com")
	assert.Contains(t, result.Content[0].Text, "personal@example.com")
}

func TestSwitchAndActiveAccountTools(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "switch_account", map[string]any{"account": "personal@example.com"})
	require.False(t, result.IsError, result.Content[0].Text)

	result = callTool(t, s, "get_active_account", nil)
	require.False(t, result.IsError, result.Content[0].Text)
	assert.Contains(t, result.Content[0].Text, "personal@example.com")
}

func TestSwitchAccountByAlias(t *testing.T) {
	s := newTestServer(t)

	callTool(t, s, "switch_account", map[string]any{"account": "personal@example.com"})
	result := callTool(t, s, "switch_account", map[string]any{"account": "work"})
	require.False(t, result.IsError, result.Content[0].Text)
	assert.Contains(t, result.Content[0].Text, "work@example.com")
}

func TestSetAccountAliasTool(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "set_account_alias", map[string]any{
		"account": "personal@example.com",
		"alias":   "home",
	})
	require.False(t, result.IsError, result.Content[0].Text)

	result = callTool(t, s, "switch_account", map[string]any{"account": "home"})
	require.False(t, result.IsError, result.Content[0].Text)
	assert.Contains(t, result.Content[0].Text, "personal@example.com")
}

func TestRemoveAccountTool(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "remove_account", map[string]any{"account": "personal@example.com"})
	require.False(t, result.IsError, result.Content[0].Text)

	result = callTool(t, s, "list_accounts", nil)
	assert.NotContains(t, result.Content[0].Text, "personal@example.com")
}

func TestCacheStatsWithoutStore(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "cache_stats", nil)
	require.False(t, result.IsError, result.Content[0].Text)
	assert.Contains(t, result.Content[0].Text, `"total_rows": 0`)
}

func TestUnknownAccountBecomesToolError(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "list_folders", map[string]any{"account": "nobody@example.com"})
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "nobody@example.com")
}

func TestSearchRejectsMalformedDates(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "search_emails", map[string]any{"since": "garbage"})
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "invalid date")
}

func TestMarkReadRequiresMessages(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "mark_read", map[string]any{"read": true})
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "messages argument is required")
}

func TestMessageRefArgumentCoercion(t *testing.T) {
	args := map[string]any{
		"folder": "INBOX",
		"uid":    float64(42),
	}
	ref := messageRef(args)
	assert.Equal(t, model.MessageRef{Folder: "INBOX", UID: 42}, ref)

	refs, err := messageRefs(map[string]any{
		"messages": []any{
			map[string]any{"folder": "INBOX", "uid": float64(7)},
			map[string]any{"id": "19a3f0cde"},
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, []model.MessageRef{
		{Folder: "INBOX", UID: 7},
		{ID: "19a3f0cde"},
	}, refs)
}

func TestAttachmentBytesSurviveToolSerialization(t *testing.T) {
	payload := &model.AttachmentData{
		Attachment: model.Attachment{
			PartID:   "cid-123",
			Filename: "report.pdf",
			MIMEType: "application/pdf",
			Size:     7,
		},
		Data: []byte("PDFDATA"),
	}

	// Results are serialized the same way handleToolsCall does it.
	text, err := json.MarshalIndent(payload, "", "  ")
	require.NoError(t, err)

	assert.Contains(t, string(text), `"data"`)
	assert.Contains(t, string(text), base64.StdEncoding.EncodeToString([]byte("PDFDATA")))
}

func TestServeLoopAnswersOverStdio(t *testing.T) {
	s := newTestServer(t)

	in := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}` + "\n" +
			`{"jsonrpc":"2.0","method":"initialized"}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"ping"}` + "\n")
	var out strings.Builder

	require.NoError(t, s.Serve(context.Background(), in, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], ServerName)
	assert.Contains(t, lines[1], `"id":2`)
}
