package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/mailbridge/internal/mailbox"
	"github.com/nhle/mailbridge/internal/model"
)

const (
	// ProtocolVersion is the MCP protocol version this server implements.
	ProtocolVersion = "2024-11-05"
	// ServerName is this server's name reported to clients.
	ServerName = "mailbridge"
	// ServerVersion is this server's version.
	ServerVersion = "1.0.0"
)

// Server handles MCP protocol messages and dispatches tool calls to the
// mailbox service.
type Server struct {
	service *mailbox.Service
	logger  *log.Logger
}

// NewServer creates a new MCP server around the given mailbox service.
func NewServer(service *mailbox.Service, logger *log.Logger) *Server {
	return &Server{service: service, logger: logger}
}

// Serve runs the stdio message loop: one JSON-RPC message per line on r,
// one response per line on w. Notifications produce no output line.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	out := bufio.NewWriter(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		resp, err := s.HandleMessage(ctx, []byte(line))
		if err != nil {
			s.logger.Printf("handle message: %v", err)
			continue
		}
		if resp == nil {
			continue
		}
		if _, err := out.Write(append(resp, '\n')); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
		if err := out.Flush(); err != nil {
			return fmt.Errorf("flush response: %w", err)
		}
	}
	return scanner.Err()
}

// HandleMessage processes a single JSON-RPC message and returns the
// serialized response, or nil for notifications.
func (s *Server) HandleMessage(ctx context.Context, message []byte) ([]byte, error) {
	var req Request
	if err := json.Unmarshal(message, &req); err != nil {
		resp := ErrorResponse(nil, ErrCodeParse, "parse error: "+err.Error())
		return json.Marshal(resp)
	}

	var resp Response
	switch req.Method {
	case "initialize":
		resp = s.handleInitialize(req)
	case "initialized", "notifications/initialized":
		// Notification, no response.
		return nil, nil
	case "tools/list":
		resp = s.handleToolsList(req)
	case "tools/call":
		resp = s.handleToolsCall(ctx, req)
	case "ping":
		resp = SuccessResponse(req.ID, map[string]any{})
	default:
		resp = ErrorResponse(req.ID, ErrCodeMethodNotFound, "method not found: "+req.Method)
	}
	return json.Marshal(resp)
}

func (s *Server) handleInitialize(req Request) Response {
	var params InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return ErrorResponse(req.ID, ErrCodeInvalidParams, "invalid params: "+err.Error())
		}
	}
	s.logger.Printf("initialize from %s %s", params.ClientInfo.Name, params.ClientInfo.Version)

	return SuccessResponse(req.ID, InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo:      ServerInfo{Name: ServerName, Version: ServerVersion},
		Capabilities: ServerCapabilities{
			Tools: &ToolsCapability{},
		},
	})
}

func (s *Server) handleToolsList(req Request) Response {
	return SuccessResponse(req.ID, ToolsListResult{Tools: ToolRegistry})
}

func (s *Server) handleToolsCall(ctx context.Context, req Request) Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return ErrorResponse(req.ID, ErrCodeInvalidParams, "invalid params: "+err.Error())
	}
	if params.Arguments == nil {
		params.Arguments = map[string]any{}
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Printf("tool %s failed: %v", params.Name, err)
		return SuccessResponse(req.ID, ToolCallResult{
			Content: []ContentBlock{TextContent("Error: " + err.Error())},
			IsError: true,
		})
	}

	text, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return ErrorResponse(req.ID, ErrCodeInternal, "marshal result: "+err.Error())
	}
	return SuccessResponse(req.ID, ToolCallResult{
		Content: []ContentBlock{TextContent(string(text))},
	})
}

func (s *Server) executeTool(ctx context.Context, name string, args map[string]any) (any, error) {
	account := getString(args, "account")

	switch name {
	case "send_email":
		return s.service.SendEmail(ctx, account, outgoingMessage(args))
	case "save_draft":
		return s.service.SaveDraft(ctx, account, outgoingMessage(args))
	case "read_email":
		return s.service.ReadEmail(ctx, account, messageRef(args))
	case "search_emails":
		criteria, err := searchCriteria(args)
		if err != nil {
			return nil, err
		}
		return s.service.SearchEmails(ctx, account, criteria)
	case "move_email":
		return s.service.MoveEmail(ctx, account, messageRef(args), getString(args, "destination"))
	case "move_emails":
		refs, err := messageRefs(args)
		if err != nil {
			return nil, err
		}
		return s.service.MoveEmails(ctx, account, refs, getString(args, "destination"))
	case "delete_email":
		return s.service.DeleteEmail(ctx, account, messageRef(args), getBool(args, "permanent", false))
	case "mark_read":
		refs, err := messageRefs(args)
		if err != nil {
			return nil, err
		}
		return s.service.MarkRead(ctx, account, refs, getBool(args, "read", true))
	case "download_attachment":
		return s.service.DownloadAttachment(ctx, account, messageRef(args), getString(args, "attachment_id"))
	case "list_folders":
		return s.service.ListFolders(ctx, account)
	case "create_folder":
		return s.service.CreateFolder(ctx, account, getString(args, "name"))
	case "list_labels":
		return s.service.ListLabels(ctx, account)
	case "create_label":
		return s.service.CreateLabel(ctx, account, getString(args, "name"))
	case "update_label":
		return s.service.UpdateLabel(ctx, account, getString(args, "label_id"), getString(args, "name"))
	case "delete_label":
		if err := s.service.DeleteLabel(ctx, account, getString(args, "label_id")); err != nil {
			return nil, err
		}
		return &model.Ack{Status: "deleted", Detail: getString(args, "label_id")}, nil
	case "get_or_create_label":
		return s.service.GetOrCreateLabel(ctx, account, getString(args, "name"))
	case "modify_message_labels":
		err := s.service.ModifyMessageLabels(ctx, account,
			getString(args, "message_id"), getStringSlice(args, "add"), getStringSlice(args, "remove"))
		if err != nil {
			return nil, err
		}
		return &model.Ack{Status: "modified", Detail: getString(args, "message_id")}, nil
	case "modify_thread_labels":
		err := s.service.ModifyThreadLabels(ctx, account,
			getString(args, "thread_id"), getStringSlice(args, "add"), getStringSlice(args, "remove"))
		if err != nil {
			return nil, err
		}
		return &model.Ack{Status: "modified", Detail: getString(args, "thread_id")}, nil
	case "batch_modify_labels":
		return s.service.BatchModifyLabels(ctx, account,
			getStringSlice(args, "ids"), getStringSlice(args, "add"), getStringSlice(args, "remove"), false)
	case "batch_modify_thread_labels":
		return s.service.BatchModifyLabels(ctx, account,
			getStringSlice(args, "ids"), getStringSlice(args, "add"), getStringSlice(args, "remove"), true)
	case "batch_delete_emails":
		return s.service.BatchDelete(ctx, account, getStringSlice(args, "ids"), getBool(args, "permanent", false))
	case "create_filter":
		if template := getString(args, "template"); template != "" {
			return s.service.CreateFilterFromTemplate(ctx, account,
				template, getString(args, "value"), getString(args, "label"))
		}
		criteria := model.FilterCriteria{
			From:          getString(args, "from"),
			To:            getString(args, "to"),
			Subject:       getString(args, "subject"),
			Query:         getString(args, "query"),
			HasAttachment: getBool(args, "has_attachment", false),
		}
		action := model.FilterAction{
			AddLabelIDs:    getStringSlice(args, "add_labels"),
			RemoveLabelIDs: getStringSlice(args, "remove_labels"),
			Forward:        getString(args, "forward"),
		}
		return s.service.CreateFilter(ctx, account, criteria, action)
	case "list_filters":
		return s.service.ListFilters(ctx, account)
	case "get_filter":
		return s.service.GetFilter(ctx, account, getString(args, "filter_id"))
	case "delete_filter":
		if err := s.service.DeleteFilter(ctx, account, getString(args, "filter_id")); err != nil {
			return nil, err
		}
		return &model.Ack{Status: "deleted", Detail: getString(args, "filter_id")}, nil
	case "list_accounts":
		return s.service.ListAccounts()
	case "switch_account":
		return s.service.SwitchAccount(account)
	case "get_active_account":
		active, err := s.service.ActiveAccount()
		if err != nil {
			return nil, err
		}
		return map[string]string{"account": active}, nil
	case "set_account_alias":
		return s.service.SetAlias(account, getString(args, "alias"))
	case "remove_account":
		return s.service.RemoveAccount(ctx, account)
	case "cache_stats":
		return s.service.CacheStats(ctx)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// Argument extraction helpers

func getString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func getBool(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func getInt(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getStringSlice(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func getTime(args map[string]any, key string) (time.Time, error) {
	v := getString(args, key)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use RFC 3339 or YYYY-MM-DD", v)
	}
	return t, nil
}

func messageRef(args map[string]any) model.MessageRef {
	return model.MessageRef{
		Folder: getString(args, "folder"),
		UID:    uint32(getInt(args, "uid", 0)),
		ID:     getString(args, "id"),
	}
}

func messageRefs(args map[string]any) ([]model.MessageRef, error) {
	raw, ok := args["messages"]
	if !ok {
		return nil, fmt.Errorf("messages argument is required")
	}
	// Round-trip through JSON so the array of loosely typed maps lands in
	// the typed ref slice with one set of coercion rules.
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid messages argument: %w", err)
	}
	var refs []model.MessageRef
	if err := json.Unmarshal(data, &refs); err != nil {
		return nil, fmt.Errorf("invalid messages argument: %w", err)
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("messages argument is empty")
	}
	return refs, nil
}

func searchCriteria(args map[string]any) (model.SearchCriteria, error) {
	since, err := getTime(args, "since")
	if err != nil {
		return model.SearchCriteria{}, err
	}
	before, err := getTime(args, "before")
	if err != nil {
		return model.SearchCriteria{}, err
	}
	return model.SearchCriteria{
		Folder:     getString(args, "folder"),
		From:       getString(args, "from"),
		To:         getString(args, "to"),
		Subject:    getString(args, "subject"),
		Since:      since,
		Before:     before,
		UnreadOnly: getBool(args, "unread_only", false),
		Flagged:    getBool(args, "flagged", false),
		BodyText:   getString(args, "query"),
		MaxResults: getInt(args, "max_results", 0),
	}, nil
}

func outgoingMessage(args map[string]any) model.OutgoingMessage {
	return model.OutgoingMessage{
		To:       getStringSlice(args, "to"),
		CC:       getStringSlice(args, "cc"),
		BCC:      getStringSlice(args, "bcc"),
		Subject:  getString(args, "subject"),
		TextBody: getString(args, "body"),
		HTMLBody: getString(args, "html_body"),
	}
}
