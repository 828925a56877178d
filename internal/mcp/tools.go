package mcp

// accountProp is shared by every tool: when omitted, the operation runs
// against the active account.
var accountProp = Property{
	Type:        "string",
	Description: "Account email or alias. Defaults to the active account.",
}

var refProps = map[string]Property{
	"account": accountProp,
	"folder":  {Type: "string", Description: "Folder or mailbox containing the message"},
	"uid":     {Type: "number", Description: "IMAP UID of the message"},
	"id":      {Type: "string", Description: "Provider-assigned message id"},
}

var messagesProp = Property{
	Type:        "array",
	Description: "Message references, each with folder plus uid or id",
	Items:       &Property{Type: "object"},
}

// ToolRegistry contains all available MCP tools.
var ToolRegistry = []Tool{
	{
		Name:        "send_email",
		Description: "Send an email from the given account",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account":   accountProp,
				"to":        {Type: "array", Description: "Recipient addresses", Items: &Property{Type: "string"}},
				"cc":        {Type: "array", Description: "CC addresses", Items: &Property{Type: "string"}},
				"bcc":       {Type: "array", Description: "BCC addresses", Items: &Property{Type: "string"}},
				"subject":   {Type: "string", Description: "Message subject"},
				"body":      {Type: "string", Description: "Plain-text body"},
				"html_body": {Type: "string", Description: "HTML body"},
			},
			Required: []string{"to", "subject"},
		},
	},
	{
		Name:        "save_draft",
		Description: "Save a message as a draft without sending it",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account":   accountProp,
				"to":        {Type: "array", Description: "Recipient addresses", Items: &Property{Type: "string"}},
				"cc":        {Type: "array", Description: "CC addresses", Items: &Property{Type: "string"}},
				"bcc":       {Type: "array", Description: "BCC addresses", Items: &Property{Type: "string"}},
				"subject":   {Type: "string", Description: "Message subject"},
				"body":      {Type: "string", Description: "Plain-text body"},
				"html_body": {Type: "string", Description: "HTML body"},
			},
		},
	},
	{
		Name:        "read_email",
		Description: "Fetch and parse a single message, returning headers, body and attachment metadata",
		InputSchema: InputSchema{
			Type:       "object",
			Properties: refProps,
		},
	},
	{
		Name:        "search_emails",
		Description: "Search messages by folder, sender, subject, date range and flags",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account":     accountProp,
				"folder":      {Type: "string", Description: "Folder to search. Defaults to the inbox."},
				"query":       {Type: "string", Description: "Free-text query matched against message bodies"},
				"from":        {Type: "string", Description: "Sender address filter"},
				"to":          {Type: "string", Description: "Recipient address filter"},
				"subject":     {Type: "string", Description: "Subject substring filter"},
				"since":       {Type: "string", Description: "Only messages on or after this date (RFC 3339 or YYYY-MM-DD)"},
				"before":      {Type: "string", Description: "Only messages before this date (RFC 3339 or YYYY-MM-DD)"},
				"unread_only": {Type: "boolean", Description: "Only unread messages"},
				"flagged":     {Type: "boolean", Description: "Only starred or flagged messages"},
				"max_results": {Type: "number", Description: "Maximum number of results. Defaults to the server's configured search limit."},
			},
		},
	},
	{
		Name:        "move_email",
		Description: "Move a single message to another folder",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account":     accountProp,
				"folder":      refProps["folder"],
				"uid":         refProps["uid"],
				"id":          refProps["id"],
				"destination": {Type: "string", Description: "Destination folder"},
			},
			Required: []string{"destination"},
		},
	},
	{
		Name:        "move_emails",
		Description: "Move several messages to another folder, reporting per-message outcomes",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account":     accountProp,
				"messages":    messagesProp,
				"destination": {Type: "string", Description: "Destination folder"},
			},
			Required: []string{"messages", "destination"},
		},
	},
	{
		Name:        "delete_email",
		Description: "Delete a message, either to trash or permanently",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account":   accountProp,
				"folder":    refProps["folder"],
				"uid":       refProps["uid"],
				"id":        refProps["id"],
				"permanent": {Type: "boolean", Description: "Skip the trash and remove the message permanently"},
			},
		},
	},
	{
		Name:        "mark_read",
		Description: "Mark messages as read or unread",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account":  accountProp,
				"messages": messagesProp,
				"read":     {Type: "boolean", Description: "true marks as read, false marks as unread", Default: true},
			},
			Required: []string{"messages"},
		},
	},
	{
		Name:        "download_attachment",
		Description: "Download one attachment from a message",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account":       accountProp,
				"folder":        refProps["folder"],
				"uid":           refProps["uid"],
				"id":            refProps["id"],
				"attachment_id": {Type: "string", Description: "Attachment content id, filename, or zero-based index"},
			},
			Required: []string{"attachment_id"},
		},
	},
	{
		Name:        "list_folders",
		Description: "List the folders or labels of an account",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account": accountProp,
			},
		},
	},
	{
		Name:        "create_folder",
		Description: "Create a new folder",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account": accountProp,
				"name":    {Type: "string", Description: "Folder name. Use / for hierarchy where the server supports it."},
			},
			Required: []string{"name"},
		},
	},
	{
		Name:        "list_labels",
		Description: "List all labels on a label-capable account",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account": accountProp,
			},
		},
	},
	{
		Name:        "create_label",
		Description: "Create a new label",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account": accountProp,
				"name":    {Type: "string", Description: "Label name"},
			},
			Required: []string{"name"},
		},
	},
	{
		Name:        "update_label",
		Description: "Rename an existing label",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account":  accountProp,
				"label_id": {Type: "string", Description: "Id of the label to update"},
				"name":     {Type: "string", Description: "New label name"},
			},
			Required: []string{"label_id", "name"},
		},
	},
	{
		Name:        "delete_label",
		Description: "Delete a label",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account":  accountProp,
				"label_id": {Type: "string", Description: "Id of the label to delete"},
			},
			Required: []string{"label_id"},
		},
	},
	{
		Name:        "get_or_create_label",
		Description: "Find a label by exact name, creating it when missing",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account": accountProp,
				"name":    {Type: "string", Description: "Label name, matched case-sensitively"},
			},
			Required: []string{"name"},
		},
	},
	{
		Name:        "modify_message_labels",
		Description: "Add and remove labels on a single message",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account":    accountProp,
				"message_id": {Type: "string", Description: "Id of the message to modify"},
				"add":        {Type: "array", Description: "Label ids to add", Items: &Property{Type: "string"}},
				"remove":     {Type: "array", Description: "Label ids to remove", Items: &Property{Type: "string"}},
			},
			Required: []string{"message_id"},
		},
	},
	{
		Name:        "modify_thread_labels",
		Description: "Add and remove labels on every message in a thread",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account":   accountProp,
				"thread_id": {Type: "string", Description: "Id of the thread to modify"},
				"add":       {Type: "array", Description: "Label ids to add", Items: &Property{Type: "string"}},
				"remove":    {Type: "array", Description: "Label ids to remove", Items: &Property{Type: "string"}},
			},
			Required: []string{"thread_id"},
		},
	},
	{
		Name:        "batch_modify_labels",
		Description: "Add and remove labels across many messages, chunked with per-item fallback",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account": accountProp,
				"ids":     {Type: "array", Description: "Message ids to modify", Items: &Property{Type: "string"}},
				"add":     {Type: "array", Description: "Label ids to add", Items: &Property{Type: "string"}},
				"remove":  {Type: "array", Description: "Label ids to remove", Items: &Property{Type: "string"}},
			},
			Required: []string{"ids"},
		},
	},
	{
		Name:        "batch_modify_thread_labels",
		Description: "Add and remove labels across many threads, reporting per-thread outcomes",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account": accountProp,
				"ids":     {Type: "array", Description: "Thread ids to modify", Items: &Property{Type: "string"}},
				"add":     {Type: "array", Description: "Label ids to add", Items: &Property{Type: "string"}},
				"remove":  {Type: "array", Description: "Label ids to remove", Items: &Property{Type: "string"}},
			},
			Required: []string{"ids"},
		},
	},
	{
		Name:        "batch_delete_emails",
		Description: "Delete many messages, chunked with per-item fallback",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account":   accountProp,
				"ids":       {Type: "array", Description: "Message ids to delete", Items: &Property{Type: "string"}},
				"permanent": {Type: "boolean", Description: "Skip the trash and remove messages permanently"},
			},
			Required: []string{"ids"},
		},
	},
	{
		Name:        "create_filter",
		Description: "Create a server-side filter, either from explicit criteria and actions or from a named template",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account":        accountProp,
				"template":       {Type: "string", Description: "Filter template", Enum: []string{"from-to-label", "subject-to-label", "mailing-list-archive"}},
				"value":          {Type: "string", Description: "Template value: sender address, subject text, or list id"},
				"label":          {Type: "string", Description: "Label to apply, created when missing"},
				"from":           {Type: "string", Description: "Criteria: sender address"},
				"to":             {Type: "string", Description: "Criteria: recipient address"},
				"subject":        {Type: "string", Description: "Criteria: subject text"},
				"query":          {Type: "string", Description: "Criteria: raw search query"},
				"has_attachment": {Type: "boolean", Description: "Criteria: only messages with attachments"},
				"add_labels":     {Type: "array", Description: "Action: label ids to add", Items: &Property{Type: "string"}},
				"remove_labels":  {Type: "array", Description: "Action: label ids to remove", Items: &Property{Type: "string"}},
				"forward":        {Type: "string", Description: "Action: forward matching mail to this address"},
			},
		},
	},
	{
		Name:        "list_filters",
		Description: "List all server-side filters",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account": accountProp,
			},
		},
	},
	{
		Name:        "get_filter",
		Description: "Fetch a single filter by id",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account":   accountProp,
				"filter_id": {Type: "string", Description: "Id of the filter"},
			},
			Required: []string{"filter_id"},
		},
	},
	{
		Name:        "delete_filter",
		Description: "Delete a filter by id",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account":   accountProp,
				"filter_id": {Type: "string", Description: "Id of the filter"},
			},
			Required: []string{"filter_id"},
		},
	},
	{
		Name:        "list_accounts",
		Description: "List configured accounts with provider type, aliases and active flag",
		InputSchema: InputSchema{
			Type:       "object",
			Properties: map[string]Property{},
		},
	},
	{
		Name:        "switch_account",
		Description: "Make another account the active one",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account": {Type: "string", Description: "Email or alias of the account to activate"},
			},
			Required: []string{"account"},
		},
	},
	{
		Name:        "get_active_account",
		Description: "Show the currently active account",
		InputSchema: InputSchema{
			Type:       "object",
			Properties: map[string]Property{},
		},
	},
	{
		Name:        "set_account_alias",
		Description: "Attach a short alias to an account",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account": {Type: "string", Description: "Email of the account"},
				"alias":   {Type: "string", Description: "Alias to attach"},
			},
			Required: []string{"account", "alias"},
		},
	},
	{
		Name:        "remove_account",
		Description: "Remove an account and its stored credentials",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"account": {Type: "string", Description: "Email or alias of the account to remove"},
			},
			Required: []string{"account"},
		},
	},
	{
		Name:        "cache_stats",
		Description: "Report summary-cache row counts per account",
		InputSchema: InputSchema{
			Type:       "object",
			Properties: map[string]Property{},
		},
	},
}
