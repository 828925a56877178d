package gmail

// Wire types for the Gmail REST API. Only the fields this adapter
// reads or writes are declared.

// errorResponse is the standard Google API error envelope.
type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// messageID is a message reference as returned by list operations.
type messageID struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// messageList is one page of a messages.list response.
type messageList struct {
	Messages           []messageID `json:"messages"`
	NextPageToken      string      `json:"nextPageToken"`
	ResultSizeEstimate int64       `json:"resultSizeEstimate"`
}

// wireMessage is a messages.get response. Raw is populated only with
// format=raw, Payload only with format=metadata or format=full.
type wireMessage struct {
	ID           string    `json:"id"`
	ThreadID     string    `json:"threadId"`
	LabelIDs     []string  `json:"labelIds"`
	Snippet      string    `json:"snippet"`
	InternalDate string    `json:"internalDate"`
	SizeEstimate int64     `json:"sizeEstimate"`
	Raw          string    `json:"raw"`
	Payload      *wirePart `json:"payload"`
}

// wirePart is the payload tree node carrying the message headers.
type wirePart struct {
	MimeType string       `json:"mimeType"`
	Headers  []wireHeader `json:"headers"`
}

type wireHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// wireLabel is a labels resource.
type wireLabel struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name"`
	Type           string `json:"type,omitempty"`
	MessagesTotal  int64  `json:"messagesTotal,omitempty"`
	MessagesUnread int64  `json:"messagesUnread,omitempty"`
}

// labelList is a labels.list response.
type labelList struct {
	Labels []wireLabel `json:"labels"`
}

// wireFilter is a settings.filters resource.
type wireFilter struct {
	ID       string             `json:"id,omitempty"`
	Criteria wireFilterCriteria `json:"criteria"`
	Action   wireFilterAction   `json:"action"`
}

type wireFilterCriteria struct {
	From          string `json:"from,omitempty"`
	To            string `json:"to,omitempty"`
	Subject       string `json:"subject,omitempty"`
	Query         string `json:"query,omitempty"`
	HasAttachment bool   `json:"hasAttachment,omitempty"`
}

type wireFilterAction struct {
	AddLabelIDs    []string `json:"addLabelIds,omitempty"`
	RemoveLabelIDs []string `json:"removeLabelIds,omitempty"`
	Forward        string   `json:"forward,omitempty"`
}

// filterList is a settings.filters.list response.
type filterList struct {
	Filter []wireFilter `json:"filter"`
}

// modifyRequest is the body of messages.modify and threads.modify.
type modifyRequest struct {
	AddLabelIDs    []string `json:"addLabelIds,omitempty"`
	RemoveLabelIDs []string `json:"removeLabelIds,omitempty"`
}

// batchModifyRequest is the body of messages.batchModify.
type batchModifyRequest struct {
	IDs            []string `json:"ids"`
	AddLabelIDs    []string `json:"addLabelIds,omitempty"`
	RemoveLabelIDs []string `json:"removeLabelIds,omitempty"`
}

// batchDeleteRequest is the body of messages.batchDelete.
type batchDeleteRequest struct {
	IDs []string `json:"ids"`
}

// rawMessageRequest carries base64url-encoded RFC 5322 bytes for
// messages.send and drafts.create.
type rawMessageRequest struct {
	Raw string `json:"raw"`
}

// draftRequest is the body of drafts.create.
type draftRequest struct {
	Message rawMessageRequest `json:"message"`
}

// draftResponse is the drafts.create response.
type draftResponse struct {
	ID      string    `json:"id"`
	Message messageID `json:"message"`
}
