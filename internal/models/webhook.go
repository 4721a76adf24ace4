package models

// EmailAddress is one address entry in an inbound webhook payload.
type EmailAddress struct {
	Email       string `json:"Email"`
	Name        string `json:"Name,omitempty"`
	MailboxHash string `json:"MailboxHash,omitempty"`
}

// Header is one raw email header in an inbound webhook payload.
type Header struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

// InboundWebhook is the payload delivered by the inbound-email provider
// (Postmark field names). Field names are part of the wire contract and
// must not be renamed.
type InboundWebhook struct {
	FromName          string         `json:"FromName,omitempty"`
	MessageStream     string         `json:"MessageStream,omitempty"`
	From              string         `json:"From" binding:"required"`
	FromFull          EmailAddress   `json:"FromFull"`
	To                string         `json:"To"`
	ToFull            []EmailAddress `json:"ToFull,omitempty"`
	Cc                string         `json:"Cc,omitempty"`
	CcFull            []EmailAddress `json:"CcFull,omitempty"`
	Bcc               string         `json:"Bcc,omitempty"`
	BccFull           []EmailAddress `json:"BccFull,omitempty"`
	OriginalRecipient string         `json:"OriginalRecipient"`
	Subject           string         `json:"Subject"`
	MessageID         string         `json:"MessageID" binding:"required"`
	ReplyTo           string         `json:"ReplyTo,omitempty"`
	MailboxHash       string         `json:"MailboxHash,omitempty"`
	Date              string         `json:"Date"`
	TextBody          string         `json:"TextBody,omitempty"`
	HtmlBody          string         `json:"HtmlBody,omitempty"`
	StrippedTextReply string         `json:"StrippedTextReply,omitempty"`
	Tag               string         `json:"Tag,omitempty"`
	Headers           []Header       `json:"Headers,omitempty"`
}

// PRExtractionResult is the structured outcome of parsing one inbound
// message. PRTitle is never empty: extraction falls back to the raw subject.
type PRExtractionResult struct {
	RepoName       string `json:"repo_name,omitempty"`
	PRTitle        string `json:"pr_title"`
	PRLink         string `json:"pr_link,omitempty"`
	PRNumber       string `json:"pr_number,omitempty"`
	PRStatus       string `json:"pr_status,omitempty"`
	IsForwarded    bool   `json:"is_forwarded"`
	OriginalSender string `json:"original_sender,omitempty"`
}

// SlackPayload is a channel-message payload ready for chat.postMessage.
type SlackPayload struct {
	Text        string                   `json:"text"`
	Blocks      []map[string]interface{} `json:"blocks,omitempty"`
	Attachments []map[string]interface{} `json:"attachments,omitempty"`
}

// WebhookProcessResponse is returned to the webhook caller.
type WebhookProcessResponse struct {
	Success        bool                `json:"success"`
	Message        string              `json:"message"`
	NotificationID string              `json:"notification_id,omitempty"`
	ExtractedData  *PRExtractionResult `json:"extracted_data,omitempty"`
	ChannelPayload *SlackPayload       `json:"channel_payload,omitempty"`
}
