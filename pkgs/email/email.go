// Package email implements the two protocol sessions behind the mail
// tools: POP3 over TLS for mailbox access and SMTP over TLS for sending,
// plus message composition and body extraction. Sessions are opened per
// call and closed before the call returns; nothing is cached across calls.
package email

// Message is a parsed mailbox message bound to a session-local ID.
type Message struct {
	// ID is the POP3 message number. It is only meaningful within the
	// session that produced it and is reassigned on every new connection
	// and after any deletion commits.
	ID int

	Subject   string
	From      string
	To        string
	Cc        string
	Date      string
	MessageID string

	// Headers maps every header name, as received, to its decoded value.
	Headers map[string]string

	TextBody string
	HTMLBody string
}

// PreferredBody returns the HTML body when the message has one, otherwise
// the plain text body.
func (m *Message) PreferredBody() string {
	if m.HTMLBody != "" {
		return m.HTMLBody
	}
	return m.TextBody
}

// ContentType selects the body content type of an outbound message.
type ContentType string

const (
	ContentTypePlain ContentType = "text/plain"
	ContentTypeHTML  ContentType = "text/html"
)

// OutboundMessage describes one message to send. It is constructed fresh
// for every send call and never persisted.
type OutboundMessage struct {
	From string
	// To preserves caller order; duplicates are allowed.
	To          []string
	Subject     string
	Body        string
	ContentType ContentType
}
