package email

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

// BuildMessage renders an OutboundMessage into wire form: headers From, To,
// Subject, Date and a generated Message-ID, followed by a single text/plain
// or text/html body. The caller-supplied body is never altered. Composition
// is pure; no network I/O happens here.
func BuildMessage(out OutboundMessage) (*bytes.Buffer, error) {
	if out.From == "" {
		return nil, fmt.Errorf("outbound message requires a From address")
	}
	if len(out.To) == 0 {
		return nil, fmt.Errorf("outbound message requires at least one recipient")
	}

	contentType := out.ContentType
	if contentType == "" {
		contentType = ContentTypePlain
	}

	var buf bytes.Buffer

	var header mail.Header
	header.SetDate(time.Now())
	header.SetSubject(out.Subject)
	header.Set("From", out.From)
	header.Set("To", strings.Join(out.To, ", "))
	header.Set("Message-ID", GenerateMessageID(out.From))
	header.SetContentType(string(contentType), map[string]string{"charset": "utf-8"})

	w, err := mail.CreateSingleInlineWriter(&buf, header)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write([]byte(out.Body)); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return &buf, nil
}

// GenerateMessageID produces an RFC 5322 compliant Message-ID using the
// domain extracted from the sender's email address.
// Format: <timestamp.random@domain>
func GenerateMessageID(fromEmail string) string {
	domain := "localhost"
	if idx := strings.Index(fromEmail, "@"); idx >= 0 && idx+1 < len(fromEmail) {
		domain = fromEmail[idx+1:]
	}
	return fmt.Sprintf("<%d.%s@%s>", time.Now().UnixNano(), uuid.NewString(), domain)
}
