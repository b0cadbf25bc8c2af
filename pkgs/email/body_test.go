package email

import (
	"strings"
	"testing"

	gomessage "github.com/emersion/go-message"

	"github.com/mailbridge/mcp-mail/pkgs/mailtest"
)

func parseTestEntity(t *testing.T, raw string) *gomessage.Entity {
	t.Helper()
	entity, err := gomessage.Read(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to parse test entity: %v", err)
	}
	return entity
}

func TestParseEntityBody_PlainText(t *testing.T) {
	raw := "Content-Type: text/plain; charset=utf-8\r\n\r\nHello, World!"
	msg := &Message{}
	parseEntityBody(msg, parseTestEntity(t, raw))

	if msg.TextBody != "Hello, World!" {
		t.Errorf("unexpected TextBody: %q", msg.TextBody)
	}
	if msg.HTMLBody != "" {
		t.Errorf("unexpected HTMLBody: %q", msg.HTMLBody)
	}
}

func TestParseEntityBody_HTML(t *testing.T) {
	raw := "Content-Type: text/html; charset=utf-8\r\n\r\n<p>Hello</p>"
	msg := &Message{}
	parseEntityBody(msg, parseTestEntity(t, raw))

	if msg.HTMLBody != "<p>Hello</p>" {
		t.Errorf("unexpected HTMLBody: %q", msg.HTMLBody)
	}
	if got := msg.PreferredBody(); got != "<p>Hello</p>" {
		t.Errorf("PreferredBody() = %q", got)
	}
}

func TestParseEntityBody_MultipartAlternative(t *testing.T) {
	msg := &Message{}
	parseEntityBody(msg, parseTestEntity(t, mailtest.MailHTMLAlt))

	if msg.TextBody != "Plain version" {
		t.Errorf("TextBody = %q", msg.TextBody)
	}
	if msg.HTMLBody != "<p>HTML version</p>" {
		t.Errorf("HTMLBody = %q", msg.HTMLBody)
	}
	if got := msg.PreferredBody(); got != "<p>HTML version</p>" {
		t.Errorf("PreferredBody() = %q, want the HTML part", got)
	}
}

func TestParseEntityBody_NestedMultipart(t *testing.T) {
	msg := &Message{}
	parseEntityBody(msg, parseTestEntity(t, mailtest.MailNested))

	if msg.TextBody == "" {
		t.Error("expected text/plain body in nested multipart")
	}
	if msg.HTMLBody == "" {
		t.Error("expected text/html body in nested multipart")
	}
}

func TestParseEntityBody_SkipsAttachments(t *testing.T) {
	// The attached text/plain part must not be mistaken for the body.
	raw := "MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=\"B1\"\r\n" +
		"\r\n" +
		"--B1\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Disposition: attachment; filename=\"notes.txt\"\r\n" +
		"\r\n" +
		"attached notes\r\n" +
		"--B1\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"inline body\r\n" +
		"--B1--\r\n"

	msg := &Message{}
	parseEntityBody(msg, parseTestEntity(t, raw))

	if msg.TextBody != "inline body" {
		t.Errorf("TextBody = %q, want the inline part", msg.TextBody)
	}
}

func TestParseEntityBody_FirstPartWins(t *testing.T) {
	raw := "MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=\"B2\"\r\n" +
		"\r\n" +
		"--B2\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"first\r\n" +
		"--B2\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"second\r\n" +
		"--B2--\r\n"

	msg := &Message{}
	parseEntityBody(msg, parseTestEntity(t, raw))

	if msg.TextBody != "first" {
		t.Errorf("TextBody = %q, want the first text part", msg.TextBody)
	}
}

func TestParseEntityBody_EmptyBody(t *testing.T) {
	raw := "Content-Type: text/plain\r\n\r\n"
	msg := &Message{}
	parseEntityBody(msg, parseTestEntity(t, raw)) // should not panic

	if msg.TextBody != "" {
		t.Errorf("TextBody = %q, want empty", msg.TextBody)
	}
}

func TestMessageFromEntity_Headers(t *testing.T) {
	msg := messageFromEntity(7, parseTestEntity(t, mailtest.MailPlain))

	if msg.ID != 7 {
		t.Errorf("ID = %d, want 7", msg.ID)
	}
	if msg.Subject != "Test Subject" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if msg.From != "sender@example.com" {
		t.Errorf("From = %q", msg.From)
	}
	if msg.To != "rcpt@example.com" {
		t.Errorf("To = %q", msg.To)
	}
	if msg.Date == "" {
		t.Error("expected non-empty Date")
	}
	if msg.MessageID != "<test-1@example.com>" {
		t.Errorf("MessageID = %q", msg.MessageID)
	}

	for _, key := range []string{"Subject", "From", "To", "Date", "Message-Id", "Content-Type"} {
		if msg.Headers[key] == "" {
			t.Errorf("Headers[%q] is empty; map: %v", key, msg.Headers)
		}
	}
}

func TestMessageFromEntity_DecodedHeaders(t *testing.T) {
	msg := messageFromEntity(1, parseTestEntity(t, mailtest.MailEncodedSubject))

	if msg.Subject != "Café report" {
		t.Errorf("Subject = %q, want decoded %q", msg.Subject, "Café report")
	}
	if !strings.Contains(msg.From, "Renée") {
		t.Errorf("From = %q, want decoded display name", msg.From)
	}
	if msg.Headers["Subject"] != "Café report" {
		t.Errorf("Headers[Subject] = %q, want decoded value", msg.Headers["Subject"])
	}
}
