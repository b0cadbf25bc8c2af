// Package mailtool implements the mailbox and send operations exposed to
// tool callers: poll, fetch by ID, delete by ID, and plain/HTML send.
//
// Every operation opens its own protocol session and closes it before
// returning; no state survives across calls. POP3 message numbers are
// session-local, so IDs obtained from PollEmails are invalidated the
// moment DeleteEmailsByID commits — callers must poll again before any
// further ID-based operation.
package mailtool

import (
	"crypto/tls"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mailbridge/mcp-mail/pkgs/config"
	"github.com/mailbridge/mcp-mail/pkgs/email"
)

// Service exposes the mail tool operations for one configured account.
type Service struct {
	cfg *config.Config
	log logrus.FieldLogger

	// tlsConfig overrides the client TLS configuration, for tests.
	tlsConfig *tls.Config
}

// NewService creates a Service. A nil log uses the standard logger.
func NewService(cfg *config.Config, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{cfg: cfg, log: log}
}

// EmailSummary is one PollEmails entry: the session-local ID plus summary
// headers. Error is set when this message's headers could not be fetched;
// polling continues past such entries.
type EmailSummary struct {
	ID        int    `json:"id"`
	Subject   string `json:"Subject"`
	From      string `json:"From"`
	Date      string `json:"Date"`
	MessageID string `json:"Message-ID"`
	Error     string `json:"error,omitempty"`
}

// FetchedEmail is one GetEmailsByID entry. Either Headers and Body are
// populated, or Error is.
type FetchedEmail struct {
	ID      int               `json:"id"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// DeleteResult partitions the requested IDs exhaustively: every distinct
// requested ID lands in exactly one of Deleted or Failed.
type DeleteResult struct {
	Deleted []int          `json:"deleted"`
	Failed  map[int]string `json:"failed"`
}

// SendResult reports a send as data; errors never propagate past the
// operation boundary.
type SendResult struct {
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *Service) pop3Client() *email.POP3Client {
	return email.NewPOP3Client(email.POP3Config{
		Host:      s.cfg.POP3.Host,
		Port:      s.cfg.POP3.Port,
		Username:  s.cfg.POP3.Username,
		Password:  s.cfg.POP3.Password,
		SSL:       s.cfg.POP3.SSL,
		StartTLS:  s.cfg.POP3.StartTLS,
		TLSConfig: s.tlsConfig,
	})
}

func (s *Service) smtpClient() *email.SMTPClient {
	return email.NewSMTPClient(email.SMTPConfig{
		Host:      s.cfg.SMTP.Host,
		Port:      s.cfg.SMTP.Port,
		Username:  s.cfg.SMTP.Username,
		Password:  s.cfg.SMTP.Password,
		SSL:       s.cfg.SMTP.SSL,
		StartTLS:  s.cfg.SMTP.StartTLS,
		TLSConfig: s.tlsConfig,
	})
}

// PollEmails lists summary headers for every message, in server LIST
// order, fetching only header content per message. The session is closed
// without deleting anything. Connection, authentication or LIST failure
// fails the whole call; a header-fetch failure for a single message is
// reported on that entry only.
func (s *Service) PollEmails() ([]EmailSummary, error) {
	log := s.log.WithField("tool", "pollEmails")

	sess, err := s.pop3Client().OpenSession()
	if err != nil {
		log.WithError(err).Error("mailbox connection failed")
		return nil, err
	}
	defer sess.Close()

	ids, err := sess.ListIDs()
	if err != nil {
		log.WithError(err).Error("message listing failed")
		return nil, err
	}
	log.WithField("count", len(ids)).Info("polling mailbox")

	results := make([]EmailSummary, 0, len(ids))
	for _, id := range ids {
		msg, err := sess.TopHeaders(id)
		if err != nil {
			log.WithField("id", id).WithError(err).Warn("header fetch failed")
			results = append(results, EmailSummary{
				ID:    id,
				Error: fmt.Sprintf("failed to fetch headers for message %d: %v", id, err),
			})
			continue
		}
		results = append(results, EmailSummary{
			ID:        id,
			Subject:   msg.Subject,
			From:      msg.From,
			Date:      msg.Date,
			MessageID: msg.MessageID,
		})
	}
	return results, nil
}

// GetEmailsByID fetches the full content of each requested message over
// one session. The output is aligned to the input: entry i reports on
// ids[i] (duplicates included), carrying either the header map and the
// preferred body, or an error. One ID's failure never aborts its siblings,
// and nothing is deleted.
func (s *Service) GetEmailsByID(ids []int) ([]FetchedEmail, error) {
	log := s.log.WithField("tool", "getEmailsById")

	sess, err := s.pop3Client().OpenSession()
	if err != nil {
		log.WithError(err).Error("mailbox connection failed")
		return nil, err
	}
	defer sess.Close()

	count := sess.Count()
	results := make([]FetchedEmail, 0, len(ids))
	for _, id := range ids {
		if id < 1 || id > count {
			results = append(results, FetchedEmail{
				ID:    id,
				Error: fmt.Sprintf("invalid or out-of-range ID (%d), mailbox has %d messages", id, count),
			})
			continue
		}

		msg, err := sess.Retrieve(id)
		if err != nil {
			log.WithField("id", id).WithError(err).Warn("message fetch failed")
			results = append(results, FetchedEmail{
				ID:    id,
				Error: fmt.Sprintf("failed to retrieve or parse message %d: %v", id, err),
			})
			continue
		}

		results = append(results, FetchedEmail{
			ID:      id,
			Headers: msg.Headers,
			Body:    msg.PreferredBody(),
		})
	}
	log.WithField("count", len(results)).Info("messages fetched")
	return results, nil
}

// DeleteEmailsByID marks each distinct requested ID for deletion over one
// session; closing the session commits the marks. A mark failure for one
// ID is recorded in Failed and does not stop the remaining IDs. The result
// partitions the request: Deleted and Failed are disjoint and together
// cover every distinct requested ID.
func (s *Service) DeleteEmailsByID(ids []int) (*DeleteResult, error) {
	log := s.log.WithField("tool", "deleteEmailsById")

	sess, err := s.pop3Client().OpenSession()
	if err != nil {
		log.WithError(err).Error("mailbox connection failed")
		return nil, err
	}
	defer sess.Close()

	count := sess.Count()
	result := &DeleteResult{
		Deleted: []int{},
		Failed:  map[int]string{},
	}

	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		if id < 1 || id > count {
			result.Failed[id] = fmt.Sprintf("invalid or out-of-range ID (%d), mailbox has %d messages", id, count)
			continue
		}
		if err := sess.MarkDeleted(id); err != nil {
			log.WithField("id", id).WithError(err).Warn("deletion mark failed")
			result.Failed[id] = err.Error()
			continue
		}
		result.Deleted = append(result.Deleted, id)
	}

	log.WithFields(logrus.Fields{
		"deleted": len(result.Deleted),
		"failed":  len(result.Failed),
	}).Info("deletion marks recorded, committing on close")
	return result, nil
}

// SendTextEmail sends a plain text message. The result is always data:
// connection, authentication and recipient failures are captured in Error
// rather than raised.
func (s *Service) SendTextEmail(from string, to []string, subject, body string) *SendResult {
	return s.send("sendTextEmail", from, to, subject, body, email.ContentTypePlain)
}

// SendHTMLEmail sends an HTML message. The caller-supplied body is sent
// as-is with a text/html content type.
func (s *Service) SendHTMLEmail(from string, to []string, subject, body string) *SendResult {
	return s.send("sendHtmlEmail", from, to, subject, body, email.ContentTypeHTML)
}

func (s *Service) send(tool, from string, to []string, subject, body string, ct email.ContentType) *SendResult {
	log := s.log.WithFields(logrus.Fields{"tool": tool, "recipients": len(to)})

	if len(to) == 0 {
		return &SendResult{Error: "toAddresses must be a non-empty list"}
	}
	if from != s.cfg.User {
		log.WithField("from", from).Warn("fromAddress differs from authenticated user; the server may reject the send")
	}

	err := s.smtpClient().Send(email.OutboundMessage{
		From:        from,
		To:          to,
		Subject:     subject,
		Body:        body,
		ContentType: ct,
	})
	if err != nil {
		log.WithError(err).Error("send failed")
		return &SendResult{Error: err.Error()}
	}

	log.Info("email sent")
	return &SendResult{Status: "success"}
}
