package mailtest

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
)

// SMTPOptions configures a mock SMTP server.
type SMTPOptions struct {
	// UseTLS listens with implicit TLS.
	UseTLS bool
	// EnableSTARTTLS advertises STARTTLS on a plaintext listener.
	EnableSTARTTLS bool
}

// ReceivedMessage is one message accepted by the mock SMTP server.
type ReceivedMessage struct {
	From string
	To   []string
	Data []byte
}

// SMTPBackend collects messages accepted by the mock server.
type SMTPBackend struct {
	mu       sync.Mutex
	messages []*ReceivedMessage
}

func (be *SMTPBackend) NewSession(_ *gosmtp.Conn) (gosmtp.Session, error) {
	return &smtpSession{backend: be}, nil
}

// Messages returns a copy of everything received so far.
func (be *SMTPBackend) Messages() []*ReceivedMessage {
	be.mu.Lock()
	defer be.mu.Unlock()
	return append([]*ReceivedMessage(nil), be.messages...)
}

type smtpSession struct {
	backend *SMTPBackend
	msg     *ReceivedMessage
}

func (s *smtpSession) AuthMechanisms() []string { return []string{"PLAIN"} }

func (s *smtpSession) Auth(mech string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(_, username, password string) error {
		if username != TestUser || password != TestPass {
			return errors.New("invalid credentials")
		}
		return nil
	}), nil
}

func (s *smtpSession) Mail(from string, _ *gosmtp.MailOptions) error {
	s.msg = &ReceivedMessage{From: from}
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	s.msg.To = append(s.msg.To, to)
	return nil
}

func (s *smtpSession) Data(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.msg.Data = b
	s.backend.mu.Lock()
	s.backend.messages = append(s.backend.messages, s.msg)
	s.backend.mu.Unlock()
	return nil
}

func (s *smtpSession) Reset()        { s.msg = nil }
func (s *smtpSession) Logout() error { return nil }

var _ gosmtp.AuthSession = (*smtpSession)(nil)

// NewSMTPServer starts a mock SMTP server. It returns the backend, for
// inspecting received mail, and the listen address.
func NewSMTPServer(t *testing.T, opts SMTPOptions) (*SMTPBackend, string) {
	t.Helper()

	be := &SMTPBackend{}
	srv := gosmtp.NewServer(be)
	srv.Domain = "localhost"

	var ln net.Listener
	var err error
	switch {
	case opts.UseTLS:
		ln, err = tls.Listen("tcp", "127.0.0.1:0", NewServerTLSConfig(t))
	case opts.EnableSTARTTLS:
		srv.TLSConfig = NewServerTLSConfig(t)
		ln, err = net.Listen("tcp", "127.0.0.1:0")
	default:
		srv.AllowInsecureAuth = true
		ln, err = net.Listen("tcp", "127.0.0.1:0")
	}
	if err != nil {
		t.Fatal(err)
	}

	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })

	return be, ln.Addr().String()
}
