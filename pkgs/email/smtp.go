package email

import (
	"crypto/tls"
	"fmt"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// SMTPClient sends one message per session.
type SMTPClient struct {
	config SMTPConfig
}

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// SSL connects over implicit TLS. StartTLS connects in plaintext and
	// upgrades before authenticating.
	SSL      bool
	StartTLS bool

	// TLSConfig overrides the client TLS configuration. Mainly for tests.
	TLSConfig *tls.Config
}

// NewSMTPClient creates a new SMTP client.
func NewSMTPClient(config SMTPConfig) *SMTPClient {
	return &SMTPClient{config: config}
}

// Send composes the message and transmits it to every recipient over a
// fresh session, which is closed on every exit path. Auth failures,
// recipient rejections and transport errors are returned wrapped with the
// failing stage; a From address the server refuses to relay for surfaces
// here like any other rejection.
func (c *SMTPClient) Send(out OutboundMessage) error {
	msg, err := BuildMessage(out)
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	client, err := c.connect()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.SendMail(out.From, out.To, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// connect dials with the configured security mode and authenticates.
func (c *SMTPClient) connect() (*smtp.Client, error) {
	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)

	tlsCfg := c.config.TLSConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{ServerName: c.config.Host}
	}

	var client *smtp.Client
	var err error
	switch {
	case c.config.SSL:
		client, err = smtp.DialTLS(addr, tlsCfg)
	case c.config.StartTLS:
		client, err = smtp.DialStartTLS(addr, tlsCfg)
	default:
		client, err = smtp.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server: %w", err)
	}

	if c.config.Password != "" {
		auth := sasl.NewPlainClient("", c.config.Username, c.config.Password)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	return client, nil
}
