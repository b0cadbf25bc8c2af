// Package config loads the mail endpoint configuration from the process
// environment, optionally layered over a dotenv file. The configuration is
// read once at startup into an immutable Config that session constructors
// receive explicitly.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Environment variables consumed by Load.
const (
	EnvEmailUser  = "EMAIL_USER"
	EnvEmailPass  = "EMAIL_PASS"
	EnvPOP3Server = "POP3_SERVER"
	EnvPOP3Port   = "POP3_PORT"
	EnvSMTPServer = "SMTP_SERVER"
	EnvSMTPPort   = "SMTP_PORT"
	EnvSMTPUseSSL = "SMTP_USE_SSL"
)

// Port defaults: POP3 over implicit TLS, SMTP submission with STARTTLS, and
// SMTP over implicit TLS.
const (
	DefaultPOP3Port         = 995
	DefaultSMTPPortStartTLS = 587
	DefaultSMTPPortSSL      = 465
)

// ProtocolSettings holds connection settings for one mail endpoint.
type ProtocolSettings struct {
	Host     string
	Port     int
	Username string
	Password string

	// SSL enables implicit TLS (connect directly over TLS).
	SSL bool
	// StartTLS enables TLS upgrade after connecting in plaintext.
	StartTLS bool
}

// Config is the application configuration. Both endpoints authenticate with
// the same account credentials.
type Config struct {
	// User is the account identity, also used as the expected From address.
	User string

	POP3 ProtocolSettings
	SMTP ProtocolSettings
}

// Load reads the configuration from the environment. envFile, when
// non-empty, names a dotenv file whose values sit below the real
// environment: environment variables win over file entries, file entries
// win over defaults. When envFile is empty, ./.env is read if it exists.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		if _, err := os.Stat(".env"); err == nil {
			envFile = ".env"
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault(EnvPOP3Port, DefaultPOP3Port)
	v.SetDefault(EnvSMTPUseSSL, false)

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("dotenv")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
		}
	}

	smtpSSL := parseBoolish(v.GetString(EnvSMTPUseSSL))
	if smtpSSL {
		v.SetDefault(EnvSMTPPort, DefaultSMTPPortSSL)
	} else {
		v.SetDefault(EnvSMTPPort, DefaultSMTPPortStartTLS)
	}

	user := v.GetString(EnvEmailUser)
	pass := v.GetString(EnvEmailPass)

	cfg := &Config{
		User: user,
		POP3: ProtocolSettings{
			Host:     v.GetString(EnvPOP3Server),
			Port:     v.GetInt(EnvPOP3Port),
			Username: user,
			Password: pass,
			SSL:      true,
		},
		SMTP: ProtocolSettings{
			Host:     v.GetString(EnvSMTPServer),
			Port:     v.GetInt(EnvSMTPPort),
			Username: user,
			Password: pass,
			SSL:      smtpSSL,
			StartTLS: !smtpSSL,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseBoolish reads the truthy spellings mail configurations commonly use.
// Anything else, including the empty string, is false.
func parseBoolish(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

// Validate reports every missing required variable at once so a
// misconfigured deployment fails with a complete message.
func (c *Config) Validate() error {
	var missing []string
	if c.User == "" {
		missing = append(missing, EnvEmailUser)
	}
	if c.POP3.Password == "" {
		missing = append(missing, EnvEmailPass)
	}
	if c.POP3.Host == "" {
		missing = append(missing, EnvPOP3Server)
	}
	if c.SMTP.Host == "" {
		missing = append(missing, EnvSMTPServer)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}
