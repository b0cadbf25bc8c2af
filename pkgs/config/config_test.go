package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// setBaseEnv sets the required variables and blanks the optional ones so
// ambient environment cannot leak into a test.
func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvEmailUser, "user@example.com")
	t.Setenv(EnvEmailPass, "secret")
	t.Setenv(EnvPOP3Server, "pop.example.com")
	t.Setenv(EnvSMTPServer, "smtp.example.com")
	t.Setenv(EnvPOP3Port, "")
	t.Setenv(EnvSMTPPort, "")
	t.Setenv(EnvSMTPUseSSL, "")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.User != "user@example.com" {
		t.Errorf("User = %q", cfg.User)
	}

	if cfg.POP3.Host != "pop.example.com" {
		t.Errorf("POP3.Host = %q", cfg.POP3.Host)
	}
	if cfg.POP3.Port != DefaultPOP3Port {
		t.Errorf("POP3.Port = %d, want %d", cfg.POP3.Port, DefaultPOP3Port)
	}
	if !cfg.POP3.SSL {
		t.Error("POP3.SSL should always be set")
	}
	if cfg.POP3.Username != "user@example.com" || cfg.POP3.Password != "secret" {
		t.Errorf("POP3 credentials = %q/%q", cfg.POP3.Username, cfg.POP3.Password)
	}

	if cfg.SMTP.Port != DefaultSMTPPortStartTLS {
		t.Errorf("SMTP.Port = %d, want %d", cfg.SMTP.Port, DefaultSMTPPortStartTLS)
	}
	if cfg.SMTP.SSL || !cfg.SMTP.StartTLS {
		t.Errorf("SMTP SSL/StartTLS = %v/%v, want STARTTLS by default", cfg.SMTP.SSL, cfg.SMTP.StartTLS)
	}
}

func TestLoad_SMTPImplicitTLS(t *testing.T) {
	setBaseEnv(t)
	t.Setenv(EnvSMTPUseSSL, "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.SMTP.Port != DefaultSMTPPortSSL {
		t.Errorf("SMTP.Port = %d, want %d", cfg.SMTP.Port, DefaultSMTPPortSSL)
	}
	if !cfg.SMTP.SSL || cfg.SMTP.StartTLS {
		t.Errorf("SMTP SSL/StartTLS = %v/%v, want implicit TLS only", cfg.SMTP.SSL, cfg.SMTP.StartTLS)
	}
}

func TestLoad_SMTPUseSSLSpellings(t *testing.T) {
	truthy := []string{"true", "TRUE", "1", "yes", "Yes", "y", "on", "ON"}
	for _, val := range truthy {
		t.Run(val, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(EnvSMTPUseSSL, val)

			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if !cfg.SMTP.SSL || cfg.SMTP.Port != DefaultSMTPPortSSL {
				t.Errorf("%q: SSL=%v Port=%d, want implicit TLS on %d",
					val, cfg.SMTP.SSL, cfg.SMTP.Port, DefaultSMTPPortSSL)
			}
		})
	}

	falsy := []string{"false", "0", "no", "off", ""}
	for _, val := range falsy {
		t.Run("falsy_"+val, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(EnvSMTPUseSSL, val)

			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.SMTP.SSL || cfg.SMTP.Port != DefaultSMTPPortStartTLS {
				t.Errorf("%q: SSL=%v Port=%d, want STARTTLS on %d",
					val, cfg.SMTP.SSL, cfg.SMTP.Port, DefaultSMTPPortStartTLS)
			}
		})
	}
}

func TestLoad_ExplicitPorts(t *testing.T) {
	setBaseEnv(t)
	t.Setenv(EnvPOP3Port, "1995")
	t.Setenv(EnvSMTPPort, "2525")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.POP3.Port != 1995 {
		t.Errorf("POP3.Port = %d, want 1995", cfg.POP3.Port)
	}
	if cfg.SMTP.Port != 2525 {
		t.Errorf("SMTP.Port = %d, want 2525", cfg.SMTP.Port)
	}
}

func TestLoad_MissingVariables(t *testing.T) {
	t.Setenv(EnvEmailUser, "user@example.com")
	t.Setenv(EnvEmailPass, "")
	t.Setenv(EnvPOP3Server, "")
	t.Setenv(EnvSMTPServer, "")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error for missing variables")
	}
	for _, name := range []string{EnvEmailPass, EnvPOP3Server, EnvSMTPServer} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not name %s", err, name)
		}
	}
	if strings.Contains(err.Error(), EnvEmailUser) {
		t.Errorf("error %q names %s, which was set", err, EnvEmailUser)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	t.Setenv(EnvEmailUser, "")
	t.Setenv(EnvEmailPass, "")
	t.Setenv(EnvPOP3Server, "")
	t.Setenv(EnvSMTPServer, "")
	t.Setenv(EnvPOP3Port, "")
	t.Setenv(EnvSMTPPort, "")
	t.Setenv(EnvSMTPUseSSL, "")

	path := filepath.Join(t.TempDir(), ".env")
	content := "EMAIL_USER=file@example.com\n" +
		"EMAIL_PASS=filepass\n" +
		"POP3_SERVER=pop.file.example.com\n" +
		"SMTP_SERVER=smtp.file.example.com\n" +
		"SMTP_PORT=2465\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.User != "file@example.com" {
		t.Errorf("User = %q, want the file value", cfg.User)
	}
	if cfg.POP3.Host != "pop.file.example.com" {
		t.Errorf("POP3.Host = %q", cfg.POP3.Host)
	}
	if cfg.SMTP.Port != 2465 {
		t.Errorf("SMTP.Port = %d, want 2465 from the file", cfg.SMTP.Port)
	}
	if cfg.POP3.Port != DefaultPOP3Port {
		t.Errorf("POP3.Port = %d, want the default below the file", cfg.POP3.Port)
	}
}

func TestLoad_ImplicitDotEnv(t *testing.T) {
	t.Setenv(EnvEmailUser, "")
	t.Setenv(EnvEmailPass, "")
	t.Setenv(EnvPOP3Server, "")
	t.Setenv(EnvSMTPServer, "")
	t.Setenv(EnvPOP3Port, "")
	t.Setenv(EnvSMTPPort, "")
	t.Setenv(EnvSMTPUseSSL, "")

	dir := t.TempDir()
	content := "EMAIL_USER=dotenv@example.com\n" +
		"EMAIL_PASS=dotenvpass\n" +
		"POP3_SERVER=pop.dotenv.example.com\n" +
		"SMTP_SERVER=smtp.dotenv.example.com\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.User != "dotenv@example.com" {
		t.Errorf("User = %q, want the implicit .env value", cfg.User)
	}
	if cfg.POP3.Host != "pop.dotenv.example.com" {
		t.Errorf("POP3.Host = %q", cfg.POP3.Host)
	}
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "EMAIL_USER=file@example.com\n" +
		"EMAIL_PASS=filepass\n" +
		"POP3_SERVER=pop.file.example.com\n" +
		"SMTP_SERVER=smtp.file.example.com\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvEmailUser, "env@example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.User != "env@example.com" {
		t.Errorf("User = %q, environment should win over the file", cfg.User)
	}
	if cfg.POP3.Password != "filepass" {
		t.Errorf("POP3.Password = %q, want the file value", cfg.POP3.Password)
	}
}

func TestLoad_EnvFileMissing(t *testing.T) {
	setBaseEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	if err == nil {
		t.Fatal("expected error for a missing env file")
	}
}
