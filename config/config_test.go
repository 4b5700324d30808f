package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func missingEnvFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NOTIFIER_CONFIG", "")

	cfg, err := Load(missingEnvFile(t), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.StorePath != "listings.txt" {
		t.Errorf("StorePath: got %q, want listings.txt", cfg.StorePath)
	}
	if cfg.MaxPages != 50 {
		t.Errorf("MaxPages: got %d, want 50", cfg.MaxPages)
	}
	if cfg.FetchMode != FetchBrowser {
		t.Errorf("FetchMode: got %q, want %q", cfg.FetchMode, FetchBrowser)
	}
	if !cfg.Enrich {
		t.Error("Enrich should default to true")
	}
	if cfg.EnrichMinWait != time.Second || cfg.EnrichMaxWait != 3*time.Second {
		t.Errorf("enrich delay: got %v..%v, want 1s..3s", cfg.EnrichMinWait, cfg.EnrichMaxWait)
	}
	if got := strings.Join(cfg.HighlightKeywords, ","); got != "Sep,sep,Aug,aug" {
		t.Errorf("HighlightKeywords: got %s", got)
	}
	if !strings.HasPrefix(cfg.SearchURL, "https://www.kijiji.ca/") {
		t.Errorf("SearchURL: got %q", cfg.SearchURL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NOTIFIER_CONFIG", "")
	t.Setenv("STORE_PATH", "/data/seen.tsv")
	t.Setenv("MAX_PAGES", "7")
	t.Setenv("FETCH_MODE", "HTTP")
	t.Setenv("ENRICH_DESCRIPTIONS", "false")
	t.Setenv("MAIL_TO", " a@example.com, b@example.com ,")
	t.Setenv("HIGHLIGHT_KEYWORDS", "")
	t.Setenv("PAGE_INTERVAL_MS", "not-a-number")

	cfg, err := Load(missingEnvFile(t), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.StorePath != "/data/seen.tsv" {
		t.Errorf("StorePath: got %q", cfg.StorePath)
	}
	if cfg.MaxPages != 7 {
		t.Errorf("MaxPages: got %d, want 7", cfg.MaxPages)
	}
	if cfg.FetchMode != FetchHTTP {
		t.Errorf("FetchMode: got %q, want %q", cfg.FetchMode, FetchHTTP)
	}
	if cfg.Enrich {
		t.Error("Enrich: got true, want false")
	}
	if got := strings.Join(cfg.MailTo, ";"); got != "a@example.com;b@example.com" {
		t.Errorf("MailTo: got %q", got)
	}
	if len(cfg.HighlightKeywords) != 0 {
		t.Errorf("HighlightKeywords: got %v, want none", cfg.HighlightKeywords)
	}
	if cfg.PageInterval != 2*time.Second {
		t.Errorf("PageInterval: got %v, want fallback 2s", cfg.PageInterval)
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	t.Setenv("NOTIFIER_CONFIG", "")
	t.Setenv("SMTP_HOST", "")
	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("SMTP_HOST=mail.example.com\n"), 0644); err != nil {
		t.Fatal(err)
	}
	// godotenv does not override variables that are already set, even empty.
	os.Unsetenv("SMTP_HOST")

	cfg, err := Load(envFile, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SMTPHost != "mail.example.com" {
		t.Errorf("SMTPHost: got %q, want mail.example.com", cfg.SMTPHost)
	}
}

func TestNotifierFileLegacyJSON(t *testing.T) {
	t.Setenv("MAIL_FROM", "")
	t.Setenv("SMTP_USER", "")
	path := filepath.Join(t.TempDir(), "notifier.json")
	body := `{"hostname": "smtp.example.com", "email": "bot@example.com", "password": "s3cret", "receiver": "me@example.com"}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(missingEnvFile(t), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	smtp := cfg.SMTP()
	if smtp.Host != "smtp.example.com" || smtp.Port != 25 {
		t.Errorf("server: got %s:%d", smtp.Host, smtp.Port)
	}
	if smtp.From != "bot@example.com" || smtp.Username != "bot@example.com" {
		t.Errorf("sender: got from=%q user=%q", smtp.From, smtp.Username)
	}
	if smtp.Password != "s3cret" {
		t.Errorf("Password: got %q", smtp.Password)
	}
	if len(smtp.To) != 1 || smtp.To[0] != "me@example.com" {
		t.Errorf("To: got %v", smtp.To)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestNotifierFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifier.yaml")
	body := "hostname: smtp.example.com\nport: 587\nemail: bot@example.com\nusername: login\nreceiver: a@example.com, b@example.com\n"
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NOTIFIER_CONFIG", path)

	cfg, err := Load(missingEnvFile(t), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SMTPPort != 587 {
		t.Errorf("SMTPPort: got %d, want 587", cfg.SMTPPort)
	}
	if cfg.SMTPUser != "login" {
		t.Errorf("SMTPUser: got %q, want login", cfg.SMTPUser)
	}
	if len(cfg.MailTo) != 2 {
		t.Errorf("MailTo: got %v", cfg.MailTo)
	}
}

func TestNotifierFileErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("hostname: [unterminated"), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "nope.yaml")},
		{"unparseable", bad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(missingEnvFile(t), tt.path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			SearchURL:     "https://www.kijiji.ca/s",
			StorePath:     "listings.txt",
			SMTPHost:      "smtp.example.com",
			MailFrom:      "bot@example.com",
			MailTo:        []string{"me@example.com"},
			FetchMode:     FetchBrowser,
			PageTimeout:   time.Minute,
			EnrichMinWait: time.Second,
			EnrichMaxWait: 3 * time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no host", func(c *Config) { c.SMTPHost = "" }, "SMTP host"},
		{"no receiver", func(c *Config) { c.MailTo = nil }, "receiver"},
		{"bad mode", func(c *Config) { c.FetchMode = "curl" }, "FETCH_MODE"},
		{"inverted delay", func(c *Config) { c.EnrichMaxWait = 0 }, "delay bounds"},
		{"no store", func(c *Config) { c.StorePath = "" }, "STORE_PATH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("got %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
