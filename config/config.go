package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"kijiji-watcher/notify"
)

const defaultSearchURL = "https://www.kijiji.ca/b-room-rental-roommate/ottawa/c36l1700185" +
	"?address=Algonquin%20College%20Ottawa%20Campus,%20Woodroffe%20Avenue,%20Nepean,%20ON" +
	"&ll=45.349934%2C-75.754926&radius=3.0"

// Fetch modes.
const (
	FetchBrowser = "browser"
	FetchHTTP    = "http"
)

// Config holds all settings for one run. It is read once at start-up.
type Config struct {
	SearchURL string
	StorePath string
	LogDir    string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string
	MailTo       []string

	SubjectPrefix     string
	Heading           string
	HighlightKeywords []string

	FetchMode      string
	ChromeBin      string
	Headless       bool
	PageTimeout    time.Duration
	PageSettle     time.Duration
	PageInterval   time.Duration
	MaxPages       int
	MaxRetries     int
	RetryBaseDelay time.Duration

	Enrich        bool
	EnrichMinWait time.Duration
	EnrichMaxWait time.Duration

	Debug bool
}

// notifierFile is the mail settings file. The keys match the older JSON
// config ({"hostname", "email", "password", "receiver"}), which parses as YAML.
type notifierFile struct {
	Hostname string `yaml:"hostname"`
	Port     int    `yaml:"port"`
	Email    string `yaml:"email"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Receiver string `yaml:"receiver"`
}

// Load reads envFile (if present) into the process environment, builds a
// Config from environment variables, then applies the notifier file named by
// notifierPath or NOTIFIER_CONFIG.
func Load(envFile, notifierPath string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Printf("[config] No %s file found, falling back to system env vars", envFile)
	}

	cfg := &Config{
		SearchURL: getEnv("SEARCH_URL", defaultSearchURL),
		StorePath: getEnv("STORE_PATH", "listings.txt"),
		LogDir:    getEnv("LOG_DIR", "./logs"),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 25),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		MailFrom:     getEnv("MAIL_FROM", ""),
		MailTo:       getEnvList("MAIL_TO", nil),

		SubjectPrefix:     getEnv("SUBJECT_PREFIX", "Listing watch "),
		Heading:           getEnv("DIGEST_HEADING", "New listings"),
		HighlightKeywords: getEnvList("HIGHLIGHT_KEYWORDS", []string{"Sep", "sep", "Aug", "aug"}),

		FetchMode:      strings.ToLower(getEnv("FETCH_MODE", FetchBrowser)),
		ChromeBin:      getEnv("CHROME_BIN", ""),
		Headless:       getEnvBool("HEADLESS", true),
		PageTimeout:    getEnvMillis("PAGE_TIMEOUT_MS", 60000),
		PageSettle:     getEnvMillis("PAGE_SETTLE_MS", 3000),
		PageInterval:   getEnvMillis("PAGE_INTERVAL_MS", 2000),
		MaxPages:       getEnvInt("MAX_PAGES", 50),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		RetryBaseDelay: getEnvMillis("RETRY_BASE_DELAY_MS", 2000),

		Enrich:        getEnvBool("ENRICH_DESCRIPTIONS", true),
		EnrichMinWait: getEnvMillis("ENRICH_MIN_DELAY_MS", 1000),
		EnrichMaxWait: getEnvMillis("ENRICH_MAX_DELAY_MS", 3000),

		Debug: getEnvBool("DEBUG", false),
	}

	if notifierPath == "" {
		notifierPath = os.Getenv("NOTIFIER_CONFIG")
	}
	if notifierPath != "" {
		if err := cfg.applyNotifierFile(notifierPath); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (c *Config) applyNotifierFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read notifier file: %w", err)
	}

	var nf notifierFile
	if err := yaml.Unmarshal(data, &nf); err != nil {
		return fmt.Errorf("config: parse notifier file %s: %w", path, err)
	}

	if nf.Hostname != "" {
		c.SMTPHost = nf.Hostname
	}
	if nf.Port != 0 {
		c.SMTPPort = nf.Port
	}
	if nf.Email != "" {
		c.MailFrom = nf.Email
		if c.SMTPUser == "" {
			c.SMTPUser = nf.Email
		}
	}
	if nf.Username != "" {
		c.SMTPUser = nf.Username
	}
	if nf.Password != "" {
		c.SMTPPassword = nf.Password
	}
	if nf.Receiver != "" {
		c.MailTo = splitList(nf.Receiver)
	}
	return nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.SearchURL == "" {
		errs = append(errs, errors.New("search URL is required"))
	}
	if c.StorePath == "" {
		errs = append(errs, errors.New("STORE_PATH is required"))
	}
	if c.SMTPHost == "" {
		errs = append(errs, errors.New("SMTP host is required (SMTP_HOST or notifier file)"))
	}
	if c.MailFrom == "" {
		errs = append(errs, errors.New("sender address is required (MAIL_FROM or notifier file)"))
	}
	if len(c.MailTo) == 0 {
		errs = append(errs, errors.New("at least one receiver is required (MAIL_TO or notifier file)"))
	}
	if c.FetchMode != FetchBrowser && c.FetchMode != FetchHTTP {
		errs = append(errs, fmt.Errorf("FETCH_MODE must be %q or %q, got %q", FetchBrowser, FetchHTTP, c.FetchMode))
	}
	if c.EnrichMinWait < 0 || c.EnrichMaxWait < c.EnrichMinWait {
		errs = append(errs, fmt.Errorf("enrichment delay bounds invalid: min %v, max %v", c.EnrichMinWait, c.EnrichMaxWait))
	}
	if c.PageTimeout <= 0 {
		errs = append(errs, errors.New("PAGE_TIMEOUT_MS must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// SMTP returns the mail settings in the form the notifier expects.
func (c *Config) SMTP() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUser,
		Password: c.SMTPPassword,
		From:     c.MailFrom,
		To:       c.MailTo,
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvMillis(key string, fallbackMs int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackMs)) * time.Millisecond
}

func getEnvList(key string, fallback []string) []string {
	if val, ok := os.LookupEnv(key); ok {
		return splitList(val)
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
