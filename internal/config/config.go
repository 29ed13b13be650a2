package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "ARXIV_DIGEST_CONFIG"
)

// Summarizer providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Fetch strategies, matching the scanner registry names.
const (
	StrategyAPI     = "arxiv-api"
	StrategyListing = "arxiv-listing"
)

// Config holds high-level settings required across the application.
type Config struct {
	Categories    []string           `yaml:"categories"`
	Fetch         FetchConfig        `yaml:"fetch"`
	Storage       StorageConfig      `yaml:"storage"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Summarizer    SummarizerConfig   `yaml:"summarizer"`
	Notifications NotificationConfig `yaml:"notifications"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Logging       LoggingConfig      `yaml:"logging"`
	Status        StatusConfig       `yaml:"status"`
}

// FetchConfig selects the feed strategy and its endpoints.
type FetchConfig struct {
	Strategy  string            `yaml:"strategy"`
	APIURL    string            `yaml:"apiUrl"`
	Endpoints map[string]string `yaml:"endpoints"`
	Timeout   time.Duration     `yaml:"timeout"`
}

// StorageConfig describes where artifacts and the run ledger live.
type StorageConfig struct {
	DataDir       string `yaml:"dataDir"`
	RetentionDays int    `yaml:"retentionDays"`
	LedgerPath    string `yaml:"ledgerPath"`
}

// PipelineConfig tunes chunking and step timeouts.
type PipelineConfig struct {
	ChunkSize        int           `yaml:"chunkSize"`
	SummarizeTimeout time.Duration `yaml:"summarizeTimeout"`
	NotifyTimeout    time.Duration `yaml:"notifyTimeout"`
}

// SummarizerConfig picks the text-generation provider.
type SummarizerConfig struct {
	Provider string       `yaml:"provider"`
	Language string       `yaml:"language"`
	OpenAI   OpenAIConfig `yaml:"openai"`
	Gemini   GeminiConfig `yaml:"gemini"`
}

// OpenAIConfig defines how to contact an OpenAI-compatible API.
type OpenAIConfig struct {
	BaseURL      string `yaml:"baseUrl"`
	APIKey       string `yaml:"apiKey"`
	ChunkModel   string `yaml:"chunkModel"`
	OverallModel string `yaml:"overallModel"`
}

// GeminiConfig defines how to contact the Gemini API.
type GeminiConfig struct {
	APIKey       string `yaml:"apiKey"`
	ChunkModel   string `yaml:"chunkModel"`
	OverallModel string `yaml:"overallModel"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Email    EmailConfig    `yaml:"email"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// EmailConfig carries SMTP delivery settings.
type EmailConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	User     string   `yaml:"user"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// SchedulerConfig defines when the pipeline should run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Path   string `yaml:"path"`
}

// StatusConfig enables the read-only status server when Addr is set.
type StatusConfig struct {
	Addr string `yaml:"addr"`
}

// envOverrides lists the environment variables honoured on top of the file.
type envOverrides struct {
	Categories     []string `envconfig:"ARXIV_CATEGORIES"`
	Timezone       string   `envconfig:"APP_TIMEZONE"`
	DailyTime      string   `envconfig:"APP_DAILY_TIME"`
	DataDir        string   `envconfig:"APP_DATA_DIR"`
	RetentionDays  *int     `envconfig:"APP_RETENTION_DAYS"`
	OpenAIBaseURL  string   `envconfig:"OPENAI_BASE_URL"`
	OpenAIAPIKey   string   `envconfig:"OPENAI_API_KEY"`
	ChunkModel     string   `envconfig:"OPENAI_CHUNK_MODEL"`
	OverallModel   string   `envconfig:"OPENAI_OVERALL_MODEL"`
	GeminiAPIKey   string   `envconfig:"GEMINI_API_KEY"`
	SMTPHost       string   `envconfig:"SMTP_HOST"`
	SMTPPort       int      `envconfig:"SMTP_PORT"`
	SMTPUser       string   `envconfig:"SMTP_USER"`
	SMTPPassword   string   `envconfig:"SMTP_PASSWORD"`
	SMTPFrom       string   `envconfig:"SMTP_FROM"`
	SMTPTo         []string `envconfig:"SMTP_TO"`
	TelegramToken  string   `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID string   `envconfig:"TELEGRAM_CHAT_ID"`
	LogLevel       string   `envconfig:"LOG_LEVEL"`
	StatusAddr     string   `envconfig:"STATUS_ADDR"`
	LedgerPath     string   `envconfig:"LEDGER_PATH"`
}

// LoadEnvFile loads variables from a .env file without overriding the
// environment. An explicit path must be readable; otherwise a .env in the
// working directory is loaded when present.
func LoadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	_ = godotenv.Load()
	return nil
}

// Load reads YAML configuration (if a path is given or set in
// ARXIV_DIGEST_CONFIG), applies environment overrides and validates the
// result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	if err := cfg.bindTimezone(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	if len(env.Categories) > 0 {
		c.Categories = env.Categories
	}
	if env.Timezone != "" {
		c.Scheduler.Timezone = env.Timezone
	}
	if env.DailyTime != "" {
		expr, err := DailyTimeToCron(env.DailyTime)
		if err != nil {
			return err
		}
		c.Scheduler.CronExpression = expr
	}
	if env.DataDir != "" {
		c.Storage.DataDir = env.DataDir
	}
	if env.RetentionDays != nil {
		c.Storage.RetentionDays = *env.RetentionDays
	}
	if env.LedgerPath != "" {
		c.Storage.LedgerPath = env.LedgerPath
	}

	if env.OpenAIBaseURL != "" {
		c.Summarizer.OpenAI.BaseURL = env.OpenAIBaseURL
	}
	if env.OpenAIAPIKey != "" {
		c.Summarizer.OpenAI.APIKey = env.OpenAIAPIKey
	}
	if env.ChunkModel != "" {
		c.Summarizer.OpenAI.ChunkModel = env.ChunkModel
	}
	if env.OverallModel != "" {
		c.Summarizer.OpenAI.OverallModel = env.OverallModel
	}
	if env.GeminiAPIKey != "" {
		c.Summarizer.Gemini.APIKey = env.GeminiAPIKey
	}

	email := &c.Notifications.Email
	if env.SMTPHost != "" {
		email.Host = env.SMTPHost
	}
	if env.SMTPPort != 0 {
		email.Port = env.SMTPPort
	}
	if env.SMTPUser != "" {
		email.User = env.SMTPUser
	}
	if env.SMTPPassword != "" {
		email.Password = env.SMTPPassword
	}
	if env.SMTPFrom != "" {
		email.From = env.SMTPFrom
	}
	if len(env.SMTPTo) > 0 {
		email.To = env.SMTPTo
	}

	if env.TelegramToken != "" {
		c.Notifications.Telegram.BotToken = env.TelegramToken
	}
	if env.TelegramChatID != "" {
		c.Notifications.Telegram.ChatID = env.TelegramChatID
	}
	if env.LogLevel != "" {
		c.Logging.Level = env.LogLevel
	}
	if env.StatusAddr != "" {
		c.Status.Addr = env.StatusAddr
	}
	return nil
}

// normalize trims list entries that usually come from comma-separated input.
func (c *Config) normalize() {
	c.Categories = compact(c.Categories)
	c.Notifications.Email.To = compact(c.Notifications.Email.To)
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (c *Config) bindTimezone() error {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("unknown timezone %s: %w", tz, err)
	}
	c.Scheduler.Timezone = tz
	c.Scheduler.location = loc
	return nil
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// DailyTimeToCron turns an HH:MM wall-clock time into a daily cron spec.
func DailyTimeToCron(value string) (string, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("daily time %q: want HH:MM", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("daily time %q: bad hour", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("daily time %q: bad minute", value)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Categories, validation.Required, validation.Each(validation.Required)),
	); err != nil {
		return err
	}
	if err := c.Fetch.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	if err := c.Summarizer.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	return c.Scheduler.Validate()
}

// Validate validates the fetch configuration.
func (c *FetchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Strategy, validation.Required, validation.In(StrategyAPI, StrategyListing)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DataDir, validation.Required),
		validation.Field(&c.RetentionDays, validation.Min(0)),
	)
}

// Validate validates the pipeline configuration.
func (c *PipelineConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ChunkSize, validation.Required, validation.Min(1)),
		validation.Field(&c.SummarizeTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.NotifyTimeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

// Validate validates the summarizer configuration.
func (c *SummarizerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(ProviderOpenAI, ProviderGemini)),
	)
}

// Validate validates the logging configuration.
func (c *LoggingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Level, validation.In("debug", "info", "warn", "warning", "error")),
		validation.Field(&c.Format, validation.In("text", "json")),
	)
}

// Validate validates the scheduler configuration.
func (c *SchedulerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CronExpression, validation.Required),
	)
}

// Enabled reports whether the selected provider has credentials.
func (c SummarizerConfig) Enabled() bool {
	switch c.Provider {
	case ProviderOpenAI:
		return c.OpenAI.APIKey != ""
	case ProviderGemini:
		return c.Gemini.APIKey != ""
	default:
		return false
	}
}

// Models returns the chunk and overall model names of the selected provider.
func (c SummarizerConfig) Models() (chunk, overall string) {
	if c.Provider == ProviderGemini {
		return c.Gemini.ChunkModel, c.Gemini.OverallModel
	}
	return c.OpenAI.ChunkModel, c.OpenAI.OverallModel
}

// Enabled reports whether SMTP delivery is fully configured.
func (c EmailConfig) Enabled() bool {
	return c.Host != "" && c.User != "" && c.Password != "" && len(c.To) > 0
}

// Sender returns the From address, falling back to the login user.
func (c EmailConfig) Sender() string {
	if c.From != "" {
		return c.From
	}
	return c.User
}

// Enabled reports whether the bot token and chat are set.
func (c TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.ChatID != ""
}

// Default returns the configuration used when no file is given.
func Default() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Categories: []string{"cs.SE", "cs.CV", "cs.AI", "cs.CR", "cs.LG", "cs.RO"},
		Fetch: FetchConfig{
			Strategy: StrategyAPI,
			Timeout:  2 * time.Minute,
		},
		Storage: StorageConfig{
			DataDir:       "data",
			RetentionDays: 30,
		},
		Pipeline: PipelineConfig{
			ChunkSize:        20,
			SummarizeTimeout: 3 * time.Minute,
			NotifyTimeout:    time.Minute,
		},
		Summarizer: SummarizerConfig{
			Provider: ProviderOpenAI,
			Language: "Chinese",
			OpenAI: OpenAIConfig{
				BaseURL:      "https://api.openai.com/v1",
				ChunkModel:   "gpt-4.1-mini",
				OverallModel: "gpt-4.1",
			},
			Gemini: GeminiConfig{
				ChunkModel:   "gemini-1.5-flash",
				OverallModel: "gemini-1.5-pro",
			},
		},
		Notifications: NotificationConfig{
			Email: EmailConfig{Port: 465},
		},
		Scheduler: SchedulerConfig{CronExpression: "0 9 * * *", Timezone: defaultTimezone, location: tz},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}
