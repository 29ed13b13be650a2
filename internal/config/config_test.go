package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 30, cfg.Storage.RetentionDays)
	assert.Equal(t, "0 9 * * *", cfg.Scheduler.CronExpression)
	assert.Equal(t, []string{"cs.SE", "cs.CV", "cs.AI", "cs.CR", "cs.LG", "cs.RO"}, cfg.Categories)
	assert.Equal(t, time.UTC.String(), cfg.Scheduler.Location().String())
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeFile(t, "config.yaml", `
categories: [cs.AI]
storage:
  dataDir: /srv/digest
pipeline:
  chunkSize: 10
  summarizeTimeout: 90s
notifications:
  telegram:
    botToken: file-token
scheduler:
  timezone: Asia/Shanghai
`)
	t.Setenv("ARXIV_CATEGORIES", "cs.LG, cs.CV")
	t.Setenv("APP_RETENTION_DAYS", "0")
	t.Setenv("APP_DAILY_TIME", "07:30")
	t.Setenv("SMTP_TO", "a@example.com, b@example.com")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"cs.LG", "cs.CV"}, cfg.Categories)
	assert.Equal(t, "/srv/digest", cfg.Storage.DataDir)
	assert.Equal(t, 0, cfg.Storage.RetentionDays)
	assert.Equal(t, 10, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 90*time.Second, cfg.Pipeline.SummarizeTimeout)
	assert.Equal(t, time.Minute, cfg.Pipeline.NotifyTimeout, "unset fields keep defaults")
	assert.Equal(t, "30 7 * * *", cfg.Scheduler.CronExpression)
	assert.Equal(t, "Asia/Shanghai", cfg.Scheduler.Location().String())
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Notifications.Email.To)
	assert.True(t, cfg.Notifications.Telegram.Enabled())
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"chunk size":  "pipeline:\n  chunkSize: 0\n",
		"provider":    "summarizer:\n  provider: claude\n",
		"strategy":    "fetch:\n  strategy: rss\n",
		"timezone":    "scheduler:\n  timezone: Mars/Olympus\n",
		"no category": "categories: []\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDailyTimeToCron(t *testing.T) {
	expr, err := DailyTimeToCron("09:05")
	require.NoError(t, err)
	assert.Equal(t, "5 9 * * *", expr)

	for _, bad := range []string{"9", "24:00", "12:60", "ab:cd"} {
		_, err := DailyTimeToCron(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := writeFile(t, ".env", "ARXIV_DIGEST_TEST_VALUE=from-file\n")
	t.Setenv("ARXIV_DIGEST_TEST_VALUE", "")
	require.NoError(t, os.Unsetenv("ARXIV_DIGEST_TEST_VALUE"))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("ARXIV_DIGEST_TEST_VALUE"))

	assert.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}

func TestEnabledHelpers(t *testing.T) {
	email := EmailConfig{Host: "smtp", User: "u", Password: "p"}
	assert.False(t, email.Enabled())
	email.To = []string{"x@example.com"}
	assert.True(t, email.Enabled())
	assert.Equal(t, "u", email.Sender())

	s := SummarizerConfig{Provider: ProviderGemini, Gemini: GeminiConfig{APIKey: "k", ChunkModel: "c", OverallModel: "o"}}
	assert.True(t, s.Enabled())
	chunk, overall := s.Models()
	assert.Equal(t, "c", chunk)
	assert.Equal(t, "o", overall)
}
