package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"RABBITMQ_URL", "REDIS_ADDR", "BREVO_HOST", "UPLOADS_URL_PREFIX", "PAYMENT_CHECK_DELAY"} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "/uploads", cfg.UploadsURLPrefix)
	assert.Equal(t, 15*time.Minute, cfg.PaymentCheckIn)
	assert.Equal(t, 10, cfg.MaxPriority)
	assert.False(t, cfg.MessagingEnabled())
	assert.False(t, cfg.CacheEnabled())
	assert.False(t, cfg.MailEnabled())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("BACKEND_URL", "https://api.shop.test/")
	t.Setenv("BREVO_PORT", "2525")
	t.Setenv("BREVO_HOST", "smtp.test")
	t.Setenv("ORDER_CACHE_TTL", "30s")
	t.Setenv("PAYMENT_CHECK_DELAY", "not-a-duration")

	cfg := LoadConfig()
	assert.Equal(t, "https://api.shop.test", cfg.BackendURL)
	assert.Equal(t, 2525, cfg.SMTPPort)
	assert.True(t, cfg.MailEnabled())
	assert.Equal(t, 30*time.Second, cfg.OrderCacheTTL)
	assert.Equal(t, 15*time.Minute, cfg.PaymentCheckIn)
}

func TestGetEnvFromFile_PrefersSecretFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db_password")
	require.NoError(t, os.WriteFile(path, []byte("s3cret\n"), 0o600))
	t.Setenv("DB_PASSWORD_FILE", path)
	t.Setenv("DB_PASSWORD", "plain")

	assert.Equal(t, "s3cret", LoadConfig().DBPassword)
}

func TestGetEnvFromFile_FallsBackToEnv(t *testing.T) {
	t.Setenv("DB_PASSWORD_FILE", filepath.Join(t.TempDir(), "missing"))
	t.Setenv("DB_PASSWORD", "plain")

	assert.Equal(t, "plain", LoadConfig().DBPassword)
}

func TestValidate_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET_FILE", "")
	t.Setenv("JWT_SECRET_KEY", "")
	assert.Error(t, LoadConfig().Validate())

	t.Setenv("JWT_SECRET_KEY", "   ")
	assert.Error(t, LoadConfig().Validate())

	t.Setenv("JWT_SECRET_KEY", "change-me")
	assert.NoError(t, LoadConfig().Validate())
}
