package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort string
	LogLevel string

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	JWTSecret string

	RabbitMQURL     string
	OrderExchange   string
	OrderQueue      string
	DeadLetterQueue string
	DelayExchange   string
	MaxPriority     int
	PaymentCheckIn  time.Duration

	RedisAddr      string
	OrderCacheTTL  time.Duration
	IdempotencyTTL time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string
	LogoURL      string

	UploadDir        string
	UploadsURLPrefix string
	BackendURL       string

	SagaLogPath string
}

func LoadConfig() *Config {
	return &Config{
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DBUser:           getEnv("DB_USER", "root"),
		DBPassword:       getEnvFromFile("DB_PASSWORD_FILE", "DB_PASSWORD", ""),
		DBHost:           getEnv("DB_HOST", "localhost"),
		DBPort:           getEnv("DB_PORT", "3306"),
		DBName:           getEnv("DB_NAME", "ecommerce"),
		JWTSecret:        getEnvFromFile("JWT_SECRET_FILE", "JWT_SECRET_KEY", ""),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		OrderExchange:    getEnv("ORDER_EXCHANGE", "orders_exchange"),
		OrderQueue:       getEnv("ORDER_QUEUE", "orders_queue"),
		DeadLetterQueue:  getEnv("DEAD_LETTER_QUEUE", "dead_letter_queue"),
		DelayExchange:    getEnv("DELAY_EXCHANGE", "delay_exchange"),
		MaxPriority:      10, // 优先级队列最大优先级
		PaymentCheckIn:   getEnvDuration("PAYMENT_CHECK_DELAY", 15*time.Minute),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		OrderCacheTTL:    getEnvDuration("ORDER_CACHE_TTL", 5*time.Minute),
		IdempotencyTTL:   getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		SMTPHost:         getEnv("BREVO_HOST", ""),
		SMTPPort:         getEnvInt("BREVO_PORT", 587),
		SMTPUser:         getEnv("BREVO_USER", ""),
		SMTPPassword:     getEnvFromFile("BREVO_SMTP_KEY_FILE", "BREVO_SMTP_KEY", ""),
		MailFrom:         getEnv("BREVO_EMAIL", "no-reply@localhost"),
		LogoURL:          getEnv("LOGO_URL", ""),
		UploadDir:        getEnv("UPLOAD_DIR", "static/uploads"),
		UploadsURLPrefix: strings.TrimRight(getEnv("UPLOADS_URL_PREFIX", "/uploads"), "/"),
		BackendURL:       strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:8080"), "/"),
		SagaLogPath:      getEnv("SAGA_LOG_PATH", "data/saga.db"),
	}
}

// Validate 检查启动必需的配置
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET_KEY (or JWT_SECRET_FILE) must be set")
	}
	return nil
}

// MessagingEnabled 未配置 RabbitMQ 时不发布订单事件
func (c *Config) MessagingEnabled() bool { return c.RabbitMQURL != "" }

func (c *Config) CacheEnabled() bool { return c.RedisAddr != "" }

func (c *Config) MailEnabled() bool { return c.SMTPHost != "" }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFromFile(fileKey, envKey, defaultValue string) string {
	if filePath := os.Getenv(fileKey); filePath != "" {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return getEnv(envKey, defaultValue)
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
