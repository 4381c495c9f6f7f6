package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bruinswipes/bruinswipes-backend/pkg/mailer"
)

type Config struct {
	Environment    string // ENV: production, development, etc.
	Port           string
	Host           string   // Raw HOST env (e.g. https://api.bruinswipes.com)
	PublicURL      string   // Base URL put into email links
	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL
	LogLevel       string

	MongoURI string
	RedisURI string
	Store    string // mongo or memory

	InstitutionDomain string
	DefaultProfileImg string
	SessionTTL        time.Duration
	OpTimeout         time.Duration
	DigestInterval    time.Duration

	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	MailProvider         string // mailgun, gmail or log
	MailSendEnabled      bool
	MailSender           string
	MailgunDomain        string
	MailgunAPIKey        string
	GmailCredentialsFile string // authorized_user JSON with a refresh token

	RabbitMQURL        string
	RabbitMQEmailQueue string
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))
	host := getEnv("HOST", "http://localhost:8080")

	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{getEnv("FRONTEND_URL", "http://localhost:3000")}
	}

	return &Config{
		Environment:    env,
		Port:           getEnv("PORT", "8080"),
		Host:           host,
		PublicURL:      strings.TrimSuffix(getEnv("PUBLIC_URL", host), "/"),
		AllowedOrigins: allowedOrigins,
		LogLevel:       getEnv("LOG_LEVEL", ""),

		MongoURI: getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017")),
		RedisURI: getEnv("REDIS_URI", ""),
		Store:    strings.ToLower(getEnv("STORE", "mongo")),

		InstitutionDomain: strings.ToLower(getEnv("INSTITUTION_DOMAIN", "ucla.edu")),
		DefaultProfileImg: getEnv("DEFAULT_PROFILE_IMG", "/images/default-profile.png"),
		SessionTTL:        getDuration("SESSION_TTL", 24*time.Hour),
		OpTimeout:         getDuration("OP_TIMEOUT", 5*time.Second),
		DigestInterval:    getDuration("DIGEST_INTERVAL", time.Hour),

		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),

		MailProvider:         strings.ToLower(getEnv("MAIL_PROVIDER", "log")),
		MailSendEnabled:      getBool("MAIL_SEND_ENABLED", true),
		MailSender:           getEnv("MAIL_SENDER", "BruinSwipes Bot <bruinswipesbot@gmail.com>"),
		MailgunDomain:        getEnv("MAILGUN_DOMAIN", ""),
		MailgunAPIKey:        getEnv("MAILGUN_API_KEY", ""),
		GmailCredentialsFile: getEnv("GMAIL_CREDENTIALS_FILE", "token.json"),

		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		RabbitMQEmailQueue: getEnv("RABBITMQ_EMAIL_QUEUE", "emails"),
	}
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// UseMemoryStore reports whether STORE=memory asked for the in-process store.
func (c *Config) UseMemoryStore() bool {
	return c.Store == "memory"
}

// Mailer returns the email delivery settings.
func (c *Config) Mailer() mailer.SenderConfig {
	return mailer.SenderConfig{
		Provider:             c.MailProvider,
		Enabled:              c.MailSendEnabled,
		From:                 c.MailSender,
		MailgunDomain:        c.MailgunDomain,
		MailgunAPIKey:        c.MailgunAPIKey,
		GmailCredentialsFile: c.GmailCredentialsFile,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration accepts Go durations ("90m") or plain seconds ("30").
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
