package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	// MIT People API credentials.
	PeopleAPIURL          string
	PeopleAPIClientID     string
	PeopleAPIClientSecret string

	// Discord REST credentials. The gateway process holds the websocket; this
	// service only needs the REST surface for roles, members and messages.
	DiscordBotToken   string
	DiscordAPIBaseURL string

	// Mail transport: "smtp" (authenticated relay) or "mailersend".
	MailProvider     string
	MailFrom         string
	MailFromName     string
	SMTPHost         string
	SMTPPort         string
	SMTPUsername     string
	SMTPPassword     string
	MailersendAPIKey string

	// Role naming is a guild choice; only the alumni role has varied.
	AlumniRoleName string

	// Periodic reconciliation sweep. Empty schedule disables the sweep.
	PrimaryGuildID    string
	ReconcileSchedule string

	// SNS ops alerts for blacklist hits and transport failures. Empty topic
	// disables the publisher.
	SNSRegion   string
	SNSTopicARN string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	VerificationCodes string
	VerifiedUsers     string
	GuildSettings     string
	AuditEvents       string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			VerificationCodes: getEnv("DYNAMO_TABLE_VERIFICATION_CODES", "verification_codes"),
			VerifiedUsers:     getEnv("DYNAMO_TABLE_VERIFIED_USERS", "verified_users"),
			GuildSettings:     getEnv("DYNAMO_TABLE_GUILD_SETTINGS", "guild_settings"),
			AuditEvents:       getEnv("DYNAMO_TABLE_AUDIT_EVENTS", "audit_events"),
		},

		PeopleAPIURL:          getEnv("MIT_PEOPLE_API_URL", "https://mit-people-v3.cloudhub.io/people/v3/people"),
		PeopleAPIClientID:     getEnv("MIT_API_CLIENT_ID", ""),
		PeopleAPIClientSecret: getEnv("MIT_API_CLIENT_SECRET", ""),

		DiscordBotToken:   getEnv("DISCORD_BOT_TOKEN", ""),
		DiscordAPIBaseURL: getEnv("DISCORD_API_BASE_URL", "https://discord.com/api/v10"),

		MailProvider:     getEnv("MAIL_PROVIDER", "smtp"),
		MailFrom:         getEnv("MAIL_FROM", "mit-discord@mit.edu"),
		MailFromName:     getEnv("MAIL_FROM_NAME", "Lobby 7 Verification"),
		SMTPHost:         getEnv("SMTP_HOST", "outgoing.mit.edu"),
		SMTPPort:         getEnv("SMTP_PORT", "587"),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		MailersendAPIKey: getEnv("MAILERSEND_API_KEY", ""),

		AlumniRoleName: getEnv("ALUMNI_ROLE_NAME", "Alumni"),

		PrimaryGuildID:    getEnv("PRIMARY_GUILD_ID", ""),
		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", ""),

		SNSRegion:   getEnv("SNS_REGION", "us-east-1"),
		SNSTopicARN: getEnv("SNS_TOPIC_ARN", ""),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 7)) * 24 * time.Hour,

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
