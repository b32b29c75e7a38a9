package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDriver      string
	DatabaseURL   string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	SessionSecret string
	SessionStore  string
	RedisHost     string
	RedisPort     string
	RealtimeRedis bool
	JWTSecret     string
	JWTTTL        time.Duration
	GinMode       string
	Port          string
	AppURL        string

	GoogleClientID         string
	GoogleClientSecret     string
	GoogleRedirectURL      string
	SystemEmailRedirectURL string
	CalendarTimeZone       string
	CalendarID             string

	EmailProvider string
	ResendAPIKey  string
	EmailFrom     string
	EmailFromName string

	RegistrationEnabled bool
	AdminEmails         []string

	LogLevel string
	LogFile  string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	appURL := strings.TrimRight(getEnv("APP_URL", "http://localhost:8080"), "/")

	return &Config{
		DBDriver:      getEnv("DB_DRIVER", "postgres"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "taskwise"),
		DBPassword:    getEnv("DB_PASSWORD", "taskwise"),
		DBName:        getEnv("DB_NAME", "taskwise"),
		SessionSecret: getEnv("SESSION_SECRET", "default-secret-key-change-me"),
		SessionStore:  getEnv("SESSION_STORE", "cookie"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RealtimeRedis: getEnvBool("REALTIME_REDIS", false),
		JWTSecret:     getEnv("JWT_SECRET", "default-jwt-secret-change-me"),
		JWTTTL:        getEnvDuration("JWT_TTL", 24*time.Hour),
		GinMode:       getEnv("GIN_MODE", "debug"),
		Port:          getEnv("PORT", "8080"),
		AppURL:        appURL,

		GoogleClientID:         getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:     getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:      getEnv("GOOGLE_REDIRECT_URL", appURL+"/api/calendar/callback"),
		SystemEmailRedirectURL: getEnv("SYSTEM_EMAIL_REDIRECT_URL", appURL+"/api/system/email/callback"),
		CalendarTimeZone:       getEnv("CALENDAR_TIME_ZONE", "America/Lima"),
		CalendarID:             getEnv("CALENDAR_ID", "primary"),

		EmailProvider: getEnv("EMAIL_PROVIDER", "log"),
		ResendAPIKey:  getEnv("RESEND_API_KEY", ""),
		EmailFrom:     getEnv("EMAIL_FROM", "noreply@taskwise.app"),
		EmailFromName: getEnv("EMAIL_FROM_NAME", "TaskWise"),

		RegistrationEnabled: getEnvBool("REGISTRATION_ENABLED", true),
		AdminEmails:         getEnvList("ADMIN_EMAILS"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}
}

// Location returns the reference time zone used for timed calendar events.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.CalendarTimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid CALENDAR_TIME_ZONE %q: %w", c.CalendarTimeZone, err)
	}
	return loc, nil
}

// IsProduction reports whether gin runs in release mode
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// IsAdmin reports whether the email belongs to an administrator
func (c *Config) IsAdmin(email string) bool {
	for _, admin := range c.AdminEmails {
		if strings.EqualFold(admin, email) {
			return true
		}
	}
	return false
}

// GoogleConfigured reports whether OAuth client credentials are present
func (c *Config) GoogleConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, defaultValue.String()))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
