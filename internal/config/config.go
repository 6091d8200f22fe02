package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Session  SessionConfig
	Email    EmailConfig
	Admin    AdminConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32 `validate:"gte=1"`
	MinConns          int32 `validate:"gte=0"`
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string `validate:"required,numeric"`
	Env            string `validate:"oneof=development test staging production"`
	LogLevel       string `validate:"oneof=debug info warn error"`
	AllowedOrigins []string
	ReadTimeout    time.Duration `validate:"gt=0"`
	WriteTimeout   time.Duration `validate:"gt=0"`
	IdleTimeout    time.Duration `validate:"gt=0"`
	RequestTimeout time.Duration `validate:"gt=0"`
	MaxBodyBytes   int64         `validate:"gt=0"`
}

// SecurityConfig carries the request-security engine settings. Each stage can
// be switched off independently.
type SecurityConfig struct {
	StoreBackend string `validate:"oneof=memory postgres"`

	EnableCSRFProtection          bool
	EnableXSSProtection           bool
	EnableSQLInjectionPrevention  bool
	EnableAuthenticationHardening bool
	EnableRateLimiting            bool

	CSRFTokenBytes   int           `validate:"gte=16,lte=128"`
	CSRFTokenTTL     time.Duration `validate:"gt=0"`
	MaxLoginAttempts int           `validate:"gte=1"`
	LockoutDuration  time.Duration `validate:"gt=0"`
	CleanupInterval  time.Duration `validate:"gt=0"`

	RateLimitWindow      time.Duration `validate:"gt=0"`
	RateLimitMaxRequests int           `validate:"gte=1"`
	LoginRateLimit       int           `validate:"gte=1"`

	XSSLevel             string `validate:"oneof=strict moderate permissive"`
	SQLGuardExemptFields []string
	XSSSkipFields        []string
	TrustedProxies       []string `validate:"dive,cidr"`
}

type SessionConfig struct {
	Secret         string        `validate:"required"`
	TTL            time.Duration `validate:"gt=0"`
	CookieName     string        `validate:"required"`
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite string `validate:"oneof=strict lax none"`
}

// EmailConfig enables SES lockout alerts when Enabled is set
type EmailConfig struct {
	Enabled              bool
	Region               string `validate:"required_if=Enabled true"`
	FromAddress          string `validate:"omitempty,email"`
	SecurityAlertAddress string `validate:"omitempty,email"`
}

// AdminConfig is the operator account checked by the login route. PasswordHash
// (bcrypt) takes precedence over Password.
type AdminConfig struct {
	Email        string `validate:"omitempty,email"`
	Password     string
	PasswordHash string
}

var validate = validator.New()

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout: getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			MaxBodyBytes:   int64(getEnvAsInt("MAX_BODY_BYTES", 1<<20)),
		},
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "eishro"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 2)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Security: SecurityConfig{
			StoreBackend: getEnv("STORE_BACKEND", BackendMemory),

			EnableCSRFProtection:          getEnvAsBool("ENABLE_CSRF_PROTECTION", true),
			EnableXSSProtection:           getEnvAsBool("ENABLE_XSS_PROTECTION", true),
			EnableSQLInjectionPrevention:  getEnvAsBool("ENABLE_SQL_INJECTION_PREVENTION", true),
			EnableAuthenticationHardening: getEnvAsBool("ENABLE_AUTHENTICATION_HARDENING", true),
			EnableRateLimiting:            getEnvAsBool("ENABLE_RATE_LIMITING", true),

			CSRFTokenBytes:   getEnvAsInt("CSRF_TOKEN_LENGTH", 32),
			CSRFTokenTTL:     getEnvAsDuration("CSRF_TOKEN_TTL", 24*time.Hour),
			MaxLoginAttempts: getEnvAsInt("MAX_LOGIN_ATTEMPTS", 5),
			LockoutDuration:  getEnvAsDuration("LOCKOUT_DURATION", 15*time.Minute),
			CleanupInterval:  getEnvAsDuration("SECURITY_CLEANUP_INTERVAL", 1*time.Hour),

			RateLimitWindow:      getEnvAsDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			RateLimitMaxRequests: getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 100),
			LoginRateLimit:       getEnvAsInt("LOGIN_RATE_LIMIT", 10),

			XSSLevel:             strings.ToLower(getEnv("XSS_LEVEL", "moderate")),
			SQLGuardExemptFields: getEnvAsList("SQL_GUARD_EXEMPT_FIELDS", []string{"password"}),
			XSSSkipFields:        getEnvAsList("XSS_SKIP_FIELDS", []string{"password"}),
			TrustedProxies:       getEnvAsList("TRUSTED_PROXIES", nil),
		},
		Session: SessionConfig{
			Secret:         getEnv("SESSION_SECRET", ""),
			TTL:            getEnvAsDuration("SESSION_TIMEOUT", 24*time.Hour),
			CookieName:     getEnv("SESSION_COOKIE_NAME", "eishro_sid"),
			CookieDomain:   getEnv("COOKIE_DOMAIN", ""),
			CookieSecure:   getEnvAsBool("COOKIE_SECURE", env == "production"),
			CookieSameSite: strings.ToLower(getEnv("COOKIE_SAMESITE", "strict")),
		},
		Email: EmailConfig{
			Enabled:              getEnvAsBool("LOCKOUT_ALERTS_ENABLED", false),
			Region:               getEnv("AWS_REGION", ""),
			FromAddress:          getEnv("EMAIL_FROM_ADDRESS", ""),
			SecurityAlertAddress: getEnv("SECURITY_ALERT_EMAIL", ""),
		},
		Admin: AdminConfig{
			Email:        getEnv("ADMIN_EMAIL", ""),
			Password:     getEnv("ADMIN_PASSWORD", ""),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate applies the struct tag rules plus the cross-field checks tags
// cannot express.
func (c *Config) Validate() error {
	if c.Session.Secret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", formatValidationError(err))
	}

	if c.Security.StoreBackend == BackendPostgres && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required when STORE_BACKEND=postgres")
	}

	if err := validateSessionSecret(c.Session.Secret, c.Server.Env); err != nil {
		return err
	}

	if c.Session.CookieSameSite == "none" && !c.Session.CookieSecure {
		return fmt.Errorf("COOKIE_SAMESITE=none requires COOKIE_SECURE=true")
	}

	if c.Email.Enabled && (c.Email.FromAddress == "" || c.Email.SecurityAlertAddress == "") {
		return fmt.Errorf("EMAIL_FROM_ADDRESS and SECURITY_ALERT_EMAIL are required when LOCKOUT_ALERTS_ENABLED=true")
	}

	if c.Admin.Email != "" && c.Admin.Password == "" && c.Admin.PasswordHash == "" {
		return fmt.Errorf("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required when ADMIN_EMAIL is set")
	}

	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// validateSessionSecret enforces minimum security standards for the session signing secret
func validateSessionSecret(secret, env string) error {
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("SESSION_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

// getEnvAsList splits a comma-separated value. A variable set to "-" yields an
// empty list, so defaults can be switched off.
func getEnvAsList(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}
	if value == "-" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return getEnvAsList("ALLOWED_ORIGINS", []string{})
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
