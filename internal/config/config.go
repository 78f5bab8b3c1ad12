package config // package config loads application configuration from the environment and an optional file

import (
    "errors"
    "fmt"
    "os"
    "strings"
    "time"

    "github.com/spf13/viper"
)

// ErrMissingSecret is returned when no JWT signing secret is configured.
// The service must not start without one.
var ErrMissingSecret = errors.New("config: JWT_SECRET is required")

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable (or the same key, lowercased, in CONFIG_FILE).
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    AutoMigrate    bool   // run embedded migrations at startup
    JWTSecret      string // secret used to sign access tokens
    RefreshPepper  string // HMAC key for refresh token hashes (defaults to JWTSecret)
    AccessTTLMin   int    // access token time-to-live in minutes
    RefreshTTLDays int    // refresh token time-to-live in days
    BcryptCost     int    // bcrypt cost for password hashing
    LoginPath      string // where browser requests are sent when unauthenticated
    LogLevel       string // zerolog level name
    LogJSON        bool   // emit JSON instead of console output

    Cookies   CookieConfig
    RateLimit RateLimitConfig
    Redis     RedisConfig
    Events    EventsConfig
}

// Production reports whether the service runs with production settings.
func (c Config) Production() bool {
    return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production")
}

// AccessTTL and RefreshTTL convert the configured units into durations.
func (c Config) AccessTTL() time.Duration  { return time.Duration(c.AccessTTLMin) * time.Minute }
func (c Config) RefreshTTL() time.Duration { return time.Duration(c.RefreshTTLDays) * 24 * time.Hour }

// DSN builds the MySQL data source name.  parseTime and loc=UTC keep
// DATETIME columns consistent with time.Time in UTC.
func (c Config) DSN() string {
    auth := c.DBUser
    if c.DBPass != "" {
        auth = fmt.Sprintf("%s:%s", c.DBUser, c.DBPass)
    }
    return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
        auth, c.DBHost, c.DBPort, c.DBName)
}

// Load reads configuration from the environment.  When CONFIG_FILE points
// at a yaml/json/toml file its values are used as a base and environment
// variables still take precedence.
func Load() (Config, error) {
    v := viper.New()
    setDefaults(v)
    v.AutomaticEnv()
    if f := os.Getenv("CONFIG_FILE"); f != "" {
        v.SetConfigFile(f)
        if err := v.ReadInConfig(); err != nil {
            return Config{}, fmt.Errorf("config: read %s: %w", f, err)
        }
    }

    var missing []string
    must := func(key string) string {
        s := strings.TrimSpace(v.GetString(key))
        if s == "" {
            missing = append(missing, key)
        }
        return s
    }

    cfg := Config{
        Env:            v.GetString("APP_ENV"),
        Port:           v.GetString("APP_PORT"),
        DBUser:         must("DB_USER"),
        DBPass:         v.GetString("DB_PASS"),
        DBHost:         must("DB_HOST"),
        DBPort:         v.GetString("DB_PORT"),
        DBName:         must("DB_NAME"),
        AutoMigrate:    v.GetBool("DB_AUTO_MIGRATE"),
        JWTSecret:      strings.TrimSpace(v.GetString("JWT_SECRET")),
        RefreshPepper:  v.GetString("REFRESH_TOKEN_PEPPER"),
        AccessTTLMin:   v.GetInt("ACCESS_TOKEN_TTL_MIN"),
        RefreshTTLDays: v.GetInt("REFRESH_TOKEN_TTL_DAYS"),
        BcryptCost:     v.GetInt("BCRYPT_COST"),
        LoginPath:      v.GetString("LOGIN_PATH"),
        LogLevel:       v.GetString("LOG_LEVEL"),
        LogJSON:        v.GetBool("LOG_JSON"),
    }
    cfg.Cookies = loadCookieConfig(v, cfg.Production())
    cfg.RateLimit = loadRateLimitConfig(v)
    cfg.Redis = loadRedisConfig(v)
    cfg.Events = loadEventsConfig(v)

    if cfg.JWTSecret == "" {
        return Config{}, ErrMissingSecret
    }
    if len(missing) > 0 {
        return Config{}, fmt.Errorf("config: missing required env vars: %s", strings.Join(missing, ", "))
    }
    if cfg.RefreshPepper == "" {
        cfg.RefreshPepper = cfg.JWTSecret
    }
    if cfg.AccessTTLMin < 1 {
        cfg.AccessTTLMin = 15
    }
    if cfg.RefreshTTLDays < 1 {
        cfg.RefreshTTLDays = 14
    }
    return cfg, nil
}

func setDefaults(v *viper.Viper) {
    v.SetDefault("APP_ENV", "dev")
    v.SetDefault("APP_PORT", "8080")
    v.SetDefault("DB_PORT", "3306")
    v.SetDefault("DB_AUTO_MIGRATE", true)
    v.SetDefault("ACCESS_TOKEN_TTL_MIN", 15)
    v.SetDefault("REFRESH_TOKEN_TTL_DAYS", 14)
    v.SetDefault("BCRYPT_COST", 12)
    v.SetDefault("LOGIN_PATH", "/login")
    v.SetDefault("LOG_LEVEL", "info")
    v.SetDefault("LOG_JSON", false)

    v.SetDefault("CSRF_EXEMPT_PREFIXES", "/v1/webhooks/")

    v.SetDefault("RATE_LIMIT_ENABLED", true)
    v.SetDefault("RATE_LIMIT_BACKEND", "memory")
    v.SetDefault("RATE_LIMIT_PREFIX", "rl")
    v.SetDefault("RATE_LIMIT_SWEEP_INTERVAL", time.Minute)
    v.SetDefault("LOGIN_RATE_LIMIT", 10)
    v.SetDefault("LOGIN_RATE_WINDOW", 15*time.Minute)
    v.SetDefault("EMAIL_CHECK_LIMIT", 5)
    v.SetDefault("EMAIL_CHECK_WINDOW", time.Hour)

    v.SetDefault("REDIS_DB", 0)

    v.SetDefault("EVENTS_ENABLED", false)
    v.SetDefault("SECURITY_QUEUE", "auth.security")
    v.SetDefault("SECURITY_CONSUMER_ENABLED", false)
    v.SetDefault("SECURITY_LOG_DIR", "logs")
}
