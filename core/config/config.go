package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Security  SecurityConfig  `mapstructure:"security"`
	GoogleAPI OAuthConfig     `mapstructure:"google"`
	Microsoft OAuthConfig     `mapstructure:"microsoft"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Reminder  ReminderConfig  `mapstructure:"reminder"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	FrontendURL string `mapstructure:"frontend_url"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type SecurityConfig struct {
	// TokenEncryptionKey is a 32-byte key, hex or raw, used to seal OAuth tokens at rest.
	TokenEncryptionKey string `mapstructure:"token_encryption_key"`
	OAuthStateSecret   string `mapstructure:"oauth_state_secret"`
}

type OAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
	Tenant       string `mapstructure:"tenant"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type SyncConfig struct {
	MaxAttempts      int           `mapstructure:"max_attempts"`
	DefaultPriority  int           `mapstructure:"default_priority"`
	FullSyncPriority int           `mapstructure:"full_sync_priority"`
	BatchSize        int           `mapstructure:"batch_size"`
	StaleAfter       time.Duration `mapstructure:"stale_after"`
}

type ReminderConfig struct {
	EmailLeadHours   []int         `mapstructure:"email_lead_hours"`
	MessageLeadHours []int         `mapstructure:"message_lead_hours"`
	ImmediateWindow  time.Duration `mapstructure:"immediate_window"`
	StaleAfter       time.Duration `mapstructure:"stale_after"`
	RetentionDays    int           `mapstructure:"retention_days"`
}

type WorkerConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Concurrency      int    `mapstructure:"concurrency"`
	SyncCron         string `mapstructure:"sync_cron"`
	RemindersCron    string `mapstructure:"reminders_cron"`
	UpcomingCron     string `mapstructure:"upcoming_cron"`
	DailyCleanupCron string `mapstructure:"daily_cleanup_cron"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var (
	instance *Config
	mu       sync.RWMutex
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 7070)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("microsoft.tenant", "common")
	v.SetDefault("smtp.port", 587)

	v.SetDefault("sync.max_attempts", 3)
	v.SetDefault("sync.default_priority", 5)
	v.SetDefault("sync.full_sync_priority", 10)
	v.SetDefault("sync.batch_size", 20)
	v.SetDefault("sync.stale_after", 15*time.Minute)

	v.SetDefault("reminder.email_lead_hours", []int{24, 2})
	v.SetDefault("reminder.message_lead_hours", []int{24, 1})
	v.SetDefault("reminder.immediate_window", time.Hour)
	v.SetDefault("reminder.stale_after", 24*time.Hour)
	v.SetDefault("reminder.retention_days", 90)

	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.concurrency", 5)
	v.SetDefault("worker.sync_cron", "@every 1m")
	v.SetDefault("worker.reminders_cron", "@every 5m")
	v.SetDefault("worker.upcoming_cron", "@every 5m")
	v.SetDefault("worker.daily_cleanup_cron", "0 3 * * *")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads .env (if present) and environment variables into a Config.
// Keys map from env as SECTION_KEY, e.g. GOOGLE_CLIENT_ID -> google.client_id.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{
		"database.user", "database.password", "database.name",
		"redis.password", "redis.db",
		"jwt.secret",
		"security.token_encryption_key", "security.oauth_state_secret",
		"google.client_id", "google.client_secret", "google.redirect_uri",
		"microsoft.client_id", "microsoft.client_secret", "microsoft.redirect_uri",
		"smtp.host", "smtp.username", "smtp.password", "smtp.from",
		"server.frontend_url",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Init loads the configuration and stores it as the process-wide instance.
func Init() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	Set(cfg)
	return cfg, nil
}

// Set replaces the process-wide configuration. Used by Init and by tests.
func Set(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = cfg
}

func Get() *Config {
	cfg, ok := GetSafe()
	if !ok {
		panic("config not initialized")
	}
	return cfg
}

func GetSafe() (*Config, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return instance, instance != nil
}
