package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Hunters   HuntersConfig   `mapstructure:"hunters"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port     int        `mapstructure:"port"`
	Mode     string     `mapstructure:"mode"`
	APIToken string     `mapstructure:"api_token"`
	CORS     CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, sqlite
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	Path            string        `mapstructure:"path"` // sqlite file path
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the connection string for the configured driver.
// Parameters: none.
// Returns:
//   - string: driver-specific DSN.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return c.Path
}

// SchedulerConfig holds every knob of the scan and recovery cycles.
type SchedulerConfig struct {
	BatchCap             int           `mapstructure:"batch_cap"`
	LeaseTimeout         time.Duration `mapstructure:"lease_timeout"`
	ScanTimeout          time.Duration `mapstructure:"scan_timeout"`
	MinSpacing           time.Duration `mapstructure:"min_spacing"`
	MaxBackoffMultiplier int           `mapstructure:"max_backoff_multiplier"`
	Cron                 CronConfig    `mapstructure:"cron"`
}

// CronConfig enables the optional embedded trigger timers. When disabled the
// cycles run only when an external scheduler hits the trigger endpoints.
type CronConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ScanSpec  string `mapstructure:"scan_spec"`
	SweepSpec string `mapstructure:"sweep_spec"`
}

type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
}

type HuntersConfig struct {
	Forum      HunterConfig `mapstructure:"forum"`
	AppStore   HunterConfig `mapstructure:"appstore"`
	PlayStore  HunterConfig `mapstructure:"playstore"`
	ReviewSite HunterConfig `mapstructure:"reviewsite"`
}

type HunterConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/hunter.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("scheduler.batch_cap", 50)
	v.SetDefault("scheduler.lease_timeout", 10*time.Minute)
	v.SetDefault("scheduler.scan_timeout", 5*time.Minute)
	v.SetDefault("scheduler.min_spacing", 2*time.Second)
	v.SetDefault("scheduler.max_backoff_multiplier", 32)
	v.SetDefault("scheduler.cron.enabled", false)
	v.SetDefault("scheduler.cron.scan_spec", "@every 1m")
	v.SetDefault("scheduler.cron.sweep_spec", "@every 5m")
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "hunter-scans")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("hunters.forum.enabled", true)
	v.SetDefault("hunters.appstore.enabled", true)
	v.SetDefault("hunters.appstore.base_url", "https://itunes.apple.com")
	v.SetDefault("hunters.playstore.enabled", true)
	v.SetDefault("hunters.reviewsite.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("server.api_token", "HUNTER_API_TOKEN")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.name", "DB_NAME")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("hunters.forum.api_key", "FORUM_API_KEY")
	v.BindEnv("hunters.reviewsite.api_key", "REVIEWSITE_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
