package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the configuration settings for the routing service.
//
// Fields:
// - Env: The current environment (e.g., local, development, production).
// - Port: The port of the HTTP server (health, metrics and polyline API).
// - Provider: Settings of the routing provider (google, osrm).
// - Workers: The number of concurrent workers for processing route tasks.
// - Interval: The duration between polling rounds.
// - Cache: Route cache settings. An empty address disables the cache.
// - Database: Configuration settings for the PostgreSQL database.
type Config struct {
	Env      string         `mapstructure:"env"`
	Port     int            `mapstructure:"port"`
	Provider ProviderConfig `mapstructure:"provider"`
	Workers  int            `mapstructure:"workers"`
	Interval time.Duration  `mapstructure:"interval"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Database PostgresConfig `mapstructure:"db"`
}

// ProviderConfig selects and tunes the routing provider.
type ProviderConfig struct {
	Type      string `mapstructure:"type"`       // Type is the provider name: google or osrm.
	APIKey    string `mapstructure:"key"`        // APIKey is required by Google.
	RateLimit int    `mapstructure:"rate_limit"` // RateLimit is the total requests per second.
	Mode      string `mapstructure:"mode"`       // Mode is the travel mode.
	BaseURL   string `mapstructure:"base_url"`   // BaseURL overrides the OSRM server.
	Geocoder  string `mapstructure:"geocoder"`   // Geocoder is the Nominatim URL used by OSRM for addresses.
}

type CacheConfig struct {
	Addr string        `mapstructure:"addr"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`     // Host is the database server address.
	Port     string `mapstructure:"port"`     // Port is the database server port.
	User     string `mapstructure:"username"` // User is the database user.
	Password string `mapstructure:"password"` // Password is the database user's password.
	Name     string `mapstructure:"name"`     // Name is the name of the database.
}

const configFileEnv = "PATHWAY_CONFIG_FILE"

// MustLoad reads the .env file when present, an optional YAML file named by PATHWAY_CONFIG_FILE
// and PATHWAY_* environment variables, in increasing order of priority.
func MustLoad() *Config {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path := os.Getenv(configFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			panic("failed to read configuration file: " + err.Error())
		}
	}

	// PATHWAY_DB_HOST -> db.host
	v.SetEnvPrefix("PATHWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	interval, err := time.ParseDuration(v.GetString("interval"))
	if err != nil || interval <= 0 {
		panic("failed to parse interval from configuration")
	}

	port, err := parsePositive(v.GetString("port"))
	if err != nil {
		panic("failed to parse port for http server from configuration")
	}

	workers, err := parsePositive(v.GetString("workers"))
	if err != nil {
		panic("failed to parse workers from configuration, must be a positive integer")
	}

	ttl, err := time.ParseDuration(v.GetString("cache.ttl"))
	if err != nil {
		panic("failed to parse cache ttl from configuration")
	}

	return &Config{
		Env:  v.GetString("env"),
		Port: port,
		Provider: ProviderConfig{
			Type:      v.GetString("provider.type"),
			APIKey:    v.GetString("provider.key"),
			RateLimit: v.GetInt("provider.rate_limit"),
			Mode:      v.GetString("provider.mode"),
			BaseURL:   v.GetString("provider.base_url"),
			Geocoder:  v.GetString("provider.geocoder"),
		},
		Workers:  workers,
		Interval: interval,
		Cache: CacheConfig{
			Addr: v.GetString("cache.addr"),
			TTL:  ttl,
		},
		Database: PostgresConfig{
			Host:     v.GetString("db.host"),
			Port:     v.GetString("db.port"),
			User:     v.GetString("db.username"),
			Password: v.GetString("db.password"),
			Name:     v.GetString("db.name"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "production")
	v.SetDefault("port", "8080")
	v.SetDefault("provider.type", "google")
	v.SetDefault("provider.key", "")
	v.SetDefault("provider.rate_limit", 50) //nolint:mnd
	v.SetDefault("provider.mode", "driving")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.geocoder", "")
	v.SetDefault("workers", "10")
	v.SetDefault("interval", "10m")
	v.SetDefault("cache.addr", "")
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("db.host", "")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.username", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "")
}

var errNotPositive = errors.New("value must be positive")

func parsePositive(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errNotPositive
	}

	return n, nil
}
