package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort     string `mapstructure:"SERVER_PORT"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	AnonKey        string `mapstructure:"STORE_ANON_KEY"`
	ServiceRoleKey string `mapstructure:"SERVICE_ROLE_KEY"`
	SiteURL        string `mapstructure:"SITE_URL"`
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	RedisPassword  string `mapstructure:"REDIS_PASSWORD"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`

	RealtimeChannel      string `mapstructure:"REALTIME_CHANNEL"`
	ContactRatePerMinute int    `mapstructure:"CONTACT_RATE_PER_MINUTE"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
	LogOutput string `mapstructure:"LOG_OUTPUT"`
	LogFile   string `mapstructure:"LOG_FILE"`
}

var requiredKeys = []string{"DATABASE_URL", "STORE_ANON_KEY"}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("SERVER_PORT", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("STORE_ANON_KEY", "")
	v.SetDefault("SERVICE_ROLE_KEY", "")
	v.SetDefault("SITE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "dev-secret-change-me")
	v.SetDefault("REALTIME_CHANNEL", "trip_bookings_changes")
	v.SetDefault("CONTACT_RATE_PER_MINUTE", 5)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_OUTPUT", "stdout")
	v.SetDefault("LOG_FILE", "logs/api.log")

	var cfg Config
	_ = v.Unmarshal(&cfg)
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")
	return cfg
}

// Missing returns the names of required settings that are empty.
func (c Config) Missing() []string {
	values := map[string]string{
		"DATABASE_URL":   c.DatabaseURL,
		"STORE_ANON_KEY": c.AnonKey,
	}
	var missing []string
	for _, key := range requiredKeys {
		if strings.TrimSpace(values[key]) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}
