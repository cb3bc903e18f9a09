package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port                    string        `mapstructure:"PORT"`
	DatabaseDriver          string        `mapstructure:"DATABASE_DRIVER"`
	DatabasePath            string        `mapstructure:"DATABASE_PATH"`
	DatabaseDSN             string        `mapstructure:"DATABASE_DSN"`
	DatabaseLogLevel        string        `mapstructure:"DATABASE_LOG_LEVEL"`
	JWTSecret               string        `mapstructure:"JWT_SECRET"`
	Timezone                string        `mapstructure:"TIMEZONE"`
	RecurrenceDailyFallback bool          `mapstructure:"RECURRENCE_DAILY_FALLBACK"`
	OccurrenceBatchSize     int           `mapstructure:"OCCURRENCE_BATCH_SIZE"`
	RedisAddr               string        `mapstructure:"REDIS_ADDR"`
	RedisPassword           string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB                 int           `mapstructure:"REDIS_DB"`
	RateLimitEnabled        bool          `mapstructure:"RATE_LIMIT_ENABLED"`
	RateLimitCapacity       int           `mapstructure:"RATE_LIMIT_CAPACITY"`
	RateLimitRefillInterval time.Duration `mapstructure:"RATE_LIMIT_REFILL_INTERVAL"`
	RateLimitMethods        []string      `mapstructure:"RATE_LIMIT_METHODS"`
	AMQPURL                 string        `mapstructure:"AMQP_URL"`
	AMQPQueue               string        `mapstructure:"AMQP_QUEUE"`
	ShutdownTimeout         time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded, using process environment")
	}

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DATABASE_DRIVER", "sqlite")
	viper.SetDefault("DATABASE_PATH", "fitclass.db")
	viper.SetDefault("DATABASE_DSN", "")
	viper.SetDefault("DATABASE_LOG_LEVEL", "warn")
	viper.SetDefault("TIMEZONE", "UTC")
	viper.SetDefault("RECURRENCE_DAILY_FALLBACK", false)
	viper.SetDefault("OCCURRENCE_BATCH_SIZE", 200)
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("RATE_LIMIT_ENABLED", true)
	viper.SetDefault("RATE_LIMIT_CAPACITY", 20)
	viper.SetDefault("RATE_LIMIT_REFILL_INTERVAL", time.Second)
	viper.SetDefault("RATE_LIMIT_METHODS", []string{"POST"})
	viper.SetDefault("AMQP_QUEUE", "fitclass.activity")
	viper.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)

	viper.BindEnv("JWT_SECRET")
	viper.BindEnv("REDIS_ADDR")
	viper.BindEnv("REDIS_PASSWORD")
	viper.BindEnv("AMQP_URL")

	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	if config.JWTSecret == "" {
		log.Printf("JWT_SECRET is not set, every authenticated request will be rejected")
	}

	return &config
}

// Location returns the zone event dates are interpreted in, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("Unknown TIMEZONE %q, using UTC: %v", c.Timezone, err)
		return time.UTC
	}
	return loc
}
