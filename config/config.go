package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort   string `mapstructure:"APP_PORT"`
	Env       string `mapstructure:"ENV"`
	JWTSecret string `mapstructure:"JWT_SECRET"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`

	// MongoDB configuration.
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	DatabaseName string `mapstructure:"DATABASE_NAME"`

	// Redis configuration.
	RedisAddr            string `mapstructure:"REDIS_ADDR"`
	RedisPassword        string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB         int    `mapstructure:"REDIS_CACHE_DB"`
	RedisReminderQueueDB int    `mapstructure:"REDIS_REMINDER_QUEUE_DB"`

	// Firebase push notifications; empty path disables pushes.
	FirebaseServiceAccountKeyPath string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`

	// Scheduling parameters.
	WorkdayStartMinutes    int `mapstructure:"WORKDAY_START_MINUTES"`    // default 08:00
	WorkdayEndMinutes      int `mapstructure:"WORKDAY_END_MINUTES"`      // default 20:00
	SlotGranularityMinutes int `mapstructure:"SLOT_GRANULARITY_MINUTES"` // candidate step size
	BookingHorizonDays     int `mapstructure:"BOOKING_HORIZON_DAYS"`     // max lookahead
	ReminderLeadMinutes    int `mapstructure:"REMINDER_LEAD_MINUTES"`    // push before tour start
	AvailabilityCacheTTL   int `mapstructure:"AVAILABILITY_CACHE_TTL"`   // seconds
}

var AppConfig Config

// LoadConfig initializes Viper to load config values from env, file, or defaults.
func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "tourly")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_REMINDER_QUEUE_DB", 1)
	viper.SetDefault("FIREBASE_CREDENTIALS_FILE", "")
	viper.SetDefault("WORKDAY_START_MINUTES", 8*60)
	viper.SetDefault("WORKDAY_END_MINUTES", 20*60)
	viper.SetDefault("SLOT_GRANULARITY_MINUTES", 30)
	viper.SetDefault("BOOKING_HORIZON_DAYS", 30)
	viper.SetDefault("REMINDER_LEAD_MINUTES", 60)
	viper.SetDefault("AVAILABILITY_CACHE_TTL", 30)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

// GetEnv returns the application environment.
func GetEnv() string {
	return AppConfig.Env
}

// IsProduction checks if the environment is production.
func IsProduction() bool {
	return GetEnv() == "production"
}
