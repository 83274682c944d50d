package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Govind-619/DonateKart/utils"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	JWTSecret  string
	Port       string
	Env        string
	LogLevel   string

	SessionSecret string

	// RazorpayKey is the public merchant key handed to the checkout overlay.
	// RazorpaySecret never leaves the server.
	RazorpayKey           string
	RazorpaySecret        string
	RazorpayWebhookSecret string
	Currency              string
	PlatformFee           decimal.Decimal

	AuthorizationTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	OpsEmail     string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_HOST", utils.DefaultDBHost)
	v.SetDefault("DB_PORT", utils.DefaultDBPort)
	v.SetDefault("DB_USER", utils.DefaultDBUser)
	v.SetDefault("DB_NAME", utils.DefaultDBName)
	v.SetDefault("PORT", utils.DefaultPort)
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CURRENCY", utils.DefaultCurrency)
	v.SetDefault("PLATFORM_FEE", utils.DefaultPlatformFee)
	v.SetDefault("AUTHORIZATION_TIMEOUT", utils.DefaultAuthorizationTimeout)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SMTP_PORT", 587)
}

// LoadConfig loads configuration from the .env file (if present) and the environment
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %v", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	fee, err := decimal.NewFromString(strings.TrimSpace(v.GetString("PLATFORM_FEE")))
	if err != nil {
		return nil, fmt.Errorf("invalid PLATFORM_FEE: %v", err)
	}
	if fee.IsNegative() {
		return nil, fmt.Errorf("PLATFORM_FEE must not be negative")
	}

	timeout := v.GetDuration("AUTHORIZATION_TIMEOUT")
	if timeout <= 0 {
		return nil, fmt.Errorf("AUTHORIZATION_TIMEOUT must be a positive duration")
	}

	config := &Config{
		DBHost:                v.GetString("DB_HOST"),
		DBPort:                v.GetString("DB_PORT"),
		DBUser:                v.GetString("DB_USER"),
		DBPassword:            v.GetString("DB_PASSWORD"),
		DBName:                v.GetString("DB_NAME"),
		JWTSecret:             v.GetString("JWT_SECRET"),
		Port:                  v.GetString("PORT"),
		Env:                   v.GetString("ENV"),
		LogLevel:              v.GetString("LOG_LEVEL"),
		SessionSecret:         v.GetString("SESSION_SECRET"),
		RazorpayKey:           v.GetString("RAZORPAY_KEY"),
		RazorpaySecret:        v.GetString("RAZORPAY_SECRET"),
		RazorpayWebhookSecret: v.GetString("RAZORPAY_WEBHOOK_SECRET"),
		Currency:              strings.ToUpper(v.GetString("CURRENCY")),
		PlatformFee:           fee.Round(2),
		AuthorizationTimeout:  timeout,
		RedisAddr:             v.GetString("REDIS_ADDR"),
		RedisPassword:         v.GetString("REDIS_PASSWORD"),
		RedisDB:               v.GetInt("REDIS_DB"),
		SMTPHost:              v.GetString("SMTP_HOST"),
		SMTPPort:              v.GetInt("SMTP_PORT"),
		SMTPUsername:          v.GetString("SMTP_USERNAME"),
		SMTPPassword:          v.GetString("SMTP_PASSWORD"),
		SMTPFrom:              v.GetString("SMTP_FROM"),
		OpsEmail:              v.GetString("OPS_EMAIL"),
	}

	if config.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if config.SessionSecret == "" {
		config.SessionSecret = config.JWTSecret
	}

	return config, nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// GatewayConfigured reports whether merchant credentials are present
func (c *Config) GatewayConfigured() bool {
	return c.RazorpayKey != "" && c.RazorpaySecret != ""
}

// DSN returns the postgres connection string
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}
