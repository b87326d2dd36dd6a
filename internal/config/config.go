package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	AppEnv        string `env:"APP_ENV" envDefault:"dev"`
	Port          string `env:"PORT" envDefault:"8080"`
	DBPath        string `env:"DB_PATH" envDefault:"./forma.db"`
	SessionSecret string `env:"SESSION_SECRET"`
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	CartTTL       time.Duration `env:"CART_TTL" envDefault:"72h"`

	HFToken      string `env:"IMAGEGEN_HF_TOKEN"`
	HFModelURL   string `env:"IMAGEGEN_HF_MODEL_URL" envDefault:"https://api-inference.huggingface.co/models/stabilityai/stable-diffusion-xl-base-1.0"`
	GeminiKey    string `env:"IMAGEGEN_GEMINI_KEY"`
	GeminiURL    string `env:"IMAGEGEN_GEMINI_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"`
	GeneratedDir string `env:"GENERATED_DIR" envDefault:"./generated"`

	HTTPRequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"60s"`

	TelegramToken  string `env:"TELEGRAM_TOKEN"`
	TelegramChatID int64  `env:"TELEGRAM_CHAT_ID"`

	HomeDeliveryFee float64 `env:"HOME_DELIVERY_FEE" envDefault:"49"`
	ReceiptFontFile string  `env:"RECEIPT_FONT_FILE"`
}

// IsDev reports whether the server runs in local development mode.
func (c Config) IsDev() bool {
	return c.AppEnv == "dev" || c.AppEnv == "development"
}

// Warnings lists settings that are missing but not fatal.
func (c Config) Warnings() []string {
	var warnings []string
	if c.AdminEmail == "" {
		warnings = append(warnings, "ADMIN_EMAIL is not set")
	}
	if c.AdminPassword == "" {
		warnings = append(warnings, "ADMIN_PASSWORD is not set")
	}
	if c.HFToken == "" {
		warnings = append(warnings, "IMAGEGEN_HF_TOKEN is not set; text-to-image disabled")
	}
	if c.GeminiKey == "" {
		warnings = append(warnings, "IMAGEGEN_GEMINI_KEY is not set; draw-to-image disabled")
	}
	return warnings
}

// Load reads a local .env file, if present, and parses the environment.
func Load() (Config, error) {
	// Production should inject real environment variables; a missing file is fine.
	if _, err := loadDotEnv(".env"); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return parse()
}

func parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if cfg.SessionSecret == "" {
		if !cfg.IsDev() {
			return Config{}, fmt.Errorf("SESSION_SECRET is required outside dev")
		}
		cfg.SessionSecret = "dev-session-secret"
	}
	if cfg.HomeDeliveryFee < 0 {
		return Config{}, fmt.Errorf("HOME_DELIVERY_FEE must be >= 0")
	}

	return cfg, nil
}
