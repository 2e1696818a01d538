package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	appName   = "dailydigest"
	envPrefix = "DAILYDIGEST_"
)

// Config holds all configuration for the application.
// Values are read by viper from a config file or environment variables.
type Config struct {
	APIBaseURL       string `mapstructure:"API_BASE_URL"`
	BadgerDBPath     string `mapstructure:"BADGERDB_PATH"`
	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
	// LogFile is where the terminal UI writes logs so they don't garble the screen.
	LogFile string `mapstructure:"LOG_FILE"`

	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	PollInterval   time.Duration `mapstructure:"POLL_INTERVAL"`
	PollTimeout    time.Duration `mapstructure:"POLL_TIMEOUT"`
	TokenTTL       time.Duration `mapstructure:"TOKEN_TTL"`
	GCInterval     time.Duration `mapstructure:"GC_INTERVAL"`

	// Scheduled delivery for the bot.
	MorningHour      int    `mapstructure:"MORNING_HOUR"`
	EveningHour      int    `mapstructure:"EVENING_HOUR"`
	DeliveryTimezone string `mapstructure:"DELIVERY_TIMEZONE"`
}

func defaults() map[string]any {
	return map[string]any{
		"API_BASE_URL":       "http://localhost:8000",
		"BADGERDB_PATH":      filepath.Join(xdg.DataHome, appName, "badger"),
		"TELEGRAM_BOT_TOKEN": "",
		"LOG_LEVEL":          "info",
		"LOG_FORMAT":         "json",
		"LOG_FILE":           filepath.Join(xdg.StateHome, appName, appName+".log"),
		"REQUEST_TIMEOUT":    "15s",
		"POLL_INTERVAL":      "5s",
		"POLL_TIMEOUT":       "2m",
		"TOKEN_TTL":          "24h",
		"GC_INTERVAL":        "5m",
		"MORNING_HOUR":       6,
		"EVENING_HOUR":       18,
		"DELIVERY_TIMEZONE":  "Local",
	}
}

// LoadConfig reads configuration from file or environment variables.
// path is searched first, then ./configs and the XDG config directory.
// Environment variables win over the file; both DAILYDIGEST_KEY and KEY work.
func LoadConfig(path string) (config Config, err error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath("./configs")
	v.AddConfigPath(filepath.Join(xdg.ConfigHome, appName))
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, value := range defaults() {
		v.SetDefault(key, value)
		if err := v.BindEnv(key, envPrefix+key, key); err != nil {
			return Config{}, fmt.Errorf("error binding env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; defaults and env vars still apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	config.APIBaseURL = strings.TrimRight(strings.TrimSpace(config.APIBaseURL), "/")
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func loadDotEnv(file string) error {
	err := godotenv.Load(file)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("error loading %s: %w", file, err)
}

// Validate checks value ranges. It does not require the bot token; see RequireBotToken.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return fmt.Errorf("API_BASE_URL is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("API_BASE_URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("API_BASE_URL must include a host")
	}
	if c.BadgerDBPath == "" {
		return fmt.Errorf("BADGERDB_PATH is not set")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.PollTimeout < c.PollInterval {
		return fmt.Errorf("POLL_TIMEOUT (%s) must not be shorter than POLL_INTERVAL (%s)", c.PollTimeout, c.PollInterval)
	}
	if c.MorningHour < 0 || c.MorningHour > 23 {
		return fmt.Errorf("MORNING_HOUR must be between 0 and 23, got %d", c.MorningHour)
	}
	if c.EveningHour < 0 || c.EveningHour > 23 {
		return fmt.Errorf("EVENING_HOUR must be between 0 and 23, got %d", c.EveningHour)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// RequireBotToken fails when the Telegram front end cannot start.
func (c Config) RequireBotToken() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}
	return nil
}

// Location resolves DELIVERY_TIMEZONE.
func (c Config) Location() (*time.Location, error) {
	if c.DeliveryTimezone == "" || c.DeliveryTimezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.DeliveryTimezone)
	if err != nil {
		return nil, fmt.Errorf("DELIVERY_TIMEZONE is invalid: %w", err)
	}
	return loc, nil
}
