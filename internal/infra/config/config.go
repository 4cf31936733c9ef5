package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config - everything the exporter reads at startup
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Run      RunConfig      `mapstructure:"run"`
	Token    TokenConfig    `mapstructure:"token"`
	Output   OutputConfig   `mapstructure:"output"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Log      LogConfig      `mapstructure:"log"`
}

// APIConfig - GeniiData API
type APIConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	TokenID         string        `mapstructure:"token_id"`
	Key             string        `mapstructure:"key"` // fallback when no api_key argument is given
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"` // requests per second
	MaxResponseSize int64         `mapstructure:"max_response_size"`
}

// RunConfig - per-page retry policy
type RunConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	QuotaCooldown time.Duration `mapstructure:"quota_cooldown"`
}

type TokenConfig struct {
	TotalSupply int64 `mapstructure:"total_supply"`
}

type OutputConfig struct {
	File        string `mapstructure:"file"`
	ChartFile   string `mapstructure:"chart_file"`   // empty = no chart
	MetricsFile string `mapstructure:"metrics_file"` // empty = no textfile
	SummaryFile string `mapstructure:"summary_file"` // empty = no JSON run summary
}

// TelegramConfig - optional run report; disabled while BotToken is empty
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type LogConfig struct {
	Dir   string `mapstructure:"dir"`
	Level string `mapstructure:"level"`
}

// RegisterFlags adds the config flags (named after their keys) to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a YAML config file (default: ./config.yaml if present)")

	fs.String("api.base_url", "https://api.geniidata.com/api/1", "GeniiData API root (env: GENIIDATA_BASE_URL)")
	fs.String("api.token_id", "840000:3", "Rune id to export holders for (env: GENIIDATA_TOKEN_ID)")
	fs.Float64("api.rate_limit", 5, "Max requests per second (env: GENIIDATA_RATE_LIMIT)")

	fs.Int("run.max_attempts", 3, "Attempts per page before giving up (env: HOLDERS_MAX_ATTEMPTS)")
	fs.Duration("run.retry_delay", 200*time.Millisecond, "Delay after a failed page request (env: HOLDERS_RETRY_DELAY)")
	fs.Duration("run.quota_cooldown", time.Hour, "Delay after the API reports its quota is spent (env: HOLDERS_QUOTA_COOLDOWN)")

	fs.Int64("token.total_supply", 100_000_000_000, "Total supply used for ownership percentage (env: HOLDERS_TOTAL_SUPPLY)")

	fs.String("output.file", "DOG_Holders.csv", "CSV export path (env: HOLDERS_OUTPUT_FILE)")
	fs.String("output.chart_file", "", "Also render a top holders chart PNG here (env: HOLDERS_CHART_FILE)")
	fs.String("output.metrics_file", "", "Write Prometheus textfile metrics here (env: HOLDERS_METRICS_FILE)")
	fs.String("output.summary_file", "", "Write a JSON run summary with failed offsets here (env: HOLDERS_SUMMARY_FILE)")

	fs.String("log.dir", "logs", "Log directory (env: HOLDERS_LOG_DIR)")
	fs.String("log.level", "debug", "File log level (env: HOLDERS_LOG_LEVEL)")
}

// LoadConfig resolves, lowest to highest: defaults, config.yaml, .env, environment, flags.
// flags may be nil.
func LoadConfig(flags *pflag.FlagSet) (*Config, error) {
	// .env only fills variables that are not already set
	_ = godotenv.Load(".env")

	v := viper.New()
	setDefaults(v)

	configFile := ""
	if flags != nil {
		if f := flags.Lookup("config"); f != nil {
			configFile = f.Value.String()
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config.yaml: %w", err)
			}
		}
	}

	bindEnv(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// API
	v.SetDefault("api.base_url", "https://api.geniidata.com/api/1")
	v.SetDefault("api.token_id", "840000:3")
	v.SetDefault("api.key", "")
	v.SetDefault("api.request_timeout", 30*time.Second)
	v.SetDefault("api.rate_limit", 5.0)             // API allows 5 req/s
	v.SetDefault("api.max_response_size", 10<<20) // 10MB

	// Run
	v.SetDefault("run.max_attempts", 3)
	v.SetDefault("run.retry_delay", 200*time.Millisecond)
	v.SetDefault("run.quota_cooldown", time.Hour)

	v.SetDefault("token.total_supply", int64(100_000_000_000))

	// Output
	v.SetDefault("output.file", "DOG_Holders.csv")
	v.SetDefault("output.chart_file", "")
	v.SetDefault("output.metrics_file", "")
	v.SetDefault("output.summary_file", "")

	// Telegram
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")

	// Log
	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.level", "debug")
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("api.base_url", "GENIIDATA_BASE_URL")
	_ = v.BindEnv("api.token_id", "GENIIDATA_TOKEN_ID")
	_ = v.BindEnv("api.key", "GENIIDATA_API_KEY")
	_ = v.BindEnv("api.request_timeout", "GENIIDATA_REQUEST_TIMEOUT")
	_ = v.BindEnv("api.rate_limit", "GENIIDATA_RATE_LIMIT")
	_ = v.BindEnv("api.max_response_size", "GENIIDATA_MAX_RESPONSE_SIZE")

	_ = v.BindEnv("run.max_attempts", "HOLDERS_MAX_ATTEMPTS")
	_ = v.BindEnv("run.retry_delay", "HOLDERS_RETRY_DELAY")
	_ = v.BindEnv("run.quota_cooldown", "HOLDERS_QUOTA_COOLDOWN")

	_ = v.BindEnv("token.total_supply", "HOLDERS_TOTAL_SUPPLY")

	_ = v.BindEnv("output.file", "HOLDERS_OUTPUT_FILE")
	_ = v.BindEnv("output.chart_file", "HOLDERS_CHART_FILE")
	_ = v.BindEnv("output.metrics_file", "HOLDERS_METRICS_FILE")
	_ = v.BindEnv("output.summary_file", "HOLDERS_SUMMARY_FILE")

	_ = v.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("telegram.chat_id", "TELEGRAM_CHAT_ID")

	_ = v.BindEnv("log.dir", "HOLDERS_LOG_DIR")
	_ = v.BindEnv("log.level", "HOLDERS_LOG_LEVEL")
}

func validateConfig(cfg *Config) error {
	if cfg.Run.MaxAttempts < 1 {
		return fmt.Errorf("run.max_attempts must be at least 1, got %d", cfg.Run.MaxAttempts)
	}
	if cfg.Run.RetryDelay < 0 || cfg.Run.QuotaCooldown < 0 {
		return fmt.Errorf("run.retry_delay and run.quota_cooldown must not be negative")
	}
	if cfg.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must not be negative, got %v", cfg.API.RateLimit)
	}
	if cfg.Token.TotalSupply <= 0 {
		return fmt.Errorf("token.total_supply must be positive, got %d", cfg.Token.TotalSupply)
	}
	if cfg.Output.File == "" {
		return fmt.Errorf("output.file must not be empty")
	}
	if cfg.Telegram.BotToken != "" {
		if cfg.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram.bot_token is set")
		}
		if _, err := strconv.ParseInt(cfg.Telegram.ChatID, 10, 64); err != nil {
			return fmt.Errorf("telegram.chat_id must be numeric, got %q", cfg.Telegram.ChatID)
		}
	}
	return nil
}

// ResolveAPIKey picks the credential: explicit argument first, then configuration.
func (c *Config) ResolveAPIKey(arg string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	if c.API.Key != "" {
		return c.API.Key, nil
	}
	return "", errors.New("no API key: pass <api_key> or set GENIIDATA_API_KEY")
}
