package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("mailsentry version %s, commit %s, built at %s", version, commit, date)
}

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Google   GoogleConfig   `mapstructure:"google"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Poller   PollerConfig   `mapstructure:"poller"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// TelegramConfig holds the bot credentials and update-polling behavior.
type TelegramConfig struct {
	BotToken           string `mapstructure:"bot_token"`
	DropPendingUpdates bool   `mapstructure:"drop_pending_updates"`
	UpdateTimeout      int    `mapstructure:"update_timeout"`
}

// GoogleConfig holds the OAuth client used for both the authorization-code
// exchange and refresh-token grants against the Gmail API.
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// PollerConfig tunes the scheduler loop and the per-cycle mailbox queries.
// The tick interval approximates near-real-time delivery; it is a tunable,
// not a correctness property.
type PollerConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	ScheduledLimit   int64         `mapstructure:"scheduled_limit"`
	ManualLimit      int64         `mapstructure:"manual_limit"`
	FreshnessWindow  time.Duration `mapstructure:"freshness_window"`
	NotifyAfterFresh time.Duration `mapstructure:"notify_after_fresh"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type LoggingConfig struct {
	Level             string `mapstructure:"level"`
	Format            string `mapstructure:"format"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
	OutputPath        string `mapstructure:"output_path"`
	AppendToFile      bool   `mapstructure:"append_to_file"`
	DisableConsole    bool   `mapstructure:"disable_console"`
}

// InitFlags initializes command line flags (without parsing)
func InitFlags() {
	pflag.String("bot-token", "", "Telegram bot token")
	pflag.String("mongo-uri", "", "MongoDB connection URI")
	pflag.Duration("poll-interval", 0, "Scheduler tick interval")
	// Note: no pflag.Parse() here as it's called in main.go
}

func setDefaults() {
	viper.SetDefault("telegram.drop_pending_updates", true)
	viper.SetDefault("telegram.update_timeout", 30)
	viper.SetDefault("google.redirect_uri", "urn:ietf:wg:oauth:2.0:oob")
	viper.SetDefault("mongo.database", "mailsentry")
	viper.SetDefault("poller.interval", 2*time.Second)
	viper.SetDefault("poller.scheduled_limit", 10)
	viper.SetDefault("poller.manual_limit", 5)
	viper.SetDefault("poller.freshness_window", 30*time.Second)
	viper.SetDefault("poller.notify_after_fresh", 40*time.Second)
	viper.SetDefault("poller.request_timeout", 30*time.Second)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
}

func Load() (*Config, error) {
	viper.Reset() // Ensure clean state

	viper.SetEnvPrefix("MAILSENTRY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	// Load ./config.yaml first
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/mailsentry")

	if err := viper.ReadInConfig(); err != nil {
		// A config file is optional; env vars and flags can carry everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Loading additional config files
	if _, err := os.Stat("/config/config.yaml"); err == nil {
		viper.SetConfigFile("/config/config.yaml")
		// Merge /config/config.yaml (overrides overlapping keys)
		if err := viper.MergeInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Flag overrides
	if token := viper.GetString("bot-token"); token != "" {
		config.Telegram.BotToken = token
	}
	if uri := viper.GetString("mongo-uri"); uri != "" {
		config.Mongo.URI = uri
	}
	if iv := viper.GetDuration("poll-interval"); iv > 0 {
		config.Poller.Interval = iv
	}

	if config.Telegram.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required, please adjust the config or pass --bot-token or MAILSENTRY_TELEGRAM_BOT_TOKEN environment variable")
	}
	if config.Google.ClientID == "" || config.Google.ClientSecret == "" {
		return nil, fmt.Errorf("google client credentials are required, set google.client_id and google.client_secret")
	}
	if config.Mongo.URI == "" {
		return nil, fmt.Errorf("mongo uri is required, please adjust the config or pass --mongo-uri or MAILSENTRY_MONGO_URI environment variable")
	}

	return &config, nil
}
