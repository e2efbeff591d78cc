package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Broker   BrokerConfig   `yaml:"broker" mapstructure:"broker"`
	Session  SessionConfig  `yaml:"session" mapstructure:"session"`
	Browser  BrowserConfig  `yaml:"browser" mapstructure:"browser"`
	Auth     AuthConfig     `yaml:"auth" mapstructure:"auth"`
	Debug    DebugConfig    `yaml:"debug" mapstructure:"debug"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Schedule ScheduleConfig `yaml:"schedule" mapstructure:"schedule"`
	Alert    AlertConfig    `yaml:"alert" mapstructure:"alert"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the snapshot database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// BrokerConfig holds the brokerage portal endpoints and login.
type BrokerConfig struct {
	LoginURL          string `yaml:"login_url" mapstructure:"login_url"`
	DomesticURL       string `yaml:"domestic_url" mapstructure:"domestic_url"`
	ForeignURL        string `yaml:"foreign_url" mapstructure:"foreign_url"`
	PostLoginPattern  string `yaml:"post_login_pattern" mapstructure:"post_login_pattern"`
	AuthenticatedHost string `yaml:"authenticated_host" mapstructure:"authenticated_host"`
	Username          string `yaml:"username" mapstructure:"username"`
	Password          string `yaml:"password" mapstructure:"password"`
}

// SessionConfig configures where session cookies are persisted.
type SessionConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// BrowserConfig configures the headless browser.
type BrowserConfig struct {
	Headless        bool   `yaml:"headless" mapstructure:"headless"`
	ExecPath        string `yaml:"exec_path" mapstructure:"exec_path"`
	UserAgent       string `yaml:"user_agent" mapstructure:"user_agent"`
	NavTimeoutSecs  int    `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs"`
	LoadTimeoutSecs int    `yaml:"load_timeout_secs" mapstructure:"load_timeout_secs"`
	NavPerMinute    int    `yaml:"nav_per_minute" mapstructure:"nav_per_minute"`
	NavAttempts     int    `yaml:"nav_attempts" mapstructure:"nav_attempts"`
}

// AuthConfig bounds the waits of the login flow.
type AuthConfig struct {
	LoginWaitSecs         int `yaml:"login_wait_secs" mapstructure:"login_wait_secs"`
	DeviceAuthTimeoutSecs int `yaml:"device_auth_timeout_secs" mapstructure:"device_auth_timeout_secs"`
	PollIntervalMs        int `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms"`
}

// DebugConfig controls screenshot and markup dumps of each scrape step.
type DebugConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir     string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// ScheduleConfig configures periodic snapshots.
type ScheduleConfig struct {
	Enabled          bool   `yaml:"enabled" mapstructure:"enabled"`
	Cron             string `yaml:"cron" mapstructure:"cron"`
	FailureThreshold int    `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int    `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// AlertConfig configures webhook alerts for scheduled snapshots.
type AlertConfig struct {
	WebhookURL       string `yaml:"webhook_url" mapstructure:"webhook_url"`
	WarningThreshold int    `yaml:"warning_threshold" mapstructure:"warning_threshold"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// NavTimeout is the per-navigation deadline.
func (b BrowserConfig) NavTimeout() time.Duration { return seconds(b.NavTimeoutSecs) }

// LoadTimeout bounds waiting for a page to finish loading.
func (b BrowserConfig) LoadTimeout() time.Duration { return seconds(b.LoadTimeoutSecs) }

// LoginWait bounds waiting for the post-login redirect.
func (a AuthConfig) LoginWait() time.Duration { return seconds(a.LoginWaitSecs) }

// DeviceAuthTimeout bounds waiting for out-of-band device approval.
func (a AuthConfig) DeviceAuthTimeout() time.Duration { return seconds(a.DeviceAuthTimeoutSecs) }

// PollInterval is how often the page URL is checked while waiting.
func (a AuthConfig) PollInterval() time.Duration {
	return time.Duration(a.PollIntervalMs) * time.Millisecond
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PORTFOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "portfolio.db")
	v.SetDefault("broker.login_url", "https://www.sbisec.co.jp/ETGate")
	v.SetDefault("broker.domestic_url", "https://site2.sbisec.co.jp/ETGate/?_ControlID=WPLETacR002Control&_PageID=DefaultPID&_DataStoreID=DSWPLETacR002Control&getFlg=on&_ActionID=DefaultAID&OutSide=on")
	v.SetDefault("broker.foreign_url", "https://site.sbisec.co.jp/account/foreign/assets")
	v.SetDefault("broker.post_login_pattern", `/Default|_PageID=DefaultPID`)
	v.SetDefault("broker.authenticated_host", "site1.sbisec.co.jp")
	v.SetDefault("broker.username", "")
	v.SetDefault("broker.password", "")
	v.SetDefault("session.dir", "./tmp/sessions")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.nav_timeout_secs", 30)
	v.SetDefault("browser.load_timeout_secs", 10)
	v.SetDefault("browser.nav_per_minute", 20)
	v.SetDefault("browser.nav_attempts", 3)
	v.SetDefault("auth.login_wait_secs", 30)
	v.SetDefault("auth.device_auth_timeout_secs", 300)
	v.SetDefault("auth.poll_interval_ms", 1000)
	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.dir", "./tmp/sbi-scraper-debug")
	v.SetDefault("server.port", 8080)
	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.cron", "0 30 15 * * 1-5")
	v.SetDefault("schedule.failure_threshold", 2)
	v.SetDefault("schedule.reset_timeout_secs", 6*60*60)
	v.SetDefault("alert.webhook_url", "")
	v.SetDefault("alert.warning_threshold", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command depends on. mode is the command
// name: "scrape", "serve", "schedule" or "store".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	if mode == "scrape" || mode == "schedule" {
		if c.Broker.LoginURL == "" || c.Broker.DomesticURL == "" {
			problems = append(problems, "broker.login_url and broker.domestic_url are required")
		}
		if c.Session.Dir == "" {
			problems = append(problems, "session.dir is required")
		}
		if c.Browser.NavTimeoutSecs <= 0 || c.Browser.LoadTimeoutSecs <= 0 {
			problems = append(problems, "browser timeouts must be positive")
		}
		if c.Auth.LoginWaitSecs <= 0 || c.Auth.DeviceAuthTimeoutSecs <= 0 || c.Auth.PollIntervalMs <= 0 {
			problems = append(problems, "auth waits must be positive")
		}
	}

	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		problems = append(problems, "server.port must be between 1 and 65535")
	}

	if mode == "schedule" && c.Schedule.Cron == "" {
		problems = append(problems, "schedule.cron is required")
	}
	if mode == "schedule" && c.Alert.WarningThreshold < 0 {
		problems = append(problems, "alert.warning_threshold must not be negative")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
