package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultSizeLimit  = 8 * 1024 * 1024
	DiscordWebhookURL = "https://discord.com/api/webhooks/"
	// discordapp.com is still served by Discord for older webhooks.
	LegacyDiscordWebhookURL = "https://discordapp.com/api/webhooks/"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Backup    BackupConfig    `mapstructure:"backup"`
	Transport TransportConfig `mapstructure:"transport"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`

	DumpCommand string   `mapstructure:"dump_command"`
	DumpArgs    []string `mapstructure:"dump_args"`
}

type BackupConfig struct {
	IntervalMinutes int    `mapstructure:"interval_minutes"`
	WorkDir         string `mapstructure:"work_dir"`
	FilePrefix      string `mapstructure:"file_prefix"`
	SizeLimit       int64  `mapstructure:"size_limit"`

	PreCleanupDelay  time.Duration `mapstructure:"pre_cleanup_delay"`
	SettleDelay      time.Duration `mapstructure:"settle_delay"`
	SettlePoll       time.Duration `mapstructure:"settle_poll"`
	PostUploadDelay  time.Duration `mapstructure:"post_upload_delay"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
	DeleteAttempts   int           `mapstructure:"delete_attempts"`
	DeleteRetryDelay time.Duration `mapstructure:"delete_retry_delay"`
}

type TransportConfig struct {
	Type       string        `mapstructure:"type"`
	WebhookURL string        `mapstructure:"webhook_url"`
	Username   string        `mapstructure:"username"`
	EmbedColor string        `mapstructure:"embed_color"`
	Timeout    time.Duration `mapstructure:"timeout"`

	Telegram TelegramConfig `mapstructure:"telegram"`
	S3       S3Config       `mapstructure:"s3"`
	GDrive   GDriveConfig   `mapstructure:"gdrive"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// GDriveConfig accepts either a service account key (CredentialsFile) or an
// OAuth client secret plus a refresh token for a user's own Drive.
type GDriveConfig struct {
	CredentialsFile  string `mapstructure:"credentials_file"`
	ClientSecretFile string `mapstructure:"client_secret_file"`
	RefreshToken     string `mapstructure:"refresh_token"`
	FolderID         string `mapstructure:"folder_id"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("SQLCOURIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "sqlcourier")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dump_command", "mysqldump")

	v.SetDefault("backup.interval_minutes", 30)
	v.SetDefault("backup.work_dir", ".")
	v.SetDefault("backup.file_prefix", "dump")
	v.SetDefault("backup.size_limit", DefaultSizeLimit)
	v.SetDefault("backup.pre_cleanup_delay", "2s")
	v.SetDefault("backup.settle_delay", "5s")
	v.SetDefault("backup.settle_poll", "500ms")
	v.SetDefault("backup.post_upload_delay", "2s")
	v.SetDefault("backup.retry_backoff", "15s")
	v.SetDefault("backup.delete_attempts", 3)
	v.SetDefault("backup.delete_retry_delay", "1s")

	v.SetDefault("transport.type", "discord")
	v.SetDefault("transport.username", "SQL Backup")
	v.SetDefault("transport.embed_color", "GREEN")
	v.SetDefault("transport.timeout", "2m")
}

func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("database.port %d is out of range", c.Database.Port)
	}

	if c.Backup.IntervalMinutes < 1 {
		return fmt.Errorf("backup.interval_minutes must be at least 1, got %d", c.Backup.IntervalMinutes)
	}
	if c.Backup.SizeLimit <= 0 {
		return fmt.Errorf("backup.size_limit must be positive")
	}
	if c.Backup.FilePrefix == "" {
		return fmt.Errorf("backup.file_prefix is required")
	}
	if strings.ContainsAny(c.Backup.FilePrefix, `/\*?[`) {
		return fmt.Errorf("backup.file_prefix %q contains path or glob characters", c.Backup.FilePrefix)
	}
	if c.Backup.DeleteAttempts < 1 {
		return fmt.Errorf("backup.delete_attempts must be at least 1")
	}

	return c.Transport.Validate()
}

func (t *TransportConfig) Validate() error {
	switch t.Type {
	case "discord":
		if _, _, err := ParseWebhookURL(t.WebhookURL); err != nil {
			return fmt.Errorf("transport.webhook_url: %w", err)
		}
	case "telegram":
		if t.Telegram.BotToken == "" || t.Telegram.ChatID == "" {
			return fmt.Errorf("transport.telegram: bot_token and chat_id are required")
		}
	case "s3":
		if t.S3.Bucket == "" || t.S3.Region == "" {
			return fmt.Errorf("transport.s3: region and bucket are required")
		}
	case "gdrive":
		if t.GDrive.FolderID == "" {
			return fmt.Errorf("transport.gdrive: folder_id is required")
		}
		oauth := t.GDrive.ClientSecretFile != "" && t.GDrive.RefreshToken != ""
		if t.GDrive.CredentialsFile == "" && !oauth {
			return fmt.Errorf("transport.gdrive: credentials_file or client_secret_file with refresh_token is required")
		}
	default:
		return fmt.Errorf("unknown transport type: %q", t.Type)
	}
	return nil
}

// ParseWebhookURL splits a Discord webhook URL into its id and token.
func ParseWebhookURL(raw string) (id, token string, err error) {
	rest, ok := strings.CutPrefix(raw, DiscordWebhookURL)
	if !ok {
		rest, ok = strings.CutPrefix(raw, LegacyDiscordWebhookURL)
	}
	if !ok {
		return "", "", fmt.Errorf("webhook URL must start with %s", DiscordWebhookURL)
	}

	rest, _, _ = strings.Cut(rest, "?")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("webhook URL must contain an id and a token")
	}

	return parts[0], parts[1], nil
}

// CronSpec returns the recurring schedule derived from the backup interval.
func (c *Config) CronSpec() string {
	return fmt.Sprintf("@every %dm", c.Backup.IntervalMinutes)
}
