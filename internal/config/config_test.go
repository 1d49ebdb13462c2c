package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

const validConfig = `
database:
  host: db.internal
  user: backup
  password: secret
  name: shop
backup:
  interval_minutes: 5
  work_dir: /var/lib/sqlcourier
transport:
  type: discord
  webhook_url: https://discord.com/api/webhooks/1234/abcd-token
`

func writeConfig(t *testing.T, body string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	Convey("Given a config file", t, func() {
		Convey("When it is valid", func() {
			cfg, err := Load(writeConfig(t, validConfig))

			Convey("It should apply values and defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Database.Host, ShouldEqual, "db.internal")
				So(cfg.Database.Port, ShouldEqual, 3306)
				So(cfg.Database.DumpCommand, ShouldEqual, "mysqldump")
				So(cfg.Backup.IntervalMinutes, ShouldEqual, 5)
				So(cfg.Backup.SizeLimit, ShouldEqual, int64(DefaultSizeLimit))
				So(cfg.Backup.FilePrefix, ShouldEqual, "dump")
				So(cfg.Backup.RetryBackoff, ShouldEqual, 15*time.Second)
				So(cfg.Backup.SettleDelay, ShouldEqual, 5*time.Second)
				So(cfg.Transport.Username, ShouldEqual, "SQL Backup")
				So(cfg.Transport.EmbedColor, ShouldEqual, "GREEN")
				So(cfg.Transport.Timeout, ShouldEqual, 2*time.Minute)
				So(cfg.CronSpec(), ShouldEqual, "@every 5m")
			})
		})

		Convey("When the database password comes from the environment", func() {
			t.Setenv("SQLCOURIER_DATABASE_PASSWORD", "from-env")
			cfg, err := Load(writeConfig(t, validConfig))

			Convey("It should override the file value", func() {
				So(err, ShouldBeNil)
				So(cfg.Database.Password, ShouldEqual, "from-env")
			})
		})

		Convey("When the interval is below one minute", func() {
			body := strings.Replace(validConfig, "interval_minutes: 5", "interval_minutes: 0", 1)
			_, err := Load(writeConfig(t, body))

			Convey("It should be rejected", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When the file does not exist", func() {
			_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

			Convey("It should return a read error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "failed to read config")
			})
		})
	})
}

func validStruct() *Config {
	return &Config{
		Database: DatabaseConfig{Host: "localhost", Port: 3306, Name: "shop"},
		Backup: BackupConfig{
			IntervalMinutes: 1,
			FilePrefix:      "dump",
			SizeLimit:       DefaultSizeLimit,
			DeleteAttempts:  3,
		},
		Transport: TransportConfig{
			Type:       "discord",
			WebhookURL: "https://discord.com/api/webhooks/1/token",
		},
	}
}

func TestValidate(t *testing.T) {
	Convey("Given a config struct", t, func() {
		cfg := validStruct()

		Convey("A complete config passes", func() {
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("A zero interval fails", func() {
			cfg.Backup.IntervalMinutes = 0
			So(cfg.Validate().Error(), ShouldContainSubstring, "interval_minutes")
		})

		Convey("A missing database name fails", func() {
			cfg.Database.Name = ""
			So(cfg.Validate().Error(), ShouldContainSubstring, "database.name")
		})

		Convey("A prefix with path separators fails", func() {
			cfg.Backup.FilePrefix = "../dump"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("An unknown transport fails", func() {
			cfg.Transport.Type = "carrier-pigeon"
			So(cfg.Validate().Error(), ShouldContainSubstring, "unknown transport type")
		})

		Convey("A telegram transport needs a token and chat", func() {
			cfg.Transport.Type = "telegram"
			So(cfg.Validate(), ShouldNotBeNil)

			cfg.Transport.Telegram = TelegramConfig{BotToken: "t", ChatID: "42"}
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("A gdrive transport needs a folder and some credentials", func() {
			cfg.Transport.Type = "gdrive"
			cfg.Transport.GDrive = GDriveConfig{FolderID: "folder"}
			So(cfg.Validate(), ShouldNotBeNil)

			cfg.Transport.GDrive.ClientSecretFile = "client_secret.json"
			So(cfg.Validate(), ShouldNotBeNil)

			cfg.Transport.GDrive.RefreshToken = "1//refresh"
			So(cfg.Validate(), ShouldBeNil)

			cfg.Transport.GDrive = GDriveConfig{FolderID: "folder", CredentialsFile: "sa.json"}
			So(cfg.Validate(), ShouldBeNil)
		})
	})
}

func TestParseWebhookURL(t *testing.T) {
	Convey("Given a Discord webhook URL", t, func() {
		Convey("It splits id and token", func() {
			id, token, err := ParseWebhookURL("https://discord.com/api/webhooks/98765/tok-en_1")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, "98765")
			So(token, ShouldEqual, "tok-en_1")
		})

		Convey("It accepts the legacy host and strips query strings", func() {
			id, token, err := ParseWebhookURL("https://discordapp.com/api/webhooks/1/abc/?wait=true")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, "1")
			So(token, ShouldEqual, "abc")
		})

		Convey("It rejects other hosts", func() {
			_, _, err := ParseWebhookURL("https://example.com/api/webhooks/1/abc")
			So(err, ShouldNotBeNil)
		})

		Convey("It rejects a missing token", func() {
			_, _, err := ParseWebhookURL("https://discord.com/api/webhooks/1")
			So(err, ShouldNotBeNil)
		})

		Convey("It rejects an empty URL", func() {
			_, _, err := ParseWebhookURL("")
			So(err, ShouldNotBeNil)
		})
	})
}
