package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	DBDriver               string `env:"DB_DRIVER" envDefault:"mysql"`
	DBUser                 string `env:"DB_USER"`
	DBPassword             string `env:"DB_PASSWORD"`
	DBHost                 string `env:"DB_HOST"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName                 string `env:"DB_NAME"`
	DBPort                 string `env:"DB_PORT"`
	DBSSLMode              string `env:"DB_SSLMODE" envDefault:"disable"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`
	DBSQLitePath           string `env:"DB_SQLITE_PATH" envDefault:"reward-bot.db"`

	DiscordToken   string `env:"DISCORD_TOKEN,required,notEmpty"`
	DiscordGuildID string `env:"DISCORD_GUILD_ID,required,notEmpty"`

	APISecretKey   string `env:"API_SECRET_KEY,required,notEmpty"`
	AdminSecretKey string `env:"ADMIN_SECRET_KEY"`

	DailyCommentCap           int64         `env:"DAILY_COMMENT_CAP" envDefault:"15"`
	MigrationPageDelay        time.Duration `env:"MIGRATION_PAGE_DELAY" envDefault:"1s"`
	MigrationThreadReplyLimit int           `env:"MIGRATION_THREAD_REPLY_LIMIT" envDefault:"50"`
	MigrationDefaultLimit     int           `env:"MIGRATION_DEFAULT_LIMIT" envDefault:"1000"`

	VercelIntegrationSecret     string `env:"VERCEL_INTEGRATION_SECRET"`
	VercelNotificationChannelID string `env:"VERCEL_NOTIFICATION_CHANNEL_ID"`

	AuditSchedule string `env:"AUDIT_SCHEDULE" envDefault:"0 4 * * *"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings env tags cannot express, mainly the fields each
// database driver needs.
func (c *Config) Validate() error {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	switch c.DBDriver {
	case DriverMySQL, DriverPostgres:
		var missing []string
		if c.DBUser == "" {
			missing = append(missing, "DB_USER")
		}
		if c.DBHost == "" && c.InstanceConnectionName == "" {
			missing = append(missing, "DB_HOST")
		}
		if c.DBName == "" {
			missing = append(missing, "DB_NAME")
		}
		if len(missing) > 0 {
			return fmt.Errorf("config: %s required for driver %s", strings.Join(missing, ", "), c.DBDriver)
		}
		if c.DBPort == "" {
			if c.DBDriver == DriverPostgres {
				c.DBPort = "5432"
			} else {
				c.DBPort = "3306"
			}
		}
	case DriverSQLite:
		if c.DBSQLitePath == "" {
			return errors.New("config: DB_SQLITE_PATH required for driver sqlite")
		}
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DailyCommentCap <= 0 {
		return errors.New("config: DAILY_COMMENT_CAP must be positive")
	}
	if c.MigrationPageDelay < 0 {
		return errors.New("config: MIGRATION_PAGE_DELAY must not be negative")
	}
	if c.MigrationThreadReplyLimit <= 0 || c.MigrationDefaultLimit <= 0 {
		return errors.New("config: migration limits must be positive")
	}
	return nil
}

// AdminKey returns the key accepted by the admin check; it falls back to the
// API key when no dedicated admin key is set.
func (c *Config) AdminKey() string {
	if c.AdminSecretKey != "" {
		return c.AdminSecretKey
	}
	return c.APISecretKey
}
