package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DISCORD_GUILD_ID", "111")
	t.Setenv("API_SECRET_KEY", "api-key")
}

func TestLoad_SQLiteDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_SQLITE_PATH", "test.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBDriver != DriverSQLite {
		t.Fatalf("driver got=%q want=%q", cfg.DBDriver, DriverSQLite)
	}
	if cfg.DailyCommentCap != 15 {
		t.Fatalf("cap got=%d want=15", cfg.DailyCommentCap)
	}
	if cfg.MigrationPageDelay != time.Second {
		t.Fatalf("delay got=%v want=1s", cfg.MigrationPageDelay)
	}
	if cfg.MigrationThreadReplyLimit != 50 || cfg.MigrationDefaultLimit != 1000 {
		t.Fatalf("limits got=%d/%d", cfg.MigrationThreadReplyLimit, cfg.MigrationDefaultLimit)
	}
	if cfg.AdminKey() != "api-key" {
		t.Fatalf("admin key fallback got=%q", cfg.AdminKey())
	}
}

func TestLoad_MissingDiscordToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("DISCORD_GUILD_ID", "111")
	t.Setenv("API_SECRET_KEY", "k")
	t.Setenv("DB_DRIVER", "sqlite")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing DISCORD_TOKEN")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantErr  bool
		wantPort string
	}{
		{
			name:     "mysql default port",
			cfg:      Config{DBDriver: "mysql", DBUser: "u", DBHost: "h", DBName: "n", DailyCommentCap: 15, MigrationThreadReplyLimit: 50, MigrationDefaultLimit: 1000},
			wantPort: "3306",
		},
		{
			name:     "postgres default port",
			cfg:      Config{DBDriver: "postgres", DBUser: "u", DBHost: "h", DBName: "n", DailyCommentCap: 15, MigrationThreadReplyLimit: 50, MigrationDefaultLimit: 1000},
			wantPort: "5432",
		},
		{
			name:     "cloud sql instance without host",
			cfg:      Config{DBDriver: "mysql", DBUser: "u", InstanceConnectionName: "p:r:i", DBName: "n", DailyCommentCap: 15, MigrationThreadReplyLimit: 50, MigrationDefaultLimit: 1000},
			wantPort: "3306",
		},
		{
			name:    "mysql missing host",
			cfg:     Config{DBDriver: "mysql", DBUser: "u", DBName: "n", DailyCommentCap: 15, MigrationThreadReplyLimit: 50, MigrationDefaultLimit: 1000},
			wantErr: true,
		},
		{
			name:    "unknown driver",
			cfg:     Config{DBDriver: "oracle", DailyCommentCap: 15, MigrationThreadReplyLimit: 50, MigrationDefaultLimit: 1000},
			wantErr: true,
		},
		{
			name:    "zero cap",
			cfg:     Config{DBDriver: "sqlite", DBSQLitePath: "x.db", MigrationThreadReplyLimit: 50, MigrationDefaultLimit: 1000},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err got=%v wantErr=%v", err, tt.wantErr)
			}
			if !tt.wantErr && cfg.DBPort != tt.wantPort {
				t.Fatalf("port got=%q want=%q", cfg.DBPort, tt.wantPort)
			}
		})
	}
}
