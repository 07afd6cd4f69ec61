package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(viper.New(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig without a file should succeed, got: %v", err)
	}

	if cfg.Game.RoundLength != 5 {
		t.Errorf("Expected default round length 5, got %d", cfg.Game.RoundLength)
	}
	if cfg.Game.StartDelay != 2*time.Second {
		t.Errorf("Expected default start delay 2s, got %v", cfg.Game.StartDelay)
	}
	if cfg.Game.AdvanceDelay != 3*time.Second {
		t.Errorf("Expected default advance delay 3s, got %v", cfg.Game.AdvanceDelay)
	}
	if cfg.Questions.Source != "builtin" {
		t.Errorf("Expected builtin question source, got %q", cfg.Questions.Source)
	}
	if cfg.Database.Enabled {
		t.Error("Database should be disabled by default")
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  http_address: ":9000"
game:
  round_length: 3
database:
  enabled: true
  postgres:
    host: db
    port: 6543
    user: quiz
    password: secret
    dbname: trivia
`)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BUZZPARTY_GAME_ADVANCE_DELAY", "5s")

	cfg, err := LoadConfig(viper.New(), dir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.HTTPAddress != ":9000" {
		t.Errorf("Expected http address :9000, got %s", cfg.Server.HTTPAddress)
	}
	if cfg.Game.RoundLength != 3 {
		t.Errorf("Expected round length 3, got %d", cfg.Game.RoundLength)
	}
	if cfg.Game.AdvanceDelay != 5*time.Second {
		t.Errorf("Expected env override of advance delay to 5s, got %v", cfg.Game.AdvanceDelay)
	}

	want := "host='db' port=6543 user='quiz' password='secret' dbname='trivia' sslmode=disable"
	if got := cfg.Database.Postgres.DSN(); got != want {
		t.Errorf("DSN mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestPostgresConfig_DSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  PostgresConfig
		want string
	}{
		{
			name: "empty password is left out",
			cfg:  PostgresConfig{Host: "localhost", Port: 5432, User: "postgres", DBName: "buzzparty"},
			want: "host='localhost' port=5432 user='postgres' dbname='buzzparty' sslmode=disable",
		},
		{
			name: "spaces stay inside quotes",
			cfg:  PostgresConfig{Host: "db", Port: 5432, User: "quiz", Password: "two words", DBName: "trivia"},
			want: "host='db' port=5432 user='quiz' password='two words' dbname='trivia' sslmode=disable",
		},
		{
			name: "quotes and backslashes are escaped",
			cfg:  PostgresConfig{Host: "db", User: "quiz", Password: `it's\x`, DBName: "trivia"},
			want: `host='db' user='quiz' password='it\'s\\x' dbname='trivia' sslmode=disable`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.DSN(); got != tt.want {
				t.Errorf("DSN mismatch:\n got %s\nwant %s", got, tt.want)
			}
		})
	}
}
