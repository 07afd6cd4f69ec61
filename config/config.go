package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Game      GameConfig      `mapstructure:"game"`
	Questions QuestionsConfig `mapstructure:"questions"`
	Database  DatabaseConfig  `mapstructure:"database"`
	LogLevel  string          `mapstructure:"log_level"`
}

type ServerConfig struct {
	HTTPAddress string        `mapstructure:"http_address"`
	GRPCAddress string        `mapstructure:"grpc_address"`
	Heartbeat   time.Duration `mapstructure:"heartbeat"`
}

// GameConfig 游戏节奏参数
type GameConfig struct {
	RoundLength  int           `mapstructure:"round_length"`
	StartDelay   time.Duration `mapstructure:"start_delay"`
	AdvanceDelay time.Duration `mapstructure:"advance_delay"`
	BonusWindow  time.Duration `mapstructure:"bonus_window"`
}

type QuestionsConfig struct {
	// Source is "builtin" or "postgres".
	Source string `mapstructure:"source"`
}

type DatabaseConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// SetDefaults registers the default value of every key, so a missing config
// file still yields a runnable server.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("server.http_address", ":3001")
	v.SetDefault("server.grpc_address", ":3002")
	v.SetDefault("server.heartbeat", 25*time.Second)
	v.SetDefault("game.round_length", 5)
	v.SetDefault("game.start_delay", 2*time.Second)
	v.SetDefault("game.advance_delay", 3*time.Second)
	v.SetDefault("game.bonus_window", 15*time.Second)
	v.SetDefault("questions.source", "builtin")
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.dbname", "buzzparty")
}

// LoadConfig reads config.yaml from path (if present) and applies
// BUZZPARTY_* environment overrides.
func LoadConfig(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BUZZPARTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// DSN builds the connection string shared by lib/pq and the gorm driver.
// Values are single-quoted; empty ones are left out.
func (p PostgresConfig) DSN() string {
	parts := make([]string, 0, 6)
	add := func(key, value string) {
		if value != "" {
			parts = append(parts, key+"='"+dsnEscaper.Replace(value)+"'")
		}
	}
	add("host", p.Host)
	if p.Port > 0 {
		parts = append(parts, fmt.Sprintf("port=%d", p.Port))
	}
	add("user", p.User)
	add("password", p.Password)
	add("dbname", p.DBName)
	parts = append(parts, "sslmode=disable")
	return strings.Join(parts, " ")
}
