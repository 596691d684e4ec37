package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "KAIROS"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Firestore  FirestoreConfig  `mapstructure:"firestore"`
	SQLite     SQLiteConfig     `mapstructure:"sqlite"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Repository RepositoryConfig `mapstructure:"repository"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Summary    SummaryConfig    `mapstructure:"summary"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	CORS       CORSConfig       `mapstructure:"cors"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int32         `mapstructure:"max_connections"`
	MinConnections int32         `mapstructure:"min_connections"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
}

type FirestoreConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
	AppID           string `mapstructure:"app_id"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

type RepositoryConfig struct {
	Type string `mapstructure:"type"` // inmemory, postgres, firestore или sqlite
}

type AuthConfig struct {
	Mode           string `mapstructure:"mode"` // none, jwt или firebase
	JWTSecret      string `mapstructure:"jwt_secret"`
	JWTIssuer      string `mapstructure:"jwt_issuer"`
	DefaultAccount string `mapstructure:"default_account"`
}

type SummaryConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type WorkerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
	Timezone string `mapstructure:"timezone"`
}

type RateLimitConfig struct {
	RPM int `mapstructure:"rpm"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// пустые значения нужны, чтобы AutomaticEnv видел ключи при Unmarshal
	for _, key := range []string{"database.url", "firestore.project_id", "firestore.credentials_file", "auth.jwt_secret", "summary.api_key"} {
		v.SetDefault(key, "")
	}

	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.idle_timeout", 5*time.Minute)

	v.SetDefault("firestore.app_id", "kairos")
	v.SetDefault("sqlite.path", "data/kairos.db")

	v.SetDefault("logging.development", true)
	v.SetDefault("repository.type", "inmemory")

	v.SetDefault("auth.mode", "none")
	v.SetDefault("auth.jwt_issuer", "kairos")
	v.SetDefault("auth.default_account", "local")

	v.SetDefault("summary.model", "gemini-2.5-flash-preview-09-2025")
	v.SetDefault("summary.endpoint", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("summary.timeout", 20*time.Second)

	v.SetDefault("worker.enabled", false)
	v.SetDefault("worker.schedule", "0 5 0 * * *")
	v.SetDefault("worker.timezone", "Local")

	v.SetDefault("rate_limit.rpm", 100)
	v.SetDefault("cors.allowed_origins", []string{"*"})
}

// Load читает .env, затем config.yml (путь берётся из --config) и переменные KAIROS_*.
// Отсутствующий файл не ошибка: хватает значений по умолчанию.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	flags := pflag.NewFlagSet("kairos", pflag.ContinueOnError)
	path := flags.String("config", "config.yml", "путь к файлу конфигурации")
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("разбор флагов: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(*path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("ошибка парсинга %s: %w", *path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка чтения конфигурации: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Repository.Type {
	case "inmemory", "sqlite":
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url обязателен для postgres")
		}
	case "firestore":
		if c.Firestore.ProjectID == "" {
			return errors.New("firestore.project_id обязателен для firestore")
		}
	default:
		return fmt.Errorf("неизвестный тип хранилища %q", c.Repository.Type)
	}

	switch c.Auth.Mode {
	case "none":
		if c.Auth.DefaultAccount == "" {
			return errors.New("auth.default_account обязателен при auth.mode=none")
		}
	case "jwt":
		if c.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret обязателен при auth.mode=jwt")
		}
	case "firebase":
		if c.Firestore.ProjectID == "" {
			return errors.New("firestore.project_id обязателен при auth.mode=firebase")
		}
	default:
		return fmt.Errorf("неизвестный режим аутентификации %q", c.Auth.Mode)
	}
	return nil
}

func (c *Config) GetServerAddr() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}
