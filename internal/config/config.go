package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	DriverCouch  = "couch"
	DriverSQLite = "sqlite"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Auth      AuthConfig      `toml:"auth"`
	WebSocket WebSocketConfig `toml:"websocket"`
	CORS      CORSConfig      `toml:"cors"`
	Cache     CacheConfig     `toml:"cache"`
	Logging   LoggingConfig   `toml:"logging"`
	Export    ExportConfig    `toml:"export"`
}

type ServerConfig struct {
	Port string `toml:"port"`
	Host string `toml:"host"`
	Env  string `toml:"env"`
}

type DatabaseConfig struct {
	Driver     string `toml:"driver"`
	Host       string `toml:"host"`
	Port       string `toml:"port"`
	User       string `toml:"user"`
	Password   string `toml:"password"`
	Name       string `toml:"name"`
	SQLitePath string `toml:"sqlite_path"`
}

func (d DatabaseConfig) CouchURL() string {
	return fmt.Sprintf("http://%s:%s@%s:%s", d.User, d.Password, d.Host, d.Port)
}

type AuthConfig struct {
	Secret     string        `toml:"secret"`
	SessionTTL time.Duration `toml:"-"`
}

type WebSocketConfig struct {
	ReadBufferSize  int           `toml:"read_buffer_size"`
	WriteBufferSize int           `toml:"write_buffer_size"`
	MaxMessageSize  int64         `toml:"max_message_size"`
	MaxClients      int           `toml:"max_clients"`
	WriteWait       time.Duration `toml:"-"`
	PongWait        time.Duration `toml:"-"`
	PingPeriod      time.Duration `toml:"-"`
}

type CORSConfig struct {
	AllowedOrigins string `toml:"allowed_origins"`
	AllowedMethods string `toml:"allowed_methods"`
	AllowedHeaders string `toml:"allowed_headers"`
}

type CacheConfig struct {
	IncludeTrash bool `toml:"include_trash"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ExportConfig struct {
	Dir string `toml:"dir"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "127.0.0.1",
			Env:  "development",
		},
		Database: DatabaseConfig{
			Driver:     DriverSQLite,
			Host:       "localhost",
			Port:       "5984",
			User:       "admin",
			Password:   "password",
			Name:       "inkdown",
			SQLitePath: "inkdown.db",
		},
		Auth: AuthConfig{
			Secret:     "dev-secret-change-in-production",
			SessionTTL: 24 * time.Hour,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			MaxMessageSize:  512 * 1024,
			MaxClients:      16,
			WriteWait:       10 * time.Second,
			PongWait:        60 * time.Second,
			PingPeriod:      54 * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: "*",
			AllowedMethods: "GET,POST,PUT,DELETE,OPTIONS",
			AllowedHeaders: "Content-Type,Authorization",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Export: ExportConfig{
			Dir: "export",
		},
	}
}

// Load builds the configuration from defaults, the optional TOML file named
// by INKDOWN_CONFIG, then the environment. Later sources win.
func Load() (*Config, error) {
	godotenv.Load()

	cfg := Default()
	if path := os.Getenv("INKDOWN_CONFIG"); path != "" {
		if err := readTOML(path, &cfg); err != nil {
			return nil, err
		}
	}

	sessionTTL, err := time.ParseDuration(getEnv("SESSION_TTL", cfg.Auth.SessionTTL.String()))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}

	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("HOST", cfg.Server.Host)
	cfg.Server.Env = getEnv("ENV", cfg.Server.Env)

	cfg.Database.Driver = strings.ToLower(getEnv("DB_DRIVER", cfg.Database.Driver))
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnv("DB_NAME", cfg.Database.Name)
	cfg.Database.SQLitePath = getEnv("SQLITE_PATH", cfg.Database.SQLitePath)

	cfg.Auth.Secret = getEnv("JWT_SECRET", cfg.Auth.Secret)
	cfg.Auth.SessionTTL = sessionTTL

	cfg.WebSocket.ReadBufferSize = getEnvAsInt("WS_READ_BUFFER_SIZE", cfg.WebSocket.ReadBufferSize)
	cfg.WebSocket.WriteBufferSize = getEnvAsInt("WS_WRITE_BUFFER_SIZE", cfg.WebSocket.WriteBufferSize)
	cfg.WebSocket.MaxMessageSize = int64(getEnvAsInt("WS_MAX_MESSAGE_SIZE", int(cfg.WebSocket.MaxMessageSize)))
	cfg.WebSocket.MaxClients = getEnvAsInt("WS_MAX_CLIENTS", cfg.WebSocket.MaxClients)

	cfg.CORS.AllowedOrigins = getEnv("CORS_ALLOWED_ORIGINS", cfg.CORS.AllowedOrigins)
	cfg.CORS.AllowedMethods = getEnv("CORS_ALLOWED_METHODS", cfg.CORS.AllowedMethods)
	cfg.CORS.AllowedHeaders = getEnv("CORS_ALLOWED_HEADERS", cfg.CORS.AllowedHeaders)

	cfg.Cache.IncludeTrash = getEnvAsBool("CACHE_INCLUDE_TRASH", cfg.Cache.IncludeTrash)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.Export.Dir = getEnv("EXPORT_DIR", cfg.Export.Dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverCouch, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Database.Driver == DriverSQLite && strings.TrimSpace(c.Database.SQLitePath) == "" {
		return errors.New("SQLITE_PATH is required for the sqlite driver")
	}
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}

func readTOML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
