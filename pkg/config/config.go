package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tholdem/uniqn-sync/pkg/cache"
	"github.com/tholdem/uniqn-sync/pkg/query"
	"github.com/tholdem/uniqn-sync/pkg/records"
)

// ServerConfig is read from the environment only.
type ServerConfig struct {
	Env             string   `validate:"required"`
	Port            string   `validate:"required,numeric"`
	CORSHosts       []string `validate:"dive,required"`
	ProjectID       string
	CredentialsJSON string
	ResendKey       string
	AlertFrom       string `validate:"omitempty,email"`
}

type CacheConfig struct {
	TTLByCollection map[string]time.Duration `yaml:"ttlByCollection" validate:"dive,gt=0"`
	DefaultTTL      time.Duration            `yaml:"defaultTTL" validate:"gt=0"`
	CleanupInterval time.Duration            `yaml:"cleanupInterval" validate:"gt=0"`
	MemoSize        int                      `yaml:"memoSize" validate:"min=1"`
}

type QueriesConfig struct {
	RowCaps map[string]map[string]int          `yaml:"rowCapByRoleAndCollection" validate:"dive,dive,gte=0"`
	Windows map[string]map[string]query.Window `yaml:"windowByRoleAndCollection" validate:"dive,dive"`
}

// MonitorConfig holds the thresholds of the cache cleanup report.
type MonitorConfig struct {
	MinRequests     int           `yaml:"minRequests" validate:"min=1"`
	MinHitRate      float64       `yaml:"minHitRate" validate:"gte=0,lte=100"`
	MaxAvgQueryTime time.Duration `yaml:"maxAvgQueryTime" validate:"gt=0"`
	AlertEmail      string        `yaml:"alertEmail" validate:"omitempty,email"`
}

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"-"`
	Cache   CacheConfig   `yaml:"cache"`
	Queries QueriesConfig `yaml:"queries"`
	Monitor MonitorConfig `yaml:"monitor"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Default returns the built-in configuration.
func Default() *Config {
	qc := query.DefaultConfig()
	cfg := &Config{
		Server: ServerConfig{
			Env:  "development",
			Port: "8080",
		},
		Cache: CacheConfig{
			TTLByCollection: map[string]time.Duration{
				string(records.CollectionJobPostings):       5 * time.Minute,
				string(records.CollectionStaff):             10 * time.Minute,
				string(records.CollectionApplications):      2 * time.Minute,
				string(records.CollectionWorkLogs):          15 * time.Minute,
				string(records.CollectionAttendanceRecords): 1 * time.Minute,
				string(records.CollectionTournaments):       30 * time.Minute,
			},
			DefaultTTL:      cache.DefaultTTL,
			CleanupInterval: time.Minute,
			MemoSize:        cache.DefaultMemoSize,
		},
		Queries: QueriesConfig{
			RowCaps: map[string]map[string]int{},
			Windows: map[string]map[string]query.Window{},
		},
		Monitor: MonitorConfig{
			MinRequests:     10,
			MinHitRate:      30,
			MaxAvgQueryTime: 150 * time.Millisecond,
		},
	}
	for role, caps := range qc.RowCaps {
		m := map[string]int{}
		for col, n := range caps {
			m[string(col)] = n
		}
		cfg.Queries.RowCaps[string(role)] = m
	}
	for role, windows := range qc.Windows {
		m := map[string]query.Window{}
		for col, w := range windows {
			m[string(col)] = w
		}
		cfg.Queries.Windows[string(role)] = m
	}
	return cfg
}

// Load builds the configuration from the defaults, the YAML file at path
// (skipped when path is empty), a .env file if present and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Env = getEnv("APP_ENV", cfg.Server.Env)
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.CORSHosts = getEnvSlice("CORS_HOSTS")
	cfg.Server.ProjectID = getEnv("FIREBASE_PROJECT_ID", cfg.Server.ProjectID)
	cfg.Server.CredentialsJSON = getEnv("FIREBASE_CREDENTIALS_JSON", cfg.Server.CredentialsJSON)
	cfg.Server.ResendKey = getEnv("RESEND_KEY", cfg.Server.ResendKey)
	cfg.Server.AlertFrom = getEnv("ALERT_FROM", cfg.Server.AlertFrom)
	cfg.Monitor.AlertEmail = getEnv("ALERT_EMAIL", cfg.Monitor.AlertEmail)
}

// Validate validates the configuration struct and the role and collection
// keys of the cache and query tables.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	for name := range cfg.Cache.TTLByCollection {
		if _, err := records.ParseCollection(name); err != nil {
			return fmt.Errorf("invalid cache.ttlByCollection key %q: %w", name, err)
		}
	}
	if _, err := cfg.QueryConfig(); err != nil {
		return err
	}
	return nil
}

// QueryConfig converts the query tables into the selector's typed form.
func (c *Config) QueryConfig() (query.Config, error) {
	out := query.Config{
		RowCaps: map[records.Role]map[records.Collection]int{},
		Windows: map[records.Role]map[records.Collection]query.Window{},
	}
	for roleName, caps := range c.Queries.RowCaps {
		role, err := parseRoleKey(roleName)
		if err != nil {
			return query.Config{}, fmt.Errorf("invalid queries.rowCapByRoleAndCollection key %q: %w", roleName, err)
		}
		m := map[records.Collection]int{}
		for colName, n := range caps {
			col, err := records.ParseCollection(colName)
			if err != nil {
				return query.Config{}, fmt.Errorf("invalid queries.rowCapByRoleAndCollection.%s key %q: %w", roleName, colName, err)
			}
			m[col] = n
		}
		out.RowCaps[role] = m
	}
	for roleName, windows := range c.Queries.Windows {
		role, err := parseRoleKey(roleName)
		if err != nil {
			return query.Config{}, fmt.Errorf("invalid queries.windowByRoleAndCollection key %q: %w", roleName, err)
		}
		m := map[records.Collection]query.Window{}
		for colName, w := range windows {
			col, err := records.ParseCollection(colName)
			if err != nil {
				return query.Config{}, fmt.Errorf("invalid queries.windowByRoleAndCollection.%s key %q: %w", roleName, colName, err)
			}
			if !query.Windowable(col) && !w.IsZero() {
				return query.Config{}, fmt.Errorf("queries.windowByRoleAndCollection.%s: %s has no date field", roleName, colName)
			}
			m[col] = w
		}
		out.Windows[role] = m
	}
	return out, nil
}

// TTLs returns the cache TTL table.
func (c *Config) TTLs() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.Cache.TTLByCollection))
	for k, v := range c.Cache.TTLByCollection {
		out[k] = v
	}
	return out
}

// parseRoleKey only accepts canonical role names so that "employer" and
// "manager" cannot both configure the same role.
func parseRoleKey(s string) (records.Role, error) {
	role, err := records.ParseRole(s)
	if err != nil {
		return "", err
	}
	if string(role) != s {
		return "", fmt.Errorf("%w: use %q", records.ErrUnknownRole, role)
	}
	return role, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
