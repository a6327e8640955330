// Package config provides configuration loading and management for the status page server.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/status-page-server/internal/telemetry"
)

const (
	// StorageTypeSQLite stores records in a local SQLite database file
	StorageTypeSQLite = "sqlite"

	// StorageTypePostgres stores records in a PostgreSQL database
	StorageTypePostgres = "postgres"

	// StorageTypeMemory keeps records in process memory only
	StorageTypeMemory = "memory"
)

const (
	// EnvPrefix is the prefix of every environment variable read by the server
	EnvPrefix = "STATUSPAGE"

	// PasswordEnvVar holds the database password when no password file is configured
	PasswordEnvVar = EnvPrefix + "_DATABASE_PASSWORD"

	// OutputDirEnvVar overrides outputDir
	OutputDirEnvVar = EnvPrefix + "_OUTPUT_DIR"

	// JWTSecretEnvVar holds the admin token signing secret when no secret file is configured
	JWTSecretEnvVar = EnvPrefix + "_JWT_SECRET"

	defaultSiteName  = "Status"
	defaultOutputDir = "./public"
	defaultSQLite    = "./data/status.db"
)

const (
	// AuthModeAnonymous leaves the admin API open
	AuthModeAnonymous = "anonymous"

	// AuthModeJWT requires an HMAC signed bearer token on the admin API
	AuthModeJWT = "jwt"

	// minJWTSecretLength is the shortest accepted signing secret, in bytes
	minJWTSecretLength = 32
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// SiteName is used as the page and feed title
	SiteName string `yaml:"siteName,omitempty"`

	// BaseURL is the public URL of the site, used for absolute links in the feed
	BaseURL string `yaml:"baseURL,omitempty"`

	// OutputDir is the root the rendered artifacts are written to and served from
	OutputDir string `yaml:"outputDir,omitempty"`

	// TemplatesDir overrides the embedded page templates when set
	TemplatesDir string `yaml:"templatesDir,omitempty"`

	// AssetsDir overrides the embedded static assets when set
	AssetsDir string `yaml:"assetsDir,omitempty"`

	// Watch enables hot reload of templates and assets
	Watch bool `yaml:"watch,omitempty"`

	Storage   StorageConfig     `yaml:"storage"`
	Auth      *AuthConfig       `yaml:"auth,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// AuthConfig protects the admin API
type AuthConfig struct {
	// Mode is anonymous (default) or jwt
	Mode string `yaml:"mode,omitempty"`

	// Realm is reported in the WWW-Authenticate header
	Realm string `yaml:"realm,omitempty"`

	JWT *JWTConfig `yaml:"jwt,omitempty"`
}

// JWTConfig defines how admin bearer tokens are verified
type JWTConfig struct {
	// SecretFile is the path to a file containing the HMAC signing secret
	SecretFile string `yaml:"secretFile,omitempty"`

	// Issuer, when set, must match the iss claim
	Issuer string `yaml:"issuer,omitempty"`

	// Audience, when set, must be contained in the aud claim
	Audience string `yaml:"audience,omitempty"`
}

// GetSecret returns the signing secret from SecretFile, or from STATUSPAGE_JWT_SECRET.
// Secrets shorter than 32 bytes are rejected.
func (j *JWTConfig) GetSecret() ([]byte, error) {
	var secret string
	switch {
	case j != nil && j.SecretFile != "":
		data, err := os.ReadFile(filepath.Clean(j.SecretFile))
		if err != nil {
			return nil, fmt.Errorf("failed to read JWT secret from file %s: %w", j.SecretFile, err)
		}
		secret = strings.TrimSpace(string(data))
	default:
		secret = os.Getenv(JWTSecretEnvVar)
	}

	if secret == "" {
		return nil, fmt.Errorf("no JWT secret configured: set jwt.secretFile or %s environment variable", JWTSecretEnvVar)
	}
	if len(secret) < minJWTSecretLength {
		return nil, fmt.Errorf("JWT secret must be at least %d bytes long", minJWTSecretLength)
	}
	return []byte(secret), nil
}

// StorageConfig selects and configures the record store
type StorageConfig struct {
	// Type is one of sqlite, postgres or memory. Defaults to sqlite.
	Type     string          `yaml:"type,omitempty"`
	SQLite   *SQLiteConfig   `yaml:"sqlite,omitempty"`
	Postgres *DatabaseConfig `yaml:"postgres,omitempty"`
}

// SQLiteConfig defines the SQLite database file
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from STATUSPAGE_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(PasswordEnvVar); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s environment variable", PasswordEnvVar,
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// GetConnMaxLifetime parses ConnMaxLifetime, returning zero when unset
func (d *DatabaseConfig) GetConnMaxLifetime() (time.Duration, error) {
	if d.ConnMaxLifetime == "" {
		return 0, nil
	}
	return time.ParseDuration(d.ConnMaxLifetime)
}

// LoadConfig loads and parses configuration from a YAML file.
// Without a path the defaults are returned, so the server can start with no file at all.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	var config Config
	if loaderCfg.path != "" {
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) applyEnv() {
	if dir := os.Getenv(OutputDirEnvVar); dir != "" {
		c.OutputDir = dir
	}
}

func (c *Config) applyDefaults() {
	if c.SiteName == "" {
		c.SiteName = defaultSiteName
	}
	if c.OutputDir == "" {
		c.OutputDir = defaultOutputDir
	}
	if c.Storage.Type == "" {
		c.Storage.Type = StorageTypeSQLite
	}
	if c.Storage.Type == StorageTypeSQLite && c.Storage.SQLite == nil {
		c.Storage.SQLite = &SQLiteConfig{Path: defaultSQLite}
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("baseURL must be an absolute URL, got %q", c.BaseURL)
		}
	}

	if err := c.Storage.validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	if c.Auth != nil {
		switch c.Auth.Mode {
		case "", AuthModeAnonymous, AuthModeJWT:
		default:
			return fmt.Errorf("auth: unsupported mode %q: must be %s or %s", c.Auth.Mode, AuthModeAnonymous, AuthModeJWT)
		}
	}

	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}

	return nil
}

func (s *StorageConfig) validate() error {
	switch s.Type {
	case StorageTypeMemory:
		return nil
	case StorageTypeSQLite:
		if s.SQLite == nil || s.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required")
		}
		return nil
	case StorageTypePostgres:
		if s.Postgres == nil {
			return fmt.Errorf("postgres configuration is required")
		}
		if s.Postgres.Host == "" {
			return fmt.Errorf("postgres.host is required")
		}
		if s.Postgres.Database == "" {
			return fmt.Errorf("postgres.database is required")
		}
		if _, err := s.Postgres.GetConnMaxLifetime(); err != nil {
			return fmt.Errorf("postgres.connMaxLifetime must be a valid duration (e.g., '30m', '1h'): %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported type %q: must be one of %s, %s or %s",
			s.Type, StorageTypeSQLite, StorageTypePostgres, StorageTypeMemory)
	}
}

// GetBaseURL returns BaseURL without a trailing slash
func (c *Config) GetBaseURL() string {
	return strings.TrimRight(c.BaseURL, "/")
}
