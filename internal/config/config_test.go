package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		yamlContent string
		wantConfig  *Config
		wantErr     string
	}{
		{
			name: "sqlite with site settings",
			yamlContent: `siteName: "Framastatus"
baseURL: "https://status.example.org/"
outputDir: /srv/status
templatesDir: /etc/status/templates
watch: true
storage:
  type: sqlite
  sqlite:
    path: /var/lib/status/status.db`,
			wantConfig: &Config{
				SiteName:     "Framastatus",
				BaseURL:      "https://status.example.org/",
				OutputDir:    "/srv/status",
				TemplatesDir: "/etc/status/templates",
				Watch:        true,
				Storage: StorageConfig{
					Type:   StorageTypeSQLite,
					SQLite: &SQLiteConfig{Path: "/var/lib/status/status.db"},
				},
			},
		},
		{
			name: "postgres",
			yamlContent: `storage:
  type: postgres
  postgres:
    host: db.internal
    port: 5432
    user: status
    database: status
    maxOpenConns: 5
    connMaxLifetime: 30m`,
			wantConfig: &Config{
				SiteName:  defaultSiteName,
				OutputDir: defaultOutputDir,
				Storage: StorageConfig{
					Type: StorageTypePostgres,
					Postgres: &DatabaseConfig{
						Host:            "db.internal",
						Port:            5432,
						User:            "status",
						Database:        "status",
						MaxOpenConns:    5,
						ConnMaxLifetime: "30m",
					},
				},
			},
		},
		{
			name:        "defaults",
			yamlContent: `siteName: ""`,
			wantConfig: &Config{
				SiteName:  defaultSiteName,
				OutputDir: defaultOutputDir,
				Storage: StorageConfig{
					Type:   StorageTypeSQLite,
					SQLite: &SQLiteConfig{Path: defaultSQLite},
				},
			},
		},
		{
			name:        "memory",
			yamlContent: "storage:\n  type: memory",
			wantConfig: &Config{
				SiteName:  defaultSiteName,
				OutputDir: defaultOutputDir,
				Storage:   StorageConfig{Type: StorageTypeMemory},
			},
		},
		{
			name:        "invalid yaml",
			yamlContent: "storage: [",
			wantErr:     "failed to parse YAML config",
		},
		{
			name:        "relative base url",
			yamlContent: "baseURL: status.example.org",
			wantErr:     "baseURL must be an absolute URL",
		},
		{
			name:        "unsupported storage",
			yamlContent: "storage:\n  type: redis",
			wantErr:     `unsupported type "redis"`,
		},
		{
			name:        "postgres without section",
			yamlContent: "storage:\n  type: postgres",
			wantErr:     "postgres configuration is required",
		},
		{
			name:        "postgres without host",
			yamlContent: "storage:\n  type: postgres\n  postgres:\n    database: status",
			wantErr:     "postgres.host is required",
		},
		{
			name: "postgres with bad lifetime",
			yamlContent: `storage:
  type: postgres
  postgres:
    host: db
    database: status
    connMaxLifetime: forever`,
			wantErr: "connMaxLifetime must be a valid duration",
		},
		{
			name: "jwt auth",
			yamlContent: `storage:
  type: memory
auth:
  mode: jwt
  jwt:
    issuer: ops
    secretFile: /run/secrets/jwt`,
			wantConfig: &Config{
				SiteName:  defaultSiteName,
				OutputDir: defaultOutputDir,
				Storage:   StorageConfig{Type: StorageTypeMemory},
				Auth: &AuthConfig{
					Mode: AuthModeJWT,
					JWT:  &JWTConfig{Issuer: "ops", SecretFile: "/run/secrets/jwt"},
				},
			},
		},
		{
			name:        "unknown auth mode",
			yamlContent: "auth:\n  mode: oauth",
			wantErr:     `unsupported mode "oauth"`,
		},
		{
			name:        "sqlite without path",
			yamlContent: "storage:\n  type: sqlite\n  sqlite:\n    path: \"\"",
			wantErr:     "sqlite.path is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := LoadConfig(WithConfigPath(writeConfig(t, tt.yamlContent)))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantConfig, cfg)
		})
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, defaultSiteName, cfg.SiteName)
	assert.Equal(t, StorageTypeSQLite, cfg.Storage.Type)
}

func TestLoadConfig_OutputDirFromEnv(t *testing.T) {
	t.Setenv(OutputDirEnvVar, "/tmp/status-out")

	cfg, err := LoadConfig(WithConfigPath(writeConfig(t, "outputDir: /srv/status")))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/status-out", cfg.OutputDir)
}

func TestWithConfigPath(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(WithConfigPath(""))
	assert.ErrorContains(t, err, "path is required")

	_, err = LoadConfig(WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")))
	assert.ErrorContains(t, err, "failed to evaluate symlinks")
}

func TestDatabaseConfig_GetPassword_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(path, []byte("s3cret\n"), 0o600))

	password, err := (&DatabaseConfig{PasswordFile: path}).GetPassword()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", password)

	_, err = (&DatabaseConfig{PasswordFile: path + ".missing"}).GetPassword()
	assert.Error(t, err)
}

func TestDatabaseConfig_GetPassword_Env(t *testing.T) {
	t.Setenv(PasswordEnvVar, "")
	_, err := (&DatabaseConfig{}).GetPassword()
	assert.ErrorContains(t, err, PasswordEnvVar)

	t.Setenv(PasswordEnvVar, "from-env")
	password, err := (&DatabaseConfig{}).GetPassword()
	require.NoError(t, err)
	assert.Equal(t, "from-env", password)
}

func TestDatabaseConfig_GetConnectionString(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(path, []byte("p@ss:word/"), 0o600))

	d := &DatabaseConfig{Host: "db", Port: 5432, User: "status", Database: "status", PasswordFile: path}
	conn, err := d.GetConnectionString()
	require.NoError(t, err)
	assert.Equal(t, "postgres://status:p%40ss%3Aword%2F@db:5432/status?sslmode=require", conn)

	d.SSLMode = "disable"
	conn, err = d.GetConnectionString()
	require.NoError(t, err)
	assert.Contains(t, conn, "sslmode=disable")
}

func TestDatabaseConfig_GetConnMaxLifetime(t *testing.T) {
	t.Parallel()

	d, err := (&DatabaseConfig{}).GetConnMaxLifetime()
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = (&DatabaseConfig{ConnMaxLifetime: "1h"}).GetConnMaxLifetime()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)
}

func TestGetBaseURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://status.example.org", (&Config{BaseURL: "https://status.example.org/"}).GetBaseURL())
	assert.Empty(t, (&Config{}).GetBaseURL())
}

func TestJWTConfig_GetSecret_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	long := filepath.Join(dir, "long")
	require.NoError(t, os.WriteFile(long, []byte("0123456789abcdef0123456789abcdef\n"), 0o600))
	short := filepath.Join(dir, "short")
	require.NoError(t, os.WriteFile(short, []byte("tooshort"), 0o600))

	secret, err := (&JWTConfig{SecretFile: long}).GetSecret()
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789abcdef0123456789abcdef"), secret)

	_, err = (&JWTConfig{SecretFile: short}).GetSecret()
	assert.ErrorContains(t, err, "at least 32 bytes")

	_, err = (&JWTConfig{SecretFile: filepath.Join(dir, "missing")}).GetSecret()
	assert.Error(t, err)
}

func TestJWTConfig_GetSecret_Env(t *testing.T) {
	t.Setenv(JWTSecretEnvVar, "")
	var cfg *JWTConfig
	_, err := cfg.GetSecret()
	assert.ErrorContains(t, err, JWTSecretEnvVar)

	t.Setenv(JWTSecretEnvVar, "abcdefghijklmnopqrstuvwxyz0123456789")
	secret, err := cfg.GetSecret()
	require.NoError(t, err)
	assert.Len(t, secret, 36)
}
