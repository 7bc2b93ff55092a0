package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── helpers ───────────────────────────────────────────────────────────────────

func writeTempFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func parseFlags(t *testing.T, args ...string) *Flags {
	t.Helper()
	f := &Flags{}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.Register(fs)
	require.NoError(t, fs.Parse(args))
	return f
}

// ── build ─────────────────────────────────────────────────────────────────────

// TestBuild_EmptyBuilder verifies that building with no configs returns a
// zero-value StructuredConfig.
func TestBuild_EmptyBuilder(t *testing.T) {
	cfg, err := newConfigBuilder().build()
	require.NoError(t, err)
	assert.Equal(t, &StructuredConfig{}, cfg)
}

// TestBuild_PropagatesBuilderError verifies that a pre-set b.err is wrapped
// and returned, with nil config.
func TestBuild_PropagatesBuilderError(t *testing.T) {
	b := newConfigBuilder()
	b.err = assert.AnError

	cfg, err := b.build()
	assert.Nil(t, cfg)
	assert.ErrorIs(t, err, assert.AnError)
}

// TestBuild_LaterSourcesWin verifies that non-zero fields of later configs
// override earlier ones.
func TestBuild_LaterSourcesWin(t *testing.T) {
	b := newConfigBuilder().withDefaults()
	b.configs = append(b.configs,
		&StructuredConfig{App: App{Name: "todo"}, APIVersion: "2.0"},
		&StructuredConfig{APIVersion: "3.0-beta"},
	)

	cfg, err := b.build()
	require.NoError(t, err)
	assert.Equal(t, "todo", cfg.App.Name)
	assert.Equal(t, "3.0-beta", cfg.APIVersion)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 3, cfg.Client.MaxAttempts)
}

// TestBuild_FeatureFalseOverridesTrue verifies that an explicit false in a
// later source disables a feature enabled earlier.
func TestBuild_FeatureFalseOverridesTrue(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs,
		&StructuredConfig{Features: map[string]bool{"Mongo": true, "OpenApi": true}},
		&StructuredConfig{Features: map[string]bool{"Mongo": false}},
	)

	cfg, err := b.build()
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"Mongo": false, "OpenApi": true}, cfg.Features)
}

func TestBuild_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     StructuredConfig
		wantErr error
	}{
		{name: "bad address", cfg: StructuredConfig{Server: Server{Address: "nope"}}, wantErr: ErrInvalidServerConfigs},
		{name: "negative timeout", cfg: StructuredConfig{Server: Server{ReadTimeout: -time.Second}}, wantErr: ErrInvalidServerConfigs},
		{name: "too many attempts", cfg: StructuredConfig{Client: Client{MaxAttempts: 11}}, wantErr: ErrInvalidClientConfigs},
		{name: "unknown backoff", cfg: StructuredConfig{Client: Client{Backoff: "fibonacci"}}, wantErr: ErrInvalidClientConfigs},
		{name: "unknown driver", cfg: StructuredConfig{Storage: Storage{DB: DB{Driver: "oracle"}}}, wantErr: ErrInvalidStorageConfigs},
		{name: "valid", cfg: StructuredConfig{Server: Server{Address: "127.0.0.1:9000"}, Client: Client{Backoff: BackoffConstant}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newConfigBuilder()
			cfg := tt.cfg
			b.configs = append(b.configs, &cfg)

			_, err := b.build()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

// ── withFile ──────────────────────────────────────────────────────────────────

func TestWithFile_NoOpWithoutPath(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs, &StructuredConfig{})
	b.withFile()

	assert.Len(t, b.configs, 1)
	assert.NoError(t, b.err)
}

func TestWithFile_InsertedBelowEnvAndFlags(t *testing.T) {
	path := writeTempFile(t, "config.yaml", "api_version: \"5.0\"\napp:\n  name: from-file\n")

	b := newConfigBuilder().withDefaults()
	b.configs = append(b.configs, &StructuredConfig{APIVersion: "6.0", ConfigFile: path})
	b.withFile()

	require.NoError(t, b.err)
	require.Len(t, b.configs, 3)

	cfg, err := b.build()
	require.NoError(t, err)
	assert.Equal(t, "6.0", cfg.APIVersion)
	assert.Equal(t, "from-file", cfg.App.Name)
}

func TestWithFile_MissingFile(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs, &StructuredConfig{ConfigFile: filepath.Join(t.TempDir(), "absent.json")})
	b.withFile()

	assert.Error(t, b.err)
}

// ── withDotEnv ────────────────────────────────────────────────────────────────

func TestWithDotEnv_LoadsIntoEnvironment(t *testing.T) {
	path := writeTempFile(t, "test.env", "APP_NAME=dotenv-service\n")
	t.Setenv("APP_NAME", "")
	require.NoError(t, os.Unsetenv("APP_NAME"))

	cfg, err := newConfigBuilder().
		withDotEnv(&Flags{DotEnvFile: path}).
		withEnv().
		build()

	require.NoError(t, err)
	assert.Equal(t, "dotenv-service", cfg.App.Name)
}

func TestWithDotEnv_ExplicitMissingFileIsError(t *testing.T) {
	b := newConfigBuilder().withDotEnv(&Flags{DotEnvFile: filepath.Join(t.TempDir(), "missing.env")})
	assert.Error(t, b.err)
}

func TestWithDotEnv_DefaultMissingFileIsIgnored(t *testing.T) {
	t.Chdir(t.TempDir())
	b := newConfigBuilder().withDotEnv(nil)
	assert.NoError(t, b.err)
}

// ── GetStructuredConfig ───────────────────────────────────────────────────────

func TestGetStructuredConfig_Precedence(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeTempFile(t, "config.json", `{
		"app": {"name": "file-name", "environment": "staging"},
		"api_version": "1.5",
		"features": {"OpenApi": true, "AuthN": true},
		"openapi": {"title": "Todo"}
	}`)

	t.Setenv("APP_ENVIRONMENT", "development")
	t.Setenv("FEATURES", "AuthN=false,Mongo=true")

	flags := parseFlags(t, "--config", path, "--api-version", "2.0", "-a", "127.0.0.1:9090")

	cfg, err := GetStructuredConfig(flags)
	require.NoError(t, err)

	assert.Equal(t, "file-name", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.True(t, cfg.App.IsDevelopment())
	assert.Equal(t, "2.0", cfg.APIVersion)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Address)
	assert.Equal(t, map[string]bool{"OpenApi": true, "AuthN": false, "Mongo": true}, cfg.Features)
	require.NotNil(t, cfg.OpenAPI)
	assert.Equal(t, "Todo", cfg.OpenAPI.Title)
	assert.Len(t, cfg.Tracing.Headers, 9)
}
