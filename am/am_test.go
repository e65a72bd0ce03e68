package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func TestLoad_Defaults(t *testing.T) {
	// Isolated viper instance without loading user/system config
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Backend.Kind)
	assert.Equal(t, "atomdb.db", cfg.Database.Path)
	assert.Equal(t, "atomdb", cfg.Redis.KeyPrefix)
	assert.Equal(t, 3, cfg.Remote.RetryMax)
	assert.Equal(t, 500, cfg.Remote.RetryWaitMS)
	assert.Equal(t, 0, cfg.Query.ChunkSize)
	assert.Equal(t, DefaultServerPort, cfg.GetServerPort())
	assert.Equal(t, []string{"Set"}, cfg.GetUnorderedLinkTypes())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "am.toml")
	content := `
[backend]
kind = "remote"

[remote]
url = "http://atoms.local:9000"
retry_max = 5

[query]
chunk_size = 100
toplevel_only = true

[schema]
unordered_link_types = ["Set", "Similarity"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, BackendRemote, cfg.Backend.Kind)
	assert.Equal(t, "http://atoms.local:9000", cfg.Remote.URL)
	assert.Equal(t, 5, cfg.Remote.RetryMax)
	assert.Equal(t, 500, cfg.Remote.RetryWaitMS, "unset values keep defaults")
	assert.Equal(t, 100, cfg.Query.ChunkSize)
	assert.True(t, cfg.Query.ToplevelOnly)
	assert.Equal(t, []string{"Set", "Similarity"}, cfg.GetUnorderedLinkTypes())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "empty config is valid", config: Config{}},
		{name: "unknown backend", config: Config{Backend: BackendConfig{Kind: "cassandra"}}, wantErr: true},
		{
			name:    "docstore without redis",
			config:  Config{Backend: BackendConfig{Kind: BackendDocstore}},
			wantErr: true,
		},
		{
			name:   "docstore with redis",
			config: Config{Backend: BackendConfig{Kind: BackendDocstore}, Redis: RedisConfig{URL: "redis://localhost:6379"}},
		},
		{
			name:    "remote without url",
			config:  Config{Backend: BackendConfig{Kind: BackendRemote}},
			wantErr: true,
		},
		{
			name:    "remote with non-http scheme",
			config:  Config{Backend: BackendConfig{Kind: BackendRemote}, Remote: RemoteConfig{URL: "ftp://x"}},
			wantErr: true,
		},
		{name: "zero port is invalid", config: Config{Server: ServerConfig{Port: intPtr(0)}}, wantErr: true},
		{name: "negative port is invalid", config: Config{Server: ServerConfig{Port: intPtr(-1)}}, wantErr: true},
		{name: "zero retries is valid", config: Config{Remote: RemoteConfig{RetryMax: 0}}},
		{name: "negative retries", config: Config{Remote: RemoteConfig{RetryMax: -1}}, wantErr: true},
		{name: "negative chunk size", config: Config{Query: QueryConfig{ChunkSize: -5}}, wantErr: true},
		{
			name:    "wildcard as unordered type",
			config:  Config{Schema: SchemaConfig{UnorderedLinkTypes: []string{"*"}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetUnorderedLinkTypes_ExplicitEmpty(t *testing.T) {
	cfg := Config{Schema: SchemaConfig{UnorderedLinkTypes: []string{}}}
	assert.Empty(t, cfg.GetUnorderedLinkTypes())
}

func TestSave_RotatesBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "am.toml")

	cfg := &Config{Backend: BackendConfig{Kind: BackendMemory}}
	require.NoError(t, Save(cfg, path))
	_, err := os.Stat(path + ".back1")
	assert.True(t, os.IsNotExist(err), "first save has nothing to back up")

	cfg.Backend.Kind = BackendRemote
	cfg.Remote.URL = "http://localhost:8877"
	require.NoError(t, Save(cfg, path))
	require.NoError(t, Save(cfg, path))

	assert.FileExists(t, path+".back1")
	assert.FileExists(t, path+".back2")

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, BackendRemote, loaded.Backend.Kind)
	assert.Equal(t, "http://localhost:8877", loaded.Remote.URL)
}

func TestEnvOverride(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Setenv("ATOMDB_BACKEND_KIND", BackendDocstore)
	t.Setenv("ATOMDB_REDIS_URL", "redis://cache:6379/2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendDocstore, cfg.Backend.Kind)
	assert.Equal(t, "redis://cache:6379/2", cfg.Redis.URL)
}
