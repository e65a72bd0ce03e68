package am

import (
	"fmt"

	"github.com/spf13/viper"
)

// DefaultUnorderedLinkTypes is the unordered link type set used when none is configured
var DefaultUnorderedLinkTypes = []string{"Set"}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backend.kind", BackendMemory)

	// Docstore defaults
	v.SetDefault("database.path", "atomdb.db")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.key_prefix", "atomdb")

	// Remote defaults
	v.SetDefault("remote.url", fmt.Sprintf("http://localhost:%d", DefaultServerPort))
	v.SetDefault("remote.retry_max", 3)
	v.SetDefault("remote.retry_wait_ms", 500)
	v.SetDefault("remote.timeout_seconds", 30)

	// Query defaults
	v.SetDefault("query.chunk_size", 0)
	v.SetDefault("query.toplevel_only", false)

	v.SetDefault("server.port", DefaultServerPort)

	v.SetDefault("schema.unordered_link_types", DefaultUnorderedLinkTypes)
}

// BindSensitiveEnvVars explicitly binds connection strings to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("database.path", "ATOMDB_DATABASE_PATH")
	v.BindEnv("redis.url", "ATOMDB_REDIS_URL")
	v.BindEnv("remote.url", "ATOMDB_REMOTE_URL")
}

// GetServerPort returns the configured server port, or DefaultServerPort
func (c *Config) GetServerPort() int {
	if c.Server.Port == nil {
		return DefaultServerPort
	}
	return *c.Server.Port
}

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return "atomdb.db"
	}
	return c.Database.Path
}

// GetUnorderedLinkTypes returns the configured unordered link types.
// An explicit empty list means every link type is ordered.
func (c *Config) GetUnorderedLinkTypes() []string {
	if c.Schema.UnorderedLinkTypes == nil {
		return DefaultUnorderedLinkTypes
	}
	return c.Schema.UnorderedLinkTypes
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Backend: %s, Database: %s, Remote: %s, ChunkSize: %d}",
		c.Backend.Kind, c.Database.Path, c.Remote.URL, c.Query.ChunkSize)
}
