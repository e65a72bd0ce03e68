package am

// Config represents the atomdb configuration
type Config struct {
	Backend  BackendConfig  `mapstructure:"backend" toml:"backend" yaml:"backend" json:"backend"`
	Database DatabaseConfig `mapstructure:"database" toml:"database" yaml:"database" json:"database"`
	Redis    RedisConfig    `mapstructure:"redis" toml:"redis" yaml:"redis" json:"redis"`
	Remote   RemoteConfig   `mapstructure:"remote" toml:"remote" yaml:"remote" json:"remote"`
	Query    QueryConfig    `mapstructure:"query" toml:"query" yaml:"query" json:"query"`
	Server   ServerConfig   `mapstructure:"server" toml:"server" yaml:"server" json:"server"`
	Schema   SchemaConfig   `mapstructure:"schema" toml:"schema" yaml:"schema" json:"schema"`
}

// Backend kinds
const (
	BackendMemory   = "memory"
	BackendDocstore = "docstore"
	BackendRemote   = "remote"
)

// BackendConfig selects the storage backend
type BackendConfig struct {
	Kind string `mapstructure:"kind" toml:"kind" yaml:"kind" json:"kind"` // memory, docstore or remote (default: memory)
}

// DatabaseConfig configures the SQLite document store used by the docstore backend
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path" yaml:"path" json:"path"`
}

// RedisConfig configures the Redis index store used by the docstore backend
type RedisConfig struct {
	URL       string `mapstructure:"url" toml:"url" yaml:"url" json:"url"`                      // e.g., "redis://localhost:6379/0"
	KeyPrefix string `mapstructure:"key_prefix" toml:"key_prefix" yaml:"key_prefix" json:"key_prefix"` // namespace for index keys (default: "atomdb")
}

// RemoteConfig configures the remote-proxy backend
type RemoteConfig struct {
	URL            string `mapstructure:"url" toml:"url" yaml:"url" json:"url"`
	RetryMax       int    `mapstructure:"retry_max" toml:"retry_max" yaml:"retry_max" json:"retry_max"`                   // bounded retries (default: 3)
	RetryWaitMS    int    `mapstructure:"retry_wait_ms" toml:"retry_wait_ms" yaml:"retry_wait_ms" json:"retry_wait_ms"`       // fixed backoff between retries (default: 500)
	TimeoutSeconds int    `mapstructure:"timeout_seconds" toml:"timeout_seconds" yaml:"timeout_seconds" json:"timeout_seconds"` // per-request timeout (default: 30)
}

// QueryConfig configures the query engine
type QueryConfig struct {
	ChunkSize    int  `mapstructure:"chunk_size" toml:"chunk_size" yaml:"chunk_size" json:"chunk_size"`             // page size for paginated lookups, 0 = single page
	ToplevelOnly bool `mapstructure:"toplevel_only" toml:"toplevel_only" yaml:"toplevel_only" json:"toplevel_only"` // only match toplevel links at the outermost level
}

// ServerConfig configures the atomdb HTTP server
type ServerConfig struct {
	Port *int `mapstructure:"port" toml:"port" yaml:"port" json:"port"` // nil = default 8877, 0 is invalid (omit for default)
}

// SchemaConfig configures link type semantics
type SchemaConfig struct {
	UnorderedLinkTypes []string `mapstructure:"unordered_link_types" toml:"unordered_link_types" yaml:"unordered_link_types" json:"unordered_link_types"`
}

// Server port constants
const (
	DefaultServerPort = 8877
)

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
