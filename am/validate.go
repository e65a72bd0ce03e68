package am

import (
	"net/url"

	"github.com/teranos/atomdb/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	switch c.Backend.Kind {
	case "", BackendMemory:
	case BackendDocstore:
		if c.Redis.URL == "" {
			return errors.New("redis.url cannot be empty when backend.kind = docstore")
		}
		if _, err := url.Parse(c.Redis.URL); err != nil {
			return errors.Wrapf(err, "redis.url %q is not a valid URL", c.Redis.URL)
		}
	case BackendRemote:
		if c.Remote.URL == "" {
			return errors.New("remote.url cannot be empty when backend.kind = remote")
		}
		u, err := url.Parse(c.Remote.URL)
		if err != nil {
			return errors.Wrapf(err, "remote.url %q is not a valid URL", c.Remote.URL)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.Newf("remote.url must use http or https, got %q", u.Scheme)
		}
	default:
		return errors.Newf("backend.kind must be one of memory, docstore, remote; got %q", c.Backend.Kind)
	}

	// Server port: 0 is invalid (omit for default), negative is invalid
	if c.Server.Port != nil && *c.Server.Port == 0 {
		return errors.Newf("server.port cannot be 0 (omit for default port %d)", DefaultServerPort)
	}
	if c.Server.Port != nil && *c.Server.Port < 0 {
		return errors.Newf("server.port must be positive, got %d", *c.Server.Port)
	}

	// Retries: 0 = no retries, negative = invalid
	if c.Remote.RetryMax < 0 {
		return errors.Newf("remote.retry_max must be >= 0, got %d", c.Remote.RetryMax)
	}
	if c.Remote.RetryWaitMS < 0 {
		return errors.Newf("remote.retry_wait_ms must be >= 0, got %d", c.Remote.RetryWaitMS)
	}
	if c.Remote.TimeoutSeconds < 0 {
		return errors.Newf("remote.timeout_seconds must be >= 0, got %d", c.Remote.TimeoutSeconds)
	}

	// Chunk size: 0 = single page, negative = invalid
	if c.Query.ChunkSize < 0 {
		return errors.Newf("query.chunk_size must be >= 0, got %d", c.Query.ChunkSize)
	}

	for _, t := range c.Schema.UnorderedLinkTypes {
		if t == "" || t == "*" {
			return errors.Newf("schema.unordered_link_types contains invalid type %q", t)
		}
	}

	return nil
}
