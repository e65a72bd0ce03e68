package commands

import (
	"context"
	"time"

	"github.com/teranos/atomdb/am"
	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/ix"
	"github.com/teranos/atomdb/logger"
	"github.com/teranos/atomdb/storage"
	"github.com/teranos/atomdb/storage/docstore"
	"github.com/teranos/atomdb/storage/memory"
	"github.com/teranos/atomdb/storage/remote"
)

// Global flags shared by every command.
var (
	ConfigPath  string
	BackendKind string
)

// loadConfig resolves configuration from --config or the am cascade and
// applies the --backend override.
func loadConfig() (*am.Config, error) {
	var (
		cfg *am.Config
		err error
	)
	if ConfigPath != "" {
		cfg, err = am.LoadFromFile(ConfigPath)
	} else {
		cfg, err = am.Load()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if BackendKind != "" {
		c := *cfg
		c.Backend.Kind = BackendKind
		cfg = &c
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// openBackend opens the backend cfg selects.
func openBackend(ctx context.Context, cfg *am.Config) (storage.Backend, error) {
	schema := atom.NewSchema(cfg.GetUnorderedLinkTypes()...)
	log := logger.Logger.Named("storage")

	switch cfg.Backend.Kind {
	case am.BackendDocstore:
		opts := []docstore.Option{docstore.WithSchema(schema), docstore.WithLogger(log)}
		if cfg.Redis.KeyPrefix != "" {
			opts = append(opts, docstore.WithKeyPrefix(cfg.Redis.KeyPrefix))
		}
		s, err := docstore.Open(ctx, docstore.Config{
			DatabasePath: cfg.GetDatabasePath(),
			RedisURL:     cfg.Redis.URL,
		}, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil

	case am.BackendRemote:
		c, err := remote.Open(ctx, remote.Config{
			URL:       cfg.Remote.URL,
			RetryMax:  cfg.Remote.RetryMax,
			RetryWait: time.Duration(cfg.Remote.RetryWaitMS) * time.Millisecond,
			Timeout:   time.Duration(cfg.Remote.TimeoutSeconds) * time.Second,
		}, remote.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return c, nil

	default:
		return memory.New(memory.WithSchema(schema), memory.WithLogger(log)), nil
	}
}

// preload loads knowledge-base files before a command runs. It is how the
// memory backend gets any data at all.
func preload(ctx context.Context, b storage.Backend, paths []string) error {
	p := ix.NewProcessor(b, false, logger.Logger.Named("ix"))
	for _, path := range paths {
		res, err := p.LoadFile(ctx, path)
		if err != nil {
			return err
		}
		logger.Logger.Infow("Preloaded knowledge base",
			logger.FieldPath, path,
			logger.FieldNodeCount, res.NodesAdded,
			logger.FieldLinkCount, res.LinksAdded,
		)
	}
	return nil
}
