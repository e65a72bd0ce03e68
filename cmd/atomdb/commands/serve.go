package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/atomdb/logger"
	"github.com/teranos/atomdb/server"
)

// ServeCmd exposes a backend over HTTP
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Serve a backend over HTTP",
	Long: `Serve the configured backend over HTTP so that other processes can use it
through the remote backend (backend.kind = remote).

Examples:
  atomdb serve --load animals.yaml          # memory backend, preloaded
  atomdb serve --backend docstore --port 9000`,
	RunE: runServe,
}

var (
	servePort int
	serveLoad []string
)

func init() {
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config)")
	ServeCmd.Flags().StringSliceVar(&serveLoad, "load", nil, "Knowledge-base files to load before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()
	if err := preload(ctx, b, serveLoad); err != nil {
		return err
	}

	port := cfg.GetServerPort()
	if servePort > 0 {
		port = servePort
	}
	addr := fmt.Sprintf(":%d", port)

	srv := server.New(b, server.WithLogger(logger.Logger.Named("server")))
	logger.Logger.Infow("atomdb server starting",
		logger.FieldAddress, addr,
		logger.FieldBackend, cfg.Backend.Kind,
	)
	return srv.ListenAndServe(ctx, addr)
}
