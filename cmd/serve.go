package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/KaramelBytes/fairloan-cli/internal/bundle"
	"github.com/KaramelBytes/fairloan-cli/internal/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /analyze and /predict over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := server.Options{Engine: engineOptions()}
		addr := ":8080"
		if cfg != nil {
			opts.CORSOrigins = cfg.CORSOrigins
			opts.MaxUploadMB = cfg.MaxUploadMB
			if cfg.ListenAddr != "" {
				addr = cfg.ListenAddr
			}
		}
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}
		store := bundle.NewStore(bundleRoot(), logger)
		h := server.NewHandler(store, opts, logger)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		fmt.Printf("✓ Serving on %s (bundles in %s)\n", addr, store.Root)
		return server.Serve(ctx, addr, h.Router(), logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address (overrides config)")
}
