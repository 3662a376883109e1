package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/app"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/httpapi"
)

type serveOptions struct {
	addr         string
	dataDir      string
	watch        bool
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func newServeCmd(root *rootFlags) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and dispatch ingested streams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", httpapi.DefaultAddr, "Listen address")
	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "Badger data directory; empty keeps records in memory")
	cmd.Flags().BoolVar(&opts.watch, "watch", true, "Reload the settings file when it changes")
	cmd.Flags().DurationVar(&opts.readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	cmd.Flags().DurationVar(&opts.writeTimeout, "write-timeout", 60*time.Second, "HTTP write timeout")

	return cmd
}

func runServe(cmd *cobra.Command, root *rootFlags, opts *serveOptions) error {
	log, err := root.logger(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	host, err := app.New(ctx, app.Options{
		SettingsPath: root.settings(),
		DataDir:      opts.dataDir,
		Logger:       log,
	})
	if err != nil {
		return newCommandError("serve", "starting the host", err, "Check the settings file and data directory.")
	}
	defer host.Close() //nolint:errcheck

	if opts.watch {
		if err := host.Watch(); err != nil {
			return newCommandError("serve", "watching the settings file", err, "Check that the settings directory is readable.")
		}
	}

	server := host.Server(httpapi.Config{
		Addr:         opts.addr,
		ReadTimeout:  opts.readTimeout,
		WriteTimeout: opts.writeTimeout,
		Debug:        root.verbose,
	})
	return server.Run(ctx)
}
