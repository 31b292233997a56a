package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gyokuro/filewatch/internal/applog"
	"github.com/gyokuro/filewatch/internal/config"
	"github.com/gyokuro/filewatch/internal/mock"
	"github.com/gyokuro/filewatch/internal/server"
	"github.com/gyokuro/filewatch/internal/watcher"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

type options struct {
	configPath   string
	host         string
	port         int
	root         string
	recursive    bool
	mock         bool
	mockInterval time.Duration
	sendBuffer   int
	logLevel     string
	logFile      string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "filewatchd [root]",
		Short:         "Serve live change notifications for a directory tree",
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd, args)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	fs.StringVar(&opts.host, "host", "", "bind address (default 0.0.0.0)")
	fs.IntVarP(&opts.port, "port", "p", 0, "listen port (default 7777)")
	fs.StringVar(&opts.root, "root", "", "directory to watch and serve (default .)")
	fs.BoolVar(&opts.recursive, "recursive", true, "watch subdirectories")
	fs.BoolVar(&opts.mock, "mock", false, "publish synthetic changes instead of watching the disk")
	fs.DurationVar(&opts.mockInterval, "mock-interval", 0, "interval between synthetic changes")
	fs.IntVar(&opts.sendBuffer, "send-buffer", 0, "per-client queue length before a slow client is dropped")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&opts.logFile, "log-file", "", "write JSON logs to this file")
	return cmd
}

func (o *options) load(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		return nil, err
	}
	fs := cmd.Flags()
	if fs.Changed("host") {
		cfg.Server.Host = o.host
	}
	if fs.Changed("port") && o.port > 0 {
		cfg.Server.Port = o.port
	}
	if fs.Changed("root") {
		cfg.Server.Root = o.root
	}
	if len(args) == 1 {
		cfg.Server.Root = args[0]
	}
	if fs.Changed("recursive") {
		cfg.Server.Recursive = o.recursive
	}
	if fs.Changed("mock") {
		cfg.Server.Mock = o.mock
	}
	if fs.Changed("mock-interval") && o.mockInterval > 0 {
		cfg.Server.MockInterval = o.mockInterval
	}
	if fs.Changed("send-buffer") && o.sendBuffer > 0 {
		cfg.Server.SendBuffer = o.sendBuffer
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if fs.Changed("log-file") {
		cfg.Log.File = o.logFile
	}

	root, err := filepath.Abs(cfg.Server.Root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve root %s", cfg.Server.Root)
	}
	cfg.Server.Root = root
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, closer, err := applog.New(applog.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer closer.Close()

	bus := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: int64(cfg.Server.SendBuffer)}, watermill.NopLogger{})
	defer bus.Close()

	hub := server.NewHub(cfg.Server.SendBuffer, logger)
	srv := server.New(cfg.Server, hub, version, logger)
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	var source func(context.Context) error
	if cfg.Server.Mock {
		logger.Info().Dur("interval", cfg.Server.MockInterval).Msg("starting in mock mode")
		source = mock.NewGenerator(bus, cfg.Server.MockInterval, logger).Run
	} else {
		w := &watcher.Watcher{Root: cfg.Server.Root, Recursive: cfg.Server.Recursive, Pub: bus, Logger: logger}
		if err := w.Start(); err != nil {
			return err
		}
		source = w.Run
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(ctx, bus) })
	g.Go(func() error { return source(ctx) })

	g.Go(func() error {
		return server.ListenAndServe(ctx, cfg.Server.Host, cfg.Server.Port, mux, logger)
	})

	err = g.Wait()
	logger.Info().Msg("shut down")
	return err
}
