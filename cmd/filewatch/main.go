package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gyokuro/filewatch/internal/applog"
	"github.com/gyokuro/filewatch/internal/client"
	"github.com/gyokuro/filewatch/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var version = "dev"

type options struct {
	configPath string
	host       string
	port       string
	sub        string
	event      string
	logLevel   string
	logFile    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&options{})
}

func newRootCmdWith(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "filewatch",
		Short:         "Watch live file-system change notifications from a filewatch server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addConnectionFlags(root.PersistentFlags(), opts)

	watch := newWatchCmd(opts)
	root.AddCommand(watch, newTailCmd(opts), newInfoCmd(opts))
	root.RunE = watch.RunE
	return root
}

func addConnectionFlags(fs *pflag.FlagSet, opts *options) {
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	fs.StringVarP(&opts.host, "host", "H", "", "server host (default localhost)")
	fs.StringVarP(&opts.port, "port", "p", "", "server port (default 7777)")
	fs.StringVarP(&opts.sub, "subscription", "s", "", "path filter regexp (default .*)")
	fs.StringVarP(&opts.event, "event", "e", "", "event filter regexp (default .*)")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&opts.logFile, "log-file", "", "write JSON logs to this file")
}

// load reads the config file and applies flags given on the command line.
func (o *options) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	override := func(name string, dst *string, val string) {
		if flags.Changed(name) {
			*dst = val
		}
	}
	override("host", &cfg.Client.Host, o.host)
	override("port", &cfg.Client.Port, o.port)
	override("subscription", &cfg.Client.Subscription, o.sub)
	override("event", &cfg.Client.Event, o.event)
	override("log-level", &cfg.Log.Level, o.logLevel)
	override("log-file", &cfg.Log.File, o.logFile)
	return cfg, nil
}

func params(cfg *config.Config) client.Params {
	return client.Params{
		Host:         cfg.Client.Host,
		Port:         cfg.Client.Port,
		Subscription: cfg.Client.Subscription,
		Event:        cfg.Client.Event,
	}
}

// newLogger builds the process logger. When quiet is set and no log file is
// configured, logs are discarded so they do not tear the terminal UI.
func newLogger(cfg *config.Config, quiet bool) (zerolog.Logger, func(), error) {
	if quiet && cfg.Log.File == "" {
		return zerolog.Nop(), func() {}, nil
	}
	logger, closer, err := applog.New(applog.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return zerolog.Nop(), nil, errors.Wrap(err, "init logging")
	}
	return logger, func() { closer.Close() }, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
