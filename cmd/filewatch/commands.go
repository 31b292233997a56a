package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gyokuro/filewatch/internal/app"
	"github.com/gyokuro/filewatch/internal/client"
	"github.com/gyokuro/filewatch/internal/printer"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newWatchCmd(opts *options) *cobra.Command {
	var connect bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open the interactive change console",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			logger, closeLog, err := newLogger(cfg, true)
			if err != nil {
				return err
			}
			defer closeLog()

			feed := &client.Feed{}
			mgr := client.NewManager(client.NewWSOpener(logger), feed, client.WithLogger(logger))
			m := app.New(mgr, feed, client.NewInfoClient(cfg.Client.InfoTimeout), app.Options{
				Defaults:    params(cfg),
				MaxEntries:  cfg.Client.MaxEntries,
				AutoConnect: connect,
			})

			logger.Info().Str("version", version).Msg("starting console")
			if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
				return errors.Wrap(err, "run console")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&connect, "connect", false, "connect on startup")
	return cmd
}

func newTailCmd(opts *options) *cobra.Command {
	var noColor bool
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print change notifications as lines until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			logger, closeLog, err := newLogger(cfg, false)
			if err != nil {
				return err
			}
			defer closeLog()

			out := cmd.OutOrStdout()
			color := !noColor && isatty.IsTerminal(fdOf(out))
			mgr := client.NewManager(client.NewWSOpener(logger), printer.New(out, color), client.WithLogger(logger))

			ctx, cancel := signalContext()
			defer cancel()

			mgr.Connect(params(cfg))
			if err := mgr.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

func newInfoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the server metadata document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			info, err := client.NewInfoClient(cfg.Client.InfoTimeout).Fetch(ctx, client.NewTarget(params(cfg)))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), info.Indented())
			return nil
		},
	}
}

type fder interface{ Fd() uintptr }

func fdOf(w any) uintptr {
	if f, ok := w.(fder); ok {
		return f.Fd()
	}
	return ^uintptr(0)
}
