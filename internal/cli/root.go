package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/homeroom/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the homeroom CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "homeroom",
		Short: "homeroom - offline-first classroom data",
		Long: `homeroom keeps a local copy of a classroom backend (classes, students,
attendance, behavior, announcements, tasks, messages) and reconciles it with
the remote spreadsheet backend.

Writes apply locally first and are delivered through a durable outbox.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default: homeroom.yaml in . or $HOME/.config/homeroom)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewOutboxCommand(opts))

	return cmd
}

// usageArgs reports argument errors as command errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return WrapExitError(ExitCommandError, "invalid arguments", err)
		}
		return nil
	}
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// newLogger builds the text logger on w. --verbose forces debug, otherwise
// the configured level applies.
func (o *RootOptions) newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	level := cfg.SlogLevel()
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// open loads the configuration and wires the application, logging to
// stderr. Callers must Close the returned App.
func (o *RootOptions) open(cmd *cobra.Command) (*App, *OutputFormatter, error) {
	return o.openLogging(cmd, cmd.ErrOrStderr())
}

func (o *RootOptions) openLogging(cmd *cobra.Command, logw io.Writer) (*App, *OutputFormatter, error) {
	out := o.formatter(cmd)

	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, out, out.Fail(ExitCommandError, CodeConfig, "load config", err)
	}
	logger := o.newLogger(logw, cfg)

	app, err := OpenApp(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, out, out.Fail(ExitCommandError, CodeStore, "open app", err)
	}
	return app, out, nil
}
