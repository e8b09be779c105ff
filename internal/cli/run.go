package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/homeroom/internal/scheduler"
	"github.com/roach88/homeroom/internal/statusws"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	TUI bool

	// Input feeds the TUI; defaults to the command's stdin (for testing).
	Input io.Reader
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Keep the local copy in sync until interrupted",
		Long: `Run the background scheduler: sync at startup and then every
sync.interval while someone is signed in, deliver outbox entries as they are
queued, and serve the status websocket when status.addr is set.

Example:
  homeroom run
  homeroom run --tui
  HOMEROOM_STATUS_ADDR=127.0.0.1:7070 homeroom run`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.TUI, "tui", false, "show the live status view (s syncs now, q quits)")
	return cmd
}

func runApp(opts *RunOptions, cmd *cobra.Command) error {
	var lines *lineSink
	logw := cmd.ErrOrStderr()
	if opts.TUI {
		lines = newLineSink(64)
		logw = lines
	}

	app, out, err := opts.openLogging(cmd, logw)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil {
			app.logger.Error("error closing store", "error", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(app.Syncer, app.Session,
		scheduler.WithInterval(app.Config.Sync.Interval),
		scheduler.WithLogger(app.logger),
		scheduler.WithInit(func(ctx context.Context) error {
			app.Flush(ctx)
			return ctx.Err()
		}),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	if app.Outbox != nil {
		g.Go(func() error {
			app.Outbox.Run(gctx)
			return nil
		})
	}
	if addr := app.Config.Status.Addr; addr != "" {
		h := statusws.NewHandler(app.Hub, app.logger)
		g.Go(func() error { return statusws.ListenAndServe(gctx, addr, h) })
	}

	if opts.TUI {
		states, unsubscribe := latestStates(app.Hub)
		defer unsubscribe()
		in := opts.Input
		if in == nil {
			in = cmd.InOrStdin()
		}
		m := newStatusModel(gctx, app, states, lines.Lines())
		g.Go(func() error {
			defer cancel()
			return runTUI(gctx, m, in, cmd.OutOrStdout())
		})
	} else {
		app.logger.Info("homeroom running", "interval", app.Config.Sync.Interval,
			"outbox", app.Outbox != nil, "status_addr", app.Config.Status.Addr)
		fmt.Fprintln(cmd.ErrOrStderr(), "homeroom running. Press Ctrl-C to stop.")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return out.Fail(ExitFailure, CodeRemote, "run", err)
	}
	app.logger.Info("homeroom stopped")
	return nil
}
