package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/homeroom/internal/hub"
)

// statusReport is printed by sync and status.
type statusReport struct {
	Status   hub.Status `json:"status"`
	LastSync *time.Time `json:"lastSync"`
	Pending  int        `json:"pending"`
	User     string     `json:"user,omitempty"`

	now time.Time
}

func (r statusReport) String() string {
	var b strings.Builder
	b.WriteString(renderStatusLine(hub.State{Status: r.Status, LastSync: r.LastSync}, r.Pending, r.now))
	if r.User != "" {
		fmt.Fprintf(&b, "\nsigned in as %s", r.User)
	} else {
		b.WriteString("\n" + mutedStyle.Render("nobody signed in"))
	}
	return b.String()
}

func (a *App) report(cmd *cobra.Command) (statusReport, error) {
	pending, err := a.Pending(cmd.Context())
	if err != nil {
		return statusReport{}, err
	}
	s := a.Syncer.State()
	r := statusReport{Status: s.Status, LastSync: s.LastSync, Pending: pending, now: time.Now()}
	if u, ok := a.Session.Current(); ok {
		r.User = u.Username
	}
	return r, nil
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the local copy with the backend once",
		Long: `Deliver due outbox entries, then fetch every collection and replace the
local copy. Writes still waiting in the outbox are re-applied on top.

Exits 1 when the reconciliation ends in ERROR.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, out, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			app.Flush(cmd.Context())
			app.Syncer.Sync(cmd.Context())

			r, err := app.report(cmd)
			if err != nil {
				return out.Fail(ExitCommandError, CodeStore, "read outbox", err)
			}
			if r.Status == hub.StatusError {
				_ = out.Error(CodeSyncFailed, "sync failed", r)
				return NewExitError(ExitFailure, "sync failed")
			}
			return out.Success(r)
		},
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last sync and pending writes",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, out, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			r, err := app.report(cmd)
			if err != nil {
				return out.Fail(ExitCommandError, CodeStore, "read outbox", err)
			}
			return out.Success(r)
		},
	}
}
