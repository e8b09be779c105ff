package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/homeroom/internal/cache"
	"github.com/roach88/homeroom/internal/provider"
	"github.com/roach88/homeroom/internal/store"
)

type seedResult struct {
	File    string                `json:"file"`
	Counts  provider.ImportCounts `json:"counts"`
	Total   int                   `json:"total"`
	Pending int                   `json:"pending"`
}

func (r seedResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "imported %d records from %s", r.Total, r.File)
	for _, col := range cache.All() {
		if n := r.Counts[col.Kind()]; n > 0 {
			fmt.Fprintf(&b, "\n  %-14s %d", col.Kind(), n)
		}
	}
	if r.Pending > 0 {
		fmt.Fprintf(&b, "\n%d writes waiting for delivery", r.Pending)
	}
	return b.String()
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Import a YAML dataset through the local write path",
		Long: `Import a dataset shaped like the local snapshot. Every record is written
locally and queued for the backend, exactly like an interactive write.

Example dataset:
  classes:
    - id: c1
      className: "Lớp 3A"
      schoolYear: "2024-2025"
  students:
    - id: s1
      classId: c1
      fullName: "Nguyễn Văn An"`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, out, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return out.Fail(ExitCommandError, CodeInvalidSeed, "read dataset", err)
			}
			ds, err := provider.ParseDataset(data)
			if err != nil {
				return out.Fail(ExitCommandError, CodeInvalidSeed, "parse dataset", err)
			}

			counts := app.Provider.Import(ds)
			pending, err := app.Pending(cmd.Context())
			if err != nil {
				return out.Fail(ExitCommandError, CodeStore, "read outbox", err)
			}
			return out.Success(seedResult{File: args[0], Counts: counts, Total: counts.Total(), Pending: pending})
		},
	}
}

type outboxRow struct {
	ID            string    `json:"id"`
	Action        string    `json:"action"`
	Attempts      int       `json:"attempts"`
	NextAttemptAt time.Time `json:"nextAttemptAt"`
	LastError     string    `json:"lastError,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type outboxList []outboxRow

func (l outboxList) String() string {
	if len(l) == 0 {
		return "outbox empty"
	}
	var b strings.Builder
	for i, r := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  %-26s attempts=%d", r.CreatedAt.Local().Format(time.DateTime), r.Action, r.Attempts)
		if r.LastError != "" {
			b.WriteString("  " + warnStyle.Render(r.LastError))
		}
	}
	return b.String()
}

func toOutboxList(entries []store.OutboxEntry) outboxList {
	rows := make(outboxList, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, outboxRow{
			ID:            e.ID,
			Action:        e.Action,
			Attempts:      e.Attempts,
			NextAttemptAt: e.NextAttemptAt,
			LastError:     e.LastError,
			CreatedAt:     e.CreatedAt,
		})
	}
	return rows
}

// NewOutboxCommand creates the outbox command.
func NewOutboxCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "outbox",
		Short: "List writes waiting for backend acknowledgement",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, out, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if app.Outbox == nil {
				return out.Success(outboxList{})
			}
			entries, err := app.Outbox.Pending(cmd.Context())
			if err != nil {
				return out.Fail(ExitCommandError, CodeStore, "read outbox", err)
			}
			return out.Success(toOutboxList(entries))
		},
	}
}
