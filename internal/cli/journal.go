package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/shopstate/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database  string
	Aggregate string
}

type journalReport struct {
	Entries []store.JournalEntry `json:"entries"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List migration journal entries",
		Long: `List the migration attempts recorded in the device store, oldest first.

Example:
  shopstate journal --db ./shopstate.db
  shopstate journal --aggregate favorites --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showJournal(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "device database (default from SHOPSTATE_DB)")
	cmd.Flags().StringVar(&opts.Aggregate, "aggregate", "", "only show entries for this aggregate")

	return cmd
}

func showJournal(ctx context.Context, opts *JournalOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := openStore(opts.dbPath(opts.Database))
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.ReadJournal(ctx, opts.Aggregate)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	return opts.formatter(cmd).Success(journalReport{Entries: entries})
}

func (r journalReport) renderText(w io.Writer) {
	if len(r.Entries) == 0 {
		fmt.Fprintln(w, "No journal entries.")
		return
	}
	for _, e := range r.Entries {
		fmt.Fprintf(w, "%4d  %-9s %-9s identity=%s session=%s attempt=%d items=%d",
			e.Seq, e.Aggregate, e.Event, e.Identity, e.Session, e.Attempt, e.ItemCount)
		if e.Detail != "" {
			fmt.Fprintf(w, "  %s", e.Detail)
		}
		fmt.Fprintln(w)
	}
}
