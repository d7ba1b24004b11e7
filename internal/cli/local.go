package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/shopstate/internal/localstore"
	"github.com/roach88/shopstate/internal/model"
	"github.com/roach88/shopstate/internal/store"
)

// LocalOptions holds flags for the local commands.
type LocalOptions struct {
	*RootOptions
	Database string
}

// localReport is the output of local show.
type localReport struct {
	Aggregate string      `json:"aggregate"`
	Key       string      `json:"key"`
	Items     interface{} `json:"items"`
	Count     int         `json:"count"`
}

// NewLocalCommand creates the local command group.
func NewLocalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LocalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "local",
		Short: "Inspect the device-local store",
		Long: `Inspect or clear the anonymous cart and favorites held in the device store.

Reads go through the same path as the app: a corrupt value is replaced with
an empty collection and invalid elements are dropped.`,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "device database (default from SHOPSTATE_DB)")

	cmd.AddCommand(&cobra.Command{
		Use:           "show <cart|favorites>",
		Short:         "Print the stored collection",
		Args:          cobra.ExactArgs(1),
		ValidArgs:     []string{"cart", "favorites"},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showLocal(cmd.Context(), opts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "clear <cart|favorites>",
		Short:         "Remove the stored collection",
		Args:          cobra.ExactArgs(1),
		ValidArgs:     []string{"cart", "favorites"},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return clearLocal(cmd.Context(), opts, args[0], cmd)
		},
	})

	return cmd
}

func openStore(path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func showLocal(ctx context.Context, opts *LocalOptions, aggregate string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := openStore(opts.dbPath(opts.Database))
	if err != nil {
		return err
	}
	defer st.Close()

	backend := localstore.NewSQLiteBackend(st)
	report := localReport{Aggregate: aggregate}
	switch aggregate {
	case "cart":
		s := localstore.New(backend, localstore.CartKey, localstore.CartLines(), localstore.WithLogger(opts.logger()))
		lines := s.Read(ctx)
		report.Key, report.Items, report.Count = s.Key(), lines, len(lines)
	case "favorites":
		s := localstore.New(backend, localstore.FavoritesKey, localstore.Favorites(), localstore.WithLogger(opts.logger()))
		entries := s.Read(ctx)
		report.Key, report.Items, report.Count = s.Key(), model.FavoriteKeys(entries), len(entries)
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown aggregate %q: want cart or favorites", aggregate))
	}
	return opts.formatter(cmd).Success(report)
}

func clearLocal(ctx context.Context, opts *LocalOptions, aggregate string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var key string
	switch aggregate {
	case "cart":
		key = localstore.CartKey
	case "favorites":
		key = localstore.FavoritesKey
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown aggregate %q: want cart or favorites", aggregate))
	}

	st, err := openStore(opts.dbPath(opts.Database))
	if err != nil {
		return err
	}
	defer st.Close()

	if err := localstore.NewSQLiteBackend(st).Delete(ctx, key); err != nil {
		return WrapExitError(ExitCommandError, "failed to clear local store", err)
	}
	return opts.formatter(cmd).Success(fmt.Sprintf("cleared %s (%s)", aggregate, key))
}

func (r localReport) renderText(w io.Writer) {
	fmt.Fprintf(w, "%s (%s): %d item(s)\n", r.Aggregate, r.Key, r.Count)
	switch items := r.Items.(type) {
	case []model.CartLine:
		for _, l := range items {
			fmt.Fprintf(w, "  %-20s %-6s x%d  %.2f\n", l.ProductID, l.Size, l.Quantity, l.Subtotal())
		}
	case []string:
		for _, id := range items {
			fmt.Fprintf(w, "  %s\n", id)
		}
	default:
		data, _ := json.Marshal(items)
		fmt.Fprintf(w, "  %s\n", data)
	}
}
