package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/shopstate/internal/config"
	"github.com/roach88/shopstate/internal/model"
	"github.com/roach88/shopstate/internal/remote"
)

// FavoritesOptions holds flags for the favorites commands.
type FavoritesOptions struct {
	*RootOptions
	Database string
	Driver   string
}

type favoritesReport struct {
	Identity   string   `json:"identity"`
	Driver     string   `json:"driver"`
	Favorites  []string `json:"favorites"`
	Inserted   []string `json:"inserted,omitempty"`
	Duplicates []string `json:"duplicates,omitempty"`
}

// NewFavoritesCommand creates the favorites command group.
func NewFavoritesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FavoritesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "Work with an account's remote favorites",
		Long: `List and edit the authoritative favorites of an account through the
configured remote driver (SHOPSTATE_REMOTE: sqlite, postgres, firestore or
memory).`,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "database for the sqlite driver (default from SHOPSTATE_DB)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "remote driver (overrides SHOPSTATE_REMOTE)")

	cmd.AddCommand(&cobra.Command{
		Use:           "list <identity>",
		Short:         "List an account's favorites",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRemote(cmd, opts, args[0], func(ctx context.Context, rs remote.FavoritesStore, r *favoritesReport) error {
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "add <identity> <product-id>...",
		Short:         "Add favorites to an account",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRemote(cmd, opts, args[0], func(ctx context.Context, rs remote.FavoritesStore, r *favoritesReport) error {
				entries := make([]model.FavoriteEntry, 0, len(args)-1)
				for _, p := range args[1:] {
					entries = append(entries, model.NewFavorite(p))
				}
				res, err := rs.InsertMany(ctx, model.Identity(r.Identity), entries)
				r.Inserted, r.Duplicates = res.Inserted, res.Duplicates
				return err
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "remove <identity> <product-id>",
		Short:         "Remove a favorite from an account",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRemote(cmd, opts, args[0], func(ctx context.Context, rs remote.FavoritesStore, r *favoritesReport) error {
				return rs.Delete(ctx, model.Identity(r.Identity), args[1])
			})
		},
	})

	return cmd
}

// withRemote opens the configured remote, runs fn, then reports the
// account's favorites.
func withRemote(cmd *cobra.Command, opts *FavoritesOptions, identity string,
	fn func(ctx context.Context, rs remote.FavoritesStore, r *favoritesReport) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	id := model.Identity(model.NormalizeKey(identity))
	if !id.Present() {
		return NewExitError(ExitCommandError, "identity is required")
	}

	cfg := opts.Config
	if opts.Driver != "" {
		cfg.RemoteDriver = opts.Driver
	}
	cfg.DBPath = opts.dbPath(opts.Database)

	rs, closeFn, err := openRemote(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			opts.logger().Error("error closing remote store", "error", err)
		}
	}()

	report := &favoritesReport{Identity: string(id), Driver: cfg.RemoteDriver}
	if err := fn(ctx, rs, report); err != nil {
		return WrapExitError(ExitFailure, "remote operation failed", err)
	}

	list, err := rs.List(ctx, id)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list favorites", err)
	}
	report.Favorites = model.FavoriteKeys(list)
	return opts.formatter(cmd).Success(report)
}

// openRemote builds the FavoritesStore selected by cfg.RemoteDriver.
func openRemote(ctx context.Context, cfg config.Config) (remote.FavoritesStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.RemoteDriver {
	case config.DriverMemory:
		return remote.NewMemory(), noop, nil

	case config.DriverSQLite, "":
		st, err := openStore(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return remote.NewSQLite(st), st.Close, nil

	case config.DriverPostgres:
		if cfg.RemoteDSN == "" {
			return nil, nil, NewExitError(ExitCommandError, "SHOPSTATE_REMOTE_DSN is required for the postgres driver")
		}
		pg, err := remote.OpenPostgres(ctx, cfg.RemoteDSN)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to connect to postgres", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, WrapExitError(ExitCommandError, "failed to prepare postgres schema", err)
		}
		return pg, pg.Close, nil

	case config.DriverFirestore:
		client, err := remote.NewFirestoreClient(ctx, cfg.FirestoreProject, cfg.FirestoreCredentials)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to create firestore client", err)
		}
		fs := remote.NewFirestore(client, cfg.FirestoreCollection)
		return fs, fs.Close, nil
	}
	return nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown remote driver %q", cfg.RemoteDriver))
}

func (r *favoritesReport) renderText(w io.Writer) {
	if len(r.Inserted) > 0 {
		fmt.Fprintf(w, "inserted: %v\n", r.Inserted)
	}
	if len(r.Duplicates) > 0 {
		fmt.Fprintf(w, "already present: %v\n", r.Duplicates)
	}
	fmt.Fprintf(w, "%s (%s): %d favorite(s)\n", r.Identity, r.Driver, len(r.Favorites))
	for _, id := range r.Favorites {
		fmt.Fprintf(w, "  %s\n", id)
	}
}
