package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fruitsalade/docnav/internal/config"
	"github.com/fruitsalade/docnav/internal/logging"
	"github.com/fruitsalade/docnav/internal/provider/sqlstore"
)

// NewIndexCommand creates the index command, which records a local
// directory tree in a SQL provider's files table.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		authority string
		driver    string
		dsn       string
	)
	cmd := &cobra.Command{
		Use:   "index <dir>",
		Short: "Record a local directory in a SQL document store",
		Long: `Walk a local directory and upsert its folders and files into the files
table of a SQL provider. The store is taken from the configured sql provider
with the given authority, or from --driver and --dsn.

Examples:
  docnav index ./testdata --authority meta
  docnav index ./testdata --driver sqlite --dsn docs.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := sqlstore.Config{Authority: authority, Driver: driver, DSN: dsn}
			if dsn == "" {
				found := findSQLConfig(rootOpts.cfg, authority)
				if found == nil {
					return WrapExitError(ExitCommandError, "no sql provider configured; pass --dsn", nil)
				}
				sc = *found
			}

			store, err := sqlstore.New(sc)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open store", err)
			}
			defer store.Close()

			stats, err := store.Index(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "index failed", err)
			}
			logging.Info("index complete",
				zap.String("dir", args[0]),
				zap.Int("dirs", stats.Dirs),
				zap.Int("files", stats.Files))

			out := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(stats, func(w io.Writer) {
				fmt.Fprintf(w, "indexed %d folders and %d files\n", stats.Dirs, stats.Files)
			})
		},
	}
	cmd.Flags().StringVar(&authority, "authority", "", "authority of the configured sql provider")
	cmd.Flags().StringVar(&driver, "driver", "sqlite", "database driver when --dsn is given (postgres or sqlite)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "database connection string")
	return cmd
}

// findSQLConfig returns the first sql provider matching authority, or the
// first sql provider when authority is empty.
func findSQLConfig(cfg *config.Config, authority string) *sqlstore.Config {
	for _, pc := range cfg.Profiles {
		for _, prc := range pc.Providers {
			if prc.Type != config.ProviderSQL || prc.SQL == nil {
				continue
			}
			if authority == "" || prc.SQL.Authority == authority {
				return prc.SQL
			}
		}
	}
	return nil
}
