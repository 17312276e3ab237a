package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/finsync/engine/internal/schema"
	"github.com/finsync/engine/pkg/config"
	"github.com/finsync/engine/pkg/database"
	"github.com/finsync/engine/pkg/logger"
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var mig *schema.Migrator
	var closeDB func()

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply or inspect the FinSync database schema",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.MustLoad()
			log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			db, err := database.Open(cmd.Context(), database.Options{Driver: cfg.DBDriver, DSN: cfg.DatabaseURL})
			if err != nil {
				log.Error("failed to connect to database", zap.Error(err))
				return err
			}
			closeDB = func() { _ = database.Close(db) }
			mig, err = schema.NewMigrator(db, cfg.DBDriver)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if closeDB != nil {
				closeDB()
			}
			logger.Sync()
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return mig.Up(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "up-to VERSION",
			Short: "Apply pending migrations up to VERSION",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return mig.UpTo(cmd.Context(), v)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return mig.Down(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := mig.Version(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d (latest %d)\n", v, schema.Latest)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			RunE: func(cmd *cobra.Command, args []string) error {
				statuses, err := mig.Status(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
				for _, s := range statuses {
					applied := "-"
					if !s.AppliedAt.IsZero() {
						applied = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Source.Version, s.State, applied, s.Source.Path)
				}
				return tw.Flush()
			},
		},
	)
	return root
}
