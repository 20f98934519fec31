// Package commands provides CLI commands for the admin tool
package commands

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"evolveedu/internal/database"
	"evolveedu/internal/observability"
	contextutils "evolveedu/internal/utils"

	"github.com/spf13/cobra"
)

// DatabaseCommands returns the database management commands
func DatabaseCommands(logger *observability.Logger, dbManager *database.Manager, databaseURL string, db *sql.DB) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the evolveedu backend.

Available commands:
  migrate   - Run pending schema migrations
  reset     - Drop and recreate the schema (destructive)
  stats     - Show database statistics`,
	}

	dbCmd.AddCommand(migrateCmd(logger, dbManager, databaseURL))
	dbCmd.AddCommand(resetCmd(logger, dbManager, databaseURL))
	dbCmd.AddCommand(statsCmd(logger, db))

	return dbCmd
}

// migrateCmd returns the migrate command
func migrateCmd(logger *observability.Logger, dbManager *database.Manager, databaseURL string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run pending schema migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			logger.Info(ctx, "Running migrations", map[string]interface{}{"db_url": maskDatabaseURL(databaseURL)})
			if err := dbManager.RunMigrations(databaseURL); err != nil {
				logger.Error(ctx, "Migrations failed", err, map[string]interface{}{})
				return contextutils.WrapErrorf(err, "migrations failed")
			}

			fmt.Println("Migrations applied")
			return nil
		},
	}
}

// resetCmd returns the reset command
func resetCmd(logger *observability.Logger, dbManager *database.Manager, databaseURL string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and recreate the schema (destructive)",
		Long: `Drop every table and re-run all migrations from scratch.

All learner data is lost. Requires confirmation unless --force is given.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			if !force {
				fmt.Printf("This will destroy all data in %s. Type 'yes' to continue: ", maskDatabaseURL(databaseURL))
				reader := bufio.NewReader(os.Stdin)
				answer, err := reader.ReadString('\n')
				if err != nil {
					return contextutils.WrapErrorf(err, "failed to read confirmation")
				}
				if strings.TrimSpace(answer) != "yes" {
					fmt.Println("Aborted")
					return nil
				}
			}

			logger.Info(ctx, "Resetting database", map[string]interface{}{"db_url": maskDatabaseURL(databaseURL)})
			if err := dbManager.ResetDatabase(databaseURL); err != nil {
				logger.Error(ctx, "Database reset failed", err, map[string]interface{}{})
				return contextutils.WrapErrorf(err, "database reset failed")
			}

			fmt.Println("Database reset complete")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation prompt")
	return cmd
}

// statsCmd returns the stats command
func statsCmd(logger *observability.Logger, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			logger.Info(ctx, "Diagnostic info", map[string]interface{}{"config_file": os.Getenv("EVOLVEEDU_CONFIG_FILE"), "database": getDatabaseInfo(db)})

			counts := map[string]int{}
			for _, table := range []string{"notes", "quizzes", "quiz_attempts", "roadmaps", "milestones", "tutor_sessions"} {
				var n int
				// Table names come from the fixed list above, not user input
				if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
					logger.Error(ctx, "Failed to count table", err, map[string]interface{}{"table": table})
					return contextutils.WrapErrorf(err, "failed to count %s", table)
				}
				counts[table] = n
			}

			fmt.Printf("database: %s\n", getDatabaseInfo(db))
			for _, table := range []string{"notes", "quizzes", "quiz_attempts", "roadmaps", "milestones", "tutor_sessions"} {
				fmt.Printf("%-16s %d\n", table, counts[table])
			}
			return nil
		},
	}
}
