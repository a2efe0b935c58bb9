package cli

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"quiz-battle-service/internal/config"
	"quiz-battle-service/internal/infra/sqlstore"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath, seed)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "upsert the built-in sample questions")
	return cmd
}

func runMigrations(ctx context.Context, configPath string, seed bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	return runMigrationsWithConfig(ctx, cfg, seed)
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config, seed bool) error {
	driver, dsn := sqlTarget(cfg)
	db, err := sqlstore.Open(driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sqlstore.Migrate(ctx, db); err != nil {
		return err
	}
	log.Printf("migrations applied (%s)", driver)

	if !seed {
		return nil
	}
	questions := allSampleQuestions()
	if err := sqlstore.SeedQuestions(ctx, db, questions); err != nil {
		return err
	}
	log.Printf("seeded %d questions", len(questions))
	return nil
}
