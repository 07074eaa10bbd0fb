package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ztruyen/ztc-auth/pkg/config"
	"github.com/ztruyen/ztc-auth/pkg/logger"
	"github.com/ztruyen/ztc-auth/pkg/mongo"
	"github.com/ztruyen/ztc-auth/pkg/pg"
	"github.com/ztruyen/ztc-auth/svc/auth"
)

type migrateConfig struct {
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"mongo"`
}

func migrateCmd(envFiles *[]string) *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply storage migrations",
		Long: `Apply pending schema migrations for the configured storage driver.

For postgres this runs the embedded goose migrations. For mongo it creates
the account indexes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts := []config.Option{config.WithDotenv(*envFiles...)}

			var mc migrateConfig
			if err := config.Load(&mc, opts...); err != nil {
				return err
			}
			log := logger.New(logger.WithOutput(cmd.ErrOrStderr()))

			switch mc.StorageDriver {
			case driverPostgres:
				cfg, err := loadPGConfig(opts...)
				if err != nil {
					return err
				}
				pool, err := pg.Connect(ctx, cfg)
				if err != nil {
					return err
				}
				defer pool.Close()

				if !status {
					if err := pg.Migrate(ctx, pool, cfg, auth.Migrations, log); err != nil {
						return err
					}
				}
				v, err := pg.MigrationVersion(ctx, pool, cfg, auth.Migrations, log)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "postgres schema version: %d\n", v)
				return nil

			case driverMongo:
				var cfg mongo.Config
				if err := config.Load(&cfg, opts...); err != nil {
					return err
				}
				db, err := mongo.ConnectDatabase(ctx, cfg)
				if err != nil {
					return err
				}
				defer func() { _ = db.Client().Disconnect(ctx) }()

				if status {
					fmt.Fprintln(cmd.OutOrStdout(), "mongo has no schema version")
					return nil
				}
				if err := auth.NewMongoStorage(db).EnsureIndexes(ctx); err != nil {
					return err
				}
				log.Info("mongo indexes are in place", slog.String("database", cfg.Database))
				return nil

			default:
				return fmt.Errorf("storage driver %q has nothing to migrate", mc.StorageDriver)
			}
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "Print the current schema version without applying migrations")

	return cmd
}
