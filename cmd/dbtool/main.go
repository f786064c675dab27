package main

import (
	"assignment-wizard-service/internal/adapters/cache"
	"assignment-wizard-service/internal/config"
	"assignment-wizard-service/internal/platform/db"
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

type purger interface {
	Purge(ctx context.Context) (int64, error)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dbtool",
		Short:         "Maintain the route leg cache",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newInitSchemaCmd(), newPurgeLegsCmd())
	return root
}

// openStore opens the leg cache database the server would use.
func openStore(cfg config.Config) (*sql.DB, cache.Dialect, error) {
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(cfg.DatabaseURL)
		return conn, cache.DialectPostgres, err
	}
	conn, err := db.OpenSQLite(cfg.LegCachePath)
	return conn, cache.DialectSQLite, err
}

func newInitSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-schema",
		Short: "Create the leg cache table and index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			conn, dialect, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			log.Printf("Initializing %s schema...", dialect)
			if err := cache.InitSchema(cmd.Context(), conn, dialect); err != nil {
				return fmt.Errorf("schema initialization failed: %w", err)
			}
			log.Println("Schema ready.")
			return nil
		},
	}
}

func newPurgeLegsCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "purge-legs",
		Short: "Delete cached legs older than the TTL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.LegCacheTTL
			}

			conn, dialect, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			var store purger = cache.NewSqliteLegCache(conn, ttl)
			if dialect == cache.DialectPostgres {
				store = cache.NewSQLLegCache(conn, ttl)
			}

			n, err := store.Purge(cmd.Context())
			if err != nil {
				return fmt.Errorf("purge failed: %w", err)
			}
			log.Printf("Purged %d legs older than %s.", n, ttl)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "age after which legs are purged (default LEG_CACHE_TTL)")
	return cmd
}
