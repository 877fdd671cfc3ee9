package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wlshlad85/adaptivealpha/internal/config"
	"github.com/wlshlad85/adaptivealpha/internal/engine"
	"github.com/wlshlad85/adaptivealpha/internal/store"
)

var purgeDays int

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete interaction records older than the retention window",
	RunE:  runPurge,
}

func init() {
	purgeCmd.Flags().IntVar(&purgeDays, "days", 0, "retention window in days (default: config value)")
}

func runPurge(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	days := purgeDays
	if days == 0 {
		days = cfg.Retention.Days
	}
	if days <= 0 {
		return fmt.Errorf("no retention window: pass --days or set retention.days in config")
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	eng := engine.New(db, nil)
	n, err := eng.PurgeOlderThan(ctx, days)
	if err != nil {
		return err
	}
	fmt.Printf("purged %d interactions older than %d days\n", n, days)
	return nil
}
