package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/adaptive-assessment/internal/inventory"
	"github.com/danielpatrickdp/adaptive-assessment/internal/logging"
	"github.com/danielpatrickdp/adaptive-assessment/internal/replay"
	"github.com/danielpatrickdp/adaptive-assessment/internal/state"
	"github.com/danielpatrickdp/adaptive-assessment/internal/update"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to assessment.db")
	userID := flag.String("user", "", "user whose session to export")
	inv := flag.String("inventory", "", "inventory to export")
	all := flag.Bool("all", false, "include entries from before the user's last reset")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *userID == "" || *inv == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --user id --inventory id --out path/to/fixture.json [--all]")
		os.Exit(2)
	}

	if err := run(*dbPath, *userID, inventory.ID(*inv), !*all, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(dbPath, userID string, inv inventory.ID, sinceReset bool, outPath string) error {
	ctx := context.Background()
	store, err := state.NewSQLiteStore(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	entries, err := logging.ReadEntries(ctx, store.DB(), userID, sinceReset)
	if err != nil {
		return err
	}
	fmt.Printf("Found %d provenance rows for %s\n", len(entries), userID)

	fixture, err := replay.FromProvenance(userID, inv, entries, update.DefaultWeights())
	if err != nil {
		return err
	}
	if err := replay.WriteFixture(fixture, outPath); err != nil {
		return err
	}
	fmt.Printf("Wrote fixture to %s (%d interactions)\n", outPath, len(fixture.Interactions))
	return nil
}

// #endregion extract
