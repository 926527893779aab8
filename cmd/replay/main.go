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
	dbPath := flag.String("db", "", "path to assessment.db (DB mode)")
	userID := flag.String("user", "", "user to replay (DB mode)")
	inv := flag.String("inventory", "", "inventory to replay (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	catalogPath := flag.String("catalog", "", "catalog YAML (default built-in)")
	weightOld := flag.Float64("weight-old", 0, "override the weight on the previous score")
	weightNew := flag.Float64("weight-new", 0, "override the weight on the new observation")
	all := flag.Bool("all", false, "include entries from before the user's last reset (DB mode)")
	flag.Parse()

	dbMode := *dbPath != ""
	if dbMode == (*fixturePath != "") || (dbMode && (*userID == "" || *inv == "")) {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/assessment.db --user id --inventory id [--all] [--weight-old W --weight-new W]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json [--weight-old W --weight-new W]")
		os.Exit(2)
	}

	cat, err := inventory.LoadCatalog(*catalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "catalog: %v\n", err)
		os.Exit(2)
	}

	var override *replay.ReplayConfig
	if *weightOld != 0 || *weightNew != 0 {
		cfg := replay.DefaultReplayConfig()
		cfg.UpdateConfig = update.Config{Weights: update.Weights{Old: *weightOld, New: *weightNew}}
		override = &cfg
	}

	var f *replay.Fixture
	if dbMode {
		f, err = fixtureFromDB(*dbPath, *userID, inventory.ID(*inv), !*all)
	} else {
		f, err = replay.LoadFixture(*fixturePath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load: %v\n", err)
		os.Exit(2)
	}

	os.Exit(run(f, cat, override))
}

// #endregion main

// #region db-extract

func fixtureFromDB(dbPath, userID string, inv inventory.ID, sinceReset bool) (*replay.Fixture, error) {
	ctx := context.Background()
	store, err := state.NewSQLiteStore(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	entries, err := logging.ReadEntries(ctx, store.DB(), userID, sinceReset)
	if err != nil {
		return nil, err
	}
	f, err := replay.FromProvenance(userID, inv, entries, update.DefaultWeights())
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// #endregion db-extract

// #region output

func run(f *replay.Fixture, cat *inventory.Catalog, override *replay.ReplayConfig) int {
	results, final, err := f.Run(cat, override)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}
	return printComparison(results, f.ExpectedResults, final, cat)
}

// printComparison outputs a comparison table and returns the exit code.
func printComparison(results []replay.ReplayResult, expected []replay.FixtureExpectedResult, final state.Assessment, cat *inventory.Catalog) int {
	fmt.Printf("%-12s| %-10s| %-10s| %-10s| %s\n", "Turn", "Expected", "Replayed", "Delta", "Match")
	fmt.Printf("%-12s+%-11s+%-11s+%-11s+%s\n",
		"------------", "-----------", "-----------", "-----------", "------")

	total := min(len(results), len(expected))
	for i := 0; i < total; i++ {
		r := results[i]
		match := "DIFF"
		if r.Action == expected[i].Action {
			match = "OK"
		}
		fmt.Printf("%-12s| %-10s| %-10s| %-10.4f| %s\n", r.TurnID, expected[i].Action, r.Action, r.UpdateMetrics.DeltaNorm, match)
	}

	s := replay.Summarize(results, final)
	diffs := replay.Compare(results, expected)
	fmt.Printf("\nSummary: %d total, %d commit, %d no_op, %d rejected, %d ignored, %d audit failures\n",
		s.TotalTurns, s.Commits, s.NoOps, s.Rejected, s.Ignored, s.AuditFailures)
	fmt.Printf("Match: %d of %d, finished=%v\n", len(expected)-countExpected(diffs), len(expected), s.Finished)

	if p, err := cat.Lookup(final.Inventory); err == nil {
		fmt.Println("\nFinal scores:")
		for _, k := range p.Dimensions {
			fmt.Printf("  %-20s %8.4f  (confidence %.4f)\n", k, final.Scores[k], final.Confidence[k])
		}
	}

	if len(diffs) > 0 {
		return 1
	}
	return 0
}

func countExpected(diffs []replay.Diff) int {
	n := 0
	for _, d := range diffs {
		if d.Expected != "" {
			n++
		}
	}
	return n
}

// #endregion output
