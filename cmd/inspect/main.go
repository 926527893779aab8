package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/adaptive-assessment/internal/inventory"
	"github.com/danielpatrickdp/adaptive-assessment/internal/logging"
	"github.com/danielpatrickdp/adaptive-assessment/internal/state"
	"gonum.org/v1/gonum/floats"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to assessment.db")
	userID := flag.String("user", "", "user whose assessments to show")
	inv := flag.String("inventory", "", "limit to one inventory")
	last := flag.Int("last", 20, "show N most recent versions per inventory")
	version := flag.String("version", "", "show single version detail")
	rollback := flag.String("rollback", "", "make this version active again (needs --inventory)")
	catalogPath := flag.String("catalog", "", "catalog YAML (default built-in)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" || (*userID == "" && *version == "") {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/assessment.db --user id [--inventory id] [--last N] [--json]")
		fmt.Fprintln(os.Stderr, "       inspect --db path/to/assessment.db --version id [--json]")
		fmt.Fprintln(os.Stderr, "       inspect --db path/to/assessment.db --user id --inventory id --rollback version")
		os.Exit(2)
	}

	ctx := context.Background()
	store, err := state.NewSQLiteStore(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	cat, err := inventory.LoadCatalog(*catalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "catalog: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *rollback != "":
		err = runRollback(ctx, store, *userID, inventory.ID(*inv), *rollback)
	case *version != "":
		err = runDetailMode(ctx, store, cat, *version, *jsonOut)
	default:
		err = runListMode(ctx, store, cat, *userID, inventory.ID(*inv), *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	Inventory      inventory.ID `json:"inventory"`
	VersionID      string       `json:"version_id"`
	ParentID       string       `json:"parent_id,omitempty"`
	ScoreNorm      float64      `json:"score_norm"`
	ConfidenceMean float64      `json:"confidence_mean"`
	Finished       bool         `json:"finished"`
	Decision       string       `json:"decision,omitempty"`
	Reason         string       `json:"reason,omitempty"`
	CreatedAt      string       `json:"created_at"`
}

func runListMode(ctx context.Context, store *state.SQLiteStore, cat *inventory.Catalog, userID string, only inventory.ID, last int, jsonOut bool) error {
	profiles := cat.Profiles()
	if only != "" {
		p, err := cat.Lookup(only)
		if err != nil {
			return err
		}
		profiles = []inventory.Profile{p}
	}

	decisions, err := decisionsByVersion(ctx, store, userID)
	if err != nil {
		return err
	}

	var rows []listRow
	for _, p := range profiles {
		versions, err := store.ListVersions(ctx, state.Key{UserID: userID, Inventory: p.ID}, last)
		if err != nil {
			return err
		}
		// store returns newest first; print chronologically
		for i := len(versions) - 1; i >= 0; i-- {
			v := versions[i]
			norm, mean := summarize(p, v)
			e := decisions[v.VersionID]
			rows = append(rows, listRow{
				Inventory:      p.ID,
				VersionID:      v.VersionID,
				ParentID:       v.ParentID,
				ScoreNorm:      norm,
				ConfidenceMean: mean,
				Finished:       v.Finished,
				Decision:       e.Decision,
				Reason:         e.Reason,
				CreatedAt:      v.CreatedAt.Format("2006-01-02T15:04:05Z"),
			})
		}
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "no versions found")
		return nil
	}

	if jsonOut {
		return printJSON(rows)
	}
	return printListTable(ctx, store, cat, userID, rows)
}

func printListTable(ctx context.Context, store *state.SQLiteStore, cat *inventory.Catalog, userID string, rows []listRow) error {
	fmt.Printf("%-16s  %-10s  %10s  %9s  %-4s  %-10s  %s\n",
		"Inventory", "Version", "Score Norm", "Conf Mean", "Done", "Decision", "Time")
	fmt.Printf("%-16s+-%-10s+-%10s+-%9s+-%-4s+-%-10s+-%s\n",
		"----------------", "----------", "----------", "---------", "----", "----------", "--------------------")

	for _, r := range rows {
		done := ""
		if r.Finished {
			done = "yes"
		}
		decision := r.Decision
		if decision == "" {
			decision = "-"
		}
		fmt.Printf("%-16s  %-10s  %10.4f  %9.4f  %-4s  %-10s  %s\n",
			r.Inventory, shortID(r.VersionID), r.ScoreNorm, r.ConfidenceMean, done, decision, r.CreatedAt)
	}

	if idx, ok, err := store.Stage(ctx, userID); err == nil && ok {
		if p, err := cat.At(idx); err == nil {
			fmt.Printf("\nActive stage: %d (%s)\n", idx, p.ID)
		}
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type dimensionRow struct {
	Key        string  `json:"key"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

type detailOutput struct {
	VersionID  string         `json:"version_id"`
	ParentID   string         `json:"parent_id"`
	UserID     string         `json:"user_id"`
	Inventory  inventory.ID   `json:"inventory"`
	CreatedAt  string         `json:"created_at"`
	Finished   bool           `json:"finished"`
	ScoreNorm  float64        `json:"score_norm"`
	Dimensions []dimensionRow `json:"dimensions"`
}

func runDetailMode(ctx context.Context, store *state.SQLiteStore, cat *inventory.Catalog, versionID string, jsonOut bool) error {
	v, err := store.GetVersion(ctx, versionID)
	if err != nil {
		return err
	}

	keys := v.Scores.Keys()
	if p, err := cat.Lookup(v.Inventory); err == nil {
		keys = p.Dimensions
	}
	out := detailOutput{
		VersionID: v.VersionID,
		ParentID:  v.ParentID,
		UserID:    v.UserID,
		Inventory: v.Inventory,
		CreatedAt: v.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Finished:  v.Finished,
	}
	vals := make([]float64, 0, len(keys))
	for _, k := range keys {
		vals = append(vals, v.Scores[k])
		out.Dimensions = append(out.Dimensions, dimensionRow{Key: k, Score: v.Scores[k], Confidence: v.Confidence[k]})
	}
	if len(vals) > 0 {
		out.ScoreNorm = floats.Norm(vals, 2)
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Version:    %s\n", out.VersionID)
	fmt.Printf("Parent:     %s\n", out.ParentID)
	fmt.Printf("User:       %s\n", out.UserID)
	fmt.Printf("Inventory:  %s\n", out.Inventory)
	fmt.Printf("Created:    %s\n", out.CreatedAt)
	fmt.Printf("Finished:   %v\n", out.Finished)
	fmt.Printf("Score Norm: %.4f\n", out.ScoreNorm)

	fmt.Printf("\n  %-20s %8s %10s\n", "Dimension", "Score", "Confidence")
	for _, d := range out.Dimensions {
		fmt.Printf("  %-20s %8.4f %10.4f\n", d.Key, d.Score, d.Confidence)
	}
	return nil
}

// #endregion detail-mode

// #region rollback

func runRollback(ctx context.Context, store *state.SQLiteStore, userID string, inv inventory.ID, versionID string) error {
	if userID == "" || inv == "" {
		return fmt.Errorf("--rollback needs --user and --inventory")
	}
	if err := store.Rollback(ctx, state.Key{UserID: userID, Inventory: inv}, versionID); err != nil {
		return err
	}
	fmt.Printf("Active version for %s/%s is now %s\n", userID, inv, versionID)
	return nil
}

// #endregion rollback

// #region metrics

func summarize(p inventory.Profile, a state.Assessment) (norm, confMean float64) {
	if len(p.Dimensions) == 0 {
		return 0, 0
	}
	s := make([]float64, len(p.Dimensions))
	c := make([]float64, len(p.Dimensions))
	for i, k := range p.Dimensions {
		s[i], c[i] = a.Scores[k], a.Confidence[k]
	}
	return floats.Norm(s, 2), floats.Sum(c) / float64(len(c))
}

func decisionsByVersion(ctx context.Context, store *state.SQLiteStore, userID string) (map[string]logging.ProvenanceEntry, error) {
	entries, err := logging.ReadEntries(ctx, store.DB(), userID, false)
	if err != nil {
		return nil, err
	}
	out := make(map[string]logging.ProvenanceEntry, len(entries))
	for _, e := range entries {
		// turn decisions win over advance/finish entries for the same version
		if _, seen := out[e.VersionID]; seen || e.VersionID == "" {
			continue
		}
		out[e.VersionID] = e
	}
	return out, nil
}

// #endregion metrics

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
