package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wlshlad85/adaptivealpha/internal/config"
	"github.com/wlshlad85/adaptivealpha/internal/store"
	"github.com/wlshlad85/adaptivealpha/internal/structmap"
)

// seedFile is the on-disk shape of a curated seed file: patterns to match
// against and decision edges to cascade through.
type seedFile struct {
	Patterns []struct {
		ID                  string         `yaml:"id"`
		PatternType         string         `yaml:"pattern_type"`
		Signature           map[string]any `yaml:"signature"`
		PredictionAccuracy  float64        `yaml:"prediction_accuracy"`
		LearnedOptimization string         `yaml:"learned_optimization"`
	} `yaml:"patterns"`
	Decisions []struct {
		Decision        string         `yaml:"decision"`
		ImmediateImpact map[string]any `yaml:"immediate_impact"`
		ConfidenceScore float64        `yaml:"confidence_score"`
		Validated       bool           `yaml:"validated"`
	} `yaml:"decisions"`
}

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Load curated patterns and decisions from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var sf seedFile
	if err := yaml.Unmarshal(raw, &sf); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
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

	for _, p := range sf.Patterns {
		rec := &store.Pattern{
			ID:                  p.ID,
			PatternType:         p.PatternType,
			Signature:           structmap.Map(p.Signature),
			PredictionAccuracy:  p.PredictionAccuracy,
			LearnedOptimization: p.LearnedOptimization,
		}
		if err := db.UpsertPattern(ctx, rec); err != nil {
			return fmt.Errorf("seed pattern %q: %w", p.PatternType, err)
		}
	}
	for _, d := range sf.Decisions {
		rec := &store.DecisionCascade{
			Decision:        d.Decision,
			ImmediateImpact: structmap.Map(d.ImmediateImpact),
			ConfidenceScore: d.ConfidenceScore,
			Validated:       d.Validated,
		}
		if err := db.InsertDecision(ctx, rec); err != nil {
			return fmt.Errorf("seed decision %q: %w", d.Decision, err)
		}
	}

	fmt.Printf("seeded %d patterns, %d decisions into %s\n", len(sf.Patterns), len(sf.Decisions), dbPath)
	return nil
}
