package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wlshlad85/adaptivealpha/internal/client"
)

// Commands in this file talk to a running server over HTTP instead of
// opening the database, so they compose with a long-lived serve process.

var (
	serverURL  string
	priorDelta float64
	matchLimit int
	matchTau   float64
	depthFlag  int
)

func init() {
	for _, c := range []*cobra.Command{recordCmd, matchCmd, cascadeCmd} {
		c.Flags().StringVar(&serverURL, "url", "", "server base URL (default: $ADAPTIVEALPHA_URL or http://127.0.0.1:38311)")
	}
	recordCmd.Flags().Float64Var(&priorDelta, "prior-delta", 0, "carried-over intelligence delta")
	matchCmd.Flags().Float64Var(&matchTau, "threshold", -1, "minimum similarity (default: server config)")
	matchCmd.Flags().IntVar(&matchLimit, "limit", 0, "max matches (default: server config)")
	cascadeCmd.Flags().IntVar(&depthFlag, "depth", 0, "max cascade depth (default: server config)")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(cascadeCmd)
}

// readJSONArg reads a JSON object from the file argument, or stdin when the
// argument is absent or "-".
func readJSONArg(args []string) (map[string]any, error) {
	var raw []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(args[0])
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	return m, nil
}

var recordCmd = &cobra.Command{
	Use:   "record [file.json]",
	Short: "Record an interaction against a running server",
	Long:  "Reads an interaction object as JSON from the file argument or stdin, posts it for accumulation, and prints the computed delta.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		interaction, err := readJSONArg(args)
		if err != nil {
			return err
		}
		res, err := client.New(serverURL).RecordInteraction(interaction, priorDelta, nil)
		if err != nil {
			return err
		}
		fmt.Printf("recorded %s (hash %s, delta %.2f)\n", res.ID, res.ContextHash[:12], res.IntelligenceDelta)
		return nil
	},
}

var matchCmd = &cobra.Command{
	Use:   "match [file.json]",
	Short: "Match a context against stored patterns",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contextMap, err := readJSONArg(args)
		if err != nil {
			return err
		}
		matches, err := client.New(serverURL).MatchPatterns(contextMap, matchTau, matchLimit)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Println("no patterns matched")
			return nil
		}
		for _, m := range matches {
			fmt.Printf("%.3f  %-20s  acc=%.2f  seen=%d  %s\n",
				m.SimilarityScore, m.PatternType, m.PredictionAccuracy, m.Occurrences, m.LearnedOptimization)
		}
		return nil
	},
}

var cascadeCmd = &cobra.Command{
	Use:   "cascade <decision>",
	Short: "Predict the consequence chain for a decision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, err := client.New(serverURL).PredictCascade(args[0], depthFlag)
		if err != nil {
			return err
		}
		if len(steps) == 0 {
			fmt.Println("no cascade found")
			return nil
		}
		for _, s := range steps {
			fmt.Printf("L%d  %-30s  p=%.2f  cumulative=%.3f\n",
				s.Level, s.Decision, s.Probability, s.CumulativeConfidence)
		}
		return nil
	},
}
