package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	tiersOutput  string
	tiersTimeout time.Duration
)

// tiersCmd represents the tiers command
var tiersCmd = &cobra.Command{
	Use:   "tiers <blueprint-id>",
	Short: "List the quantity-break tiers of a blueprint",
	Long: `List every rule group of a blueprint with its tiers sorted by minimum
quantity. Rules with an unrecognised conditions payload are skipped and logged.`,
	Example: `  pricing-service tiers 12
  pricing-service tiers 12 --env staging --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runTiers,
}

func init() {
	rootCmd.AddCommand(tiersCmd)

	tiersCmd.Flags().StringVar(&tiersOutput, "output", "table", "Output format: table or json")
	tiersCmd.Flags().DurationVar(&tiersTimeout, "timeout", 30*time.Second, "Overall timeout")
}

func runTiers(cmd *cobra.Command, args []string) error {
	blueprintID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid blueprint id %q: %w", args[0], err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), tiersTimeout)
	defer cancel()

	groups := eng.TiersForBlueprint(ctx, environment, blueprintID)

	switch strings.ToLower(tiersOutput) {
	case "json":
		return writeJSON(groups)
	case "table":
		if len(groups) == 0 {
			fmt.Printf("No tiers for blueprint %d in %s\n", blueprintID, environment)
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "RULE ID\tRULE\tTIER\tMIN\tPRICE\tCONVERSION")
		for _, g := range groups {
			writeTierRows(w, strconv.Itoa(g.RuleID), g)
		}
		w.Flush()
	default:
		return fmt.Errorf("invalid output format: %s (use 'table' or 'json')", tiersOutput)
	}
	return nil
}
