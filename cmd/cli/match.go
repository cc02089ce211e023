package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var (
	matchQuantity float64
	matchPrice    float64
	matchCategory string
	matchTimeout  time.Duration
)

// matchCmd represents the match command
var matchCmd = &cobra.Command{
	Use:   "match <blueprint-id>",
	Short: "Find the tier behind a quantity and per-unit price",
	Long: `Reverse match a selected quantity and per-unit price against the tiers of a
blueprint. Prints the matched tier and, when the tier carries a conversion
ratio, the inventory multiplier per sold unit.`,
	Example: `  pricing-service match 12 --quantity 1 --price 10
  pricing-service match 12 --quantity 4 --price 12 --category Flower`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().Float64Var(&matchQuantity, "quantity", 1, "Selected quantity")
	matchCmd.Flags().Float64Var(&matchPrice, "price", 0, "Per-unit price (required)")
	matchCmd.Flags().StringVar(&matchCategory, "category", "", "Category context preferred on ties")
	matchCmd.Flags().DurationVar(&matchTimeout, "timeout", 30*time.Second, "Overall timeout")
	matchCmd.MarkFlagRequired("price")
}

func runMatch(cmd *cobra.Command, args []string) error {
	blueprintID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid blueprint id %q: %w", args[0], err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), matchTimeout)
	defer cancel()

	groups := eng.TiersForBlueprint(ctx, environment, blueprintID)
	tier := eng.MatchTier(groups, matchQuantity, matchPrice, matchCategory)
	if tier == nil {
		return fmt.Errorf("no tier of blueprint %d matches quantity %s at %.2f per unit",
			blueprintID, formatQuantity(matchQuantity), matchPrice)
	}

	fmt.Printf("Rule:       %s\n", tier.RuleName)
	fmt.Printf("Tier:       %s\n", tier.Label)
	fmt.Printf("Quantity:   %s %s\n", formatQuantity(tier.Min), tier.Unit)
	fmt.Printf("Tier price: %.2f\n", tier.Price)
	fmt.Printf("Conversion: %s\n", formatRatio(tier.ConversionRatio))
	return nil
}
