package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/posbridge/pricing-service/internal/engine"
	"github.com/posbridge/pricing-service/internal/pricing"
)

var (
	resolveOutput  string
	resolveTimeout time.Duration
)

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve <product[:category,...]>...",
	Short: "Resolve blueprint pricing for products",
	Long: `Resolve the pricing blueprint and tier groups of one or more products. Each
argument is a product id optionally followed by its category ids in priority
order. Products without resolvable tiers are reported as unpriced.`,
	Example: `  pricing-service resolve 101:18
  pricing-service resolve 101:18,20 102 --env staging
  pricing-service resolve 101:18 --output json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringVar(&resolveOutput, "output", "table", "Output format: table or json")
	resolveCmd.Flags().DurationVar(&resolveTimeout, "timeout", 30*time.Second, "Overall timeout")
}

func runResolve(cmd *cobra.Command, args []string) error {
	refs := make([]engine.ProductRef, 0, len(args))
	for _, arg := range args {
		ref, err := parseProductRef(arg)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	logger.Info().Str("environment", environment).Int("products", len(refs)).Msg("Resolving pricing")
	results := eng.BatchResolvePricing(ctx, environment, refs)

	switch strings.ToLower(resolveOutput) {
	case "json":
		return writeJSON(results)
	case "table":
		outputResolveTable(refs, results)
	default:
		return fmt.Errorf("invalid output format: %s (use 'table' or 'json')", resolveOutput)
	}
	return nil
}

// parseProductRef parses "101" or "101:18,20"
func parseProductRef(arg string) (engine.ProductRef, error) {
	idPart, catPart, _ := strings.Cut(arg, ":")
	id, err := strconv.Atoi(strings.TrimSpace(idPart))
	if err != nil {
		return engine.ProductRef{}, fmt.Errorf("invalid product id in %q: %w", arg, err)
	}
	categories, err := parseIDs(catPart)
	if err != nil {
		return engine.ProductRef{}, fmt.Errorf("invalid categories in %q: %w", arg, err)
	}
	return engine.ProductRef{ID: id, CategoryIDs: categories}, nil
}

func outputResolveTable(refs []engine.ProductRef, results map[int]*engine.ResolvedPricing) {
	fmt.Printf("\nPricing for environment %s\n", environment)
	fmt.Println(strings.Repeat("-", 60))

	ids := make([]int, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	sort.Ints(ids)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "PRODUCT\tBLUEPRINT\tRULE\tTIER\tMIN\tPRICE\tCONVERSION")
	for _, id := range ids {
		rp := results[id]
		if rp == nil {
			fmt.Fprintf(w, "%d\t-\t-\t-\t-\t-\t(unpriced, base price applies)\n", id)
			continue
		}
		for _, g := range rp.RuleGroups {
			writeTierRows(w, fmt.Sprintf("%d\t%d %s", id, rp.BlueprintID, rp.BlueprintName), g)
		}
	}
	w.Flush()
}

func writeTierRows(w *tabwriter.Writer, prefix string, g pricing.RuleGroup) {
	for _, t := range g.Tiers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
			prefix, g.RuleName, t.Label, formatQuantity(t.Min), t.Price, formatRatio(t.ConversionRatio))
	}
}

func formatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatRatio(r *pricing.ConversionRatio) string {
	if r == nil {
		return "-"
	}
	return fmt.Sprintf("%s %s = %s %s (x%s)",
		formatQuantity(r.OutputAmount), r.OutputUnit,
		formatQuantity(r.InputAmount), r.InputUnit,
		formatQuantity(r.Multiplier()))
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
