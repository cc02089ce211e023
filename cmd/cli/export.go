package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/posbridge/pricing-service/internal/export"
)

var (
	exportBlueprints string
	exportOutput     string
	exportTimeout    time.Duration
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export blueprint tiers to an Excel workbook",
	Long: `Resolve the tiers of each listed blueprint and write them to an .xlsx
workbook with one sheet per blueprint, including conversion ratios.`,
	Example: `  pricing-service export --blueprints 12,13,44 --output tiers.xlsx
  pricing-service export --blueprints 12 --env staging`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportBlueprints, "blueprints", "", "Comma-separated blueprint ids (required)")
	exportCmd.Flags().StringVar(&exportOutput, "output", "tiers.xlsx", "Output workbook path")
	exportCmd.Flags().DurationVar(&exportTimeout, "timeout", 60*time.Second, "Overall timeout")
	exportCmd.MarkFlagRequired("blueprints")
}

func runExport(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(exportBlueprints)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("no blueprint ids given")
	}

	ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
	defer cancel()

	blueprints := make([]export.Blueprint, 0, len(ids))
	for _, id := range ids {
		groups := eng.TiersForBlueprint(ctx, environment, id)
		name := ""
		if len(groups) > 0 {
			name = groups[0].ProductType
		}
		logger.Info().Int("blueprint_id", id).Int("rule_groups", len(groups)).Msg("Collected tiers")
		blueprints = append(blueprints, export.Blueprint{ID: id, Name: name, RuleGroups: groups})
	}

	file, err := os.Create(exportOutput)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", exportOutput, err)
	}
	defer file.Close()

	if err := export.Write(file, blueprints); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	logger.Info().Str("file", exportOutput).Int("blueprints", len(blueprints)).Msg("Export complete")
	return nil
}
