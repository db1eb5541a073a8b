package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/reasoningbank/pkg/core"
	"github.com/liliang-cn/reasoningbank/pkg/curriculum"
)

var exemplarCmd = &cobra.Command{
	Use:   "exemplar",
	Short: "Load and inspect curriculum exemplars",
}

var exemplarLoadCmd = &cobra.Command{
	Use:   "load <dir>",
	Short: "Load exemplar markdown files from a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern, _ := cmd.Flags().GetString("pattern")
		ontology, _ := cmd.Flags().GetString("ontology")

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		ids, err := curriculum.LoadExemplarDir(ctx, store, args[0], pattern, ontology, core.NewZapLogger(logger))
		if err != nil {
			return fmt.Errorf("failed to load exemplars: %w", err)
		}

		fmt.Printf("Loaded %d new exemplar(s) from %s\n", len(ids), args[0])
		for _, id := range ids {
			fmt.Printf("  %s\n", id)
		}
		return nil
	},
}

var exemplarCoverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Show exemplar counts per level and ontology",
	RunE: func(cmd *cobra.Command, args []string) error {
		ontology, _ := cmd.Flags().GetString("ontology")

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		cov, err := curriculum.NewRetriever(store, core.NewZapLogger(logger)).AnalyzeCoverage(ctx, ontology)
		if err != nil {
			return fmt.Errorf("failed to analyze coverage: %w", err)
		}

		if outputJSON, _ := cmd.Flags().GetBool("json"); outputJSON {
			return printJSON(cov)
		}

		fmt.Printf("Exemplars: %d\n", cov.Total)
		for l := curriculum.MinLevel; l <= curriculum.MaxLevel; l++ {
			fmt.Printf("  L%d: %d\n", l, cov.ByLevel[l])
		}
		for name, n := range cov.ByOntology {
			fmt.Printf("  %s: %d\n", name, n)
		}
		if len(cov.Gaps) > 0 {
			fmt.Printf("Levels without exemplars: %v\n", cov.Gaps)
		}
		return nil
	},
}

var exemplarListCmd = &cobra.Command{
	Use:   "list",
	Short: "List exemplars at a curriculum level",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetInt("level")
		ontology, _ := cmd.Flags().GetString("ontology")
		limit, _ := cmd.Flags().GetInt("limit")
		if !curriculum.Level(level).Valid() {
			return fmt.Errorf("level must be between %d and %d", curriculum.MinLevel, curriculum.MaxLevel)
		}

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		items, err := curriculum.NewRetriever(store, core.NewZapLogger(logger)).
			GetExemplarsForLevel(ctx, curriculum.Level(level), ontology, limit)
		if err != nil {
			return fmt.Errorf("failed to list exemplars: %w", err)
		}

		if outputJSON, _ := cmd.Flags().GetBool("json"); outputJSON {
			return printJSON(items)
		}
		if len(items) == 0 {
			fmt.Println("No exemplars found.")
			return nil
		}
		for _, item := range items {
			printMemory(item)
		}
		return nil
	},
}

func init() {
	exemplarCmd.AddCommand(exemplarLoadCmd, exemplarCoverageCmd, exemplarListCmd)

	exemplarLoadCmd.Flags().String("pattern", "*.md", "File glob within the directory")
	exemplarLoadCmd.Flags().String("ontology", "", "Ontology the exemplars belong to")

	exemplarCoverageCmd.Flags().String("ontology", "", "Restrict to an ontology")
	exemplarCoverageCmd.Flags().Bool("json", false, "Output as JSON")

	exemplarListCmd.Flags().Int("level", 1, "Curriculum level (1-5)")
	exemplarListCmd.Flags().String("ontology", "", "Restrict to an ontology")
	exemplarListCmd.Flags().Int("limit", 0, "Maximum number of exemplars (0 for all)")
	exemplarListCmd.Flags().Bool("json", false, "Output as JSON")
}
