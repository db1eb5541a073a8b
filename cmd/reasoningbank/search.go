package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/reasoningbank/pkg/core"
	"github.com/liliang-cn/reasoningbank/pkg/curriculum"
)

var searchCmd = &cobra.Command{
	Use:   "search <task>",
	Short: "Retrieve the memories most relevant to a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		task := args[0]
		k := cfg.Retrieval.K
		if cmd.Flags().Changed("top-k") {
			k, _ = cmd.Flags().GetInt("top-k")
		}
		useCurriculum, _ := cmd.Flags().GetBool("curriculum")
		outputJSON, _ := cmd.Flags().GetBool("json")

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if useCurriculum {
			ontology := cfg.Retrieval.Ontology
			if cmd.Flags().Changed("ontology") {
				ontology, _ = cmd.Flags().GetString("ontology")
			}
			tolerance := cfg.Retrieval.Tolerance
			if cmd.Flags().Changed("tolerance") {
				tolerance, _ = cmd.Flags().GetInt("tolerance")
			}

			retriever := curriculum.NewRetriever(store, core.NewZapLogger(logger)).
				WithOversampleFactor(cfg.Retrieval.Oversample)
			results, err := retriever.RetrieveWithCurriculum(ctx, task, curriculum.Options{
				K:         k,
				Ontology:  ontology,
				Tolerance: tolerance,
			})
			if err != nil {
				return fmt.Errorf("failed to search: %w", err)
			}

			if outputJSON {
				return printJSON(results)
			}
			fmt.Printf("Estimated level: L%d\n", curriculum.Estimate(task))
			if len(results) == 0 {
				fmt.Println("No results found.")
				return nil
			}
			for i, r := range results {
				kind := "memory"
				if r.Exemplar {
					kind = fmt.Sprintf("exemplar, curriculum score %.1f", r.CurriculumScore)
				}
				fmt.Printf("%d. [%.4f] %s  %s (%s)\n", i+1, r.Score, r.MemoryID, r.Title, kind)
			}
			return nil
		}

		filter, err := memoryFilterFromFlags(cmd)
		if err != nil {
			return err
		}
		results, err := store.Retrieve(ctx, task, core.RetrieveOptions{K: k, Filter: filter})
		if err != nil {
			return fmt.Errorf("failed to search: %w", err)
		}

		if outputJSON {
			return printJSON(results)
		}
		if len(results) == 0 {
			fmt.Println("No results found.")
			return nil
		}
		for i, r := range results {
			fmt.Printf("%d. [%.4f] %s  %s\n", i+1, r.Score, r.MemoryID, r.Title)
			if r.Description != "" {
				fmt.Printf("   %s\n", r.Description)
			}
		}
		return nil
	},
}

var estimateCmd = &cobra.Command{
	Use:   "estimate <text>",
	Short: "Estimate the curriculum level of a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		est := curriculum.EstimateDetailed(args[0])

		if outputJSON, _ := cmd.Flags().GetBool("json"); outputJSON {
			return printJSON(est)
		}

		fmt.Printf("Level: L%d\n", est.Level)
		levels := make([]int, 0, len(est.Scores))
		for l := range est.Scores {
			levels = append(levels, int(l))
		}
		sort.Ints(levels)
		for _, l := range levels {
			fmt.Printf("  L%d: %.1f\n", l, est.Scores[curriculum.Level(l)])
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("top-k", 5, "Number of results")
	searchCmd.Flags().String("source", "", "Filter by source type")
	searchCmd.Flags().String("ontology", "", "Filter by ontology, or the caller's ontology with --curriculum")
	searchCmd.Flags().Bool("curriculum", false, "Re-rank toward exemplars at the task's level")
	searchCmd.Flags().Int("tolerance", curriculum.DefaultTolerance, "Level distance still credited with --curriculum")
	searchCmd.Flags().Bool("json", false, "Output as JSON")

	estimateCmd.Flags().Bool("json", false, "Output as JSON")
}
