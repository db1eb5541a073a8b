package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/reasoningbank/pkg/core"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Record and inspect which memories trajectories consulted",
}

var usageRecordCmd = &cobra.Command{
	Use:   "record <trajectory-id> <memory-id>",
	Short: "Record that a trajectory consulted a memory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rank, _ := cmd.Flags().GetInt("rank")
		var score *float64
		if cmd.Flags().Changed("score") {
			v, _ := cmd.Flags().GetFloat64("score")
			score = &v
		}
		accessed, _ := cmd.Flags().GetBool("accessed")

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.RecordUsage(ctx, args[0], args[1], rank, score); err != nil {
			return fmt.Errorf("failed to record usage: %w", err)
		}
		if accessed {
			if err := store.UpdateMemoryStats(ctx, args[1], core.StatsUpdate{Accessed: true}); err != nil {
				return fmt.Errorf("failed to update memory stats: %w", err)
			}
		}

		fmt.Printf("Usage of memory '%s' by trajectory '%s' recorded at rank %d\n", args[1], args[0], rank)
		return nil
	},
}

var usageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List usage by trajectory or by memory",
	RunE: func(cmd *cobra.Command, args []string) error {
		trajectoryID, _ := cmd.Flags().GetString("trajectory")
		memoryID, _ := cmd.Flags().GetString("memory")
		if (trajectoryID == "") == (memoryID == "") {
			return fmt.Errorf("exactly one of --trajectory or --memory is required")
		}

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		var records []core.UsageRecord
		if trajectoryID != "" {
			records, err = store.GetUsageForTrajectory(ctx, trajectoryID)
		} else {
			records, err = store.GetUsageForMemory(ctx, memoryID)
		}
		if err != nil {
			return fmt.Errorf("failed to list usage: %w", err)
		}

		if outputJSON, _ := cmd.Flags().GetBool("json"); outputJSON {
			return printJSON(records)
		}
		if len(records) == 0 {
			fmt.Println("No usage recorded.")
			return nil
		}
		for _, r := range records {
			score := "-"
			if r.Score != nil {
				score = fmt.Sprintf("%.4f", *r.Score)
			}
			fmt.Printf("%d. trajectory=%s memory=%s score=%s\n", r.Rank, r.TrajectoryID, r.MemoryID, score)
		}
		return nil
	},
}

func init() {
	usageCmd.AddCommand(usageRecordCmd, usageListCmd)

	usageRecordCmd.Flags().Int("rank", 1, "1-based rank the memory was shown at")
	usageRecordCmd.Flags().Float64("score", 0, "Retrieval score")
	usageRecordCmd.Flags().Bool("accessed", false, "Also increment the memory's access count")

	usageListCmd.Flags().String("trajectory", "", "Trajectory ID")
	usageListCmd.Flags().String("memory", "", "Memory ID")
	usageListCmd.Flags().Bool("json", false, "Output as JSON")
}
