package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/reasoningbank/pkg/core"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Record and inspect agent runs",
}

var runAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record an agent run",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		model, _ := cmd.Flags().GetString("model")
		ontology, _ := cmd.Flags().GetString("ontology")
		ontologyPath, _ := cmd.Flags().GetString("ontology-path")
		notes, _ := cmd.Flags().GetString("notes")

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		runID, err := store.AddRun(ctx, &core.Run{
			RunID:        id,
			Model:        model,
			OntologyName: ontology,
			OntologyPath: ontologyPath,
			Notes:        notes,
		})
		if err != nil {
			return fmt.Errorf("failed to add run: %w", err)
		}
		fmt.Println(runID)
		return nil
	},
}

var runGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.GetRun(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get run: %w", err)
		}
		return printJSON(run)
	},
}

var trajectoryCmd = &cobra.Command{
	Use:   "trajectory",
	Short: "Record and inspect trajectories and their judgments",
}

var trajectoryAddCmd = &cobra.Command{
	Use:   "add <run-id>",
	Short: "Record a trajectory within a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		task, _ := cmd.Flags().GetString("task")
		answer, _ := cmd.Flags().GetString("answer")
		iterations, _ := cmd.Flags().GetInt("iterations")
		converged, _ := cmd.Flags().GetBool("converged")
		logPath, _ := cmd.Flags().GetString("log-path")

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		trajectoryID, err := store.AddTrajectory(ctx, &core.Trajectory{
			TrajectoryID:   id,
			RunID:          args[0],
			TaskQuery:      task,
			FinalAnswer:    answer,
			IterationCount: iterations,
			Converged:      converged,
			RLMLogPath:     logPath,
		})
		if err != nil {
			return fmt.Errorf("failed to add trajectory: %w", err)
		}
		fmt.Println(trajectoryID)
		return nil
	},
}

var trajectoryGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a trajectory and its judgment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		traj, err := store.GetTrajectory(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get trajectory: %w", err)
		}
		judgment, err := store.GetJudgment(ctx, args[0])
		if err != nil && !core.IsNotFound(err) {
			return fmt.Errorf("failed to get judgment: %w", err)
		}

		return printJSON(struct {
			*core.Trajectory
			Judgment *core.Judgment `json:"judgment,omitempty"`
		}{traj, judgment})
	},
}

var trajectoryJudgeCmd = &cobra.Command{
	Use:   "judge <trajectory-id>",
	Short: "Record the verdict for a trajectory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		success, _ := cmd.Flags().GetBool("success")
		reason, _ := cmd.Flags().GetString("reason")
		confidence, _ := cmd.Flags().GetString("confidence")
		missing, _ := cmd.Flags().GetStringSlice("missing")

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if _, err := store.AddJudgment(ctx, &core.Judgment{
			TrajectoryID: args[0],
			IsSuccess:    success,
			Reason:       reason,
			Confidence:   core.Confidence(confidence),
			Missing:      missing,
		}); err != nil {
			return fmt.Errorf("failed to add judgment: %w", err)
		}
		fmt.Printf("Judgment for trajectory '%s' recorded\n", args[0])
		return nil
	},
}

func init() {
	runCmd.AddCommand(runAddCmd, runGetCmd)
	trajectoryCmd.AddCommand(trajectoryAddCmd, trajectoryGetCmd, trajectoryJudgeCmd)

	runAddCmd.Flags().String("id", "", "Run ID (generated when empty)")
	runAddCmd.Flags().String("model", "", "Model that drove the run")
	runAddCmd.Flags().String("ontology", "", "Ontology name")
	runAddCmd.Flags().String("ontology-path", "", "Ontology file path")
	runAddCmd.Flags().String("notes", "", "Free-form notes")

	trajectoryAddCmd.Flags().String("id", "", "Trajectory ID (generated when empty)")
	trajectoryAddCmd.Flags().String("task", "", "Task query")
	trajectoryAddCmd.Flags().String("answer", "", "Final answer")
	trajectoryAddCmd.Flags().Int("iterations", 0, "Iteration count")
	trajectoryAddCmd.Flags().Bool("converged", false, "Whether the loop converged")
	trajectoryAddCmd.Flags().String("log-path", "", "Path of the agent log")

	trajectoryJudgeCmd.Flags().Bool("success", false, "Mark the trajectory successful")
	trajectoryJudgeCmd.Flags().String("reason", "", "Reason for the verdict")
	trajectoryJudgeCmd.Flags().String("confidence", string(core.ConfidenceMedium), "high, medium or low")
	trajectoryJudgeCmd.Flags().StringSlice("missing", nil, "Missing elements")
}
