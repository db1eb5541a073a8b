package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/reasoningbank/pkg/core"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage memory items",
}

var memoryAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a memory item",
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		content, _ := cmd.Flags().GetString("content")
		contentFile, _ := cmd.Flags().GetString("content-file")
		source, _ := cmd.Flags().GetString("source")
		task, _ := cmd.Flags().GetString("task")
		tags, _ := cmd.Flags().GetStringSlice("tags")
		ontologies, _ := cmd.Flags().GetStringSlice("ontology")
		taskTypes, _ := cmd.Flags().GetStringSlice("task-type")

		if contentFile != "" {
			data, err := os.ReadFile(contentFile)
			if err != nil {
				return fmt.Errorf("failed to read content file: %w", err)
			}
			content = string(data)
		}

		item := core.NewMemoryItem(title, description, content, core.SourceType(source))
		item.TaskQuery = task
		if tags != nil {
			item.Tags = tags
		}
		item.Scope.Ontology = ontologies
		item.Scope.TaskTypes = taskTypes
		if cmd.Flags().Changed("level") {
			level, _ := cmd.Flags().GetInt("level")
			item.Scope.CurriculumLevel = core.IntPtr(level)
		}

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		exists, err := store.HasMemory(ctx, item.MemoryID)
		if err != nil {
			return err
		}
		id, err := store.AddMemory(ctx, item)
		if err != nil {
			return fmt.Errorf("failed to add memory: %w", err)
		}

		if exists {
			fmt.Printf("Memory '%s' already stored, left unchanged\n", id)
		} else {
			fmt.Printf("Memory '%s' added successfully\n", id)
		}
		return nil
	},
}

var memoryGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a memory item by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		item, err := store.GetMemory(ctx, args[0])
		if core.IsNotFound(err) {
			return fmt.Errorf("memory '%s' not found", args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to get memory: %w", err)
		}

		if outputJSON, _ := cmd.Flags().GetBool("json"); outputJSON {
			return printJSON(item)
		}
		printMemory(item)
		fmt.Printf("\n%s\n", item.Content)
		return nil
	},
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List memory items, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := memoryFilterFromFlags(cmd)
		if err != nil {
			return err
		}
		filter.Limit, _ = cmd.Flags().GetInt("limit")

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		items, err := store.ListMemories(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to list memories: %w", err)
		}

		if outputJSON, _ := cmd.Flags().GetBool("json"); outputJSON {
			return printJSON(items)
		}
		if len(items) == 0 {
			fmt.Println("No memories found.")
			return nil
		}
		for _, item := range items {
			printMemory(item)
		}
		return nil
	},
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats <id>",
	Short: "Increment the usage counters of a memory item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var update core.StatsUpdate
		update.Accessed, _ = cmd.Flags().GetBool("accessed")
		update.Success, _ = cmd.Flags().GetBool("success")
		update.Failure, _ = cmd.Flags().GetBool("failure")
		if update.IsZero() {
			return fmt.Errorf("at least one of --accessed, --success or --failure is required")
		}

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.UpdateMemoryStats(ctx, args[0], update); err != nil {
			return fmt.Errorf("failed to update memory stats: %w", err)
		}
		item, err := store.GetMemory(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Memory '%s': accessed=%d success=%d failure=%d\n",
			item.MemoryID, item.AccessCount, item.SuccessCount, item.FailureCount)
		return nil
	},
}

func memoryFilterFromFlags(cmd *cobra.Command) (core.MemoryFilter, error) {
	source, _ := cmd.Flags().GetString("source")
	ontology, _ := cmd.Flags().GetString("ontology")

	filter := core.MemoryFilter{SourceType: core.SourceType(source), Ontology: ontology}
	if source != "" && !filter.SourceType.Valid() {
		return filter, fmt.Errorf("invalid source type %q", source)
	}
	return filter, nil
}

func printMemory(item *core.MemoryItem) {
	fmt.Printf("%s  %s\n", item.MemoryID, item.Title)
	fmt.Printf("  Source: %s  Created: %s\n", item.SourceType, item.CreatedAt.Format("2006-01-02 15:04:05"))
	if item.Description != "" {
		fmt.Printf("  %s\n", item.Description)
	}
	if len(item.Tags) > 0 {
		fmt.Printf("  Tags: %s\n", strings.Join(item.Tags, ", "))
	}
	fmt.Printf("  Accessed: %d  Success: %d  Failure: %d\n", item.AccessCount, item.SuccessCount, item.FailureCount)
}

func init() {
	memoryCmd.AddCommand(memoryAddCmd, memoryGetCmd, memoryListCmd, memoryStatsCmd)

	memoryAddCmd.Flags().String("title", "", "Memory title")
	memoryAddCmd.Flags().String("description", "", "One-line description")
	memoryAddCmd.Flags().String("content", "", "Memory content")
	memoryAddCmd.Flags().String("content-file", "", "Read content from file")
	memoryAddCmd.Flags().String("source", string(core.SourceHuman), "Source type")
	memoryAddCmd.Flags().String("task", "", "Task the memory was learned from")
	memoryAddCmd.Flags().StringSlice("tags", nil, "Tags (comma-separated)")
	memoryAddCmd.Flags().StringSlice("ontology", nil, "Ontologies the memory applies to")
	memoryAddCmd.Flags().StringSlice("task-type", nil, "Task types the memory applies to")
	memoryAddCmd.Flags().Int("level", 0, "Curriculum level (1-5)")
	memoryAddCmd.MarkFlagRequired("title")

	memoryGetCmd.Flags().Bool("json", false, "Output as JSON")

	memoryListCmd.Flags().String("source", "", "Filter by source type")
	memoryListCmd.Flags().String("ontology", "", "Filter by ontology")
	memoryListCmd.Flags().Int("limit", 0, "Maximum number of memories (0 for all)")
	memoryListCmd.Flags().Bool("json", false, "Output as JSON")

	memoryStatsCmd.Flags().Bool("accessed", false, "Increment access count")
	memoryStatsCmd.Flags().Bool("success", false, "Increment success count")
	memoryStatsCmd.Flags().Bool("failure", false, "Increment failure count")
}
