package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/liliang-cn/reasoningbank/internal/config"
	"github.com/liliang-cn/reasoningbank/internal/logging"
	"github.com/liliang-cn/reasoningbank/pkg/core"
)

var (
	configPath string
	dbPath     string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "reasoningbank",
	Short: "CLI tool for the ReasoningBank procedural memory store",
	Long: `A command-line interface for storing, searching and exchanging reusable
problem-solving memories in a SQLite database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			loaded.Database.Path = dbPath
		}
		if verbose {
			loaded.Logging.Level = "debug"
		}
		cfg = loaded

		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new memory database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		version, err := store.GetSchemaVersion(ctx)
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		fmt.Printf("Memory database initialized at %s (schema v%d, full-text search: %t)\n",
			cfg.Database.Path, version, store.HasFTSSupport())
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display database statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.GetStats(ctx)
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		if outputJSON, _ := cmd.Flags().GetBool("json"); outputJSON {
			return printJSON(stats)
		}

		fmt.Printf("Database: %s\n", cfg.Database.Path)
		fmt.Printf("  Schema version: %d\n", stats.SchemaVersion)
		fmt.Printf("  Full-text search: %t\n", stats.FTSEnabled)
		fmt.Printf("  Runs: %d\n", stats.Runs)
		fmt.Printf("  Trajectories: %d\n", stats.Trajectories)
		fmt.Printf("  Judgments: %d (%d successful)\n", stats.Judgments, stats.SuccessfulJudgments)
		fmt.Printf("  Memories: %d\n", stats.Memories)
		for _, source := range core.SourceTypes {
			if n := stats.MemoriesBySource[string(source)]; n > 0 {
				fmt.Printf("    %s: %d\n", source, n)
			}
		}
		fmt.Printf("  Usage records: %d\n", stats.UsageRecords)
		return nil
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the full-text search index",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if !store.HasFTSSupport() {
			fmt.Println("Full-text search is not available; nothing to rebuild.")
			return nil
		}
		if err := store.RebuildSearchIndex(ctx); err != nil {
			return fmt.Errorf("failed to rebuild index: %w", err)
		}
		fmt.Println("Search index rebuilt")
		return nil
	},
}

func openStore(ctx context.Context) (*core.SQLiteStore, error) {
	if cfg.Database.Path == "" {
		return nil, fmt.Errorf("database path not specified")
	}

	store, err := core.Open(ctx, cfg.StoreConfig(core.NewZapLogger(logger)))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database file path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	statsCmd.Flags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		initCmd,
		statsCmd,
		reindexCmd,
		runCmd,
		trajectoryCmd,
		memoryCmd,
		searchCmd,
		estimateCmd,
		usageCmd,
		exemplarCmd,
		packCmd,
	)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
