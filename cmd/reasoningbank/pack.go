package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/reasoningbank/pkg/core"
	"github.com/liliang-cn/reasoningbank/pkg/pack"
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Export, import, validate and merge memory packs",
}

var packExportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Write memories to a JSON-Lines pack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := memoryFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := pack.Export(ctx, store, args[0], filter)
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d memories to %s\n", n, args[0])
		return nil
	},
}

var packImportCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Add the memories of a pack to the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		overwrite, _ := cmd.Flags().GetBool("overwrite")

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		res, err := pack.Import(ctx, store, args[0], pack.ImportOptions{
			SkipDuplicates: !overwrite,
			Logger:         core.NewZapLogger(logger),
		})
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d, skipped %d, total %d\n", res.Imported, res.Skipped, res.Total)
		return nil
	},
}

var packValidateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Check a pack without touching the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := pack.Validate(args[0])
		if err != nil {
			return err
		}

		if outputJSON, _ := cmd.Flags().GetBool("json"); outputJSON {
			if err := printJSON(res); err != nil {
				return err
			}
		} else {
			fmt.Printf("Memories: %d  Duplicates: %d\n", res.Count, res.Duplicates)
			for _, e := range res.Errors {
				fmt.Printf("  %s\n", e)
			}
		}
		if !res.Valid {
			return fmt.Errorf("pack %s is invalid: %d problem(s)", args[0], len(res.Errors))
		}
		fmt.Println("Pack is valid")
		return nil
	},
}

var packMergeCmd = &cobra.Command{
	Use:   "merge <output> <pack>...",
	Short: "Concatenate packs, dropping repeated memories",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		keepDuplicates, _ := cmd.Flags().GetBool("keep-duplicates")

		res, err := pack.Merge(args[1:], args[0], !keepDuplicates)
		if err != nil {
			return err
		}
		fmt.Printf("Merged %d memories into %s (%d unique, %d duplicates removed)\n",
			res.Total, args[0], res.Unique, res.DuplicatesRemoved)
		return nil
	},
}

func init() {
	packCmd.AddCommand(packExportCmd, packImportCmd, packValidateCmd, packMergeCmd)

	packExportCmd.Flags().String("source", "", "Filter by source type")
	packExportCmd.Flags().String("ontology", "", "Filter by ontology")

	packImportCmd.Flags().Bool("overwrite", false, "Replace descriptive fields of memories already stored")

	packValidateCmd.Flags().Bool("json", false, "Output as JSON")

	packMergeCmd.Flags().Bool("keep-duplicates", false, "Keep every line instead of first-source-wins")
}
