package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/classifier-cli/internal/taxonomy"
)

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Inspect the reference taxonomy",
}

var taxonomyValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the taxonomy file and report entry counts and integrity errors",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := taxonomy.LoadFile(cfg.Taxonomy.Path)
		if err != nil {
			return err
		}

		sectors := make(map[string]bool)
		industries := make(map[string]bool)
		for _, e := range entries {
			sectors[e.Sector] = true
			industries[e.Sector+"|"+e.Industry] = true
		}

		fmt.Printf("%s: %d entries, %d sectors, %d industries\n",
			cfg.Taxonomy.Path, len(entries), len(sectors), len(industries))
		return nil
	},
}

func init() {
	taxonomyCmd.AddCommand(taxonomyValidateCmd)
	rootCmd.AddCommand(taxonomyCmd)
}
