package main

import (
	"fmt"

	"github.com/aretw0/stagehand/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the settings and the scene set for consistency",
	Long:  `Loads the settings and every scene, then reports empty or duplicate identifiers, scenes without units and dangling references.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		problems, err := cli.Validate(cmd.Context(), s)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(problems) == 0 {
			fmt.Fprintln(out, "Scenes are valid!")
			return nil
		}
		for _, p := range problems {
			fmt.Fprintf(out, "- %v\n", p)
		}
		return fmt.Errorf("validation failed: %d problem(s)", len(problems))
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
