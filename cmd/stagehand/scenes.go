package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/stagehand/internal/cli"
	"github.com/aretw0/stagehand/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var scenesCmd = &cobra.Command{
	Use:   "scenes",
	Short: "List the scene set",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		entries, err := cli.Scenes(cmd.Context(), s)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		render := tui.NewRenderer(tui.IsTerminal(out))
		text, err := render(tui.ScenesMarkdown(entries, s.InitialState))
		if err != nil {
			return err
		}
		fmt.Fprint(out, text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scenesCmd)
	scenesCmd.Flags().Bool("json", false, "Print the scenes as JSON")
}
