package main

import (
	"fmt"
	"os"

	"github.com/aretw0/stagehand/pkg/settings"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stagehand",
	Short: "Stagehand orchestrates scene transitions",
	Long: `Stagehand drives scene transitions through a linear blend and switch sequence.
The CLI runs the engine against a simulated host so scene sets can be authored,
validated and exercised without the real application.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Settings file (YAML or JSON)")
	rootCmd.PersistentFlags().String("scenes", "", "Directory of scene documents (overrides scenes_dir)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
}

// loadSettings reads the settings named by the persistent flags.
func loadSettings(cmd *cobra.Command) (*settings.Settings, error) {
	path, _ := cmd.Flags().GetString("config")
	s, err := settings.Load(path)
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("scenes"); dir != "" {
		s.ScenesDir = dir
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		if _, err := settings.ParseLevel(lvl); err != nil {
			return nil, err
		}
		s.LogLevel = lvl
	}
	return s, nil
}
