package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/stagehand/internal/cli"
	"github.com/aretw0/stagehand/internal/logging"
	"github.com/aretw0/stagehand/pkg/runner"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [scene[:type=json]]...",
	Short: "Transition through scenes against the simulated host",
	Long: `Boots the engine (resuming the persisted state or entering initial_state) and then
transitions to every scene given as argument, in order, printing progress.

Parameters can be attached with scene:type={"key":"value"}.`,
	Example: `  stagehand run -c stagehand.yaml Menu 'Game:game.Session={"level":2}'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		steps, err := parseSteps(args)
		if err != nil {
			return err
		}
		retain, _ := cmd.Flags().GetBool("retain")
		for i := range steps {
			steps[i].RetainCurrent = retain
		}
		quiet, _ := cmd.Flags().GetBool("quiet")

		logger := logging.NewNop()
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logger = logging.New(s.Level(), logging.WithFormat(logging.Format(s.LogFormat)))
		}

		sm := runner.NewSignalManager(cmd.Context())
		defer sm.Stop()

		app, err := cli.Build(sm.Context(), s, cli.BuildOptions{Logger: logger})
		if err != nil {
			return err
		}
		defer app.Close()

		return cli.Run(sm.Context(), app, cli.RunOptions{
			Steps:  steps,
			Out:    os.Stdout,
			Banner: !quiet,
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("retain", false, "Keep every loaded unit resident on each transition")
	runCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
	runCmd.Flags().BoolP("verbose", "v", false, "Log engine activity to stderr")
}

func parseSteps(args []string) ([]cli.Step, error) {
	steps := make([]cli.Step, 0, len(args))
	for _, arg := range args {
		id, rest, hasParams := strings.Cut(arg, ":")
		step := cli.Step{Identifier: id}
		if hasParams {
			typeName, raw, hasData := strings.Cut(rest, "=")
			step.ParameterType = typeName
			step.Parameters = map[string]any{}
			if hasData {
				if err := json.Unmarshal([]byte(raw), &step.Parameters); err != nil {
					return nil, fmt.Errorf("parameters of %s must be a JSON object: %w", id, err)
				}
			}
		}
		if step.Identifier == "" {
			return nil, fmt.Errorf("empty scene identifier in %q", arg)
		}
		steps = append(steps, step)
	}
	return steps, nil
}
