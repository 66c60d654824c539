package main

import (
	"github.com/aretw0/stagehand/internal/cli"
	"github.com/aretw0/stagehand/pkg/runner"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API over HTTP",
	Long: `Boots the engine against the simulated host and exposes it over HTTP:
GET /scenes, GET /scenes/{id}, GET /state, POST /transitions, GET /events and GET /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			s.HTTP.Addr = addr
		}

		sm := runner.NewSignalManager(cmd.Context())
		defer sm.Stop()

		app, err := cli.Build(sm.Context(), s, cli.BuildOptions{})
		if err != nil {
			return err
		}
		defer app.Close()

		return cli.Serve(sm.Context(), app, s.HTTP.Addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Listen address (overrides http.addr)")
}
