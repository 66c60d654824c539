package main

import (
	"context"
	"fmt"

	"github.com/aretw0/stagehand/internal/cli"
	"github.com/aretw0/stagehand/pkg/adapters/mcp"
	"github.com/aretw0/stagehand/pkg/runner"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the engine as an MCP server so agents can list scenes, read the state
and request transitions.

Supported Transports:
- stdio (default): Standard Input/Output, for local process integration.
- sse: Server-Sent Events over HTTP, for remote agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")
		if transport != "stdio" && transport != "sse" {
			return fmt.Errorf("unknown transport %q (want stdio or sse)", transport)
		}
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		sm := runner.NewSignalManager(cmd.Context())
		defer sm.Stop()
		ctx := sm.Context()

		app, err := cli.Build(ctx, s, cli.BuildOptions{})
		if err != nil {
			return err
		}
		defer app.Close()

		_, finished, err := app.Boot(ctx)
		if err != nil {
			return err
		}
		loopCtx, stop := context.WithCancel(ctx)
		wait := app.Start(loopCtx)
		defer func() {
			stop()
			wait()
		}()
		if err := cli.Await(ctx, finished); err != nil {
			app.Logger.Error("boot transition failed", "err", err)
		}

		srv := mcp.NewServer(app.Engine, app.Runner, app.Logger)
		if transport == "sse" {
			return srv.ServeSSE(ctx, addr)
		}
		return srv.ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringP("transport", "t", "stdio", "Transport: stdio or sse")
	mcpCmd.Flags().String("addr", ":8081", "Listen address for the sse transport")
}
