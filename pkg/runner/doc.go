/*
Package runner implements the host loop for the Stagehand engine.

The engine is cooperative: it only makes progress when ticked, and Transition and Tick must be
called from one goroutine. The Runner owns that goroutine. It ticks the engine and any host
components (loader, effect) at a fixed cadence and serialises transition requests coming from
other goroutines (HTTP handlers, MCP tools, CLI) onto the loop, queueing them while a
transition is in flight.

# Usage

	r := runner.New(engine,
		runner.WithTickables(host, effect),
		runner.WithTickInterval(16*time.Millisecond),
	)
	go r.Run(ctx)

	err := r.Transition(ctx, stagehand.Request("Game", session))
*/
package runner
