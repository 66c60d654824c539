/*
Package stagehand orchestrates transitions between named scene states of an interactive application.

Given a target identifier, the engine works out which content units must be loaded and unloaded,
sequences that work around a visual transition effect, gates every step on externally registered
handlers, and hands a typed parameter record to the newly active state.

# Concept

A transition walks a linear state machine:

	Idle -> PreShowBlend -> ShowingBlend -> PostShowBlend -> Switching
	     -> PreHideBlend -> HidingBlend -> PostHideBlend -> Committed -> Idle

The engine never spawns goroutines. The host owns the loop and calls Tick once per frame;
the engine polls its collaborators (the host loader, the transition effect and the gates of
the blend handlers) and advances as far as it can. The runner package provides such a loop.

# Handlers

Blend handlers receive a release function and MUST call it exactly once. A handler that never
releases stalls the transition forever: there is no timeout. Switch handlers run synchronously
and may add units to the batch.

# Usage

	host := memory.NewHost()
	eng, err := stagehand.New(host,
		stagehand.WithScenes(
			domain.SceneEntry{Identifier: "Menu", Units: []string{"MenuRoot"}, ParameterAllowNull: true},
			domain.SceneEntry{Identifier: "Game", Units: []string{"World", "HUD"}, ParameterType: "game.Session"},
		),
	)
	if err != nil {
		log.Fatal(err)
	}

	session := params.FromMap("game.Session", map[string]any{"level": 1})
	if err := eng.Transition(ctx, "Game", session, stagehand.OnFinished(func(err error) {
		log.Println("done:", err)
	})); err != nil {
		log.Fatal(err)
	}

	for eng.Busy() {
		host.Tick()
		eng.Tick()
	}
*/
package stagehand
