package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aretw0/stagehand"
	"github.com/aretw0/stagehand/internal/presentation/tui"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/params"
)

// Step is one scripted transition.
type Step struct {
	Identifier    string
	ParameterType string
	Parameters    map[string]any
	RetainCurrent bool
}

// RunOptions configures Run.
type RunOptions struct {
	Steps  []Step
	Out    io.Writer
	Banner bool
	// Poll is how often the status line is refreshed. Defaults to the tick interval.
	Poll time.Duration
}

// Run boots app, then performs each step in order while printing progress.
// It stops at the first failed step.
func Run(ctx context.Context, app *App, opts RunOptions) error {
	if opts.Banner {
		tui.PrintBanner(opts.Out)
	}
	status := tui.NewStatus(opts.Out)

	target, finished, err := app.Boot(ctx)
	if err != nil {
		return err
	}

	loopCtx, stop := context.WithCancel(ctx)
	wait := app.Start(loopCtx)
	defer func() {
		stop()
		wait()
	}()

	poll := opts.Poll
	if poll <= 0 {
		poll = app.Settings.TickInterval
	}

	if finished != nil {
		if err := follow(ctx, app, status, target, finished, poll); err != nil {
			return fmt.Errorf("boot failed: %w", err)
		}
	}

	for _, step := range opts.Steps {
		var src domain.ParameterSource
		if step.Parameters != nil || step.ParameterType != "" {
			src = params.FromMap(step.ParameterType, step.Parameters)
		}
		var topts []stagehand.TransitionOption
		if step.RetainCurrent {
			topts = append(topts, stagehand.RetainCurrent())
		}

		done, err := app.Runner.Submit(ctx, stagehand.Request(step.Identifier, src, topts...))
		if err != nil {
			status.Done(step.Identifier, err)
			return err
		}
		if err := follow(ctx, app, status, step.Identifier, done, poll); err != nil {
			return err
		}
	}
	return nil
}

func follow(ctx context.Context, app *App, status *tui.Status, target string, done <-chan error, poll time.Duration) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			status.Done(target, err)
			return err
		case <-ticker.C:
			if app.Engine.Busy() {
				status.Update(target, app.Engine.State(), app.Engine.Progress())
			}
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		}
	}
}
