package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/stagehand/pkg/domain"
)

// LogHooks returns hooks that write every lifecycle event to logger.
// Progress is logged at debug level since it fires on most ticks.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(ctx context.Context, e *domain.StateEvent) {
			logger.DebugContext(ctx, "state_enter", "transition_id", e.TransitionID, "identifier", e.Identifier, "state", e.State)
		},
		OnUnitLoad: func(ctx context.Context, e *domain.UnitEvent) {
			logger.InfoContext(ctx, "unit_load", "transition_id", e.TransitionID, "unit", e.Unit, "mode", e.Mode)
		},
		OnUnitUnload: func(ctx context.Context, e *domain.UnitEvent) {
			logger.InfoContext(ctx, "unit_unload", "transition_id", e.TransitionID, "unit", e.Unit)
		},
		OnProgress: func(ctx context.Context, e *domain.ProgressEvent) {
			logger.DebugContext(ctx, "progress", "transition_id", e.TransitionID, "progress", e.Progress)
		},
		OnCommit: func(ctx context.Context, e *domain.OutcomeEvent) {
			logger.InfoContext(ctx, "commit",
				"transition_id", e.TransitionID,
				"identifier", e.Identifier,
				"previous", e.Previous,
				"duration", e.Duration,
			)
		},
		OnFailure: func(ctx context.Context, e *domain.OutcomeEvent) {
			logger.ErrorContext(ctx, "failure",
				"transition_id", e.TransitionID,
				"identifier", e.Identifier,
				"error", e.Err,
			)
		},
	}
}
