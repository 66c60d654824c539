package ports

import "github.com/aretw0/stagehand/pkg/domain"

// UnitHandle observes one asynchronous load or unload owned by the host loader.
type UnitHandle interface {
	// Progress reports completion in [0,1]. A load that waits for activation
	// stops at the host's ready threshold (conventionally 0.9).
	Progress() float64

	// IsDone reports whether the operation finished, activation included.
	IsDone() bool

	// SetAllowActivation lets a loaded unit become active. Unload handles ignore it.
	SetAllowActivation(allow bool)

	// Err reports a failure of the operation, if any.
	Err() error
}

// HostLoader is the host's content loader.
// Calls are made from the orchestrator goroutine only.
type HostLoader interface {
	// LoadUnit starts loading a unit. The returned handle holds activation
	// until SetAllowActivation(true) is called.
	LoadUnit(name string, mode domain.LoadMode) (UnitHandle, error)

	// UnloadUnit starts unloading a resident unit.
	UnloadUnit(name string) (UnitHandle, error)

	// SetActiveUnit marks a resident unit as the active one.
	SetActiveUnit(name string) error

	// LoadedUnits returns the resident units in load order.
	LoadedUnits() []string
}

// TransitionEffect is the visual blend played around a transition.
// Show and Hide must eventually call onComplete, otherwise the transition stalls.
type TransitionEffect interface {
	ShowImmediate()
	HideImmediate()
	Show(onComplete func())
	Hide(onComplete func())

	// SetLoadingProgress receives the aggregated loading progress, for display.
	SetLoadingProgress(progress float64)
}

// Tickable is implemented by host components that advance once per frame.
type Tickable interface {
	Tick()
}
