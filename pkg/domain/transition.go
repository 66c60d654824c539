package domain

// TransitionRequest describes one in-flight transition.
// It is owned by the orchestrator for the duration of the transition.
type TransitionRequest struct {
	// ID correlates lifecycle events of the same transition.
	ID string

	// Identifier is the target scene entry.
	Identifier string

	// Parameters is the optional record merged into the parameter store before the transition starts.
	Parameters ParameterSource

	// RetainCurrent keeps every currently loaded unit resident.
	RetainCurrent bool

	// Overwrite allows the parameter merge to replace existing keys.
	Overwrite bool

	// OnFinished is invoked once with nil on commit, or with the mid-sequence failure.
	OnFinished func(error)
}

// ParameterSource is the view of a parameter record the domain needs: its type name and its data.
// It is implemented by params.Record.
type ParameterSource interface {
	TypeName() string
	Snapshot() map[string]any
}
