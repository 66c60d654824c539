package domain

import "time"

const (
	// DefaultReadyThreshold is the progress at which a unit counts as loaded but not yet activated.
	DefaultReadyThreshold = 0.9

	// DefaultTickInterval is the default cadence of the host loop (roughly one frame at 60Hz).
	DefaultTickInterval = 16 * time.Millisecond
)
