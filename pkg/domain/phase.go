package domain

// BlendPhase is one of the four checkpoints surrounding the transition effect.
type BlendPhase string

const (
	PreShowBlend  BlendPhase = "pre_show_blend"
	PostShowBlend BlendPhase = "post_show_blend"
	PreHideBlend  BlendPhase = "pre_hide_blend"
	PostHideBlend BlendPhase = "post_hide_blend"
)

// BlendPhases lists the blend phases in the order they occur during a transition.
var BlendPhases = []BlendPhase{PreShowBlend, PostShowBlend, PreHideBlend, PostHideBlend}

// Valid reports whether p is a known blend phase.
func (p BlendPhase) Valid() bool {
	switch p {
	case PreShowBlend, PostShowBlend, PreHideBlend, PostHideBlend:
		return true
	}
	return false
}

// SwitchPhase is one of the two checkpoints surrounding the unit load/unload.
type SwitchPhase string

const (
	LoadScenes   SwitchPhase = "load_scenes"
	UnloadScenes SwitchPhase = "unload_scenes"
)

// Valid reports whether p is a known switch phase.
func (p SwitchPhase) Valid() bool {
	return p == LoadScenes || p == UnloadScenes
}

// LoadMode selects how the host loader brings a unit in.
type LoadMode string

const (
	// LoadExclusive replaces every resident unit with the loaded one.
	LoadExclusive LoadMode = "exclusive"
	// LoadAdditive loads the unit next to the resident ones.
	LoadAdditive LoadMode = "additive"
)

// BlendState is the state of the transition effect when the engine starts.
type BlendState string

const (
	BlendShown  BlendState = "shown"
	BlendHidden BlendState = "hidden"
)
