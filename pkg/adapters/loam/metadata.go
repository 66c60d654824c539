package loam

// SceneMetadata is the frontmatter of a scene document.
// It uses "mapstructure" tags to match the YAML/JSON keys authors write.
type SceneMetadata struct {
	ID string `json:"id" mapstructure:"id"`

	// Units accepts plain names or {name: X} objects.
	Units []any `json:"units" mapstructure:"units"`

	RetainAlways  bool   `json:"retain_always" mapstructure:"retain_always"`
	ParameterType string `json:"parameter_type" mapstructure:"parameter_type"`

	// AllowNull defaults to true when no parameter type is declared.
	AllowNull *bool `json:"parameter_allow_null" mapstructure:"parameter_allow_null"`

	// Defaults seeds the initial data of ParameterType.
	Defaults map[string]any `json:"defaults" mapstructure:"defaults"`

	Description string `json:"description" mapstructure:"description"`
}

type unitSpec struct {
	Name string `mapstructure:"name"`
}
