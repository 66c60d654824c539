package domain

// SceneEntry is one authorable transition target.
// Entries are authored offline and read-only at runtime.
type SceneEntry struct {
	// Identifier is the unique key of the entry.
	Identifier string `json:"identifier" yaml:"identifier" mapstructure:"identifier"`

	// Units is the ordered list of content units. The first unit becomes the active unit.
	Units []string `json:"units" yaml:"units" mapstructure:"units"`

	// RetainAlways marks the units of this entry as never unloaded, even when superseded.
	RetainAlways bool `json:"retain_always,omitempty" yaml:"retain_always,omitempty" mapstructure:"retain_always"`

	// ParameterType is the type name of the parameter record the entry accepts.
	// An empty value declares no parameters: only transitions without a record are accepted.
	ParameterType string `json:"parameter_type,omitempty" yaml:"parameter_type,omitempty" mapstructure:"parameter_type"`

	// ParameterAllowNull allows transitions without a parameter record.
	ParameterAllowNull bool `json:"parameter_allow_null" yaml:"parameter_allow_null" mapstructure:"parameter_allow_null"`

	// Description is free text shown by authoring tools.
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

// PrimaryUnit returns the unit that becomes active once the entry is loaded.
func (e SceneEntry) PrimaryUnit() string {
	if len(e.Units) == 0 {
		return ""
	}
	return e.Units[0]
}

// AcceptsType reports whether a record of the given type name may be passed to this entry.
// The match is exact; an untyped entry accepts no record at all.
func (e SceneEntry) AcceptsType(typeName string) bool {
	return e.ParameterType != "" && e.ParameterType == typeName
}
