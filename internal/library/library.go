package library

// Config is one selector-scoped block of a library manifest.
type Config struct {
	Selector Selector
	State    MergedState
}

// Library is a named external dependency registered from a manifest.
type Library struct {
	Name string
	// Root is the directory paths in the manifest resolve against: the
	// manifest directory, or the external location when one is named.
	Root string
	// Dir is the directory holding the manifest.
	Dir string
	// External is the environment variable naming the external location, if any.
	External string
	// WellDefined is false when the external location could not be found;
	// such a library resolves but contributes no paths.
	WellDefined bool
	Configs     []Config
}

// EffectiveState merges the states of every Config whose selector matches
// platform and config, in manifest order.
func (l *Library) EffectiveState(platform, config string) MergedState {
	var out MergedState
	if l == nil {
		return out
	}
	for _, c := range l.Configs {
		if c.Selector.Matches(platform, config) {
			out.Merge(c.State)
		}
	}
	return out
}
