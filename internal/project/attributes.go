package project

import "slices"

// Attributes are the typed declaration keys of a project. Keys the generator
// does not interpret are kept in Extra so renderers can still read them.
type Attributes struct {
	App          bool
	DevOnly      bool
	EngineOnly   bool
	HasTests     bool
	Dependencies []string
	PublicLibs   []string
	PrivateLibs  []string
	Extra        Options
}

// Options is an ordered string multimap for open-ended declaration keys.
type Options map[string][]string

// Add appends values under key.
func (o Options) Add(key string, values ...string) {
	o[key] = append(o[key], values...)
}

// Get returns the values for key.
func (o Options) Get(key string) []string {
	return o[key]
}

// First returns the first value for key, or "" when absent.
func (o Options) First(key string) string {
	if v := o[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Has reports whether value was given for key.
func (o Options) Has(key, value string) bool {
	return slices.Contains(o[key], value)
}

// Keys returns the option keys in sorted order.
func (o Options) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
