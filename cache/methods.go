package cache

// Methods is the set of API methods whose responses may be cached.
// Only read-only methods belong here; mutating calls must always reach
// the platform.
type Methods map[string]struct{}

// NewMethods builds a set from method names.
func NewMethods(names ...string) Methods {
	set := make(Methods, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// Contains reports whether method is cacheable.
func (m Methods) Contains(method string) bool {
	_, ok := m[method]
	return ok
}
