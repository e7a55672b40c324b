package schema

import "strings"

// Registry is the insertion-ordered set of declared enum types, keyed by
// case-folded (upper) name. Registration conflicts accumulate rather than
// abort, so a caller sees every problem in one pass.
type Registry struct {
	names  []string
	values map[string][]string
	errs   []*Error
}

func NewRegistry() *Registry {
	return &Registry{values: map[string][]string{}}
}

// Register adds one enum declaration.
//
// Same name with the same ordered values is a no-op. Same name with different
// values is EnumRedefined. A different name carrying an identical ordered
// value list is EnumDuplicateValues.
func (r *Registry) Register(def EnumDef) {
	name := strings.ToUpper(strings.TrimSpace(def.Name))
	if name == "" {
		r.errs = append(r.errs, EnumErrf(EnumRedefined, def.Name, "enum name is empty"))
		return
	}
	if existing, ok := r.values[name]; ok {
		if sameValues(existing, def.Values) {
			return
		}
		r.errs = append(r.errs, EnumErrf(EnumRedefined, name,
			"conflicting value lists [%s] and [%s]",
			strings.Join(existing, ","), strings.Join(def.Values, ",")))
		return
	}
	for _, other := range r.names {
		if sameValues(r.values[other], def.Values) {
			r.errs = append(r.errs, EnumErrf(EnumDuplicateValues, name,
				"value list duplicates enum %s", other))
			return
		}
	}
	vals := make([]string, len(def.Values))
	copy(vals, def.Values)
	r.names = append(r.names, name)
	r.values[name] = vals
}

// Get returns the ordered value list for a case-folded name.
func (r *Registry) Get(name string) ([]string, bool) {
	v, ok := r.values[strings.ToUpper(name)]
	return v, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.values[strings.ToUpper(name)]
	return ok
}

// All returns the registered enums in insertion order.
func (r *Registry) All() []EnumDef {
	defs := make([]EnumDef, 0, len(r.names))
	for _, n := range r.names {
		defs = append(defs, EnumDef{Name: n, Values: r.values[n]})
	}
	return defs
}

// Errors returns accumulated registration conflicts.
func (r *Registry) Errors() []*Error { return r.errs }

func sameValues(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
