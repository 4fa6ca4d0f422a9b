package state

import (
	"encoding/json"
	"sort"
)

// Flags is a set of narrative facts. Membership is all that matters;
// it is serialised as a sorted array.
type Flags map[string]struct{}

// NewFlags returns a set holding names.
func NewFlags(names ...string) Flags {
	f := make(Flags, len(names))
	for _, n := range names {
		f[n] = struct{}{}
	}
	return f
}

// HasFlag implements conditionals.FlagSet.
func (f Flags) HasFlag(name string) bool {
	_, ok := f[name]
	return ok
}

// Add inserts names; present names are left as they are.
func (f *Flags) Add(names ...string) {
	if *f == nil {
		*f = make(Flags, len(names))
	}
	for _, n := range names {
		(*f)[n] = struct{}{}
	}
}

// Remove deletes names; absent names are ignored.
func (f Flags) Remove(names ...string) {
	for _, n := range names {
		delete(f, n)
	}
}

// Clone returns an independent copy. The copy of a nil set is empty, not nil.
func (f Flags) Clone() Flags {
	out := make(Flags, len(f))
	for n := range f {
		out[n] = struct{}{}
	}
	return out
}

// Sorted returns the members in lexical order.
func (f Flags) Sorted() []string {
	out := make([]string, 0, len(f))
	for n := range f {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (f Flags) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Sorted())
}

func (f *Flags) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*f = NewFlags(names...)
	return nil
}
