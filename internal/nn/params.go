package nn

import (
	"errors"
	"fmt"
	"iter"

	"github.com/gridcast/gridcast/internal/tensor"
)

// ErrStructureMismatch is returned when two parameter sets do not have the
// same names, order and shapes.
var ErrStructureMismatch = errors.New("parameter structure mismatch")

// Param is a named parameter array, for example "Conv_0/kernel".
type Param struct {
	Name  string
	Value *tensor.RawTensor
}

// Params is an ordered, immutable set of named parameter arrays.
//
// Params values are never modified in place: training produces new Params
// each step. The arrays are shared between a Params and values derived from
// it (Map, With) and must be treated as read-only by every holder.
//
// The zero value is an empty set.
type Params struct {
	entries []Param
	index   map[string]int
}

// NewParams builds a Params from entries, keeping their order.
// Names must be non-empty and unique.
func NewParams(entries ...Param) (Params, error) {
	p := Params{
		entries: make([]Param, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		if e.Name == "" {
			return Params{}, fmt.Errorf("params: entry %d has an empty name", i)
		}
		if e.Value == nil {
			return Params{}, fmt.Errorf("params: %q has no value", e.Name)
		}
		if _, dup := p.index[e.Name]; dup {
			return Params{}, fmt.Errorf("params: duplicate name %q", e.Name)
		}
		p.entries[i] = e
		p.index[e.Name] = i
	}
	return p, nil
}

// Len returns the number of parameter arrays.
func (p Params) Len() int {
	return len(p.entries)
}

// Names returns the parameter names in order.
func (p Params) Names() []string {
	names := make([]string, len(p.entries))
	for i, e := range p.entries {
		names[i] = e.Name
	}
	return names
}

// At returns the i-th entry.
func (p Params) At(i int) Param {
	return p.entries[i]
}

// Get returns the array stored under name.
func (p Params) Get(name string) (*tensor.RawTensor, bool) {
	i, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return p.entries[i].Value, true
}

// Must returns the array stored under name, panicking with a
// *tensor.ShapeError if it is absent. Modules call it from Forward.
func (p Params) Must(name string) *tensor.RawTensor {
	v, ok := p.Get(name)
	if !ok {
		tensor.Panicf("params", "missing parameter %q", name)
	}
	return v
}

// All iterates over entries in order.
func (p Params) All() iter.Seq2[string, *tensor.RawTensor] {
	return func(yield func(string, *tensor.RawTensor) bool) {
		for _, e := range p.entries {
			if !yield(e.Name, e.Value) {
				return
			}
		}
	}
}

// NumElements returns the total number of scalars across all arrays.
func (p Params) NumElements() int {
	n := 0
	for _, e := range p.entries {
		n += e.Value.NumElements()
	}
	return n
}

// Map returns a new Params with the same names and order, each value
// replaced by f(name, value).
func (p Params) Map(f func(name string, v *tensor.RawTensor) *tensor.RawTensor) Params {
	out := Params{entries: make([]Param, len(p.entries)), index: p.index}
	for i, e := range p.entries {
		out.entries[i] = Param{Name: e.Name, Value: f(e.Name, e.Value)}
	}
	return out
}

// Zip combines p with other entry by entry. Both must have the same
// structure.
func (p Params) Zip(other Params, f func(name string, a, b *tensor.RawTensor) *tensor.RawTensor) (Params, error) {
	if err := p.SameStructure(other); err != nil {
		return Params{}, err
	}
	out := Params{entries: make([]Param, len(p.entries)), index: p.index}
	for i, e := range p.entries {
		out.entries[i] = Param{Name: e.Name, Value: f(e.Name, e.Value, other.entries[i].Value)}
	}
	return out, nil
}

// ZerosLike returns a Params of the same structure filled with zeros.
func (p Params) ZerosLike() Params {
	return p.Map(func(_ string, v *tensor.RawTensor) *tensor.RawTensor {
		return tensor.MustRaw(v.Shape(), v.Device())
	})
}

// Clone returns a deep copy.
func (p Params) Clone() Params {
	return p.Map(func(_ string, v *tensor.RawTensor) *tensor.RawTensor {
		return v.Clone()
	})
}

// AllFinite reports the name of the first array holding a NaN or Inf.
func (p Params) AllFinite() (string, bool) {
	for _, e := range p.entries {
		if !e.Value.AllFinite() {
			return e.Name, false
		}
	}
	return "", true
}

// SameStructure checks that other has the same names, order and shapes.
func (p Params) SameStructure(other Params) error {
	if len(p.entries) != len(other.entries) {
		return fmt.Errorf("%w: %d arrays vs %d", ErrStructureMismatch, len(p.entries), len(other.entries))
	}
	for i, e := range p.entries {
		o := other.entries[i]
		if e.Name != o.Name {
			return fmt.Errorf("%w: entry %d is %q vs %q", ErrStructureMismatch, i, e.Name, o.Name)
		}
		if !e.Value.Shape().Equal(o.Value.Shape()) {
			return fmt.Errorf("%w: %q has shape %v vs %v", ErrStructureMismatch, e.Name, e.Value.Shape(), o.Value.Shape())
		}
	}
	return nil
}

// Matches checks p against the parameter specs a network declares.
func (p Params) Matches(specs []ParamSpec) error {
	if len(p.entries) != len(specs) {
		return fmt.Errorf("%w: got %d arrays, network declares %d", ErrStructureMismatch, len(p.entries), len(specs))
	}
	for i, s := range specs {
		e := p.entries[i]
		if e.Name != s.Name {
			return fmt.Errorf("%w: entry %d is %q, expected %q", ErrStructureMismatch, i, e.Name, s.Name)
		}
		if !e.Value.Shape().Equal(s.Shape) {
			return fmt.Errorf("%w: %q has shape %v, expected %v", ErrStructureMismatch, e.Name, e.Value.Shape(), s.Shape)
		}
	}
	return nil
}
