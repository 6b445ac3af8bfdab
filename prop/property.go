// Package prop implements the typed, named property system shared by every
// node: a tagged variant with range clamping, per-tick modification
// tracking, one-way forwarding between nodes, and post-change callbacks.
// Follows the register/state idiom of audio_chip.go's constant-tagged
// control registers with range-checked setters, adapted into a reusable,
// dynamically-typed property bag instead of fixed memory addresses.
package prop

import (
	"sync"

	"github.com/zaynotley/sonicgraph/sonicerr"
)

// Kind identifies the tagged variant stored by a Property.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindDouble
	KindFloat3
	KindFloat6
	KindString
	KindBuffer
)

// Tag names a property on a node, e.g. "position", "gain".
type Tag string

// Value is the tagged variant. Only the field matching Kind is meaningful.
type Value struct {
	Kind    Kind
	Int     int64
	Float   float32
	Double  float64
	Float3  [3]float32
	Float6  [6]float32
	String  string
	Buffer  any // handle to a *buffer.Buffer; typed any to avoid an import cycle
}

// Range constrains a scalar (Int/Float/Double) property. Enum-like Int
// properties instead supply AllowedInts; out-of-range on those is an error,
// not a clamp.
type Range struct {
	HasRange    bool
	Min, Max    float64
	AllowedInts []int64 // if non-nil, Int values must be one of these
}

func (r Range) allowedInt(v int64) bool {
	if r.AllowedInts == nil {
		return true
	}
	for _, a := range r.AllowedInts {
		if a == v {
			return true
		}
	}
	return false
}

// ChangeCallback runs synchronously after a successful Set.
type ChangeCallback func()

type forwardTarget struct {
	node *Map
	tag  Tag
}

type entry struct {
	value      Value
	def        Value
	rng        Range
	modified   bool
	callback   ChangeCallback
	forward    *forwardTarget // if set, reads mirror forward.node.Get(forward.tag); writes error
}

// Map is the property table owned by one node. It is safe for concurrent
// use; callers normally already hold the owning Simulation's mix lock, but
// Map has its own mutex so unit tests can exercise it standalone.
type Map struct {
	mu      sync.Mutex
	entries map[Tag]*entry
}

// NewMap returns an empty property map.
func NewMap() *Map {
	return &Map{entries: make(map[Tag]*entry)}
}

// Declare registers a property with its default value and optional range.
// Declare is not an error boundary call: it is used at node-construction
// time before the node is visible to user code.
func (m *Map) Declare(tag Tag, def Value, rng Range) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[tag] = &entry{value: def, def: def, rng: rng}
}

func (m *Map) get(tag Tag) (*entry, error) {
	e, ok := m.entries[tag]
	if !ok {
		return nil, sonicerr.New(sonicerr.TYPE_MISMATCH, "no such property %q", tag)
	}
	return e, nil
}

// Get returns the current value of tag, resolving forwarding if present.
func (m *Map) Get(tag Tag) (Value, error) {
	m.mu.Lock()
	e, err := m.get(tag)
	if err != nil {
		m.mu.Unlock()
		return Value{}, err
	}
	fwd := e.forward
	m.mu.Unlock()
	if fwd != nil {
		return fwd.node.Get(fwd.tag)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return e.value, nil
}

// Set assigns a new value to tag. Scalar ranges clamp; enum Int ranges and
// Kind mismatches are errors. Writing a forwarded property is an error (the
// mirror is one-way). On success, the post-change callback runs
// synchronously and the modified flag is set for this tick.
func (m *Map) Set(tag Tag, v Value) error {
	m.mu.Lock()
	e, err := m.get(tag)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if e.forward != nil {
		m.mu.Unlock()
		return sonicerr.New(sonicerr.TYPE_MISMATCH, "property %q is forwarded and read-only", tag)
	}
	if v.Kind != e.value.Kind {
		m.mu.Unlock()
		return sonicerr.New(sonicerr.TYPE_MISMATCH, "property %q expects kind %v, got %v", tag, e.value.Kind, v.Kind)
	}
	clamped, err := clamp(e.rng, v)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	e.value = clamped
	e.modified = true
	cb := e.callback
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
	return nil
}

func clamp(r Range, v Value) (Value, error) {
	switch v.Kind {
	case KindInt:
		if !r.allowedInt(v.Int) {
			return Value{}, sonicerr.New(sonicerr.RANGE, "value %d is not a recognized enum member", v.Int)
		}
		if r.HasRange {
			f := float64(v.Int)
			if f < r.Min {
				v.Int = int64(r.Min)
			} else if f > r.Max {
				v.Int = int64(r.Max)
			}
		}
	case KindFloat:
		if r.HasRange {
			if float64(v.Float) < r.Min {
				v.Float = float32(r.Min)
			} else if float64(v.Float) > r.Max {
				v.Float = float32(r.Max)
			}
		}
	case KindDouble:
		if r.HasRange {
			if v.Double < r.Min {
				v.Double = r.Min
			} else if v.Double > r.Max {
				v.Double = r.Max
			}
		}
	}
	return v, nil
}

// SetPostChangedCallback installs fn to run synchronously after every
// successful Set on tag.
func (m *Map) SetPostChangedCallback(tag Tag, fn ChangeCallback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.get(tag)
	if err != nil {
		return err
	}
	e.callback = fn
	return nil
}

// Forward redirects reads of localTag to other.Get(otherTag). Writes to
// localTag subsequently fail with TYPE_MISMATCH: forwarding is a one-way
// mirror.
func (m *Map) Forward(localTag Tag, other *Map, otherTag Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.get(localTag)
	if err != nil {
		return err
	}
	if _, err := other.get(otherTag); err != nil {
		return sonicerr.New(sonicerr.RANGE, "forward target %q does not exist", otherTag)
	}
	e.forward = &forwardTarget{node: other, tag: otherTag}
	return nil
}

// WereModified reports whether any of the given tags were Set since the
// previous call to ClearModified.
func (m *Map) WereModified(tags ...Tag) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tags {
		if e, ok := m.entries[t]; ok && e.modified {
			return true
		}
	}
	return false
}

// ClearModified clears every modified flag. Called by the scheduler at the
// start of each block, after process() for the previous block has observed
// them — "a property marked modified is cleared at the start of the next
// block after observation."
func (m *Map) ClearModified() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		e.modified = false
	}
}

// Reset restores every declared property to its default value.
func (m *Map) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		e.value = e.def
		e.modified = false
	}
}

// Convenience typed accessors, mirroring the public handle API's typed
// get/set surface (spec §6) at the Go level.

func (m *Map) GetInt(tag Tag) (int64, error) {
	v, err := m.Get(tag)
	return v.Int, err
}

func (m *Map) SetInt(tag Tag, i int64) error {
	return m.Set(tag, Value{Kind: KindInt, Int: i})
}

func (m *Map) GetFloat(tag Tag) (float32, error) {
	v, err := m.Get(tag)
	return v.Float, err
}

func (m *Map) SetFloat(tag Tag, f float32) error {
	return m.Set(tag, Value{Kind: KindFloat, Float: f})
}

func (m *Map) GetDouble(tag Tag) (float64, error) {
	v, err := m.Get(tag)
	return v.Double, err
}

func (m *Map) SetDouble(tag Tag, d float64) error {
	return m.Set(tag, Value{Kind: KindDouble, Double: d})
}

func (m *Map) GetFloat3(tag Tag) ([3]float32, error) {
	v, err := m.Get(tag)
	return v.Float3, err
}

func (m *Map) SetFloat3(tag Tag, x, y, z float32) error {
	return m.Set(tag, Value{Kind: KindFloat3, Float3: [3]float32{x, y, z}})
}

func (m *Map) GetFloat6(tag Tag) ([6]float32, error) {
	v, err := m.Get(tag)
	return v.Float6, err
}

func (m *Map) SetFloat6(tag Tag, vals [6]float32) error {
	return m.Set(tag, Value{Kind: KindFloat6, Float6: vals})
}

func (m *Map) GetString(tag Tag) (string, error) {
	v, err := m.Get(tag)
	return v.String, err
}

func (m *Map) SetString(tag Tag, s string) error {
	return m.Set(tag, Value{Kind: KindString, String: s})
}

func (m *Map) GetBuffer(tag Tag) (any, error) {
	v, err := m.Get(tag)
	return v.Buffer, err
}

func (m *Map) SetBuffer(tag Tag, b any) error {
	return m.Set(tag, Value{Kind: KindBuffer, Buffer: b})
}
