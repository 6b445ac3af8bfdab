package prop

import "testing"

func TestRangeClampsFloat(t *testing.T) {
	m := NewMap()
	m.Declare("gain", Value{Kind: KindFloat, Float: 1}, Range{HasRange: true, Min: 0, Max: 1})
	if err := m.SetFloat("gain", 5); err != nil {
		t.Fatal(err)
	}
	v, _ := m.GetFloat("gain")
	if v != 1 {
		t.Fatalf("expected clamp to 1, got %v", v)
	}
}

func TestEnumOutOfRangeErrors(t *testing.T) {
	m := NewMap()
	m.Declare("strategy", Value{Kind: KindInt, Int: 0}, Range{AllowedInts: []int64{0, 1, 2}})
	if err := m.SetInt("strategy", 9); err == nil {
		t.Fatal("expected error for unrecognized enum value")
	}
}

func TestForwardMirrorsAndBlocksWrite(t *testing.T) {
	a := NewMap()
	b := NewMap()
	a.Declare("x", Value{Kind: KindFloat}, Range{})
	b.Declare("y", Value{Kind: KindFloat}, Range{})
	if err := b.SetFloat("y", 3); err != nil {
		t.Fatal(err)
	}
	if err := a.Forward("x", b, "y"); err != nil {
		t.Fatal(err)
	}
	v, _ := a.GetFloat("x")
	if v != 3 {
		t.Fatalf("forwarded read wrong: %v", v)
	}
	if err := b.SetFloat("y", 4); err != nil {
		t.Fatal(err)
	}
	v, _ = a.GetFloat("x")
	if v != 4 {
		t.Fatalf("forwarded read did not track update: %v", v)
	}
	if err := a.SetFloat("x", 10); err == nil {
		t.Fatal("expected write to forwarded property to fail")
	}
}

func TestModifiedFlagClearsAtTickBoundary(t *testing.T) {
	m := NewMap()
	m.Declare("v", Value{Kind: KindInt}, Range{})
	if m.WereModified("v") {
		t.Fatal("should not be modified initially")
	}
	if err := m.SetInt("v", 1); err != nil {
		t.Fatal(err)
	}
	if !m.WereModified("v") {
		t.Fatal("expected modified after set")
	}
	m.ClearModified()
	if m.WereModified("v") {
		t.Fatal("expected modified cleared at tick boundary")
	}
}

func TestPostChangeCallback(t *testing.T) {
	m := NewMap()
	m.Declare("v", Value{Kind: KindInt}, Range{})
	fired := 0
	if err := m.SetPostChangedCallback("v", func() { fired++ }); err != nil {
		t.Fatal(err)
	}
	_ = m.SetInt("v", 1)
	_ = m.SetInt("v", 2)
	if fired != 2 {
		t.Fatalf("expected callback to fire twice, got %d", fired)
	}
}
