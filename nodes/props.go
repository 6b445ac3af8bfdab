package nodes

import "github.com/zaynotley/sonicgraph/prop"

func propFloat(v float32) prop.Value  { return prop.Value{Kind: prop.KindFloat, Float: v} }
func propDouble(v float64) prop.Value { return prop.Value{Kind: prop.KindDouble, Double: v} }
func propInt(v int64) prop.Value      { return prop.Value{Kind: prop.KindInt, Int: v} }
func propBool(v bool) prop.Value {
	if v {
		return propInt(1)
	}
	return propInt(0)
}
func propBuffer(b any) prop.Value { return prop.Value{Kind: prop.KindBuffer, Buffer: b} }

func rangeFloat(min, max float64) prop.Range { return prop.Range{HasRange: true, Min: min, Max: max} }
func rangeDouble(min, max float64) prop.Range {
	return prop.Range{HasRange: true, Min: min, Max: max}
}
func rangeBool() prop.Range { return prop.Range{AllowedInts: []int64{0, 1}} }
func rangeEnum(vals ...int64) prop.Range { return prop.Range{AllowedInts: vals} }
func rangeNone() prop.Range { return prop.Range{} }

// mustGetInt reads an Int property from within a post-change callback,
// where the property is known to exist and the map is already mid-Set (so
// ignoring the error is safe: a missing tag here is a constructor bug, not
// a runtime condition).
func mustGetInt(m *prop.Map, tag prop.Tag) int64 {
	v, _ := m.GetInt(tag)
	return v
}
