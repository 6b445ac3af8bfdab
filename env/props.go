package env

import "github.com/zaynotley/sonicgraph/prop"

func intProp(v int64) prop.Value    { return prop.Value{Kind: prop.KindInt, Int: v} }
func floatProp(v float32) prop.Value { return prop.Value{Kind: prop.KindFloat, Float: v} }

func float3Prop(x, y, z float32) prop.Value {
	return prop.Value{Kind: prop.KindFloat3, Float3: [3]float32{x, y, z}}
}

func float6Prop(a, b, c, d, e, f float32) prop.Value {
	return prop.Value{Kind: prop.KindFloat6, Float6: [6]float32{a, b, c, d, e, f}}
}

func enumRange(vals ...int64) prop.Range { return prop.Range{AllowedInts: vals} }
func noRange() prop.Range                { return prop.Range{} }
