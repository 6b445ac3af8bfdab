// Package nodes implements the concrete node types that sit on top of
// graph.Node: gain, buffer player, crossfading delay, crossfader, panners,
// and convolver. Each follows the same shape as the
// teacher's SoundChip channel model — a property-backed struct embedding
// *graph.Node, constructed by a factory bound to a simulation-like owner —
// generalized from one fixed chip to many interchangeable node kinds.
package nodes

import "github.com/zaynotley/sonicgraph/graph"

// GainNode scales every input channel by the "mul" property and writes the
// result to the matching output channel.
type GainNode struct {
	*graph.Node
	channels int
}

// NewGain constructs a gain node with the given channel count and unity
// default gain.
func NewGain(blockSize, channels int) *GainNode {
	g := &GainNode{channels: channels}
	g.Node = graph.New("gain", blockSize, g)
	g.Props.Declare("mul", propFloat(1), rangeFloat(0, 64))
	g.AppendInputConnection(0, channels)
	g.AppendOutputConnection(0, channels)
	return g
}

func (g *GainNode) Process(n *graph.Node) {
	mul, _ := g.Props.GetFloat("mul")
	in := n.InputChannels(0)
	out := n.OutputChannels(0)
	for ch := 0; ch < g.channels; ch++ {
		src := in[ch]
		dst := out[ch]
		for i := range dst {
			dst[i] = src[i] * mul
		}
	}
}
