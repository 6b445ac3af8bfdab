package nodes

import (
	"github.com/zaynotley/sonicgraph/buffer"
	"github.com/zaynotley/sonicgraph/dsp"
	"github.com/zaynotley/sonicgraph/graph"
)

// ConvolverNode convolves a mono input against a user-supplied impulse
// response buffer using the FFT overlap-add path, falling back to silence
// until a response is set.
type ConvolverNode struct {
	*graph.Node
	conv *dsp.FftConvolver
}

// NewConvolver constructs a convolver node at the given block size.
func NewConvolver(blockSize int) *ConvolverNode {
	c := &ConvolverNode{conv: dsp.NewFftConvolver(blockSize)}
	c.Node = graph.New("convolver", blockSize, c)
	c.Props.Declare("response", propBuffer(nil), rangeNone())
	c.Props.SetPostChangedCallback("response", func() { c.onResponseChanged() })
	c.AppendInputConnection(0, 1)
	c.AppendOutputConnection(0, 1)
	return c
}

func (c *ConvolverNode) onResponseChanged() {
	v, _ := c.Props.GetBuffer("response")
	b, ok := v.(*buffer.Buffer)
	if !ok || b == nil || b.Frames() == 0 {
		c.conv.SetResponse(0, nil)
		return
	}
	c.conv.SetResponse(b.Frames(), b.Channel(0))
}

func (c *ConvolverNode) Process(n *graph.Node) {
	in := n.InputChannels(0)[0]
	out := n.OutputChannels(0)[0]
	c.conv.Convolve(in, out)
}
