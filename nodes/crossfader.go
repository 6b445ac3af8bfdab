package nodes

import (
	"github.com/zaynotley/sonicgraph/graph"
)

// CrossfaderNode selects among N multi-channel inputs, linearly fading
// between the current and target input over a configurable duration. A
// fade already in progress is interrupted and restarted from its current
// mix weight rather than reset to 0.
type CrossfaderNode struct {
	*graph.Node

	owner    TaskEnqueuer
	channels int
	inputs   int
	sr       float64

	current, target int
	weight          float64 // 0 = fully `current`, 1 = fully `target`
	step            float64 // weight delta applied per block; 0 when idle
	onDone          func()
}

// NewCrossfader constructs a crossfader with numInputs input ports of
// channels width each, starting fully selected on input 0.
func NewCrossfader(owner TaskEnqueuer, srHz float64, blockSize, channels, numInputs int) *CrossfaderNode {
	c := &CrossfaderNode{owner: owner, sr: srHz, channels: channels, inputs: numInputs}
	c.Node = graph.New("crossfader", blockSize, c)
	for i := 0; i < numInputs; i++ {
		c.AppendInputConnection(i*channels, channels)
	}
	c.AppendOutputConnection(0, channels)
	return c
}

// SetCompletionCallback installs fn to run (via owner.EnqueueTask) when a
// crossfade reaches weight 1.0.
func (c *CrossfaderNode) SetCompletionCallback(fn func()) { c.onDone = fn }

// Crossfade begins a linear transition to targetInput over duration
// seconds, interrupting any fade already in progress from its current mix
// weight rather than restarting at 0.
func (c *CrossfaderNode) Crossfade(duration float64, targetInput int) {
	if targetInput == c.current && c.step == 0 {
		return
	}
	blocks := duration * c.sr / float64(c.BlockSize())
	if blocks < 1 {
		blocks = 1
	}
	c.target = targetInput
	c.step = (1 - c.weight) / blocks
}

// FinishCrossfade snaps immediately to the target input.
func (c *CrossfaderNode) FinishCrossfade() {
	c.current = c.target
	c.weight = 0
	c.step = 0
}

func (c *CrossfaderNode) Process(n *graph.Node) {
	out := n.OutputChannels(0)
	curIn := n.InputChannels(c.current)
	tgtIn := n.InputChannels(c.target)
	bs := n.BlockSize()
	gC := float32(1 - c.weight)
	gT := float32(c.weight)
	for ch := 0; ch < c.channels; ch++ {
		dst := out[ch]
		a := curIn[ch]
		b := tgtIn[ch]
		for i := 0; i < bs; i++ {
			dst[i] = a[i]*gC + b[i]*gT
		}
	}

	if c.step == 0 {
		return
	}
	c.weight += c.step
	if c.weight >= 1 {
		c.weight = 0
		c.current = c.target
		c.step = 0
		if c.onDone != nil && c.owner != nil {
			cb := c.onDone
			c.owner.EnqueueTask(cb)
		}
	}
}
