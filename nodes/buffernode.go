package nodes

import (
	"sync"

	"github.com/zaynotley/sonicgraph/buffer"
	"github.com/zaynotley/sonicgraph/graph"
)

// TaskEnqueuer is the subset of *sim.Simulation a node needs to schedule
// work outside the mix lock (buffer-end callbacks, crossfade completion).
// Declared here rather than importing sim directly so package nodes stays
// usable against any owner that satisfies it.
type TaskEnqueuer interface {
	EnqueueTask(fn func())
}

// BufferNode streams PCM from a Buffer with a fractional read position,
// looping, and rate control.
type BufferNode struct {
	*graph.Node

	owner    TaskEnqueuer
	sr       float64
	channels int

	mu      sync.Mutex
	buf     *buffer.Buffer
	onEnd   func()
	ended   bool // true once this cessation's end task has already been enqueued
}

// NewBufferNode constructs a player with the given fixed output channel
// count, bound to owner for task scheduling and srHz for position-to-sample
// conversion.
func NewBufferNode(owner TaskEnqueuer, srHz float64, blockSize, channels int) *BufferNode {
	b := &BufferNode{owner: owner, sr: srHz, channels: channels}
	b.Node = graph.New("buffer", blockSize, b)
	b.Props.Declare("buffer", propBuffer(nil), rangeNone())
	b.Props.Declare("position", propDouble(0), rangeNone())
	b.Props.Declare("rate", propDouble(1), rangeNone())
	b.Props.Declare("looping", propBool(false), rangeBool())
	b.Props.Declare("ended_count", propInt(0), rangeNone())
	b.AppendOutputConnection(0, channels)
	return b
}

// SetBuffer installs buf as the playback source (nil silences the node) and
// resets position to 0.
func (b *BufferNode) SetBuffer(buf *buffer.Buffer) {
	b.mu.Lock()
	b.buf = buf
	b.mu.Unlock()
	_ = b.Props.SetDouble("position", 0)
	b.ended = false
}

// SetEndCallback installs fn to run (via owner.EnqueueTask, outside the mix
// lock) each time ended_count increments.
func (b *BufferNode) SetEndCallback(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onEnd = fn
}

func (b *BufferNode) Process(n *graph.Node) {
	out := n.OutputChannels(0)
	bs := n.BlockSize()

	b.mu.Lock()
	buf := b.buf
	b.mu.Unlock()

	if buf == nil || buf.Frames() == 0 {
		for ch := range out {
			for i := range out[ch] {
				out[ch][i] = 0
			}
		}
		return
	}

	rate, _ := b.Props.GetDouble("rate")
	posSeconds, _ := b.Props.GetDouble("position")
	looping, _ := b.Props.GetInt("looping")

	pos := posSeconds * buf.SampleRate()
	frames := buf.Frames()
	srcCh := buf.Channels()
	step := rate * buf.SampleRate() / b.sr

	for i := 0; i < bs; i++ {
		if pos >= float64(frames) {
			if looping != 0 {
				pos -= float64(frames)
				b.bumpEndedCount()
			} else {
				for ch := range out {
					out[ch][i] = 0
				}
				if !b.ended {
					b.ended = true
					b.bumpEndedCount()
				}
				continue
			}
		}
		i0 := int(pos)
		i1 := i0 + 1
		if i1 >= frames {
			if looping != 0 {
				i1 = 0
			} else {
				i1 = frames - 1
			}
		}
		frac := float32(pos - float64(i0))
		for ch := 0; ch < b.channels; ch++ {
			if ch >= srcCh {
				out[ch][i] = 0
				continue
			}
			a := buf.Channel(ch)[i0]
			c := buf.Channel(ch)[i1]
			out[ch][i] = a + (c-a)*frac
		}
		pos += step
	}
	_ = b.Props.SetDouble("position", pos/buf.SampleRate())
}

func (b *BufferNode) bumpEndedCount() {
	cur, _ := b.Props.GetInt("ended_count")
	_ = b.Props.SetInt("ended_count", cur+1)
	b.mu.Lock()
	cb := b.onEnd
	b.mu.Unlock()
	if cb != nil && b.owner != nil {
		b.owner.EnqueueTask(cb)
	}
}
