package nodes

import (
	"github.com/zaynotley/sonicgraph/dsp"
	"github.com/zaynotley/sonicgraph/graph"
)

// lastEditedDelay tracks which of "delay"/"delay_samples" was written most
// recently, so Process applies exactly the one the caller meant even if
// both were set within the same block.
type lastEditedDelay int

const (
	lastEditedNone lastEditedDelay = iota
	lastEditedSeconds
	lastEditedSamples
)

// CrossfadingDelayNode wires dsp.CrossfadingDelayLine per channel into the
// graph, keeping the "delay" (seconds) and "delay_samples" (int) properties
// in sync without ping-pong via a guard flag. The line mutation itself is
// deferred to Process: a property post-change callback only records which
// property was last edited, and Process applies that one edit once per
// block before running any samples through the lines.
type CrossfadingDelayNode struct {
	*graph.Node

	sr       float64
	channels int
	lines    []*dsp.CrossfadingDelayLine

	syncing    bool // true while a callback-triggered write is in flight
	lastEdited lastEditedDelay
}

// NewCrossfadingDelayNode constructs a per-channel delay line bank with the
// given max delay in seconds.
func NewCrossfadingDelayNode(srHz float64, blockSize, channels int, maxDelay float64) *CrossfadingDelayNode {
	d := &CrossfadingDelayNode{sr: srHz, channels: channels}
	d.Node = graph.New("crossfading_delay", blockSize, d)
	for i := 0; i < channels; i++ {
		d.lines = append(d.lines, dsp.NewCrossfadingDelayLine(maxDelay, srHz))
	}
	d.Props.Declare("delay", propDouble(0), rangeDouble(0, maxDelay))
	d.Props.Declare("delay_samples", propInt(0), rangeEnum())
	d.Props.Declare("interpolation_time", propDouble(0.001), rangeDouble(0, 10))
	d.Props.Declare("feedback", propFloat(0), rangeFloat(-1, 1))

	d.Props.SetPostChangedCallback("delay", func() { d.onDelayChanged() })
	d.Props.SetPostChangedCallback("delay_samples", func() { d.onDelaySamplesChanged() })
	d.Props.SetPostChangedCallback("interpolation_time", func() { d.onInterpolationChanged() })
	d.onInterpolationChanged()

	d.AppendInputConnection(0, channels)
	d.AppendOutputConnection(0, channels)
	return d
}

func (d *CrossfadingDelayNode) onDelayChanged() {
	if d.syncing {
		return
	}
	sec, _ := d.Props.GetDouble("delay")
	d.syncing = true
	_ = d.Props.SetInt("delay_samples", int64(sec*d.sr+0.5))
	d.syncing = false
	d.lastEdited = lastEditedSeconds
}

func (d *CrossfadingDelayNode) onDelaySamplesChanged() {
	if d.syncing {
		return
	}
	samples, _ := d.Props.GetInt("delay_samples")
	d.syncing = true
	_ = d.Props.SetDouble("delay", float64(samples)/d.sr)
	d.syncing = false
	d.lastEdited = lastEditedSamples
}

// applyPendingDelay applies the most-recently-set of "delay"/"delay_samples"
// to every line exactly once, then clears the pending edit. Called from
// Process so that several property writes within one block only restart
// the crossfade once, not once per write.
func (d *CrossfadingDelayNode) applyPendingDelay() {
	switch d.lastEdited {
	case lastEditedSeconds:
		sec, _ := d.Props.GetDouble("delay")
		for _, l := range d.lines {
			l.SetDelay(sec)
		}
	case lastEditedSamples:
		samples, _ := d.Props.GetInt("delay_samples")
		for _, l := range d.lines {
			l.SetDelayInSamples(int(samples))
		}
	default:
		return
	}
	d.lastEdited = lastEditedNone
}

func (d *CrossfadingDelayNode) onInterpolationChanged() {
	t, _ := d.Props.GetDouble("interpolation_time")
	for _, l := range d.lines {
		l.SetInterpolationTime(t)
	}
}

func (d *CrossfadingDelayNode) Process(n *graph.Node) {
	d.applyPendingDelay()
	feedback, _ := d.Props.GetFloat("feedback")
	in := n.InputChannels(0)
	out := n.OutputChannels(0)
	bs := n.BlockSize()

	if feedback == 0 {
		for ch := 0; ch < d.channels; ch++ {
			d.lines[ch].ProcessBuffer(bs, in[ch], out[ch])
		}
		return
	}
	for ch := 0; ch < d.channels; ch++ {
		line := d.lines[ch]
		src := in[ch]
		dst := out[ch]
		for i := 0; i < bs; i++ {
			s := line.ComputeSample()
			dst[i] = s
			line.Advance(src[i] + s*feedback)
		}
	}
}
