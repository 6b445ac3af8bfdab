package nodes

import (
	"github.com/zaynotley/sonicgraph/graph"
	"github.com/zaynotley/sonicgraph/hrtf"
)

// Strategy selects which underlying panning implementation a MultipannerNode
// dispatches to.
type Strategy int64

const (
	StrategyStereo Strategy = iota
	StrategySurround40
	StrategySurround51
	StrategySurround71
	StrategyHRTF
	StrategyDelegate
)

func strategyChannels(s Strategy) int {
	switch s {
	case StrategyStereo:
		return 2
	case StrategySurround40:
		return 4
	case StrategySurround51:
		return 6
	case StrategySurround71:
		return 8
	default:
		return 2
	}
}

// MultipannerNode dispatches azimuth/elevation/distance/mul writes to
// whichever of AmplitudePanner or HrtfPanner its "strategy" property
// selects. "Delegate" is resolved by the owning environment before this
// node's strategy is ever set to it; MultipannerNode itself never sees
// StrategyDelegate as a live value.
type MultipannerNode struct {
	*graph.Node
	blockSize int
	hrtfData  *hrtf.Data

	amplitude map[Strategy]*AmplitudePanner
	hrtfPan   *HrtfPanner
	active    Strategy
}

// NewMultipanner constructs a multipanner able to switch among the
// amplitude-panned surround layouts and, if hrtfData is non-nil, HRTF.
func NewMultipanner(blockSize int, hrtfData *hrtf.Data) *MultipannerNode {
	m := &MultipannerNode{blockSize: blockSize, hrtfData: hrtfData, amplitude: make(map[Strategy]*AmplitudePanner)}
	m.Node = graph.New("multipanner", blockSize, m)
	m.Props.Declare("strategy", propInt(int64(StrategyStereo)),
		rangeEnum(int64(StrategyStereo), int64(StrategySurround40), int64(StrategySurround51), int64(StrategySurround71), int64(StrategyHRTF)))
	m.Props.Declare("azimuth", propFloat(0), rangeFloat(-180, 180))
	m.Props.Declare("elevation", propFloat(0), rangeFloat(-90, 90))
	m.Props.Declare("distance", propFloat(1), rangeFloat(0, math32Max))
	m.Props.Declare("mul", propFloat(1), rangeFloat(0, 64))

	m.AppendInputConnection(0, 1)
	m.AppendOutputConnection(0, strategyChannels(StrategyStereo))
	m.Props.SetPostChangedCallback("strategy", func() { m.reconfigureOutput() })
	for _, s := range []Strategy{StrategyStereo, StrategySurround40, StrategySurround51, StrategySurround71} {
		m.amplitude[s] = NewAmplitudePanner(blockSize, strategyChannels(s))
	}
	if hrtfData != nil {
		m.hrtfPan = NewHrtfPanner(blockSize, hrtfData, true)
	}
	m.active = StrategyStereo
	return m
}

const math32Max = 1e9

// reconfigureOutput grows output port 0 to match the channel width the
// newly selected strategy needs (HRTF and stereo both want 2; surround
// layouts want more). Output buffers only ever grow, never shrink, so a
// later switch back to a narrower layout just leaves the extra channels
// unused rather than reallocating.
func (m *MultipannerNode) reconfigureOutput() {
	s := Strategy(mustGetInt(m.Props, "strategy"))
	channels := 2
	if s != StrategyHRTF {
		channels = strategyChannels(s)
	}
	_ = m.ReconfigureOutputPort(0, 0, channels)
}

// Reset clears HRTF convolution history, if this multipanner has an HRTF
// sub-panner. A no-op for pure amplitude-panned strategies.
func (m *MultipannerNode) Reset() {
	if m.hrtfPan != nil {
		m.hrtfPan.Reset()
	}
}

func (m *MultipannerNode) Process(n *graph.Node) {
	strategy, _ := m.Props.GetInt("strategy")
	az, _ := m.Props.GetFloat("azimuth")
	el, _ := m.Props.GetFloat("elevation")
	mul, _ := m.Props.GetFloat("mul")
	in := n.InputChannels(0)[0]

	s := Strategy(strategy)
	if s == StrategyHRTF && m.hrtfPan != nil {
		if s != m.active {
			m.hrtfPan.Reset()
		}
		m.active = s
		_ = m.hrtfPan.Props.SetFloat("azimuth", az)
		_ = m.hrtfPan.Props.SetFloat("elevation", el)
		_ = m.hrtfPan.Props.SetFloat("mul", mul)
		// Process directly rather than RunProcess: hrtfPan has no incoming
		// graph connection of its own, and RunProcess's gatherInputs would
		// zero the input we just copied in before Process ever saw it.
		copy(m.hrtfPan.InputChannels(0)[0], in)
		m.hrtfPan.Process(m.hrtfPan.Node)
		out := m.hrtfPan.OutputChannels(0)
		dst := n.OutputChannels(0)
		for ch := 0; ch < len(dst) && ch < 2; ch++ {
			copy(dst[ch], out[ch])
		}
		return
	}

	ap, ok := m.amplitude[s]
	if !ok {
		ap = m.amplitude[StrategyStereo]
	}
	m.active = s
	_ = ap.Props.SetFloat("azimuth", az)
	_ = ap.Props.SetFloat("mul", mul)
	// Same reasoning as the HRTF branch above: Process directly, skipping
	// RunProcess's gatherInputs so it doesn't zero what we just copied in.
	copy(ap.InputChannels(0)[0], in)
	ap.Process(ap.Node)
	out := ap.OutputChannels(0)
	dst := n.OutputChannels(0)
	for ch := 0; ch < len(dst) && ch < len(out); ch++ {
		copy(dst[ch], out[ch])
	}
}
