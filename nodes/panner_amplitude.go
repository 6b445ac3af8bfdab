package nodes

import (
	"math"

	"github.com/zaynotley/sonicgraph/graph"
)

// standardAngles gives the azimuth, in degrees, of each output channel for
// a recognized layout.
var standardAngles = map[int][]float64{
	2: {-90, 90},
	4: {-45, 45, 135, -135},
	6: {-30, 30, 0, 0, -110, 110}, // L R C LFE Ls Rs; C/LFE take no pan energy
	8: {-30, 30, 0, 0, -110, 110, -150, 150},
}

// AmplitudePanner equal-power pans a mono input across a standard channel
// layout using the azimuth property.
type AmplitudePanner struct {
	*graph.Node
	channels int
	angles   []float64
}

// NewAmplitudePanner constructs a panner for one of the recognized output
// layouts {2,4,6,8}.
func NewAmplitudePanner(blockSize, channels int) *AmplitudePanner {
	p := &AmplitudePanner{channels: channels, angles: standardAngles[channels]}
	p.Node = graph.New("amplitude_panner", blockSize, p)
	p.Props.Declare("azimuth", propFloat(0), rangeFloat(-180, 180))
	p.Props.Declare("elevation", propFloat(0), rangeFloat(-90, 90))
	p.Props.Declare("mul", propFloat(1), rangeFloat(0, 64))
	p.AppendInputConnection(0, 1)
	p.AppendOutputConnection(0, channels)
	return p
}

func (p *AmplitudePanner) Process(n *graph.Node) {
	az, _ := p.Props.GetFloat("azimuth")
	mul, _ := p.Props.GetFloat("mul")
	in := n.InputChannels(0)[0]
	out := n.OutputChannels(0)

	gains := make([]float32, p.channels)
	if len(p.angles) != p.channels {
		// Unrecognized layout: broadcast equally, no directional panning.
		g := float32(1) / float32(p.channels)
		for ch := range gains {
			gains[ch] = g
		}
	} else {
		gains = equalPowerGains(p.angles, float64(az))
	}
	for ch := 0; ch < p.channels; ch++ {
		g := gains[ch] * mul
		dst := out[ch]
		for i, s := range in {
			dst[i] = s * g
		}
	}
}

// equalPowerGains pans az degrees between the two channel angles that
// bracket it, using an equal-power (sin/cos) crossfade; channels with no
// panning role (e.g. center/LFE in 5.1/7.1) are left silent.
func equalPowerGains(angles []float64, az float64) []float32 {
	gains := make([]float32, len(angles))
	lo, hi := -1, -1
	for i, a := range angles {
		if a == 0 && i > 1 {
			continue // center/LFE slots in surround layouts: no pan energy
		}
		if a <= az && (lo == -1 || a > angles[lo]) {
			lo = i
		}
		if a >= az && (hi == -1 || a < angles[hi]) {
			hi = i
		}
	}
	switch {
	case lo == -1 && hi == -1:
		return gains
	case lo == -1:
		gains[hi] = 1
		return gains
	case hi == -1:
		gains[lo] = 1
		return gains
	case lo == hi:
		gains[lo] = 1
		return gains
	}
	span := angles[hi] - angles[lo]
	if span == 0 {
		gains[lo] = 1
		return gains
	}
	frac := (az - angles[lo]) / span
	gains[lo] = float32(math.Cos(frac * math.Pi / 2))
	gains[hi] = float32(math.Sin(frac * math.Pi / 2))
	return gains
}
