package nodes

import (
	"github.com/zaynotley/sonicgraph/dsp"
	"github.com/zaynotley/sonicgraph/graph"
	"github.com/zaynotley/sonicgraph/hrtf"
)

// HrtfPanner convolves a mono input with the left/right HRIRs selected by
// (azimuth, elevation), crossfading between consecutive selections over one
// block to suppress the click a hard filter swap would otherwise produce.
type HrtfPanner struct {
	*graph.Node
	data      *hrtf.Data
	left      *dsp.FftConvolver
	right     *dsp.FftConvolver
	prevLeft  *dsp.FftConvolver
	prevRight *dsp.FftConvolver
	hasPrev   bool
	bilinear  bool
}

// NewHrtfPanner constructs an HRTF panner over data, with block-rate
// resolution blockSize. Set bilinear to interpolate between grid points
// instead of snapping to the nearest measured direction.
func NewHrtfPanner(blockSize int, data *hrtf.Data, bilinear bool) *HrtfPanner {
	p := &HrtfPanner{
		data:      data,
		left:      dsp.NewFftConvolver(blockSize),
		right:     dsp.NewFftConvolver(blockSize),
		prevLeft:  dsp.NewFftConvolver(blockSize),
		prevRight: dsp.NewFftConvolver(blockSize),
		bilinear:  bilinear,
	}
	p.Node = graph.New("hrtf_panner", blockSize, p)
	p.Props.Declare("azimuth", propFloat(0), rangeFloat(-180, 180))
	p.Props.Declare("elevation", propFloat(0), rangeFloat(-90, 90))
	p.Props.Declare("mul", propFloat(1), rangeFloat(0, 64))
	p.AppendInputConnection(0, 1)
	p.AppendOutputConnection(0, 2)

	if data != nil {
		l, r := p.responsesFor(0, 0)
		p.left.SetResponse(len(l), l)
		p.right.SetResponse(len(r), r)
	}
	return p
}

// Reset clears convolver history so the next Process skips the crossfade,
// used when a source is re-seated onto this panner.
func (p *HrtfPanner) Reset() {
	p.left.Reset()
	p.right.Reset()
	p.prevLeft.Reset()
	p.prevRight.Reset()
	p.hasPrev = false
}

// responsesFor returns the (left, right) impulse responses for a direction.
// The dataset stores one response per grid direction: the left ear uses
// the response at azimuth and the right ear the mirrored response at
// -azimuth.
func (p *HrtfPanner) responsesFor(azimuthDeg, elevationDeg float64) ([]float32, []float32) {
	if p.bilinear {
		return p.data.Bilinear(azimuthDeg, elevationDeg), p.data.Bilinear(-azimuthDeg, elevationDeg)
	}
	return p.data.Nearest(azimuthDeg, elevationDeg), p.data.Nearest(-azimuthDeg, elevationDeg)
}

func (p *HrtfPanner) Process(n *graph.Node) {
	az, _ := p.Props.GetFloat("azimuth")
	el, _ := p.Props.GetFloat("elevation")
	mul, _ := p.Props.GetFloat("mul")
	in := n.InputChannels(0)[0]
	out := n.OutputChannels(0)
	bs := n.BlockSize()

	if p.data == nil {
		for ch := range out {
			for i := range out[ch] {
				out[ch][i] = 0
			}
		}
		return
	}

	l, r := p.responsesFor(float64(az), float64(el))
	p.left.SetResponse(len(l), l)
	p.right.SetResponse(len(r), r)

	left := make([]float32, bs)
	right := make([]float32, bs)
	p.left.Convolve(in, left)
	p.right.Convolve(in, right)

	if p.hasPrev {
		prevLeft := make([]float32, bs)
		prevRight := make([]float32, bs)
		p.prevLeft.Convolve(in, prevLeft)
		p.prevRight.Convolve(in, prevRight)
		for i := 0; i < bs; i++ {
			frac := float32(i) / float32(bs)
			out[0][i] = (prevLeft[i]*(1-frac) + left[i]*frac) * mul
			out[1][i] = (prevRight[i]*(1-frac) + right[i]*frac) * mul
		}
	} else {
		for i := 0; i < bs; i++ {
			out[0][i] = left[i] * mul
			out[1][i] = right[i] * mul
		}
	}

	p.prevLeft, p.left = p.left, p.prevLeft
	p.prevRight, p.right = p.right, p.prevRight
	p.hasPrev = true
}
