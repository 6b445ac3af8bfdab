// Package dsp implements the pure, graph-unaware sample-array primitives:
// remix matrices, the crossfading delay line, block/FFT convolvers, and a
// static resampler. Nothing here knows about nodes, properties, or the
// scheduler.
package dsp

// RecognizedLayouts are the channel counts that carry a standard remix
// matrix. Anything else is mixed channel-for-channel with extra channels
// zeroed (upmix) or dropped (downmix).
var RecognizedLayouts = map[int]bool{1: true, 2: true, 4: true, 6: true, 8: true}

// RemixMatrix returns an (outChannels x inChannels) row-major gain matrix
// mapping a frame of `in` input channels onto `out` output channels for the
// recognized standard layouts {1,2,4,6,8}: applying the matrix to one frame
// produces `out[o] = sum_i M[o*in+i] * in[i]`.
func RemixMatrix(in, out int) []float32 {
	m := make([]float32, out*in)
	switch {
	case in == out:
		for i := 0; i < in; i++ {
			m[i*in+i] = 1
		}
		return m
	case in == 1:
		// Mono source feeds every output channel equally.
		for o := 0; o < out; o++ {
			m[o*in+0] = 1
		}
		return m
	case out == 1:
		// Downmix to mono: average all inputs.
		g := float32(1) / float32(in)
		for i := 0; i < in; i++ {
			m[0*in+i] = g
		}
		return m
	}
	if RecognizedLayouts[in] && RecognizedLayouts[out] {
		return standardRemix(in, out)
	}
	// Unrecognized layout: channel-for-channel, zero-fill or drop.
	n := in
	if out < n {
		n = out
	}
	for i := 0; i < n; i++ {
		m[i*in+i] = 1
	}
	return m
}

// standardRemix covers the stereo/quad/5.1/7.1 up- and down-mix pairs that
// are not simple mono special cases.
func standardRemix(in, out int) []float32 {
	m := make([]float32, out*in)
	set := func(o, i int, g float32) { m[o*in+i] = g }
	const half = 0.7071067811865476 // equal-power center/surround split

	switch {
	case in == 2 && out == 4: // stereo -> quad: front L/R, rear silent
		set(0, 0, 1)
		set(1, 1, 1)
	case in == 2 && out == 6: // stereo -> 5.1: front L/R only
		set(0, 0, 1)
		set(1, 1, 1)
	case in == 2 && out == 8: // stereo -> 7.1: front L/R only
		set(0, 0, 1)
		set(1, 1, 1)
	case in == 4 && out == 2: // quad -> stereo
		set(0, 0, 1)
		set(0, 2, half)
		set(1, 1, 1)
		set(1, 3, half)
	case in == 6 && out == 2: // 5.1 -> stereo (L,R,C,LFE,Ls,Rs)
		set(0, 0, 1)
		set(0, 2, half)
		set(0, 4, half)
		set(1, 1, 1)
		set(1, 2, half)
		set(1, 5, half)
	case in == 8 && out == 2: // 7.1 -> stereo
		set(0, 0, 1)
		set(0, 2, half)
		set(0, 4, half)
		set(0, 6, half)
		set(1, 1, 1)
		set(1, 2, half)
		set(1, 5, half)
		set(1, 7, half)
	case in == 6 && out == 4: // 5.1 -> quad
		set(0, 0, 1)
		set(0, 2, half)
		set(1, 1, 1)
		set(1, 2, half)
		set(2, 4, 1)
		set(3, 5, 1)
	case in == 4 && out == 6: // quad -> 5.1
		set(0, 0, 1)
		set(1, 1, 1)
		set(4, 2, 1)
		set(5, 3, 1)
	case in == 8 && out == 6: // 7.1 -> 5.1
		set(0, 0, 1)
		set(1, 1, 1)
		set(2, 2, 1)
		set(3, 3, 1)
		set(4, 4, 1)
		set(4, 6, half)
		set(5, 5, 1)
		set(5, 7, half)
	case in == 6 && out == 8: // 5.1 -> 7.1
		set(0, 0, 1)
		set(1, 1, 1)
		set(2, 2, 1)
		set(3, 3, 1)
		set(4, 4, 1)
		set(6, 4, 1)
		set(5, 5, 1)
		set(7, 5, 1)
	default:
		// No standard pairwise mapping (e.g. 4<->8): pass through the
		// common prefix of channels.
		n := in
		if out < n {
			n = out
		}
		for i := 0; i < n; i++ {
			set(i, i, 1)
		}
	}
	return m
}

// ApplyRemix writes one frame: out[o] = sum_i m[o*in+i]*inFrame[i].
func ApplyRemix(m []float32, in, out int, inFrame, outFrame []float32) {
	for o := 0; o < out; o++ {
		var acc float32
		row := m[o*in : o*in+in]
		for i := 0; i < in; i++ {
			acc += row[i] * inFrame[i]
		}
		outFrame[o] = acc
	}
}

// RemixBlock applies m to every frame of a block of non-interleaved input
// channel buffers, writing non-interleaved output channel buffers. Both
// sides must share block length.
func RemixBlock(m []float32, in, out int, inBufs, outBufs [][]float32) {
	if len(inBufs) == 0 || len(outBufs) == 0 {
		return
	}
	n := len(outBufs[0])
	frame := make([]float32, in)
	outFrame := make([]float32, out)
	for s := 0; s < n; s++ {
		for i := 0; i < in; i++ {
			frame[i] = inBufs[i][s]
		}
		ApplyRemix(m, in, out, frame, outFrame)
		for o := 0; o < out; o++ {
			outBufs[o][s] = outFrame[o]
		}
	}
}
