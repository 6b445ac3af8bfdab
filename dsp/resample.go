package dsp

// Resample converts an interleaved PCM buffer from srcRate to dstRate using
// linear interpolation, per channel. The output frame count is
// deterministic from the input: ceil(frames * dstRate / srcRate).
func Resample(srcRate, dstRate float64, channels, frames int, in []float32) (outFrames int, out []float32) {
	if srcRate <= 0 || dstRate <= 0 || frames == 0 {
		return 0, nil
	}
	if srcRate == dstRate {
		out = make([]float32, len(in))
		copy(out, in)
		return frames, out
	}
	ratio := dstRate / srcRate
	outFrames = int(float64(frames)*ratio + 0.999999999)
	if outFrames < 1 {
		outFrames = 1
	}
	out = make([]float32, outFrames*channels)
	step := float64(frames-1) / float64(maxInt(outFrames-1, 1))
	for i := 0; i < outFrames; i++ {
		srcPos := float64(i) * step
		i0 := int(srcPos)
		if i0 >= frames-1 {
			i0 = frames - 2
			if i0 < 0 {
				i0 = 0
			}
		}
		i1 := i0 + 1
		if i1 >= frames {
			i1 = frames - 1
		}
		frac := float32(srcPos - float64(i0))
		for c := 0; c < channels; c++ {
			a := in[i0*channels+c]
			b := in[i1*channels+c]
			out[i*channels+c] = a + (b-a)*frac
		}
	}
	return outFrames, out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// RemixInterleaved converts an interleaved buffer with inChannels into one
// with outChannels, frame by frame, using RemixMatrix.
func RemixInterleaved(inChannels, outChannels, frames int, in []float32) []float32 {
	m := RemixMatrix(inChannels, outChannels)
	out := make([]float32, frames*outChannels)
	frame := make([]float32, inChannels)
	outFrame := make([]float32, outChannels)
	for f := 0; f < frames; f++ {
		copy(frame, in[f*inChannels:(f+1)*inChannels])
		ApplyRemix(m, inChannels, outChannels, frame, outFrame)
		copy(out[f*outChannels:(f+1)*outChannels], outFrame)
	}
	return out
}
