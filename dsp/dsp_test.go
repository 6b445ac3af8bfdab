package dsp

import (
	"math"
	"testing"
)

func TestDelayLinePassthroughAtZero(t *testing.T) {
	d := NewCrossfadingDelayLine(1.0, 44100)
	d.SetInterpolationTime(0)
	in := []float32{1, 0, 0, 0.5, -0.25}
	out := make([]float32, len(in))
	d.ProcessBuffer(len(in), in, out)
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d: got %v want %v (zero delay must pass through)", i, out[i], in[i])
		}
	}
}

func TestDelayLineImpulse(t *testing.T) {
	sr := 44100.0
	d := NewCrossfadingDelayLine(1.0, sr)
	d.SetInterpolationTime(0)
	d.SetDelay(0.01) // 441 samples
	n := 500
	in := make([]float32, n)
	in[0] = 1
	out := make([]float32, n)
	d.ProcessBuffer(n, in, out)
	for i := 0; i < 441; i++ {
		if out[i] != 0 {
			t.Fatalf("expected silence before delay tap, got out[%d]=%v", i, out[i])
		}
	}
	if math.Abs(float64(out[441]-1)) > 1e-4 {
		t.Fatalf("expected impulse at sample 441, got %v", out[441])
	}
}

func TestBlockConvolverMatchesFft(t *testing.T) {
	blockSize := 64
	h := make([]float32, 16)
	for i := range h {
		h[i] = float32(1) / float32(i+1)
	}
	x := make([]float32, blockSize)
	for i := range x {
		x[i] = float32(math.Sin(float64(i) * 0.1))
	}

	bc := NewBlockConvolver(blockSize)
	bc.SetResponse(len(h), h)
	bOut := make([]float32, blockSize)
	bc.Convolve(x, bOut)

	fc := NewFftConvolver(blockSize)
	fc.SetResponse(len(h), h)
	fOut := make([]float32, blockSize)
	fc.Convolve(x, fOut)

	for i := 0; i < blockSize; i++ {
		diff := math.Abs(float64(bOut[i] - fOut[i]))
		denom := math.Abs(float64(bOut[i]))
		if denom < 1e-6 {
			denom = 1e-6
		}
		if diff/denom > 1e-4 {
			t.Fatalf("sample %d: block=%v fft=%v diverge", i, bOut[i], fOut[i])
		}
	}
}

func TestRemixMonoToStereo(t *testing.T) {
	m := RemixMatrix(1, 2)
	in := []float32{0.5}
	out := make([]float32, 2)
	ApplyRemix(m, 1, 2, in, out)
	if out[0] != 0.5 || out[1] != 0.5 {
		t.Fatalf("mono->stereo remix wrong: %v", out)
	}
}

func TestResampleDeterministicLength(t *testing.T) {
	frames := 1000
	in := make([]float32, frames)
	n, out := Resample(44100, 22050, 1, frames, in)
	if n != len(out) {
		t.Fatalf("length mismatch: n=%d len(out)=%d", n, len(out))
	}
	if n == 0 {
		t.Fatalf("expected nonzero output frames")
	}
}
