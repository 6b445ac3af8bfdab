package dsp

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// nextPow2 returns the smallest power of two >= n.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// FftConvolver is an overlap-add FFT convolver. fftSize = nextPow2(2 *
// blockSize); tailSize = fftSize - blockSize. The FFT itself is treated as a
// black box, here backed by gonum's real-to-complex transform
// (gonum.org/v1/gonum/dsp/fourier).
type FftConvolver struct {
	blockSize int
	fftSize   int
	tailSize  int

	fft *fourier.FFT

	responseFFT []complex128
	overlap     []float32

	// scratch holds the most recent getFFT() result; valid only until the
	// next call to GetFFT or Convolve, per libaudioverse's convolvers.hpp.
	scratch    []float64
	scratchFFT []complex128
}

// NewFftConvolver allocates a convolver for the given block size.
func NewFftConvolver(blockSize int) *FftConvolver {
	fftSize := nextPow2(2 * blockSize)
	return &FftConvolver{
		blockSize: blockSize,
		fftSize:   fftSize,
		tailSize:  fftSize - blockSize,
		fft:       fourier.NewFFT(fftSize),
		overlap:   make([]float32, fftSize-blockSize),
		scratch:   make([]float64, fftSize),
	}
}

// FftSize is the size to which input must be zero-padded for ConvolveFft.
func (c *FftConvolver) FftSize() int { return c.fftSize }

// SetResponse installs a new impulse response, zero-padded to fftSize if
// shorter.
func (c *FftConvolver) SetResponse(length int, h []float32) {
	if length <= 0 {
		c.responseFFT = nil
		return
	}
	padded := make([]float64, c.fftSize)
	n := length
	if n > c.fftSize {
		n = c.fftSize
	}
	for i := 0; i < n; i++ {
		padded[i] = float64(h[i])
	}
	c.responseFFT = c.fft.Coefficients(nil, padded)
}

// GetFFT returns a real-to-complex FFT of `in`, zero-padded to fftSize. The
// returned slice is scratch, valid only until the next call to GetFFT or
// Convolve.
func (c *FftConvolver) GetFFT(in []float32) []complex128 {
	for i := 0; i < c.blockSize; i++ {
		c.scratch[i] = float64(in[i])
	}
	for i := c.blockSize; i < c.fftSize; i++ {
		c.scratch[i] = 0
	}
	c.scratchFFT = c.fft.Coefficients(c.scratchFFT, c.scratch)
	return c.scratchFFT
}

// Convolve runs one block of input through overlap-add FFT convolution.
func (c *FftConvolver) Convolve(in, out []float32) {
	fft := c.GetFFT(in)
	c.ConvolveFft(fft, out)
}

// ConvolveFft is equivalent to Convolve but accepts a pre-computed FFT of
// the (zero-padded) input, e.g. one shared across multiple convolvers
// (HrtfPanner's left/right ears reuse a single input FFT).
func (c *FftConvolver) ConvolveFft(inFFT []complex128, out []float32) {
	if c.responseFFT == nil {
		for i := 0; i < c.blockSize; i++ {
			out[i] = 0
		}
		c.advanceSilence()
		return
	}
	prod := make([]complex128, len(inFFT))
	for i := range prod {
		prod[i] = inFFT[i] * c.responseFFT[i]
	}
	// gonum's Sequence round-trips to N*x (Sequence(Coefficients(x)) == N*x),
	// so the inverse transform must be scaled down by fftSize here.
	time := c.fft.Sequence(nil, prod)
	scale := 1 / float64(c.fftSize)
	for i := 0; i < c.blockSize; i++ {
		out[i] = float32(time[i]*scale) + c.overlap[i]
	}
	c.shiftOverlap(time, scale)
}

// shiftOverlap advances the overlap-add tail by one block: drop the front
// blockSize samples that were just consumed, and fold in the new tail of
// the inverse-FFT result, scaled down by scale (1/fftSize, to undo gonum's
// N*x round-trip normalization).
func (c *FftConvolver) shiftOverlap(time []float64, scale float64) {
	newOverlap := make([]float32, c.tailSize)
	for i := 0; i < c.tailSize; i++ {
		var carried float32
		if i+c.blockSize < c.tailSize {
			carried = c.overlap[i+c.blockSize]
		}
		var fresh float32
		if time != nil {
			idx := c.blockSize + i
			if idx < len(time) {
				fresh = float32(time[idx] * scale)
			}
		}
		newOverlap[i] = carried + fresh
	}
	c.overlap = newOverlap
}

func (c *FftConvolver) advanceSilence() {
	c.shiftOverlap(nil, 0)
}

// Reset clears convolution history (the overlap-add tail).
func (c *FftConvolver) Reset() {
	for i := range c.overlap {
		c.overlap[i] = 0
	}
}
