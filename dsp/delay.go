package dsp

import "math"

// CrossfadingDelayLine is a single-channel delay line with two simultaneous
// read taps that crossfade linearly over InterpolationTime seconds whenever
// the delay target changes, avoiding the click a hard delay jump would
// cause. Ported from libaudioverse's CrossfadingDelayLine
// (implementations/delayline.hpp) into a ring-buffer-plus-index idiom.
type CrossfadingDelayLine struct {
	sr        float64
	maxDelay  float64
	buffer    []float32
	writeHead int

	currentDelaySamples int
	targetDelaySamples  int

	interpolationTime    float64
	crossfadeSamples     int
	crossfadeCounter     int
	crossfadeIncrement   float32
	crossfadeWeight      float32 // 0 = fully on current tap, 1 = fully on target
}

// NewCrossfadingDelayLine allocates a line able to hold up to maxDelay
// seconds at the given sample rate. Samples past maxDelay are inaccessible.
func NewCrossfadingDelayLine(maxDelay float64, sr float64) *CrossfadingDelayLine {
	length := int(math.Ceil(maxDelay*sr)) + 1
	if length < 1 {
		length = 1
	}
	return &CrossfadingDelayLine{
		sr:                sr,
		maxDelay:          maxDelay,
		buffer:            make([]float32, length),
		interpolationTime: 0.01,
	}
}

// SetDelay sets the delay in seconds, clamped to [0, maxDelay], and starts a
// crossfade from the current tap to the new one.
func (d *CrossfadingDelayLine) SetDelay(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	if seconds > d.maxDelay {
		seconds = d.maxDelay
	}
	d.SetDelayInSamples(int(math.Round(seconds * d.sr)))
}

// SetDelayInSamples sets the delay directly in samples, clamped to the line
// capacity, and starts a crossfade.
func (d *CrossfadingDelayLine) SetDelayInSamples(samples int) {
	maxSamples := len(d.buffer) - 1
	if samples < 0 {
		samples = 0
	}
	if samples > maxSamples {
		samples = maxSamples
	}
	if samples == d.targetDelaySamples {
		return
	}
	d.targetDelaySamples = samples
	d.startCrossfade()
}

// DelaySamples reports the current settled delay in samples; during an
// active crossfade it reports the target.
func (d *CrossfadingDelayLine) DelaySamples() int { return d.targetDelaySamples }

// SetInterpolationTime sets the crossfade duration in seconds for future
// delay changes. It does not affect a crossfade already in progress.
func (d *CrossfadingDelayLine) SetInterpolationTime(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	d.interpolationTime = seconds
}

func (d *CrossfadingDelayLine) startCrossfade() {
	n := int(d.interpolationTime * d.sr)
	if n < 1 {
		// No interpolation time configured: snap instantly.
		d.currentDelaySamples = d.targetDelaySamples
		d.crossfadeCounter = 0
		d.crossfadeSamples = 0
		d.crossfadeWeight = 0
		return
	}
	d.crossfadeSamples = n
	d.crossfadeCounter = n
	d.crossfadeIncrement = 1.0 / float32(n)
	d.crossfadeWeight = 0
}

// tapAt reads delaySamples behind the next write slot: the sample that was
// written delaySamples-1 Advance() calls ago. Used by ComputeSample, which
// is specified to run before Advance each sample.
func (d *CrossfadingDelayLine) tapAt(delaySamples int) float32 {
	idx := d.writeHead - delaySamples
	for idx < 0 {
		idx += len(d.buffer)
	}
	return d.buffer[idx%len(d.buffer)]
}

// tapAtInclusive reads delaySamples behind the most recently written
// sample (writeHead-1), so a delay of 0 returns the sample just written.
// Used only by ProcessBuffer's write-then-read fast path.
func (d *CrossfadingDelayLine) tapAtInclusive(delaySamples int) float32 {
	idx := d.writeHead - 1 - delaySamples
	for idx < 0 {
		idx += len(d.buffer)
	}
	return d.buffer[idx%len(d.buffer)]
}

// ComputeSample reads the current output sample without advancing the line.
func (d *CrossfadingDelayLine) ComputeSample() float32 {
	current := d.tapAt(d.currentDelaySamples)
	if d.crossfadeCounter <= 0 {
		return current
	}
	target := d.tapAt(d.targetDelaySamples)
	return current*(1-d.crossfadeWeight) + target*d.crossfadeWeight
}

// Advance writes x into the line and moves the write head forward by one
// sample, progressing any in-flight crossfade.
func (d *CrossfadingDelayLine) Advance(x float32) {
	d.buffer[d.writeHead] = x
	d.writeHead = (d.writeHead + 1) % len(d.buffer)
	if d.crossfadeCounter > 0 {
		d.crossfadeCounter--
		d.crossfadeWeight += d.crossfadeIncrement
		if d.crossfadeCounter == 0 {
			d.currentDelaySamples = d.targetDelaySamples
			d.crossfadeWeight = 0
		}
	}
}

func (d *CrossfadingDelayLine) computeInclusive() float32 {
	current := d.tapAtInclusive(d.currentDelaySamples)
	if d.crossfadeCounter <= 0 {
		return current
	}
	target := d.tapAtInclusive(d.targetDelaySamples)
	return current*(1-d.crossfadeWeight) + target*d.crossfadeWeight
}

// ProcessBuffer runs n samples of input through the line with no feedback,
// the fast path used when the owning node has feedback == 0. It writes each
// input sample before reading its tap, so a delay of exactly 0 samples
// passes input through unchanged.
func (d *CrossfadingDelayLine) ProcessBuffer(n int, in, out []float32) {
	for i := 0; i < n; i++ {
		d.Advance(in[i])
		out[i] = d.computeInclusive()
	}
}

// Reset zeros the buffer and crossfade state without changing the delay
// target.
func (d *CrossfadingDelayLine) Reset() {
	for i := range d.buffer {
		d.buffer[i] = 0
	}
	d.writeHead = 0
	d.crossfadeCounter = 0
	d.crossfadeWeight = 0
}
