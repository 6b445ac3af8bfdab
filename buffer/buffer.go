// Package buffer implements the immutable PCM holder and its file I/O
// boundary. Buffer itself is stdlib-only (it is a plain resampled sample
// array); WavReader/WavWriter plug in go-audio/wav for the default
// on-disk format.
package buffer

import (
	"io"
	"math"

	"github.com/zaynotley/sonicgraph/dsp"
	"github.com/zaynotley/sonicgraph/sonicerr"
)

// Buffer is a non-interleaved PCM holder at the simulation's sample rate:
// one []float32 per channel, every slice the same length. Its shape is
// fixed once constructed; only Normalize changes its samples.
type Buffer struct {
	sampleRate float64
	channels   [][]float32
}

// Frames is the number of samples in each channel.
func (b *Buffer) Frames() int {
	if len(b.channels) == 0 {
		return 0
	}
	return len(b.channels[0])
}

// Channels is the channel count.
func (b *Buffer) Channels() int { return len(b.channels) }

// SampleRate is the simulation sample rate this buffer was resampled to.
func (b *Buffer) SampleRate() float64 { return b.sampleRate }

// Channel returns the raw sample slice for channel ch. Callers must treat
// it as read-only; only Normalize modifies a Buffer's samples.
func (b *Buffer) Channel(ch int) []float32 { return b.channels[ch] }

// LoadFromArray builds a Buffer from non-interleaved PCM at srcRate,
// resampling to simRate with dsp.Resample if the rates differ. Output
// length is deterministic from the input length and the rate ratio.
func LoadFromArray(simRate, srcRate float64, channels, frames int, data [][]float32) (*Buffer, error) {
	if channels <= 0 || frames < 0 {
		return nil, sonicerr.New(sonicerr.RANGE, "invalid buffer shape: %d channels, %d frames", channels, frames)
	}
	if len(data) != channels {
		return nil, sonicerr.New(sonicerr.RANGE, "expected %d channel slices, got %d", channels, len(data))
	}
	out := make([][]float32, channels)
	if srcRate == simRate {
		for ch := range data {
			cp := make([]float32, frames)
			copy(cp, data[ch])
			out[ch] = cp
		}
		return &Buffer{sampleRate: simRate, channels: out}, nil
	}
	for ch := range data {
		interleaved := data[ch]
		outFrames, resampled := dsp.Resample(srcRate, simRate, 1, frames, interleaved)
		_ = outFrames
		out[ch] = resampled
	}
	return &Buffer{sampleRate: simRate, channels: out}, nil
}

// Normalize rescales every channel by 1/max(|min|,|max|) across all
// channels combined. A silent buffer is left unchanged.
func (b *Buffer) Normalize() {
	peak := float32(0)
	for _, ch := range b.channels {
		for _, s := range ch {
			if a := float32(math.Abs(float64(s))); a > peak {
				peak = a
			}
		}
	}
	if peak == 0 {
		return
	}
	inv := 1 / peak
	for _, ch := range b.channels {
		for i := range ch {
			ch[i] *= inv
		}
	}
}

// Reader decodes PCM from an arbitrary source into LoadFromArray's input
// shape. The default implementation (WavReader) wraps go-audio/wav; callers
// may supply their own for other formats.
type Reader interface {
	Read(r io.Reader) (sampleRate float64, channels, frames int, data [][]float32, err error)
}

// Writer encodes a Buffer back out. The default implementation (WavWriter)
// wraps go-audio/wav.
type Writer interface {
	Write(w io.WriteSeeker, b *Buffer) error
}
