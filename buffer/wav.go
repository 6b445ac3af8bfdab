package buffer

import (
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/zaynotley/sonicgraph/sonicerr"
)

// WavReader decodes WAV PCM via go-audio/wav, deinterleaving into
// LoadFromArray's per-channel shape.
type WavReader struct{}

func (WavReader) Read(r io.Reader) (sampleRate float64, channels, frames int, data [][]float32, err error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		return 0, 0, 0, nil, sonicerr.New(sonicerr.FILE, "wav decoding requires a seekable reader")
	}
	dec := wav.NewDecoder(rs)
	buf, derr := dec.FullPCMBuffer()
	if derr != nil {
		return 0, 0, 0, nil, sonicerr.New(sonicerr.FILE, "decode wav: %v", derr)
	}
	channels = buf.Format.NumChannels
	sampleRate = float64(buf.Format.SampleRate)
	total := len(buf.Data)
	frames = total / channels
	data = make([][]float32, channels)
	for ch := range data {
		data[ch] = make([]float32, frames)
	}
	maxAmp := float32(buf.SourceBitDepth)
	if maxAmp <= 0 {
		maxAmp = 16
	}
	scale := float32(1) / float32(int(1)<<(uint(maxAmp)-1))
	for i, s := range buf.Data {
		ch := i % channels
		frame := i / channels
		data[ch][frame] = float32(s) * scale
	}
	return sampleRate, channels, frames, data, nil
}

// WavWriter encodes a Buffer to 16-bit PCM WAV via go-audio/wav.
type WavWriter struct{}

func (WavWriter) Write(w io.WriteSeeker, b *Buffer) error {
	enc := wav.NewEncoder(w, int(b.SampleRate()), 16, b.Channels(), 1)
	frames := b.Frames()
	channels := b.Channels()
	ints := make([]int, frames*channels)
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			s := b.channels[ch][f]
			if s > 1 {
				s = 1
			} else if s < -1 {
				s = -1
			}
			ints[f*channels+ch] = int(s * 32767)
		}
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: int(b.SampleRate())},
		Data:           ints,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return sonicerr.New(sonicerr.FILE, "encode wav: %v", err)
	}
	return enc.Close()
}
