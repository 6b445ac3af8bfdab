// Package audiobackend adapts a *sim.Simulation to a pull-based audio
// device: an atomic.Pointer handle to the audio source, a Read([]byte)
// callback for the platform player, and a headless variant for tests/CI
// that never touches real hardware.
package audiobackend

import (
	"context"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/oto/v3"
)

// Source is the subset of *sim.Simulation a Device needs to pull blocks.
type Source interface {
	GetBlock(ctx context.Context, outChannels int, out [][]float32) error
	BlockSize() int
}

// Device is a started/stopped audio output.
type Device interface {
	Start()
	Stop()
	Close()
}

// OtoDevice streams float32 interleaved audio through ebitengine/oto/v3,
// pulling fixed-size blocks from a Source on demand (audio_backend_oto.go's
// OtoPlayer pattern, generalized from one fixed SoundChip to any Source).
type OtoDevice struct {
	ctx    *oto.Context
	player *oto.Player

	source   atomic.Pointer[Source]
	channels int
	blockBuf [][]float32
	leftover []float32 // interleaved samples already produced but not yet read

	mutex   sync.Mutex
	started bool
}

// NewOtoDevice opens an oto context at sampleRate for the given channel
// count and binds it to src.
func NewOtoDevice(sampleRate, channels int, src Source) (*OtoDevice, error) {
	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	}
	ctx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, err
	}
	<-ready

	d := &OtoDevice{
		ctx:      ctx,
		channels: channels,
		blockBuf: make([][]float32, channels),
	}
	for ch := range d.blockBuf {
		d.blockBuf[ch] = make([]float32, src.BlockSize())
	}
	d.source.Store(&src)
	d.player = ctx.NewPlayer(d)
	return d, nil
}

// Read implements io.Reader for oto.Player: it pulls whole blocks from the
// bound Source and interleaves them into p, carrying any partial block
// across calls in d.leftover.
func (d *OtoDevice) Read(p []byte) (int, error) {
	srcPtr := d.source.Load()
	if srcPtr == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	src := *srcPtr

	wantSamples := len(p) / 4
	out := make([]float32, 0, wantSamples)
	out = append(out, d.leftover...)
	d.leftover = nil

	for len(out) < wantSamples {
		if err := src.GetBlock(context.Background(), d.channels, d.blockBuf); err != nil {
			break
		}
		frames := len(d.blockBuf[0])
		for i := 0; i < frames; i++ {
			for ch := 0; ch < d.channels; ch++ {
				out = append(out, d.blockBuf[ch][i])
			}
		}
	}

	if len(out) > wantSamples {
		d.leftover = append(d.leftover, out[wantSamples:]...)
		out = out[:wantSamples]
	}

	copy(p, (*[1 << 30]byte)(unsafe.Pointer(&out[0]))[:len(out)*4])
	return len(out) * 4, nil
}

func (d *OtoDevice) Start() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if !d.started {
		d.player.Play()
		d.started = true
	}
}

func (d *OtoDevice) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.started {
		d.player.Pause()
		d.started = false
	}
}

func (d *OtoDevice) Close() {
	d.Stop()
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.player != nil {
		_ = d.player.Close()
		d.player = nil
	}
}
