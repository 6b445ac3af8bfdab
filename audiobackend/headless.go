package audiobackend

import "context"

// HeadlessDevice drains a Source without touching any real audio hardware,
// for tests and CI (audio_backend_headless.go's build-tag counterpart,
// generalized the same way OtoDevice is: any Source, not one fixed chip).
type HeadlessDevice struct {
	source   Source
	channels int
	buf      [][]float32
	started  bool
}

// NewHeadlessDevice constructs a device that, while started, pulls one
// block per Pump call and discards it.
func NewHeadlessDevice(channels int, src Source) *HeadlessDevice {
	buf := make([][]float32, channels)
	for ch := range buf {
		buf[ch] = make([]float32, src.BlockSize())
	}
	return &HeadlessDevice{source: src, channels: channels, buf: buf}
}

// Pump pulls and discards one block; a no-op if the device isn't started.
func (h *HeadlessDevice) Pump(ctx context.Context) error {
	if !h.started {
		return nil
	}
	return h.source.GetBlock(ctx, h.channels, h.buf)
}

func (h *HeadlessDevice) Start() { h.started = true }
func (h *HeadlessDevice) Stop()  { h.started = false }
func (h *HeadlessDevice) Close() { h.started = false }
