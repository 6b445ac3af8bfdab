package audiobackend

import (
	"context"
	"testing"
)

type fakeSource struct {
	blockSize int
	pulls     int
}

func (f *fakeSource) BlockSize() int { return f.blockSize }

func (f *fakeSource) GetBlock(ctx context.Context, outChannels int, out [][]float32) error {
	f.pulls++
	for ch := range out {
		for i := range out[ch] {
			out[ch][i] = 1
		}
	}
	return nil
}

func TestHeadlessDevicePumpsOnlyWhenStarted(t *testing.T) {
	src := &fakeSource{blockSize: 32}
	d := NewHeadlessDevice(2, src)

	if err := d.Pump(context.Background()); err != nil {
		t.Fatal(err)
	}
	if src.pulls != 0 {
		t.Fatalf("expected no pull before Start, got %d", src.pulls)
	}

	d.Start()
	if err := d.Pump(context.Background()); err != nil {
		t.Fatal(err)
	}
	if src.pulls != 1 {
		t.Fatalf("expected exactly 1 pull after Start+Pump, got %d", src.pulls)
	}

	d.Stop()
	if err := d.Pump(context.Background()); err != nil {
		t.Fatal(err)
	}
	if src.pulls != 1 {
		t.Fatalf("expected no additional pull after Stop, got %d", src.pulls)
	}
}

func TestHeadlessDeviceCloseStopsPumping(t *testing.T) {
	src := &fakeSource{blockSize: 16}
	d := NewHeadlessDevice(1, src)
	d.Start()
	d.Close()
	if err := d.Pump(context.Background()); err != nil {
		t.Fatal(err)
	}
	if src.pulls != 0 {
		t.Fatalf("expected Close to stop pumping, got %d pulls", src.pulls)
	}
}
