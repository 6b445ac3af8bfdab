package buffer

import "testing"

func TestLoadFromArraySameRateCopies(t *testing.T) {
	data := [][]float32{{0, 1, 0, -1}}
	b, err := LoadFromArray(44100, 44100, 1, 4, data)
	if err != nil {
		t.Fatal(err)
	}
	if b.Frames() != 4 || b.Channels() != 1 {
		t.Fatalf("unexpected shape: %d frames, %d channels", b.Frames(), b.Channels())
	}
	data[0][0] = 99
	if b.Channel(0)[0] == 99 {
		t.Fatal("expected LoadFromArray to copy, not alias, input data")
	}
}

func TestLoadFromArrayResamples(t *testing.T) {
	data := [][]float32{{0, 1, 0, 1, 0, 1, 0, 1}}
	b, err := LoadFromArray(22050, 44100, 1, 8, data)
	if err != nil {
		t.Fatal(err)
	}
	if b.Frames() != 4 {
		t.Fatalf("expected halved frame count, got %d", b.Frames())
	}
}

func TestNormalizeRescalesToUnityPeak(t *testing.T) {
	data := [][]float32{{0, 2, -4, 1}}
	b, _ := LoadFromArray(44100, 44100, 1, 4, data)
	b.Normalize()
	if b.Channel(0)[2] != -1 {
		t.Fatalf("expected peak sample normalized to -1, got %v", b.Channel(0)[2])
	}
}

func TestNormalizeSilentBufferIsNoop(t *testing.T) {
	data := [][]float32{{0, 0, 0}}
	b, _ := LoadFromArray(44100, 44100, 1, 3, data)
	b.Normalize()
	for _, s := range b.Channel(0) {
		if s != 0 {
			t.Fatal("expected silent buffer to remain silent")
		}
	}
}
