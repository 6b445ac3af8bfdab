package sim

import (
	"context"
	"testing"

	"github.com/zaynotley/sonicgraph/graph"
)

type constImpl struct{ v float32 }

func (c constImpl) Process(n *graph.Node) {
	for _, buf := range n.OutputBuffers() {
		for i := range buf {
			buf[i] = c.v
		}
	}
}

func TestGetBlockCopiesOutputSameChannels(t *testing.T) {
	s := New(44100, 4, 2)
	out := graph.New("out", 4, constImpl{v: 0.25})
	out.AppendOutputConnection(0, 2)
	out.SetState(graph.AlwaysPlaying)
	s.RegisterNode(out)
	s.SetOutputNode(out)

	buf := [][]float32{make([]float32, 4), make([]float32, 4)}
	if err := s.GetBlock(context.Background(), 2, buf); err != nil {
		t.Fatal(err)
	}
	for ch := 0; ch < 2; ch++ {
		for i, s := range buf[ch] {
			if s != 0.25 {
				t.Fatalf("chan %d sample %d: got %v want 0.25", ch, i, s)
			}
		}
	}
}

func TestGetBlockRemixesToDeviceChannels(t *testing.T) {
	s := New(44100, 4, 1)
	out := graph.New("out", 4, constImpl{v: 1})
	out.AppendOutputConnection(0, 1)
	out.SetState(graph.AlwaysPlaying)
	s.RegisterNode(out)
	s.SetOutputNode(out)

	buf := [][]float32{make([]float32, 4), make([]float32, 4)}
	if err := s.GetBlock(context.Background(), 2, buf); err != nil {
		t.Fatal(err)
	}
	for ch := 0; ch < 2; ch++ {
		for i, v := range buf[ch] {
			if v != 1 {
				t.Fatalf("chan %d sample %d: got %v want 1 (mono->stereo broadcast)", ch, i, v)
			}
		}
	}
}

func TestEnqueueTaskRunsAfterTickOutsideLock(t *testing.T) {
	s := New(44100, 4, 1)
	out := graph.New("out", 4, constImpl{v: 0})
	out.AppendOutputConnection(0, 1)
	out.SetState(graph.AlwaysPlaying)
	s.RegisterNode(out)
	s.SetOutputNode(out)

	ran := false
	lockFree := false
	s.EnqueueTask(func() {
		ran = true
		if s.mu.TryLock() {
			lockFree = true
			s.mu.Unlock()
		}
	})
	if err := s.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Fatal("expected enqueued task to run after tick")
	}
	if !lockFree {
		t.Fatal("expected enqueued task to run without the mix lock held")
	}
}

func TestWithMixLockIsReentrant(t *testing.T) {
	s := New(44100, 4, 1)
	done := false
	s.WithMixLock(context.Background(), func(ctx context.Context) {
		s.WithMixLock(ctx, func(ctx context.Context) {
			done = true
		})
	})
	if !done {
		t.Fatal("expected nested WithMixLock to run without deadlocking")
	}
}
