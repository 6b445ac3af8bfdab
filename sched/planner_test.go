package sched

import (
	"context"
	"testing"

	"github.com/zaynotley/sonicgraph/graph"
)

type nopImpl struct{ ran *[]uint64 }

func (n nopImpl) Process(node *graph.Node) {
	if n.ran != nil {
		*n.ran = append(*n.ran, node.ID())
	}
}

func TestLinearChainOrdersByDependency(t *testing.T) {
	var order []uint64
	a := graph.New("a", 4, nopImpl{ran: &order})
	a.AppendOutputConnection(0, 1)
	b := graph.New("b", 4, nopImpl{ran: &order})
	b.AppendInputConnection(0, 1)
	b.AppendOutputConnection(0, 1)
	_ = a.Connect(0, b, 0)
	a.SetState(graph.Playing)
	b.SetState(graph.Playing)

	p := New(2)
	p.Register(a)
	p.Register(b)
	p.SetRoots(b)

	if err := p.Tick(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != a.ID() || order[1] != b.ID() {
		t.Fatalf("expected [a,b] order, got %v", order)
	}
}

func TestPausedNodeIsNotLive(t *testing.T) {
	var order []uint64
	a := graph.New("a", 4, nopImpl{ran: &order})
	a.AppendOutputConnection(0, 1)
	b := graph.New("b", 4, nopImpl{ran: &order})
	b.AppendInputConnection(0, 1)
	b.AppendOutputConnection(0, 1)
	_ = a.Connect(0, b, 0)
	a.SetState(graph.Paused)
	b.SetState(graph.Playing)

	p := New(1)
	p.Register(a)
	p.Register(b)
	p.SetRoots(b)

	if err := p.Tick(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if len(order) != 1 || order[0] != b.ID() {
		t.Fatalf("expected only b to run, got %v", order)
	}
}

func TestAlwaysPlayingRunsEvenWhenUnreachable(t *testing.T) {
	var order []uint64
	a := graph.New("a", 4, nopImpl{ran: &order})
	a.SetState(graph.AlwaysPlaying)

	root := graph.New("root", 4, nopImpl{ran: &order})
	root.SetState(graph.Playing)

	p := New(1)
	p.Register(a)
	p.Register(root)
	p.SetRoots(root)

	if err := p.Tick(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 {
		t.Fatalf("expected both always-playing and root to run, got %v", order)
	}
}

func TestFeedbackCycleIsTappedNotDeadlocked(t *testing.T) {
	var order []uint64
	a := graph.New("a", 4, nopImpl{ran: &order})
	a.AppendInputConnection(0, 1)
	a.AppendOutputConnection(0, 1)
	b := graph.New("b", 4, nopImpl{ran: &order})
	b.AppendInputConnection(0, 1)
	b.AppendOutputConnection(0, 1)
	_ = a.Connect(0, b, 0)
	_ = b.Connect(0, a, 0)
	a.SetState(graph.Playing)
	b.SetState(graph.Playing)

	p := New(1)
	p.Register(a)
	p.Register(b)
	p.SetRoots(b)

	if err := p.Tick(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 {
		t.Fatalf("expected both nodes to run despite cycle, got %v", order)
	}
	if a.CycleTapped() == b.CycleTapped() {
		t.Fatal("expected exactly one node in the cycle to be marked cycle-tapped")
	}
}

func TestDrainRunsAfterFinalStage(t *testing.T) {
	a := graph.New("a", 4, nopImpl{})
	a.SetState(graph.AlwaysPlaying)
	p := New(1)
	p.Register(a)
	p.SetRoots()

	drained := false
	if err := p.Tick(context.Background(), func() { drained = true }); err != nil {
		t.Fatal(err)
	}
	if !drained {
		t.Fatal("expected drain callback to run")
	}
}
