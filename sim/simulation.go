// Package sim implements the simulation core: sample rate and block size
// ownership, the reentrant mix lock guarding graph mutation and property
// writes, the out-of-graph FIFO task queue drained after each tick, and
// getBlock()'s coupling to an output device. The lock-guards-state,
// ring-buffer-output shape follows SoundChip (audio_chip.go), generalized
// from one fixed chip to an arbitrary node graph.
package sim

import (
	"context"
	"sync"

	"github.com/zaynotley/sonicgraph/dsp"
	"github.com/zaynotley/sonicgraph/graph"
	"github.com/zaynotley/sonicgraph/sched"
	"github.com/zaynotley/sonicgraph/sonicerr"
)

type lockMarkerKey struct{}

// Simulation owns the block-rate clock and the live node graph's scheduler.
// All property writes and graph mutations from outside a node's own
// Process() must happen under the mix lock so they never tear a block.
type Simulation struct {
	mu sync.Mutex

	sampleRate float64
	blockSize  int

	planner *sched.Planner
	output  *graph.Node

	taskMu sync.Mutex
	tasks  []func()
}

// New constructs a Simulation with the given fixed sample rate, block size
// and worker-pool width for the scheduler's parallel stages.
func New(sampleRate float64, blockSize, workers int) *Simulation {
	return &Simulation{
		sampleRate: sampleRate,
		blockSize:  blockSize,
		planner:    sched.New(workers),
	}
}

func (s *Simulation) SampleRate() float64 { return s.sampleRate }
func (s *Simulation) BlockSize() int      { return s.blockSize }

// WithMixLock runs fn holding the mix lock, reentrantly: a call already
// inside a WithMixLock block (tracked via ctx, since Go has no native
// recursive mutex) runs fn directly instead of deadlocking.
func (s *Simulation) WithMixLock(ctx context.Context, fn func(context.Context)) {
	if ctx.Value(lockMarkerKey{}) != nil {
		fn(ctx)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(context.WithValue(ctx, lockMarkerKey{}, true))
}

// RegisterNode adds n to the scheduler's node set.
func (s *Simulation) RegisterNode(n *graph.Node) { s.planner.Register(n) }

// UnregisterNode removes n from the scheduler's node set (call after
// Isolate()).
func (s *Simulation) UnregisterNode(n *graph.Node) { s.planner.Unregister(n) }

// SetOutputNode declares which node's OutputBuffers are the final mix; the
// scheduler plans from this node as its sole root.
func (s *Simulation) SetOutputNode(n *graph.Node) {
	s.output = n
	s.planner.SetRoots(n)
}

// InvalidatePlan forces the next GetBlock to recompute the schedule (call
// after any connection or state change that affects liveness).
func (s *Simulation) InvalidatePlan() { s.planner.InvalidatePlan() }

// EnqueueTask appends fn to the out-of-graph task queue. It runs once,
// after the current (or next, if none is in flight) tick's stages finish,
// outside the mix lock.
func (s *Simulation) EnqueueTask(fn func()) {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()
	s.tasks = append(s.tasks, fn)
}

func (s *Simulation) drainTasks() {
	s.taskMu.Lock()
	pending := s.tasks
	s.tasks = nil
	s.taskMu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// Tick advances the simulation by one block: pre-tick callbacks, the
// scheduler's stages, then clears every registered node's modified-property
// flags, and finally drains the task queue outside the mix lock.
func (s *Simulation) Tick(ctx context.Context) error {
	var err error
	s.WithMixLock(ctx, func(ctx context.Context) {
		err = s.planner.Tick(ctx, nil)
		if err == nil {
			s.planner.ClearTickProperties()
		}
	})
	if err != nil {
		return err
	}
	s.drainTasks()
	return nil
}

// GetBlock ticks the simulation and copies the output node's mix into out,
// remixing to the caller's requested channel count if it differs from the
// output node's own channel count.
func (s *Simulation) GetBlock(ctx context.Context, outChannels int, out [][]float32) error {
	if s.output == nil {
		return sonicerr.New(sonicerr.INTERNAL, "simulation has no output node")
	}
	if err := s.Tick(ctx); err != nil {
		return err
	}
	src := s.output.OutputBuffers()
	srcCh := len(src)
	if srcCh == outChannels {
		for ch := 0; ch < outChannels; ch++ {
			copy(out[ch], src[ch])
		}
		return nil
	}
	m := dsp.RemixMatrix(srcCh, outChannels)
	dsp.RemixBlock(m, srcCh, outChannels, src, out)
	return nil
}
