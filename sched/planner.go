// Package sched implements the topological scheduler/planner: it decides
// the per-block process() order from the live node graph, tolerating
// feedback cycles via a one-block delay, and executes independent stages
// concurrently on a worker pool.
package sched

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zaynotley/sonicgraph/graph"
)

// Planner owns the registered node set, the output-reachable roots, and the
// cached stage plan.
type Planner struct {
	mu      sync.Mutex
	nodes   map[uint64]*graph.Node
	roots   []*graph.Node
	stages  [][]*graph.Node
	stale   bool
	workers int
}

// New returns a planner that runs independent stage work across up to
// workers goroutines (via errgroup).
func New(workers int) *Planner {
	if workers < 1 {
		workers = 1
	}
	return &Planner{nodes: make(map[uint64]*graph.Node), stale: true, workers: workers}
}

// Register adds n to the scheduled node set and marks the plan stale.
func (p *Planner) Register(n *graph.Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes[n.ID()] = n
	p.stale = true
}

// Unregister removes n (called once a node is fully isolated and dropped).
func (p *Planner) Unregister(n *graph.Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.nodes, n.ID())
	p.stale = true
}

// SetRoots declares which nodes are "output-reachable" by definition (the
// simulation's own output aggregation node(s)); everything that transitively
// feeds a root is a planning candidate.
func (p *Planner) SetRoots(roots ...*graph.Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roots = append([]*graph.Node(nil), roots...)
	p.stale = true
}

// InvalidatePlan marks the cached plan stale; the next Tick/Plan call
// recomputes it before use.
func (p *Planner) InvalidatePlan() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stale = true
}

// Plan recomputes the topological stage order if stale. It is idempotent
// when the graph hasn't changed since the last call.
func (p *Planner) Plan() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stale {
		return
	}
	p.stages = computeStages(p.nodes, p.roots)
	p.stale = false
}

// Tick runs one block: pre-tick callbacks on every live node (order
// unspecified, but before any process()), then the plan's stages in order
// (each stage's nodes run concurrently), then drain, which the caller
// supplies to run enqueued out-of-graph tasks after the final stage.
func (p *Planner) Tick(ctx context.Context, drain func()) error {
	p.Plan()
	p.mu.Lock()
	stages := p.stages
	workers := p.workers
	p.mu.Unlock()

	for _, stage := range stages {
		for _, n := range stage {
			n.RunPreTick()
		}
	}
	for _, stage := range stages {
		if err := runStage(ctx, stage, workers); err != nil {
			return err
		}
	}
	if drain != nil {
		drain()
	}
	return nil
}

// ClearTickProperties clears the "modified this tick" flag on every
// registered node's property map, so WereModified only reports changes
// made since the last tick.
func (p *Planner) ClearTickProperties() {
	p.mu.Lock()
	nodes := make([]*graph.Node, 0, len(p.nodes))
	for _, n := range p.nodes {
		nodes = append(nodes, n)
	}
	p.mu.Unlock()
	for _, n := range nodes {
		n.ClearTickProperties()
	}
}

func runStage(ctx context.Context, stage []*graph.Node, workers int) error {
	if len(stage) <= 1 {
		for _, n := range stage {
			n.RunProcess()
		}
		return nil
	}
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, n := range stage {
		n := n
		g.Go(func() error {
			n.RunProcess()
			return nil
		})
	}
	return g.Wait()
}

// computeStages is the Kahn-style topological sort: live-set computation,
// stage grouping by simultaneous zero-indegree readiness, creation-id
// tie-breaks, and one-block-delay cycle tolerance.
func computeStages(nodes map[uint64]*graph.Node, roots []*graph.Node) [][]*graph.Node {
	live := computeLiveSet(nodes, roots)
	for _, n := range nodes {
		n.MarkCycleTapped(false)
	}

	// Build dependency edges restricted to the live set, plus reverse
	// ("consumer") edges for propagating indegree decrements.
	deps := make(map[uint64][]*graph.Node)   // node -> its live dependencies
	consumers := make(map[uint64][]*graph.Node) // node -> live nodes that depend on it
	for id := range live {
		n := nodes[id]
		n.VisitDependencies(func(d *graph.Node) {
			if _, ok := live[d.ID()]; !ok {
				return
			}
			deps[id] = append(deps[id], d)
			consumers[d.ID()] = append(consumers[d.ID()], n)
		})
	}

	indeg := make(map[uint64]int, len(live))
	for id := range live {
		indeg[id] = len(deps[id])
	}

	remaining := make(map[uint64]*graph.Node, len(live))
	for id, n := range live {
		remaining[id] = n
	}

	var stages [][]*graph.Node
	for len(remaining) > 0 {
		var ready []*graph.Node
		for id, n := range remaining {
			if indeg[id] == 0 {
				ready = append(ready, n)
			}
		}
		if len(ready) == 0 {
			// Cycle: break it by picking the lowest-id remaining node and
			// treating its unresolved dependencies as reading the
			// previous block's output (a one-block delay).
			n := lowestID(remaining)
			n.MarkCycleTapped(true)
			ready = []*graph.Node{n}
		}
		sort.Slice(ready, func(i, j int) bool { return ready[i].ID() < ready[j].ID() })
		stages = append(stages, ready)
		for _, n := range ready {
			delete(remaining, n.ID())
			for _, c := range consumers[n.ID()] {
				if _, ok := remaining[c.ID()]; ok {
					indeg[c.ID()]--
				}
			}
		}
	}
	return stages
}

func lowestID(m map[uint64]*graph.Node) *graph.Node {
	var best *graph.Node
	for _, n := range m {
		if best == nil || n.ID() < best.ID() {
			best = n
		}
	}
	return best
}

// computeLiveSet returns the nodes that must run this block: not Paused,
// and either an ancestor of an output-reachable root (computed as the
// forward closure of VisitDependencies from the roots) or AlwaysPlaying.
func computeLiveSet(nodes map[uint64]*graph.Node, roots []*graph.Node) map[uint64]*graph.Node {
	reachable := make(map[uint64]bool)
	var walk func(n *graph.Node)
	walk = func(n *graph.Node) {
		if reachable[n.ID()] {
			return
		}
		reachable[n.ID()] = true
		if n.State() == graph.Paused {
			// A paused node's own dependencies have no live path to the
			// root through it: stop here rather than marking them
			// reachable (they may still be AlwaysPlaying, or reachable
			// through some other, non-paused path).
			return
		}
		n.VisitDependencies(walk)
	}
	for _, r := range roots {
		walk(r)
	}

	live := make(map[uint64]*graph.Node)
	for id, n := range nodes {
		if n.State() == graph.Paused {
			continue
		}
		if reachable[id] || n.State() == graph.AlwaysPlaying {
			live[id] = n
		}
	}
	return live
}
