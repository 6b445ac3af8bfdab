// Package graph implements the node base, typed property-backed state
// machine, connection fan-in/fan-out, and the implicit remix on channel
// mismatch. It has no scheduling logic of its own; sched consumes
// VisitDependencies to build the plan.
package graph

import (
	"sync"
	"sync/atomic"

	"github.com/zaynotley/sonicgraph/dsp"
	"github.com/zaynotley/sonicgraph/prop"
	"github.com/zaynotley/sonicgraph/sonicerr"
)

// State is a node's playback state.
type State int32

const (
	Paused State = iota
	Playing
	AlwaysPlaying
)

// Impl is implemented by every concrete node type (gain, buffer player,
// delay, panner, ...). Process reads n.InputBuffers() and writes into
// n.OutputBuffers(); it must not block and must run at most once per block.
type Impl interface {
	Process(n *Node)
}

// PreTicker is implemented by node types that need a callback before any
// process() runs for the block (the environment's willTick).
type PreTicker interface {
	PreTick(n *Node)
}

// Port describes a contiguous span of channel buffers within a node's
// input or output buffer array.
type Port struct {
	Start    int
	Channels int
}

// Connection is a fan-in/fan-out audio edge: (Src, SrcPort) -> (Dst,
// DstPort). A channel-count mismatch between the two ports triggers an
// implicit remix using dsp.RemixMatrix.
type Connection struct {
	Src     *Node
	SrcPort int
	Dst     *Node
	DstPort int
}

// Node is the base embedded by every concrete node type. It owns the
// input/output buffer arrays, property map, state, and connection lists.
type Node struct {
	id   uint64
	name string

	mu    sync.Mutex
	state atomic.Int32

	Props *prop.Map
	impl  Impl

	blockSize int

	inputBufs  [][]float32
	outputBufs [][]float32
	inputPorts  []Port
	outputPorts []Port

	incoming []*Connection
	outgoing []*Connection

	// extraDeps lets composite nodes (e.g. env.Source) declare owned
	// sub-nodes as scheduler dependencies without a real connection.
	extraDeps []*Node

	// cycleTapped marks a node whose incoming edge was flagged by the
	// planner as a feedback back-edge: it reads the previous block's
	// output instead of blocking on the current one.
	cycleTapped bool
}

var idCounter atomic.Uint64

// New constructs a bare Node. Concrete node constructors call this, set
// Impl, declare properties, and append ports.
func New(name string, blockSize int, impl Impl) *Node {
	n := &Node{
		id:        idCounter.Add(1),
		name:      name,
		Props:     prop.NewMap(),
		impl:      impl,
		blockSize: blockSize,
	}
	n.state.Store(int32(Paused))
	return n
}

// ID is the creation-order id used by the planner for deterministic
// tie-breaking.
func (n *Node) ID() uint64 { return n.id }

// Name is a human-readable label for logging/debugging.
func (n *Node) Name() string { return n.name }

// State returns the current playback state.
func (n *Node) State() State { return State(n.state.Load()) }

// SetState changes the playback state. Changing state invalidates nothing
// by itself; callers that change liveness call Simulation.InvalidatePlan.
func (n *Node) SetState(s State) { n.state.Store(int32(s)) }

// BlockSize is the simulation's fixed block size.
func (n *Node) BlockSize() int { return n.blockSize }

// AppendInputConnection appends a new input port of the given channel
// width starting at buffer index start, growing the input buffer array if
// needed. Returns the new port's index.
func (n *Node) AppendInputConnection(start, channels int) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.growInputs(start + channels)
	n.inputPorts = append(n.inputPorts, Port{Start: start, Channels: channels})
	return len(n.inputPorts) - 1
}

// AppendOutputConnection appends a new output port.
func (n *Node) AppendOutputConnection(start, channels int) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.growOutputs(start + channels)
	n.outputPorts = append(n.outputPorts, Port{Start: start, Channels: channels})
	return len(n.outputPorts) - 1
}

func (n *Node) growInputs(total int) {
	for len(n.inputBufs) < total {
		n.inputBufs = append(n.inputBufs, make([]float32, n.blockSize))
	}
}

func (n *Node) growOutputs(total int) {
	for len(n.outputBufs) < total {
		n.outputBufs = append(n.outputBufs, make([]float32, n.blockSize))
	}
}

// Resize grows the total input/output channel counts directly, without
// adding ports.
func (n *Node) Resize(inputs, outputs int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.growInputs(inputs)
	n.growOutputs(outputs)
}

// ReconfigureOutputPort changes an existing output port's start/channels
// live. Callers must invalidate the scheduler plan afterward.
func (n *Node) ReconfigureOutputPort(portIdx, start, channels int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if portIdx < 0 || portIdx >= len(n.outputPorts) {
		return sonicerr.New(sonicerr.RANGE, "no such output port %d", portIdx)
	}
	n.growOutputs(start + channels)
	n.outputPorts[portIdx] = Port{Start: start, Channels: channels}
	return nil
}

// NumInputPorts / NumOutputPorts report port counts.
func (n *Node) NumInputPorts() int  { return len(n.inputPorts) }
func (n *Node) NumOutputPorts() int { return len(n.outputPorts) }

// InputBuffers returns the node's full input buffer array (one slice per
// channel), valid for the current block.
func (n *Node) InputBuffers() [][]float32 { return n.inputBufs }

// OutputBuffers returns the node's full output buffer array.
func (n *Node) OutputBuffers() [][]float32 { return n.outputBufs }

// InputChannels returns the buffer slices for a given input port.
func (n *Node) InputChannels(port int) [][]float32 {
	p := n.inputPorts[port]
	return n.inputBufs[p.Start : p.Start+p.Channels]
}

// OutputChannels returns the buffer slices for a given output port.
func (n *Node) OutputChannels(port int) [][]float32 {
	p := n.outputPorts[port]
	return n.outputBufs[p.Start : p.Start+p.Channels]
}

// ZeroInputs clears all input buffers; the scheduler calls this before
// gathering connections for a block so a paused upstream node reads as
// silence.
func (n *Node) ZeroInputs() {
	for _, buf := range n.inputBufs {
		for i := range buf {
			buf[i] = 0
		}
	}
}

// Connect wires this node's output port outIdx to dst's input port inIdx.
// A channel-count mismatch between the two ports is resolved at gather
// time via an implicit remix (dsp.RemixMatrix), not at connect time.
func (n *Node) Connect(outIdx int, dst *Node, inIdx int) error {
	n.mu.Lock()
	if outIdx < 0 || outIdx >= len(n.outputPorts) {
		n.mu.Unlock()
		return sonicerr.New(sonicerr.RANGE, "no such output port %d on %s", outIdx, n.name)
	}
	n.mu.Unlock()
	dst.mu.Lock()
	if inIdx < 0 || inIdx >= len(dst.inputPorts) {
		dst.mu.Unlock()
		return sonicerr.New(sonicerr.RANGE, "no such input port %d on %s", inIdx, dst.name)
	}
	dst.mu.Unlock()

	c := &Connection{Src: n, SrcPort: outIdx, Dst: dst, DstPort: inIdx}
	n.mu.Lock()
	n.outgoing = append(n.outgoing, c)
	n.mu.Unlock()
	dst.mu.Lock()
	dst.incoming = append(dst.incoming, c)
	dst.mu.Unlock()
	return nil
}

// Disconnect removes a specific connection from both endpoints.
func (n *Node) Disconnect(c *Connection) {
	c.Src.mu.Lock()
	c.Src.outgoing = removeConn(c.Src.outgoing, c)
	c.Src.mu.Unlock()
	c.Dst.mu.Lock()
	c.Dst.incoming = removeConn(c.Dst.incoming, c)
	c.Dst.mu.Unlock()
}

func removeConn(list []*Connection, target *Connection) []*Connection {
	out := list[:0]
	for _, c := range list {
		if c != target {
			out = append(out, c)
		}
	}
	return out
}

// Isolate severs every incoming and outgoing connection, breaking the
// ownership cycles that would otherwise keep this node alive forever.
func (n *Node) Isolate() {
	n.mu.Lock()
	incoming := append([]*Connection(nil), n.incoming...)
	outgoing := append([]*Connection(nil), n.outgoing...)
	n.mu.Unlock()
	for _, c := range incoming {
		n.Disconnect(c)
	}
	for _, c := range outgoing {
		n.Disconnect(c)
	}
}

// Outgoing / Incoming expose connection lists for the scheduler and tests.
func (n *Node) Outgoing() []*Connection {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*Connection(nil), n.outgoing...)
}

func (n *Node) Incoming() []*Connection {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*Connection(nil), n.incoming...)
}

// AddExtraDependency registers an owned sub-node (e.g. a source's internal
// panner) as a scheduler dependency without a real audio connection.
func (n *Node) AddExtraDependency(dep *Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.extraDeps = append(n.extraDeps, dep)
}

// VisitDependencies calls visit once for every distinct node this node
// reads from: connection sources plus any extra owned dependencies.
func (n *Node) VisitDependencies(visit func(*Node)) {
	n.mu.Lock()
	incoming := append([]*Connection(nil), n.incoming...)
	extra := append([]*Node(nil), n.extraDeps...)
	n.mu.Unlock()
	seen := make(map[uint64]bool)
	for _, c := range incoming {
		if !seen[c.Src.id] {
			seen[c.Src.id] = true
			visit(c.Src)
		}
	}
	for _, d := range extra {
		if !seen[d.id] {
			seen[d.id] = true
			visit(d)
		}
	}
}

// MarkCycleTapped flags this node as reading a one-block-delayed view of an
// incoming feedback edge, set by the planner when it breaks a cycle.
func (n *Node) MarkCycleTapped(v bool) { n.cycleTapped = v }
func (n *Node) CycleTapped() bool      { return n.cycleTapped }

// gatherInputs fills InputBuffers from every incoming connection, applying
// dsp.RemixMatrix when the source and destination port channel counts
// differ. Called by the scheduler immediately before Process.
func (n *Node) gatherInputs() {
	n.ZeroInputs()
	for _, c := range n.incoming {
		srcBufs := c.Src.OutputChannels(c.SrcPort)
		dstBufs := n.InputChannels(c.DstPort)
		srcCh := len(srcBufs)
		dstCh := len(dstBufs)
		if srcCh == dstCh {
			for ch := 0; ch < srcCh; ch++ {
				addInto(dstBufs[ch], srcBufs[ch])
			}
			continue
		}
		m := dsp.RemixMatrix(srcCh, dstCh)
		mixed := make([][]float32, dstCh)
		for ch := range mixed {
			mixed[ch] = make([]float32, n.blockSize)
		}
		dsp.RemixBlock(m, srcCh, dstCh, srcBufs, mixed)
		for ch := 0; ch < dstCh; ch++ {
			addInto(dstBufs[ch], mixed[ch])
		}
	}
}

func addInto(dst, src []float32) {
	for i := range dst {
		dst[i] += src[i]
	}
}

// RunProcess gathers inputs from connections (remixing as needed) and
// invokes the concrete Impl's Process. The scheduler guarantees this runs
// at most once per node per block.
func (n *Node) RunProcess() {
	n.gatherInputs()
	if n.impl != nil {
		n.impl.Process(n)
	}
}

// RunPreTick invokes the Impl's PreTick hook if it implements PreTicker.
func (n *Node) RunPreTick() {
	if pt, ok := n.impl.(PreTicker); ok {
		pt.PreTick(n)
	}
}

// ClearTickProperties clears the "modified this tick" flags on this node's
// property map at the block boundary.
func (n *Node) ClearTickProperties() {
	n.Props.ClearModified()
}
