// Package env implements the 3D environment/source subsystem: listener
// transform, distance-model gain math, effect-send routing, and the
// weak-reference source registry. Grounded directly on libaudioverse's
// EnvironmentNode/SourceNode (environment.cpp, source.cpp):
// same per-block sequence (willTick computes the snapshot and updates every
// live source before any process() runs; process() is a straight copy of
// the aggregation buffers to the output), reworked onto graph.Node's
// generic connection-sum mechanism instead of hand-filled arrays.
package env

import (
	"sync"
	"weak"

	"github.com/goki/mat32"

	"github.com/zaynotley/sonicgraph/buffer"
	"github.com/zaynotley/sonicgraph/graph"
	"github.com/zaynotley/sonicgraph/hrtf"
	"github.com/zaynotley/sonicgraph/nodes"
	"github.com/zaynotley/sonicgraph/sonicerr"
)

// DistanceModel selects the gain-falloff curve Source.update uses.
type DistanceModel int64

const (
	DistanceLinear DistanceModel = iota
	DistanceExponential
	DistanceInverseSquare
	DistanceDelegate
)

// EffectSend describes one auxiliary bus an environment routes sources
// into: a channel count, its offset within the shared input/output channel
// arrays, and whether it is a reverb bus (which must be exactly 4 channels).
type EffectSend struct {
	Channels         int
	StartIndex       int
	IsReverb         bool
	ConnectByDefault bool
}

// Owner is the subset of *sim.Simulation the environment and its sources
// need: task scheduling for buffer-end callbacks, plan invalidation when
// the dependency graph changes, and node registration for newly created
// source/effect nodes.
type Owner interface {
	nodes.TaskEnqueuer
	InvalidatePlan()
	RegisterNode(n *graph.Node)
}

// ListenerTransform is the world-to-listener rotation+translation,
// expressed as the three orthonormal basis rows (Right, Up, Back = -at)
// plus the already-rotated, negated translation — the same affine map
// environment.cpp builds as a glm::mat4, just named instead of flattened
// into a generic 4x4 (no third-party matrix type in the retrieved example
// pack was grounded with an in-pack usage site; see DESIGN.md).
type ListenerTransform struct {
	Right, Up, Back mat32.Vec3
	Translation     mat32.Vec3
}

func (t ListenerTransform) apply(p mat32.Vec3) (float32, float32, float32) {
	x := t.Right.X*p.X + t.Right.Y*p.Y + t.Right.Z*p.Z + t.Translation.X
	y := t.Up.X*p.X + t.Up.Y*p.Y + t.Up.Z*p.Z + t.Translation.Y
	z := t.Back.X*p.X + t.Back.Y*p.Y + t.Back.Z*p.Z + t.Translation.Z
	return x, y, z
}

// Snapshot is produced once per block, before any source updates.
type Snapshot struct {
	WorldToListener ListenerTransform
	DistanceModel   DistanceModel
	PanningStrategy nodes.Strategy
}

// Environment aggregates every registered source's panner output into 8
// internal mono buses plus one bus per effect send, and re-exposes them on
// its own output.
type Environment struct {
	*graph.Node
	owner    Owner
	hrtf     *hrtf.Data
	srHz     float64

	mu      sync.Mutex
	sources []weak.Pointer[Source]
	sends   []EffectSend

	snapshot           Snapshot
	playAsyncCache     []cachedPlayer
	playAsyncCacheCap  int
}

type cachedPlayer struct {
	buf    *nodes.BufferNode
	source *Source
}

const baseAggregationChannels = 8

// New constructs an environment bound to owner, with the given HRTF dataset
// (nil disables the HRTF strategy for its sources) and a default
// playAsync cache capacity.
func New(owner Owner, srHz float64, blockSize int, hrtfData *hrtf.Data) *Environment {
	e := &Environment{owner: owner, hrtf: hrtfData, srHz: srHz, playAsyncCacheCap: 64}
	e.Node = graph.New("environment", blockSize, e)
	e.Props.Declare("distance_model", intProp(int64(DistanceLinear)), enumRange(int64(DistanceLinear), int64(DistanceExponential), int64(DistanceInverseSquare), int64(DistanceDelegate)))
	e.Props.Declare("panning_strategy", intProp(int64(nodes.StrategyDelegate)), enumRange(
		int64(nodes.StrategyStereo), int64(nodes.StrategySurround40), int64(nodes.StrategySurround51),
		int64(nodes.StrategySurround71), int64(nodes.StrategyHRTF), int64(nodes.StrategyDelegate)))
	e.Props.Declare("position", float3Prop(0, 0, 0), noRange())
	e.Props.Declare("orientation", float6Prop(0, 0, -1, 0, 1, 0), noRange())

	e.Props.Declare("default_distance_model", intProp(int64(DistanceLinear)), noRange())
	e.Props.Declare("default_max_distance", floatProp(150), noRange())
	e.Props.Declare("default_size", floatProp(0), noRange())
	e.Props.Declare("default_reverb_distance", floatProp(75), noRange())
	e.Props.Declare("default_panner_strategy", intProp(int64(nodes.StrategyStereo)), noRange())

	e.AppendInputConnection(0, baseAggregationChannels)
	e.AppendOutputConnection(0, baseAggregationChannels)
	e.snapshot.WorldToListener = identityTransform()
	owner.RegisterNode(e.Node)
	return e
}

// identityTransform matches environment.cpp's initial
// lookAt(origin, looking down -Z, up +Y): facing -Z is already the
// identity rotation in this basis, so Right/Up/Back are the standard axes
// and there is no translation.
func identityTransform() ListenerTransform {
	return ListenerTransform{
		Right: mat32.Vec3{X: 1, Y: 0, Z: 0},
		Up:    mat32.Vec3{X: 0, Y: 1, Z: 0},
		Back:  mat32.Vec3{X: 0, Y: 0, Z: 1},
	}
}

// SetPlayAsyncCacheCapacity overrides the default bound on how many
// (BufferNode, Source) pairs playAsync keeps for reuse.
func (e *Environment) SetPlayAsyncCacheCapacity(n int) { e.playAsyncCacheCap = n }

// OutputTarget is the node sources connect their panner/effect-gain output
// into (itself: the environment's own input ports are the aggregation
// buses).
func (e *Environment) OutputTarget() *graph.Node { return e.Node }

// registerSource adds src to the weak-reference registry and invalidates
// the plan, since a source's owned nodes are new scheduler dependencies.
func (e *Environment) registerSource(src *Source) {
	e.mu.Lock()
	e.sources = append(e.sources, weak.Make(src))
	e.mu.Unlock()
	e.owner.InvalidatePlan()
}

// AddEffectSend appends a new effect-send bus and returns its internal
// (0-based) index. Reverb sends must be exactly 4 channels.
func (e *Environment) AddEffectSend(channels int, isReverb, connectByDefault bool) (int, error) {
	switch channels {
	case 1, 2, 4, 6, 8:
	default:
		return 0, sonicerr.New(sonicerr.RANGE, "effect send channel count must be 1, 2, 4, 6, or 8, got %d", channels)
	}
	if isReverb && channels != 4 {
		return 0, sonicerr.New(sonicerr.RANGE, "reverb sends must have exactly 4 channels")
	}
	e.mu.Lock()
	start := len(e.OutputBuffers())
	send := EffectSend{Channels: channels, StartIndex: start, IsReverb: isReverb, ConnectByDefault: connectByDefault}
	e.AppendInputConnection(start, channels)
	e.AppendOutputConnection(start, channels)
	index := len(e.sends)
	e.sends = append(e.sends, send)
	sources := e.liveSourcesLocked()
	e.mu.Unlock()

	if connectByDefault {
		for _, s := range sources {
			s.FeedEffect(index)
		}
	}
	e.owner.InvalidatePlan()
	return index, nil
}

// EffectSendInfo returns the (0-based) send's configuration.
func (e *Environment) EffectSendInfo(index int) (EffectSend, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.sends) {
		return EffectSend{}, sonicerr.New(sonicerr.RANGE, "no such effect send %d", index)
	}
	return e.sends[index], nil
}

func (e *Environment) liveSourcesLocked() []*Source {
	live := e.sources[:0]
	var out []*Source
	for _, w := range e.sources {
		if s := w.Value(); s != nil {
			live = append(live, w)
			out = append(out, s)
		}
	}
	e.sources = live
	return out
}

// PreTick is the environment's willTick: recompute the listener transform
// and strategy snapshot if changed, then update every live source in turn.
// It runs before any node's Process for this block.
func (e *Environment) PreTick(n *graph.Node) {
	if e.Props.WereModified("position", "orientation") {
		e.recomputeTransform()
	}
	model, _ := e.Props.GetInt("distance_model")
	if DistanceModel(model) == DistanceDelegate {
		model = int64(DistanceLinear)
	}
	e.snapshot.DistanceModel = DistanceModel(model)

	strategy, _ := e.Props.GetInt("panning_strategy")
	if nodes.Strategy(strategy) == nodes.StrategyDelegate {
		strategy = int64(nodes.StrategyStereo)
	}
	e.snapshot.PanningStrategy = nodes.Strategy(strategy)

	e.mu.Lock()
	sources := e.liveSourcesLocked()
	e.mu.Unlock()
	for _, s := range sources {
		s.Update(e.snapshot)
	}
}

// recomputeTransform mirrors environment.cpp's willTick matrix rebuild:
// right = cross(at, up); the new basis rows are (right, up, -at); the
// translation is -(rotation applied to position), so that applying the
// transform to a world point q yields the point's coordinates in listener
// space, i.e. the world offset (q - position) projected onto each axis.
func (e *Environment) recomputeTransform() {
	pos, _ := e.Props.GetFloat3("position")
	atup, _ := e.Props.GetFloat6("orientation")
	at := mat32.Vec3{X: atup[0], Y: atup[1], Z: atup[2]}
	up := mat32.Vec3{X: atup[3], Y: atup[4], Z: atup[5]}
	right := at.Cross(up)
	back := mat32.Vec3{X: -at.X, Y: -at.Y, Z: -at.Z}

	p := mat32.Vec3{X: pos[0], Y: pos[1], Z: pos[2]}
	posX := right.X*p.X + right.Y*p.Y + right.Z*p.Z
	posY := up.X*p.X + up.Y*p.Y + up.Z*p.Z
	posZ := back.X*p.X + back.Y*p.Y + back.Z*p.Z

	t := ListenerTransform{
		Right:       right,
		Up:          up,
		Back:        back,
		Translation: mat32.Vec3{X: -posX, Y: -posY, Z: -posZ},
	}

	e.mu.Lock()
	e.snapshot.WorldToListener = t
	e.mu.Unlock()
}

// PlayAsync spatializes one buffer at (x, y, z), reusing a cached
// (BufferNode, Source) pair where available (environment.cpp's playAsync).
// A dry playback feeds no effect sends; otherwise every send whose
// ConnectByDefault is set gets fed, the same gating AddEffectSend applies
// to existing sources.
func (e *Environment) PlayAsync(buf *buffer.Buffer, x, y, z float32, isDry bool) {
	e.mu.Lock()
	var cp cachedPlayer
	if n := len(e.playAsyncCache); n > 0 {
		cp = e.playAsyncCache[n-1]
		e.playAsyncCache = e.playAsyncCache[:n-1]
	}
	e.mu.Unlock()

	if cp.source == nil {
		cp.buf = nodes.NewBufferNode(e.owner, e.srHz, e.BlockSize(), 1)
		cp.source = NewSource(e, e.BlockSize())
		_ = cp.buf.Connect(0, cp.source.input.Node, 0)
		e.owner.RegisterNode(cp.buf.Node)
		cp.source.AddExtraDependency(cp.buf.Node)
	} else {
		cp.source.SetState(graph.Playing)
	}

	cp.buf.SetBuffer(buf)
	_ = cp.source.Props.SetFloat3("position", x, y, z)

	if isDry {
		for which := range cp.source.effectGains {
			cp.source.StopFeedingEffect(which)
		}
	} else {
		e.mu.Lock()
		sends := append([]EffectSend(nil), e.sends...)
		e.mu.Unlock()
		for i, send := range sends {
			if send.ConnectByDefault {
				cp.source.FeedEffect(i)
			}
		}
	}

	// Update immediately so culling and panner placement apply before the
	// very first block this source is audible in, then clear any stale
	// HRTF crossfade history left over from the previous occupant.
	cp.source.Update(e.snapshot)
	cp.source.Reset()

	cp.buf.SetEndCallback(func() { e.reclaimPlayer(cp) })
	e.owner.InvalidatePlan()
}

// reclaimPlayer returns a finished (BufferNode, Source) pair to the cache,
// or isolates it permanently once the cache is at capacity.
func (e *Environment) reclaimPlayer(cp cachedPlayer) {
	cp.buf.SetBuffer(nil)
	cp.source.SetState(graph.Paused)

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.playAsyncCache) >= e.playAsyncCacheCap {
		cp.source.Isolate()
		cp.buf.Isolate()
		return
	}
	e.playAsyncCache = append(e.playAsyncCache, cp)
}

func (e *Environment) Process(n *graph.Node) {
	in := n.InputBuffers()
	out := n.OutputBuffers()
	for ch := 0; ch < len(out) && ch < len(in); ch++ {
		copy(out[ch], in[ch])
	}
}
