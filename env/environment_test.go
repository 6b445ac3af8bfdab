package env

import (
	"testing"

	"github.com/goki/mat32"

	"github.com/zaynotley/sonicgraph/buffer"
	"github.com/zaynotley/sonicgraph/graph"
	"github.com/zaynotley/sonicgraph/nodes"
)

type fakeOwner struct {
	tasks       []func()
	invalidated int
	registered  []*graph.Node
}

func (o *fakeOwner) EnqueueTask(fn func())     { o.tasks = append(o.tasks, fn) }
func (o *fakeOwner) InvalidatePlan()           { o.invalidated++ }
func (o *fakeOwner) RegisterNode(n *graph.Node) { o.registered = append(o.registered, n) }

func newTestEnvironment() (*Environment, *fakeOwner) {
	owner := &fakeOwner{}
	e := New(owner, 44100, 16, nil)
	return e, owner
}

func TestIdentityTransformIsNoOp(t *testing.T) {
	tr := identityTransform()
	x, y, z := tr.apply(mat32.Vec3{X: 1, Y: 2, Z: 3})
	if x != 1 || y != 2 || z != 3 {
		t.Fatalf("identity transform changed point: got (%v,%v,%v)", x, y, z)
	}
}

func TestRecomputeTransformTranslatesListenerToOrigin(t *testing.T) {
	e, _ := newTestEnvironment()
	if err := e.Props.SetFloat3("position", 0, 0, -5); err != nil {
		t.Fatal(err)
	}
	e.recomputeTransform()

	x, y, z := e.snapshot.WorldToListener.apply(mat32.Vec3{X: 0, Y: 0, Z: -5})
	if x != 0 || y != 0 || z != 0 {
		t.Fatalf("listener's own world position should map to the origin, got (%v,%v,%v)", x, y, z)
	}
}

func TestRecomputeTransformProjectsForwardAxis(t *testing.T) {
	e, _ := newTestEnvironment()
	// Listener at origin, facing +X instead of the default -Z.
	if err := e.Props.SetFloat6("orientation", [6]float32{1, 0, 0, 0, 1, 0}); err != nil {
		t.Fatal(err)
	}
	e.recomputeTransform()

	// A point 10 units along the listener's forward axis (+X) should land
	// directly "in front", i.e. at -Z in listener space (per the -Z-forward
	// listener convention used throughout the panner pipeline).
	x, y, z := e.snapshot.WorldToListener.apply(mat32.Vec3{X: 10, Y: 0, Z: 0})
	if y != 0 {
		t.Fatalf("expected no vertical component, got y=%v", y)
	}
	if z >= 0 {
		t.Fatalf("point ahead of the listener should have negative listener-space Z, got (%v,%v,%v)", x, y, z)
	}
}

func TestAddEffectSendValidatesChannelCount(t *testing.T) {
	e, _ := newTestEnvironment()
	if _, err := e.AddEffectSend(3, false, false); err == nil {
		t.Fatal("expected error for invalid channel count")
	}
	if _, err := e.AddEffectSend(2, true, false); err == nil {
		t.Fatal("expected error: reverb sends must be 4 channels")
	}
	if _, err := e.AddEffectSend(4, true, false); err != nil {
		t.Fatalf("4ch reverb send should be valid: %v", err)
	}
}

func TestAddEffectSendGrowsPortsAndRecordsOffset(t *testing.T) {
	e, _ := newTestEnvironment()
	idx, err := e.AddEffectSend(2, false, true)
	if err != nil {
		t.Fatal(err)
	}
	info, err := e.EffectSendInfo(idx)
	if err != nil {
		t.Fatal(err)
	}
	if info.Channels != 2 || info.StartIndex != baseAggregationChannels || !info.ConnectByDefault {
		t.Fatalf("unexpected send info: %+v", info)
	}
	if got, want := len(e.OutputBuffers()), baseAggregationChannels+2; got != want {
		t.Fatalf("expected %d output channels, got %d", want, got)
	}

	idx2, err := e.AddEffectSend(4, true, false)
	if err != nil {
		t.Fatal(err)
	}
	info2, _ := e.EffectSendInfo(idx2)
	if info2.StartIndex != baseAggregationChannels+2 {
		t.Fatalf("second send should start after the first, got %d", info2.StartIndex)
	}
}

func TestEffectSendInfoRejectsOutOfRange(t *testing.T) {
	e, _ := newTestEnvironment()
	if _, err := e.EffectSendInfo(0); err == nil {
		t.Fatal("expected error for an environment with no sends yet")
	}
}

func TestAddEffectSendFeedsExistingSourcesWhenConnectByDefault(t *testing.T) {
	e, _ := newTestEnvironment()
	src := NewSource(e, e.BlockSize())

	idx, err := e.AddEffectSend(2, false, true)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := src.effectGains[idx]; !ok {
		t.Fatal("pre-existing source should have been fed the new default-connected send")
	}
}

func TestAddEffectSendDoesNotFeedExistingSourcesWhenNotConnectByDefault(t *testing.T) {
	e, _ := newTestEnvironment()
	src := NewSource(e, e.BlockSize())

	idx, err := e.AddEffectSend(2, false, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := src.effectGains[idx]; ok {
		t.Fatal("source should not be fed a send whose ConnectByDefault is false")
	}
}

func TestPlayAsyncAllocatesNewPairWhileCacheEmpty(t *testing.T) {
	e, owner := newTestEnvironment()
	buf, err := buffer.LoadFromArray(44100, 44100, 1, 8, [][]float32{make([]float32, 8)})
	if err != nil {
		t.Fatal(err)
	}

	e.PlayAsync(buf, 1, 0, 0, true)
	registeredAfterFirst := len(owner.registered)
	if registeredAfterFirst == 0 {
		t.Fatal("expected PlayAsync to register nodes for a freshly created pair")
	}

	e.mu.Lock()
	cached := len(e.playAsyncCache)
	e.mu.Unlock()
	if cached != 0 {
		t.Fatalf("pair should not be cached until reclaimed, got %d cached", cached)
	}

	e.PlayAsync(buf, 2, 0, 0, true)
	if len(owner.registered) == registeredAfterFirst {
		t.Fatal("expected a second concurrent playback to allocate its own pair")
	}
}

func TestReclaimPlayerCachesUnderCapacityAndIsolatesOverCapacity(t *testing.T) {
	e, _ := newTestEnvironment()
	e.SetPlayAsyncCacheCapacity(1)
	buf, err := buffer.LoadFromArray(44100, 44100, 1, 8, [][]float32{make([]float32, 8)})
	if err != nil {
		t.Fatal(err)
	}

	e.PlayAsync(buf, 0, 0, 0, true)

	// Drive two independent pairs through reclaim: the first should be
	// cached (capacity 1), the second should be isolated.
	src1 := NewSource(e, e.BlockSize())
	src2 := NewSource(e, e.BlockSize())
	buf1 := nodes.NewBufferNode(e.owner, e.srHz, e.BlockSize(), 1)
	buf2 := nodes.NewBufferNode(e.owner, e.srHz, e.BlockSize(), 1)

	e.reclaimPlayer(cachedPlayer{buf: buf1, source: src1})
	e.mu.Lock()
	n := len(e.playAsyncCache)
	e.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected 1 cached pair at capacity 1, got %d", n)
	}

	e.reclaimPlayer(cachedPlayer{buf: buf2, source: src2})
	e.mu.Lock()
	n = len(e.playAsyncCache)
	e.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected the cache to stay at capacity 1, got %d", n)
	}
	if src2.State() != graph.Paused {
		t.Fatal("an over-capacity reclaimed source should still be paused before isolation")
	}
}
