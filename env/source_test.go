package env

import (
	"math"
	"testing"

	"github.com/zaynotley/sonicgraph/graph"
	"github.com/zaynotley/sonicgraph/nodes"
)

func TestCalculateGainForDistanceModel(t *testing.T) {
	cases := []struct {
		name                              string
		model                             DistanceModel
		distance, maxDistance, reference  float32
		want                              float32
	}{
		{"linear at reference", DistanceLinear, 10, 100, 10, 1},
		{"linear halfway", DistanceLinear, 60, 100, 10, 0.5},
		{"linear beyond max is zero", DistanceLinear, 500, 100, 10, 0},
		{"exponential at adjusted=1", DistanceExponential, 11, 100, 10, 1},
		{"exponential falls off", DistanceExponential, 20, 100, 10, 0.1},
		{"inverse square falls off faster", DistanceInverseSquare, 20, 100, 10, 0.01},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := calculateGainForDistanceModel(c.model, c.distance, c.maxDistance, c.reference)
			if math.Abs(float64(got-c.want)) > 1e-5 {
				t.Fatalf("got %v want %v", got, c.want)
			}
		})
	}
}

func TestCalculateGainForDistanceModelNeverNegative(t *testing.T) {
	got := calculateGainForDistanceModel(DistanceLinear, 200, 100, 10)
	if got < 0 {
		t.Fatalf("gain should be clamped at zero, got %v", got)
	}
}

func newTestSource(t *testing.T) (*Environment, *Source) {
	t.Helper()
	e, _ := newTestEnvironment()
	return e, NewSource(e, e.BlockSize())
}

func TestNewSourceCopiesEnvironmentDefaults(t *testing.T) {
	e, _ := newTestEnvironment()
	_ = e.Props.SetFloat("default_max_distance", 42)
	_ = e.Props.SetInt("default_distance_model", int64(DistanceExponential))

	s := NewSource(e, e.BlockSize())
	got, _ := s.Props.GetFloat("max_distance")
	if got != 42 {
		t.Fatalf("expected max_distance copied from environment default, got %v", got)
	}
	model, _ := s.Props.GetInt("distance_model")
	if DistanceModel(model) != DistanceExponential {
		t.Fatalf("expected distance_model copied from environment default, got %v", model)
	}
}

func TestSourceUpdateCullsBeyondMaxDistance(t *testing.T) {
	e, s := newTestSource(t)
	_ = s.Props.SetFloat("max_distance", 10)
	_ = s.Props.SetFloat3("position", 1000, 0, 0)

	s.Update(e.snapshot)
	if !s.culled {
		t.Fatal("expected source beyond max_distance to be culled")
	}
}

func TestSourceUpdateUncullsWhenBackInRange(t *testing.T) {
	e, s := newTestSource(t)
	_ = s.Props.SetFloat("max_distance", 10)
	_ = s.Props.SetFloat3("position", 1000, 0, 0)
	s.Update(e.snapshot)
	if !s.culled {
		t.Fatal("expected source to be culled first")
	}

	_ = s.Props.SetFloat3("position", 1, 0, 0)
	s.Update(e.snapshot)
	if s.culled {
		t.Fatal("expected source back in range to be un-culled")
	}
}

func TestHandleStateUpdatesPausesPannerOnCullTransition(t *testing.T) {
	_, s := newTestSource(t)
	s.SetState(graph.Playing)
	s.panner.SetState(graph.Playing)

	s.handleStateUpdates(true) // culled=false -> shouldCull=true transition
	if s.panner.State() != graph.Paused {
		t.Fatalf("panner should be explicitly paused on the cull transition, got %v", s.panner.State())
	}
	if s.input.State() != graph.AlwaysPlaying {
		t.Fatalf("input should be AlwaysPlaying while the owning source keeps playing, got %v", s.input.State())
	}
}

func TestHandleStateUpdatesTracksOwnStateWhileStaysCulled(t *testing.T) {
	e, s := newTestSource(t)
	_ = e
	s.SetState(graph.Playing)

	s.handleStateUpdates(true) // enters culled
	s.panner.SetState(graph.Paused) // simulate the explicit pause from the transition tick

	s.handleStateUpdates(true) // stays culled: panner should now track own state again
	if s.panner.State() != graph.Playing {
		t.Fatalf("panner should track the source's own state on every tick except the cull transition, got %v", s.panner.State())
	}
}

func TestHandleStateUpdatesResumesInputOnUncull(t *testing.T) {
	e, s := newTestSource(t)
	_ = e
	s.SetState(graph.Playing)
	s.handleStateUpdates(true)

	s.handleStateUpdates(false)
	if s.input.State() != graph.Playing {
		t.Fatalf("input should resume Playing when un-culled, got %v", s.input.State())
	}
	if s.panner.State() != graph.Playing {
		t.Fatalf("panner should follow the source's own state when un-culled, got %v", s.panner.State())
	}
}

func TestSourceFeedEffectIsIdempotent(t *testing.T) {
	e, s := newTestSource(t)
	idx, err := e.AddEffectSend(2, false, false)
	if err != nil {
		t.Fatal(err)
	}
	s.FeedEffect(idx)
	gain := s.effectGains[idx]
	s.FeedEffect(idx)
	if s.effectGains[idx] != gain {
		t.Fatal("feeding an already-fed effect send should be a no-op")
	}
}

func TestSourceStopFeedingEffectRemovesGain(t *testing.T) {
	e, s := newTestSource(t)
	idx, err := e.AddEffectSend(2, false, false)
	if err != nil {
		t.Fatal(err)
	}
	s.FeedEffect(idx)
	if _, ok := s.effectGains[idx]; !ok {
		t.Fatal("expected effect gain to be present after FeedEffect")
	}
	s.StopFeedingEffect(idx)
	if _, ok := s.effectGains[idx]; ok {
		t.Fatal("expected effect gain to be removed after StopFeedingEffect")
	}
}

func TestPannerForChannelsSkipsSpatializationForMonoSend(t *testing.T) {
	e, s := newTestSource(t)
	_ = e
	if got := s.pannerForChannels(1); got != s.input.Node {
		t.Fatalf("a 1-channel send should read straight off the input gain, got %v", got.Name())
	}
	if got := s.pannerForChannels(4); got != s.effectPan[1].Node {
		t.Fatalf("a 4-channel send should use the matching prebuilt effect panner, got %v", got.Name())
	}
}

func TestSourceUpdateSplitsDryAndReverbGainAcrossSends(t *testing.T) {
	e, s := newTestSource(t)
	dryIdx, err := e.AddEffectSend(2, false, false)
	if err != nil {
		t.Fatal(err)
	}
	reverbIdx, err := e.AddEffectSend(4, true, false)
	if err != nil {
		t.Fatal(err)
	}
	s.FeedEffect(dryIdx)
	s.FeedEffect(reverbIdx)

	_ = s.Props.SetFloat3("position", 5, 0, 0)
	s.Update(e.snapshot)

	dryMul, _ := s.effectGains[dryIdx].Props.GetFloat("mul")
	reverbMul, _ := s.effectGains[reverbIdx].Props.GetFloat("mul")
	if dryMul == 0 {
		t.Fatal("dry send should carry a nonzero gain for a nearby source")
	}
	// Defaults: linear model, max_distance 150, reverb_distance 75,
	// min_reverb 0, max_reverb 1. Unsplit dry gain is 1-5/150 = 29/30; the
	// single reverb send takes 29/30 * 5/75 of it and the dry send keeps the rest.
	if reverbMul <= 0 {
		t.Fatalf("reverb send should carry a nonzero gain, got %v", reverbMul)
	}
	if math.Abs(float64(dryMul+reverbMul)-29.0/30.0) > 1e-5 {
		t.Fatalf("dry (%v) + reverb (%v) should add up to the unsplit dry gain 29/30", dryMul, reverbMul)
	}
}

func TestCountReverbSendsCountsOnlyReverb(t *testing.T) {
	e, s := newTestSource(t)
	dryIdx, _ := e.AddEffectSend(2, false, false)
	reverbIdx, _ := e.AddEffectSend(4, true, false)
	s.FeedEffect(dryIdx)
	s.FeedEffect(reverbIdx)

	if got := s.countReverbSends(); got != 1 {
		t.Fatalf("expected exactly 1 reverb send counted, got %d", got)
	}
}

var _ = nodes.StrategyStereo
