package env

import (
	"math"

	"github.com/goki/mat32"

	"github.com/zaynotley/sonicgraph/graph"
	"github.com/zaynotley/sonicgraph/nodes"
)

// Source coordinates one point in space: an input gain, a multipanner
// feeding the environment's base bus, and up to one gain node per effect
// send it feeds. It is itself a (portless) graph.Node purely so it carries
// its own independent playback State, mirrored into its owned nodes by
// Update (source.cpp's SourceNode/handleStateUpdates).
type Source struct {
	*graph.Node
	env       *Environment
	input     *nodes.GainNode
	panner    *nodes.MultipannerNode
	effectPan [4]*nodes.AmplitudePanner // prebuilt, indexed by channel-count slot: 2,4,6,8

	effectGains map[int]*nodes.GainNode // keyed by effect-send index
	culled      bool
}

var effectPannerChannels = [4]int{2, 4, 6, 8}

// NewSource constructs a source registered against e, wiring input gain ->
// multipanner -> e's base aggregation bus, and input gain -> each of the 4
// prebuilt effect panners (not yet connected to any send).
func NewSource(e *Environment, blockSize int) *Source {
	s := &Source{env: e, effectGains: make(map[int]*nodes.GainNode)}
	s.Node = graph.New("source", blockSize, s)
	s.Props.Declare("position", float3Prop(0, 0, 0), noRange())
	s.Props.Declare("head_relative", intProp(0), enumRange(0, 1))
	s.Props.Declare("size", floatProp(0), noRange())
	s.Props.Declare("max_distance", floatProp(150), noRange())
	s.Props.Declare("distance_model", intProp(int64(DistanceDelegate)),
		enumRange(int64(DistanceLinear), int64(DistanceExponential), int64(DistanceInverseSquare), int64(DistanceDelegate)))
	s.Props.Declare("reverb_distance", floatProp(75), noRange())
	s.Props.Declare("min_reverb", floatProp(0), noRange())
	s.Props.Declare("max_reverb", floatProp(1), noRange())
	s.Props.Declare("panning_strategy", intProp(int64(nodes.StrategyDelegate)),
		enumRange(int64(nodes.StrategyStereo), int64(nodes.StrategySurround40), int64(nodes.StrategySurround51),
			int64(nodes.StrategySurround71), int64(nodes.StrategyHRTF), int64(nodes.StrategyDelegate)))
	s.Props.Declare("mul", floatProp(1), noRange())

	// Defaults are copied from the environment once at construction, per
	// source.cpp's constructor comment: "we have to read off these defaults
	// manually, and it must always be the last thing in the constructor."
	s.copyDefault("distance_model", "default_distance_model")
	s.copyDefault("max_distance", "default_max_distance")
	s.copyDefault("panning_strategy", "default_panner_strategy")
	s.copyDefault("size", "default_size")
	s.copyDefault("reverb_distance", "default_reverb_distance")

	s.input = nodes.NewGain(blockSize, 1)
	s.panner = nodes.NewMultipanner(blockSize, e.hrtf)
	for i, ch := range effectPannerChannels {
		s.effectPan[i] = nodes.NewAmplitudePanner(blockSize, ch)
		_ = s.input.Connect(0, s.effectPan[i].Node, 0)
	}
	_ = s.input.Connect(0, s.panner.Node, 0)
	_ = s.panner.Connect(0, e.OutputTarget(), 0)

	s.AddExtraDependency(s.input.Node)
	s.AddExtraDependency(s.panner.Node)
	for _, p := range s.effectPan {
		s.AddExtraDependency(p.Node)
	}

	e.owner.RegisterNode(s.input.Node)
	e.owner.RegisterNode(s.panner.Node)
	for _, p := range s.effectPan {
		e.owner.RegisterNode(p.Node)
	}
	e.owner.RegisterNode(s.Node)
	e.registerSource(s)
	return s
}

func (s *Source) copyDefault(localTag, envTag string) {
	switch localTag {
	case "size", "max_distance", "reverb_distance":
		v, _ := s.env.Props.GetFloat(envTag)
		_ = s.Props.SetFloat(localTag, v)
	default:
		v, _ := s.env.Props.GetInt(envTag)
		_ = s.Props.SetInt(localTag, v)
	}
}

// FeedEffect connects this source to effect send `which`, idempotent if
// already feeding it (source.cpp's feedEffect).
func (s *Source) FeedEffect(which int) {
	if _, ok := s.effectGains[which]; ok {
		return
	}
	info, err := s.env.EffectSendInfo(which)
	if err != nil {
		return
	}
	gain := nodes.NewGain(s.BlockSize(), info.Channels)
	pan := s.pannerForChannels(info.Channels)
	_ = pan.Connect(0, gain.Node, 0)
	_ = gain.Connect(0, s.env.OutputTarget(), which+1)
	gain.SetState(s.panner.State())

	s.effectGains[which] = gain
	s.AddExtraDependency(gain.Node)
	s.env.owner.RegisterNode(gain.Node)
	s.env.owner.InvalidatePlan()
}

// StopFeedingEffect disconnects and isolates the gain node feeding send
// `which`, if any (source.cpp's stopFeedingEffect).
func (s *Source) StopFeedingEffect(which int) {
	gain, ok := s.effectGains[which]
	if !ok {
		return
	}
	gain.Isolate()
	delete(s.effectGains, which)
	s.env.owner.InvalidatePlan()
}

// pannerForChannels mirrors source.cpp's getPannerForEffectChannels: a
// 1-channel send skips spatialization entirely and reads straight off the
// input gain.
func (s *Source) pannerForChannels(channels int) *graph.Node {
	if channels == 1 {
		return s.input.Node
	}
	for i, ch := range effectPannerChannels {
		if ch == channels {
			return s.effectPan[i].Node
		}
	}
	return s.input.Node
}

// Reset clears the HRTF panner's convolution history, so a source pulled
// from a reuse cache doesn't bleed audio from whatever direction it last
// played at (environment.cpp's playAsync calling source->reset()).
func (s *Source) Reset() {
	s.panner.Reset()
}

// handleStateUpdates mirrors source.cpp exactly: two independent
// if/else-if chains, not a single four-way switch. In particular, while a
// source stays culled across consecutive blocks the panner's state still
// tracks the source's own desired state every tick except on the one block
// where culling begins (where it is explicitly paused) — matching the
// original rather than a "cleaner" always-paused-while-culled rule.
func (s *Source) handleStateUpdates(shouldCull bool) {
	own := s.State()
	if s.culled && shouldCull {
		if own != graph.Paused {
			s.input.SetState(graph.AlwaysPlaying)
		} else {
			s.input.SetState(graph.Paused)
		}
	} else if s.culled && !shouldCull {
		s.input.SetState(graph.Playing)
		s.panner.SetState(own)
	}
	if !s.culled && shouldCull {
		s.panner.SetState(graph.Paused)
		if own != graph.Paused {
			s.input.SetState(graph.AlwaysPlaying)
		} else {
			s.input.SetState(graph.Paused)
		}
	} else {
		s.panner.SetState(own)
	}
	s.culled = shouldCull
}

// calculateGainForDistanceModel reproduces source.cpp's
// calculateGainForDistanceModel exactly, safety clamp for negative results
// included; it is not guarded against adjustedDistance==0 for the
// Exponential/InverseSquare models, matching the original.
func calculateGainForDistanceModel(model DistanceModel, distance, maxDistance, referenceDistance float32) float32 {
	adjusted := distance - referenceDistance
	if adjusted < 0 {
		adjusted = 0
	}
	var gain float32 = 1
	if adjusted > maxDistance {
		gain = 0
	} else {
		switch model {
		case DistanceLinear:
			gain = 1 - (adjusted / maxDistance)
		case DistanceExponential:
			gain = 1 / adjusted
		case DistanceInverseSquare:
			gain = 1 / (adjusted * adjusted)
		}
	}
	if gain < 0 {
		gain = 0
	}
	return gain
}

// Update runs the per-block position/gain/state computation (source.cpp's
// SourceNode::update), driven by the environment's current snapshot.
func (s *Source) Update(snap Snapshot) {
	pos, _ := s.Props.GetFloat3("position")
	headRelative, _ := s.Props.GetInt("head_relative")

	var npos [3]float32
	if headRelative == 1 {
		npos = pos
	} else {
		x, y, z := snap.WorldToListener.apply(mat32.Vec3{X: pos[0], Y: pos[1], Z: pos[2]})
		npos = [3]float32{x, y, z}
	}
	distance := float32(math.Sqrt(float64(npos[0]*npos[0] + npos[1]*npos[1] + npos[2]*npos[2])))
	maxDistance, _ := s.Props.GetFloat("max_distance")

	s.handleStateUpdates(distance > maxDistance)
	if s.culled {
		return
	}

	xz := float32(math.Sqrt(float64(npos[0]*npos[0] + npos[2]*npos[2])))
	elevation := float32(math.Atan2(float64(npos[1]), float64(xz))) / math.Pi * 180
	azimuth := float32(math.Atan2(float64(npos[0]), float64(-npos[2]))) / math.Pi * 180
	if elevation > 90 {
		elevation = 90
	}
	if elevation < -90 {
		elevation = -90
	}

	distanceModel, _ := s.Props.GetInt("distance_model")
	model := DistanceModel(distanceModel)
	if model == DistanceDelegate {
		model = snap.DistanceModel
	}
	referenceDistance, _ := s.Props.GetFloat("size")
	reverbDistance, _ := s.Props.GetFloat("reverb_distance")

	dryGain := calculateGainForDistanceModel(model, distance, maxDistance, referenceDistance)
	unscaledReverb := 1 - calculateGainForDistanceModel(model, distance, reverbDistance, 0)
	minReverb, _ := s.Props.GetFloat("min_reverb")
	maxReverb, _ := s.Props.GetFloat("max_reverb")
	scaledReverb := minReverb + (maxReverb-minReverb)*unscaledReverb
	reverbGain := dryGain * scaledReverb

	reverbSends := s.countReverbSends()
	if reverbSends > 0 {
		dryGain *= 1 - scaledReverb
		reverbGain /= float32(reverbSends)
	}

	mul, _ := s.Props.GetFloat("mul")
	dryGain *= mul
	reverbGain *= mul

	strategy, _ := s.Props.GetInt("panning_strategy")
	st := nodes.Strategy(strategy)
	if st == nodes.StrategyDelegate {
		st = snap.PanningStrategy
	}
	_ = s.panner.Props.SetInt("strategy", int64(st))
	_ = s.panner.Props.SetFloat("azimuth", azimuth)
	_ = s.panner.Props.SetFloat("elevation", elevation)
	_ = s.panner.Props.SetFloat("distance", distance)
	_ = s.panner.Props.SetFloat("mul", dryGain)

	for _, p := range s.effectPan {
		_ = p.Props.SetFloat("azimuth", azimuth)
		_ = p.Props.SetFloat("elevation", elevation)
	}

	for which, gain := range s.effectGains {
		info, err := s.env.EffectSendInfo(which)
		if err != nil {
			continue
		}
		if info.IsReverb {
			_ = gain.Props.SetFloat("mul", reverbGain)
		} else {
			_ = gain.Props.SetFloat("mul", dryGain)
		}
		// Equivalent to forwardProperty(Lav_NODE_STATE, panner_node, ...):
		// one send's gain node follows the panner's State every block
		// instead of per-node iteration elsewhere in the codebase.
		gain.SetState(s.panner.State())
	}
}

func (s *Source) countReverbSends() int {
	n := 0
	for which := range s.effectGains {
		if info, err := s.env.EffectSendInfo(which); err == nil && info.IsReverb {
			n++
		}
	}
	return n
}
