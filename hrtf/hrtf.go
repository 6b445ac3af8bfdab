// Package hrtf loads a head-related transfer function dataset from opaque
// bytes and looks up impulse responses by (azimuth, elevation), with
// nearest-neighbor or bilinear interpolation between measured directions.
// The binary layout is this engine's own: a small
// header followed by one fixed-length float32 impulse response per
// (elevation, azimuth) grid point, in row-major elevation-then-azimuth
// order, matching the "opaque bytes, loader produces an indexed HrtfData"
// contract rather than any third-party format.
package hrtf

import (
	"encoding/binary"
	"math"

	"github.com/zaynotley/sonicgraph/sonicerr"
)

// Data is a loaded, sample-rate-matched HRTF dataset: one impulse response
// per (elevation, azimuth) grid point, both stored in ascending degrees.
type Data struct {
	sampleRate     float64
	responseLength int
	elevations     []float64 // ascending, degrees
	azimuths       []float64 // ascending, degrees, shared across elevations
	// responses[elevIdx][azIdx] is a responseLength-sample impulse response.
	responses [][][]float32
}

// Load parses a dataset in the layout described in the package comment:
// a 16-byte header (sample rate, elevation count, azimuth count, response
// length), the elevation and azimuth tables as float64, then the
// responses. It does not resample
// the responses; callers load a dataset already authored for their
// simulation's sample rate.
func Load(blob []byte) (*Data, error) {
	if len(blob) < 16 {
		return nil, sonicerr.New(sonicerr.FILE, "hrtf blob too short")
	}
	sr := float64(binary.LittleEndian.Uint32(blob[0:4]))
	numElev := int(binary.LittleEndian.Uint32(blob[4:8]))
	numAz := int(binary.LittleEndian.Uint32(blob[8:12]))
	respLen := int(binary.LittleEndian.Uint32(blob[12:16]))
	off := 16

	d := &Data{sampleRate: sr, responseLength: respLen}
	need := func(n int) error {
		if off+n > len(blob) {
			return sonicerr.New(sonicerr.FILE, "hrtf blob truncated")
		}
		return nil
	}

	for i := 0; i < numElev; i++ {
		if err := need(8); err != nil {
			return nil, err
		}
		d.elevations = append(d.elevations, math.Float64frombits(binary.LittleEndian.Uint64(blob[off:])))
		off += 8
	}
	for i := 0; i < numAz; i++ {
		if err := need(8); err != nil {
			return nil, err
		}
		d.azimuths = append(d.azimuths, math.Float64frombits(binary.LittleEndian.Uint64(blob[off:])))
		off += 8
	}
	d.responses = make([][][]float32, numElev)
	for e := 0; e < numElev; e++ {
		d.responses[e] = make([][]float32, numAz)
		for a := 0; a < numAz; a++ {
			if err := need(respLen * 4); err != nil {
				return nil, err
			}
			resp := make([]float32, respLen)
			for s := 0; s < respLen; s++ {
				resp[s] = math.Float32frombits(binary.LittleEndian.Uint32(blob[off:]))
				off += 4
			}
			d.responses[e][a] = resp
		}
	}
	return d, nil
}

func (d *Data) SampleRate() float64 { return d.sampleRate }
func (d *Data) ResponseLength() int { return d.responseLength }

func (d *Data) nearestIndex(vals []float64, v float64) int {
	best, bestDist := 0, math.MaxFloat64
	for i, x := range vals {
		dist := math.Abs(x - v)
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}
	return best
}

// Nearest returns the impulse response for the measured direction closest
// to (azimuthDeg, elevationDeg).
func (d *Data) Nearest(azimuthDeg, elevationDeg float64) []float32 {
	e := d.nearestIndex(d.elevations, elevationDeg)
	a := d.nearestIndex(d.azimuths, azimuthDeg)
	return d.responses[e][a]
}

// Bilinear interpolates between the four nearest grid responses. Where the
// grid is degenerate (one elevation or one azimuth), it returns Nearest
// instead; no interpolation is done along the remaining axis.
func (d *Data) Bilinear(azimuthDeg, elevationDeg float64) []float32 {
	if len(d.elevations) <= 1 || len(d.azimuths) <= 1 {
		return d.Nearest(azimuthDeg, elevationDeg)
	}
	e0, e1, ef := bracket(d.elevations, elevationDeg)
	a0, a1, af := bracket(d.azimuths, azimuthDeg)

	out := make([]float32, d.responseLength)
	r00 := d.responses[e0][a0]
	r01 := d.responses[e0][a1]
	r10 := d.responses[e1][a0]
	r11 := d.responses[e1][a1]
	for i := range out {
		top := r00[i] + float32(af)*(r01[i]-r00[i])
		bot := r10[i] + float32(af)*(r11[i]-r10[i])
		out[i] = top + float32(ef)*(bot-top)
	}
	return out
}

// bracket finds the pair of ascending values surrounding v and the
// fractional position between them, clamping at the ends.
func bracket(vals []float64, v float64) (lo, hi int, frac float64) {
	if v <= vals[0] {
		return 0, 0, 0
	}
	if v >= vals[len(vals)-1] {
		last := len(vals) - 1
		return last, last, 0
	}
	for i := 1; i < len(vals); i++ {
		if v <= vals[i] {
			span := vals[i] - vals[i-1]
			if span == 0 {
				return i - 1, i, 0
			}
			return i - 1, i, (v - vals[i-1]) / span
		}
	}
	last := len(vals) - 1
	return last, last, 0
}
