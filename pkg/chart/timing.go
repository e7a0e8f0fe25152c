package chart

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrMissingAnchor is returned when an inherited point has no anchor before it,
// or when a beatmap declares no anchor at all
var ErrMissingAnchor = errors.New("no anchor timing point")

const (
	// Anchors closer than this to the previous anchor replace it
	anchorMergeMs = 2
	// Inherited points closer than this to the previous inherited point replace it
	inheritedMergeMs = 1
	defaultMeter     = 4
)

// Timing is the authoritative resolved timing of a beatmap
type Timing struct {
	Points   []TimingPoint // Every surviving point, inherited ones included
	Anchors  []TimingPoint // Surviving anchors only
	Extended []Tempo       // Tempos needing the extended channel, first-seen order
}

// ResolveTiming turns raw control points into resolved timing. Points must be
// in chronological order.
func ResolveTiming(raw []ControlPoint) (Timing, error) {
	var t Timing
	for _, cp := range raw {
		tp := TimingPoint{
			Time:        int(cp.Time),
			Meter:       cp.Meter,
			SampleSet:   cp.SampleSet,
			SampleIndex: cp.SampleIndex,
			Volume:      cp.Volume,
			Inherited:   !cp.Uninherited,
		}
		if tp.Meter < 1 {
			tp.Meter = defaultMeter
		}

		if tp.Inherited {
			if len(t.Anchors) == 0 {
				return Timing{}, fmt.Errorf("inherited point at %d ms: %w", tp.Time, ErrMissingAnchor)
			}
			anchor := t.Anchors[len(t.Anchors)-1]
			tp.MsPerBeat = math.Abs(cp.BeatLength) / 100 * anchor.MsPerBeat
			tp.Meter = anchor.Meter

			if prev, ok := t.last(); ok && prev.Inherited && tp.Time <= prev.Time+inheritedMergeMs &&
				(prev.SampleSet != tp.SampleSet || prev.SampleIndex != tp.SampleIndex) {
				t.Points = t.Points[:len(t.Points)-1]
			}
			t.Points = append(t.Points, tp)
			continue
		}

		tp.MsPerBeat = cp.BeatLength
		if prev, ok := t.last(); ok && tp.Time <= prev.Time+anchorMergeMs {
			t.Points = t.Points[:len(t.Points)-1]
		}
		if n := len(t.Anchors); n > 0 && tp.Time <= t.Anchors[n-1].Time+anchorMergeMs {
			t.Anchors = t.Anchors[:n-1]
		}
		t.Points = append(t.Points, tp)
		t.Anchors = append(t.Anchors, tp)
	}

	if len(t.Anchors) == 0 {
		return Timing{}, ErrMissingAnchor
	}

	seen := make(map[float64]bool)
	for _, a := range t.Anchors {
		tempo := a.Tempo()
		if tempo.Short() || seen[tempo.Value] {
			continue
		}
		seen[tempo.Value] = true
		t.Extended = append(t.Extended, tempo)
	}
	return t, nil
}

func (t *Timing) last() (TimingPoint, bool) {
	if len(t.Points) == 0 {
		return TimingPoint{}, false
	}
	return t.Points[len(t.Points)-1], true
}

// First returns the first anchor
func (t Timing) First() (TimingPoint, bool) {
	if len(t.Anchors) == 0 {
		return TimingPoint{}, false
	}
	return t.Anchors[0], true
}

// At returns the point in effect at ms. Times before the first point map to
// the first point.
func (t Timing) At(ms int) TimingPoint {
	if len(t.Points) == 0 {
		return TimingPoint{}
	}
	i := sort.Search(len(t.Points), func(i int) bool { return t.Points[i].Time > ms })
	if i == 0 {
		return t.Points[0]
	}
	return t.Points[i-1]
}

func (t *Timing) shift(ms int) {
	for i := range t.Points {
		t.Points[i].Time += ms
	}
	for i := range t.Anchors {
		t.Anchors[i].Time += ms
	}
}
