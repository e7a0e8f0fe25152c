package preview

import (
	"bytes"
	"math"
	"testing"

	"github.com/james-see/om2bms/pkg/chart"
)

func beatmap(t *testing.T) *chart.Beatmap {
	t.Helper()
	timing, err := chart.ResolveTiming([]chart.ControlPoint{
		{Time: 0, BeatLength: 500, Meter: 4, Uninherited: true},
		{Time: 2000, BeatLength: 250, Meter: 4, Uninherited: true},
	})
	if err != nil {
		t.Fatalf("ResolveTiming() error = %v", err)
	}
	return &chart.Beatmap{
		Metadata: chart.Metadata{Title: "Preview"},
		Timing:   timing,
		Notes: []chart.Note{
			{Kind: chart.Tap, Time: 0, Lane: 1},
			{Kind: chart.Tap, Time: 500, Lane: 2},
			{Kind: chart.HoldStart, Time: 2000, Lane: 0},
			{Kind: chart.HoldEnd, Time: 2500, Lane: 0},
		},
	}
}

func TestRender(t *testing.T) {
	data, err := Render(beatmap(t))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !bytes.HasPrefix(data, []byte("MThd")) {
		t.Fatalf("output does not start with MThd")
	}

	sum, err := Inspect(data)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if sum.Resolution != ticksPerQuarter {
		t.Errorf("Resolution = %d, want %d", sum.Resolution, ticksPerQuarter)
	}
	if sum.Notes != 3 {
		t.Errorf("Notes = %d, want 3", sum.Notes)
	}
	if sum.TempoChanges != 2 {
		t.Errorf("TempoChanges = %d, want 2", sum.TempoChanges)
	}
	if math.Abs(sum.FirstTempo-120) > 0.01 {
		t.Errorf("FirstTempo = %v, want 120", sum.FirstTempo)
	}
	// 4 beats at 120, then 2 beats at 240 until the hold ends
	if want := int64(6 * ticksPerQuarter); sum.LengthTicks != want {
		t.Errorf("LengthTicks = %d, want %d", sum.LengthTicks, want)
	}
}

func TestTempoMap(t *testing.T) {
	bm := beatmap(t)
	tm := newTempoMap(bm.Timing.Anchors, -500)

	tests := []struct {
		ms   float64
		want uint32
	}{
		{-500, 0},
		{0, ticksPerQuarter},
		{2000, 5 * ticksPerQuarter},
		{2250, 6 * ticksPerQuarter},
		{-1000, 0},
	}
	for _, tt := range tests {
		if got := tm.tick(tt.ms); got != tt.want {
			t.Errorf("tick(%v) = %d, want %d", tt.ms, got, tt.want)
		}
	}
}

func TestRenderWithoutAnchors(t *testing.T) {
	if _, err := Render(&chart.Beatmap{}); err == nil {
		t.Error("Render() without anchors should fail")
	}
}
