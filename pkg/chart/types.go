// Package chart provides the beatmap timeline model shared by the osu! reader and the BMS writer
package chart

// ControlPoint is a timing point as declared by the source beatmap, before resolution
type ControlPoint struct {
	Time        float64 // Offset in ms
	BeatLength  float64 // ms per beat for anchors, negative percentage for inherited points
	Meter       int     // Beats per measure
	SampleSet   int
	SampleIndex int
	Volume      int
	Uninherited bool
	Kiai        bool
}

// TimingPoint is a resolved control point with an absolute tempo
type TimingPoint struct {
	Time        int     // Offset in ms
	MsPerBeat   float64 // Always positive once resolved
	Meter       int     // Beats per measure, at least 1
	SampleSet   int
	SampleIndex int
	Volume      int
	Inherited   bool // Scales a preceding anchor instead of declaring its own tempo
}

// MsPerMeasure returns the duration of one full measure under this point
func (tp TimingPoint) MsPerMeasure() float64 {
	return tp.MsPerBeat * float64(tp.Meter)
}

// Tempo derives the rounded tempo of this point
func (tp TimingPoint) Tempo() Tempo {
	return DeriveTempo(tp.MsPerBeat)
}

// SoundKey identifies a distinct sound reference. Two events share an output
// sound index exactly when their keys are equal.
type SoundKey struct {
	Kind        int    // Hit sound bitmask: 0 none, 1 normal, 2 whistle, 4 finish, 8 clap
	SampleSet   int    // 1 normal, 2 soft, 3 drum
	CustomIndex int    // Custom sample index
	Filename    string // Explicit filename, empty when derived from the other fields
}

// Metadata holds the scalar beatmap fields the writer needs
type Metadata struct {
	Title         string
	TitleUnicode  string
	Artist        string
	ArtistUnicode string
	Creator       string
	Version       string
	Source        string
	BeatmapID     string

	AudioFilename string
	Background    string // Background image filename, empty when absent

	Mode              int
	KeyCount          int
	OverallDifficulty float64
}

// Beatmap is a fully read beatmap ready for transcoding
type Beatmap struct {
	Metadata

	Timing  Timing
	Notes   []Note
	Samples []Sample
}

// Timeline returns the merged, ordered event sequence of the beatmap
func (b *Beatmap) Timeline() Timeline {
	return NewTimeline(b.Timing.Anchors, b.Notes, b.Samples)
}

// Shift moves every timed element of the beatmap by ms. The audio itself
// stays at time zero, so a positive shift delays the chart against the music.
func (b *Beatmap) Shift(ms int) {
	if ms == 0 {
		return
	}
	b.Timing.shift(ms)
	for i := range b.Notes {
		b.Notes[i].Time += ms
		b.Notes[i].Timing.Time += ms
	}
	for i := range b.Samples {
		b.Samples[i].Time += ms
	}
}
