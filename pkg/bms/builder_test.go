package bms

import (
	"errors"
	"strings"
	"testing"

	"github.com/james-see/om2bms/pkg/chart"
)

func newBeatmap(t *testing.T, points []chart.ControlPoint, notes []chart.Note) *chart.Beatmap {
	t.Helper()
	timing, err := chart.ResolveTiming(points)
	if err != nil {
		t.Fatalf("ResolveTiming() error = %v", err)
	}
	return &chart.Beatmap{
		Metadata: chart.Metadata{Title: "Test", Artist: "Tester", Creator: "mapper", Version: "7K Hard"},
		Timing:   timing,
		Notes:    notes,
	}
}

func anchorAt(ms, beatLength float64, meter int) chart.ControlPoint {
	return chart.ControlPoint{Time: ms, BeatLength: beatLength, Meter: meter, Uninherited: true}
}

func tap(ms, lane int, sound string) chart.Note {
	n := chart.Note{Kind: chart.Tap, Time: ms, Lane: lane}
	if sound != "" {
		n.Sound = &chart.SoundKey{Filename: sound}
	}
	return n
}

// lines renders measures as "#ooocc:data" strings
func lines(measures []*Measure) []string {
	var sb strings.Builder
	for _, m := range measures {
		m.WriteTo(&sb)
	}
	return strings.Fields(sb.String())
}

func TestTranscodeSingleMeasure(t *testing.T) {
	bm := newBeatmap(t,
		[]chart.ControlPoint{anchorAt(0, 500, 4)},
		[]chart.Note{tap(0, 1, "a.wav"), tap(500, 1, "b.wav"), tap(1000, 1, "c.wav"), tap(1500, 1, "d.wav")},
	)
	bm.AudioFilename = "song.mp3"

	doc, err := Transcode(bm, Options{HitSounds: true, StrictRegistry: true}, nil)
	if err != nil {
		t.Fatalf("Transcode() error = %v", err)
	}

	if len(doc.Measures) != 1 {
		t.Fatalf("measures = %d, want 1", len(doc.Measures))
	}
	got := lines(doc.Measures)
	want := []string{"#00001:01", "#00003:78", "#00011:02030405"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("lines = %v, want %v", got, want)
	}
	if len(doc.Sounds) != 5 || doc.Sounds[0].Filename != "song.mp3" {
		t.Errorf("sounds = %+v, want song.mp3 first of 5", doc.Sounds)
	}
}

func TestTranscodeHitSoundsDisabled(t *testing.T) {
	bm := newBeatmap(t,
		[]chart.ControlPoint{anchorAt(0, 500, 4)},
		[]chart.Note{tap(0, 0, "a.wav"), tap(1000, 0, "b.wav")},
	)

	doc, err := Transcode(bm, Options{HitSounds: false}, nil)
	if err != nil {
		t.Fatalf("Transcode() error = %v", err)
	}
	got := lines(doc.Measures)
	if got[len(got)-1] != "#00016:ZZZZ" {
		t.Errorf("scratch line = %q, want #00016:ZZZZ", got[len(got)-1])
	}
	if len(doc.Sounds) != 0 {
		t.Errorf("sounds = %d, want none", len(doc.Sounds))
	}
}

func TestTranscodeHolds(t *testing.T) {
	bm := newBeatmap(t,
		[]chart.ControlPoint{anchorAt(0, 500, 4)},
		[]chart.Note{
			{Kind: chart.HoldStart, Time: 0, Lane: 7, Sound: &chart.SoundKey{Filename: "long.wav"}},
			{Kind: chart.HoldEnd, Time: 1000, Lane: 7},
		},
	)

	doc, err := Transcode(bm, Options{HitSounds: true}, nil)
	if err != nil {
		t.Fatalf("Transcode() error = %v", err)
	}
	got := lines(doc.Measures)
	if got[len(got)-1] != "#00059:01ZZ" {
		t.Errorf("hold line = %q, want #00059:01ZZ", got[len(got)-1])
	}
}

func TestTranscodeMeasureOverflow(t *testing.T) {
	bm := newBeatmap(t,
		[]chart.ControlPoint{anchorAt(0, 500, 4)},
		[]chart.Note{tap(0, 1, ""), tap(1000*2000, 1, "")},
	)

	if _, err := Transcode(bm, Options{}, nil); !errors.Is(err, ErrMeasureOverflow) {
		t.Errorf("Transcode() error = %v, want ErrMeasureOverflow", err)
	}

	bm.Notes[1].Time = 999 * 2000
	doc, err := Transcode(bm, Options{}, nil)
	if err != nil {
		t.Fatalf("Transcode() with 1000 measures error = %v", err)
	}
	if last := doc.Measures[len(doc.Measures)-1]; last.Ordinal() != "999" {
		t.Errorf("last ordinal = %s, want 999", last.Ordinal())
	}
}

func TestTranscodeTruncatedMeasure(t *testing.T) {
	bm := newBeatmap(t,
		[]chart.ControlPoint{anchorAt(0, 500, 4), anchorAt(1000, 250, 4)},
		[]chart.Note{tap(500, 1, ""), tap(1000, 1, ""), tap(1500, 1, "")},
	)

	doc, err := Transcode(bm, Options{}, nil)
	if err != nil {
		t.Fatalf("Transcode() error = %v", err)
	}
	got := strings.Join(lines(doc.Measures), " ")
	want := "#00002:0.5 #00003:78 #00011:00ZZ #00103:F0 #00111:ZZZZ"
	if got != want {
		t.Errorf("lines = %s, want %s", got, want)
	}
}

func TestTranscodeNoteBeforeBarline(t *testing.T) {
	tests := []struct {
		name   string
		points []chart.ControlPoint
		notes  []chart.Note
		want   string
	}{
		{
			name:   "moves to the next downbeat",
			points: []chart.ControlPoint{anchorAt(0, 500, 4)},
			notes:  []chart.Note{tap(0, 1, ""), tap(1000, 2, ""), tap(1995, 2, ""), tap(4000, 3, "")},
			want:   "#00003:78 #00011:ZZ #00012:00ZZ #00112:ZZ #00213:ZZ",
		},
		{
			name:   "opens a measure after the last one",
			points: []chart.ControlPoint{anchorAt(0, 500, 4)},
			notes:  []chart.Note{tap(0, 1, ""), tap(1995, 2, "")},
			want:   "#00003:78 #00011:ZZ #00112:ZZ",
		},
		{
			name:   "leaves a truncated measure",
			points: []chart.ControlPoint{anchorAt(0, 500, 4), anchorAt(1000, 250, 4)},
			notes:  []chart.Note{tap(997, 2, "")},
			want:   "#00002:0.5 #00003:78 #00103:F0 #00112:ZZ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Transcode(newBeatmap(t, tt.points, tt.notes), Options{}, nil)
			if err != nil {
				t.Fatalf("Transcode() error = %v", err)
			}
			if got := strings.Join(lines(doc.Measures), " "); got != tt.want {
				t.Errorf("lines = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTranscodeOddMeter(t *testing.T) {
	bm := newBeatmap(t,
		[]chart.ControlPoint{anchorAt(0, 500, 3)},
		[]chart.Note{tap(0, 1, ""), tap(3000, 2, "")},
	)

	doc, err := Transcode(bm, Options{}, nil)
	if err != nil {
		t.Fatalf("Transcode() error = %v", err)
	}
	if len(doc.Measures) != 3 {
		t.Fatalf("measures = %d, want 3", len(doc.Measures))
	}
	for _, m := range doc.Measures {
		if m.Length != 0.75 {
			t.Errorf("measure %s length = %v, want 0.75", m.Ordinal(), m.Length)
		}
	}
	if len(doc.Measures[1].Lines) != 0 {
		t.Errorf("measure 001 lines = %v, want length only", doc.Measures[1].Lines)
	}
}

func TestTranscodeLeadIn(t *testing.T) {
	bm := newBeatmap(t,
		[]chart.ControlPoint{anchorAt(1000, 500, 4)},
		[]chart.Note{tap(-1500, 1, "")},
	)
	bm.AudioFilename = "song.mp3"

	doc, err := Transcode(bm, Options{}, nil)
	if err != nil {
		t.Fatalf("Transcode() error = %v", err)
	}
	got := strings.Join(lines(doc.Measures), " ")
	want := "#00011:000000ZZ #00101:0001 #00203:78"
	if got != want {
		t.Errorf("lines = %s, want %s", got, want)
	}
}

func TestTranscodeExtendedTempo(t *testing.T) {
	bm := newBeatmap(t,
		[]chart.ControlPoint{anchorAt(0, 333.333, 4)},
		[]chart.Note{tap(0, 1, "")},
	)

	doc, err := Transcode(bm, Options{}, nil)
	if err != nil {
		t.Fatalf("Transcode() error = %v", err)
	}
	if len(doc.Tempos) != 1 || doc.Tempos[0].Tempo.String() != "180.0001" {
		t.Fatalf("tempos = %+v, want one entry 180.0001", doc.Tempos)
	}
	if got := lines(doc.Measures)[0]; got != "#00008:01" {
		t.Errorf("tempo line = %q, want #00008:01", got)
	}
	if doc.Header.Tempo != "180.0001" {
		t.Errorf("header tempo = %q", doc.Header.Tempo)
	}
}

func TestTranscodeSamples(t *testing.T) {
	bm := newBeatmap(t, []chart.ControlPoint{anchorAt(0, 500, 4)}, nil)
	bm.Samples = []chart.Sample{
		{Time: 0, Sound: chart.SoundKey{Filename: "intro.wav"}},
		{Time: 500, Sound: chart.SoundKey{Filename: "intro.wav"}},
		{Time: 1000, Sound: chart.SoundKey{Filename: "hit.wav"}},
	}

	doc, err := Transcode(bm, Options{}, nil)
	if err != nil {
		t.Fatalf("Transcode() error = %v", err)
	}
	got := strings.Join(lines(doc.Measures), " ")
	want := "#00001:01 #00001:00010000 #00001:0002 #00003:78"
	if got != want {
		t.Errorf("lines = %s, want %s", got, want)
	}
	if len(doc.Sounds) != 2 {
		t.Errorf("sounds = %d, want 2", len(doc.Sounds))
	}
}
