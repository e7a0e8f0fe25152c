package osu

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/james-see/om2bms/pkg/chart"
)

const sevenKey = "\ufeffosu file format v14\n" + `
[General]
AudioFilename: audio.mp3
AudioLeadIn: 0
Mode: 3

[Metadata]
Title:Some/Song\Name
TitleUnicode:曲名
Artist:Band
ArtistUnicode:バンド
Creator:mapper
Version:7K Hard
BeatmapID:12345

[Difficulty]
HPDrainRate:8
CircleSize:7
OverallDifficulty:8

[Events]
//Background and Video events
0,0,"bg.jpg",0,0
//Storyboard Sound Samples
Sample,250,0,"intro.wav",70

[TimingPoints]
0,500,4,2,0,60,1,0
1000,-50,4,3,2,60,0,1

[HitObjects]
36,192,0,1,0,0:0:0:0:
109,192,500,1,2,0:0:0:0:
182,192,1000,128,0,1500:0:0:0:0:
475,192,1500,5,8,1:0:3:0:kick.wav
0,192,2000,1,0,0:0:0:0:
256,192,2500,2,0,B|300:192,1,70
256,192,3000,12,0,3500
`

func TestParseSevenKey(t *testing.T) {
	bm, err := Parse(strings.NewReader(sevenKey))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if bm.Title != "SomeSongName" {
		t.Errorf("Title = %q, want slashes stripped", bm.Title)
	}
	if bm.TitleUnicode != "曲名" || bm.ArtistUnicode != "バンド" {
		t.Errorf("unicode metadata = %q / %q", bm.TitleUnicode, bm.ArtistUnicode)
	}
	if bm.AudioFilename != "audio.mp3" || bm.Background != "bg.jpg" {
		t.Errorf("files = %q / %q", bm.AudioFilename, bm.Background)
	}
	if bm.KeyCount != 7 || bm.Mode != ModeMania {
		t.Errorf("layout = %dK mode %d", bm.KeyCount, bm.Mode)
	}
	if len(bm.Timing.Points) != 2 || len(bm.Timing.Anchors) != 1 {
		t.Errorf("timing = %d points, %d anchors", len(bm.Timing.Points), len(bm.Timing.Anchors))
	}
	if len(bm.Samples) != 1 || bm.Samples[0].Sound.Filename != "intro.wav" || bm.Samples[0].Time != 250 {
		t.Errorf("samples = %+v", bm.Samples)
	}

	// five playable objects, one of them a hold with a separate end; slider and spinner skipped
	if len(bm.Notes) != 6 {
		t.Fatalf("notes = %d, want 6", len(bm.Notes))
	}

	tests := []struct {
		kind  chart.NoteKind
		time  int
		lane  int
		sound *chart.SoundKey
	}{
		{chart.Tap, 0, 1, nil},
		{chart.Tap, 500, 2, &chart.SoundKey{Kind: 2, SampleSet: 2}},
		{chart.HoldStart, 1000, 3, nil},
		{chart.HoldEnd, 1500, 3, nil},
		{chart.Tap, 1500, 7, &chart.SoundKey{Kind: 8, SampleSet: 1, CustomIndex: 3, Filename: "kick.wav"}},
		{chart.Tap, 2000, 0, nil},
	}
	for i, tt := range tests {
		got := bm.Notes[i]
		if got.Kind != tt.kind || got.Time != tt.time || got.Lane != tt.lane {
			t.Errorf("note %d = %v at %d lane %d, want %v at %d lane %d",
				i, got.Kind, got.Time, got.Lane, tt.kind, tt.time, tt.lane)
		}
		switch {
		case tt.sound == nil && got.Sound != nil:
			t.Errorf("note %d sound = %+v, want none", i, *got.Sound)
		case tt.sound != nil && (got.Sound == nil || *got.Sound != *tt.sound):
			t.Errorf("note %d sound = %+v, want %+v", i, got.Sound, *tt.sound)
		}
	}
}

func TestParseEightKeyLanes(t *testing.T) {
	src := `[General]
Mode: 3
[Difficulty]
CircleSize:8
[TimingPoints]
0,500,4,1,0,100,1,0
[HitObjects]
32,192,0,1,0,0:0:0:0:
480,192,0,1,0,0:0:0:0:
`
	bm, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if bm.Notes[0].Lane != 0 || bm.Notes[1].Lane != 7 {
		t.Errorf("lanes = %d, %d, want 0, 7", bm.Notes[0].Lane, bm.Notes[1].Lane)
	}
}

func TestParseUnsupportedLayout(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"standard mode", "[General]\nMode: 0\n[Difficulty]\nCircleSize:7\n"},
		{"four keys", "[General]\nMode: 3\n[Difficulty]\nCircleSize:4\n"},
		{"no difficulty", "[General]\nMode: 3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.src))
			if !errors.Is(err, ErrUnsupportedLayout) {
				t.Errorf("Parse() error = %v, want ErrUnsupportedLayout", err)
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	base := "[General]\nMode: 3\n[Difficulty]\nCircleSize:7\n"
	tests := []struct {
		name string
		body string
		want error
	}{
		{"bad timing point", "[TimingPoints]\nabc,500\n", ErrParse},
		{"zero beat length anchor", "[TimingPoints]\n0,0,4,1,0,100,1,0\n", ErrParse},
		{"bad hit object type", "[TimingPoints]\n0,500,4,1,0,100,1,0\n[HitObjects]\n36,192,0,64,0,0:0:0:0:\n", ErrParse},
		{"no anchor", "[TimingPoints]\n0,-100,4,1,0,100,0,0\n", chart.ErrMissingAnchor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(base + tt.body))
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeHitSound(t *testing.T) {
	tests := []struct{ bits, want int }{
		{0, 0}, {1, 1}, {2, 2}, {4, 4}, {8, 8},
		{3, 2}, {6, 4}, {10, 8}, {14, 8}, {5, 4},
	}
	for _, tt := range tests {
		if got := decodeHitSound(tt.bits); got != tt.want {
			t.Errorf("decodeHitSound(%d) = %d, want %d", tt.bits, got, tt.want)
		}
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.osu")
	if err := os.WriteFile(path, []byte(sevenKey), 0644); err != nil {
		t.Fatal(err)
	}
	bm, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if bm.KeyCount != 7 {
		t.Errorf("KeyCount = %d, want 7", bm.KeyCount)
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.osu")); err == nil {
		t.Error("ParseFile() on a missing file should fail")
	}
}
