// Package osu reads osu!mania beatmaps (.osu files)
package osu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/james-see/om2bms/pkg/chart"
)

var (
	// ErrUnsupportedLayout is returned for beatmaps that are not 7K or 8K osu!mania
	ErrUnsupportedLayout = errors.New("unsupported beatmap layout")
	// ErrParse is returned for malformed lines in a section the reader depends on
	ErrParse = errors.New("malformed beatmap")
)

// ModeMania is the osu! game mode number of osu!mania
const ModeMania = 3

const playfieldWidth = 512

// Hit object type bits
const (
	typeCircle  = 1 << 0
	typeSlider  = 1 << 1
	typeSpinner = 1 << 3
	typeHold    = 1 << 7
)

// ParseFile reads the beatmap at path
func ParseFile(path string) (*chart.Beatmap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open beatmap: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a beatmap. Sections are collected first and then interpreted
// in dependency order, so hit objects always see the resolved timing.
func Parse(r io.Reader) (*chart.Beatmap, error) {
	sections, err := readSections(r)
	if err != nil {
		return nil, err
	}

	bm := &chart.Beatmap{}
	bm.Mode = -1

	for _, line := range sections["General"] {
		if err := parseGeneral(line, bm); err != nil {
			return nil, err
		}
	}
	if bm.Mode != -1 && bm.Mode != ModeMania {
		return nil, fmt.Errorf("game mode %d: %w", bm.Mode, ErrUnsupportedLayout)
	}
	bm.Mode = ModeMania

	for _, line := range sections["Metadata"] {
		parseMetadata(line, bm)
	}
	for _, line := range sections["Difficulty"] {
		if err := parseDifficulty(line, bm); err != nil {
			return nil, err
		}
	}
	if bm.KeyCount != 7 && bm.KeyCount != 8 {
		return nil, fmt.Errorf("%d keys: %w", bm.KeyCount, ErrUnsupportedLayout)
	}

	raw := make([]chart.ControlPoint, 0, len(sections["TimingPoints"]))
	for _, line := range sections["TimingPoints"] {
		cp, err := parseTimingPoint(line)
		if err != nil {
			return nil, err
		}
		raw = append(raw, cp)
	}
	timing, err := chart.ResolveTiming(raw)
	if err != nil {
		return nil, err
	}
	bm.Timing = timing

	for _, line := range sections["Events"] {
		if err := parseEvent(line, bm); err != nil {
			return nil, err
		}
	}
	for _, line := range sections["HitObjects"] {
		if err := parseHitObject(line, bm); err != nil {
			return nil, err
		}
	}
	return bm, nil
}

func readSections(r io.Reader) (map[string][]string, error) {
	sections := make(map[string][]string)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	current := ""
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			current = line[1 : len(line)-1]
			continue
		}
		if current != "" {
			sections[current] = append(sections[current], line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read beatmap: %w", err)
	}
	return sections, nil
}

func property(line string) (string, string, bool) {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(key), strings.TrimSpace(value), true
}

func parseGeneral(line string, bm *chart.Beatmap) error {
	key, value, ok := property(line)
	if !ok {
		return nil
	}
	switch key {
	case "AudioFilename":
		bm.AudioFilename = value
	case "Mode":
		mode, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("mode %q: %w", value, ErrParse)
		}
		bm.Mode = mode
	}
	return nil
}

func parseMetadata(line string, bm *chart.Beatmap) {
	key, value, ok := property(line)
	if !ok {
		return
	}
	switch key {
	case "Title":
		bm.Title = strings.NewReplacer("/", "", "\\", "").Replace(value)
	case "TitleUnicode":
		bm.TitleUnicode = value
	case "Artist":
		bm.Artist = value
	case "ArtistUnicode":
		bm.ArtistUnicode = value
	case "Creator":
		bm.Creator = value
	case "Version":
		bm.Version = value
	case "Source":
		bm.Source = value
	case "BeatmapID":
		bm.BeatmapID = value
	}
}

func parseDifficulty(line string, bm *chart.Beatmap) error {
	key, value, ok := property(line)
	if !ok {
		return nil
	}
	switch key {
	case "CircleSize":
		keys, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("circle size %q: %w", value, ErrParse)
		}
		bm.KeyCount = int(keys)
	case "OverallDifficulty":
		od, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("overall difficulty %q: %w", value, ErrParse)
		}
		bm.OverallDifficulty = od
	}
	return nil
}

// parseTimingPoint reads "time,beatLength,meter,sampleSet,sampleIndex,volume,uninherited,effects".
// Fields after beatLength may be missing in old beatmaps.
func parseTimingPoint(line string) (chart.ControlPoint, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 2 {
		return chart.ControlPoint{}, fmt.Errorf("timing point %q: %w", line, ErrParse)
	}

	time, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return chart.ControlPoint{}, fmt.Errorf("timing point time %q: %w", fields[0], ErrParse)
	}
	beatLength, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return chart.ControlPoint{}, fmt.Errorf("timing point beat length %q: %w", fields[1], ErrParse)
	}

	cp := chart.ControlPoint{
		Time:        time,
		BeatLength:  beatLength,
		Meter:       4,
		Volume:      100,
		Uninherited: beatLength > 0,
	}

	ints := []*int{&cp.Meter, &cp.SampleSet, &cp.SampleIndex, &cp.Volume}
	for i, dst := range ints {
		if len(fields) <= i+2 {
			break
		}
		v, err := strconv.Atoi(strings.TrimSpace(fields[i+2]))
		if err != nil {
			return chart.ControlPoint{}, fmt.Errorf("timing point field %d %q: %w", i+2, fields[i+2], ErrParse)
		}
		*dst = v
	}
	if len(fields) > 6 {
		cp.Uninherited = strings.TrimSpace(fields[6]) != "0"
	}
	if len(fields) > 7 {
		effects, _ := strconv.Atoi(strings.TrimSpace(fields[7]))
		cp.Kiai = effects&1 != 0
	}

	if cp.Uninherited && cp.BeatLength <= 0 {
		return chart.ControlPoint{}, fmt.Errorf("anchor at %v ms with beat length %v: %w", time, beatLength, ErrParse)
	}
	return cp, nil
}

// parseEvent picks up the background image and storyboard samples
func parseEvent(line string, bm *chart.Beatmap) error {
	fields := strings.Split(line, ",")
	switch {
	case fields[0] == "Sample":
		if len(fields) < 4 {
			return fmt.Errorf("sample event %q: %w", line, ErrParse)
		}
		time, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return fmt.Errorf("sample time %q: %w", fields[1], ErrParse)
		}
		name := unquote(fields[3])
		if name == "" {
			return nil
		}
		bm.Samples = append(bm.Samples, chart.Sample{Time: time, Sound: chart.SoundKey{Filename: name}})
	case fields[0] == "0" && len(fields) >= 3 && len(fields) <= 5:
		name := unquote(fields[2])
		if strings.Contains(name, ".") {
			bm.Background = name
		}
	}
	return nil
}

func unquote(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
}

// parseHitObject reads "x,y,time,type,hitSound,objectParams,hitSample"
func parseHitObject(line string, bm *chart.Beatmap) error {
	fields := strings.Split(line, ",")
	if len(fields) < 5 {
		return fmt.Errorf("hit object %q: %w", line, ErrParse)
	}

	x, err1 := strconv.Atoi(strings.TrimSpace(fields[0]))
	time, err2 := strconv.Atoi(strings.TrimSpace(fields[2]))
	kind, err3 := strconv.Atoi(strings.TrimSpace(fields[3]))
	hitSound, err4 := strconv.Atoi(strings.TrimSpace(fields[4]))
	if err := errors.Join(err1, err2, err3, err4); err != nil {
		return fmt.Errorf("hit object %q: %w", line, ErrParse)
	}

	hold := kind&typeHold != 0
	switch {
	case hold, kind&typeCircle != 0:
	case kind&(typeSlider|typeSpinner) != 0:
		return nil
	default:
		return fmt.Errorf("hit object type %d: %w", kind, ErrParse)
	}

	var extras []string
	if len(fields) > 5 {
		extras = strings.Split(fields[len(fields)-1], ":")
	}

	lane := laneFor(x, fields[0], bm.KeyCount)
	note := chart.Note{
		Kind:   chart.Tap,
		Time:   time,
		Lane:   lane,
		Timing: bm.Timing.At(time),
	}

	end := time
	if hold {
		note.Kind = chart.HoldStart
		if len(extras) == 0 {
			return fmt.Errorf("hold without end time %q: %w", line, ErrParse)
		}
		end, err1 = strconv.Atoi(strings.TrimSpace(extras[0]))
		if err1 != nil {
			return fmt.Errorf("hold end %q: %w", extras[0], ErrParse)
		}
		if end < time {
			end = time
		}
		extras = extras[1:]
	}
	note.Sound = soundKey(hitSound, extras, note.Timing)

	bm.Notes = append(bm.Notes, note)
	if hold {
		bm.Notes = append(bm.Notes, chart.Note{
			Kind:   chart.HoldEnd,
			Time:   end,
			Lane:   lane,
			Timing: bm.Timing.At(end),
		})
	}
	return nil
}

// laneFor maps an x position to a lane. 7K charts shift onto lanes 1..7
// and leave lane 0 (scratch) to notes placed exactly at x=0.
func laneFor(x int, raw string, keys int) int {
	var lane int
	switch keys {
	case 7:
		if strings.TrimSpace(raw) == "0" {
			return 0
		}
		lane = x/(playfieldWidth/7) + 1
	default:
		lane = x / (playfieldWidth / 8)
	}
	return min(max(lane, 0), 7)
}

// soundKey derives the sound of a note from its hit sound bits and its
// "sampleSet:additionSet:index:volume:filename" extras
func soundKey(hitSound int, extras []string, tp chart.TimingPoint) *chart.SoundKey {
	kind := decodeHitSound(hitSound)

	field := func(i int) string {
		if i < len(extras) {
			return strings.TrimSpace(extras[i])
		}
		return ""
	}
	filename := field(4)
	if filename == "" && kind == 0 {
		return nil
	}

	set, _ := strconv.Atoi(field(0))
	if set == 0 {
		set = tp.SampleSet
	}
	index, _ := strconv.Atoi(field(2))
	if index == 0 {
		index = tp.SampleIndex
	}
	return &chart.SoundKey{Kind: kind, SampleSet: set, CustomIndex: index, Filename: filename}
}

// decodeHitSound keeps a single hit sound; combined bits resolve to the largest
func decodeHitSound(bits int) int {
	switch bits {
	case 0, 1, 2, 4, 8:
		return bits
	}
	switch {
	case bits > 8:
		return 8
	case bits > 4:
		return 4
	case bits > 2:
		return 2
	default:
		return 1
	}
}
