// Package preview renders a chart as a Standard MIDI File for auditioning
package preview

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/james-see/om2bms/pkg/chart"
)

const (
	ticksPerQuarter = 480
	tapTicks        = ticksPerQuarter / 8
	drumChannel     = 9
	velocity        = 100
)

// One General MIDI percussion key per lane, scratch first
var lanePitches = [8]uint8{49, 36, 38, 42, 46, 45, 48, 51}

// Ordering of events sharing a tick
const (
	orderMeta = iota
	orderOff
	orderOn
)

type timed struct {
	tick  uint32
	order int
	msg   []byte
}

// Render builds a single-track SMF: tempo and meter changes follow the
// anchors, taps are short percussion hits and holds sustain until their end.
// Tick 0 is the earliest of audio start, first anchor and first note.
func Render(bm *chart.Beatmap) ([]byte, error) {
	if bm == nil {
		return nil, errors.New("nil beatmap")
	}
	if len(bm.Timing.Anchors) == 0 {
		return nil, chart.ErrMissingAnchor
	}

	origin := min(0, float64(bm.Timing.Anchors[0].Time))
	for _, n := range bm.Notes {
		origin = min(origin, float64(n.Time))
	}
	tm := newTempoMap(bm.Timing.Anchors, origin)

	var events []timed
	for _, seg := range tm.segments {
		tick := uint32(seg.startTick)
		events = append(events,
			timed{tick, orderMeta, tempoMessage(seg.point.Tempo().Value)},
			timed{tick, orderMeta, meterMessage(seg.point.Meter)},
		)
	}
	for _, n := range bm.Notes {
		if n.Lane < 0 || n.Lane >= len(lanePitches) {
			continue
		}
		key := lanePitches[n.Lane]
		tick := tm.tick(float64(n.Time))
		switch n.Kind {
		case chart.Tap:
			events = append(events,
				timed{tick, orderOn, midi.NoteOn(drumChannel, key, velocity)},
				timed{tick + tapTicks, orderOff, midi.NoteOff(drumChannel, key)},
			)
		case chart.HoldStart:
			events = append(events, timed{tick, orderOn, midi.NoteOn(drumChannel, key, velocity)})
		case chart.HoldEnd:
			events = append(events, timed{tick, orderOff, midi.NoteOff(drumChannel, key)})
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].order < events[j].order
	})

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ticksPerQuarter)

	var track smf.Track
	track.Add(0, smf.MetaTrackSequenceName(bm.Title))
	var current uint32
	for _, ev := range events {
		track.Add(ev.tick-current, ev.msg)
		current = ev.tick
	}
	track.Close(0)

	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}

// tempoMessage builds a set-tempo meta event (FF 51 03 tttttt)
func tempoMessage(bpm float64) smf.Message {
	if bpm <= 0 {
		bpm = 120
	}
	usPerBeat := uint32(60000000.0 / bpm)
	return smf.Message([]byte{
		0xFF, 0x51, 0x03,
		byte(usPerBeat >> 16),
		byte(usPerBeat >> 8),
		byte(usPerBeat),
	})
}

// meterMessage builds a time signature meta event for meter/4 (FF 58 04 nn dd cc bb)
func meterMessage(meter int) smf.Message {
	return smf.Message([]byte{0xFF, 0x58, 0x04, byte(meter), 0x02, 0x18, 0x08})
}

type segment struct {
	startMs   float64
	startTick float64
	point     chart.TimingPoint
}

// tempoMap converts chart milliseconds to ticks across tempo changes
type tempoMap struct {
	segments []segment
}

func newTempoMap(anchors []chart.TimingPoint, origin float64) *tempoMap {
	tm := &tempoMap{segments: []segment{{startMs: origin, point: anchors[0]}}}
	for _, a := range anchors[1:] {
		at := float64(a.Time)
		tm.segments = append(tm.segments, segment{startMs: at, startTick: tm.exactTick(at), point: a})
	}
	return tm
}

func (tm *tempoMap) exactTick(ms float64) float64 {
	i := sort.Search(len(tm.segments), func(i int) bool { return tm.segments[i].startMs > ms }) - 1
	if i < 0 {
		i = 0
	}
	seg := tm.segments[i]
	return seg.startTick + (ms-seg.startMs)/seg.point.MsPerBeat*ticksPerQuarter
}

func (tm *tempoMap) tick(ms float64) uint32 {
	t := tm.exactTick(ms)
	if t < 0 {
		return 0
	}
	return uint32(t + 0.5)
}
