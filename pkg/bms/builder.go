package bms

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/james-see/om2bms/pkg/chart"
)

// ErrMeasureOverflow is returned when a chart needs more than 1000 measures
var ErrMeasureOverflow = errors.New("measure limit exceeded")

type buildState int

const (
	accumulating buildState = iota
	truncating
)

// BuildConfig holds the collaborators of a Builder
type BuildConfig struct {
	Registry  *Registry   // Sounds must already be interned
	Tempos    *TempoTable // Extended tempos, filled as tempo changes are emitted
	HitSounds bool        // When false every note is silent
	BGM       string      // Sound index of the audio track, empty for none
	Logger    *slog.Logger
}

// Builder groups timeline events into measures. A Builder is single use.
type Builder struct {
	registry  *Registry
	tempos    *TempoTable
	quantizer *Quantizer
	hitSounds bool
	bgm       string
	logger    *slog.Logger

	state   buildState
	number  int
	start   float64
	point   chart.TimingPoint
	pending pending
	out     map[int]*Measure
}

type pending struct {
	tempo    *chart.TimingPoint
	channels map[string][]queued
}

// queued is a placed event. A downbeat event was carried over from the
// previous measure and sits on slot 0.
type queued struct {
	ev       chart.Event
	downbeat bool
}

func (p *pending) add(channel string, q queued) {
	if p.channels == nil {
		p.channels = make(map[string][]queued)
	}
	p.channels[channel] = append(p.channels[channel], q)
}

// NewBuilder creates a Builder
func NewBuilder(cfg BuildConfig) *Builder {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tempos := cfg.Tempos
	if tempos == nil {
		tempos = NewTempoTable()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry(true, logger)
	}
	return &Builder{
		registry:  registry,
		tempos:    tempos,
		quantizer: NewQuantizer(),
		hitSounds: cfg.HitSounds,
		bgm:       cfg.BGM,
		logger:    logger,
		out:       make(map[int]*Measure),
	}
}

// Build lays the timeline out on the measure grid of first, the first anchor,
// and returns the non-empty measures in ordinal order
func (b *Builder) Build(tl chart.Timeline, first chart.TimingPoint) ([]*Measure, error) {
	if first.MsPerBeat <= 0 || first.Meter < 1 {
		return nil, fmt.Errorf("first anchor at %d ms: %w", first.Time, chart.ErrMissingAnchor)
	}
	b.point = first
	if err := b.prelude(tl); err != nil {
		return nil, err
	}

	for i := 0; i < len(tl); {
		ev := tl[i]
		at := float64(ev.At())

		switch {
		case b.state == truncating:
			if err := b.truncate(ev.(chart.TempoChange).Point); err != nil {
				return nil, err
			}
			b.state = accumulating
			i++
		case at < b.end():
			if _, ok := ev.(chart.TempoChange); ok && !aligned(b.start, at) {
				b.state = truncating
				continue
			}
			b.place(ev)
			i++
		default:
			// The event lies past this measure: emit it and move the grid on,
			// then handle the event again from the new measure.
			if err := b.close(Fraction{}); err != nil {
				return nil, err
			}
			if err := b.advance(at); err != nil {
				return nil, err
			}
		}
	}

	if err := b.close(Fraction{}); err != nil {
		return nil, err
	}
	if b.pending.channels != nil {
		if err := b.next(); err != nil {
			return nil, err
		}
		if err := b.close(Fraction{}); err != nil {
			return nil, err
		}
	}
	return b.measures(), nil
}

// prelude places measure 000 on the grid and the audio start inside it
func (b *Builder) prelude(tl chart.Timeline) error {
	mpm := b.point.MsPerMeasure()

	zero := float64(b.point.Time)
	for zero > 0 {
		zero -= mpm
	}
	for zero <= -mpm {
		zero += mpm
	}

	origin, lead := zero, 0
	if earliest, ok := tl.Earliest(); ok {
		for float64(earliest) < origin-alignMs {
			origin -= mpm
			lead++
			if lead > MaxMeasure {
				return fmt.Errorf("lead-in before %d ms: %w", earliest, ErrMeasureOverflow)
			}
		}
	}

	if b.bgm != "" {
		pos := b.quantizer.Offset(-zero, mpm)
		m := b.measure(lead)
		m.Lines = append(m.Lines, NewLine(ChannelBGM, pos.Den, map[int]string{pos.Num: b.bgm}))
		b.quantizer.Reset()
	}

	b.number = 0
	b.start = origin
	b.state = accumulating
	b.logger.Debug("measure grid", "origin_ms", origin, "lead_measures", lead, "ms_per_measure", mpm)
	return nil
}

// end is the time from which events belong to the next measure
func (b *Builder) end() float64 {
	return math.Trunc(b.start+b.point.MsPerMeasure()) - 1
}

func (b *Builder) place(ev chart.Event) {
	switch e := ev.(type) {
	case chart.TempoChange:
		tp := e.Point
		b.point = tp
		b.start = float64(tp.Time)
		b.pending.tempo = &tp
	case chart.Note:
		channel, ok := noteChannel(e)
		if !ok {
			b.logger.Warn("note dropped, lane out of range", "time", e.Time, "lane", e.Lane)
			return
		}
		b.pending.add(channel, queued{ev: e})
	case chart.Sample:
		if idx, _ := b.registry.Lookup(e.Sound); idx == "" {
			return
		}
		b.pending.add(ChannelBGM, queued{ev: e})
	}
}

func noteChannel(n chart.Note) (string, bool) {
	if n.Kind == chart.Tap {
		return TapChannel(n.Lane)
	}
	return HoldChannel(n.Lane)
}

// truncate ends the current measure at tp and starts the next one there
func (b *Builder) truncate(tp chart.TimingPoint) error {
	mpm := b.point.MsPerMeasure()
	rel := float64(tp.Time) - b.start
	if rel < 0 {
		rel += mpm
	}

	frac := b.quantizer.Approximate(rel/mpm, mpm)
	if frac.IsZero() && rel < mpm/2 {
		b.place(chart.TempoChange{Point: tp})
		return nil
	}
	if err := b.close(frac); err != nil {
		return err
	}
	if err := b.next(); err != nil {
		return err
	}
	b.place(chart.TempoChange{Point: tp})
	return nil
}

// advance moves the grid forward until the measure holding at. Skipped
// measures stay empty but keep a non-default length; the first one takes
// any events carried over from the closed measure.
func (b *Builder) advance(at float64) error {
	for {
		if err := b.next(); err != nil {
			return err
		}
		b.start += b.point.MsPerMeasure()
		if aligned(b.start, at) || at < b.end() {
			return nil
		}
		if b.pending.channels != nil {
			if err := b.close(Fraction{}); err != nil {
				return err
			}
			continue
		}
		if length := float64(b.point.Meter) / 4; length != 1 {
			b.measure(b.number).Length = length
		}
	}
}

func (b *Builder) next() error {
	b.number++
	if b.number > MaxMeasure {
		return fmt.Errorf("measure %d: %w", b.number, ErrMeasureOverflow)
	}
	return nil
}

// close emits the pending measure. A non-zero trunc cuts the measure short
// to that part of its full length. Events that quantize onto the measure end
// stay pending for the next measure's downbeat.
func (b *Builder) close(trunc Fraction) error {
	p := b.pending
	b.pending = pending{}
	b.quantizer.Reset()

	mpm := b.point.MsPerMeasure()
	length := float64(b.point.Meter) / 4
	if !trunc.IsZero() {
		mpm *= trunc.Float()
		length *= trunc.Float()
	}

	m := b.measure(b.number)
	if length != 1 {
		m.Length = length
	}

	if p.tempo != nil {
		line, err := EncodeTempo(p.tempo.Tempo(), b.tempos)
		if err != nil {
			return err
		}
		m.Lines = append(m.Lines, line)
	}

	channels := make([]string, 0, len(p.channels))
	for ch := range p.channels {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	for _, ch := range channels {
		lines, carried := b.channelLines(ch, p.channels[ch], mpm)
		m.Lines = append(m.Lines, lines...)
		for _, ev := range carried {
			b.pending.add(ch, queued{ev: ev, downbeat: true})
		}
	}
	return nil
}

type slot struct {
	pos   Fraction
	token string
}

// channelLines returns the lines of one channel and the events that belong
// to the next measure
func (b *Builder) channelLines(channel string, events []queued, mpm float64) ([]Line, []chart.Event) {
	var carried []chart.Event
	slots := make([]slot, 0, len(events))
	for _, q := range events {
		pos := Fraction{0, 1}
		if !q.downbeat {
			var next bool
			pos, next = b.quantizer.Position(float64(q.ev.At())-b.start, mpm)
			if next {
				carried = append(carried, q.ev)
				continue
			}
		}
		slots = append(slots, slot{pos: pos, token: b.token(q.ev)})
	}
	if len(slots) == 0 {
		return nil, carried
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].pos.Float() < slots[j].pos.Float() })

	if channel == ChannelBGM {
		lines := make([]Line, 0, len(slots))
		for _, s := range slots {
			lines = append(lines, NewLine(channel, s.pos.Den, map[int]string{s.pos.Num: s.token}))
		}
		return lines, carried
	}

	positions := make([]Fraction, len(slots))
	for i, s := range slots {
		positions[i] = s.pos
	}
	den := LCM(positions...)

	tokens := make(map[int]string, len(slots))
	for _, s := range slots {
		n, _ := s.pos.Rebase(den)
		if _, taken := tokens[n]; taken {
			b.logger.Debug("slot collision", "measure", b.number, "channel", channel, "slot", n)
		}
		tokens[n] = s.token
	}
	return []Line{NewLine(channel, den, tokens)}, carried
}

func (b *Builder) token(ev chart.Event) string {
	switch e := ev.(type) {
	case chart.Sample:
		if idx, _ := b.registry.Lookup(e.Sound); idx != "" {
			return idx
		}
	case chart.Note:
		if e.Kind == chart.HoldEnd || e.Sound == nil || !b.hitSounds {
			return SilentToken
		}
		if idx, _ := b.registry.Lookup(*e.Sound); idx != "" {
			return idx
		}
	}
	return SilentToken
}

func (b *Builder) measure(n int) *Measure {
	m, ok := b.out[n]
	if !ok {
		m = &Measure{Number: n}
		b.out[n] = m
	}
	return m
}

func (b *Builder) measures() []*Measure {
	numbers := make([]int, 0, len(b.out))
	for n, m := range b.out {
		if !m.Empty() {
			numbers = append(numbers, n)
		}
	}
	sort.Ints(numbers)

	out := make([]*Measure, 0, len(numbers))
	for _, n := range numbers {
		m := b.out[n]
		sort.SliceStable(m.Lines, func(i, j int) bool { return m.Lines[i].Channel < m.Lines[j].Channel })
		out = append(out, m)
	}
	return out
}

func aligned(a, b float64) bool {
	return math.Abs(a-b) <= alignMs
}
