// Package converter turns osu!mania beatmaps into BMS charts and MIDI previews
package converter

import (
	"log/slog"

	"github.com/james-see/om2bms/pkg/chart"
)

// Options controls a conversion
type Options struct {
	HitSounds      bool // Keysound notes with their hit sounds
	Background     bool // Declare and ship the background image
	OffsetMs       int  // Added to every chart timestamp; the audio stays put
	StrictRegistry bool // Fail when sound indices run out instead of dropping sounds
	Thumbnail      bool // Replace the shipped background with a 256x256 letterboxed copy
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		HitSounds:      true,
		Background:     true,
		StrictRegistry: true,
	}
}

// ConversionResult holds the result of a conversion
type ConversionResult struct {
	Data     []byte
	Filename string
	Format   Format
	Beatmap  *chart.Beatmap
}

// Target renders beatmaps into one output format
type Target interface {
	Format() Format
	Extension() string
	Render(bm *chart.Beatmap, opts Options, logger *slog.Logger) ([]byte, error)
}

// Converter handles conversions into its target format
type Converter struct {
	target Target
	opts   Options
	logger *slog.Logger
}

// New creates a new Converter for the given target
func New(target Target, opts Options, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{target: target, opts: opts, logger: logger}
}

// GetTarget returns the current target
func (c *Converter) GetTarget() Target {
	return c.target
}

// SetTarget sets the output target
func (c *Converter) SetTarget(target Target) {
	c.target = target
}

// Options returns the conversion options
func (c *Converter) Options() Options {
	return c.opts
}

// SetOptions replaces the conversion options
func (c *Converter) SetOptions(opts Options) {
	c.opts = opts
}
