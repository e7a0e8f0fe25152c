package bms

import (
	"fmt"
	"log/slog"

	"github.com/james-see/om2bms/pkg/chart"
)

// Options controls one transcoding run
type Options struct {
	HitSounds      bool // Keysound notes with their hit sounds
	Background     bool // Declare the background image
	StrictRegistry bool // Fail instead of dropping sounds when indices run out
}

// Transcode builds the BMS document of a read beatmap. Sounds are indexed
// audio track first, then samples, then note hit sounds, each in input order.
func Transcode(bm *chart.Beatmap, opts Options, logger *slog.Logger) (*Document, error) {
	if logger == nil {
		logger = slog.Default()
	}
	first, ok := bm.Timing.First()
	if !ok {
		return nil, chart.ErrMissingAnchor
	}

	registry := NewRegistry(opts.StrictRegistry, logger)
	var bgm string
	if bm.AudioFilename != "" {
		idx, err := registry.Intern(chart.SoundKey{Filename: bm.AudioFilename})
		if err != nil {
			return nil, err
		}
		bgm = idx
	}
	for _, s := range bm.Samples {
		if _, err := registry.Intern(s.Sound); err != nil {
			return nil, fmt.Errorf("sample at %d ms: %w", s.Time, err)
		}
	}
	if opts.HitSounds {
		for _, n := range bm.Notes {
			if n.Sound == nil {
				continue
			}
			if _, err := registry.Intern(*n.Sound); err != nil {
				return nil, fmt.Errorf("note at %d ms: %w", n.Time, err)
			}
		}
	}

	tempos := NewTempoTable()
	for _, tempo := range bm.Timing.Extended {
		if _, err := tempos.Register(tempo); err != nil {
			return nil, err
		}
	}

	builder := NewBuilder(BuildConfig{
		Registry:  registry,
		Tempos:    tempos,
		HitSounds: opts.HitSounds,
		BGM:       bgm,
		Logger:    logger,
	})
	measures, err := builder.Build(bm.Timeline(), first)
	if err != nil {
		return nil, err
	}

	header := Header{
		Genre:    bm.Creator,
		Title:    firstNonEmpty(bm.TitleUnicode, bm.Title),
		Subtitle: bm.Version,
		Artist:   firstNonEmpty(bm.ArtistUnicode, bm.Artist),
		Tempo:    first.Tempo().String(),
	}
	if opts.Background {
		header.Background = bm.Background
	}

	logger.Debug("transcoded",
		"title", header.Title,
		"measures", len(measures),
		"sounds", registry.Len(),
		"extended_tempos", len(tempos.Entries()))

	return &Document{
		Header:   header,
		Sounds:   registry.Entries(),
		Tempos:   tempos.Entries(),
		Measures: measures,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
