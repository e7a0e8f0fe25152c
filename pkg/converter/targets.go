package converter

import (
	"log/slog"

	"github.com/james-see/om2bms/pkg/bms"
	"github.com/james-see/om2bms/pkg/chart"
	"github.com/james-see/om2bms/pkg/preview"
)

// BMS renders Shift-JIS encoded BMS charts
type BMS struct{}

func (BMS) Format() Format    { return FormatBMS }
func (BMS) Extension() string { return ".bms" }

// Render transcodes bm. Unicode titles and artists that Shift-JIS cannot
// carry fall back to their romanized form in the output; bm is not modified.
func (BMS) Render(bm *chart.Beatmap, opts Options, logger *slog.Logger) ([]byte, error) {
	local := *bm
	if !ShiftJISCompatible(local.TitleUnicode) {
		local.TitleUnicode = local.Title
	}
	if !ShiftJISCompatible(local.ArtistUnicode) {
		local.ArtistUnicode = local.Artist
	}

	doc, err := bms.Transcode(&local, bms.Options{
		HitSounds:      opts.HitSounds,
		Background:     opts.Background,
		StrictRegistry: opts.StrictRegistry,
	}, logger)
	if err != nil {
		return nil, err
	}
	return EncodeShiftJIS(doc.Bytes())
}

// MIDI renders a Standard MIDI File preview of the chart
type MIDI struct{}

func (MIDI) Format() Format    { return FormatMIDI }
func (MIDI) Extension() string { return ".mid" }

func (MIDI) Render(bm *chart.Beatmap, _ Options, _ *slog.Logger) ([]byte, error) {
	return preview.Render(bm)
}
