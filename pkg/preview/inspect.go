package preview

import (
	"bytes"
	"fmt"

	"gitlab.com/gomidi/midi/v2/smf"
)

// Summary describes a rendered preview
type Summary struct {
	Resolution   uint16
	Notes        int
	TempoChanges int
	FirstTempo   float64
	LengthTicks  int64
}

// Inspect reads SMF data back and summarizes it
func Inspect(data []byte) (*Summary, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	sum := &Summary{}
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		sum.Resolution = mt.Resolution()
	}

	for _, track := range s.Tracks {
		var tick int64
		for _, ev := range track {
			tick += int64(ev.Delta)
			msg := ev.Message

			// Set tempo: FF 51 03 tttttt
			if len(msg) >= 6 && msg[0] == 0xFF && msg[1] == 0x51 && msg[2] == 0x03 {
				usPerBeat := uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5])
				if usPerBeat > 0 {
					if sum.TempoChanges == 0 {
						sum.FirstTempo = 60000000.0 / float64(usPerBeat)
					}
					sum.TempoChanges++
				}
				continue
			}

			// Note On with a non-zero velocity: 9n kk vv
			if len(msg) >= 3 && msg[0] >= 0x90 && msg[0] <= 0x9F && msg[2] > 0 {
				sum.Notes++
			}
		}
		sum.LengthTicks = max(sum.LengthTicks, tick)
	}
	return sum, nil
}
