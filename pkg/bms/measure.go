package bms

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Channels
const (
	ChannelBGM           = "01"
	ChannelLength        = "02"
	ChannelTempo         = "03"
	ChannelBGA           = "04"
	ChannelExtendedTempo = "08"
)

// MaxMeasure is the highest three-digit measure ordinal
const MaxMeasure = 999

const emptyToken = "00"

var tapChannels = [...]string{"16", "11", "12", "13", "14", "15", "18", "19"}
var holdChannels = [...]string{"56", "51", "52", "53", "54", "55", "58", "59"}

// TapChannel returns the channel for taps on lane. Lane 0 is the scratch lane.
func TapChannel(lane int) (string, bool) {
	if lane < 0 || lane >= len(tapChannels) {
		return "", false
	}
	return tapChannels[lane], true
}

// HoldChannel returns the channel for hold ends on lane
func HoldChannel(lane int) (string, bool) {
	if lane < 0 || lane >= len(holdChannels) {
		return "", false
	}
	return holdChannels[lane], true
}

// Line is one channel line of a measure
type Line struct {
	Channel string
	Data    string
}

// NewLine spreads tokens over slots equal divisions of a measure. Slots
// without a token hold "00".
func NewLine(channel string, slots int, tokens map[int]string) Line {
	var sb strings.Builder
	sb.Grow(slots * 2)
	for i := 0; i < slots; i++ {
		if tok, ok := tokens[i]; ok && tok != "" {
			sb.WriteString(tok)
		} else {
			sb.WriteString(emptyToken)
		}
	}
	return Line{Channel: channel, Data: sb.String()}
}

// Measure is the emitted content of one measure
type Measure struct {
	Number int
	Length float64 // Multiple of a 4/4 measure, 0 or 1 for the default
	Lines  []Line
}

// Ordinal returns the three-digit measure number
func (m *Measure) Ordinal() string {
	return fmt.Sprintf("%03d", m.Number)
}

// Empty reports whether the measure has nothing to emit
func (m *Measure) Empty() bool {
	return len(m.Lines) == 0 && !m.hasLength()
}

func (m *Measure) hasLength() bool {
	return m.Length != 0 && m.Length != 1
}

// WriteTo writes the measure as "#ooocc:data" records
func (m *Measure) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	if m.hasLength() {
		fmt.Fprintf(&sb, "#%s%s:%s\n", m.Ordinal(), ChannelLength, strconv.FormatFloat(m.Length, 'f', -1, 64))
	}
	for _, l := range m.Lines {
		fmt.Fprintf(&sb, "#%s%s:%s\n", m.Ordinal(), l.Channel, l.Data)
	}
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}
