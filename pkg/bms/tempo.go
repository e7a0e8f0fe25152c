package bms

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/james-see/om2bms/pkg/chart"
)

// TempoEntry is one extended tempo declaration
type TempoEntry struct {
	Index string
	Tempo chart.Tempo
}

// TempoTable assigns indices to tempos the integer channel cannot carry
type TempoTable struct {
	indices map[float64]string
	entries []TempoEntry
}

// NewTempoTable returns an empty table
func NewTempoTable() *TempoTable {
	return &TempoTable{indices: make(map[float64]string)}
}

// Register returns the index of tempo, assigning the next one on first sight
func (t *TempoTable) Register(tempo chart.Tempo) (string, error) {
	if idx, ok := t.indices[tempo.Value]; ok {
		return idx, nil
	}
	idx, err := EncodeIndex(len(t.entries) + 1)
	if err != nil {
		return "", fmt.Errorf("tempo %s: %w", tempo, err)
	}
	t.indices[tempo.Value] = idx
	t.entries = append(t.entries, TempoEntry{Index: idx, Tempo: tempo})
	return idx, nil
}

// Entries returns declared tempos in index order
func (t *TempoTable) Entries() []TempoEntry {
	return t.entries
}

// EncodeTempo returns the single-slot line that switches to tempo. Integer
// tempos up to 255 go on the tempo channel as two hex digits, anything else
// on the extended channel through the table.
func EncodeTempo(tempo chart.Tempo, table *TempoTable) (Line, error) {
	if tempo.Short() {
		hex := strings.ToUpper(strconv.FormatInt(int64(tempo.Value), 16))
		if len(hex) < 2 {
			hex = "0" + hex
		}
		return Line{Channel: ChannelTempo, Data: hex}, nil
	}

	idx, err := table.Register(tempo)
	if err != nil {
		return Line{}, err
	}
	return Line{Channel: ChannelExtendedTempo, Data: idx}, nil
}
