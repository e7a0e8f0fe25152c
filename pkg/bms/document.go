package bms

import (
	"bytes"
	"fmt"
	"io"
)

// Header holds the declarative fields written before the main data
type Header struct {
	Genre      string
	Title      string
	Subtitle   string
	Artist     string
	Tempo      string // Initial tempo
	Background string // Background image, empty for none
}

// Document is a complete chart ready to be written
type Document struct {
	Header   Header
	Sounds   []Entry
	Tempos   []TempoEntry
	Measures []*Measure
}

// WriteTo writes the document as BMS text. Callers handle the output encoding.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	d.writeHeader(&buf)
	for _, m := range d.Measures {
		if _, err := m.WriteTo(&buf); err != nil {
			return 0, err
		}
		buf.WriteString("\n")
	}
	return buf.WriteTo(w)
}

// Bytes returns the document text
func (d *Document) Bytes() []byte {
	var buf bytes.Buffer
	d.WriteTo(&buf)
	return buf.Bytes()
}

func (d *Document) writeHeader(buf *bytes.Buffer) {
	h := d.Header
	line := func(format string, args ...any) {
		fmt.Fprintf(buf, format+"\n", args...)
	}

	line("")
	line("*---------------------- HEADER FIELD")
	line("")
	line("#PLAYER 1")
	line("#GENRE %s", h.Genre)
	line("#TITLE %s", h.Title)
	line("#SUBTITLE %s", h.Subtitle)
	line("#ARTIST %s", h.Artist)
	line("#BPM %s", h.Tempo)
	line("#DIFFICULTY 5")
	line("#RANK 3")
	line("#LNTYPE 1")
	line("")
	for _, s := range d.Sounds {
		line("#WAV%s %s", s.Index, s.Filename)
	}
	line("")
	if h.Background != "" {
		line("#BMP01 %s", h.Background)
		line("")
	}
	if len(d.Tempos) > 0 {
		for _, t := range d.Tempos {
			line("#BPM%s %s", t.Index, t.Tempo)
		}
		line("")
	}
	line("*---------------------- EXPANSION FIELD")
	line("")
	line("*---------------------- MAIN DATA FIELD")
	line("")
	line("")
	if h.Background != "" {
		line("#000%s:01", ChannelBGA)
	}
	line("")
}
