package converter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/james-see/om2bms/pkg/chart"
	"github.com/james-see/om2bms/pkg/osu"
	"github.com/james-see/om2bms/pkg/thumbnail"
)

// Format represents a file format
type Format string

const (
	FormatOsu     Format = "osu"
	FormatOsz     Format = "osz"
	FormatBMS     Format = "bms"
	FormatMIDI    Format = "midi"
	FormatUnknown Format = "unknown"
)

// ErrUnsupportedInput is returned for inputs that are not .osu beatmaps
var ErrUnsupportedInput = errors.New("unsupported input format")

// DetectFormat detects the format of a file based on extension
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".osu":
		return FormatOsu
	case ".osz":
		return FormatOsz
	case ".bms", ".bme":
		return FormatBMS
	case ".mid", ".midi":
		return FormatMIDI
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	if len(data) < 4 {
		return FormatUnknown
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	switch {
	case bytes.HasPrefix(data, []byte("osu file format")):
		return FormatOsu
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return FormatOsz
	case bytes.HasPrefix(data, []byte("MThd")):
		return FormatMIDI
	case bytes.Contains(data, []byte("*---------------------- HEADER FIELD")):
		return FormatBMS
	default:
		return FormatUnknown
	}
}

// Convert reads a beatmap and renders it into the target format
func (c *Converter) Convert(r io.Reader) (*ConversionResult, error) {
	bm, err := osu.Parse(r)
	if err != nil {
		return nil, err
	}
	return c.render(bm)
}

// ConvertBytes converts an in-memory beatmap
func (c *Converter) ConvertBytes(data []byte) (*ConversionResult, error) {
	return c.Convert(bytes.NewReader(data))
}

// ConvertPath converts the beatmap at inputPath without writing anything
func (c *Converter) ConvertPath(inputPath string) (*ConversionResult, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}

	format := DetectFormat(inputPath)
	if format == FormatUnknown {
		format = DetectFormatFromContent(data)
	}
	if format != FormatOsu {
		return nil, fmt.Errorf("%s: %w", format, ErrUnsupportedInput)
	}
	return c.ConvertBytes(data)
}

func (c *Converter) render(bm *chart.Beatmap) (*ConversionResult, error) {
	bm.Shift(c.opts.OffsetMs)

	data, err := c.target.Render(bm, c.opts, c.logger)
	if err != nil {
		return nil, fmt.Errorf("conversion failed: %w", err)
	}
	return &ConversionResult{
		Data:     data,
		Filename: OutputFilename(bm, c.target.Extension()),
		Format:   c.target.Format(),
		Beatmap:  bm,
	}, nil
}

// ConvertFile converts inputPath into outputDir and returns the written path.
// Nothing is written when the conversion fails. For BMS output the
// background image is shipped next to the chart.
func (c *Converter) ConvertFile(inputPath, outputDir string) (string, error) {
	result, err := c.ConvertPath(inputPath)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(outputDir, result.Filename)
	if err := os.WriteFile(outputPath, result.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to write output file: %w", err)
	}

	if result.Format == FormatBMS && c.opts.Background && result.Beatmap.Background != "" {
		src := filepath.Join(filepath.Dir(inputPath), result.Beatmap.Background)
		if err := c.ShipBackground(src, outputDir); err != nil {
			c.logger.Warn("background not shipped", "file", src, "error", err)
		}
	}
	return outputPath, nil
}

// ShipBackground places the background image src into outputDir, as a
// thumbnail when the options ask for one
func (c *Converter) ShipBackground(src, outputDir string) error {
	if _, err := os.Stat(src); err != nil {
		return err
	}
	dst := filepath.Join(outputDir, filepath.Base(src))

	if c.opts.Thumbnail {
		return thumbnail.ResizeFile(src, dst)
	}
	if same, _ := samePath(src, dst); same {
		return nil
	}
	return copyFile(src, dst)
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// OutputFilename returns "<title> <version><ext>" with path separators removed
func OutputFilename(bm *chart.Beatmap, ext string) string {
	clean := strings.NewReplacer("/", "", "\\", "")
	name := clean.Replace(bm.Title)
	if bm.Version != "" {
		name += " " + clean.Replace(bm.Version)
	}
	if strings.TrimSpace(name) == "" {
		name = "untitled"
	}
	return name + ext
}

// GetSupportedConversions returns a list of supported conversion paths
func GetSupportedConversions() []string {
	return []string{
		"osu -> bms",
		"osu -> midi",
		"osz -> bms",
	}
}
