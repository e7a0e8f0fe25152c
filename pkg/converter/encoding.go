package converter

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// EncodeShiftJIS converts UTF-8 text to Shift-JIS, replacing runes it cannot encode
func EncodeShiftJIS(text []byte) ([]byte, error) {
	enc := encoding.ReplaceUnsupported(japanese.ShiftJIS.NewEncoder())
	out, _, err := transform.Bytes(enc, text)
	if err != nil {
		return nil, fmt.Errorf("failed to encode Shift-JIS: %w", err)
	}
	return out, nil
}

// DecodeShiftJIS converts Shift-JIS text back to UTF-8
func DecodeShiftJIS(data []byte) ([]byte, error) {
	out, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Shift-JIS: %w", err)
	}
	return out, nil
}

// ShiftJISCompatible reports whether s encodes to Shift-JIS without loss
func ShiftJISCompatible(s string) bool {
	_, err := japanese.ShiftJIS.NewEncoder().String(s)
	return err == nil
}
