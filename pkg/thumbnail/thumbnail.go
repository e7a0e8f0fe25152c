// Package thumbnail shrinks background images onto a black square canvas
package thumbnail

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// Size is the edge length of a thumbnail in pixels
const Size = 256

// Letterbox scales src to fit a Size x Size canvas, keeping its aspect ratio,
// and centers it over black. Images already smaller than the canvas are not
// enlarged.
func Letterbox(src image.Image) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, Size, Size))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return canvas
	}
	if w > Size || h > Size {
		if w >= h {
			w, h = Size, max(1, h*Size/b.Dx())
		} else {
			w, h = max(1, w*Size/b.Dy()), Size
		}
	}

	x0 := (Size - w) / 2
	y0 := (Size - h) / 2
	target := image.Rect(x0, y0, x0+w, y0+h)
	draw.CatmullRom.Scale(canvas, target, src, b, draw.Over, nil)
	return canvas
}

// Encode writes img in the format named by ext (".png", ".bmp", anything else as JPEG)
func Encode(w io.Writer, img image.Image, ext string) error {
	switch strings.ToLower(ext) {
	case ".png":
		return png.Encode(w, img)
	case ".bmp":
		return bmp.Encode(w, img)
	default:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	}
}

// ResizeFile writes a letterboxed thumbnail of src to dst. src and dst may
// be the same file.
func ResizeFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	img, _, err := image.Decode(in)
	in.Close()
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create thumbnail: %w", err)
	}
	if err := Encode(out, Letterbox(img), filepath.Ext(dst)); err != nil {
		out.Close()
		return fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return out.Close()
}
