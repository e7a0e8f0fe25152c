package thumbnail

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// near tolerates rounding in the scaling kernel
func near(a, b color.RGBA) bool {
	d := func(x, y uint8) bool { return abs(int(x)-int(y)) <= 2 }
	return d(a.R, b.R) && d(a.G, b.G) && d(a.B, b.B)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func TestLetterboxWidescreen(t *testing.T) {
	white := color.RGBA{255, 255, 255, 255}
	got := Letterbox(solid(1024, 512, white))

	if got.Bounds().Dx() != Size || got.Bounds().Dy() != Size {
		t.Fatalf("size = %v, want %dx%d", got.Bounds(), Size, Size)
	}

	// 1024x512 scales to 256x128, leaving 64 px black bars above and below
	tests := []struct {
		name string
		x, y int
		want color.RGBA
	}{
		{"top bar", 128, 10, color.RGBA{0, 0, 0, 255}},
		{"bottom bar", 128, 250, color.RGBA{0, 0, 0, 255}},
		{"center", 128, 128, white},
	}
	for _, tt := range tests {
		if c := got.RGBAAt(tt.x, tt.y); !near(c, tt.want) {
			t.Errorf("%s pixel = %v, want %v", tt.name, c, tt.want)
		}
	}
}

func TestLetterboxSmallImageNotEnlarged(t *testing.T) {
	red := color.RGBA{255, 0, 0, 255}
	got := Letterbox(solid(64, 64, red))

	if c := got.RGBAAt(128, 128); !near(c, red) {
		t.Errorf("center pixel = %v, want red", c)
	}
	if c := got.RGBAAt(50, 50); c != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("border pixel = %v, want black", c)
	}
}

func TestResizeFileInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bg.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, solid(800, 600, color.RGBA{0, 0, 255, 255})); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if err := ResizeFile(path, path); err != nil {
		t.Fatalf("ResizeFile() error = %v", err)
	}

	f, err = os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("DecodeConfig() error = %v", err)
	}
	if cfg.Width != Size || cfg.Height != Size {
		t.Errorf("thumbnail = %dx%d, want %dx%d", cfg.Width, cfg.Height, Size, Size)
	}
}
