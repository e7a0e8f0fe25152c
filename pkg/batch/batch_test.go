package batch

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-see/om2bms/pkg/converter"
)

const goodMap = `osu file format v14

[General]
AudioFilename: audio.mp3
Mode: 3

[Metadata]
Title:Batch Song
Artist:Band
Creator:mapper
Version:Easy

[Difficulty]
CircleSize:7

[Events]
0,0,"bg.jpg",0,0

[TimingPoints]
0,500,4,1,0,100,1,0

[HitObjects]
36,192,0,1,0,0:0:0:0:
109,192,500,1,0,0:0:0:0:
`

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestConvertOszIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	osz := filepath.Join(dir, "set.osz")
	broken := strings.Replace(goodMap, "CircleSize:7", "CircleSize:4", 1)
	writeZip(t, osz, map[string]string{
		"easy.osu":  goodMap,
		"4k.osu":    broken,
		"audio.mp3": "not really audio",
		"bg.jpg":    "not really an image",
	})

	out := filepath.Join(dir, "out")
	report, err := NewRunner(converter.DefaultOptions(), 2, time.Second, nil).
		ConvertOsz(context.Background(), osz, out)
	require.NoError(t, err)

	assert := assert.New(t)
	assert.Len(report.Results, 2)
	assert.Len(report.Converted(), 1)
	assert.Len(report.Failed(), 1)
	assert.Equal("4k.osu", filepath.Base(report.Failed()[0].Source))

	ok := report.Converted()[0]
	assert.Equal(filepath.Join(out, "Batch Song Easy.bms"), ok.Output)
	assert.Equal("bg.jpg", ok.Background)
	assert.FileExists(ok.Output)
	assert.FileExists(filepath.Join(out, "audio.mp3"))
	assert.FileExists(filepath.Join(out, "bg.jpg"))
	assert.Len(report.Assets, 2)

	data, err := os.ReadFile(ok.Output)
	require.NoError(t, err)
	assert.Contains(string(data), "#WAV01 audio.mp3")
	assert.Contains(string(data), "#00001:01")
}

func TestConvertDirCancelled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.osu"), []byte(goodMap), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := filepath.Join(dir, "out")
	report, err := NewRunner(converter.DefaultOptions(), 1, 0, nil).ConvertDir(ctx, dir, out)
	require.NoError(t, err)
	require.Len(t, report.Failed(), 1)
	assert.ErrorIs(t, report.Failed()[0].Err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(out, "Batch Song Easy.bms"))
}

func TestConvertDirOverBudget(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.osu"), []byte(goodMap), 0644))

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	out := filepath.Join(dir, "out")
	report, err := NewRunner(converter.DefaultOptions(), 1, time.Minute, nil).ConvertDir(ctx, dir, out)
	require.NoError(t, err)
	require.Len(t, report.Failed(), 1)
	assert.ErrorIs(t, report.Failed()[0].Err, context.DeadlineExceeded)
	assert.NoFileExists(t, filepath.Join(out, "Batch Song Easy.bms"))
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	osz := filepath.Join(dir, "evil.osz")
	writeZip(t, osz, map[string]string{"../evil.osu": goodMap})

	_, err := Extract(osz, filepath.Join(dir, "dest"))
	assert.ErrorIs(t, err, ErrUnsafePath)
	assert.NoFileExists(t, filepath.Join(dir, "evil.osu"))
}

func TestArchiveRoundTrip(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.bms"), []byte("chart"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "b.wav"), []byte("sound"), 0644))

	var buf bytes.Buffer
	require.NoError(t, Archive(src, &buf))

	zipPath := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, os.WriteFile(zipPath, buf.Bytes(), 0644))

	dest := t.TempDir()
	files, err := Extract(zipPath, dest)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	data, err := os.ReadFile(filepath.Join(dest, "sub", "b.wav"))
	require.NoError(t, err)
	assert.Equal(t, "sound", string(data))
}
