// Package batch converts every beatmap of an .osz archive or a folder
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/james-see/om2bms/pkg/converter"
)

// Result is the outcome of one beatmap
type Result struct {
	Source     string
	Output     string
	Background string // Background image the chart declares, if any
	Err        error
}

// Report collects the outcome of a batch
type Report struct {
	OutputDir string
	Results   []Result
	Assets    []string
}

// Converted returns the successful results
func (r *Report) Converted() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err == nil {
			out = append(out, res)
		}
	}
	return out
}

// Failed returns the failed results
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Runner converts beatmaps concurrently. A failing beatmap never stops the others.
type Runner struct {
	opts    converter.Options
	workers int
	timeout time.Duration
	logger  *slog.Logger
}

// NewRunner creates a Runner. timeout bounds each beatmap; zero means no
// limit. A beatmap over budget is reported as failed and its chart is never
// written, but its conversion is not interrupted and finishes in the
// background.
func NewRunner(opts converter.Options, workers int, timeout time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		opts:    opts,
		workers: max(workers, 1),
		timeout: timeout,
		logger:  logger,
	}
}

// ConvertOsz extracts the archive at oszPath to a scratch directory and
// converts its beatmaps into outputDir
func (r *Runner) ConvertOsz(ctx context.Context, oszPath, outputDir string) (*Report, error) {
	scratch := filepath.Join(os.TempDir(), "om2bms-"+uuid.NewString())
	defer os.RemoveAll(scratch)

	if _, err := Extract(oszPath, scratch); err != nil {
		return nil, err
	}
	return r.ConvertDir(ctx, scratch, outputDir)
}

// ConvertDir converts every .osu file in dir into outputDir and copies the
// other files alongside as chart assets
func (r *Runner) ConvertDir(ctx context.Context, dir, outputDir string) (*Report, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var beatmaps []string
	report := &Report{OutputDir: outputDir}
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if converter.DetectFormat(path) == converter.FormatOsu {
			beatmaps = append(beatmaps, path)
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(outputDir, rel)
		if err := copyAsset(path, dst); err != nil {
			return fmt.Errorf("failed to copy asset %s: %w", rel, err)
		}
		report.Assets = append(report.Assets, dst)
		return nil
	})
	if err != nil {
		return nil, err
	}

	report.Results = r.convertAll(ctx, beatmaps, outputDir)
	r.shipBackgrounds(report, outputDir)

	r.logger.Info("batch finished",
		"dir", dir,
		"converted", len(report.Converted()),
		"failed", len(report.Failed()))
	return report, nil
}

func (r *Runner) convertAll(ctx context.Context, beatmaps []string, outputDir string) []Result {
	results := make([]Result, len(beatmaps))

	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, path := range beatmaps {
		g.Go(func() error {
			results[i] = r.convertOne(ctx, path, outputDir)
			if err := results[i].Err; err != nil {
				r.logger.Warn("beatmap failed", "file", filepath.Base(path), "error", err)
			} else {
				r.logger.Debug("beatmap converted", "file", filepath.Base(path), "output", results[i].Output)
			}
			return nil
		})
	}
	g.Wait()
	return results
}

// convertOne converts one beatmap within the time budget. The chart is only
// written once the conversion has finished in time. Running out of time
// abandons the result; the conversion goroutine cannot be stopped and runs
// to completion into its buffered channel.
func (r *Runner) convertOne(ctx context.Context, path, outputDir string) Result {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return Result{Source: path, Err: fmt.Errorf("%s: %w", filepath.Base(path), err)}
	}

	type outcome struct {
		result *converter.ConversionResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		conv := converter.New(converter.BMS{}, r.opts, r.logger)
		res, err := conv.ConvertPath(path)
		done <- outcome{res, err}
	}()

	var res *converter.ConversionResult
	select {
	case <-ctx.Done():
		return Result{Source: path, Err: fmt.Errorf("%s: %w", filepath.Base(path), ctx.Err())}
	case o := <-done:
		if o.err != nil {
			return Result{Source: path, Err: o.err}
		}
		res = o.result
	}

	out := filepath.Join(outputDir, res.Filename)
	if err := os.WriteFile(out, res.Data, 0644); err != nil {
		return Result{Source: path, Err: fmt.Errorf("failed to write output file: %w", err)}
	}
	result := Result{Source: path, Output: out}
	if r.opts.Background {
		result.Background = res.Beatmap.Background
	}
	return result
}

// shipBackgrounds thumbnails each distinct background once, after the
// assets have been copied
func (r *Runner) shipBackgrounds(report *Report, outputDir string) {
	if !r.opts.Background || !r.opts.Thumbnail {
		return
	}

	conv := converter.New(converter.BMS{}, r.opts, r.logger)
	done := make(map[string]bool)
	for _, res := range report.Converted() {
		if res.Background == "" || done[res.Background] {
			continue
		}
		done[res.Background] = true
		if err := conv.ShipBackground(filepath.Join(outputDir, res.Background), outputDir); err != nil {
			r.logger.Warn("background not resized", "file", res.Background, "error", err)
		}
	}
}

func copyAsset(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
