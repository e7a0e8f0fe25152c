// Package main is the entry point for the om2bms CLI
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/james-see/om2bms/pkg/api"
	"github.com/james-see/om2bms/pkg/batch"
	"github.com/james-see/om2bms/pkg/config"
	"github.com/james-see/om2bms/pkg/converter"
	"github.com/james-see/om2bms/pkg/preview"
	"github.com/james-see/om2bms/pkg/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	verbose    bool
	outputDir  string
	noHitSound bool
	noBG       bool
	offsetMs   int
	thumbnail  bool
	workers    int
	folder     bool
	serverPort int

	cfg config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "om2bms",
	Short: "Convert osu!mania beatmaps to BMS charts",
	Long: `om2bms converts 7K and 8K osu!mania beatmaps into BMS charts,
keysounding every note with its hit sound.

Examples:
  om2bms convert "Song [Hard].osu" -o charts/
  om2bms osz 123456.osz -o charts/
  om2bms osz ./Songs/123456 -f
  om2bms preview "Song [Hard].osu"
  om2bms tui
  om2bms serve --port 8080`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRunE: setup,
	SilenceUsage:      true,
}

var convertCmd = &cobra.Command{
	Use:   "convert <input.osu>",
	Short: "Convert one beatmap to BMS",
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

var oszCmd = &cobra.Command{
	Use:   "osz <input.osz|folder>",
	Short: "Convert every beatmap of a set and copy its assets",
	Args:  cobra.ExactArgs(1),
	RunE:  runOsz,
}

var previewCmd = &cobra.Command{
	Use:   "preview <input.osu>",
	Short: "Render a MIDI preview of a beatmap",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change stored settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetOutDirCmd = &cobra.Command{
	Use:   "set-outdir <dir>",
	Short: "Store the default output directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigSetOutDir,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output")

	// Conversion flags
	for _, cmd := range []*cobra.Command{convertCmd, oszCmd, previewCmd} {
		cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default: config, then the input's directory)")
		cmd.Flags().IntVar(&offsetMs, "offset", 0, "Milliseconds added to every note; the audio stays put")
	}
	for _, cmd := range []*cobra.Command{convertCmd, oszCmd} {
		cmd.Flags().BoolVar(&noHitSound, "no-hitsound", false, "Do not keysound notes")
		cmd.Flags().BoolVar(&noBG, "no-bg", false, "Do not declare or ship the background image")
		cmd.Flags().BoolVar(&thumbnail, "thumbnail", false, "Ship the background as a 256x256 letterboxed copy")
	}

	// osz command
	oszCmd.Flags().BoolVarP(&folder, "folder", "f", false, "Input is an extracted set folder")
	oszCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent conversions (default: config)")

	// serve command
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Server port")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetOutDirCmd)

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(oszCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if configPath == "" {
		path, err := config.Path()
		if err != nil {
			return err
		}
		configPath = path
	}
	var err error
	cfg, err = config.Load(configPath)
	return err
}

// options merges the command line flags over the stored settings
func options(cmd *cobra.Command) converter.Options {
	opts := cfg.Options()
	if noHitSound {
		opts.HitSounds = false
	}
	if noBG {
		opts.Background = false
	}
	if thumbnail {
		opts.Thumbnail = true
	}
	if cmd.Flags().Changed("offset") {
		opts.OffsetMs = offsetMs
	}
	return opts
}

func getOutputDir(input string) string {
	if outputDir != "" {
		return outputDir
	}
	if cfg.OutputDir != "" {
		return cfg.OutputDir
	}
	return filepath.Dir(input)
}

func runConvert(cmd *cobra.Command, args []string) error {
	input := args[0]
	conv := converter.New(converter.BMS{}, options(cmd), slog.Default())

	out, err := conv.ConvertFile(input, getOutputDir(input))
	if err != nil {
		return err
	}
	fmt.Printf("Converted %s -> %s\n", input, out)
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	input := args[0]
	conv := converter.New(converter.MIDI{}, options(cmd), slog.Default())

	out, err := conv.ConvertFile(input, getOutputDir(input))
	if err != nil {
		return err
	}
	fmt.Printf("Rendered %s -> %s\n", input, out)

	data, err := os.ReadFile(out)
	if err != nil {
		return err
	}
	sum, err := preview.Inspect(data)
	if err != nil {
		return err
	}
	fmt.Printf("  %d notes, %d tempo changes, starting at %.2f BPM\n", sum.Notes, sum.TempoChanges, sum.FirstTempo)
	return nil
}

func runOsz(cmd *cobra.Command, args []string) error {
	input := args[0]
	n := cfg.WorkerCount()
	if workers > 0 {
		n = workers
	}

	base := filepath.Base(strings.TrimRight(input, `/\`))
	out := filepath.Join(getOutputDir(input), strings.TrimSuffix(base, filepath.Ext(base)))
	if folder && outputDir == "" && cfg.OutputDir == "" {
		out = input + " (BMS)"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := batch.NewRunner(options(cmd), n, cfg.TimeoutDuration(), slog.Default())
	var report *batch.Report
	var err error
	if folder {
		report, err = runner.ConvertDir(ctx, input, out)
	} else {
		report, err = runner.ConvertOsz(ctx, input, out)
	}
	if err != nil {
		return err
	}

	for _, res := range report.Converted() {
		fmt.Printf("Converted %s -> %s\n", filepath.Base(res.Source), res.Output)
	}
	for _, res := range report.Failed() {
		fmt.Fprintf(os.Stderr, "Skipped %s: %v\n", filepath.Base(res.Source), res.Err)
	}
	if len(report.Converted()) == 0 {
		return fmt.Errorf("no beatmap in %s could be converted", input)
	}
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	return tui.Run(cfg)
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Printf("Starting API server on port %d...\n", serverPort)
	return api.StartServer(serverPort, cfg)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Printf("# %s\n%s", configPath, data)
	return nil
}

func runConfigSetOutDir(cmd *cobra.Command, args []string) error {
	dir, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	cfg.OutputDir = dir
	if err := config.Save(configPath, cfg); err != nil {
		return err
	}
	fmt.Printf("Output directory set to %s\n", dir)
	return nil
}
