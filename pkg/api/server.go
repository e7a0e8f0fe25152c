// Package api provides the REST API server for om2bms
package api

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/james-see/om2bms/pkg/batch"
	"github.com/james-see/om2bms/pkg/config"
	"github.com/james-see/om2bms/pkg/converter"
	"github.com/james-see/om2bms/pkg/preview"
)

const requestIDHeader = "X-Request-ID"

// @title om2bms API
// @version 1.0
// @description API for converting osu!mania beatmaps to BMS charts
// @host localhost:8080
// @BasePath /api/v1

// StartServer starts the API server on the specified port
func StartServer(port int, cfg config.Config) error {
	r := NewRouter(cfg, slog.Default())
	return r.Run(fmt.Sprintf(":%d", port))
}

// NewRouter builds the API routes. cfg supplies the default conversion
// options; requests may override them with query parameters.
func NewRouter(cfg config.Config, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{cfg: cfg, logger: logger}

	r := gin.Default()
	r.Use(requestIDMiddleware())
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/formats", listFormats)
		v1.POST("/convert", s.handleConvert)
		v1.POST("/convert/osz", s.handleConvertOsz)
		v1.POST("/preview", s.handlePreview)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

type server struct {
	cfg    config.Config
	logger *slog.Logger
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "om2bms",
	})
}

// listFormats godoc
// @Summary List supported formats
// @Description Returns the accepted inputs and the supported conversions
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/formats [get]
func listFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"formats":     []string{"osu", "osz", "bms", "midi"},
		"conversions": converter.GetSupportedConversions(),
	})
}

// handleConvert godoc
// @Summary Convert .osu to BMS
// @Description Upload an osu!mania beatmap and receive a Shift-JIS BMS chart
// @Tags convert
// @Accept multipart/form-data
// @Produce application/octet-stream
// @Param file formData file true ".osu beatmap to convert"
// @Param hitsound query bool false "Keysound notes with their hit sounds"
// @Param bg query bool false "Declare the background image"
// @Param offset query int false "Offset in milliseconds added to every note"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/convert [post]
func (s *server) handleConvert(c *gin.Context) {
	s.handleBeatmap(c, converter.BMS{}, "application/octet-stream")
}

// handlePreview godoc
// @Summary Render a MIDI preview
// @Description Upload an osu!mania beatmap and receive a MIDI file of its notes and tempo map
// @Tags convert
// @Accept multipart/form-data
// @Produce audio/midi
// @Param file formData file true ".osu beatmap to preview"
// @Param offset query int false "Offset in milliseconds added to every note"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/preview [post]
func (s *server) handlePreview(c *gin.Context) {
	s.handleBeatmap(c, converter.MIDI{}, "audio/midi")
}

func (s *server) handleBeatmap(c *gin.Context, target converter.Target, contentType string) {
	data, ok := readUpload(c)
	if !ok {
		return
	}
	opts, err := s.options(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv := converter.New(target, opts, s.requestLogger(c))
	result, err := conv.ConvertBytes(data)
	if err != nil {
		s.requestLogger(c).Warn("conversion failed", "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	if result.Format == converter.FormatMIDI {
		if sum, err := preview.Inspect(result.Data); err == nil {
			c.Header("X-Om2bms-Notes", strconv.Itoa(sum.Notes))
			c.Header("X-Om2bms-Tempo-Changes", strconv.Itoa(sum.TempoChanges))
		}
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, contentType, result.Data)
}

// handleConvertOsz godoc
// @Summary Convert a whole .osz set
// @Description Upload an .osz archive and receive a zip with every convertible chart and the set's assets
// @Tags convert
// @Accept multipart/form-data
// @Produce application/zip
// @Param file formData file true ".osz archive to convert"
// @Param hitsound query bool false "Keysound notes with their hit sounds"
// @Param bg query bool false "Declare the background image"
// @Param offset query int false "Offset in milliseconds added to every note"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/convert/osz [post]
func (s *server) handleConvertOsz(c *gin.Context) {
	data, ok := readUpload(c)
	if !ok {
		return
	}
	opts, err := s.options(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	work, err := os.MkdirTemp("", "om2bms-api-")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer os.RemoveAll(work)

	osz := filepath.Join(work, "upload.osz")
	if err := os.WriteFile(osz, data, 0644); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	logger := s.requestLogger(c)
	runner := batch.NewRunner(opts, s.cfg.WorkerCount(), s.cfg.TimeoutDuration(), logger)
	report, err := runner.ConvertOsz(c.Request.Context(), osz, filepath.Join(work, "out"))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if len(report.Converted()) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no beatmap could be converted", "failed": failures(report)})
		return
	}

	var buf bytes.Buffer
	if err := batch.Archive(report.OutputDir, &buf); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if failed := failures(report); len(failed) > 0 {
		c.Header("X-Om2bms-Failed", strings.Join(failed, ", "))
	}
	c.Header("Content-Disposition", "attachment; filename=\"converted.zip\"")
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

func readUpload(c *gin.Context) ([]byte, bool) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return nil, false
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return nil, false
	}
	return data, true
}

// options applies the query overrides to the configured defaults
func (s *server) options(c *gin.Context) (converter.Options, error) {
	opts := s.cfg.Options()
	if v, ok := c.GetQuery("hitsound"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid hitsound: %q", v)
		}
		opts.HitSounds = b
	}
	if v, ok := c.GetQuery("bg"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid bg: %q", v)
		}
		opts.Background = b
	}
	if v, ok := c.GetQuery("offset"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("invalid offset: %q", v)
		}
		opts.OffsetMs = n
	}
	return opts, nil
}

func (s *server) requestLogger(c *gin.Context) *slog.Logger {
	return s.logger.With("request_id", c.GetString("request_id"))
}

func failures(report *batch.Report) []string {
	var names []string
	for _, res := range report.Failed() {
		names = append(names, filepath.Base(res.Source))
	}
	return names
}
