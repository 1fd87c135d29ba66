// Package ocr runs optical character recognition over menu photographs
// through the tesseract CLI.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/tablecraft/menu-digitizer/constants"
	"github.com/tablecraft/menu-digitizer/internal/common"
)

type Config struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Language    string // default "eng"
	TessdataDir string

	PSM int // e.g., 6 is good for a uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default
}

// ExtractionResult is the output of one OCR run. Lines preserves the
// recognizer's reading order; an empty Lines with a nil error is a valid
// outcome (blank or illegible menu).
type ExtractionResult struct {
	Lines    []string
	Text     string
	Language string
	Duration time.Duration
	Warnings []string
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// Extract runs tesseract over the image at path and returns the recognized
// lines. Unsupported or undecodable inputs fail with an extraction error.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("ocr.extract.start", "path", path, "ext", ext, "lang", e.cfg.Language)

	if !constants.IsImageExt(ext) {
		e.logger.Error("ocr.extract.unsupported_ext", "extension", ext)
		return ExtractionResult{}, common.ExtractionError(fmt.Sprintf("unsupported extension: %q", ext), nil)
	}

	txt, warns, err := e.tesseractOCR(ctx, path)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ExtractionResult{Warnings: warns}, common.TimeoutError("tesseract exceeded its time bound", ctx.Err())
		}
		if ctx.Err() != nil {
			return ExtractionResult{Warnings: warns}, ctx.Err()
		}
		return ExtractionResult{Warnings: warns}, common.ExtractionError("tesseract failed", err)
	}

	txt = Normalize(txt)
	res := ExtractionResult{
		Lines:    SplitLines(txt),
		Text:     txt,
		Language: e.cfg.Language,
		Duration: time.Since(start),
		Warnings: warns,
	}
	e.logger.Debug("ocr.extract.ok", "lines", len(res.Lines), "bytes", len(res.Text), "duration_ms", res.Duration.Milliseconds())
	return res, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	args := []string{path, "stdout", "-l", e.cfg.Language}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}

	// minor cleanup of obvious line noise
	txt := reBoxNoise.ReplaceAllString(string(out), "")
	return txt, nil, nil
}
