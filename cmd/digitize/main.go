package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/tablecraft/menu-digitizer/internal/common"
	"github.com/tablecraft/menu-digitizer/internal/llm/gemini"
	"github.com/tablecraft/menu-digitizer/internal/ocr"
	"github.com/tablecraft/menu-digitizer/internal/pipeline"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "digitize <menu-image>")
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if cfg.LLM.APIKey == "" {
		logger.Error("GEMINI_API_KEY env var is required")
		os.Exit(2)
	}

	// The pipeline removes its input when the run concludes, so hand it a
	// copy rather than the caller's file.
	tmpPath, err := copyToTemp(os.Args[1])
	if err != nil {
		logger.Error("staging image", "path", os.Args[1], "error", err)
		os.Exit(1)
	}

	extractor := ocr.NewExtractor(ocr.Config{
		Tesseract:   cfg.OCR.Tesseract,
		Language:    cfg.OCR.Language,
		TessdataDir: cfg.OCR.TessdataDir,
		PSM:         cfg.OCR.PSM,
		OEM:         cfg.OCR.OEM,
	}, logger)

	structurer := gemini.NewClient(gemini.Config{
		APIKey:                cfg.LLM.APIKey,
		Model:                 cfg.LLM.Model,
		BaseURL:               cfg.LLM.BaseURL,
		ExtractTemperature:    cfg.LLM.ExtractTemperature,
		SuggestionTemperature: cfg.LLM.SuggestionTemperature,
		MaxOutputTokens:       cfg.LLM.MaxOutputTokens,
		Timeout:               cfg.LLM.Timeout,
	}, logger)

	pipe := pipeline.New(pipeline.Config{
		OCRTimeout: cfg.OCR.Timeout,
		LLMTimeout: cfg.LLM.Timeout,
	}, extractor, structurer, nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Pipeline.JobTimeout)
	defer cancel()

	start := time.Now()
	menu, err := pipe.Run(ctx, "", tmpPath)
	if err != nil {
		logger.Error("digitization failed", "kind", common.KindOf(err), "error", err, "duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}

	out, err := json.MarshalIndent(menu, "", "  ")
	if err != nil {
		logger.Error("encode result", "error", err)
		os.Exit(1)
	}
	os.Stdout.Write(append(out, '\n'))

	logger.Info("digitization OK",
		"categories", len(menu.Menu),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func copyToTemp(src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	tmp, err := os.CreateTemp("", "menu-*"+filepath.Ext(src))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
