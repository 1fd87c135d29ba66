package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tablecraft/menu-digitizer/internal/common"
	"github.com/tablecraft/menu-digitizer/internal/llm/gemini"
	"github.com/tablecraft/menu-digitizer/internal/ocr"
	"github.com/tablecraft/menu-digitizer/internal/pipeline"
	"github.com/tablecraft/menu-digitizer/internal/progress"
	"github.com/tablecraft/menu-digitizer/internal/server"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Progress channel: Redis when configured, in-memory otherwise.
	var pub progress.Publisher
	if cfg.Redis.Addr != "" {
		rp, err := progress.NewRedisPublisher(progress.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.Pipeline.ProgressTTL,
		})
		if err != nil {
			logger.Error("connecting to redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		defer func() {
			if cerr := rp.Close(); cerr != nil {
				logger.Error("closing redis", "error", cerr)
			}
		}()
		pub = rp
		logger.Info("progress channel ready", "backend", "redis", "addr", cfg.Redis.Addr)
	} else {
		pub = progress.NewMemoryPublisher(cfg.Pipeline.ProgressTTL)
		logger.Info("progress channel ready", "backend", "memory")
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
	}, extractor, structurer, pub, logger)

	queue := pipeline.NewQueue(pipe, pub, logger,
		pipeline.WithWorkers(cfg.Pipeline.Workers),
		pipeline.WithQueueSize(cfg.Pipeline.QueueSize),
		pipeline.WithJobTimeout(cfg.Pipeline.JobTimeout),
	)

	h := server.NewHandler(pipe, queue, pub, cfg.Server.UploadDir, cfg.Server.MaxUploadSize, logger)
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.NewRouter(h),
	}

	go func() {
		logger.Info("http serving", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
