// Package pipeline orchestrates menu digitization: OCR, structuring, and
// sanitization, with progress checkpoints and guaranteed cleanup of the
// source image.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/tablecraft/menu-digitizer/constants"
	"github.com/tablecraft/menu-digitizer/internal/common"
	"github.com/tablecraft/menu-digitizer/internal/llm"
	"github.com/tablecraft/menu-digitizer/internal/ocr"
	"github.com/tablecraft/menu-digitizer/internal/progress"
)

// TextExtractor is Stage 1: image file -> recognized lines.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (ocr.ExtractionResult, error)
}

// Config holds per-stage time bounds. Both stages are cancellable and must
// never hang past their bound.
type Config struct {
	OCRTimeout time.Duration // default 60s
	LLMTimeout time.Duration // default 45s
}

// Pipeline sequences extraction, structuring, and sanitization for one
// image. Runs are independent; concurrent pipelines share nothing but the
// progress channel, which is keyed per job.
type Pipeline struct {
	cfg        Config
	extractor  TextExtractor
	structurer llm.MenuStructurer
	progress   progress.Publisher // nil disables checkpoint publishing
	logger     *slog.Logger
}

func New(cfg Config, extractor TextExtractor, structurer llm.MenuStructurer, pub progress.Publisher, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OCRTimeout <= 0 {
		cfg.OCRTimeout = 60 * time.Second
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 45 * time.Second
	}
	return &Pipeline{
		cfg:        cfg,
		extractor:  extractor,
		structurer: structurer,
		progress:   pub,
		logger:     logger,
	}
}

// Run executes the full pipeline for the image at imagePath. The image is a
// scoped temporary resource: it is removed when the run concludes, success
// or failure. jobID may be empty for synchronous callers with no progress
// consumer.
func (p *Pipeline) Run(ctx context.Context, jobID, imagePath string) (*llm.StructuredMenu, error) {
	start := time.Now()
	defer p.removeImage(imagePath)

	// Queued -> ExtractingText
	p.report(ctx, jobID, constants.ProgressExtracting, constants.StepExtractingText)

	ocrCtx, cancel := context.WithTimeout(ctx, p.cfg.OCRTimeout)
	res, err := p.extractor.Extract(ocrCtx, imagePath)
	cancel()
	if err != nil {
		return nil, p.fail(ctx, jobID, constants.ProgressExtracting, classify(err, "text extraction", common.KindExtraction))
	}
	p.logger.Info("pipeline.extract.ok", "job_id", jobID, "lines", len(res.Lines), "bytes", len(res.Text))

	// ExtractingText -> StructuringMenu. An empty extraction is a valid
	// outcome and flows downstream as empty text.
	p.report(ctx, jobID, constants.ProgressStructuring, constants.StepStructuringMenu)

	llmCtx, cancel := context.WithTimeout(ctx, p.cfg.LLMTimeout)
	raw, err := p.structurer.Structure(llmCtx, strings.Join(res.Lines, "\n"))
	cancel()
	if err != nil {
		return nil, p.fail(ctx, jobID, constants.ProgressStructuring, classify(err, "menu structuring", common.KindStructuring))
	}
	p.logger.Info("pipeline.structure.ok", "job_id", jobID, "bytes", len(raw))

	// StructuringMenu -> SanitizingOutput
	p.report(ctx, jobID, constants.ProgressSanitizing, constants.StepSanitizingOutput)

	menu, err := llm.Sanitize(raw)
	if err != nil {
		return nil, p.fail(ctx, jobID, constants.ProgressSanitizing, err)
	}

	// SanitizingOutput -> Completed. The terminal checkpoint carries the
	// digitized menu so async callers collect it from the poll.
	p.publishTerminal(ctx, jobID, progress.Checkpoint{
		Progress: constants.ProgressCompleted,
		Step:     constants.StepCompleted,
		Result:   marshalResult(menu),
	})
	p.logger.Info("pipeline.run.ok",
		"job_id", jobID,
		"categories", len(menu.Menu),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return menu, nil
}

// fail publishes the terminal failure checkpoint at the last reached
// progress value (never 100) and returns the classified error.
func (p *Pipeline) fail(ctx context.Context, jobID string, lastProgress int, err error) error {
	kind := common.KindOf(err)
	p.logger.Error("pipeline.run.failed", "job_id", jobID, "kind", kind, "error", err)
	p.publishTerminal(ctx, jobID, progress.Checkpoint{Progress: lastProgress, Step: constants.StepFailed, ErrorKind: kind})
	return err
}

// publishTerminal stores a terminal checkpoint. The run's own deadline may
// be the reason the run ended, so terminal publishes are detached from its
// cancellation and given a short deadline of their own.
func (p *Pipeline) publishTerminal(ctx context.Context, jobID string, cp progress.Checkpoint) {
	if p.progress == nil || jobID == "" {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.progress.Publish(pctx, jobID, cp); err != nil {
		p.logger.Error("pipeline.progress.publish_failed", "job_id", jobID, "step", cp.Step, "error", err)
	}
}

func (p *Pipeline) report(ctx context.Context, jobID string, pct int, step string) {
	if p.progress == nil || jobID == "" {
		return
	}
	if err := p.progress.Publish(ctx, jobID, progress.Checkpoint{Progress: pct, Step: step}); err != nil {
		p.logger.Error("pipeline.progress.publish_failed", "job_id", jobID, "step", step, "error", err)
	}
}

func (p *Pipeline) removeImage(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("pipeline.image.remove_failed", "path", path, "error", err)
	}
}

func marshalResult(menu *llm.StructuredMenu) json.RawMessage {
	b, err := json.Marshal(menu)
	if err != nil {
		return nil
	}
	return b
}

// classify attaches the stage's error kind when the error carries none. A
// deadline anywhere in the chain becomes a timeout.
func classify(err error, stage, fallbackKind string) error {
	if common.KindOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return common.TimeoutError(stage+" exceeded its time bound", err)
	}
	return common.NewAppError(fallbackKind, stage+" failed", err)
}
