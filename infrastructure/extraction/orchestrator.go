// Package extraction runs the multi-strategy text extraction battery over a
// certificate image and assembles the ordered corpus.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	certimg "github.com/ahrav/credcheck/infrastructure/imaging"
	"github.com/ahrav/credcheck/internal/domain"
	"github.com/ahrav/credcheck/internal/logging"
	"github.com/ahrav/credcheck/internal/ports"
)

// DefaultConcurrency is the number of recognition calls run at once.
const DefaultConcurrency = 4

// Strategy outcomes reported in metrics.
const (
	outcomeProduced = "produced"
	outcomeEmpty    = "empty"
	outcomeSkipped  = "skipped"
)

// Config controls an Orchestrator.
type Config struct {
	// Concurrency bounds parallel recognition calls.
	Concurrency int `yaml:"concurrency" env:"CREDCHECK_EXTRACTION_CONCURRENCY" validate:"min=1,max=32"`
	// InvertedPass appends a full-image pass over the inverted variant.
	InvertedPass bool `yaml:"inverted_pass" env:"CREDCHECK_EXTRACTION_INVERTED_PASS"`
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{Concurrency: DefaultConcurrency}
}

// TextSource recognizes text in an encoded image. Failures are reported as
// empty text. *ocr.Adapter implements it.
type TextSource interface {
	Text(ctx context.Context, image []byte, mode domain.SegmentationMode) string
}

// VariantWriter renders a preprocessing variant of a decoded source image
// to a new file and returns its path. *imaging.Preprocessor implements it.
type VariantWriter interface {
	ProcessImage(ctx context.Context, img image.Image, src string, variant domain.Variant, callID string) (string, error)
}

var _ ports.Extractor = (*Orchestrator)(nil)

// Orchestrator implements ports.Extractor. Each Extract call works on its
// own files, so one Orchestrator serves concurrent requests.
type Orchestrator struct {
	writer  VariantWriter
	text    TextSource
	config  Config
	logger  logging.Logger
	metrics ports.MetricsCollector
	tracer  trace.Tracer
}

// NewOrchestrator creates an Orchestrator. logger and metrics may be nil.
func NewOrchestrator(
	writer VariantWriter,
	text TextSource,
	config Config,
	logger logging.Logger,
	metrics ports.MetricsCollector,
) (*Orchestrator, error) {
	if writer == nil || text == nil {
		return nil, fmt.Errorf("%w: variant writer and text source are required", domain.ErrInvalidConfiguration)
	}
	if config.Concurrency < 1 {
		return nil, fmt.Errorf("%w: concurrency must be at least 1, got %d", domain.ErrInvalidConfiguration, config.Concurrency)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		writer:  writer,
		text:    text,
		config:  config,
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer("extraction-orchestrator"),
	}, nil
}

// Extract runs the strategy battery over the image at path and returns the
// corpus in strategy order. Every variant file written during the call is
// removed before Extract returns, whatever the outcome.
//
// An error is returned only when extraction could not run: the source
// cannot be decoded, the default variant cannot be produced, or ctx ended.
// Individual strategies that fail contribute nothing.
func (o *Orchestrator) Extract(ctx context.Context, path string) (domain.Corpus, domain.ExtractionReport, error) {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Extract",
		trace.WithAttributes(
			attribute.Int("extraction.concurrency", o.config.Concurrency),
			attribute.Bool("extraction.inverted_pass", o.config.InvertedPass),
		),
	)
	defer span.End()

	start := time.Now()
	corpus, report, err := o.extract(ctx, path)

	outcome := "ok"
	if err != nil {
		outcome = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(
		attribute.Int("extraction.attempted", report.Attempted),
		attribute.Int("extraction.produced", report.Produced),
		attribute.Int("extraction.skipped", report.Skipped),
		attribute.Int("extraction.corpus_runes", len([]rune(corpus.Text()))),
	)
	if o.metrics != nil {
		o.metrics.RecordLatency("extraction", time.Since(start), map[string]string{"outcome": outcome})
	}
	return corpus, report, err
}

func (o *Orchestrator) extract(ctx context.Context, path string) (domain.Corpus, domain.ExtractionReport, error) {
	var report domain.ExtractionReport
	var created []string
	defer func() { o.cleanup(created) }()

	src, err := certimg.Decode(path)
	if err != nil {
		return domain.Corpus{}, report, err
	}

	battery := domain.Battery(o.config.InvertedPass)
	callID := uuid.NewString()

	variants := make(map[domain.Variant]image.Image, 3)
	for _, variant := range domain.Variants(battery) {
		file, err := o.writer.ProcessImage(ctx, src, path, variant, callID)
		if file != "" {
			created = append(created, file)
		}
		if err == nil {
			var img image.Image
			img, err = imaging.Open(file)
			if err == nil {
				variants[variant] = img
				continue
			}
		}

		if variant == domain.VariantDefault || ctx.Err() != nil {
			return domain.Corpus{}, report, wrapStep("preprocess:"+string(variant), path, err)
		}
		o.logger.Warn("variant unavailable, skipping its strategies",
			logging.String("variant", string(variant)),
			logging.Err(err),
		)
	}

	results := make([]string, len(battery))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.Concurrency)

	for _, strategy := range battery {
		img, ok := variants[strategy.Variant]
		if !ok {
			report.Skipped++
			o.recordStrategy(strategy, outcomeSkipped)
			continue
		}
		g.Go(func() error {
			text, attempted := o.run(gctx, img, strategy)

			mu.Lock()
			defer mu.Unlock()
			if attempted {
				report.Attempted++
			}
			if text != "" {
				report.Produced++
				o.recordStrategy(strategy, outcomeProduced)
			} else {
				o.recordStrategy(strategy, outcomeEmpty)
			}
			results[strategy.Index] = text
			return nil
		})
	}
	// Strategies never fail the group; only the caller's context can.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return domain.Corpus{}, report, domain.NewExtractionError("recognize", path, err)
	}
	return domain.NewCorpus(results), report, nil
}

// run executes one strategy. It reports whether the recognizer was called.
func (o *Orchestrator) run(ctx context.Context, img image.Image, strategy domain.Strategy) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}

	region, err := certimg.CropRegion(img, strategy.Region)
	if err == nil {
		var data []byte
		data, err = certimg.EncodePNG(region)
		if err == nil {
			return o.text.Text(ctx, data, strategy.Mode), true
		}
	}

	o.logger.Warn("strategy input unavailable",
		logging.String("strategy", strategy.Name()),
		logging.Err(err),
	)
	return "", false
}

func (o *Orchestrator) recordStrategy(strategy domain.Strategy, outcome string) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordCounter("extraction_strategies_total", 1, map[string]string{
		"variant": string(strategy.Variant),
		"mode":    strategy.Mode.String(),
		"outcome": outcome,
	})
}

// cleanup removes every file created during one Extract call.
func (o *Orchestrator) cleanup(files []string) {
	for _, file := range files {
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			o.logger.Warn("failed to remove intermediate file",
				logging.String("path", file),
				logging.Err(err),
			)
		}
	}
}

func wrapStep(step, path string, err error) error {
	var ee *domain.ExtractionError
	if errors.As(err, &ee) {
		return err
	}
	return domain.NewExtractionError(step, path, err)
}
