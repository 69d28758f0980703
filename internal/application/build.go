package application

import (
	"context"
	"fmt"

	"github.com/ahrav/credcheck/infrastructure/extraction"
	"github.com/ahrav/credcheck/infrastructure/imaging"
	"github.com/ahrav/credcheck/infrastructure/inference"
	"github.com/ahrav/credcheck/infrastructure/ocr"
	"github.com/ahrav/credcheck/infrastructure/units"
	"github.com/ahrav/credcheck/internal/logging"
	"github.com/ahrav/credcheck/internal/ports"
)

// Build wires a Coordinator from cfg. registry may be nil to use
// DefaultEngineRegistry; logger and collector may be nil.
//
// A missing inference key is not an error: the title verifier is built
// without a client and reports every title as not verified.
func Build(
	ctx context.Context,
	cfg *AppConfig,
	registry *EngineRegistry,
	logger logging.Logger,
	collector ports.MetricsCollector,
) (*Coordinator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if registry == nil {
		registry = DefaultEngineRegistry()
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	engine, err := registry.Create(ctx, cfg.OCR)
	if err != nil {
		return nil, err
	}
	adapter := ocr.NewAdapter(engine, cfg.OCR.Timeout, logger)

	orchestrator, err := extraction.NewOrchestrator(imaging.NewPreprocessor(), adapter, cfg.Extraction, logger, collector)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	matcher, err := units.NewCredentialMatchUnit(cfg.Matcher)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential matcher: %w", err)
	}

	llmClient, err := newLLMClient(cfg.Inference, collector)
	if err != nil {
		return nil, err
	}
	verifier, err := units.NewTitleVerificationUnit(llmClient, cfg.Verifier, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create title verifier: %w", err)
	}

	logger.Info("verification pipeline ready",
		logging.String("ocr_engine", engine.Name()),
		logging.Bool("inference_configured", llmClient != nil),
		logging.String("inference_provider", cfg.Inference.Provider),
		logging.Int("extraction_concurrency", cfg.Extraction.Concurrency),
	)

	return NewCoordinator(orchestrator, matcher, verifier, logger, collector)
}

// newLLMClient returns a nil interface when no key is configured.
func newLLMClient(cfg InferenceConfig, collector ports.MetricsCollector) (ports.LLMClient, error) {
	if !cfg.Configured() {
		return nil, nil
	}
	client, err := inference.NewClient(cfg.Provider, inference.ClientConfig{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Resilience.Timeout,
		Middleware: inference.StandardMiddleware(cfg.Resilience, collector),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create inference client: %w", err)
	}
	return client, nil
}
