// Package application sequences certificate verification: it drives the
// extraction battery, runs credential matching and title verification over
// the resulting corpus, and combines their outcomes into a single
// VerificationResult. It also owns process configuration and the wiring of
// infrastructure components.
package application

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/credcheck/internal/domain"
	"github.com/ahrav/credcheck/internal/logging"
	"github.com/ahrav/credcheck/internal/ports"
)

// PreviewLength is the number of runes of corpus text copied into
// VerificationResult.ExtractedText.
const PreviewLength = 500

// Verification outcomes reported in metrics.
const (
	OutcomeVerified         = "verified"
	OutcomeRejected         = "rejected"
	OutcomeExtractionFailed = "extraction_failed"
)

// Coordinator is the single entry point used by the publish workflow. It
// holds no per-call state, so one Coordinator serves concurrent requests.
type Coordinator struct {
	extractor ports.Extractor
	matcher   ports.CredentialMatcher
	verifier  ports.TitleVerifier
	logger    logging.Logger
	metrics   ports.MetricsCollector
	tracer    trace.Tracer
}

// NewCoordinator creates a Coordinator. logger and metrics may be nil.
func NewCoordinator(
	extractor ports.Extractor,
	matcher ports.CredentialMatcher,
	verifier ports.TitleVerifier,
	logger logging.Logger,
	metrics ports.MetricsCollector,
) (*Coordinator, error) {
	switch {
	case extractor == nil:
		return nil, fmt.Errorf("%w: extractor is required", domain.ErrInvalidConfiguration)
	case matcher == nil:
		return nil, fmt.Errorf("%w: credential matcher is required", domain.ErrInvalidConfiguration)
	case verifier == nil:
		return nil, fmt.Errorf("%w: title verifier is required", domain.ErrInvalidConfiguration)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Coordinator{
		extractor: extractor,
		matcher:   matcher,
		verifier:  verifier,
		logger:    logger,
		metrics:   metrics,
		tracer:    otel.Tracer("verification-coordinator"),
	}, nil
}

// VerifyCertificateCredential checks that credentialID appears on the
// certificate image at certificatePath and that skillTitle is appropriate
// and related to what the certificate teaches.
//
// Business rejections are not errors: they come back as a result with
// Success false and an explanatory Message. Only two failures are returned
// as errors. Missing arguments yield a *domain.ValidationError and a nil
// result. A failed extraction yields a fully populated failure result
// together with an error matching domain.ErrExtractionFailed.
//
// Every temporary file created while extracting is removed before this
// method returns, including when ctx is cancelled.
func (c *Coordinator) VerifyCertificateCredential(
	ctx context.Context,
	certificatePath, credentialID, skillTitle string,
) (*domain.VerificationResult, error) {
	if err := validateRequest(certificatePath, credentialID, skillTitle); err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "Coordinator.VerifyCertificateCredential",
		trace.WithAttributes(
			attribute.String("certificate.name", filepath.Base(certificatePath)),
		),
	)
	defer span.End()

	start := time.Now()
	r := &run{
		stage:  domain.StageStart,
		logger: c.logger.With(logging.String("verification_id", uuid.NewString())),
	}

	result, err := c.verify(ctx, r, certificatePath, credentialID, skillTitle)

	outcome := OutcomeRejected
	switch {
	case errors.Is(err, domain.ErrExtractionFailed):
		outcome = OutcomeExtractionFailed
	case result != nil && result.Success:
		outcome = OutcomeVerified
	}
	c.record(outcome, time.Since(start))

	span.SetAttributes(
		attribute.String("verification.outcome", outcome),
		attribute.String("verification.stage", r.stage.String()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("certificate verification failed",
			logging.String("stage", r.stage.String()),
			logging.Err(err),
		)
		return result, err
	}

	r.logger.Info("certificate verification decided",
		logging.String("outcome", outcome),
		logging.Bool("credential_valid", result.CredentialValid),
		logging.Bool("title_valid", result.TitleValid),
		logging.Bool("is_appropriate", result.IsAppropriate),
		logging.String("relationship", string(result.Relationship)),
		logging.Int("confidence", result.Confidence),
		logging.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (c *Coordinator) verify(
	ctx context.Context,
	r *run,
	certificatePath, credentialID, skillTitle string,
) (*domain.VerificationResult, error) {
	if err := r.advance(domain.StageExtracting); err != nil {
		return nil, err
	}

	corpus, report, err := c.extractor.Extract(ctx, certificatePath)
	if err != nil {
		if advErr := r.advance(domain.StageExtractionFailed); advErr != nil {
			return nil, advErr
		}
		if !errors.Is(err, domain.ErrExtractionFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrExtractionFailed, err)
		}
		return &domain.VerificationResult{
			Success:    false,
			Message:    ExtractionFailedMessage,
			Error:      err.Error(),
			Extraction: report,
		}, err
	}

	if err := r.advance(domain.StageExtracted); err != nil {
		return nil, err
	}
	r.logger.Debug("certificate text extracted",
		logging.Int("segments", corpus.Segments()),
		logging.Int("strategies_attempted", report.Attempted),
		logging.Int("strategies_produced", report.Produced),
	)

	if err := r.advance(domain.StageMatchingVerifying); err != nil {
		return nil, err
	}

	var (
		credentialValid bool
		verdict         domain.TitleVerdict
		g               errgroup.Group
	)
	text := corpus.Text()
	g.Go(func() error {
		credentialValid = c.matcher.Match(text, credentialID)
		return nil
	})
	g.Go(func() error {
		verdict = c.verifier.Verify(ctx, text, skillTitle)
		return nil
	})
	_ = g.Wait()

	if err := r.advance(domain.StageDecided); err != nil {
		return nil, err
	}

	return &domain.VerificationResult{
		Success:             credentialValid && verdict.Success,
		CredentialValid:     credentialValid,
		TitleValid:          verdict.Success,
		IsAppropriate:       verdict.IsAppropriate,
		InappropriateReason: verdict.InappropriateReason,
		Confidence:          verdict.Confidence,
		Relationship:        verdict.Relationship,
		CertificateTitle:    verdict.CertificateTitle,
		AIReason:            verdict.Reason,
		ExtractedText:       corpus.Prefix(PreviewLength),
		Message:             SynthesizeMessage(credentialID, skillTitle, credentialValid, verdict),
		Extraction:          report,
	}, nil
}

func (c *Coordinator) record(outcome string, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	labels := map[string]string{"outcome": outcome}
	c.metrics.RecordCounter("verifications_total", 1, labels)
	c.metrics.RecordLatency("verification", elapsed, labels)
}

// run tracks the stage of one verification call.
type run struct {
	stage  domain.Stage
	logger logging.Logger
}

func (r *run) advance(next domain.Stage) error {
	stage, err := r.stage.Transition(next)
	if err != nil {
		return err
	}
	r.logger.Debug("verification stage changed",
		logging.String("from", r.stage.String()),
		logging.String("to", stage.String()),
	)
	r.stage = stage
	return nil
}

func validateRequest(certificatePath, credentialID, skillTitle string) error {
	verr := domain.NewValidationError("verification request")
	if strings.TrimSpace(certificatePath) == "" {
		verr.AddError("certificate path is required")
	}
	if strings.TrimSpace(credentialID) == "" {
		verr.AddError("credential id is required")
	}
	if strings.TrimSpace(skillTitle) == "" {
		verr.AddError("skill title is required")
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}
