// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"
	"time"

	"github.com/ahrav/credcheck/internal/domain"
)

// LLMClient defines the interface for interacting with Large Language
// Model providers.
// Implementations should handle provider-specific details like authentication,
// request formatting, and response parsing.
type LLMClient interface {
	// Complete sends a completion request to the LLM provider.
	// It returns the generated text and any error encountered.
	//
	// The options map allows flexibility for different providers without
	// changing the interface. Common options include:
	//   - "temperature": float64 (0.0-1.0)
	//   - "max_tokens": int
	//   - "json": bool, asking the provider for a bare JSON object
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// GetModel returns the model identifier being used by this client.
	GetModel() string
}

// Recognizer is a text-recognition engine. Implementations wrap a concrete
// OCR capability and report failures as errors; callers decide whether a
// failure is fatal.
type Recognizer interface {
	// Recognize returns the text found in an encoded image (PNG, JPEG...)
	// using the given page segmentation mode. allowed restricts the
	// character set the engine may emit; an empty string means no limit.
	Recognize(ctx context.Context, image []byte, mode domain.SegmentationMode, allowed string) (string, error)

	// Name identifies the engine for logs and metrics.
	Name() string
}

// Extractor turns a certificate image into an extraction corpus.
type Extractor interface {
	// Extract runs the full strategy battery over the image at path.
	// It returns an error only when no extraction could run at all.
	Extract(ctx context.Context, path string) (domain.Corpus, domain.ExtractionReport, error)
}

// CredentialMatcher decides whether a claimed credential id appears in a corpus.
type CredentialMatcher interface {
	Match(corpus, claim string) bool
}

// TitleVerifier judges a skill title against certificate text. It never
// returns an error: failures are expressed as a failing verdict.
type TitleVerifier interface {
	Verify(ctx context.Context, corpus, title string) domain.TitleVerdict
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus, OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
