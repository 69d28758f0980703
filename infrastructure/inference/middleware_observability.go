package inference

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/credcheck/internal/ports"
)

type metricsLLM struct {
	next      CoreLLM
	collector ports.MetricsCollector
}

// MetricsMiddleware records request latency, request counts by status, and
// token usage.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{next: next, collector: collector}
	}
}

func (m *metricsLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := m.next.DoRequest(ctx, prompt, opts)

	model := m.next.GetModel()
	labels := map[string]string{
		"provider": providerFromModel(model),
		"model":    model,
		"status":   requestStatus(ctx, err),
	}
	m.collector.RecordHistogram("inference_latency_seconds", time.Since(start).Seconds(), labels)
	m.collector.RecordCounter("inference_requests_total", 1, labels)
	if err == nil {
		m.collector.RecordCounter("inference_tokens_total", float64(tokensIn), withLabel(labels, "token_type", "input"))
		m.collector.RecordCounter("inference_tokens_total", float64(tokensOut), withLabel(labels, "token_type", "output"))
	}
	return response, tokensIn, tokensOut, err
}

func (m *metricsLLM) GetModel() string { return m.next.GetModel() }

func requestStatus(ctx context.Context, err error) string {
	var pe *ProviderError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &pe) && pe.Type == ErrorTypeTimeout:
		return "timeout"
	default:
		return "error"
	}
}

func withLabel(labels map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	out[key] = value
	return out
}

// providerFromModel guesses the provider from a model name for labels.
func providerFromModel(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "gpt"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"):
		return "openai"
	case strings.Contains(m, "claude"):
		return "anthropic"
	case strings.Contains(m, "gemini"):
		return "google"
	default:
		return "unknown"
	}
}

type tracedLLM struct {
	next   CoreLLM
	tracer trace.Tracer
}

// TracingMiddleware wraps each request in an OpenTelemetry span carrying
// the model, token usage and error status.
func TracingMiddleware(serviceName string) Middleware {
	tracer := otel.Tracer(serviceName)
	return func(next CoreLLM) CoreLLM {
		return &tracedLLM{next: next, tracer: tracer}
	}
}

func (t *tracedLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	model := t.next.GetModel()
	ctx, span := t.tracer.Start(ctx, "inference.DoRequest",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", providerFromModel(model)),
			attribute.String("llm.model", model),
			attribute.Int("llm.prompt_chars", len(prompt)),
		),
	)
	defer span.End()

	response, tokensIn, tokensOut, err := t.next.DoRequest(ctx, prompt, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return response, tokensIn, tokensOut, err
	}

	span.SetAttributes(
		attribute.Int("llm.tokens_in", tokensIn),
		attribute.Int("llm.tokens_out", tokensOut),
	)
	return response, tokensIn, tokensOut, nil
}

func (t *tracedLLM) GetModel() string { return t.next.GetModel() }
