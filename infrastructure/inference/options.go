package inference

import (
	"fmt"
	"net/url"
)

// DefaultMaxTokens is used when a request does not set max_tokens.
const DefaultMaxTokens = 1024

// RequestOptions is the provider-neutral view of a request's option map.
type RequestOptions struct {
	// MaxTokens is the generation limit.
	MaxTokens int
	// Model overrides the provider model for one request.
	Model string
	// Temperature is nil when the provider default should be used.
	Temperature *float64
	// System is an optional system instruction.
	System string
	// JSON asks the provider for a bare JSON object when it supports it.
	JSON bool
}

// ParseRequestOptions reads the recognized keys of opts. Invalid values fall
// back to defaults rather than failing the request.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: DefaultMaxTokens,
		Model:     defaultModel,
	}
	if v, ok := opts["max_tokens"].(int); ok && v > 0 {
		options.MaxTokens = v
	}
	if v, ok := opts["model"].(string); ok && v != "" {
		options.Model = v
	}
	if v, ok := opts["system"].(string); ok {
		options.System = v
	}
	if v, ok := opts["temperature"].(float64); ok && v >= 0 && v <= 1 {
		options.Temperature = &v
	}
	if v, ok := opts["json"].(bool); ok {
		options.JSON = v
	}
	return options
}

// validateBaseURL accepts absolute http(s) URLs only.
func validateBaseURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("base URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base URL has no host")
	}
	return u.String(), nil
}

func clamp(val, lo, hi float64) float64 {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
