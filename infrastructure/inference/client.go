// Package inference provides the generative-model client used by the title
// verifier. Providers (Google Gemini, OpenAI, Anthropic) sit behind the
// small CoreLLM interface and are wrapped by middleware for timeouts,
// retries, rate limiting, circuit breaking, metrics and tracing.
//
// Basic usage:
//
//	client, err := inference.NewClient("google", inference.ClientConfig{
//	    APIKey: os.Getenv("GEMINI_API_KEY"),
//	    Model:  "gemini-2.5-flash",
//	    Middleware: inference.StandardMiddleware(resilience, collector),
//	})
//	answer, err := client.Complete(ctx, prompt, map[string]any{"json": true})
package inference

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ahrav/credcheck/internal/ports"
)

// CoreLLM defines the minimal interface that providers implement and that
// middleware wraps.
type CoreLLM interface {
	// DoRequest sends a prompt and returns the response text with input and
	// output token counts.
	DoRequest(ctx context.Context, prompt string, opts map[string]any) (response string, tokensIn, tokensOut int, err error)

	// GetModel returns the currently configured model name.
	GetModel() string
}

// Middleware wraps a CoreLLM to add cross-cutting behavior.
type Middleware func(CoreLLM) CoreLLM

// ClientConfig holds the options for creating a Client.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model selects the provider model. Each provider has a default.
	Model string

	// BaseURL overrides the provider endpoint. Leave empty for the default.
	BaseURL string

	// Timeout bounds the provider's HTTP client. Zero keeps the SDK default.
	Timeout time.Duration

	// Middleware is applied in order; the first entry is the outermost.
	Middleware []Middleware
}

// ProviderFactory creates a CoreLLM from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var (
	factoriesMu       sync.RWMutex
	providerFactories = map[string]ProviderFactory{}
)

// RegisterProviderFactory makes a provider available to NewClient.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	providerFactories[providerType] = factory
}

// Providers lists the registered provider names in sorted order.
func Providers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(providerFactories))
	for name := range providerFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var _ ports.LLMClient = (*Client)(nil)

// Client implements ports.LLMClient over a provider wrapped in middleware.
type Client struct {
	core CoreLLM
}

// NewClient creates a Client for providerType. An empty API key is an
// error here; callers that allow running without inference should not
// construct a client at all.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factoriesMu.RLock()
	factory, ok := providerFactories[providerType]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	return NewClientFromCore(core, config.Middleware...), nil
}

// NewClientFromCore wraps an existing CoreLLM. Tests use it with MockCoreLLM.
func NewClientFromCore(core CoreLLM, middleware ...Middleware) *Client {
	// Apply in reverse so the first middleware is the outermost.
	for i := len(middleware) - 1; i >= 0; i-- {
		core = middleware[i](core)
	}
	return &Client{core: core}
}

// Complete sends a prompt and returns the response text.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.CompleteWithUsage(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage sends a prompt and returns the response with token usage.
// Failures are returned as *ports.LLMError naming the model.
func (c *Client) CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error) {
	response, in, out, err := c.core.DoRequest(ctx, prompt, options)
	if err != nil {
		return "", 0, 0, ports.NewLLMError(c.core.GetModel(), "Complete", err)
	}
	return response, in, out, nil
}

// GetModel returns the model name of the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// estimateTokens approximates a token count when a provider omits usage.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// tokenCount prefers the provider-reported count.
func tokenCount(actual int64, text string) int {
	if actual > 0 {
		return int(actual)
	}
	return estimateTokens(text)
}
