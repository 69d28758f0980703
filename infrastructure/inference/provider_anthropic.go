package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicDefaultModel is the default Claude model.
const AnthropicDefaultModel = "claude-3-5-haiku-latest"

func init() {
	RegisterProviderFactory("anthropic", newAnthropicProvider)
}

// anthropicProvider implements CoreLLM for the Anthropic Messages API.
// Claude has no JSON response mode; the verifier prompt asks for JSON and
// the answer is parsed leniently.
type anthropicProvider struct {
	client     anthropic.Client
	model      string
	classifier *ErrorClassifier
}

func newAnthropicProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		// Retries are handled by RetryMiddleware.
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		baseURL, err := validateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: config.Timeout}))
	}

	return &anthropicProvider{
		client:     anthropic.NewClient(opts...),
		model:      model,
		classifier: &ErrorClassifier{Provider: "anthropic"},
	}, nil
}

func (p *anthropicProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.model)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(options.Model),
		MaxTokens: int64(options.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if options.Temperature != nil {
		params.Temperature = anthropic.Float(*options.Temperature)
	}
	if options.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: options.System}}
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	content := text.String()
	if content == "" {
		return "", 0, 0, NewProviderError("anthropic", ErrorTypeUnknown, 0, "no text blocks in response", ErrEmptyResponse)
	}

	return content,
		tokenCount(message.Usage.InputTokens, prompt),
		tokenCount(message.Usage.OutputTokens, content),
		nil
}

func (p *anthropicProvider) GetModel() string { return p.model }

func (p *anthropicProvider) handleError(err error) error {
	if pe := p.classifier.ClassifyContextError(err); pe != nil {
		return pe
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		// Anthropic reports overload as 529.
		return p.classifier.ClassifyHTTPError(apiErr.StatusCode, http.StatusText(apiErr.StatusCode), err)
	}

	return NewProviderError("anthropic", ErrorTypeNetwork, 0, "request failed", err)
}
