package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/credcheck/internal/ports"
)

func TestProvidersRegistered(t *testing.T) {
	assert.Equal(t, []string{"anthropic", "google", "openai"}, Providers())
}

func TestNewClient_Errors(t *testing.T) {
	_, err := NewClient("openai", ClientConfig{})
	assert.ErrorIs(t, err, ErrEmptyAPIKey)

	_, err = NewClient("mystery", ClientConfig{APIKey: "k"})
	assert.ErrorContains(t, err, "unknown provider: mystery")

	_, err = NewClient("openai", ClientConfig{APIKey: "k", BaseURL: "ftp://example.com"})
	assert.ErrorContains(t, err, "invalid BaseURL")
}

func TestNewClient_DefaultModels(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"openai", OpenAIDefaultModel},
		{"anthropic", AnthropicDefaultModel},
		{"google", GoogleDefaultModel},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			client, err := NewClient(tt.provider, ClientConfig{APIKey: "test-key"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, client.GetModel())
		})
	}
}

// TestNewClientFromCore_MiddlewareOrder tests that the first middleware is
// the outermost.
func TestNewClientFromCore_MiddlewareOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next CoreLLM) CoreLLM {
			return coreFunc{model: next.GetModel(), fn: func(ctx context.Context, p string, o map[string]any) (string, int, int, error) {
				order = append(order, name)
				return next.DoRequest(ctx, p, o)
			}}
		}
	}

	mock := NewMockCoreLLM()
	client := NewClientFromCore(mock, tag("outer"), tag("inner"))

	out, err := client.Complete(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, mock.Response, out)
	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.Equal(t, "gemini-2.5-flash", client.GetModel())
}

func TestClient_CompleteWithUsage(t *testing.T) {
	mock := NewMockCoreLLM()
	client := NewClientFromCore(mock)

	_, in, out, err := client.CompleteWithUsage(context.Background(), "prompt", map[string]any{"json": true})
	require.NoError(t, err)
	assert.Equal(t, 10, in)
	assert.Equal(t, 20, out)
	assert.Equal(t, true, mock.LastOpts["json"])

	boom := errors.New("boom")
	mock.Error = boom
	_, err = client.Complete(context.Background(), "prompt", nil)
	require.ErrorIs(t, err, boom)

	var llmErr *ports.LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, mock.GetModel(), llmErr.Model)
	assert.Equal(t, "Complete", llmErr.Operation)
}

func TestTokenCount(t *testing.T) {
	assert.Equal(t, 42, tokenCount(42, "ignored"))
	assert.Equal(t, 3, tokenCount(0, "abcdefghij"))
	assert.Equal(t, 0, tokenCount(0, ""))
}

type coreFunc struct {
	model string
	fn    func(context.Context, string, map[string]any) (string, int, int, error)
}

func (c coreFunc) DoRequest(ctx context.Context, p string, o map[string]any) (string, int, int, error) {
	return c.fn(ctx, p, o)
}

func (c coreFunc) GetModel() string { return c.model }
