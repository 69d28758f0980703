// Package testutils holds fakes and fixtures shared by package tests.
package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ahrav/credcheck/internal/ports"
)

// MockLLMClient implements ports.LLMClient with deterministic responses.
// Responses are chosen by case-insensitive substring match against the
// prompt, in the order patterns were added; the first match wins.
type MockLLMClient struct {
	mu       sync.Mutex
	model    string
	patterns []MockResponse
	fallback string
	err      error
	prompts  []string
	options  []map[string]any
}

// MockResponse pairs a prompt pattern with the answer returned for it.
type MockResponse struct {
	// Pattern is matched against the lowercased prompt.
	Pattern string
	// Response is the raw model answer.
	Response string
}

// NewMockLLMClient creates a MockLLMClient whose fallback answer is a
// relevant, appropriate "same" verdict.
func NewMockLLMClient(model string) *MockLLMClient {
	return &MockLLMClient{
		model:    model,
		fallback: VerdictJSON(true, true, 90, "same"),
	}
}

// VerdictJSON renders a title verdict in the shape the verifier asks for.
func VerdictJSON(appropriate, relevant bool, confidence int, relationship string) string {
	reason := ""
	if !appropriate {
		reason = "offensive language"
	}
	return fmt.Sprintf(
		`{"isAppropriate": %t, "inappropriateReason": %q, "isRelevant": %t, "confidence": %d, "relationship": %q, "certificateTitle": "", "reason": "mock verdict"}`,
		appropriate, reason, relevant, confidence, relationship,
	)
}

// AddResponse registers an answer for prompts containing pattern.
func (m *MockLLMClient) AddResponse(response MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	response.Pattern = strings.ToLower(response.Pattern)
	m.patterns = append(m.patterns, response)
}

// SetFallback replaces the answer used when no pattern matches.
func (m *MockLLMClient) SetFallback(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = response
}

// SetError makes every call fail with err. A nil err restores answers.
func (m *MockLLMClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Complete implements ports.LLMClient.
func (m *MockLLMClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	m.options = append(m.options, options)
	if m.err != nil {
		return "", m.err
	}

	lower := strings.ToLower(prompt)
	for _, p := range m.patterns {
		if p.Pattern != "" && strings.Contains(lower, p.Pattern) {
			return p.Response, nil
		}
	}
	return m.fallback, nil
}

// GetModel implements ports.LLMClient.
func (m *MockLLMClient) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// Prompts returns every prompt received so far.
func (m *MockLLMClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// LastOptions returns the options of the most recent call, or nil.
func (m *MockLLMClient) LastOptions() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.options) == 0 {
		return nil
	}
	return m.options[len(m.options)-1]
}

// Verify interface compliance at compile time.
var _ ports.LLMClient = (*MockLLMClient)(nil)
