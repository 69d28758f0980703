package inference

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockCoreLLM is a scripted CoreLLM for middleware and client tests.
type MockCoreLLM struct {
	mu sync.Mutex

	Response      string
	TokensIn      int
	TokensOut     int
	Error         error
	Model         string
	ResponseDelay time.Duration

	// FailUntilAttempt makes the first N calls fail with Error (or a
	// generic error when Error is nil), after which calls succeed.
	FailUntilAttempt int

	CallCount      int
	LastPrompt     string
	LastOpts       map[string]any
	CallTimestamps []time.Time
}

// NewMockCoreLLM creates a MockCoreLLM that answers successfully.
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Response:  `{"isAppropriate":true,"isRelevant":true,"confidence":90,"relationship":"same"}`,
		TokensIn:  10,
		TokensOut: 20,
		Model:     "gemini-2.5-flash",
	}
}

var errSimulated = errors.New("simulated failure")

// DoRequest implements CoreLLM.
func (m *MockCoreLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	m.mu.Lock()
	m.CallCount++
	call := m.CallCount
	m.LastPrompt = prompt
	m.LastOpts = opts
	m.CallTimestamps = append(m.CallTimestamps, time.Now())
	delay, failUntil, cfgErr := m.ResponseDelay, m.FailUntilAttempt, m.Error
	response, in, out := m.Response, m.TokensIn, m.TokensOut
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		}
	}

	if failUntil > 0 {
		if call <= failUntil {
			if cfgErr != nil {
				return "", 0, 0, cfgErr
			}
			return "", 0, 0, errSimulated
		}
		return response, in, out, nil
	}
	if cfgErr != nil {
		return "", 0, 0, cfgErr
	}
	return response, in, out, nil
}

// GetModel implements CoreLLM.
func (m *MockCoreLLM) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// Calls returns the number of DoRequest calls so far.
func (m *MockCoreLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}
