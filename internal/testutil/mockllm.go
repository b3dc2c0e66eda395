package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockLLM provides deterministic LLM responses for testing.
// It matches user message content against registered patterns and
// returns the corresponding response.
//
// Thread-safe for concurrent use.
type MockLLM struct {
	mu        sync.Mutex
	responses []mockRule
	fallback  string
	err       error
	calls     []MockCall
}

type mockRule struct {
	pattern  string // substring match in user message, lowercase
	response string
}

// MockCall records a single call to the mock model.
type MockCall struct {
	UserMessage string
	Response    string
}

// NewMockLLM creates a mock LLM with the given fallback response.
// The fallback is returned when no pattern matches.
func NewMockLLM(fallback string) *MockLLM {
	return &MockLLM{fallback: fallback}
}

// AddResponse registers a pattern-response pair.
// When a user message contains the pattern (case-insensitive), the
// response is returned. Patterns are checked in registration order;
// first match wins.
func (m *MockLLM) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockRule{
		pattern:  strings.ToLower(pattern),
		response: response,
	})
}

// SetError makes every subsequent generate call fail with err.
// Pass nil to restore normal behavior.
func (m *MockLLM) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns a copy of all recorded calls.
func (m *MockLLM) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]MockCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// Reset clears all recorded calls (keeps registered responses).
func (m *MockLLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// RegisterModel registers the mock as a Genkit model and returns a reference.
// The model name will be "mock/test-model".
func (m *MockLLM) RegisterModel(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, "mock/test-model", &ai.ModelOptions{
		Label: "Mock Test Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			SystemRole: true,
		},
	}, m.generate)
}

// generate is the Genkit model function.
func (m *MockLLM) generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	var userText string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == ai.RoleUser {
			userText = req.Messages[i].Text()
			break
		}
	}

	m.mu.Lock()
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return nil, err
	}

	responseText := m.fallback
	lower := strings.ToLower(userText)
	for i := range m.responses {
		if strings.Contains(lower, m.responses[i].pattern) {
			responseText = m.responses[i].response
			break
		}
	}

	m.calls = append(m.calls, MockCall{
		UserMessage: userText,
		Response:    responseText,
	})
	m.mu.Unlock()

	if cb != nil {
		_ = cb(ctx, &ai.ModelResponseChunk{
			Content: []*ai.Part{ai.NewTextPart(responseText)},
		})
	}

	return &ai.ModelResponse{
		Request: req,
		Message: &ai.Message{
			Role:    ai.RoleModel,
			Content: []*ai.Part{ai.NewTextPart(responseText)},
		},
	}, nil
}
