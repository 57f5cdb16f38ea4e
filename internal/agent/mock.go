package agent

import (
	"context"
	"sync"
)

// MockAgent returns canned responses without calling any service. It backs
// the "mock" engine and stage tests.
type MockAgent struct {
	mu             sync.Mutex
	forcedResponse string
	err            error
	responder      func(string) (string, error)
	prompts        []string
}

// NewMockAgent creates a new mock agent that answers with an empty feature list.
func NewMockAgent() *MockAgent {
	return &MockAgent{forcedResponse: `{"features":[]}`}
}

// SetResponse forces a specific response from the agent.
func (m *MockAgent) SetResponse(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forcedResponse = response
	m.err = nil
}

// SetError makes every Send fail with err.
func (m *MockAgent) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetResponder installs a function computing the response per prompt.
func (m *MockAgent) SetResponder(fn func(string) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = fn
}

// Prompts returns every prompt received so far.
func (m *MockAgent) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Send implements the Agent interface.
func (m *MockAgent) Send(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	responder, resp, err := m.responder, m.forcedResponse, m.err
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if responder != nil {
		return responder(prompt)
	}
	if err != nil {
		return "", err
	}
	return resp, nil
}

// Model implements the Agent interface.
func (m *MockAgent) Model() string { return "mock" }
