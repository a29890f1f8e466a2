package chat

import (
	"context"
	"sync"
	"time"
)

// Mock implements Client for testing.
type Mock struct {
	// StartFunc is called when StartConversation is invoked.
	StartFunc func(ctx context.Context, imageURL string) (*Reply, error)

	// ContinueFunc is called when ContinueConversation is invoked.
	ContinueFunc func(ctx context.Context, turns []Turn) (*Reply, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Turns  int
	Time   time.Time
}

// NewMock creates a new mock client with sensible defaults.
func NewMock() *Mock {
	return &Mock{
		StartFunc: func(ctx context.Context, imageURL string) (*Reply, error) {
			return &Reply{Text: "What a nice picture!", Color: "#fff8e1"}, nil
		},
		ContinueFunc: func(ctx context.Context, turns []Turn) (*Reply, error) {
			return &Reply{Text: "Tell me more!"}, nil
		},
	}
}

// WithError returns a mock whose operations always fail with err.
func WithError(err error) *Mock {
	return &Mock{
		StartFunc: func(ctx context.Context, imageURL string) (*Reply, error) {
			return nil, err
		},
		ContinueFunc: func(ctx context.Context, turns []Turn) (*Reply, error) {
			return nil, err
		},
	}
}

// StartConversation calls StartFunc and records the call.
func (m *Mock) StartConversation(ctx context.Context, imageURL string) (*Reply, error) {
	m.record("StartConversation", 0)
	if m.StartFunc != nil {
		return m.StartFunc(ctx, imageURL)
	}
	return nil, WrapError("mock", ErrNoImage)
}

// ContinueConversation calls ContinueFunc and records the call.
func (m *Mock) ContinueConversation(ctx context.Context, turns []Turn) (*Reply, error) {
	m.record("ContinueConversation", len(turns))
	if m.ContinueFunc != nil {
		return m.ContinueFunc(ctx, turns)
	}
	return nil, WrapError("mock", ErrEmptyHistory)
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.record("Close", 0)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// record adds a call to the tracking list.
func (m *Mock) record(method string, turns int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method: method,
		Turns:  turns,
		Time:   time.Now(),
	})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Verify Mock implements Client at compile time.
var _ Client = (*Mock)(nil)
