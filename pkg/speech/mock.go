package speech

import "sync"

// MockSynthesizer implements Synthesizer for testing.
type MockSynthesizer struct {
	// SpeakFunc overrides Speak. If nil, the call succeeds silently and
	// the test drives completion via SimulateDone/SimulateError.
	SpeakFunc func(id, text string) error

	// CancelFunc overrides Cancel.
	CancelFunc func() error

	mu       sync.Mutex
	spoken   []SpokenUtterance
	cancels  int
	onDone   func(id string)
	onError  func(id string, err error)
}

// SpokenUtterance records one Speak invocation.
type SpokenUtterance struct {
	ID   string
	Text string
}

// NewMockSynthesizer creates a mock synthesizer.
func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{}
}

// Speak implements Synthesizer.
func (m *MockSynthesizer) Speak(id, text string) error {
	m.mu.Lock()
	m.spoken = append(m.spoken, SpokenUtterance{ID: id, Text: text})
	m.mu.Unlock()
	if m.SpeakFunc != nil {
		return m.SpeakFunc(id, text)
	}
	return nil
}

// Cancel implements Synthesizer.
func (m *MockSynthesizer) Cancel() error {
	m.mu.Lock()
	m.cancels++
	m.mu.Unlock()
	if m.CancelFunc != nil {
		return m.CancelFunc()
	}
	return nil
}

// OnDone implements Synthesizer.
func (m *MockSynthesizer) OnDone(fn func(id string)) {
	m.mu.Lock()
	m.onDone = fn
	m.mu.Unlock()
}

// OnError implements Synthesizer.
func (m *MockSynthesizer) OnError(fn func(id string, err error)) {
	m.mu.Lock()
	m.onError = fn
	m.mu.Unlock()
}

// SimulateDone emits an end-of-speech event for the given utterance.
func (m *MockSynthesizer) SimulateDone(id string) {
	m.mu.Lock()
	fn := m.onDone
	m.mu.Unlock()
	if fn != nil {
		fn(id)
	}
}

// SimulateError emits a synthesis failure for the given utterance.
func (m *MockSynthesizer) SimulateError(id string, err error) {
	m.mu.Lock()
	fn := m.onError
	m.mu.Unlock()
	if fn != nil {
		fn(id, err)
	}
}

// Spoken returns all recorded Speak calls.
func (m *MockSynthesizer) Spoken() []SpokenUtterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]SpokenUtterance, len(m.spoken))
	copy(result, m.spoken)
	return result
}

// LastID returns the id of the most recent Speak call, or "".
func (m *MockSynthesizer) LastID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.spoken) == 0 {
		return ""
	}
	return m.spoken[len(m.spoken)-1].ID
}

// CancelCount returns how many times Cancel was called.
func (m *MockSynthesizer) CancelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancels
}

// MockRecognizer implements Recognizer for testing.
type MockRecognizer struct {
	// Unsupported makes Supported return false.
	Unsupported bool

	// StartFunc overrides Start.
	StartFunc func() error

	// StopFunc overrides Stop.
	StopFunc func() error

	mu       sync.Mutex
	starts   int
	stops    int
	onResult func(text string, final bool)
	onEnd    func()
	onError  func(code string)
}

// NewMockRecognizer creates a mock recognizer that reports support.
func NewMockRecognizer() *MockRecognizer {
	return &MockRecognizer{}
}

// Start implements Recognizer.
func (m *MockRecognizer) Start() error {
	m.mu.Lock()
	m.starts++
	m.mu.Unlock()
	if m.StartFunc != nil {
		return m.StartFunc()
	}
	return nil
}

// Stop implements Recognizer.
func (m *MockRecognizer) Stop() error {
	m.mu.Lock()
	m.stops++
	m.mu.Unlock()
	if m.StopFunc != nil {
		return m.StopFunc()
	}
	return nil
}

// Supported implements Recognizer.
func (m *MockRecognizer) Supported() bool {
	return !m.Unsupported
}

// OnResult implements Recognizer.
func (m *MockRecognizer) OnResult(fn func(text string, final bool)) {
	m.mu.Lock()
	m.onResult = fn
	m.mu.Unlock()
}

// OnEnd implements Recognizer.
func (m *MockRecognizer) OnEnd(fn func()) {
	m.mu.Lock()
	m.onEnd = fn
	m.mu.Unlock()
}

// OnError implements Recognizer.
func (m *MockRecognizer) OnError(fn func(code string)) {
	m.mu.Lock()
	m.onError = fn
	m.mu.Unlock()
}

// SimulateResult emits a recognition result.
func (m *MockRecognizer) SimulateResult(text string, final bool) {
	m.mu.Lock()
	fn := m.onResult
	m.mu.Unlock()
	if fn != nil {
		fn(text, final)
	}
}

// SimulateEnd emits a recognizer-stopped event.
func (m *MockRecognizer) SimulateEnd() {
	m.mu.Lock()
	fn := m.onEnd
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// SimulateError emits a recognition error.
func (m *MockRecognizer) SimulateError(code string) {
	m.mu.Lock()
	fn := m.onError
	m.mu.Unlock()
	if fn != nil {
		fn(code)
	}
}

// StartCount returns how many times Start was called.
func (m *MockRecognizer) StartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// StopCount returns how many times Stop was called.
func (m *MockRecognizer) StopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// Verify the mocks implement the engine interfaces at compile time.
var (
	_ Synthesizer = (*MockSynthesizer)(nil)
	_ Recognizer  = (*MockRecognizer)(nil)
)
