package speech

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Speak timeout parameters. Some platforms drop the end-of-speech event, so
// every utterance is fenced by a computed deadline: the callback fires no
// later than the floor or the per-word estimate, whichever is larger, plus
// the buffer.
const (
	speakTimeoutFloor  = 2 * time.Second
	speakTimePerWord   = 500 * time.Millisecond
	speakTimeoutBuffer = 2 * time.Second
)

// SpeakTimeout returns the safety deadline for an utterance of the given text.
func SpeakTimeout(text string) time.Duration {
	estimate := time.Duration(len(strings.Fields(text))) * speakTimePerWord
	if estimate < speakTimeoutFloor {
		estimate = speakTimeoutFloor
	}
	return estimate + speakTimeoutBuffer
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) AdapterOption {
	return func(a *Adapter) { a.logger = l.With("component", "speech.adapter") }
}

// WithTimeoutFunc overrides the speak timeout computation. Tests use this
// to avoid multi-second waits.
func WithTimeoutFunc(fn func(text string) time.Duration) AdapterOption {
	return func(a *Adapter) { a.timeoutFor = fn }
}

// Adapter wraps a Synthesizer and a Recognizer behind the controller-facing
// speech API.
type Adapter struct {
	synth      Synthesizer
	rec        Recognizer
	logger     *slog.Logger
	timeoutFor func(text string) time.Duration

	mu         sync.Mutex
	current    *utterance
	intent     bool
	listening  bool
	transcript string
	onEnded    func(transcript string)
}

// utterance tracks one in-flight Speak call. done guarantees the caller's
// callback fires exactly once across engine-done, engine-error, cancel and
// timeout paths.
type utterance struct {
	id     string
	onDone func()
	timer  *time.Timer
	done   sync.Once
}

func (u *utterance) fire() {
	u.done.Do(func() {
		if u.timer != nil {
			u.timer.Stop()
		}
		if u.onDone != nil {
			u.onDone()
		}
	})
}

// NewAdapter creates an Adapter over the given engines and wires their
// event callbacks.
func NewAdapter(synth Synthesizer, rec Recognizer, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		synth:      synth,
		rec:        rec,
		logger:     slog.Default().With("component", "speech.adapter"),
		timeoutFor: SpeakTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}

	synth.OnDone(a.handleSpeechDone)
	synth.OnError(func(id string, err error) {
		a.logger.Warn("synthesis error, treating as done", "error", err)
		a.handleSpeechDone(id)
	})

	rec.OnResult(a.handleResult)
	rec.OnEnd(a.handleRecognizerEnd)
	rec.OnError(a.handleRecognizerError)

	return a
}

// Speak vocalizes text and invokes onDone exactly once: when the engine
// finishes, fails, or never answers within the safety timeout. Any
// in-flight utterance is cancelled first, firing its own callback.
func (a *Adapter) Speak(text string, onDone func()) {
	u := &utterance{
		id:     uuid.NewString(),
		onDone: onDone,
	}

	a.mu.Lock()
	prev := a.current
	a.current = u
	a.mu.Unlock()

	if prev != nil {
		if err := a.synth.Cancel(); err != nil {
			a.logger.Warn("cancel failed", "error", err)
		}
		prev.fire()
	}

	timeout := a.timeoutFor(text)
	u.timer = time.AfterFunc(timeout, func() {
		a.logger.Warn("speech end never signaled, forcing completion",
			"utterance", u.id,
			"timeout", timeout,
		)
		a.clearCurrent(u.id)
		u.fire()
	})

	if err := a.synth.Speak(u.id, text); err != nil {
		a.logger.Warn("speak failed", "error", err)
		a.clearCurrent(u.id)
		u.fire()
	}
}

// handleSpeechDone completes the current utterance if the id matches.
// Stale events from cancelled utterances are ignored.
func (a *Adapter) handleSpeechDone(id string) {
	a.mu.Lock()
	u := a.current
	if u == nil || u.id != id {
		a.mu.Unlock()
		return
	}
	a.current = nil
	a.mu.Unlock()
	u.fire()
}

// clearCurrent drops the current utterance if the id still matches.
func (a *Adapter) clearCurrent(id string) {
	a.mu.Lock()
	if a.current != nil && a.current.id == id {
		a.current = nil
	}
	a.mu.Unlock()
}

// StartListening resets the transcript and begins recognition. The adapter
// keeps the recognizer running (restarting it after silence timeouts) until
// StopListening is called or permission is denied. No-op when the host has
// no speech recognition.
func (a *Adapter) StartListening() {
	if !a.rec.Supported() {
		a.logger.Debug("speech recognition unsupported, ignoring start")
		return
	}

	a.mu.Lock()
	alreadyListening := a.listening
	a.intent = true
	a.listening = true
	a.transcript = ""
	a.mu.Unlock()

	if alreadyListening {
		return
	}
	if err := a.rec.Start(); err != nil {
		a.logger.Warn("recognizer start failed", "error", err)
		a.mu.Lock()
		a.intent = false
		a.listening = false
		cb := a.onEnded
		a.mu.Unlock()
		if cb != nil {
			cb("")
		}
	}
}

// StopListening clears the listening intent and stops the recognizer.
// The listening-ended callback fires once the engine reports it stopped.
func (a *Adapter) StopListening() {
	a.mu.Lock()
	wasListening := a.listening
	a.intent = false
	a.mu.Unlock()

	if !wasListening {
		return
	}
	if err := a.rec.Stop(); err != nil {
		a.logger.Warn("recognizer stop failed", "error", err)
	}
}

// handleResult accumulates finalized recognition segments.
func (a *Adapter) handleResult(text string, final bool) {
	if !final || text == "" {
		return
	}
	a.mu.Lock()
	if a.transcript == "" {
		a.transcript = text
	} else {
		a.transcript += " " + text
	}
	a.mu.Unlock()
}

// handleRecognizerEnd restarts the recognizer while intent holds, otherwise
// reports the end of listening with the accumulated transcript.
func (a *Adapter) handleRecognizerEnd() {
	a.mu.Lock()
	if a.intent {
		a.mu.Unlock()
		err := a.rec.Start()
		a.mu.Lock()
		if err == nil {
			a.listening = true
			a.mu.Unlock()
			return
		}
		a.logger.Warn("recognizer restart failed", "error", err)
		a.intent = false
	}
	a.listening = false
	transcript := a.transcript
	cb := a.onEnded
	a.mu.Unlock()

	if cb != nil {
		cb(transcript)
	}
}

// handleRecognizerError clears the listening flag; permission-class errors
// also clear the intent so the recognizer is not restarted into another
// denial. The engine's OnEnd follows and settles the rest.
func (a *Adapter) handleRecognizerError(code string) {
	a.mu.Lock()
	if IsPermissionError(code) {
		a.intent = false
	}
	a.listening = false
	a.mu.Unlock()

	a.logger.Warn("recognition error", "code", code, "permission", IsPermissionError(code))
}

// OnListeningEnded sets the callback invoked when listening genuinely ends
// (intent cleared and recognizer stopped).
func (a *Adapter) OnListeningEnded(fn func(transcript string)) {
	a.mu.Lock()
	a.onEnded = fn
	a.mu.Unlock()
}

// IsListening reports whether recognition is currently active.
func (a *Adapter) IsListening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listening
}

// Intent reports whether the caller still wants recognition running.
func (a *Adapter) Intent() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.intent
}

// Transcript returns the accumulated transcript of the current listening
// session.
func (a *Adapter) Transcript() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transcript
}

// Supported reports whether the host environment supports speech
// recognition at all.
func (a *Adapter) Supported() bool {
	return a.rec.Supported()
}
