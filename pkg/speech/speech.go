// Package speech normalizes event-driven speech engines into a small
// imperative API for the conversation controller.
//
// The underlying engines (in production the child's browser, relayed over a
// websocket; in tests the mocks in this package) are asynchronous and
// unreliable: end-of-speech events can be silently dropped and recognizers
// stop on their own after silence. The Adapter hides that behind
// speak-with-callback and start/stop-listening with an accumulating
// transcript, guaranteeing that completion callbacks fire exactly once.
package speech

// Synthesizer is the underlying text-to-speech engine.
//
// Speak begins synthesizing asynchronously; the engine reports completion
// through OnDone with the same utterance id, or failure through OnError.
// Engines are not trusted to report either - the Adapter guards every
// utterance with a timeout.
type Synthesizer interface {
	// Speak begins synthesizing text for the given utterance id.
	Speak(id, text string) error

	// Cancel stops any in-flight utterance.
	Cancel() error

	// OnDone sets the callback for end-of-speech events.
	OnDone(fn func(id string))

	// OnError sets the callback for synthesis failures.
	OnError(fn func(id string, err error))
}

// Recognizer is the underlying speech recognition engine.
//
// After Start, the engine emits OnResult events and eventually OnEnd when it
// stops, whether because Stop was called, silence timed out, or an error
// occurred. Engines must always emit OnEnd after OnError.
type Recognizer interface {
	// Start begins recognition.
	Start() error

	// Stop ends recognition. The engine still emits OnEnd afterwards.
	Stop() error

	// Supported reports whether the host environment can recognize
	// speech at all.
	Supported() bool

	// OnResult sets the callback for recognition results.
	// final marks a finished utterance segment.
	OnResult(fn func(text string, final bool))

	// OnEnd sets the callback for the recognizer stopping.
	OnEnd(fn func())

	// OnError sets the callback for recognition errors.
	// code follows the Web Speech API error codes.
	OnError(fn func(code string))
}

// Recognition error codes, following the Web Speech API.
const (
	ErrCodeNotAllowed        = "not-allowed"
	ErrCodeServiceNotAllowed = "service-not-allowed"
	ErrCodeNoSpeech          = "no-speech"
	ErrCodeAborted           = "aborted"
	ErrCodeNetwork           = "network"
)

// IsPermissionError reports whether code means the user or platform denied
// microphone access. These are the only errors that stop the listening
// intent: retrying them would just re-prompt the denial.
func IsPermissionError(code string) bool {
	return code == ErrCodeNotAllowed || code == ErrCodeServiceNotAllowed
}
