package companion

import "github.com/playwell-labs/kibo/pkg/chat"

// Status is the session's position in the conversation loop.
type Status string

const (
	// StatusIdle means waiting for the user to start or change the image.
	StatusIdle Status = "idle"

	// StatusAnalyzing means the opening model request is in flight.
	StatusAnalyzing Status = "analyzing"

	// StatusSpeaking means the assistant reply is being vocalized.
	StatusSpeaking Status = "speaking"

	// StatusListening means the microphone loop is armed for the child.
	StatusListening Status = "listening"

	// StatusThinking means a follow-up model request is in flight.
	StatusThinking Status = "thinking"

	// StatusError means a model call failed; only explicit user actions
	// (retry, demo, credential reset) leave this state.
	StatusError Status = "error"
)

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}

// DefaultBackground is the background color before any model command.
const DefaultBackground = "#ffffff"

// Snapshot is a point-in-time copy of the session state, safe to hand to
// UI layers without further locking.
type Snapshot struct {
	Status          Status      `json:"status"`
	DemoMode        bool        `json:"demo_mode"`
	ImageURL        string      `json:"image_url"`
	Turns           []chat.Turn `json:"turns"`
	LastReply       string      `json:"last_reply"`
	Background      string      `json:"background"`
	ErrorMessage    string      `json:"error_message,omitempty"`
	Listening       bool        `json:"listening"`
	SpeechSupported bool        `json:"speech_supported"`
}
