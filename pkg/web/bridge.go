package web

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/playwell-labs/kibo/pkg/speech"
)

// ErrNoBrowser indicates a speech command with no browser connected.
var ErrNoBrowser = errors.New("web: no browser connected")

const bridgeWriteWait = 10 * time.Second

// bridgeMessage is the JSON envelope exchanged on /ws/speech, both
// directions. Server to browser: speak, cancel, listen_start, listen_stop.
// Browser to server: capability, speech_done, speech_error, result, end,
// error.
type bridgeMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Text      string `json:"text,omitempty"`
	Final     bool   `json:"final,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	Supported bool   `json:"supported,omitempty"`
}

// bridgeSession is one connected browser. Writes go through the out
// channel so a single goroutine owns the connection. out is never closed;
// the write pump is stopped through done instead, so a send racing a
// reconnect fails cleanly rather than hitting a closed channel.
type bridgeSession struct {
	conn *websocket.Conn
	out  chan bridgeMessage

	done     chan struct{}
	stopOnce sync.Once
}

func newBridgeSession(conn *websocket.Conn) *bridgeSession {
	return &bridgeSession{
		conn: conn,
		out:  make(chan bridgeMessage, 64),
		done: make(chan struct{}),
	}
}

// stop shuts down the session's write pump. Safe to call more than once.
func (s *bridgeSession) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Bridge relays the speech engine calls to the browser's native
// SpeechRecognition and speechSynthesis over a websocket, implementing
// both engine interfaces the adapter expects. One browser drives the toy
// at a time; a newer connection replaces the old one.
//
// A browser vanishing mid-utterance is covered by the adapter's speak
// timeout, and mid-listening the bridge reports a recognizer end so the
// conversation is not left hanging.
type Bridge struct {
	mu        sync.Mutex
	logger    *slog.Logger
	session   *bridgeSession
	supported bool

	onDone     func(id string)
	onSpeakErr func(id string, err error)
	onResult   func(text string, final bool)
	onEnd      func()
	onRecErr   func(code string)
}

// NewBridge creates an unconnected bridge. Engine calls fail with
// ErrNoBrowser until a browser attaches via Handle.
func NewBridge() *Bridge {
	return &Bridge{
		logger: slog.Default().With("component", "web.bridge"),
	}
}

// Handle runs a browser connection. Blocks until the connection closes.
// Intended as the /ws/speech websocket handler.
func (b *Bridge) Handle(conn *websocket.Conn) {
	sess := newBridgeSession(conn)

	b.mu.Lock()
	old := b.session
	b.session = sess
	b.mu.Unlock()
	if old != nil {
		old.stop()
	}

	b.logger.Info("browser attached")
	go b.writePump(sess)
	b.readLoop(sess)

	b.mu.Lock()
	current := b.session == sess
	if current {
		b.session = nil
		b.supported = false
	}
	onEnd := b.onEnd
	b.mu.Unlock()
	sess.stop()

	if current {
		b.logger.Info("browser detached")
		// Unblock a conversation that was waiting on the microphone.
		if onEnd != nil {
			onEnd()
		}
	}
}

func (b *Bridge) readLoop(sess *bridgeSession) {
	defer sess.conn.Close()
	for {
		var msg bridgeMessage
		if err := sess.conn.ReadJSON(&msg); err != nil {
			return
		}
		b.dispatch(msg)
	}
}

func (b *Bridge) writePump(sess *bridgeSession) {
	defer sess.conn.Close()
	for {
		select {
		case msg := <-sess.out:
			sess.conn.SetWriteDeadline(time.Now().Add(bridgeWriteWait))
			if err := sess.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-sess.done:
			sess.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// dispatch routes one browser message to the adapter callbacks.
func (b *Bridge) dispatch(msg bridgeMessage) {
	b.mu.Lock()
	onDone := b.onDone
	onSpeakErr := b.onSpeakErr
	onResult := b.onResult
	onEnd := b.onEnd
	onRecErr := b.onRecErr
	if msg.Type == "capability" {
		b.supported = msg.Supported
	}
	b.mu.Unlock()

	switch msg.Type {
	case "capability":
		b.logger.Info("browser capability", "recognition", msg.Supported)
	case "speech_done":
		if onDone != nil {
			onDone(msg.ID)
		}
	case "speech_error":
		if onSpeakErr != nil {
			onSpeakErr(msg.ID, errors.New(msg.Message))
		}
	case "result":
		if onResult != nil {
			onResult(msg.Text, msg.Final)
		}
	case "end":
		if onEnd != nil {
			onEnd()
		}
	case "error":
		if onRecErr != nil {
			onRecErr(msg.Code)
		}
	default:
		b.logger.Warn("unknown bridge message", "type", msg.Type)
	}
}

// send queues a message for the connected browser. The lock is held across
// the channel send so a reconnect cannot swap the session out from under
// us; the buffered channel keeps this from blocking on the write pump.
func (b *Bridge) send(msg bridgeMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoBrowser
	}
	select {
	case b.session.out <- msg:
		return nil
	default:
		return errors.New("web: browser send buffer full")
	}
}

// Synthesizer returns the text-to-speech facet of the bridge.
func (b *Bridge) Synthesizer() speech.Synthesizer {
	return bridgeSynth{b}
}

// Recognizer returns the speech-recognition facet of the bridge.
func (b *Bridge) Recognizer() speech.Recognizer {
	return bridgeRec{b}
}

// bridgeSynth exposes the bridge as a speech.Synthesizer. A separate type
// because the two engine interfaces both declare OnError with different
// shapes.
type bridgeSynth struct {
	b *Bridge
}

func (s bridgeSynth) Speak(id, text string) error {
	return s.b.send(bridgeMessage{Type: "speak", ID: id, Text: text})
}

func (s bridgeSynth) Cancel() error {
	return s.b.send(bridgeMessage{Type: "cancel"})
}

func (s bridgeSynth) OnDone(fn func(id string)) {
	s.b.mu.Lock()
	s.b.onDone = fn
	s.b.mu.Unlock()
}

func (s bridgeSynth) OnError(fn func(id string, err error)) {
	s.b.mu.Lock()
	s.b.onSpeakErr = fn
	s.b.mu.Unlock()
}

// bridgeRec exposes the bridge as a speech.Recognizer.
type bridgeRec struct {
	b *Bridge
}

func (r bridgeRec) Start() error {
	return r.b.send(bridgeMessage{Type: "listen_start"})
}

func (r bridgeRec) Stop() error {
	return r.b.send(bridgeMessage{Type: "listen_stop"})
}

// Supported reflects the capability the connected browser reported;
// false while no browser is attached.
func (r bridgeRec) Supported() bool {
	r.b.mu.Lock()
	defer r.b.mu.Unlock()
	return r.b.supported
}

func (r bridgeRec) OnResult(fn func(text string, final bool)) {
	r.b.mu.Lock()
	r.b.onResult = fn
	r.b.mu.Unlock()
}

func (r bridgeRec) OnEnd(fn func()) {
	r.b.mu.Lock()
	r.b.onEnd = fn
	r.b.mu.Unlock()
}

func (r bridgeRec) OnError(fn func(code string)) {
	r.b.mu.Lock()
	r.b.onRecErr = fn
	r.b.mu.Unlock()
}

// Verify the facets implement the engine interfaces at compile time.
var (
	_ speech.Synthesizer = bridgeSynth{}
	_ speech.Recognizer  = bridgeRec{}
)
