package companion

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/playwell-labs/kibo/pkg/chat"
	"github.com/playwell-labs/kibo/pkg/speech"
)

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l.With("component", "companion") }
}

// WithContext sets the base context used for model calls launched from
// internal callbacks. Defaults to context.Background().
func WithContext(ctx context.Context) ControllerOption {
	return func(c *Controller) { c.ctx = ctx }
}

// WithDemoClient replaces the scripted client used in demo mode.
func WithDemoClient(client chat.Client) ControllerOption {
	return func(c *Controller) { c.demoClient = client }
}

// WithImage sets the initial image.
func WithImage(url string) ControllerOption {
	return func(c *Controller) { c.imageURL = url }
}

// Controller is the conversation state machine. All session state lives
// behind one mutex; model calls run in goroutines and report back through
// generation-checked completions, so a response that belongs to an abandoned
// session (image changed, credentials reset, demo forced) is discarded
// instead of applied.
type Controller struct {
	mu         sync.Mutex
	logger     *slog.Logger
	ctx        context.Context
	adapter    *speech.Adapter
	client     chat.Client
	demoClient chat.Client

	status      Status
	demo        bool
	imageURL    string
	turns       []chat.Turn
	lastReply   string
	background  string
	errMsg      string
	gen         uint64
	onChange    func(Snapshot)
}

// NewController creates a controller wired to the given speech adapter.
func NewController(adapter *speech.Adapter, opts ...ControllerOption) *Controller {
	c := &Controller{
		logger:     slog.Default().With("component", "companion"),
		ctx:        context.Background(),
		adapter:    adapter,
		status:     StatusIdle,
		background: DefaultBackground,
	}
	for _, opt := range opts {
		opt(c)
	}
	adapter.OnListeningEnded(c.handleListeningEnded)
	return c
}

// OnChange registers a callback invoked with a fresh snapshot after every
// state change. Called from controller goroutines; must not block long.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Snapshot returns a copy of the current session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	turns := make([]chat.Turn, len(c.turns))
	copy(turns, c.turns)
	return Snapshot{
		Status:          c.status,
		DemoMode:        c.demo,
		ImageURL:        c.imageURL,
		Turns:           turns,
		LastReply:       c.lastReply,
		Background:      c.background,
		ErrorMessage:    c.errMsg,
		Listening:       c.adapter.IsListening(),
		SpeechSupported: c.adapter.Supported(),
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

// SetClient installs the live model client, replacing any previous one.
func (c *Controller) SetClient(client chat.Client) {
	c.mu.Lock()
	if c.client != nil {
		c.client.Close()
	}
	c.client = client
	c.demo = false
	c.mu.Unlock()
	c.notify()
}

// ClearClient drops the live client and resets the session. Any in-flight
// model response is discarded when it lands.
func (c *Controller) ClearClient() {
	c.mu.Lock()
	if c.client != nil {
		c.client.Close()
	}
	c.client = nil
	c.demo = false
	c.gen++
	c.resetSessionLocked()
	c.mu.Unlock()
	c.adapter.StopListening()
	c.notify()
}

// SetImage replaces the current image and resets the conversation.
func (c *Controller) SetImage(url string) {
	c.mu.Lock()
	c.imageURL = url
	c.gen++
	c.resetSessionLocked()
	c.mu.Unlock()
	c.adapter.StopListening()
	c.notify()
}

func (c *Controller) resetSessionLocked() {
	c.status = StatusIdle
	c.turns = nil
	c.lastReply = ""
	c.background = DefaultBackground
	c.errMsg = ""
}

// Start begins the conversation about the current image. Only valid from
// Idle, and only when a live client is set or demo mode is forced.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.status != StatusIdle {
		c.mu.Unlock()
		return ErrNotIdle
	}
	client := c.activeClientLocked()
	if client == nil {
		c.mu.Unlock()
		return ErrNoClient
	}
	if c.imageURL == "" {
		c.mu.Unlock()
		return ErrNoImage
	}
	c.status = StatusAnalyzing
	c.errMsg = ""
	gen := c.gen
	img := c.imageURL
	c.mu.Unlock()

	c.notify()
	go c.analyze(client, gen, img)
	return nil
}

// Retry returns from Error to Idle so the user can start again.
func (c *Controller) Retry() error {
	c.mu.Lock()
	if c.status != StatusError {
		c.mu.Unlock()
		return ErrNotInError
	}
	c.status = StatusIdle
	c.errMsg = ""
	c.mu.Unlock()
	c.notify()
	return nil
}

// ForceDemo switches to the scripted client and restarts the conversation.
// Works from any state; the running session is abandoned.
func (c *Controller) ForceDemo() error {
	c.mu.Lock()
	c.demo = true
	c.gen++
	c.resetSessionLocked()
	c.mu.Unlock()
	c.adapter.StopListening()
	c.notify()
	return c.Start()
}

// activeClientLocked picks the scripted client in demo mode, the live
// client otherwise. The scripted client is created on first use.
func (c *Controller) activeClientLocked() chat.Client {
	if c.demo {
		if c.demoClient == nil {
			c.demoClient = chat.NewScripted()
		}
		return c.demoClient
	}
	return c.client
}

// ToggleListening stops the microphone if it is on, or re-arms it. Only
// valid in the Listening state.
func (c *Controller) ToggleListening() error {
	c.mu.Lock()
	if c.status != StatusListening {
		c.mu.Unlock()
		return ErrNotListening
	}
	listening := c.adapter.IsListening()
	c.mu.Unlock()

	if listening {
		c.adapter.StopListening()
	} else {
		c.adapter.StartListening()
	}
	c.notify()
	return nil
}

// SubmitText hands a typed utterance to the conversation, for environments
// where speech recognition is unavailable or failing. Only valid while
// Listening.
func (c *Controller) SubmitText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}

	c.mu.Lock()
	if c.status != StatusListening {
		c.mu.Unlock()
		return ErrNotListening
	}
	client := c.activeClientLocked()
	gen := c.gen
	turns := c.beginThinkingLocked(text)
	c.mu.Unlock()

	c.adapter.StopListening()
	c.notify()
	go c.think(client, gen, turns)
	return nil
}

// beginThinkingLocked appends the user turn, moves to Thinking, and returns
// a copy of the history for the model call.
func (c *Controller) beginThinkingLocked(userText string) []chat.Turn {
	c.turns = append(c.turns, chat.NewUserTurn(userText))
	c.status = StatusThinking
	turns := make([]chat.Turn, len(c.turns))
	copy(turns, c.turns)
	return turns
}

// analyze runs the opening model request.
func (c *Controller) analyze(client chat.Client, gen uint64, imageURL string) {
	reply, err := client.StartConversation(c.ctx, imageURL)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("discarding stale opening reply", "generation", gen)
		return
	}
	if err != nil {
		c.failLocked(err)
		c.mu.Unlock()
		c.notify()
		return
	}
	c.turns = append(c.turns,
		chat.NewImageTurn(chat.OpeningPrompt, imageURL),
		chat.NewAssistantTurn(reply.Text),
	)
	c.applyReplyLocked(reply)
	c.mu.Unlock()

	c.notify()
	c.speak(gen, reply.Text)
}

// think runs a follow-up model request over the full history.
func (c *Controller) think(client chat.Client, gen uint64, turns []chat.Turn) {
	reply, err := client.ContinueConversation(c.ctx, turns)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("discarding stale reply", "generation", gen)
		return
	}
	if err != nil {
		c.failLocked(err)
		c.mu.Unlock()
		c.notify()
		return
	}
	c.turns = append(c.turns, chat.NewAssistantTurn(reply.Text))
	c.applyReplyLocked(reply)
	c.mu.Unlock()

	c.notify()
	c.speak(gen, reply.Text)
}

// applyReplyLocked records the reply text and any color command, and moves
// to Speaking.
func (c *Controller) applyReplyLocked(reply *chat.Reply) {
	c.lastReply = reply.Text
	if reply.Color != "" {
		c.background = reply.Color
	}
	c.status = StatusSpeaking
}

func (c *Controller) failLocked(err error) {
	c.logger.Error("model call failed", "error", err)
	c.status = StatusError
	c.errMsg = err.Error()
}

// speak vocalizes the reply and arms the microphone when the utterance
// completes.
func (c *Controller) speak(gen uint64, text string) {
	c.adapter.Speak(text, func() {
		c.handleSpoken(gen)
	})
}

// handleSpoken moves Speaking -> Listening once the utterance is done.
func (c *Controller) handleSpoken(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.status != StatusSpeaking {
		c.mu.Unlock()
		return
	}
	c.status = StatusListening
	c.mu.Unlock()

	c.notify()
	c.adapter.StartListening()
}

// handleListeningEnded receives the accumulated transcript when the
// recognizer genuinely stops. The adapter already restarts itself on
// silence, so reaching here with an empty transcript means listening was
// stopped deliberately or by an unrecoverable engine error; the session
// stays parked in Listening with the microphone off and the user may
// re-arm it or type instead.
func (c *Controller) handleListeningEnded(transcript string) {
	c.mu.Lock()
	if c.status != StatusListening {
		c.mu.Unlock()
		return
	}

	if strings.TrimSpace(transcript) == "" {
		c.mu.Unlock()
		c.notify()
		return
	}

	client := c.activeClientLocked()
	gen := c.gen
	turns := c.beginThinkingLocked(transcript)
	c.mu.Unlock()

	c.notify()
	go c.think(client, gen, turns)
}

// Close releases the model clients. The controller is not usable afterwards.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
	if c.demoClient != nil {
		c.demoClient.Close()
		c.demoClient = nil
	}
	return nil
}
