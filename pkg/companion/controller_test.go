package companion

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/playwell-labs/kibo/pkg/chat"
	"github.com/playwell-labs/kibo/pkg/speech"
)

const testImage = "data:image/png;base64,aGVsbG8="

type harness struct {
	synth   *speech.MockSynthesizer
	rec     *speech.MockRecognizer
	adapter *speech.Adapter
	ctrl    *Controller
}

func newHarness(t *testing.T, opts ...ControllerOption) *harness {
	t.Helper()
	synth := speech.NewMockSynthesizer()
	rec := speech.NewMockRecognizer()
	adapter := speech.NewAdapter(synth, rec)
	opts = append([]ControllerOption{WithImage(testImage)}, opts...)
	return &harness{
		synth:   synth,
		rec:     rec,
		adapter: adapter,
		ctrl:    NewController(adapter, opts...),
	}
}

// waitStatus polls until the controller reaches the wanted status.
func (h *harness) waitStatus(t *testing.T, want Status) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := h.ctrl.Snapshot()
		if snap.Status == want {
			return snap
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("status never reached %q, stuck at %q", want, h.ctrl.Snapshot().Status)
	return Snapshot{}
}

// finishSpeaking simulates the engine completing the current utterance and
// waits for the controller to arm the microphone.
func (h *harness) finishSpeaking(t *testing.T) Snapshot {
	t.Helper()
	h.waitStatus(t, StatusSpeaking)
	h.synth.SimulateDone(h.synth.LastID())
	return h.waitStatus(t, StatusListening)
}

func TestStartRequiresClientOrDemo(t *testing.T) {
	h := newHarness(t)

	if err := h.ctrl.Start(); !errors.Is(err, ErrNoClient) {
		t.Errorf("Start() = %v, want ErrNoClient", err)
	}
	if got := h.ctrl.Snapshot().Status; got != StatusIdle {
		t.Errorf("status = %q, want idle", got)
	}
}

func TestStartRequiresImage(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetClient(chat.NewMock())
	h.ctrl.SetImage("")

	if err := h.ctrl.Start(); !errors.Is(err, ErrNoImage) {
		t.Errorf("Start() = %v, want ErrNoImage", err)
	}
}

func TestStartOnlyFromIdle(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetClient(chat.NewMock())

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	h.waitStatus(t, StatusSpeaking)

	if err := h.ctrl.Start(); !errors.Is(err, ErrNotIdle) {
		t.Errorf("second Start() = %v, want ErrNotIdle", err)
	}
}

func TestOpeningReplyAppendsTurnsAndSpeaks(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetClient(chat.NewMock())

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	snap := h.waitStatus(t, StatusSpeaking)

	if len(snap.Turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(snap.Turns))
	}
	if snap.Turns[0].Role != chat.RoleUser || snap.Turns[0].ImageURL != testImage {
		t.Errorf("first turn = %+v, want user turn carrying the image", snap.Turns[0])
	}
	if snap.Turns[1].Role != chat.RoleAssistant {
		t.Errorf("second turn role = %q, want assistant", snap.Turns[1].Role)
	}
	if snap.LastReply == "" {
		t.Error("last reply is empty")
	}
	if snap.Background != "#fff8e1" {
		t.Errorf("background = %q, want %q", snap.Background, "#fff8e1")
	}

	spoken := h.synth.Spoken()
	if len(spoken) != 1 || spoken[0].Text != snap.LastReply {
		t.Errorf("spoken = %+v, want the reply text vocalized once", spoken)
	}
}

func TestSpeakingFlowsIntoListening(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetClient(chat.NewMock())

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	snap := h.finishSpeaking(t)

	if !snap.Listening {
		t.Error("microphone not armed after speaking finished")
	}
	if h.rec.StartCount() != 1 {
		t.Errorf("recognizer start count = %d, want 1", h.rec.StartCount())
	}
}

func TestSpokenTranscriptDrivesNextTurn(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetClient(chat.NewMock())

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	h.finishSpeaking(t)

	h.rec.SimulateResult("what animal is that", true)
	if err := h.ctrl.ToggleListening(); err != nil {
		t.Fatalf("ToggleListening() = %v", err)
	}
	h.rec.SimulateEnd()

	snap := h.finishSpeaking(t)
	if len(snap.Turns) != 4 {
		t.Fatalf("turns = %d, want 4", len(snap.Turns))
	}
	if snap.Turns[2].Content != "what animal is that" {
		t.Errorf("user turn = %q, want the transcript", snap.Turns[2].Content)
	}
}

func TestSubmitTextFallback(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetClient(chat.NewMock())

	if err := h.ctrl.SubmitText("hello"); !errors.Is(err, ErrNotListening) {
		t.Errorf("SubmitText before listening = %v, want ErrNotListening", err)
	}

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	h.finishSpeaking(t)

	if err := h.ctrl.SubmitText("   "); !errors.Is(err, ErrEmptyText) {
		t.Errorf("SubmitText(blank) = %v, want ErrEmptyText", err)
	}
	if err := h.ctrl.SubmitText("i see a dog"); err != nil {
		t.Fatalf("SubmitText() = %v", err)
	}

	snap := h.finishSpeaking(t)
	if len(snap.Turns) != 4 {
		t.Fatalf("turns = %d, want 4", len(snap.Turns))
	}
	if snap.Turns[2].Content != "i see a dog" {
		t.Errorf("user turn = %q, want typed text", snap.Turns[2].Content)
	}
}

func TestModelFailureEntersErrorWithMessage(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetClient(chat.WithError(errors.New("upstream exploded")))

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	snap := h.waitStatus(t, StatusError)

	if snap.ErrorMessage != "upstream exploded" {
		t.Errorf("error message = %q, want the model error", snap.ErrorMessage)
	}
}

func TestErrorStateOnlyLeftByUserActions(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetClient(chat.WithError(errors.New("boom")))

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	h.waitStatus(t, StatusError)

	if err := h.ctrl.ToggleListening(); !errors.Is(err, ErrNotListening) {
		t.Errorf("ToggleListening in error = %v, want ErrNotListening", err)
	}
	if err := h.ctrl.SubmitText("hello"); !errors.Is(err, ErrNotListening) {
		t.Errorf("SubmitText in error = %v, want ErrNotListening", err)
	}
	if got := h.ctrl.Snapshot().Status; got != StatusError {
		t.Fatalf("status = %q, want error before an explicit action", got)
	}

	if err := h.ctrl.Retry(); err != nil {
		t.Fatalf("Retry() = %v", err)
	}
	snap := h.ctrl.Snapshot()
	if snap.Status != StatusIdle || snap.ErrorMessage != "" {
		t.Errorf("after retry: status %q, message %q; want idle with no message", snap.Status, snap.ErrorMessage)
	}
}

func TestRetryOnlyFromError(t *testing.T) {
	h := newHarness(t)

	if err := h.ctrl.Retry(); !errors.Is(err, ErrNotInError) {
		t.Errorf("Retry from idle = %v, want ErrNotInError", err)
	}
}

func TestForceDemoRecoversFromError(t *testing.T) {
	h := newHarness(t, WithDemoClient(chat.NewScriptedWithDelay(0)))
	h.ctrl.SetClient(chat.WithError(errors.New("no network")))

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	h.waitStatus(t, StatusError)

	if err := h.ctrl.ForceDemo(); err != nil {
		t.Fatalf("ForceDemo() = %v", err)
	}
	snap := h.waitStatus(t, StatusSpeaking)
	if !snap.DemoMode {
		t.Error("demo mode flag not set")
	}
	if snap.ErrorMessage != "" {
		t.Errorf("error message = %q, want empty after demo restart", snap.ErrorMessage)
	}
}

func TestDemoBlueScenario(t *testing.T) {
	h := newHarness(t, WithDemoClient(chat.NewScriptedWithDelay(0)))

	if err := h.ctrl.ForceDemo(); err != nil {
		t.Fatalf("ForceDemo() = %v", err)
	}
	snap := h.waitStatus(t, StatusSpeaking)
	if snap.Background != "#fff8e1" {
		t.Errorf("greeting background = %q, want %q", snap.Background, "#fff8e1")
	}

	h.synth.SimulateDone(h.synth.LastID())
	h.waitStatus(t, StatusListening)

	h.rec.SimulateResult("I like blue", true)
	if err := h.ctrl.ToggleListening(); err != nil {
		t.Fatalf("ToggleListening() = %v", err)
	}
	h.rec.SimulateEnd()

	snap = h.waitStatus(t, StatusSpeaking)
	if snap.Background != "#e0f7fa" {
		t.Errorf("background = %q, want %q", snap.Background, "#e0f7fa")
	}
	if !strings.Contains(strings.ToLower(snap.LastReply), "ocean") {
		t.Errorf("reply = %q, want mention of the ocean", snap.LastReply)
	}
}

func TestEmptyTranscriptParksInListening(t *testing.T) {
	h := newHarness(t, WithDemoClient(chat.NewScriptedWithDelay(0)))

	if err := h.ctrl.ForceDemo(); err != nil {
		t.Fatalf("ForceDemo() = %v", err)
	}
	h.finishSpeaking(t)

	// Child says nothing and taps the microphone off.
	if err := h.ctrl.ToggleListening(); err != nil {
		t.Fatalf("ToggleListening() = %v", err)
	}
	h.rec.SimulateEnd()

	snap := h.ctrl.Snapshot()
	if snap.Status != StatusListening {
		t.Errorf("status = %q, want to stay listening", snap.Status)
	}
	if snap.Listening {
		t.Error("microphone still armed after explicit stop with no speech")
	}

	// The mic toggle re-arms for another try.
	if err := h.ctrl.ToggleListening(); err != nil {
		t.Fatalf("re-arm ToggleListening() = %v", err)
	}
	if !h.ctrl.Snapshot().Listening {
		t.Error("microphone not re-armed")
	}
}

func TestStaleReplyDiscardedAfterImageChange(t *testing.T) {
	h := newHarness(t)

	release := make(chan struct{})
	client := &chat.Mock{
		StartFunc: func(ctx context.Context, imageURL string) (*chat.Reply, error) {
			<-release
			return &chat.Reply{Text: "too late", Color: "#123456"}, nil
		},
	}
	h.ctrl.SetClient(client)

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	h.waitStatus(t, StatusAnalyzing)

	h.ctrl.SetImage("data:image/png;base64,bmV3")
	close(release)

	// The response from the abandoned generation must not resurface.
	time.Sleep(50 * time.Millisecond)
	snap := h.ctrl.Snapshot()
	if snap.Status != StatusIdle {
		t.Errorf("status = %q, want idle after image change", snap.Status)
	}
	if len(snap.Turns) != 0 {
		t.Errorf("turns = %d, want 0", len(snap.Turns))
	}
	if snap.Background == "#123456" {
		t.Error("stale color command was applied")
	}
}

func TestStaleReplyDiscardedAfterClientReset(t *testing.T) {
	h := newHarness(t)

	release := make(chan struct{})
	client := &chat.Mock{
		StartFunc: func(ctx context.Context, imageURL string) (*chat.Reply, error) {
			<-release
			return &chat.Reply{Text: "too late"}, nil
		},
	}
	h.ctrl.SetClient(client)

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	h.waitStatus(t, StatusAnalyzing)

	h.ctrl.ClearClient()
	close(release)

	time.Sleep(50 * time.Millisecond)
	snap := h.ctrl.Snapshot()
	if snap.Status != StatusIdle {
		t.Errorf("status = %q, want idle after credential reset", snap.Status)
	}
	if snap.LastReply != "" {
		t.Errorf("last reply = %q, want empty", snap.LastReply)
	}
}

func TestOnChangeFiresOnTransitions(t *testing.T) {
	h := newHarness(t)

	changes := make(chan Snapshot, 32)
	h.ctrl.OnChange(func(s Snapshot) { changes <- s })

	h.ctrl.SetClient(chat.NewMock())
	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}

	seen := map[Status]bool{}
	deadline := time.After(2 * time.Second)
	for !seen[StatusSpeaking] {
		select {
		case s := <-changes:
			seen[s.Status] = true
		case <-deadline:
			t.Fatalf("never observed speaking; saw %v", seen)
		}
	}
	if !seen[StatusAnalyzing] {
		t.Error("analyzing transition was never reported")
	}
}

func TestSetImageResetsConversation(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetClient(chat.NewMock())

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	h.waitStatus(t, StatusSpeaking)

	h.ctrl.SetImage("data:image/png;base64,bmV3")
	snap := h.ctrl.Snapshot()
	if snap.Status != StatusIdle {
		t.Errorf("status = %q, want idle", snap.Status)
	}
	if len(snap.Turns) != 0 || snap.LastReply != "" {
		t.Error("conversation state survived the image change")
	}
	if snap.Background != DefaultBackground {
		t.Errorf("background = %q, want default", snap.Background)
	}
	if snap.ImageURL != "data:image/png;base64,bmV3" {
		t.Errorf("image = %q, want the new image", snap.ImageURL)
	}
}
