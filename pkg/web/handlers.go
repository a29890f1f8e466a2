package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/playwell-labs/kibo/pkg/chat"
	"github.com/playwell-labs/kibo/pkg/companion"
	"github.com/playwell-labs/kibo/pkg/imagesource"
	"github.com/playwell-labs/kibo/pkg/keystore"
)

// StatusResponse is the session view served on /api/status and broadcast
// on /ws/status.
type StatusResponse struct {
	Status          companion.Status `json:"status"`
	DemoMode        bool             `json:"demo_mode"`
	HasCredential   bool             `json:"has_credential"`
	ImageURL        string           `json:"image_url"`
	LastReply       string           `json:"last_reply"`
	Background      string           `json:"background"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	Listening       bool             `json:"listening"`
	SpeechSupported bool             `json:"speech_supported"`
}

func (s *Server) statusView(snap companion.Snapshot) StatusResponse {
	key, err := s.store.Load()
	if err != nil {
		s.logger.Warn("credential load failed", "error", err)
	}
	return StatusResponse{
		Status:          snap.Status,
		DemoMode:        snap.DemoMode,
		HasCredential:   keystore.Valid(key),
		ImageURL:        snap.ImageURL,
		LastReply:       snap.LastReply,
		Background:      snap.Background,
		ErrorMessage:    snap.ErrorMessage,
		Listening:       snap.Listening,
		SpeechSupported: snap.SpeechSupported,
	}
}

// apiError maps controller errors to JSON responses. Invalid-state actions
// are conflicts, not server failures.
func apiError(c *fiber.Ctx, err error) error {
	status := fiber.StatusBadRequest
	switch {
	case errors.Is(err, companion.ErrNotIdle),
		errors.Is(err, companion.ErrNotListening),
		errors.Is(err, companion.ErrNotInError):
		status = fiber.StatusConflict
	case errors.Is(err, companion.ErrNoClient),
		errors.Is(err, companion.ErrNoImage),
		errors.Is(err, companion.ErrEmptyText),
		errors.Is(err, keystore.ErrInvalidKey):
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func ok(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

// handleStatus returns the current session state.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.statusView(s.ctrl.Snapshot()))
}

// handleConversation returns the dialogue history.
func (s *Server) handleConversation(c *fiber.Ctx) error {
	snap := s.ctrl.Snapshot()
	type entry struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	entries := make([]entry, 0, len(snap.Turns))
	for _, t := range snap.Turns {
		entries = append(entries, entry{Role: string(t.Role), Content: t.Content})
	}
	return c.JSON(entries)
}

// CredentialRequest is the body for POST /api/credential.
type CredentialRequest struct {
	Key string `json:"key"`
}

// handleSaveCredential stores the key and swaps in a live model client.
func (s *Server) handleSaveCredential(c *fiber.Ctx) error {
	var req CredentialRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	if err := s.store.Save(req.Key); err != nil {
		return apiError(c, err)
	}

	opts := append([]chat.Option{}, s.modelOpts...)
	opts = append(opts, chat.WithAPIKey(req.Key))
	client, err := chat.NewOpenAIClient(opts...)
	if err != nil {
		return apiError(c, err)
	}
	s.ctrl.SetClient(client)
	return ok(c)
}

// handleClearCredential forgets the key and resets the session.
func (s *Server) handleClearCredential(c *fiber.Ctx) error {
	if err := s.store.Clear(); err != nil {
		return apiError(c, err)
	}
	s.ctrl.ClearClient()
	return ok(c)
}

// handleStart begins the conversation about the current image.
func (s *Server) handleStart(c *fiber.Ctx) error {
	if err := s.ctrl.Start(); err != nil {
		return apiError(c, err)
	}
	return ok(c)
}

// handleRetry leaves the error state and starts over.
func (s *Server) handleRetry(c *fiber.Ctx) error {
	if err := s.ctrl.Retry(); err != nil {
		return apiError(c, err)
	}
	if err := s.ctrl.Start(); err != nil {
		return apiError(c, err)
	}
	return ok(c)
}

// handleDemo forces scripted mode and restarts the conversation.
func (s *Server) handleDemo(c *fiber.Ctx) error {
	if err := s.ctrl.ForceDemo(); err != nil {
		return apiError(c, err)
	}
	return ok(c)
}

// ImageRequest is the body for POST /api/image: either an inlined data
// URL (file picker) or a remote URL to fetch.
type ImageRequest struct {
	DataURL string `json:"data_url"`
	URL     string `json:"url"`
}

// handleImage swaps the session picture.
func (s *Server) handleImage(c *fiber.Ctx) error {
	var req ImageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	switch {
	case req.DataURL != "":
		if !imagesource.IsDataURL(req.DataURL) {
			return apiError(c, imagesource.ErrNotImage)
		}
		if len(req.DataURL) > imagesource.MaxBytes*2 {
			return apiError(c, imagesource.ErrTooLarge)
		}
		s.ctrl.SetImage(req.DataURL)
	case req.URL != "":
		dataURL, err := imagesource.Fetch(c.Context(), req.URL)
		if err != nil {
			return apiError(c, err)
		}
		s.ctrl.SetImage(dataURL)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "data_url or url required"})
	}
	return ok(c)
}

// handleMic toggles the microphone while listening.
func (s *Server) handleMic(c *fiber.Ctx) error {
	if err := s.ctrl.ToggleListening(); err != nil {
		return apiError(c, err)
	}
	return ok(c)
}

// TextRequest is the body for POST /api/text.
type TextRequest struct {
	Text string `json:"text"`
}

// handleText feeds a typed utterance into the conversation.
func (s *Server) handleText(c *fiber.Ctx) error {
	var req TextRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := s.ctrl.SubmitText(req.Text); err != nil {
		return apiError(c, err)
	}
	return ok(c)
}
