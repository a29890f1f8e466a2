// Package web serves the browser UI and bridges it to the conversation
// controller: a REST API for user actions, a status websocket fed by the
// broadcast hub, and a speech websocket relaying the browser's native
// speech engines.
package web

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/websocket/v2"

	"github.com/playwell-labs/kibo/pkg/chat"
	"github.com/playwell-labs/kibo/pkg/companion"
	"github.com/playwell-labs/kibo/pkg/hub"
	"github.com/playwell-labs/kibo/pkg/keystore"
	"github.com/playwell-labs/kibo/webui"
)

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets a custom logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l.With("component", "web") }
}

// WithBridge mounts an externally constructed speech bridge, usually the
// one whose engine facets back the controller's speech adapter.
func WithBridge(b *Bridge) ServerOption {
	return func(s *Server) { s.bridge = b }
}

// WithModelOptions sets the base options used when a saved credential is
// turned into a live model client (endpoint, model name, and so on). The
// API key option is appended per request.
func WithModelOptions(opts ...chat.Option) ServerOption {
	return func(s *Server) { s.modelOpts = opts }
}

// Server is the HTTP and websocket front of the toy.
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	ctrl      *companion.Controller
	store     *keystore.Store
	bridge    *Bridge
	statusHub *hub.Hub
	modelOpts []chat.Option
}

// NewServer wires the fiber app around the controller and credential
// store. The controller's change notifications are fanned out to status
// websocket clients from here.
func NewServer(port string, ctrl *companion.Controller, store *keystore.Store, opts ...ServerOption) *Server {
	s := &Server{
		port:      port,
		logger:    slog.Default().With("component", "web"),
		ctrl:      ctrl,
		store:     store,
		statusHub: hub.New("status"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bridge == nil {
		s.bridge = NewBridge()
	}

	ctrl.OnChange(func(snap companion.Snapshot) {
		if err := s.statusHub.BroadcastJSON(s.statusView(snap)); err != nil {
			s.logger.Warn("status broadcast failed", "error", err)
		}
	})

	app := fiber.New(fiber.Config{
		AppName:               "Kibo",
		DisableStartupMessage: true,
		BodyLimit:             12 << 20, // picture uploads arrive as data URLs
	})

	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/conversation", s.handleConversation)
	api.Post("/credential", s.handleSaveCredential)
	api.Delete("/credential", s.handleClearCredential)
	api.Post("/start", s.handleStart)
	api.Post("/retry", s.handleRetry)
	api.Post("/demo", s.handleDemo)
	api.Post("/image", s.handleImage)
	api.Post("/mic", s.handleMic)
	api.Post("/text", s.handleText)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/speech", websocket.New(s.bridge.Handle))

	app.Use("/", filesystem.New(filesystem.Config{
		Root:  http.FS(webui.Static()),
		Index: "index.html",
	}))

	s.app = app
	return s
}

// Bridge returns the speech bridge mounted at /ws/speech.
func (s *Server) Bridge() *Bridge {
	return s.bridge
}

// Start runs the hub and serves until Shutdown.
func (s *Server) Start() error {
	go s.statusHub.Run()
	s.logger.Info("listening", "url", "http://localhost:"+s.port)
	return s.app.Listen(":" + s.port)
}

// Serve is like Start but accepts an existing listener. Used by tests to
// bind an ephemeral port.
func (s *Server) Serve(ln net.Listener) error {
	go s.statusHub.Run()
	return s.app.Listener(ln)
}

// Test dispatches a request against the app without a network listener.
func (s *Server) Test(req *http.Request) (*http.Response, error) {
	return s.app.Test(req)
}

// Shutdown gracefully stops the web server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// handleStatusWS streams session snapshots to a UI client.
func (s *Server) handleStatusWS(conn *websocket.Conn) {
	client := hub.NewClient(s.statusHub, conn)
	client.Run()
}
