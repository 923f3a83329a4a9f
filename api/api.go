package api

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/xeleb-ai/xeleb/pkg/agent"
	"github.com/xeleb-ai/xeleb/pkg/conversation"
	"github.com/xeleb-ai/xeleb/pkg/profile"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server is the xeleb API server.
type Server struct {
	config Config
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server. The agent service is required; the
// other dependencies enable their routes when present.
func NewServer(config Config, logger *slog.Logger) (*Server, error) {
	if config.Service == nil {
		return nil, errors.New("agent service is required")
	}
	if config.Profiles == nil {
		return nil, errors.New("profile store is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
		},
	})

	s := &Server{
		config: config,
		logger: logger,
		app:    app,
	}

	app.Use(recover.New())
	if config.Metrics != nil {
		app.Use(s.observe)
		app.Get("/metrics", adaptor.HTTPHandler(config.Metrics.Handler()))
	}

	app.Get("/", s.handleRoot)
	app.Post("/ask", s.handleAsk)
	app.Post("/ask/stream", s.handleAskStream)
	app.Get("/list_agents", s.handleListAgents)
	app.Post("/initialize_agent", s.handleInitializeAgent)

	v1 := app.Group("/v1")

	agents := v1.Group("/agents")
	agents.Get("/", s.handleListProfiles)
	agents.Post("/", s.handleCreateProfile)
	agents.Get("/count", s.handleCountProfiles)
	agents.Get("/search", s.handleSearchProfiles)
	agents.Get("/lookup", s.handleLookupProfile)
	agents.Get("/find", s.handleFindProfile)
	agents.Get("/creator/:creator_id", s.handleProfilesByCreator)
	agents.Get("/:id", s.handleGetProfile)
	agents.Delete("/:id", s.handleDeleteProfile)
	agents.Patch("/:id/token", s.handleUpdateToken)

	v1.Post("/chat/history", s.handleChatHistory)
	v1.Delete("/chat/history", s.handleClearHistory)

	v1.Get("/search", s.handleSearchEndpoint)
	v1.Get("/knowledge", s.handleKnowledgeInfo)

	if config.MCP != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCP))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// observe records the route template, status and latency of every request.
func (s *Server) observe(c *fiber.Ctx) error {
	started := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
	}
	s.config.Metrics.ObserveRequest(c.Route().Path, strconv.Itoa(status), started)
	return err
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, agent.ErrEmptyQuestion),
		errors.Is(err, profile.ErrEmptyProfile),
		errors.Is(err, profile.ErrInvalidField):
		return fiber.StatusBadRequest
	case errors.Is(err, agent.ErrUnknownAgent),
		errors.Is(err, profile.ErrNotFound),
		errors.Is(err, conversation.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, profile.ErrDuplicate):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// fail logs unexpected errors and writes err as an ErrorResponse.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	code := statusOf(err)
	if code == fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
}
