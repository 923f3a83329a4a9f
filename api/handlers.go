package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/xeleb-ai/xeleb/pkg/agent"
	"github.com/xeleb-ai/xeleb/pkg/sse"
)

// RootMessage is reported by GET /.
const RootMessage = "AI Agent platform is running v1!"

// StatusResponse is the body of GET /.
type StatusResponse struct {
	Message  string `json:"message"`
	Datetime string `json:"datetime"`
}

// StreamFrame is the JSON payload of each /ask/stream event. Delta frames
// carry reply text; the last frame has Done set and either ResponseTime or
// Error.
type StreamFrame struct {
	Delta        string `json:"delta,omitempty"`
	Done         bool   `json:"done,omitempty"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// AgentsResponse is the body of GET /list_agents.
type AgentsResponse struct {
	Agents       []string `json:"agents"`
	CurrentAgent string   `json:"current_agent"`
}

// InitializeRequest names the agent to load.
type InitializeRequest struct {
	Name string `json:"name"`
}

// InitializeResponse reports whether the agent was newly built.
type InitializeResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	IsNew   bool   `json:"is_new"`
}

// handleRoot returns a health message with the server's local time.
func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.JSON(StatusResponse{
		Message:  RootMessage,
		Datetime: time.Now().Format(time.DateTime),
	})
}

// handleAsk answers one question and returns the full reply.
func (s *Server) handleAsk(c *fiber.Ctx) error {
	var q agent.Question
	if err := c.BodyParser(&q); err != nil {
		return badRequest(c, "invalid request body")
	}
	if q.UserThread.UserID == "" {
		return badRequest(c, "user_thread.user_id is required")
	}

	ans, err := s.config.Service.Ask(c.Context(), q)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(ans)
}

// handleAskStream answers one question as an SSE stream of StreamFrame
// events. Request errors found before the first byte are returned as plain
// JSON errors; later failures end the stream with an error frame.
func (s *Server) handleAskStream(c *fiber.Ctx) error {
	var q agent.Question
	if err := c.BodyParser(&q); err != nil {
		return badRequest(c, "invalid request body")
	}
	if q.UserThread.UserID == "" {
		return badRequest(c, "user_thread.user_id is required")
	}
	if strings.TrimSpace(q.Question) == "" {
		return s.fail(c, agent.ErrEmptyQuestion)
	}

	key := s.config.Service.Resolve(q.UserThread)
	if _, err := s.config.Service.Agents().Get(c.Context(), key.AgentName); err != nil {
		return s.fail(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		// The request context ends when the handler returns, before the
		// body is written.
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ans, err := s.config.Service.AskStream(ctx, q, func(delta string) error {
			return writeFrame(w, StreamFrame{Delta: delta})
		})
		if err != nil {
			s.logger.Error("streamed answer failed", "user_id", key.UserID, "agent", key.AgentName, "error", err)
			_ = writeFrame(w, StreamFrame{Done: true, Error: err.Error()})
			return
		}
		_ = writeFrame(w, StreamFrame{Done: true, ResponseTime: ans.ResponseTime})
	})
	return nil
}

func writeFrame(w *bufio.Writer, frame StreamFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if err := sse.Write(w, sse.Event{Data: string(data)}); err != nil {
		return err
	}
	return w.Flush()
}

// handleListAgents lists the loaded agents and the current one.
func (s *Server) handleListAgents(c *fiber.Ctx) error {
	agents := s.config.Service.Agents()
	return c.JSON(AgentsResponse{
		Agents:       agents.Names(),
		CurrentAgent: agents.Current(),
	})
}

// handleInitializeAgent loads the named agent and makes it current.
func (s *Server) handleInitializeAgent(c *fiber.Ctx) error {
	var req InitializeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return badRequest(c, "name is required")
	}

	isNew, err := s.config.Service.Agents().Initialize(c.Context(), name)
	if err != nil {
		return s.fail(c, err)
	}

	msg := fmt.Sprintf("Agent %s initialized", name)
	if !isNew {
		msg = fmt.Sprintf("Agent %s already exists, switched to it", name)
	}
	return c.JSON(InitializeResponse{Status: "success", Message: msg, IsNew: isNew})
}
