package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/xeleb-ai/xeleb/pkg/conversation"
)

// DefaultHistoryPageSize is the page size of POST /v1/chat/history.
const DefaultHistoryPageSize = 5

// ChatHistoryRequest selects one page of a thread's history.
type ChatHistoryRequest struct {
	ThreadInfo conversation.ThreadKey `json:"thread_info"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"page_size"`
}

// ClearHistoryRequest names the thread to delete.
type ClearHistoryRequest struct {
	UserID   string `json:"user_id"`
	ThreadID string `json:"thread_id"`
}

// handleChatHistory returns a page of a thread's messages, newest page
// first. A thread with no history yields an empty page.
func (s *Server) handleChatHistory(c *fiber.Ctx) error {
	req := ChatHistoryRequest{Page: 1, PageSize: DefaultHistoryPageSize}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.ThreadInfo.UserID == "" {
		return badRequest(c, "thread_info.user_id is required")
	}

	key := s.config.Service.Resolve(req.ThreadInfo)
	conv, err := s.config.Service.Conversations().Retrieve(c.Context(), key)
	if err != nil && !errors.Is(err, conversation.ErrNotFound) {
		return s.fail(c, err)
	}

	return c.JSON(conversation.Page(conv, req.Page, req.PageSize))
}

// handleClearHistory deletes the conversation of a user's thread.
func (s *Server) handleClearHistory(c *fiber.Ctx) error {
	var req ClearHistoryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.UserID == "" {
		return badRequest(c, "user_id is required")
	}

	key := s.config.Service.Resolve(conversation.ThreadKey{UserID: req.UserID, ThreadID: req.ThreadID})
	deleted, err := s.config.Service.Conversations().Clear(c.Context(), key.UserID, key.ThreadID)
	if err != nil {
		return s.fail(c, err)
	}
	if !deleted {
		return s.fail(c, conversation.ErrNotFound)
	}
	return c.JSON(fiber.Map{"deleted": true, "user_id": key.UserID, "thread_id": key.ThreadID})
}
