package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	apisearch "github.com/xeleb-ai/xeleb/api/search"
)

func positiveQueryInt(c *fiber.Ctx, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// handleSearchEndpoint handles GET /v1/search requests.
// Query parameters:
//   - query (required): the search query text
//   - limit (optional): vector candidates fetched before reranking
//   - top_n (optional): passages kept after reranking
func (s *Server) handleSearchEndpoint(c *fiber.Ctx) error {
	if s.config.Searcher == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "search is not configured: vector store and embedder are required",
		})
	}

	query := c.Query("query")
	if query == "" {
		return badRequest(c, "query parameter is required")
	}

	limit, ok := positiveQueryInt(c, "limit")
	if !ok {
		return badRequest(c, "limit must be a positive integer")
	}
	topN, ok := positiveQueryInt(c, "top_n")
	if !ok {
		return badRequest(c, "top_n must be a positive integer")
	}

	output, err := s.config.Searcher.Search(c.Context(), query, apisearch.Options{Limit: limit, TopN: topN})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(output)
}

// handleKnowledgeInfo reports the knowledge collection's shape and size.
func (s *Server) handleKnowledgeInfo(c *fiber.Ctx) error {
	if s.config.Collection == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "the configured vector store does not report collection info",
		})
	}

	info, err := s.config.Collection.CollectionInfo(c.Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(info)
}
