package api

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/xeleb-ai/xeleb/pkg/profile"
)

// DefaultPageLimit is the page size of GET /v1/agents.
const DefaultPageLimit = 10

// ProfilePage is one page of agent profiles.
type ProfilePage struct {
	Profiles    []profile.Profile `json:"profiles"`
	TotalPages  int               `json:"total_pages"`
	CurrentPage int               `json:"current_page"`
}

// ProfileList wraps a list of agent profiles.
type ProfileList struct {
	Profiles []profile.Profile `json:"profiles"`
}

// AgentRef pairs an agent id with its name.
type AgentRef struct {
	AgentID   int64  `json:"agent_id"`
	AgentName string `json:"agent_name"`
}

func profileID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

func nonNil(profiles []profile.Profile) []profile.Profile {
	if profiles == nil {
		return []profile.Profile{}
	}
	return profiles
}

// handleListProfiles pages through profiles by popularity.
// Query parameters:
//   - page (optional, default 1)
//   - limit (optional, default 10)
//   - topic, agent_name (optional substring filters)
func (s *Server) handleListProfiles(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", DefaultPageLimit)
	if page < 1 || limit < 1 {
		return badRequest(c, "page and limit must be positive integers")
	}

	res, err := s.config.Profiles.Paginate(c.Context(), profile.PageQuery{
		Limit:     limit,
		Offset:    (page - 1) * limit,
		Topic:     c.Query("topic"),
		AgentName: c.Query("agent_name"),
	})
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(ProfilePage{
		Profiles:    nonNil(res.Profiles),
		TotalPages:  res.TotalPages,
		CurrentPage: page,
	})
}

func (s *Server) handleCreateProfile(c *fiber.Ctx) error {
	var p profile.Profile
	if err := c.BodyParser(&p); err != nil {
		return badRequest(c, "invalid agent profile")
	}

	created, err := s.config.Profiles.Insert(c.Context(), p)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (s *Server) handleCountProfiles(c *fiber.Ctx) error {
	n, err := s.config.Profiles.Count(c.Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"count": n})
}

// handleSearchProfiles matches a substring of the agent name.
func (s *Server) handleSearchProfiles(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		return badRequest(c, "name parameter is required")
	}

	found, err := s.config.Profiles.SearchByName(c.Context(), name, c.QueryInt("limit", profile.DefaultSearchLimit))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(ProfileList{Profiles: nonNil(found)})
}

// handleLookupProfile resolves an agent name to its id or an id to its
// name. Exactly one of the name or id parameters is expected.
func (s *Server) handleLookupProfile(c *fiber.Ctx) error {
	ctx := c.Context()

	if name := strings.TrimSpace(c.Query("name")); name != "" {
		id, err := s.config.Profiles.IDByName(ctx, name)
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(AgentRef{AgentID: id, AgentName: name})
	}

	if raw := c.Query("id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return badRequest(c, "id must be an integer")
		}
		name, err := s.config.Profiles.NameByID(ctx, id)
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(AgentRef{AgentID: id, AgentName: name})
	}

	return badRequest(c, "name or id parameter is required")
}

// handleFindProfile returns the profile whose agent_name or symbol equals
// value.
func (s *Server) handleFindProfile(c *fiber.Ctx) error {
	field := profile.Field(c.Query("field", string(profile.FieldAgentName)))
	if !field.Valid() {
		return s.fail(c, profile.ErrInvalidField)
	}
	value := strings.TrimSpace(c.Query("value"))
	if value == "" {
		return badRequest(c, "value parameter is required")
	}

	p, err := s.config.Profiles.FindOne(c.Context(), field, value)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(p)
}

func (s *Server) handleProfilesByCreator(c *fiber.Ctx) error {
	found, err := s.config.Profiles.ByCreator(c.Context(), c.Params("creator_id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(ProfileList{Profiles: nonNil(found)})
}

func (s *Server) handleGetProfile(c *fiber.Ctx) error {
	id, err := profileID(c)
	if err != nil {
		return badRequest(c, "id must be an integer")
	}

	p, err := s.config.Profiles.ByID(c.Context(), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(p)
}

func (s *Server) handleDeleteProfile(c *fiber.Ctx) error {
	id, err := profileID(c)
	if err != nil {
		return badRequest(c, "id must be an integer")
	}

	deleted, err := s.config.Profiles.Delete(c.Context(), id)
	if err != nil {
		return s.fail(c, err)
	}
	if !deleted {
		return s.fail(c, profile.ErrNotFound)
	}
	return c.JSON(fiber.Map{"deleted": true, "agent_id": id})
}

// handleUpdateToken sets the token contract, bonding address and symbol of
// an agent. Blank fields are left unchanged.
func (s *Server) handleUpdateToken(c *fiber.Ctx) error {
	id, err := profileID(c)
	if err != nil {
		return badRequest(c, "id must be an integer")
	}

	var u profile.TokenUpdate
	if err := c.BodyParser(&u); err != nil {
		return badRequest(c, "invalid token update")
	}
	if u.IsEmpty() {
		return badRequest(c, "no token fields to update")
	}

	p, err := s.config.Profiles.UpdateToken(c.Context(), id, u)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(p)
}
