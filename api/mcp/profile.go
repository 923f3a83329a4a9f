package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/xeleb-ai/xeleb/pkg/persona"
	"github.com/xeleb-ai/xeleb/pkg/profile"
)

var (
	profileToolName    = "get_agent_profile"
	profileDescription = "Get the profile of a celebrity persona agent by name: identity, topics, personality traits, communication style, rules and token details, plus the system prompt the agent is run with."
)

// ProfileInput represents the input arguments for the profile tool.
type ProfileInput struct {
	Name string `json:"name" jsonschema:"the agent name, e.g. MISS CHINA AI"`
}

// ProfileOutput is a flattened agent profile.
type ProfileOutput struct {
	AgentID      int64    `json:"agent_id"`
	AgentName    string   `json:"agent_name"`
	Bio          string   `json:"bio"`
	Lore         string   `json:"lore"`
	Topics       []string `json:"topics"`
	Traits       []string `json:"personality_traits"`
	Style        []string `json:"communication_style"`
	Rules        []string `json:"rules"`
	Symbol       string   `json:"symbol"`
	SystemPrompt string   `json:"system_prompt"`
}

// handleProfile returns the profile called input.Name.
func (s *Server) handleProfile(ctx context.Context, _ *mcp.CallToolRequest, input ProfileInput) (*mcp.CallToolResult, ProfileOutput, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ProfileOutput{}, errors.New("name is required")
	}

	p, err := s.config.Profiles.FindOne(ctx, profile.FieldAgentName, name)
	if err != nil {
		return nil, ProfileOutput{}, fmt.Errorf("agent %q: %w", name, err)
	}

	return nil, toProfileOutput(p), nil
}

func toProfileOutput(p *profile.Profile) ProfileOutput {
	return ProfileOutput{
		AgentID:      p.AgentID,
		AgentName:    p.Name(),
		Bio:          p.Identity.Bio,
		Lore:         p.Identity.Lore,
		Topics:       orEmpty(p.Behavior.Topic),
		Traits:       orEmpty(p.Behavior.PersonalityTraits),
		Style:        orEmpty(persona.StyleWords(p.Behavior.CommunicationStyle)),
		Rules:        orEmpty(p.Rules),
		Symbol:       p.Symbol,
		SystemPrompt: persona.SystemPrompt(p),
	}
}

// orEmpty keeps nil lists from encoding as null.
func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
