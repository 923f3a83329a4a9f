// Package persona renders agent profiles into system prompts.
package persona

import (
	"fmt"
	"strings"

	"github.com/xeleb-ai/xeleb/pkg/profile"
)

// DefaultSystemPrompt is used when an agent has no stored profile.
const DefaultSystemPrompt = `You are a friendly celebrity AI assistant.
Answer in a natural, engaging voice and keep replies short enough for a chat.
When a question depends on facts about you or your work, call the search_similar_texts tool and base your answer on what it returns.
If the knowledge base has nothing relevant, say so instead of inventing details.`

const toolGuidance = `Use the search_similar_texts tool whenever the user asks about facts, events, products or opinions that may be in your knowledge base. Ground your answer in the returned passages and never mention the tool itself.`

// slider describes the two poles of a communication style value.
type slider struct {
	label string
	low   string
	high  string
}

var (
	formalCasual       = slider{"Tone", "formal", "casual"}
	seriousHumorous    = slider{"Mood", "serious", "humorous"}
	conciseDetailed    = slider{"Length", "concise", "detailed"}
	neutralOpinionated = slider{"Stance", "neutral", "opinionated"}
)

// describe renders a 0-100 slider value as words. Values are clamped.
func (s slider) describe(v int) string {
	v = min(max(v, 0), 100)
	switch {
	case v <= 20:
		return "very " + s.low
	case v < 40:
		return s.low
	case v <= 60:
		return "balanced between " + s.low + " and " + s.high
	case v < 80:
		return s.high
	default:
		return "very " + s.high
	}
}

// StyleWords renders each communication style slider as a labeled phrase.
func StyleWords(c profile.CommunicationStyle) []string {
	return []string{
		formalCasual.label + ": " + formalCasual.describe(c.FormalCasual),
		seriousHumorous.label + ": " + seriousHumorous.describe(c.SeriousHumorous),
		conciseDetailed.label + ": " + conciseDetailed.describe(c.ConciseDetailed),
		neutralOpinionated.label + ": " + neutralOpinionated.describe(c.NeutralOpinionated),
	}
}

// SystemPrompt hydrates p into the system prompt of its agent. A nil profile
// yields DefaultSystemPrompt.
func SystemPrompt(p *profile.Profile) string {
	if p == nil || p.IsEmpty() {
		return DefaultSystemPrompt
	}

	var b strings.Builder

	if sys := strings.TrimSpace(p.Identity.System); sys != "" {
		b.WriteString(sys)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "You are %s. Stay in character in every reply.\n", p.Name())

	section(&b, "Bio", p.Identity.Bio)
	section(&b, "Lore", p.Identity.Lore)
	list(&b, "Personality traits", p.Behavior.PersonalityTraits)
	list(&b, "Topics you talk about", p.Behavior.Topic)
	list(&b, "Communication style", StyleWords(p.Behavior.CommunicationStyle))
	list(&b, "Rules you always follow", p.Rules)
	section(&b, "Example of how you write", p.Knowledge.PostExample)
	section(&b, "Additional knowledge", p.Knowledge.CustomKnowledge)

	b.WriteString("\n")
	b.WriteString(toolGuidance)
	return b.String()
}

func section(b *strings.Builder, title, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	fmt.Fprintf(b, "\n## %s\n%s\n", title, body)
}

func list(b *strings.Builder, title string, items []string) {
	var kept []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			kept = append(kept, it)
		}
	}
	if len(kept) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n", title)
	for _, it := range kept {
		fmt.Fprintf(b, "- %s\n", it)
	}
}
