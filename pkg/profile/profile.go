// Package profile holds persona agent profiles and the stores that persist
// them as flat table rows.
package profile

import (
	"encoding/json"
	"time"
)

// DefaultStyleLevel is the neutral position of a communication style slider.
const DefaultStyleLevel = 50

// Profile is a persona agent definition. JSON names match the profile files
// and the HTTP API.
type Profile struct {
	AgentID         int64      `json:"agent_id"`
	Identity        Identity   `json:"identity"`
	Behavior        Behavior   `json:"behavior"`
	Knowledge       Knowledge  `json:"knowledge"`
	Social          Social     `json:"social"`
	Rules           []string   `json:"rules"`
	CreatorID       string     `json:"creator_id"`
	CreatedAt       *time.Time `json:"createdAt"`
	TokenContract   string     `json:"token_contract"`
	PopularityScore float64    `json:"popularity_score"`
	ListedAt        *time.Time `json:"listedAt"`
	BondingAddress  string     `json:"bondingAddress"`
	Symbol          string     `json:"symbol"`
	SymbolName      string     `json:"symbol_name"`
}

type Identity struct {
	AgentName string `json:"agentName"`
	Avatar    string `json:"avatar"`
	System    string `json:"system"`
	Bio       string `json:"bio"`
	Lore      string `json:"lore"`
}

type Behavior struct {
	Topic              []string           `json:"topic"`
	PersonalityTraits  []string           `json:"personality_traits"`
	CommunicationStyle CommunicationStyle `json:"communication_style"`
}

// CommunicationStyle holds 0-100 sliders between two poles.
type CommunicationStyle struct {
	FormalCasual       int `json:"formal_casual"`
	SeriousHumorous    int `json:"serious_humorous"`
	ConciseDetailed    int `json:"concise_detailed"`
	NeutralOpinionated int `json:"neutral_opinionated"`
}

// DefaultCommunicationStyle has every slider at DefaultStyleLevel.
func DefaultCommunicationStyle() CommunicationStyle {
	return CommunicationStyle{
		FormalCasual:       DefaultStyleLevel,
		SeriousHumorous:    DefaultStyleLevel,
		ConciseDetailed:    DefaultStyleLevel,
		NeutralOpinionated: DefaultStyleLevel,
	}
}

// UnmarshalJSON leaves sliders missing from the input at DefaultStyleLevel.
func (c *CommunicationStyle) UnmarshalJSON(data []byte) error {
	type plain CommunicationStyle
	v := plain(DefaultCommunicationStyle())
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = CommunicationStyle(v)
	return nil
}

// UnmarshalJSON defaults the communication style when the behavior section
// omits it.
func (b *Behavior) UnmarshalJSON(data []byte) error {
	type plain Behavior
	v := plain{CommunicationStyle: DefaultCommunicationStyle()}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = Behavior(v)
	return nil
}

type Knowledge struct {
	LLMModel        string `json:"llm_model"`
	CustomKnowledge string `json:"custom_knowledge"`
	PostExample     string `json:"post_example"`
}

type Social struct {
	Twitter   string `json:"twitter"`
	Discord   string `json:"discord"`
	Telegram  string `json:"telegram"`
	Website   string `json:"website"`
	Instagram string `json:"instagram"`
}

// Name returns the agent name.
func (p Profile) Name() string {
	return p.Identity.AgentName
}

// IsEmpty reports whether p carries no agent name, the only required field.
func (p Profile) IsEmpty() bool {
	return p.Identity.AgentName == ""
}

// UnmarshalJSON defaults the communication style when the input has no
// behavior section.
func (p *Profile) UnmarshalJSON(data []byte) error {
	type plain Profile
	v := plain{Behavior: Behavior{CommunicationStyle: DefaultCommunicationStyle()}}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Profile(v)
	return nil
}
