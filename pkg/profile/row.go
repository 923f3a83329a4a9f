package profile

import (
	"strings"
	"time"
)

const listSep = ", "

// Row is the flat column layout a profile is stored as.
type Row struct {
	ID                 int64
	AgentName          string
	Avatar             string
	SystemPrompt       string
	Bio                string
	Lore               string
	FormalCasual       int
	SeriousHumorous    int
	ConciseDetailed    int
	NeutralOpinionated int
	LLMModel           string
	CustomKnowledge    string
	PostExample        string
	Twitter            string
	Discord            string
	Telegram           string
	Website            string
	Instagram          string
	CreatorID          string
	Topic              string
	PersonalityTraits  string
	Rules              string
	TokenContract      string
	PopularityScore    float64
	BondingAddress     string
	Symbol             string
	SymbolName         string
	CreatedAt          time.Time
	ListedAt           *time.Time
}

// Flatten converts p into a row. Lists are joined with ", ".
func Flatten(p Profile) Row {
	r := Row{
		ID:                 p.AgentID,
		AgentName:          p.Identity.AgentName,
		Avatar:             p.Identity.Avatar,
		SystemPrompt:       p.Identity.System,
		Bio:                p.Identity.Bio,
		Lore:               p.Identity.Lore,
		FormalCasual:       p.Behavior.CommunicationStyle.FormalCasual,
		SeriousHumorous:    p.Behavior.CommunicationStyle.SeriousHumorous,
		ConciseDetailed:    p.Behavior.CommunicationStyle.ConciseDetailed,
		NeutralOpinionated: p.Behavior.CommunicationStyle.NeutralOpinionated,
		LLMModel:           p.Knowledge.LLMModel,
		CustomKnowledge:    p.Knowledge.CustomKnowledge,
		PostExample:        p.Knowledge.PostExample,
		Twitter:            p.Social.Twitter,
		Discord:            p.Social.Discord,
		Telegram:           p.Social.Telegram,
		Website:            p.Social.Website,
		Instagram:          p.Social.Instagram,
		CreatorID:          p.CreatorID,
		Topic:              strings.Join(p.Behavior.Topic, listSep),
		PersonalityTraits:  strings.Join(p.Behavior.PersonalityTraits, listSep),
		Rules:              strings.Join(p.Rules, listSep),
		TokenContract:      p.TokenContract,
		PopularityScore:    p.PopularityScore,
		BondingAddress:     p.BondingAddress,
		Symbol:             p.Symbol,
		SymbolName:         p.SymbolName,
		ListedAt:           p.ListedAt,
	}
	if p.CreatedAt != nil {
		r.CreatedAt = *p.CreatedAt
	}
	return r
}

// Unflatten converts a stored row back into a profile. List columns are split
// on ", "; an empty column becomes an empty list.
func Unflatten(r Row) Profile {
	p := Profile{
		AgentID: r.ID,
		Identity: Identity{
			AgentName: r.AgentName,
			Avatar:    r.Avatar,
			System:    r.SystemPrompt,
			Bio:       r.Bio,
			Lore:      r.Lore,
		},
		Behavior: Behavior{
			Topic:             splitList(r.Topic),
			PersonalityTraits: splitList(r.PersonalityTraits),
			CommunicationStyle: CommunicationStyle{
				FormalCasual:       r.FormalCasual,
				SeriousHumorous:    r.SeriousHumorous,
				ConciseDetailed:    r.ConciseDetailed,
				NeutralOpinionated: r.NeutralOpinionated,
			},
		},
		Knowledge: Knowledge{
			LLMModel:        r.LLMModel,
			CustomKnowledge: r.CustomKnowledge,
			PostExample:     r.PostExample,
		},
		Social: Social{
			Twitter:   r.Twitter,
			Discord:   r.Discord,
			Telegram:  r.Telegram,
			Website:   r.Website,
			Instagram: r.Instagram,
		},
		Rules:           splitList(r.Rules),
		CreatorID:       r.CreatorID,
		TokenContract:   r.TokenContract,
		PopularityScore: r.PopularityScore,
		ListedAt:        r.ListedAt,
		BondingAddress:  r.BondingAddress,
		Symbol:          r.Symbol,
		SymbolName:      r.SymbolName,
	}
	if !r.CreatedAt.IsZero() {
		t := r.CreatedAt
		p.CreatedAt = &t
	}
	return p
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, listSep)
}
