package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultSearchLimit bounds SearchByName when no limit is given.
const DefaultSearchLimit = 10

var (
	ErrNotFound     = errors.New("agent profile not found")
	ErrDuplicate    = errors.New("duplicate entry: this agent name already exists")
	ErrEmptyProfile = errors.New("agent profile is empty")
	ErrInvalidField = errors.New("invalid lookup field: must be agent_name or symbol")
)

// Field is a column FindOne can match on.
type Field string

const (
	FieldAgentName Field = "agent_name"
	FieldSymbol    Field = "symbol"
)

// Valid reports whether f is a supported lookup field.
func (f Field) Valid() bool {
	return f == FieldAgentName || f == FieldSymbol
}

// PageQuery selects one page of profiles. Topic and AgentName are substring
// filters; a zero Limit returns every row from Offset on.
type PageQuery struct {
	Limit     int
	Offset    int
	Topic     string
	AgentName string
}

// Page is a page of profiles ordered by popularity.
type Page struct {
	Profiles   []Profile `json:"profiles"`
	TotalPages int       `json:"total_pages"`
}

// TotalPages returns ceil(total/limit), or 1 when limit is zero.
func TotalPages(total, limit int) int {
	if limit <= 0 {
		return 1
	}
	return (total + limit - 1) / limit
}

// TokenUpdate carries token fields to update. Blank fields are left as is.
type TokenUpdate struct {
	TokenContract  string `json:"token_contract"`
	BondingAddress string `json:"bondingAddress"`
	Symbol         string `json:"symbol"`
}

// IsEmpty reports whether u has nothing to update.
func (u TokenUpdate) IsEmpty() bool {
	return strings.TrimSpace(u.TokenContract) == "" &&
		strings.TrimSpace(u.BondingAddress) == "" &&
		strings.TrimSpace(u.Symbol) == ""
}

// Store persists agent profiles.
type Store interface {
	// Insert stores p and returns it with AgentID and CreatedAt populated.
	Insert(ctx context.Context, p Profile) (Profile, error)

	// All returns every profile by popularity, highest first.
	All(ctx context.Context) ([]Profile, error)

	// FindOne returns the profile whose field equals value.
	FindOne(ctx context.Context, field Field, value string) (*Profile, error)

	ByCreator(ctx context.Context, creatorID string) ([]Profile, error)
	ByID(ctx context.Context, id int64) (*Profile, error)

	// SearchByName matches a trimmed, case-insensitive substring of the
	// agent name.
	SearchByName(ctx context.Context, name string, limit int) ([]Profile, error)

	Count(ctx context.Context) (int, error)
	Paginate(ctx context.Context, q PageQuery) (Page, error)

	// Delete reports whether a profile was removed.
	Delete(ctx context.Context, id int64) (bool, error)

	// UpdateToken applies the non-blank fields of u and returns the current
	// profile.
	UpdateToken(ctx context.Context, id int64, u TokenUpdate) (*Profile, error)

	IDByName(ctx context.Context, name string) (int64, error)
	NameByID(ctx context.Context, id int64) (string, error)

	Close() error
}

// Admin is implemented by stores backed by a relational table.
type Admin interface {
	Migrate(ctx context.Context) error
	Tables(ctx context.Context) ([]string, error)
	DropTable(ctx context.Context) error
	ClearTable(ctx context.Context) error
	RunScript(ctx context.Context, path string) (int, error)
}

// ImportResult is the outcome of importing one profile file.
type ImportResult struct {
	File      string `json:"file"`
	AgentID   int64  `json:"agent_id,omitempty"`
	AgentName string `json:"agent_name,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ImportReport summarizes InsertFromDir.
type ImportReport struct {
	Results  []ImportResult `json:"results"`
	Inserted int            `json:"inserted"`
	Failed   int            `json:"failed"`
}

// InsertFromDir inserts every *.json profile file in dir. Failures are
// recorded per file.
func InsertFromDir(ctx context.Context, s Store, dir string, logger *slog.Logger) (*ImportReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading profile directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	report := &ImportReport{Results: make([]ImportResult, 0, len(names))}
	for _, name := range names {
		res := ImportResult{File: name}
		inserted, err := importFile(ctx, s, filepath.Join(dir, name))
		if err != nil {
			res.Error = err.Error()
			report.Failed++
			logger.Error("failed to import agent profile", "file", name, "error", err)
		} else {
			res.AgentID = inserted.AgentID
			res.AgentName = inserted.Name()
			report.Inserted++
			logger.Info("imported agent profile", "file", name, "agent", inserted.Name(), "id", inserted.AgentID)
		}
		report.Results = append(report.Results, res)
	}
	return report, nil
}

func importFile(ctx context.Context, s Store, path string) (Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}

	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return Profile{}, fmt.Errorf("decoding profile json: %w", err)
	}
	return s.Insert(ctx, p)
}
