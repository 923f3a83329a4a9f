package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xeleb-ai/xeleb/pkg/profile"
)

// Store implements profile.Store with an in-memory table of rows.
type Store struct {
	mu     sync.RWMutex
	rows   map[int64]profile.Row
	nextID int64
	now    func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		rows:   make(map[int64]profile.Row),
		nextID: 1,
		now:    time.Now,
	}
}

func (s *Store) Insert(_ context.Context, p profile.Profile) (profile.Profile, error) {
	if p.IsEmpty() {
		return profile.Profile{}, profile.ErrEmptyProfile
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rows {
		if r.AgentName == p.Identity.AgentName {
			return profile.Profile{}, profile.ErrDuplicate
		}
	}

	row := profile.Flatten(p)
	row.ID = s.nextID
	row.CreatedAt = s.now().UTC().Truncate(time.Second)
	s.nextID++
	s.rows[row.ID] = row

	return profile.Unflatten(row), nil
}

// sorted returns the rows matching keep by popularity, highest first.
func (s *Store) sorted(keep func(profile.Row) bool) []profile.Row {
	out := make([]profile.Row, 0, len(s.rows))
	for _, r := range s.rows {
		if keep == nil || keep(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PopularityScore != out[j].PopularityScore {
			return out[i].PopularityScore > out[j].PopularityScore
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func unflattenAll(rows []profile.Row) []profile.Profile {
	out := make([]profile.Profile, 0, len(rows))
	for _, r := range rows {
		out = append(out, profile.Unflatten(r))
	}
	return out
}

func (s *Store) All(context.Context) ([]profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return unflattenAll(s.sorted(nil)), nil
}

func (s *Store) FindOne(_ context.Context, field profile.Field, value string) (*profile.Profile, error) {
	if !field.Valid() {
		return nil, profile.ErrInvalidField
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.sorted(nil) {
		v := r.AgentName
		if field == profile.FieldSymbol {
			v = r.Symbol
		}
		if v == value {
			p := profile.Unflatten(r)
			return &p, nil
		}
	}
	return nil, profile.ErrNotFound
}

func (s *Store) ByCreator(_ context.Context, creatorID string) ([]profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return unflattenAll(s.sorted(func(r profile.Row) bool { return r.CreatorID == creatorID })), nil
}

func (s *Store) ByID(_ context.Context, id int64) (*profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rows[id]
	if !ok {
		return nil, profile.ErrNotFound
	}
	p := profile.Unflatten(r)
	return &p, nil
}

func (s *Store) SearchByName(_ context.Context, name string, limit int) ([]profile.Profile, error) {
	if limit <= 0 {
		limit = profile.DefaultSearchLimit
	}
	needle := strings.ToLower(strings.TrimSpace(name))

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.sorted(func(r profile.Row) bool {
		return strings.Contains(strings.ToLower(strings.TrimSpace(r.AgentName)), needle)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return unflattenAll(rows), nil
}

func (s *Store) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows), nil
}

func (s *Store) Paginate(_ context.Context, q profile.PageQuery) (profile.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.sorted(func(r profile.Row) bool {
		if q.Topic != "" && !strings.Contains(r.Topic, q.Topic) {
			return false
		}
		if q.AgentName != "" && !strings.Contains(r.AgentName, q.AgentName) {
			return false
		}
		return true
	})
	total := len(rows)

	start := min(max(q.Offset, 0), total)
	end := total
	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}

	return profile.Page{
		Profiles:   unflattenAll(rows[start:end]),
		TotalPages: profile.TotalPages(total, q.Limit),
	}, nil
}

func (s *Store) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[id]; !ok {
		return false, nil
	}
	delete(s.rows, id)
	return true, nil
}

func (s *Store) UpdateToken(_ context.Context, id int64, u profile.TokenUpdate) (*profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok {
		return nil, profile.ErrNotFound
	}
	if strings.TrimSpace(u.TokenContract) != "" {
		r.TokenContract = u.TokenContract
	}
	if strings.TrimSpace(u.BondingAddress) != "" {
		r.BondingAddress = u.BondingAddress
	}
	if strings.TrimSpace(u.Symbol) != "" {
		r.Symbol = u.Symbol
	}
	s.rows[id] = r

	p := profile.Unflatten(r)
	return &p, nil
}

func (s *Store) IDByName(ctx context.Context, name string) (int64, error) {
	p, err := s.FindOne(ctx, profile.FieldAgentName, name)
	if err != nil {
		return 0, err
	}
	return p.AgentID, nil
}

func (s *Store) NameByID(ctx context.Context, id int64) (string, error) {
	p, err := s.ByID(ctx, id)
	if err != nil {
		return "", err
	}
	return p.Name(), nil
}

func (s *Store) Close() error {
	return nil
}
