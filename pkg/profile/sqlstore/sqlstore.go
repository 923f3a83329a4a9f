// Package sqlstore persists agent profiles in a single relational table on
// MySQL, PostgreSQL or SQLite. Queries are built with the ent SQL builder so
// placeholders and identifier quoting follow the configured dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx PostgreSQL driver as "pgx"

	"github.com/xeleb-ai/xeleb/pkg/profile"
)

// DefaultTable is the profile table name.
const DefaultTable = "agent_profiles"

type columnKind int

const (
	kindID columnKind = iota
	kindName
	kindText
	kindInt
	kindFloat
	kindCreated
	kindTime
)

type column struct {
	name string
	kind columnKind
}

// columns is the table layout in select order.
var columns = []column{
	{"id", kindID},
	{"agent_name", kindName},
	{"avatar", kindText},
	{"system_prompt", kindText},
	{"bio", kindText},
	{"lore", kindText},
	{"formal_casual", kindInt},
	{"serious_humorous", kindInt},
	{"concise_detailed", kindInt},
	{"neutral_opinionated", kindInt},
	{"llm_model", kindText},
	{"custom_knowledge", kindText},
	{"post_example", kindText},
	{"twitter", kindText},
	{"discord", kindText},
	{"telegram", kindText},
	{"website", kindText},
	{"instagram", kindText},
	{"creator_id", kindText},
	{"topic", kindText},
	{"personality_traits", kindText},
	{"rules", kindText},
	{"token_contract", kindText},
	{"popularity_score", kindFloat},
	{"bondingAddress", kindText},
	{"symbol", kindText},
	{"symbol_name", kindText},
	{"createdAt", kindCreated},
	{"listedAt", kindTime},
}

func columnNames() []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	return names
}

// insertValues returns the writable columns and their values for r. The id
// and createdAt columns are assigned by the database.
func insertValues(r profile.Row) ([]string, []any) {
	cols := []string{
		"agent_name", "avatar", "system_prompt", "bio", "lore",
		"formal_casual", "serious_humorous", "concise_detailed", "neutral_opinionated",
		"llm_model", "custom_knowledge", "post_example",
		"twitter", "discord", "telegram", "website", "instagram",
		"creator_id", "topic", "personality_traits", "rules",
		"token_contract", "popularity_score", "bondingAddress", "symbol", "symbol_name",
		"listedAt",
	}
	var listedAt any
	if r.ListedAt != nil {
		listedAt = *r.ListedAt
	}
	vals := []any{
		r.AgentName, r.Avatar, r.SystemPrompt, r.Bio, r.Lore,
		r.FormalCasual, r.SeriousHumorous, r.ConciseDetailed, r.NeutralOpinionated,
		r.LLMModel, r.CustomKnowledge, r.PostExample,
		r.Twitter, r.Discord, r.Telegram, r.Website, r.Instagram,
		r.CreatorID, r.Topic, r.PersonalityTraits, r.Rules,
		r.TokenContract, r.PopularityScore, r.BondingAddress, r.Symbol, r.SymbolName,
		listedAt,
	}
	return cols, vals
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (profile.Row, error) {
	var (
		r        profile.Row
		listedAt sql.NullTime
	)
	err := s.Scan(
		&r.ID, &r.AgentName, &r.Avatar, &r.SystemPrompt, &r.Bio, &r.Lore,
		&r.FormalCasual, &r.SeriousHumorous, &r.ConciseDetailed, &r.NeutralOpinionated,
		&r.LLMModel, &r.CustomKnowledge, &r.PostExample,
		&r.Twitter, &r.Discord, &r.Telegram, &r.Website, &r.Instagram,
		&r.CreatorID, &r.Topic, &r.PersonalityTraits, &r.Rules,
		&r.TokenContract, &r.PopularityScore, &r.BondingAddress, &r.Symbol, &r.SymbolName,
		&r.CreatedAt, &listedAt,
	)
	if err != nil {
		return profile.Row{}, err
	}
	if listedAt.Valid {
		t := listedAt.Time
		r.ListedAt = &t
	}
	return r, nil
}

// Config selects the database and table.
type Config struct {
	// Driver is mysql, postgres or sqlite.
	Driver string
	DSN    string
	Table  string
}

// Store implements profile.Store and profile.Admin over database/sql.
type Store struct {
	db     *sql.DB
	flavor flavor
	table  string
	logger *slog.Logger
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	f, err := lookupFlavor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, errors.New("profile database dsn is required")
	}

	dsn, err := f.dsn(cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(f.sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if f.sqlDriver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(db, cfg.Driver, cfg.Table, logger)
}

// New wraps an open database handle.
func New(db *sql.DB, driver, table string, logger *slog.Logger) (*Store, error) {
	f, err := lookupFlavor(driver)
	if err != nil {
		return nil, err
	}
	if table == "" {
		table = DefaultTable
	}
	return &Store{db: db, flavor: f, table: table, logger: logger}, nil
}

func (s *Store) selector() *entsql.Selector {
	b := s.flavor.builder()
	return b.Select(columnNames()...).From(b.Table(s.table))
}

func (s *Store) queryRows(ctx context.Context, sel *entsql.Selector) ([]profile.Profile, error) {
	query, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying profiles: %w", err)
	}
	defer rows.Close()

	out := []profile.Profile{}
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		out = append(out, profile.Unflatten(r))
	}
	return out, rows.Err()
}

func (s *Store) queryOne(ctx context.Context, sel *entsql.Selector) (*profile.Profile, error) {
	query, args := sel.Limit(1).Query()
	r, err := scanRow(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, profile.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}
	p := profile.Unflatten(r)
	return &p, nil
}

func (s *Store) Insert(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	if p.IsEmpty() {
		return profile.Profile{}, profile.ErrEmptyProfile
	}

	cols, vals := insertValues(profile.Flatten(p))
	ins := s.flavor.builder().Insert(s.table).Columns(cols...).Values(vals...)

	var id int64
	if s.flavor.returning {
		query, args := ins.Returning("id").Query()
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return profile.Profile{}, s.insertError(err)
		}
	} else {
		query, args := ins.Query()
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return profile.Profile{}, s.insertError(err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return profile.Profile{}, fmt.Errorf("reading inserted id: %w", err)
		}
	}

	created, err := s.ByID(ctx, id)
	if err != nil {
		return profile.Profile{}, err
	}

	s.logger.Info("agent profile inserted", "agent", created.Name(), "id", id)
	return *created, nil
}

func (s *Store) insertError(err error) error {
	if isDuplicate(err) {
		return profile.ErrDuplicate
	}
	return fmt.Errorf("inserting profile: %w", err)
}

func (s *Store) All(ctx context.Context) ([]profile.Profile, error) {
	return s.queryRows(ctx, s.selector().OrderBy(entsql.Desc("popularity_score")))
}

func (s *Store) FindOne(ctx context.Context, field profile.Field, value string) (*profile.Profile, error) {
	if !field.Valid() {
		return nil, profile.ErrInvalidField
	}
	return s.queryOne(ctx, s.selector().Where(entsql.EQ(string(field), value)))
}

func (s *Store) ByCreator(ctx context.Context, creatorID string) ([]profile.Profile, error) {
	return s.queryRows(ctx, s.selector().
		Where(entsql.EQ("creator_id", creatorID)).
		OrderBy(entsql.Desc("popularity_score")))
}

func (s *Store) ByID(ctx context.Context, id int64) (*profile.Profile, error) {
	return s.queryOne(ctx, s.selector().Where(entsql.EQ("id", id)))
}

func (s *Store) SearchByName(ctx context.Context, name string, limit int) ([]profile.Profile, error) {
	if limit <= 0 {
		limit = profile.DefaultSearchLimit
	}
	return s.queryRows(ctx, s.selector().
		Where(entsql.ContainsFold("agent_name", strings.TrimSpace(name))).
		OrderBy(entsql.Desc("popularity_score")).
		Limit(limit))
}

func (s *Store) Count(ctx context.Context) (int, error) {
	b := s.flavor.builder()
	query, args := b.Select(entsql.Count("*")).From(b.Table(s.table)).Query()

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting profiles: %w", err)
	}
	return n, nil
}

func pageFilter(q profile.PageQuery) *entsql.Predicate {
	var preds []*entsql.Predicate
	if q.Topic != "" {
		preds = append(preds, entsql.Contains("topic", q.Topic))
	}
	if q.AgentName != "" {
		preds = append(preds, entsql.Contains("agent_name", q.AgentName))
	}
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	default:
		return entsql.And(preds...)
	}
}

func (s *Store) Paginate(ctx context.Context, q profile.PageQuery) (profile.Page, error) {
	b := s.flavor.builder()
	filter := pageFilter(q)

	count := b.Select(entsql.Count("*")).From(b.Table(s.table))
	if filter != nil {
		count.Where(filter)
	}
	countQuery, countArgs := count.Query()

	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return profile.Page{}, fmt.Errorf("counting profiles: %w", err)
	}

	sel := s.selector().OrderBy(entsql.Desc("popularity_score"))
	if filter != nil {
		// Predicates keep builder state, so each query gets its own.
		sel.Where(pageFilter(q))
	}
	switch {
	case q.Limit > 0:
		sel.Limit(q.Limit).Offset(max(q.Offset, 0))
	case q.Offset > 0:
		sel.Limit(math.MaxInt32).Offset(q.Offset)
	}

	profiles, err := s.queryRows(ctx, sel)
	if err != nil {
		return profile.Page{}, err
	}
	return profile.Page{Profiles: profiles, TotalPages: profile.TotalPages(total, q.Limit)}, nil
}

func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	query, args := s.flavor.builder().Delete(s.table).Where(entsql.EQ("id", id)).Query()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("deleting profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading deleted rows: %w", err)
	}
	return n > 0, nil
}

func (s *Store) UpdateToken(ctx context.Context, id int64, u profile.TokenUpdate) (*profile.Profile, error) {
	current, err := s.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.IsEmpty() {
		s.logger.Info("no token fields to update", "id", id)
		return current, nil
	}

	upd := s.flavor.builder().Update(s.table)
	if strings.TrimSpace(u.TokenContract) != "" {
		upd.Set("token_contract", u.TokenContract)
	}
	if strings.TrimSpace(u.BondingAddress) != "" {
		upd.Set("bondingAddress", u.BondingAddress)
	}
	if strings.TrimSpace(u.Symbol) != "" {
		upd.Set("symbol", u.Symbol)
	}

	query, args := upd.Where(entsql.EQ("id", id)).Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("updating token fields: %w", err)
	}

	s.logger.Info("agent token fields updated", "id", id)
	return s.ByID(ctx, id)
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

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.flavor.createTable(s.table)); err != nil {
		return fmt.Errorf("creating profile table: %w", err)
	}
	s.logger.Info("profile table ready", "table", s.table)
	return nil
}

func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.flavor.tablesQuery)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (s *Store) DropTable(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+s.flavor.quote(s.table)); err != nil {
		return fmt.Errorf("dropping table: %w", err)
	}
	s.logger.Info("profile table dropped", "table", s.table)
	return nil
}

func (s *Store) ClearTable(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(s.flavor.truncate, s.flavor.quote(s.table))); err != nil {
		return fmt.Errorf("clearing table: %w", err)
	}
	s.logger.Info("profile table cleared", "table", s.table)
	return nil
}

// RunScript executes the statements of a .sql file, split on ";", in one
// transaction and returns how many ran.
func (s *Store) RunScript(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading sql script: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	n := 0
	for _, stmt := range strings.Split(string(raw), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return 0, fmt.Errorf("executing statement %d: %w", n+1, err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing sql script: %w", err)
	}
	s.logger.Info("sql script executed", "path", path, "statements", n)
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var _ profile.Store = (*Store)(nil)
var _ profile.Admin = (*Store)(nil)
