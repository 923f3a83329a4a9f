// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/xeleb-ai/xeleb/pkg/vector"
)

// DefaultCollection is used when Config.Collection is empty.
const DefaultCollection = "knowledgebase"

var unsafeIdent = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Driver implements vector.Driver and vector.CollectionManager using SQLite
// with sqlite-vec. Each collection is a pair of tables: a document table
// mapping string ids to integer rowids and a vec0 virtual table.
type Driver struct {
	db         *sql.DB
	collection string
	docTable   string
	vecTable   string
	dimensions uint
	logger     *slog.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Collection names the table pair. Defaults to DefaultCollection.
	Collection string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// NewDriver creates a new SQLite vector driver backed by sqlite-vec and makes
// sure the collection tables exist.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, errors.New("database path is required")
	}

	if c.Dimensions == 0 {
		return nil, errors.New("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	collection := c.Collection
	if collection == "" {
		collection = DefaultCollection
	}
	ident := strings.ToLower(unsafeIdent.ReplaceAllString(collection, "_"))

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// In-memory databases are per connection.
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	d := &Driver{
		db:         db,
		collection: collection,
		docTable:   ident + "_documents",
		vecTable:   ident + "_embeddings",
		dimensions: c.Dimensions,
		logger:     logger,
	}

	if err := d.EnsureCollection(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite-vec vector driver initialized",
		"db_path", c.DBPath,
		"collection", collection,
		"dimensions", c.Dimensions,
		"vec_version", vecVersion,
	)

	return d, nil
}

func (d *Driver) tablesExist(ctx context.Context) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE name = ?`, d.docTable,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking collection tables: %w", err)
	}
	return n > 0, nil
}

func (d *Driver) createTables(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id TEXT NOT NULL UNIQUE,
			text TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL DEFAULT '{}'
		)
	`, d.docTable))
	if err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(embedding float[%d])`,
		d.vecTable, d.dimensions,
	)
	if _, err := d.db.ExecContext(ctx, createVec); err != nil {
		return fmt.Errorf("creating vec0 table: %w", err)
	}
	return nil
}

// EnsureCollection creates the collection tables if they are missing.
func (d *Driver) EnsureCollection(ctx context.Context) error {
	return d.createTables(ctx)
}

// CreateCollection creates the collection tables.
func (d *Driver) CreateCollection(ctx context.Context) error {
	exists, err := d.tablesExist(ctx)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", vector.ErrCollectionExists, d.collection)
	}
	return d.createTables(ctx)
}

// DropCollection drops both collection tables.
func (d *Driver) DropCollection(ctx context.Context) error {
	for _, table := range []string{d.vecTable, d.docTable} {
		if _, err := d.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("dropping %s: %w", table, err)
		}
	}
	d.logger.Info("dropped sqlite-vec collection", "collection", d.collection)
	return nil
}

// CollectionInfo reports the document count of the collection.
func (d *Driver) CollectionInfo(ctx context.Context) (vector.CollectionInfo, error) {
	info := vector.CollectionInfo{
		Name:       d.collection,
		VectorSize: uint64(d.dimensions),
		Distance:   "L2",
	}

	exists, err := d.tablesExist(ctx)
	if err != nil {
		return info, err
	}
	if !exists {
		return info, fmt.Errorf("%w: collection %s", vector.ErrNotFound, d.collection)
	}

	var count uint64
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+d.docTable).Scan(&count); err != nil {
		return info, fmt.Errorf("counting documents: %w", err)
	}
	info.PointsCount = count
	info.Status = "green"
	return info, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// deserializeFloat32 converts a little-endian byte slice back to a float32 slice.
func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// Add stores documents with their embeddings.
// If a document with the same ID already exists, it is updated.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		if uint(len(doc.Embedding)) != d.dimensions {
			return fmt.Errorf("%w: doc %s has %d, collection expects %d",
				vector.ErrDimensionMismatch, doc.ID, len(doc.Embedding), d.dimensions)
		}

		embBlob := serializeFloat32(doc.Embedding)
		payload, err := json.Marshal(nonNil(doc.Payload))
		if err != nil {
			return fmt.Errorf("encoding payload for doc %s: %w", doc.ID, err)
		}

		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT rowid FROM %s WHERE doc_id = ?`, d.docTable), doc.ID,
		).Scan(&existingRowID)

		switch {
		case err == nil:
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`UPDATE %s SET text = ?, payload = ? WHERE rowid = ?`, d.docTable),
				doc.Text, string(payload), existingRowID,
			); err != nil {
				return fmt.Errorf("updating document %s: %w", doc.ID, err)
			}

			// vec0 does not support UPDATE
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, d.vecTable), existingRowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for doc %s: %w", doc.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s(rowid, embedding) VALUES (?, ?)`, d.vecTable),
				existingRowID, embBlob,
			); err != nil {
				return fmt.Errorf("re-inserting embedding for doc %s: %w", doc.ID, err)
			}
		case errors.Is(err, sql.ErrNoRows):
			result, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s(doc_id, text, payload) VALUES (?, ?, ?)`, d.docTable),
				doc.ID, doc.Text, string(payload),
			)
			if err != nil {
				return fmt.Errorf("inserting document %s: %w", doc.ID, err)
			}

			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for doc %s: %w", doc.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s(rowid, embedding) VALUES (?, ?)`, d.vecTable),
				rowID, embBlob,
			); err != nil {
				return fmt.Errorf("inserting embedding for doc %s: %w", doc.ID, err)
			}
		default:
			return fmt.Errorf("checking for existing document %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("added documents to sqlite-vec", "count", len(docs))

	return nil
}

// Query finds the most similar documents to the given embedding. The score is
// 1/(1+distance); the score threshold is applied after the KNN lookup.
func (d *Driver) Query(ctx context.Context, embedding []float32, opts vector.QueryOptions) ([]vector.QueryResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}

	query, args := d.knnQuery(embedding, topK)
	if len(opts.Filter) > 0 {
		query, args = d.filteredQuery(embedding, topK, opts.Filter)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	results := []vector.QueryResult{}
	for rows.Next() {
		var docID, text, payload string
		var distance float64
		if err := rows.Scan(&docID, &text, &payload, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}

		results = append(results, vector.QueryResult{
			Document: vector.Document{
				ID:      docID,
				Text:    text,
				Payload: decodePayload(payload),
			},
			Score: float32(1.0 / (1.0 + distance)),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	results = vector.AboveThreshold(results, opts.ScoreThreshold)

	d.logger.Debug("queried sqlite-vec", "results", len(results))

	return results, nil
}

func (d *Driver) knnQuery(embedding []float32, topK int) (string, []any) {
	return fmt.Sprintf(`
		SELECT
			d.doc_id,
			d.text,
			d.payload,
			ve.distance
		FROM %s ve
		INNER JOIN %s d ON d.rowid = ve.rowid
		WHERE ve.embedding MATCH ?
			AND ve.k = ?
		ORDER BY ve.distance
	`, d.vecTable, d.docTable), []any{serializeFloat32(embedding), topK}
}

// filteredQuery scans the documents matching filter instead of running a
// KNN search, so the payload filter applies before the limit.
func (d *Driver) filteredQuery(embedding []float32, topK int, filter map[string]string) (string, []any) {
	args := []any{serializeFloat32(embedding)}
	conds := make([]string, 0, len(filter))
	for _, k := range vector.FilterKeys(filter) {
		conds = append(conds, "json_extract(d.payload, ?) = ?")
		args = append(args, jsonPath(k), filter[k])
	}
	args = append(args, topK)

	return fmt.Sprintf(`
		SELECT
			d.doc_id,
			d.text,
			d.payload,
			vec_distance_l2(ve.embedding, ?) AS distance
		FROM %s ve
		INNER JOIN %s d ON d.rowid = ve.rowid
		WHERE %s
		ORDER BY distance
		LIMIT ?
	`, d.vecTable, d.docTable, strings.Join(conds, " AND ")), args
}

func jsonPath(key string) string {
	return `$."` + strings.ReplaceAll(key, `"`, `\"`) + `"`
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	inClause, args := placeholders(ids)
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT d.doc_id, d.text, d.payload, d.rowid
		FROM %s d
		WHERE d.doc_id IN (%s)
	`, d.docTable, inClause), args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	// Collect rows before issuing more queries on the single connection.
	type docRow struct {
		doc   vector.Document
		rowID int64
	}
	var docRows []docRow

	for rows.Next() {
		var dr docRow
		var payload string
		if err := rows.Scan(&dr.doc.ID, &dr.doc.Text, &payload, &dr.rowID); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		dr.doc.Payload = decodePayload(payload)
		docRows = append(docRows, dr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	rows.Close()

	docs := make([]vector.Document, 0, len(docRows))
	for _, dr := range docRows {
		var embBlob []byte
		err := d.db.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT embedding FROM %s WHERE rowid = ?`, d.vecTable), dr.rowID,
		).Scan(&embBlob)
		if err == nil && len(embBlob) > 0 {
			dr.doc.Embedding, _ = deserializeFloat32(embBlob)
		}
		docs = append(docs, dr.doc)
	}

	return docs, nil
}

// Delete removes documents by their IDs. Unknown ids are ignored.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	inClause, args := placeholders(ids)

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE rowid IN (SELECT rowid FROM %s WHERE doc_id IN (%s))`,
		d.vecTable, d.docTable, inClause,
	), args...); err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE doc_id IN (%s)`, d.docTable, inClause,
	), args...); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted documents from sqlite-vec", "count", len(ids))

	return nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return d.db.Close()
}

func placeholders(ids []string) (string, []any) {
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	return strings.Join(marks, ","), args
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func decodePayload(raw string) map[string]any {
	payload := map[string]any{}
	if raw == "" {
		return payload
	}
	_ = json.Unmarshal([]byte(raw), &payload)
	return payload
}
