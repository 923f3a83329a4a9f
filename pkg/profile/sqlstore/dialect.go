package sqlstore

import (
	"errors"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// flavor captures what differs between the supported databases.
type flavor struct {
	// sqlDriver is the database/sql driver name.
	sqlDriver string

	// dialect is the ent dialect used to build queries.
	dialect string

	idType       string
	nameType     string
	textType     string
	intType      string
	floatType    string
	timeType     string
	tableOptions string

	tablesQuery string
	truncate    string

	// returning is set when inserts report the id through RETURNING.
	returning bool
}

var flavors = map[string]flavor{
	DriverMySQL: {
		sqlDriver:    "mysql",
		dialect:      dialect.MySQL,
		idType:       "BIGINT AUTO_INCREMENT PRIMARY KEY",
		nameType:     "VARCHAR(255) NOT NULL UNIQUE",
		textType:     "TEXT NOT NULL",
		intType:      "INT NOT NULL DEFAULT 50",
		floatType:    "DOUBLE NOT NULL DEFAULT 0",
		timeType:     "TIMESTAMP",
		tableOptions: " DEFAULT CHARSET=utf8mb4",
		tablesQuery:  "SHOW TABLES",
		truncate:     "TRUNCATE TABLE %s",
	},
	DriverPostgres: {
		sqlDriver:   "pgx",
		dialect:     dialect.Postgres,
		idType:      "BIGSERIAL PRIMARY KEY",
		nameType:    "VARCHAR(255) NOT NULL UNIQUE",
		textType:    "TEXT NOT NULL",
		intType:     "INTEGER NOT NULL DEFAULT 50",
		floatType:   "DOUBLE PRECISION NOT NULL DEFAULT 0",
		timeType:    "TIMESTAMPTZ",
		tablesQuery: "SELECT tablename FROM pg_catalog.pg_tables WHERE schemaname = current_schema() ORDER BY tablename",
		truncate:    "TRUNCATE TABLE %s",
		returning:   true,
	},
	DriverSQLite: {
		sqlDriver:   "sqlite3",
		dialect:     dialect.SQLite,
		idType:      "INTEGER PRIMARY KEY AUTOINCREMENT",
		nameType:    "TEXT NOT NULL UNIQUE",
		textType:    "TEXT NOT NULL DEFAULT ''",
		intType:     "INTEGER NOT NULL DEFAULT 50",
		floatType:   "REAL NOT NULL DEFAULT 0",
		timeType:    "TIMESTAMP",
		tablesQuery: "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name",
		truncate:    "DELETE FROM %s",
	},
}

func lookupFlavor(driver string) (flavor, error) {
	switch strings.ToLower(driver) {
	case "mysql", "":
		return flavors[DriverMySQL], nil
	case "postgres", "postgresql", "pgx":
		return flavors[DriverPostgres], nil
	case "sqlite", "sqlite3":
		return flavors[DriverSQLite], nil
	default:
		return flavor{}, fmt.Errorf("unsupported profile driver: %s", driver)
	}
}

// builder returns an ent query builder for the flavor's dialect.
func (f flavor) builder() *entsql.DialectBuilder {
	return entsql.Dialect(f.dialect)
}

// quote renders name as a quoted identifier.
func (f flavor) quote(name string) string {
	return f.builder().String(func(b *entsql.Builder) {
		b.Ident(name)
	})
}

// createTable renders the DDL for the profile table.
func (f flavor) createTable(table string) string {
	defs := make([]string, 0, len(columns))
	for _, c := range columns {
		var typ string
		switch c.kind {
		case kindID:
			typ = f.idType
		case kindName:
			typ = f.nameType
		case kindText:
			typ = f.textType
		case kindInt:
			typ = f.intType
		case kindFloat:
			typ = f.floatType
		case kindCreated:
			typ = f.timeType + " NOT NULL DEFAULT CURRENT_TIMESTAMP"
		case kindTime:
			typ = f.timeType + " NULL"
		}
		defs = append(defs, "  "+f.quote(c.name)+" "+typ)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)%s",
		f.quote(table), strings.Join(defs, ",\n"), f.tableOptions)
}

// dsn adjusts a connection string for the flavor. MySQL needs parseTime so
// TIMESTAMP columns scan into time.Time.
func (f flavor) dsn(raw string) (string, error) {
	if f.dialect != dialect.MySQL {
		return raw, nil
	}
	cfg, err := mysql.ParseDSN(raw)
	if err != nil {
		return "", fmt.Errorf("parsing mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// isDuplicate reports whether err is a unique constraint violation.
func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
