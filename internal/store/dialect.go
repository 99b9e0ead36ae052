package store

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/termmeta/pkg/types"
)

// Dialect renders the statements that differ between SQLite and PostgreSQL.
// Every query in this package is written with "?" placeholders and passed
// through Rebind before execution.
type Dialect interface {
	Name() string
	DriverName() string

	// Rebind rewrites "?" placeholders into the dialect's bind syntax.
	Rebind(query string) string

	// SerialPK renders an auto-increment primary key column definition.
	SerialPK(column string) string

	// BigInt is the column type for object ids.
	BigInt() string

	// PrefixIndex renders an index expression over the first n characters
	// of column.
	PrefixIndex(column string, n int) string

	// TableExistsQuery returns a query taking the table name as its single
	// argument and returning one row when the table exists.
	TableExistsQuery() string
}

// dialectFor returns the dialect for a backend name.
func dialectFor(backend string) (Dialect, error) {
	switch backend {
	case types.BackendSQLite:
		return sqliteDialect{}, nil
	case types.BackendPostgres:
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrBackendUnknown, backend)
	}
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string       { return types.BackendSQLite }
func (sqliteDialect) DriverName() string { return "sqlite" }

func (sqliteDialect) Rebind(query string) string { return query }

func (sqliteDialect) SerialPK(column string) string {
	return column + " INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (sqliteDialect) BigInt() string { return "INTEGER" }

func (sqliteDialect) PrefixIndex(column string, n int) string {
	return fmt.Sprintf("substr(%s, 1, %d)", column, n)
}

func (sqliteDialect) TableExistsQuery() string {
	return "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?"
}

type postgresDialect struct{}

func (postgresDialect) Name() string       { return types.BackendPostgres }
func (postgresDialect) DriverName() string { return "pgx" }

// Rebind numbers placeholders as $1, $2, ... Placeholders inside single
// quoted literals are left alone. A doubled '' escape toggles twice and so
// never leaves the literal.
func (postgresDialect) Rebind(query string) string {
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			sb.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func (postgresDialect) SerialPK(column string) string {
	return column + " BIGSERIAL PRIMARY KEY"
}

func (postgresDialect) BigInt() string { return "BIGINT" }

func (postgresDialect) PrefixIndex(column string, n int) string {
	return fmt.Sprintf("left(%s, %d)", column, n)
}

func (postgresDialect) TableExistsQuery() string {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?"
}
