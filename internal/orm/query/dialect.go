package query

import "fmt"

// Dialect controls how bind parameters are rendered
type Dialect int

const (
	// Postgres renders numbered parameters ($1, $2, ...)
	Postgres Dialect = iota
	// SQLite renders positional parameters (?)
	SQLite
)

// String returns the dialect name
func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// Placeholder returns the bind parameter for the n-th (1-based) argument
func (d Dialect) Placeholder(n int) string {
	if d == SQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// ParseDialect converts a driver or dialect name to a Dialect
func ParseDialect(name string) (Dialect, error) {
	switch name {
	case "postgres", "postgresql", "pgx", "pq":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return 0, fmt.Errorf("unknown dialect: %s", name)
	}
}
