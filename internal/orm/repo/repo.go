// Package repo is the database collaborator behind generated CRUD code. It
// runs queries compiled by package query and writes changesets, returning
// records as plain maps.
package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/curiosum-dev/contexted/internal/orm/query"
	"github.com/curiosum-dev/contexted/internal/orm/schema"
)

// Record is a row keyed by column name
type Record = map[string]interface{}

// Querier is satisfied by *sql.DB and *sql.Tx
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Repo runs queries and writes against one database
type Repo struct {
	db      *sql.DB
	q       Querier
	schemas map[string]*schema.ResourceSchema
	dialect query.Dialect
	logger  *zap.Logger
	newID   func() string
}

// Option configures a Repo
type Option func(*Repo)

// WithLogger sets the logger used for statement tracing
func WithLogger(logger *zap.Logger) Option {
	return func(r *Repo) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithIDGenerator overrides the generator for uuid primary keys
func WithIDGenerator(fn func() string) Option {
	return func(r *Repo) {
		r.newID = fn
	}
}

// New creates a repository over db
func New(db *sql.DB, schemas map[string]*schema.ResourceSchema, dialect query.Dialect, opts ...Option) *Repo {
	r := &Repo{
		db:      db,
		q:       db,
		schemas: schemas,
		dialect: dialect,
		logger:  zap.NewNop(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dialect returns the bind parameter style of the repository
func (r *Repo) Dialect() query.Dialect {
	return r.dialect
}

// Schema returns the schema of a resource
func (r *Repo) Schema(resource string) (*schema.ResourceSchema, error) {
	s, ok := r.schemas[resource]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}
	return s, nil
}

// Query starts a query builder for resource in the repository's dialect
func (r *Repo) Query(resource string) (*query.QueryBuilder, error) {
	s, err := r.Schema(resource)
	if err != nil {
		return nil, err
	}
	return query.NewQueryBuilder(s, r.schemas).WithDialect(r.dialect), nil
}

// Filter starts a query builder for resource with filter applied
func (r *Repo) Filter(resource string, filter query.Filter) (*query.QueryBuilder, error) {
	qb, err := r.Query(resource)
	if err != nil {
		return nil, err
	}
	if err := qb.Where(filter); err != nil {
		return nil, err
	}
	return qb, nil
}

// Transaction runs fn with a repository bound to a transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (r *Repo) Transaction(ctx context.Context, fn func(tx *Repo) error) error {
	if r.db == nil {
		// already inside a transaction
		return fn(r)
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	txRepo := *r
	txRepo.db = nil
	txRepo.q = sqlTx

	if err := fn(&txRepo); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *Repo) trace(statement string, args []interface{}) {
	r.logger.Debug("sql", zap.String("statement", statement), zap.Int("args", len(args)))
}
