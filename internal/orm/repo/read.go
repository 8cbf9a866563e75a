package repo

import (
	"context"
	"fmt"

	"github.com/curiosum-dev/contexted/internal/orm/query"
)

// All returns every record matched by qb
func (r *Repo) All(ctx context.Context, qb *query.QueryBuilder) ([]Record, error) {
	statement, args, err := qb.WithDialect(r.dialect).ToSQL()
	if err != nil {
		return nil, err
	}
	return r.fetch(ctx, statement, args)
}

// Get fetches a record by primary key. A missing record is not an error:
// Get returns nil, nil.
func (r *Repo) Get(ctx context.Context, resource string, id interface{}) (Record, error) {
	qb, err := r.Query(resource)
	if err != nil {
		return nil, err
	}
	if err := qb.Where(query.Filter{qb.Resource().PrimaryKey: id}); err != nil {
		return nil, err
	}
	return r.One(ctx, qb)
}

// MustGet is Get failing with ErrNotFound when the record is missing
func (r *Repo) MustGet(ctx context.Context, resource string, id interface{}) (Record, error) {
	record, err := r.Get(ctx, resource, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, resource, id)
	}
	return record, nil
}

// One returns the single record matched by qb, nil when nothing matches,
// and ErrMultipleResults when more than one row does. At most two rows are
// fetched; qb itself is left without a limit.
func (r *Repo) One(ctx context.Context, qb *query.QueryBuilder) (Record, error) {
	records, err := r.All(ctx, qb.Clone().Limit(2))
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		return records[0], nil
	default:
		return nil, fmt.Errorf("%w: more than one %s", ErrMultipleResults, qb.Resource().Name)
	}
}

// MustOne is One failing with ErrNotFound when nothing matches
func (r *Repo) MustOne(ctx context.Context, qb *query.QueryBuilder) (Record, error) {
	record, err := r.One(ctx, qb)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, qb.Resource().Name)
	}
	return record, nil
}

// Count returns the number of distinct base records matched by qb
func (r *Repo) Count(ctx context.Context, qb *query.QueryBuilder) (int64, error) {
	statement, args, err := qb.WithDialect(r.dialect).CountSQL()
	if err != nil {
		return 0, err
	}
	r.trace(statement, args)

	var count int64
	if err := r.q.QueryRowContext(ctx, statement, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", ConvertDBError(err))
	}
	return count, nil
}

func (r *Repo) fetch(ctx context.Context, statement string, args []interface{}) ([]Record, error) {
	r.trace(statement, args)

	rows, err := r.q.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", ConvertDBError(err))
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan query results: %w", ConvertDBError(err))
	}
	return records, nil
}
