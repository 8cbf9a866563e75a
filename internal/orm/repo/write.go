package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/curiosum-dev/contexted/internal/orm/changeset"
	"github.com/curiosum-dev/contexted/internal/orm/schema"
)

// Insert writes the changeset as a new record and returns the stored row.
// An invalid changeset is returned as *changeset.Error without touching
// the database.
func (r *Repo) Insert(ctx context.Context, resource string, cs *changeset.Changeset) (Record, error) {
	s, err := r.Schema(resource)
	if err != nil {
		return nil, err
	}
	if err := cs.Err(); err != nil {
		return nil, err
	}

	record := cs.Apply()
	if _, ok := record[s.PrimaryKey]; !ok && isUUIDKey(s) {
		record[s.PrimaryKey] = r.newID()
	}

	columns := sortedColumns(record)
	placeholders := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, col := range columns {
		placeholders[i] = r.dialect.Placeholder(i + 1)
		args[i] = record[col]
	}

	var statement string
	if len(columns) == 0 {
		statement = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING *", s.TableName)
	} else {
		statement = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
			s.TableName, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	}

	rows, err := r.fetch(ctx, statement, args)
	if err != nil {
		return nil, fmt.Errorf("failed to insert %s: %w", resource, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to insert %s: no row returned", resource)
	}
	return rows[0], nil
}

// MustInsert is Insert wrapping changeset errors with ErrInvalidChangeset
func (r *Repo) MustInsert(ctx context.Context, resource string, cs *changeset.Changeset) (Record, error) {
	record, err := r.Insert(ctx, resource, cs)
	return record, strict(err)
}

// Update writes the changes of cs to the record identified by the primary
// key in cs.Data. A changeset without changes returns the record unchanged.
func (r *Repo) Update(ctx context.Context, resource string, cs *changeset.Changeset) (Record, error) {
	s, err := r.Schema(resource)
	if err != nil {
		return nil, err
	}
	if err := cs.Err(); err != nil {
		return nil, err
	}

	id, ok := cs.Data[s.PrimaryKey]
	if !ok || id == nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrMissingPrimaryKey, resource, s.PrimaryKey)
	}
	if len(cs.Changes) == 0 {
		return cs.Apply(), nil
	}

	columns := sortedColumns(cs.Changes)
	assignments := make([]string, len(columns))
	args := make([]interface{}, 0, len(columns)+1)
	for i, col := range columns {
		assignments[i] = fmt.Sprintf("%s = %s", col, r.dialect.Placeholder(i+1))
		args = append(args, cs.Changes[col])
	}
	args = append(args, id)

	statement := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s RETURNING *",
		s.TableName, strings.Join(assignments, ", "), s.PrimaryKey, r.dialect.Placeholder(len(args)))

	rows, err := r.fetch(ctx, statement, args)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", resource, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, resource, id)
	}
	return rows[0], nil
}

// MustUpdate is Update wrapping changeset errors with ErrInvalidChangeset
func (r *Repo) MustUpdate(ctx context.Context, resource string, cs *changeset.Changeset) (Record, error) {
	record, err := r.Update(ctx, resource, cs)
	return record, strict(err)
}

// Delete removes the record identified by the primary key in cs.Data and
// returns the deleted row
func (r *Repo) Delete(ctx context.Context, resource string, cs *changeset.Changeset) (Record, error) {
	s, err := r.Schema(resource)
	if err != nil {
		return nil, err
	}
	if err := cs.Err(); err != nil {
		return nil, err
	}

	id, ok := cs.Data[s.PrimaryKey]
	if !ok || id == nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrMissingPrimaryKey, resource, s.PrimaryKey)
	}

	statement := fmt.Sprintf("DELETE FROM %s WHERE %s = %s RETURNING *",
		s.TableName, s.PrimaryKey, r.dialect.Placeholder(1))

	rows, err := r.fetch(ctx, statement, []interface{}{id})
	if err != nil {
		return nil, fmt.Errorf("failed to delete %s: %w", resource, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, resource, id)
	}
	return rows[0], nil
}

// MustDelete is Delete wrapping changeset errors with ErrInvalidChangeset
func (r *Repo) MustDelete(ctx context.Context, resource string, cs *changeset.Changeset) (Record, error) {
	record, err := r.Delete(ctx, resource, cs)
	return record, strict(err)
}

func strict(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*changeset.Error); ok {
		return fmt.Errorf("%w: %w", ErrInvalidChangeset, err)
	}
	return err
}

func isUUIDKey(s *schema.ResourceSchema) bool {
	field, ok := s.Fields[s.PrimaryKey]
	return ok && field.Type.BaseType == schema.TypeUUID
}

func sortedColumns(values map[string]interface{}) []string {
	columns := make([]string, 0, len(values))
	for col := range values {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}
