package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/curiosum-dev/contexted/internal/orm/query"
	"github.com/curiosum-dev/contexted/internal/orm/schema"
)

// Preload loads direct associations of records in one query per
// association. belongs_to and has_one associations are stored as a Record
// (or nil), has_many associations as a []Record that is empty, never nil,
// when nothing is related.
func (r *Repo) Preload(ctx context.Context, resource string, records []Record, associations ...string) error {
	s, err := r.Schema(resource)
	if err != nil {
		return err
	}

	for _, name := range associations {
		rel, ok := s.Relationships[name]
		if !ok {
			return fmt.Errorf("%w: %s on resource %s", ErrUnknownAssociation, name, resource)
		}
		target, err := r.Schema(rel.TargetResource)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			continue
		}

		if err := r.preloadOne(ctx, s, target, rel, records); err != nil {
			return fmt.Errorf("failed to preload %s.%s: %w", resource, name, err)
		}
	}
	return nil
}

func (r *Repo) preloadOne(
	ctx context.Context,
	owner, target *schema.ResourceSchema,
	rel *schema.Relationship,
	records []Record,
) error {
	// ownerKey is read from each record, matchColumn is compared on the target
	ownerKey, matchColumn := owner.PrimaryKey, rel.ForeignKey
	if rel.Type == schema.RelationshipBelongsTo {
		ownerKey, matchColumn = rel.ForeignKey, target.PrimaryKey
	}

	keys := collectKeys(records, ownerKey)
	grouped := make(map[string][]Record)

	if len(keys) > 0 {
		related, err := r.fetchIn(ctx, target.TableName, matchColumn, keys)
		if err != nil {
			return err
		}
		for _, rec := range related {
			k := keyOf(rec[matchColumn])
			grouped[k] = append(grouped[k], rec)
		}
	}

	for _, record := range records {
		matches := grouped[keyOf(record[ownerKey])]
		if record[ownerKey] == nil {
			matches = nil
		}

		switch rel.Type {
		case schema.RelationshipHasMany:
			list := make([]Record, 0, len(matches))
			record[rel.FieldName] = append(list, matches...)
		default:
			if len(matches) == 0 {
				record[rel.FieldName] = nil
			} else {
				record[rel.FieldName] = matches[0]
			}
		}
	}
	return nil
}

// fetchIn selects the rows of table whose column is one of keys. Postgres
// binds the keys as a single array parameter.
func (r *Repo) fetchIn(ctx context.Context, table, column string, keys []interface{}) ([]Record, error) {
	if r.dialect == query.Postgres {
		statement := fmt.Sprintf("SELECT * FROM %s WHERE %s = ANY($1)",
			pq.QuoteIdentifier(table), pq.QuoteIdentifier(column))
		return r.fetch(ctx, statement, []interface{}{pq.Array(keys)})
	}

	placeholders := make([]string, len(keys))
	for i := range keys {
		placeholders[i] = r.dialect.Placeholder(i + 1)
	}
	statement := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s)",
		table, column, strings.Join(placeholders, ", "))
	return r.fetch(ctx, statement, keys)
}

// collectKeys returns the distinct non-nil values of column
func collectKeys(records []Record, column string) []interface{} {
	seen := make(map[string]bool)
	keys := make([]interface{}, 0, len(records))
	for _, record := range records {
		v := record[column]
		if v == nil {
			continue
		}
		k := keyOf(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, v)
	}
	return keys
}

// keyOf normalizes a key value so int and int64 ids from different drivers
// group together
func keyOf(v interface{}) string {
	return fmt.Sprint(v)
}
