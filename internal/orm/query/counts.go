package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/curiosum-dev/contexted/internal/orm/schema"
)

// CountSuffix is appended to an association name to form its count field
const CountSuffix = "_count"

// AssociationCount selects the number of rows related to each base row
// through one direct association
type AssociationCount struct {
	Association string
	Field       string
	Table       string

	// CountedColumn on the related table equals BaseColumn on the base table
	CountedColumn string
	BaseColumn    string
}

func (c *AssociationCount) selectExpr(baseAlias string) string {
	alias := "cnt_" + c.Association
	return fmt.Sprintf("(SELECT COUNT(*) FROM %s AS %s WHERE %s.%s = %s.%s) AS %s",
		c.Table, alias, alias, c.CountedColumn, baseAlias, c.BaseColumn, c.Field)
}

// WithAssociationCounts adds a "<association>_count" column for each named
// association. Only associations declared directly on the base resource are
// supported; a dotted path or an association that exists only further down
// the schema graph fails with ErrIndirectAssociation. Counts come from a
// correlated sub-select, so rows without related rows report zero.
func (qb *QueryBuilder) WithAssociationCounts(associations ...string) error {
	for _, name := range associations {
		count, err := qb.associationCount(name)
		if err != nil {
			return err
		}
		if qb.hasCount(count.Field) {
			continue
		}
		qb.counts = append(qb.counts, count)
	}
	return nil
}

// Counts returns the association counts in the order they were added
func (qb *QueryBuilder) Counts() []*AssociationCount {
	return qb.counts
}

func (qb *QueryBuilder) hasCount(field string) bool {
	for _, c := range qb.counts {
		if c.Field == field {
			return true
		}
	}
	return false
}

func (qb *QueryBuilder) associationCount(name string) (*AssociationCount, error) {
	if strings.Contains(name, ".") {
		return nil, fmt.Errorf("%w: %s on resource %s", ErrIndirectAssociation, name, qb.resource.Name)
	}

	rel, ok := qb.resource.Relationships[name]
	if !ok {
		if owner := qb.findIndirect(name); owner != "" {
			return nil, fmt.Errorf("%w: %s belongs to %s, not %s",
				ErrIndirectAssociation, name, owner, qb.resource.Name)
		}
		return nil, fmt.Errorf("%w: %s on resource %s", ErrUnknownAssociation, name, qb.resource.Name)
	}

	target, ok := qb.schemas[rel.TargetResource]
	if !ok {
		return nil, fmt.Errorf("%w: %s (via %s.%s)", ErrUnknownResource, rel.TargetResource, qb.resource.Name, name)
	}

	count := &AssociationCount{
		Association:   name,
		Field:         name + CountSuffix,
		Table:         target.TableName,
		CountedColumn: rel.ForeignKey,
		BaseColumn:    qb.resource.PrimaryKey,
	}
	if rel.Type == schema.RelationshipBelongsTo {
		count.CountedColumn = target.PrimaryKey
		count.BaseColumn = rel.ForeignKey
	}
	return count, nil
}

// findIndirect returns the name of a resource reachable from the base that
// declares the association, or "" when none does
func (qb *QueryBuilder) findIndirect(name string) string {
	visited := map[string]bool{qb.resource.Name: true}
	queue := []*schema.ResourceSchema{qb.resource}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, relName := range current.RelationshipNames() {
			target, ok := qb.schemas[current.Relationships[relName].TargetResource]
			if !ok || visited[target.Name] {
				continue
			}
			visited[target.Name] = true
			if target.HasRelationship(name) {
				return target.Name
			}
			queue = append(queue, target)
		}
	}
	return ""
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
