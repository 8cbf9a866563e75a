// Package query compiles nested filter maps into SQL for the ORM layer.
//
// A filter maps field names to scalar values (or nil) and association names
// to nested filters of the same shape. Every association key becomes one
// LEFT JOIN aliased by its association path joined with underscores, and
// every leaf becomes one equality or IS NULL condition scoped to the alias
// of the association it sits under. Conditions are always AND-ed together.
package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/curiosum-dev/contexted/internal/orm/schema"
)

var (
	// ErrUnknownField is returned when a filter or ordering names a missing field
	ErrUnknownField = errors.New("unknown field")

	// ErrUnknownAssociation is returned when a name is not an association of the resource
	ErrUnknownAssociation = errors.New("unknown association")

	// ErrUnknownResource is returned when an association targets a resource missing from the schema set
	ErrUnknownResource = errors.New("unknown resource")

	// ErrInvalidFilter is returned when a filter value does not match its key's kind
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrAliasCollision is returned when two association paths produce the same join alias
	ErrAliasCollision = errors.New("join alias collision")

	// ErrDistinctOrder is returned when a query that must select DISTINCT
	// base rows is ordered by a column of a joined association
	ErrDistinctOrder = errors.New("cannot order distinct rows by a joined column")

	// ErrIndirectAssociation is returned when association counts are requested
	// for an association that is not declared directly on the base resource
	ErrIndirectAssociation = errors.New("association counts only support direct associations")
)

// Filter is a nested exact-match specification
type Filter map[string]interface{}

// JoinType represents the type of SQL join
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
)

// String returns the string representation of the join type
func (j JoinType) String() string {
	switch j {
	case LeftJoin:
		return "LEFT"
	default:
		return "INNER"
	}
}

// Join represents a SQL join clause
type Join struct {
	Type      JoinType
	Table     string
	Alias     string
	Condition string

	// Path is the association path that produced the join
	Path []string
	// ToMany is set for has_many joins, which can repeat base rows
	ToMany bool

	parentAlias  string
	column       string
	parentColumn string
}

func (j *Join) on() string {
	return fmt.Sprintf("%s.%s = %s.%s", j.Alias, j.column, j.parentAlias, j.parentColumn)
}

// orderTerm is one ORDER BY entry. Count fields carry no alias.
type orderTerm struct {
	alias     string
	field     string
	direction string
}

func (o orderTerm) column() string {
	if o.alias == "" {
		return o.field
	}
	return o.alias + "." + o.field
}

// QueryBuilder builds a SELECT over a base resource
type QueryBuilder struct {
	resource *schema.ResourceSchema
	schemas  map[string]*schema.ResourceSchema
	dialect  Dialect

	// baseAlias names the base table; it moves off the table name when an
	// association path produces the same alias
	baseAlias string

	joins      []*Join
	aliases    map[string]*Join
	conditions []*Condition
	counts     []*AssociationCount
	orderBy    []orderTerm
	limit      *int
	offset     *int

	// first error raised by a chained modifier, reported by ToSQL
	err error
}

// NewQueryBuilder creates a new query builder for the given resource
func NewQueryBuilder(resource *schema.ResourceSchema, schemas map[string]*schema.ResourceSchema) *QueryBuilder {
	return &QueryBuilder{
		resource:   resource,
		schemas:    schemas,
		dialect:    Postgres,
		baseAlias:  resource.TableName,
		joins:      make([]*Join, 0),
		aliases:    make(map[string]*Join),
		conditions: make([]*Condition, 0),
		counts:     make([]*AssociationCount, 0),
		orderBy:    make([]orderTerm, 0),
	}
}

// Build creates a query builder for resource with filter applied
func Build(resource *schema.ResourceSchema, schemas map[string]*schema.ResourceSchema, filter Filter) (*QueryBuilder, error) {
	qb := NewQueryBuilder(resource, schemas)
	if err := qb.Where(filter); err != nil {
		return nil, err
	}
	return qb, nil
}

// WithDialect sets the bind parameter style
func (qb *QueryBuilder) WithDialect(dialect Dialect) *QueryBuilder {
	qb.dialect = dialect
	return qb
}

// Resource returns the base resource
func (qb *QueryBuilder) Resource() *schema.ResourceSchema {
	return qb.resource
}

// Dialect returns the bind parameter style
func (qb *QueryBuilder) Dialect() Dialect {
	return qb.dialect
}

// Joins returns the joins in the order they were added
func (qb *QueryBuilder) Joins() []*Join {
	return qb.joins
}

// Conditions returns the leaf conditions in the order they were added
func (qb *QueryBuilder) Conditions() []*Condition {
	return qb.conditions
}

// BaseAlias is the name the base table is referenced by
func (qb *QueryBuilder) BaseAlias() string {
	return qb.baseAlias
}

// Where applies a filter. Keys at each level are visited in sorted order so
// the generated SQL is stable. Calling Where again reuses joins for paths
// that were already traversed. A failing filter leaves the builder as it was.
func (qb *QueryBuilder) Where(filter Filter) error {
	if len(filter) == 0 {
		return nil
	}
	next := qb.Clone()
	if err := next.apply(next.resource, "", nil, filter); err != nil {
		return err
	}
	*qb = *next
	return nil
}

// apply walks one level of a filter. An empty alias stands for the base
// table, whose alias may change while the walk is in progress.
func (qb *QueryBuilder) apply(resource *schema.ResourceSchema, alias string, path []string, filter map[string]interface{}) error {
	for _, key := range sortedKeys(filter) {
		value := filter[key]

		if rel, ok := resource.Relationships[key]; ok {
			nested, ok := asFilter(value)
			if !ok {
				return fmt.Errorf("%w: association %s.%s needs a nested filter, got %T",
					ErrInvalidFilter, resource.Name, key, value)
			}

			target, ok := qb.schemas[rel.TargetResource]
			if !ok {
				return fmt.Errorf("%w: %s (via %s.%s)", ErrUnknownResource, rel.TargetResource, resource.Name, key)
			}

			childPath := make([]string, len(path), len(path)+1)
			copy(childPath, path)
			childPath = append(childPath, key)

			join, err := qb.join(resource, alias, rel, target, childPath)
			if err != nil {
				return err
			}
			if err := qb.apply(target, join.Alias, childPath, nested); err != nil {
				return err
			}
			continue
		}

		if !resource.HasField(key) && key != resource.PrimaryKey {
			return fmt.Errorf("%w: %s on resource %s", ErrUnknownField, key, resource.Name)
		}
		if _, nested := asFilter(value); nested {
			return fmt.Errorf("%w: field %s.%s cannot take a nested filter",
				ErrInvalidFilter, resource.Name, key)
		}

		cond := &Condition{Alias: qb.resolveAlias(alias), Field: key, Operator: OpEqual, Value: value}
		if value == nil {
			cond.Operator = OpIsNull
		}
		qb.conditions = append(qb.conditions, cond)
	}
	return nil
}

// join adds (or reuses) the LEFT JOIN for an association path
func (qb *QueryBuilder) join(
	parent *schema.ResourceSchema,
	parentAlias string,
	rel *schema.Relationship,
	target *schema.ResourceSchema,
	path []string,
) (*Join, error) {
	alias := strings.Join(path, "_")

	if existing, ok := qb.aliases[alias]; ok {
		if strings.Join(existing.Path, ".") != strings.Join(path, ".") {
			return nil, fmt.Errorf("%w: %s is produced by both %s and %s",
				ErrAliasCollision, alias, strings.Join(existing.Path, "."), strings.Join(path, "."))
		}
		return existing, nil
	}
	if alias == qb.baseAlias {
		qb.realias(alias)
	}

	join := &Join{
		Type:         LeftJoin,
		Table:        target.TableName,
		Alias:        alias,
		Path:         path,
		ToMany:       rel.Type == schema.RelationshipHasMany,
		parentAlias:  qb.resolveAlias(parentAlias),
		column:       rel.ForeignKey,
		parentColumn: parent.PrimaryKey,
	}
	if rel.Type == schema.RelationshipBelongsTo {
		join.column = target.PrimaryKey
		join.parentColumn = rel.ForeignKey
	}
	join.Condition = join.on()
	qb.joins = append(qb.joins, join)
	qb.aliases[alias] = join
	return join, nil
}

func (qb *QueryBuilder) resolveAlias(alias string) string {
	if alias == "" {
		return qb.baseAlias
	}
	return alias
}

// realias moves the base table off an alias claimed by an association path.
// Joins and conditions are copied before rewriting since clones share them.
func (qb *QueryBuilder) realias(taken string) {
	old := qb.baseAlias
	alias := "base_" + qb.resource.TableName
	for alias == taken || qb.aliases[alias] != nil {
		alias += "_"
	}
	qb.baseAlias = alias

	for i, cond := range qb.conditions {
		if cond.Alias == old {
			moved := *cond
			moved.Alias = alias
			qb.conditions[i] = &moved
		}
	}
	for i, join := range qb.joins {
		if join.parentAlias == old {
			moved := *join
			moved.parentAlias = alias
			moved.Condition = moved.on()
			qb.joins[i] = &moved
			qb.aliases[moved.Alias] = &moved
		}
	}
	for i := range qb.orderBy {
		if qb.orderBy[i].alias == old {
			qb.orderBy[i].alias = alias
		}
	}
}

// OrderBy adds an ORDER BY clause. Field is a base field, an alias-qualified
// field of a joined association ("subcategory.name"), or a count field.
func (qb *QueryBuilder) OrderBy(field string, direction string) *QueryBuilder {
	dir := strings.ToUpper(direction)
	if dir != "ASC" && dir != "DESC" {
		dir = "ASC"
	}

	term, err := qb.resolveColumn(field)
	if err != nil {
		qb.fail(err)
		return qb
	}
	term.direction = dir
	qb.orderBy = append(qb.orderBy, term)
	return qb
}

// OrderByAsc adds an ascending ORDER BY clause
func (qb *QueryBuilder) OrderByAsc(field string) *QueryBuilder {
	return qb.OrderBy(field, "ASC")
}

// OrderByDesc adds a descending ORDER BY clause
func (qb *QueryBuilder) OrderByDesc(field string) *QueryBuilder {
	return qb.OrderBy(field, "DESC")
}

// Limit sets the LIMIT clause
func (qb *QueryBuilder) Limit(n int) *QueryBuilder {
	qb.limit = &n
	return qb
}

// Offset sets the OFFSET clause
func (qb *QueryBuilder) Offset(n int) *QueryBuilder {
	qb.offset = &n
	return qb
}

// Err returns the first error raised by a chained modifier
func (qb *QueryBuilder) Err() error {
	return qb.err
}

func (qb *QueryBuilder) fail(err error) {
	if qb.err == nil {
		qb.err = err
	}
}

func (qb *QueryBuilder) resolveColumn(field string) (orderTerm, error) {
	if alias, name, ok := strings.Cut(field, "."); ok {
		join, exists := qb.aliases[alias]
		if !exists {
			if alias == qb.baseAlias {
				return qb.resolveColumn(name)
			}
			return orderTerm{}, fmt.Errorf("%w: no join aliased %s", ErrUnknownAssociation, alias)
		}
		target := qb.resourceForJoin(join)
		if target != nil && !target.HasField(name) && name != target.PrimaryKey {
			return orderTerm{}, fmt.Errorf("%w: %s on resource %s", ErrUnknownField, name, target.Name)
		}
		return orderTerm{alias: alias, field: name}, nil
	}

	for _, count := range qb.counts {
		if count.Field == field {
			return orderTerm{field: field}, nil
		}
	}

	if !qb.resource.HasField(field) && field != qb.resource.PrimaryKey {
		return orderTerm{}, fmt.Errorf("%w: %s on resource %s", ErrUnknownField, field, qb.resource.Name)
	}
	return orderTerm{alias: qb.baseAlias, field: field}, nil
}

// resourceForJoin walks a join's path from the base resource
func (qb *QueryBuilder) resourceForJoin(join *Join) *schema.ResourceSchema {
	current := qb.resource
	for _, step := range join.Path {
		rel, ok := current.Relationships[step]
		if !ok {
			return nil
		}
		current, ok = qb.schemas[rel.TargetResource]
		if !ok {
			return nil
		}
	}
	return current
}

// distinct reports whether a to-many join can duplicate base rows
func (qb *QueryBuilder) distinct() bool {
	for _, join := range qb.joins {
		if join.ToMany {
			return true
		}
	}
	return false
}

// ToSQL generates the SQL query and parameter bindings
func (qb *QueryBuilder) ToSQL() (string, []interface{}, error) {
	if qb.err != nil {
		return "", nil, qb.err
	}

	distinct := qb.distinct()
	if distinct {
		// DISTINCT needs every ORDER BY expression in the select list
		for _, term := range qb.orderBy {
			if term.alias != "" && term.alias != qb.baseAlias {
				return "", nil, fmt.Errorf("%w: %s", ErrDistinctOrder, term.column())
			}
		}
	}

	var sql strings.Builder
	args := make([]interface{}, 0)
	paramCounter := 1

	sql.WriteString("SELECT ")
	if distinct {
		sql.WriteString("DISTINCT ")
	}
	sql.WriteString(qb.BaseAlias())
	sql.WriteString(".*")
	for _, count := range qb.counts {
		sql.WriteString(", ")
		sql.WriteString(count.selectExpr(qb.BaseAlias()))
	}
	sql.WriteString(" FROM ")
	sql.WriteString(qb.from())

	if err := qb.writeFromTail(&sql, &paramCounter, &args); err != nil {
		return "", nil, err
	}

	for i, term := range qb.orderBy {
		if i == 0 {
			sql.WriteString(" ORDER BY ")
		} else {
			sql.WriteString(", ")
		}
		sql.WriteString(term.column())
		sql.WriteString(" ")
		sql.WriteString(term.direction)
	}

	if qb.limit != nil {
		sql.WriteString(fmt.Sprintf(" LIMIT %s", qb.dialect.Placeholder(paramCounter)))
		args = append(args, *qb.limit)
		paramCounter++
	}

	if qb.offset != nil {
		sql.WriteString(fmt.Sprintf(" OFFSET %s", qb.dialect.Placeholder(paramCounter)))
		args = append(args, *qb.offset)
		paramCounter++
	}

	return sql.String(), args, nil
}

// CountSQL generates a query counting the distinct base rows matched by the
// filter. Ordering, limit and offset are ignored.
func (qb *QueryBuilder) CountSQL() (string, []interface{}, error) {
	if qb.err != nil {
		return "", nil, qb.err
	}

	var sql strings.Builder
	args := make([]interface{}, 0)
	paramCounter := 1

	sql.WriteString(fmt.Sprintf("SELECT COUNT(DISTINCT %s.%s) FROM %s",
		qb.BaseAlias(), qb.resource.PrimaryKey, qb.from()))
	if err := qb.writeFromTail(&sql, &paramCounter, &args); err != nil {
		return "", nil, err
	}
	return sql.String(), args, nil
}

func (qb *QueryBuilder) from() string {
	if qb.baseAlias == qb.resource.TableName {
		return qb.resource.TableName
	}
	return qb.resource.TableName + " AS " + qb.baseAlias
}

// writeFromTail writes the JOIN and WHERE clauses
func (qb *QueryBuilder) writeFromTail(sql *strings.Builder, paramCounter *int, args *[]interface{}) error {
	for _, join := range qb.joins {
		sql.WriteString(fmt.Sprintf(" %s JOIN %s AS %s ON %s",
			join.Type.String(),
			join.Table,
			join.Alias,
			join.Condition,
		))
	}

	if len(qb.conditions) > 0 {
		sql.WriteString(" WHERE ")
		for i, cond := range qb.conditions {
			if i > 0 {
				sql.WriteString(" AND ")
			}
			condSQL, err := conditionToSQL(cond, qb.dialect, paramCounter, args)
			if err != nil {
				return fmt.Errorf("failed to build condition: %w", err)
			}
			sql.WriteString(condSQL)
		}
	}
	return nil
}

// Clone creates a copy of the query builder
func (qb *QueryBuilder) Clone() *QueryBuilder {
	clone := &QueryBuilder{
		resource:   qb.resource,
		schemas:    qb.schemas,
		dialect:    qb.dialect,
		baseAlias:  qb.baseAlias,
		joins:      make([]*Join, len(qb.joins)),
		aliases:    make(map[string]*Join, len(qb.aliases)),
		conditions: make([]*Condition, len(qb.conditions)),
		counts:     make([]*AssociationCount, len(qb.counts)),
		orderBy:    make([]orderTerm, len(qb.orderBy)),
		err:        qb.err,
	}

	copy(clone.joins, qb.joins)
	copy(clone.conditions, qb.conditions)
	copy(clone.counts, qb.counts)
	copy(clone.orderBy, qb.orderBy)
	for k, v := range qb.aliases {
		clone.aliases[k] = v
	}

	if qb.limit != nil {
		limit := *qb.limit
		clone.limit = &limit
	}

	if qb.offset != nil {
		offset := *qb.offset
		clone.offset = &offset
	}

	return clone
}

func asFilter(value interface{}) (map[string]interface{}, bool) {
	switch v := value.(type) {
	case Filter:
		return v, true
	case map[string]interface{}:
		return v, true
	default:
		return nil, false
	}
}
