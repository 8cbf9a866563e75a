package query

import (
	"fmt"
)

// Operator represents a comparison operator. Filters only ever compare for
// equality or null-ness; range and pattern operators are deliberately absent.
type Operator int

const (
	OpEqual Operator = iota
	OpIsNull
)

// String returns the string representation of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpIsNull:
		return "IS NULL"
	default:
		return "UNKNOWN"
	}
}

// Condition represents one leaf of a filter, scoped to a table alias
type Condition struct {
	Alias    string
	Field    string
	Operator Operator
	Value    interface{}
}

// Column returns the alias-qualified column the condition applies to
func (c *Condition) Column() string {
	return c.Alias + "." + c.Field
}

// conditionToSQL converts a condition to SQL with parameterized values
func conditionToSQL(cond *Condition, dialect Dialect, paramCounter *int, args *[]interface{}) (string, error) {
	switch cond.Operator {
	case OpEqual:
		*args = append(*args, cond.Value)
		sql := fmt.Sprintf("%s = %s", cond.Column(), dialect.Placeholder(*paramCounter))
		*paramCounter++
		return sql, nil

	case OpIsNull:
		return fmt.Sprintf("%s IS NULL", cond.Column()), nil

	default:
		return "", fmt.Errorf("unsupported operator: %v", cond.Operator)
	}
}
