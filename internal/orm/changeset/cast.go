package changeset

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/curiosum-dev/contexted/internal/orm/schema"
)

// castValue coerces value to the field's primitive type. nil passes through
// for every type; nullability is enforced by ValidateRequired.
func castValue(field *schema.Field, value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	switch field.Type.BaseType {
	case schema.TypeString, schema.TypeText:
		if _, ok := value.(string); !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		return value, nil
	case schema.TypeInt, schema.TypeBigInt:
		if f, ok := value.(float64); ok && f != float64(int64(f)) {
			return nil, fmt.Errorf("expected integer, got %v", f)
		}
		return cast.ToInt64E(value)
	case schema.TypeFloat, schema.TypeDecimal:
		return cast.ToFloat64E(value)
	case schema.TypeBool:
		return cast.ToBoolE(value)
	case schema.TypeTimestamp, schema.TypeDate:
		return cast.ToTimeE(value)
	case schema.TypeUUID:
		switch v := value.(type) {
		case uuid.UUID:
			return v.String(), nil
		case string:
			id, err := uuid.Parse(v)
			if err != nil {
				return nil, err
			}
			return id.String(), nil
		default:
			return nil, fmt.Errorf("expected uuid, got %T", value)
		}
	case schema.TypeJSON:
		return value, nil
	default:
		return nil, fmt.Errorf("unsupported type %s", field.Type.BaseType)
	}
}
