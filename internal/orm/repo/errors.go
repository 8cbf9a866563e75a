package repo

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/curiosum-dev/contexted/internal/orm/changeset"
)

// Common repository error types
var (
	// ErrNotFound is returned by the strict variants when no record matches
	ErrNotFound = errors.New("record not found")

	// ErrMultipleResults is returned by One when more than one row matches
	ErrMultipleResults = errors.New("expected at most one result")

	// ErrInvalidChangeset is returned by the strict write variants for an invalid changeset
	ErrInvalidChangeset = errors.New("invalid changeset")

	// ErrMissingPrimaryKey is returned when an update or delete has no primary key value
	ErrMissingPrimaryKey = errors.New("missing primary key")

	// ErrUnknownResource is returned for a resource name missing from the schema set
	ErrUnknownResource = errors.New("unknown resource")

	// ErrUnknownAssociation is returned by Preload for a name that is not a direct association
	ErrUnknownAssociation = errors.New("unknown association")

	// ErrUniqueViolation is returned when a unique constraint is violated
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")

	// ErrCheckViolation is returned when a check constraint is violated
	ErrCheckViolation = errors.New("check constraint violation")

	// ErrNotNullViolation is returned when a NOT NULL constraint is violated
	ErrNotNullViolation = errors.New("not null constraint violation")
)

// ConvertDBError converts driver errors to repository errors
func ConvertDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", ErrUniqueViolation, pgErr.Detail)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", ErrForeignKeyViolation, pgErr.Detail)
		case "23514": // check_violation
			return fmt.Errorf("%w: %s", ErrCheckViolation, pgErr.Detail)
		case "23502": // not_null_violation
			return fmt.Errorf("%w: column %s", ErrNotNullViolation, pgErr.ColumnName)
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.Code == sqlite3.ErrConstraint {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %s", ErrUniqueViolation, liteErr.Error())
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %s", ErrForeignKeyViolation, liteErr.Error())
		case sqlite3.ErrConstraintCheck:
			return fmt.Errorf("%w: %s", ErrCheckViolation, liteErr.Error())
		case sqlite3.ErrConstraintNotNull:
			return fmt.Errorf("%w: %s", ErrNotNullViolation, liteErr.Error())
		}
	}

	return err
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUniqueViolation returns true if the error is ErrUniqueViolation
func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrUniqueViolation)
}

// IsForeignKeyViolation returns true if the error is ErrForeignKeyViolation
func IsForeignKeyViolation(err error) bool {
	return errors.Is(err, ErrForeignKeyViolation)
}

// IsInvalidChangeset returns true if the error carries changeset errors
func IsInvalidChangeset(err error) bool {
	if errors.Is(err, ErrInvalidChangeset) {
		return true
	}
	var csErr *changeset.Error
	return errors.As(err, &csErr)
}
