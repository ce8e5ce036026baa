package database

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingUniqueConstraint marks an upsert whose conflict target has no matching
// UNIQUE index in the live schema.
var ErrMissingUniqueConstraint = errors.New("missing unique constraint")

// ErrDuplicate marks a plain UNIQUE violation.
var ErrDuplicate = errors.New("duplicate row")

// MissingConstraintError carries the table and columns that need a UNIQUE
// constraint, plus the SQL that fixes the schema.
type MissingConstraintError struct {
	Table   string
	Columns []string
	Err     error
}

func (e *MissingConstraintError) Error() string {
	return fmt.Sprintf("database configuration incomplete: table %s needs a UNIQUE constraint on (%s); run: %s",
		e.Table, strings.Join(e.Columns, ", "), e.Remediation())
}

// Remediation returns the statement that adds the missing constraint.
func (e *MissingConstraintError) Remediation() string {
	return fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS unique_%s_%s ON %s (%s);",
		e.Table, strings.Join(e.Columns, "_"), e.Table, strings.Join(e.Columns, ", "))
}

func (e *MissingConstraintError) Is(target error) bool { return target == ErrMissingUniqueConstraint }

func (e *MissingConstraintError) Unwrap() error { return e.Err }

// TranslateUpsertError maps driver errors raised by an ON CONFLICT upsert on table
// (keyed by columns) onto the package's sentinel errors. Other errors pass through.
func TranslateUpsertError(err error, table string, columns ...string) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "on conflict clause does not match"):
		return &MissingConstraintError{Table: table, Columns: columns, Err: err}
	case IsUniqueViolation(err):
		return fmt.Errorf("%w: %s: %v", ErrDuplicate, table, err)
	}
	return err
}

// IsUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
