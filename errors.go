package cascade

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/cascade/dialect/sql/sqlgraph"
)

// Standard sentinel errors for the save engine.
var (
	// ErrConfiguration is matched by every ConfigurationError.
	ErrConfiguration = errors.New("cascade: configuration error")

	// ErrAmbiguous is matched by every AmbiguityError.
	ErrAmbiguous = errors.New("cascade: ambiguous existence resolution")

	// ErrStatement is matched by every StatementError.
	ErrStatement = errors.New("cascade: statement failed")
)

// ConfigurationError reports a problem with the save call setup or its input
// shape: a missing id generator, an exhausted id sequence, a cyclic cascade
// or invalid metadata. It is raised before any SQL of the affected phase runs.
type ConfigurationError struct {
	Entity string // Entity type involved, if any
	msg    string
}

// Error returns the error string.
func (e *ConfigurationError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("cascade: configuration error on %s: %s", e.Entity, e.msg)
	}
	return fmt.Sprintf("cascade: configuration error: %s", e.msg)
}

// Is reports whether the target error matches ConfigurationError.
func (e *ConfigurationError) Is(err error) bool {
	return err == ErrConfiguration
}

// NewConfigurationError returns a new ConfigurationError for the given entity type.
func NewConfigurationError(entity, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Entity: entity, msg: fmt.Sprintf(format, args...)}
}

// IsConfigurationError returns true if the error is a ConfigurationError.
func IsConfigurationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigurationError
	return errors.As(err, &e)
}

// AmbiguityError is returned when more than one live row matches the unique
// key of a draft.
type AmbiguityError struct {
	Entity  string         // Entity type being resolved
	Key     map[string]any // Offending unique key, by field name
	Matches int            // Number of rows that matched
}

// Error returns the error string.
func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("cascade: %s key %s matches %d rows", e.Entity, formatKey(e.Key), e.Matches)
}

// Is reports whether the target error matches AmbiguityError.
func (e *AmbiguityError) Is(err error) bool {
	return err == ErrAmbiguous
}

// IsAmbiguityError returns true if the error is an AmbiguityError.
func IsAmbiguityError(err error) bool {
	if err == nil {
		return false
	}
	var e *AmbiguityError
	return errors.As(err, &e)
}

// StatementError wraps an error reported by the SQL execution collaborator
// with the batch it originated from.
type StatementError struct {
	Table string // Table of the failed batch
	Kind  string // Action kind (insert, update)
	Row   int    // Zero-based row index inside the batch
	SQL   string // Statement text
	Err   error  // Underlying driver error
}

// Error returns the error string.
func (e *StatementError) Error() string {
	return fmt.Sprintf("cascade: %s %s (row %d): %v", e.Kind, e.Table, e.Row, e.Err)
}

// Unwrap returns the underlying error.
func (e *StatementError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches StatementError.
func (e *StatementError) Is(err error) bool {
	return err == ErrStatement
}

// IsStatementError returns true if the error is a StatementError.
func IsStatementError(err error) bool {
	if err == nil {
		return false
	}
	var e *StatementError
	return errors.As(err, &e)
}

// IsUniqueViolation reports whether err is a StatementError caused by a
// unique constraint violation.
func IsUniqueViolation(err error) bool {
	return IsStatementError(err) && sqlgraph.IsUniqueConstraintError(err)
}

// IsForeignKeyViolation reports whether err is a StatementError caused by a
// foreign-key constraint violation.
func IsForeignKeyViolation(err error) bool {
	return IsStatementError(err) && sqlgraph.IsForeignKeyConstraintError(err)
}

// IsCheckViolation reports whether err is a StatementError caused by a
// check constraint violation.
func IsCheckViolation(err error) bool {
	return IsStatementError(err) && sqlgraph.IsCheckConstraintError(err)
}

// IsConstraintViolation reports whether err is a constraint violation, either
// raised by the database or detected before the statement ran, such as two
// new drafts sharing one unique key.
func IsConstraintViolation(err error) bool {
	return err != nil && sqlgraph.IsConstraintError(err)
}

// InterceptorViolation records an interceptor that overwrote a property the
// caller had already loaded. Violations are reported, not returned.
type InterceptorViolation struct {
	Entity   string
	Property string
	Before   any
	After    any
}

// Error returns the error string.
func (v *InterceptorViolation) Error() string {
	return fmt.Sprintf("cascade: interceptor overwrote loaded property %s.%s (%v -> %v)", v.Entity, v.Property, v.Before, v.After)
}

// MutationError wraps a save failure with the entity type and the stage it
// happened in.
type MutationError struct {
	Entity string // Entity type being saved
	Op     string // Stage (e.g., "resolve", "intercept", "insert", "update")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	return fmt.Sprintf("cascade: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// NewMutationError returns a new MutationError.
func NewMutationError(entity, op string, err error) *MutationError {
	return &MutationError{Entity: entity, Op: op, Err: err}
}

// IsMutationError returns true if the error is a MutationError.
func IsMutationError(err error) bool {
	if err == nil {
		return false
	}
	var e *MutationError
	return errors.As(err, &e)
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "cascade: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("cascade: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}

func formatKey(key map[string]any) string {
	names := make([]string, 0, len(key))
	for k := range key {
		names = append(names, k)
	}
	slices.Sort(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%v", k, key[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
