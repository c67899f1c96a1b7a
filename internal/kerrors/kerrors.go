// Package kerrors defines the tagged-variant error kinds the synchronizer
// can report (spec §7), and the handful of helpers the orchestrator uses
// to decide whether a given error is recoverable.
package kerrors

import "fmt"

// Kind tags a synchronizer error so callers can branch on it with
// errors.As without string matching.
type Kind string

const (
	DuplicateReference Kind = "DuplicateReference"
	UnknownSymbol      Kind = "UnknownSymbol"
	RenameConflict     Kind = "RenameConflict"
	AmbiguousMatch     Kind = "AmbiguousMatch"
	OrphanLabel        Kind = "OrphanLabel"
	CycleInHierarchy   Kind = "CycleInHierarchy"
	CodecError         Kind = "CodecError"
	WriteFailure       Kind = "WriteFailure"
)

// Recoverable reports whether errors of this kind become warnings in the
// SyncReport rather than aborting the current sheet's plan (spec §7
// table, "Recovered by core" column).
func (k Kind) Recoverable() bool {
	switch k {
	case AmbiguousMatch, OrphanLabel:
		return true
	default:
		return false
	}
}

// Error is a synchronizer error tagged with a Kind and, where relevant,
// the sheet and entity it occurred on.
type Error struct {
	Kind    Kind
	Sheet   string
	Entity  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	where := e.Sheet
	if e.Entity != "" {
		if where != "" {
			where += "/"
		}
		where += e.Entity
	}
	if where != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, where)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error of the given kind.
func New(kind Kind, sheet, entity, format string, args ...any) *Error {
	return &Error{Kind: kind, Sheet: sheet, Entity: entity, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind that chains an underlying cause.
func Wrap(kind Kind, sheet, entity string, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Sheet: sheet, Entity: entity, Message: fmt.Sprintf(format, args...), Cause: cause}
}
