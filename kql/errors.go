package kql

import (
	errors "gopkg.in/src-d/go-errors.v1"
)

// Error kinds for the failure taxonomy. Every failure surfaced to a
// caller is one of these; the kind name is the message prefix so the
// result envelope's error string is self-classifying.
var (
	// ErrParse reports lexical or syntactic failures, with position.
	ErrParse = errors.NewKind("ParseError: %s")

	// ErrUnknownTable reports a source referencing an unregistered table.
	ErrUnknownTable = errors.NewKind("UnknownTable: table %q is not registered (available: %s)")

	// ErrDuplicateTable reports a second registration under the same name.
	ErrDuplicateTable = errors.NewKind("DuplicateTable: table %q is already registered")

	// ErrSemantic reports plan-time validation failures: unknown columns,
	// duplicate projection names, misplaced aggregations, type mismatches.
	ErrSemantic = errors.NewKind("SemanticError: %s")

	// ErrEval reports runtime failures during evaluation.
	ErrEval = errors.NewKind("EvalError: %s")

	// ErrResourceLimit reports an intermediate row-set exceeding the cap.
	ErrResourceLimit = errors.NewKind("ResourceLimit: intermediate row count %d exceeds the configured cap of %d")

	// ErrInternal is reserved and should never be emitted.
	ErrInternal = errors.NewKind("InternalError: %s")
)
