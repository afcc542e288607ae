// File: codes.go
// Title: Error Code Definitions
// Description: Defines the error codes used to classify failures of the flat
//              collection manager: parse errors, missing records, permission
//              denials, I/O failures and invariant violations.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2026-10-19
//
// Change History:
// - 2025-01-24 v0.1.0: Initial implementation with core error codes
// - 2026-10-19 v0.2.0: Reduced to the codes used by the command engine

package error

// Code represents a structured error code for categorizing errors
type Code string

const (
	// Generic codes
	CodeUnknown  Code = "UNKNOWN"
	CodeInternal Code = "INTERNAL"

	// Parse errors: malformed arguments, wrong field counts, bad numbers or enums
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeInvalidFormat Code = "INVALID_FORMAT"

	// Invariant violations detected while constructing a record
	CodeValidationFailed Code = "VALIDATION_FAILED"

	// Lookups
	CodeNotFound       Code = "NOT_FOUND"
	CodeDuplicateEntry Code = "DUPLICATE_ENTRY"
	CodeUnknownCommand Code = "UNKNOWN_COMMAND"

	// Access control
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"

	// I/O and storage
	CodeIOError       Code = "IO_ERROR"
	CodeDatabaseError Code = "DATABASE_ERROR"

	// Script interpretation
	CodeScriptRecursion     Code = "SCRIPT_RECURSION"
	CodeScriptDepthExceeded Code = "SCRIPT_DEPTH_EXCEEDED"

	// Lifecycle
	CodeShutdown    Code = "SHUTDOWN"
	CodeConfigError Code = "CONFIG_ERROR"
)

// String returns the string representation of the error code
func (c Code) String() string {
	return string(c)
}

// Category groups codes into the taxonomy the command engine reports on
func (c Code) Category() string {
	switch c {
	case CodeInvalidInput, CodeInvalidFormat:
		return "parse"
	case CodeValidationFailed:
		return "validation"
	case CodeNotFound, CodeUnknownCommand:
		return "not_found"
	case CodeUnauthorized, CodeForbidden, CodeInvalidCredentials:
		return "permission"
	case CodeIOError, CodeDatabaseError:
		return "io"
	case CodeScriptRecursion, CodeScriptDepthExceeded:
		return "script"
	default:
		return "internal"
	}
}
