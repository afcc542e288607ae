// File: severity.go
// Title: Error Severity Levels
// Description: Severity levels used to pick the log level an error is
//              reported at.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2026-10-19

package error

// Severity represents the severity level of an error
type Severity int

const (
	// SeverityLow covers user mistakes: bad input, unknown ids
	SeverityLow Severity = iota

	// SeverityMedium covers refused operations and recoverable I/O failures
	SeverityMedium

	// SeverityHigh covers storage failures and internal faults
	SeverityHigh

	// SeverityCritical makes the process unusable
	SeverityCritical
)

// String returns the string representation of the severity level
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// GetSeverityFromCode determines appropriate severity level based on error code
func GetSeverityFromCode(code Code) Severity {
	switch code {
	case CodeInvalidInput, CodeInvalidFormat, CodeValidationFailed,
		CodeNotFound, CodeUnknownCommand, CodeDuplicateEntry:
		return SeverityLow
	case CodeForbidden, CodeUnauthorized, CodeInvalidCredentials,
		CodeIOError, CodeScriptRecursion, CodeScriptDepthExceeded, CodeShutdown:
		return SeverityMedium
	case CodeDatabaseError, CodeInternal, CodeConfigError:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}
