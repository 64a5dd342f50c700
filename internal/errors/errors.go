// Package errors classifies the failures of a changelog run. The CLI uses the
// classification to pick an exit code and to decide how much detail to print.
package errors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType is the part of the run that failed
type ErrorType int

const (
	// ErrorTypeConfig covers missing settings and tags that do not resolve
	ErrorTypeConfig ErrorType = iota
	// ErrorTypeValidation covers malformed rules and inputs
	ErrorTypeValidation
	// ErrorTypeTracker covers GitHub failures other than not-found
	ErrorTypeTracker
	// ErrorTypeVCS covers failed git commands
	ErrorTypeVCS
	// ErrorTypeFileSystem covers cache, report and export files
	ErrorTypeFileSystem
	// ErrorTypeInternal is a broken invariant
	ErrorTypeInternal
)

var typeNames = map[ErrorType]string{
	ErrorTypeConfig:     "CONFIG",
	ErrorTypeValidation: "VALIDATION",
	ErrorTypeTracker:    "TRACKER",
	ErrorTypeVCS:        "VCS",
	ErrorTypeFileSystem: "FILESYSTEM",
	ErrorTypeInternal:   "INTERNAL",
}

func (t ErrorType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Severity says whether a run can go on after the error
type Severity int

const (
	// SeverityLow degrades the output only
	SeverityLow Severity = iota
	// SeverityMedium is retried; the record stays pending
	SeverityMedium
	// SeverityHigh leaves the run result incomplete
	SeverityHigh
	// SeverityCritical stops the run before any output is written
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "LOW",
	SeverityMedium:   "MEDIUM",
	SeverityHigh:     "HIGH",
	SeverityCritical: "CRITICAL",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Exit codes of the changelog command
const (
	ExitFailure   = 1
	ExitConfig    = 2
	ExitTracker   = 3
	ExitVCS       = 4
	ExitCancelled = 130
)

// Error is a classified failure with optional key/value details
type Error struct {
	Type     ErrorType
	Severity Severity
	Message  string
	Cause    error
	Context  map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext attaches a detail shown by DetailedString
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is matches another *Error of the same type
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsFatal reports whether the run must stop
func (e *Error) IsFatal() bool {
	return e.Severity == SeverityCritical
}

// DetailedString is the verbose rendering printed by the CLI with -v
func (e *Error) DetailedString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] [%s] %s\n", e.Severity, e.Type, e.Message)

	if e.Cause != nil {
		fmt.Fprintf(&sb, "  caused by: %v\n", e.Cause)
	}

	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %s: %v\n", k, e.Context[k])
	}
	return sb.String()
}

// New creates an error without a cause
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{Type: errType, Severity: severity, Message: message}
}

// Wrap classifies err. A nil err stays nil.
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Type: errType, Severity: severity, Message: message, Cause: err}
}

func ConfigError(message string) *Error {
	return New(ErrorTypeConfig, SeverityCritical, message)
}

func ConfigErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeConfig, SeverityCritical, fmt.Sprintf(format, args...))
}

func ValidationError(message string) *Error {
	return New(ErrorTypeValidation, SeverityHigh, message)
}

func ValidationErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeValidation, SeverityHigh, fmt.Sprintf(format, args...))
}

// TrackerError wraps a transient GitHub failure
func TrackerError(err error, message string) *Error {
	return Wrap(err, ErrorTypeTracker, SeverityMedium, message)
}

func TrackerErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeTracker, SeverityMedium, fmt.Sprintf(format, args...))
}

// VCSError wraps a failed git command
func VCSError(err error, message string) *Error {
	return Wrap(err, ErrorTypeVCS, SeverityHigh, message)
}

func VCSErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeVCS, SeverityHigh, fmt.Sprintf(format, args...))
}

func FileSystemError(err error, message string) *Error {
	return Wrap(err, ErrorTypeFileSystem, SeverityHigh, message)
}

func FileSystemErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeFileSystem, SeverityHigh, fmt.Sprintf(format, args...))
}

func InternalError(message string) *Error {
	return New(ErrorTypeInternal, SeverityCritical, message)
}

func InternalErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeInternal, SeverityCritical, fmt.Sprintf(format, args...))
}

// IsFatal reports whether err, or anything it wraps, is a critical *Error
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.IsFatal()
	}
	return false
}

// GetSeverity returns the severity of err. Unclassified errors are medium.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityLow
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Severity
	}
	return SeverityMedium
}

// GetType returns the type of err. Unclassified errors are internal.
func GetType(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// IsType reports whether err, or anything it wraps, is an *Error of errType
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == errType
	}
	return false
}

// ExitCode maps err to the process exit status
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		return ExitCancelled
	}

	var e *Error
	if !errors.As(err, &e) {
		return ExitFailure
	}
	switch e.Type {
	case ErrorTypeConfig, ErrorTypeValidation:
		return ExitConfig
	case ErrorTypeTracker:
		return ExitTracker
	case ErrorTypeVCS:
		return ExitVCS
	default:
		return ExitFailure
	}
}
