// Package diagnostics defines the three disjoint error taxonomies produced
// by the Mluva pipeline: compile-time, runtime, and build-orchestration
// errors. Rendering a diagnostic to a terminal (source snippet, caret) is
// left to the caller; these types only carry (kind, message, span, notes).
package diagnostics

import (
	"fmt"

	"github.com/MikulasBar/mluva-sub000/internal/token"
)

// CompileKind enumerates the CompileError variants.
type CompileKind string

const (
	UnexpectedChar          CompileKind = "UnexpectedChar"
	UnterminatedString      CompileKind = "UnterminatedString"
	InvalidNumber           CompileKind = "InvalidNumber"
	UnexpectedToken         CompileKind = "UnexpectedToken"
	UnexpectedEndOfFile     CompileKind = "UnexpectedEndOfFile"
	WrongType               CompileKind = "WrongType"
	WrongNumberOfArguments  CompileKind = "WrongNumberOfArguments"
	VariableNotFound        CompileKind = "VariableNotFound"
	FunctionNotFound        CompileKind = "FunctionNotFound"
	FunctionAlreadyDefined  CompileKind = "FunctionAlreadyDefined"
	VarRedeclaration        CompileKind = "VarRedeclaration"
	ModuleNotFound          CompileKind = "ModuleNotFound"
	UnknownForeignFunction  CompileKind = "UnknownForeignFunction"
	ReservedFunctionName    CompileKind = "ReservedFunctionName"
)

// CompileError is any error raised by the lexer, parser, or type checker.
type CompileError struct {
	Kind    CompileKind
	Message string
	Span    *token.Span
	Notes   []string
}

func (e *CompileError) Error() string {
	if e.Span != nil {
		return fmt.Sprintf("%s: %s (at %d..%d)", e.Kind, e.Message, e.Span.Lo, e.Span.Hi)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewCompileError constructs a CompileError with an optional span.
func NewCompileError(kind CompileKind, span *token.Span, format string, args ...any) *CompileError {
	return &CompileError{Kind: kind, Message: fmt.Sprintf(format, args...), Span: span}
}

// WithNotes returns e with Notes appended, for chaining at the call site.
func (e *CompileError) WithNotes(notes ...string) *CompileError {
	e.Notes = append(e.Notes, notes...)
	return e
}

// RuntimeKind enumerates the RuntimeError variants.
type RuntimeKind string

const (
	ValueStackUnderflow RuntimeKind = "ValueStackUnderflow"
	DivisionByZero      RuntimeKind = "DivisionByZero"
	TypeError           RuntimeKind = "TypeError"
	FunctionDidNotReturn RuntimeKind = "FunctionDidNotReturn"
	AssertionFailed     RuntimeKind = "AssertionFailed"
	Other               RuntimeKind = "Other"
)

// RuntimeError is any error raised by the VM while executing bytecode.
type RuntimeError struct {
	Kind    RuntimeKind
	Message string
	Notes   []string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewRuntimeError constructs a RuntimeError.
func NewRuntimeError(kind RuntimeKind, format string, args ...any) *RuntimeError {
	return &RuntimeError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// BuildKind enumerates the BuildError variants.
type BuildKind string

const (
	CyclicDependency   BuildKind = "CyclicDependency"
	ModuleFileMissing  BuildKind = "ModuleFileMissing"
	IoError            BuildKind = "IoError"
	BytecodeDecodeError BuildKind = "BytecodeDecodeError"
)

// BuildError is any error raised by the module builder/linker/cache.
type BuildError struct {
	Kind    BuildKind
	Message string
	Wrapped error
}

func (e *BuildError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *BuildError) Unwrap() error {
	return e.Wrapped
}

// NewBuildError constructs a BuildError, optionally wrapping a lower-level
// error (filesystem, codec).
func NewBuildError(kind BuildKind, wrapped error, format string, args ...any) *BuildError {
	return &BuildError{Kind: kind, Message: fmt.Sprintf(format, args...), Wrapped: wrapped}
}
