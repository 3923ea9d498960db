package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseEncode   Phase = "encode"   // Go to managed value
	PhaseDecode   Phase = "decode"   // managed value to Go
	PhaseCall     Phase = "call"     // native calling managed code
	PhaseExport   Phase = "export"   // managed code calling native code
	PhaseAlloc    Phase = "alloc"    // heap allocation
	PhaseDerive   Phase = "derive"   // record/variant declaration
	PhaseRuntime  Phase = "runtime"  // collector, roots, domain lock
	PhaseLoad     Phase = "load"     // runtime and memory setup
	PhaseGenerate Phase = "generate" // source generation
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch     Kind = "type_mismatch"
	KindOutOfBounds      Kind = "out_of_bounds"
	KindInvalidData      Kind = "invalid_data"
	KindUnsupported      Kind = "unsupported"
	KindAllocation       Kind = "allocation"
	KindOverflow         Kind = "overflow"
	KindInvalidVariant   Kind = "invalid_variant"
	KindNotCallable      Kind = "not_callable"
	KindForeignException Kind = "foreign_exception"
	KindNativePanic      Kind = "native_panic"
	KindDeclaration      Kind = "declaration"
	KindNotFound         Kind = "not_found"
	KindInvalidInput     Kind = "invalid_input"
	KindRegistration     Kind = "registration"
	KindRootCorruption   Kind = "root_corruption"
	KindLock             Kind = "lock"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	MLType string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.MLType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.MLType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", managed type ")
			b.WriteString(e.MLType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("managed type ")
			b.WriteString(e.MLType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.MLType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the value path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// MLType sets the managed-side type name
func (b *Builder) MLType(t string) *Builder {
	b.err.MLType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, mlType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		GoType: goType,
		MLType: mlType,
	}
}

// UnexpectedTag creates a type mismatch error for a block whose tag or
// immediate-ness does not fit the decoder.
func UnexpectedTag(phase Phase, path []string, mlType string, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		MLType: mlType,
		Detail: "got " + got,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(wosize int, tag uint8) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d words (tag %d)", wosize, tag),
	}
}

// InvalidDiscriminant creates an invalid discriminant error for variants
func InvalidDiscriminant(phase Phase, path []string, disc int, immediate bool, maxValid int) *Error {
	form := "block tag"
	if immediate {
		form = "constant constructor"
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidVariant,
		Path:   path,
		Detail: fmt.Sprintf("%s %d out of range (max %d)", form, disc, maxValid),
		Value:  disc,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// SizeMismatch creates an out of bounds error for fixed-size shapes
func SizeMismatch(phase Phase, path []string, want, got int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("expected %d elements, got %d", want, got),
		Value:  got,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		GoType: targetType,
		Detail: fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:  value,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// NotCallable creates the error returned when a non-closure is applied
func NotCallable(tag uint8, immediate bool) *Error {
	detail := fmt.Sprintf("block with tag %d is not a closure", tag)
	if immediate {
		detail = "immediate value is not a closure"
	}
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindNotCallable,
		Detail: detail,
	}
}

// Declaration creates a declaration-time misuse error
func Declaration(phase Phase, goType, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDeclaration,
		GoType: goType,
		Detail: detail,
	}
}

// RootCorruption creates the error a root chain panics with
func RootCorruption(detail string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindRootCorruption,
		Detail: detail,
	}
}

// LockNotHeld creates the error raised when the domain lock is missing
func LockNotHeld(op string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindLock,
		Detail: fmt.Sprintf("%s requires the domain lock", op),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a registration error
func Registration(phase Phase, what, name string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s %q", what, name),
		Cause:  cause,
	}
}

// Load creates a setup error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// PathWith returns a copy of path extended by elem without aliasing path.
func PathWith(path []string, elem string) []string {
	out := make([]string, len(path)+1)
	copy(out, path)
	out[len(path)] = elem
	return out
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Join returns an error wrapping errs, discarding nils.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
