package chain

import "fmt"

// Code enumerates the chain facade's public result codes, per spec §6's
// error-code return convention for the fetch_*/store/import operations.
type Code int

const (
	Success Code = iota
	ErrNotFound
	ErrAlreadyExists
	ErrServiceStopped
	ErrInvalidArgument
	ErrLockHeld
	ErrOrphan
	ErrDuplicateBlock
	ErrUnavailable
)

func (c Code) String() string {
	switch c {
	case Success:
		return "success"
	case ErrNotFound:
		return "not_found"
	case ErrAlreadyExists:
		return "already_exists"
	case ErrServiceStopped:
		return "service_stopped"
	case ErrInvalidArgument:
		return "invalid_argument"
	case ErrLockHeld:
		return "lock_held"
	case ErrOrphan:
		return "orphan"
	case ErrDuplicateBlock:
		return "duplicate_block"
	case ErrUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error pairs a Code with the underlying cause, following the teacher's
// ruleError/RuleError pattern but with an Unwrap so callers can use
// errors.Is/errors.As against either the code or the wrapped cause.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports two *Error values equal by Code, ignoring the wrapped cause,
// so callers can write errors.Is(err, &chain.Error{Code: chain.ErrNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(code Code, err error) error {
	return &Error{Code: code, Err: err}
}
