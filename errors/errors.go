// errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// DefaultDeniedMessage is used when a policy denies without giving a reason.
const DefaultDeniedMessage = "Unauthorized"

var (
	// ErrUnauthorized is the sentinel matched by errors.Is for every
	// UnauthorizedError, whatever its message or action.
	ErrUnauthorized = errors.New("unauthorized")

	ErrUnknownSource = errors.New("unknown loader source")
	ErrNotLoaded     = errors.New("value not loaded")
)

// UnauthorizedError is the expected, user-facing denial outcome. It is the
// only recoverable authorization error; everything else in this package is a
// programming error.
type UnauthorizedError struct {
	Message string
	Action  string // empty when the entry point does not tag an action
}

func (e *UnauthorizedError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s (action %s)", e.Message, e.Action)
	}
	return e.Message
}

func (e *UnauthorizedError) Is(target error) bool {
	return target == ErrUnauthorized
}

// NewUnauthorized builds a denial with the default message when the policy
// supplied none.
func NewUnauthorized(message, action string) *UnauthorizedError {
	if message == "" {
		message = DefaultDeniedMessage
	}
	return &UnauthorizedError{Message: message, Action: action}
}

// InvalidPolicyResultError reports a policy (or batch result) shape outside
// the accepted set. It is never converted to a denial: treating a malformed
// policy as "denied" would mask bugs as authorization failures.
type InvalidPolicyResultError struct {
	Value  interface{}
	Action string
}

func (e *InvalidPolicyResultError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("invalid policy result %#v for action %s", e.Value, e.Action)
	}
	return fmt.Sprintf("invalid policy result %#v", e.Value)
}

// MissingDataSourceError reports a deferred check against a policy that
// neither received an explicit loader nor exposes a data source.
type MissingDataSourceError struct {
	Policy string
}

func (e *MissingDataSourceError) Error() string {
	return fmt.Sprintf(
		"policy %s triggered a batched check but exposes no data source; pass a loader explicitly or implement Data()",
		e.Policy,
	)
}
