// verdict.go
package datacop

import (
	datacop_errors "github.com/prosapient/datacop/errors"
)

// BatchRequest describes a deferred authorization: which batch source to
// invoke, which logical batch group within it to join, and the input to
// resolve within that group. Two requests with equal (Source, BatchKey) are
// coalescible into one batch execution by the loader; this package only
// constructs them consistently, it never coalesces itself.
type BatchRequest struct {
	Source   string
	BatchKey interface{}
	Input    interface{}
}

type rawKind int

const (
	rawInvalid rawKind = iota
	rawAllow
	rawDeny
	rawDefer
)

// RawResult is the closed set of values a policy may return: Allow(),
// Deny(reason) or Defer(request). The zero value is invalid and is reported
// as a programming error by the normalizer.
type RawResult struct {
	kind    rawKind
	reason  string
	request BatchRequest
}

// Allow grants the action unconditionally.
func Allow() RawResult {
	return RawResult{kind: rawAllow}
}

// Deny refuses the action. An empty reason falls back to the default
// "Unauthorized" message.
func Deny(reason string) RawResult {
	return RawResult{kind: rawDeny, reason: reason}
}

// Defer makes the verdict depend on a pending batch result.
func Defer(request BatchRequest) RawResult {
	return RawResult{kind: rawDefer, request: request}
}

// VerdictKind enumerates the canonical outcomes of a policy evaluation.
type VerdictKind int

const (
	Allowed VerdictKind = iota
	Denied
	Deferred
)

// Verdict is the canonical result of evaluating a policy: exactly one of
// Allowed, Denied (with the denial error populated) or Deferred (with the
// batch request populated).
type Verdict struct {
	Kind    VerdictKind
	Err     *datacop_errors.UnauthorizedError
	Request BatchRequest
}

// Normalize maps a RawResult into a Verdict. When action is non-empty it is
// embedded into the denial error for diagnostics. The zero RawResult is a
// programming error, never silently coerced.
func Normalize(raw RawResult, action Action) (Verdict, error) {
	switch raw.kind {
	case rawAllow:
		return Verdict{Kind: Allowed}, nil
	case rawDeny:
		return Verdict{
			Kind: Denied,
			Err:  datacop_errors.NewUnauthorized(raw.reason, string(action)),
		}, nil
	case rawDefer:
		return Verdict{Kind: Deferred, Request: raw.request}, nil
	default:
		return Verdict{}, &datacop_errors.InvalidPolicyResultError{Value: raw, Action: string(action)}
	}
}

// NormalizeValue maps a loose value into a Verdict. Accepted shapes are
// RawResult, Verdict passthrough and plain booleans (the usual shape of a
// batched lookup result). Anything else fails with InvalidPolicyResultError.
func NormalizeValue(value interface{}, action Action) (Verdict, error) {
	switch v := value.(type) {
	case RawResult:
		return Normalize(v, action)
	case Verdict:
		return v, nil
	case bool:
		if v {
			return Verdict{Kind: Allowed}, nil
		}
		return Verdict{
			Kind: Denied,
			Err:  datacop_errors.NewUnauthorized("", string(action)),
		}, nil
	default:
		return Verdict{}, &datacop_errors.InvalidPolicyResultError{Value: value, Action: string(action)}
	}
}
