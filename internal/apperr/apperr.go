// Package apperr implements the ShelfOps error taxonomy: a small set of
// error kinds (not types) that propagate across component boundaries so
// callers can branch on what happened without parsing strings.
//
// This mirrors an Operation/Component/Cause error shape with
// Error()/Unwrap() support, extended with a Kind and a Tenant field
// since the HITL boundary requires surfacing "error kind, a free-text
// reason, and the minimum context needed to retry (alert id / version
// string / tenant)" on every user-visible failure.
package apperr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy.
type Kind string

const (
	// KindTenantUnset is a fatal programming error: an operation was
	// invoked without a tenant handle.
	KindTenantUnset Kind = "tenant_unset"
	// KindContractViolation covers missing required fields, unparseable
	// dates, and out-of-range quantities during canonicalization.
	KindContractViolation Kind = "contract_violation"
	// KindStateMachineViolation covers illegal entity transitions
	// (resolving an already-dismissed alert, promoting an existing champion).
	KindStateMachineViolation Kind = "state_machine_violation"
	// KindIdempotencyConflict signals that an idempotent operation
	// observed a duplicate and returned the existing entity.
	KindIdempotencyConflict Kind = "idempotency_conflict"
	// KindTransientDependencyError covers DB timeouts, broker outages,
	// SFTP unavailability — retryable with backoff.
	KindTransientDependencyError Kind = "transient_dependency_error"
	// KindDataUnavailable means there was nothing to act on (no
	// forecasts, no recent inventory) — a skip, not a failure.
	KindDataUnavailable Kind = "data_unavailable"
	// KindModelLoadFailure marks a forecast run failed without
	// poisoning the model registry.
	KindModelLoadFailure Kind = "model_load_failure"
	// KindDQGateFailure means a data-quality report failed its gate;
	// training/promotion must refuse to proceed.
	KindDQGateFailure Kind = "dq_gate_failure"
)

// Error is the concrete error value carried across component
// boundaries. Op names the action being attempted, Tenant is the
// tenant's display string (never the handle type itself, to avoid an
// import cycle with package tenant), Resource is the minimum context
// needed to retry (alert id, version string, etc.), and Cause is the
// underlying error, if any.
type Error struct {
	Kind     Kind
	Op       string
	Tenant   string
	Resource string
	Cause    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Op)
	if e.Tenant != "" {
		msg += fmt.Sprintf(" (tenant=%s)", e.Tenant)
	}
	if e.Resource != "" {
		msg += fmt.Sprintf(" (resource=%s)", e.Resource)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is supports errors.Is by comparing Kind when the target is an *Error.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New constructs an *Error of the given kind.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// WithTenant attaches tenant context to an error for user-visible
// surfacing, returning e for chaining.
func (e *Error) WithTenant(tenant string) *Error {
	e.Tenant = tenant
	return e
}

// WithResource attaches the minimum retry context to an error.
func (e *Error) WithResource(resource string) *Error {
	e.Resource = resource
	return e
}

// KindOf extracts the Kind from err, walking the Unwrap chain. Returns
// ("", false) if err does not wrap an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// TenantUnset builds the standard fatal "missing tenant handle" error.
func TenantUnset(op string) *Error {
	return New(KindTenantUnset, op, nil)
}
