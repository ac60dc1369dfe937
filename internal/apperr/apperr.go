// Package apperr defines the error categories the request pipeline and
// billing engine agree on. Callers wrap these with fmt.Errorf("...: %w")
// and the pipeline maps each category to a response.
package apperr

import "errors"

var (
	// ErrInvalidInput marks malformed request data. Reported as a client
	// error, not logged as a failure.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAuth marks missing or invalid credentials or sessions. Reported
	// via redirect or a uniform denial message.
	ErrAuth = errors.New("authentication failed")

	// ErrForbidden marks a valid identity with insufficient role or
	// entitlement.
	ErrForbidden = errors.New("forbidden")

	// ErrStorage marks a failed read or write against the database. The
	// client sees a generic server error only.
	ErrStorage = errors.New("storage error")

	// ErrConsistency marks a subscription/ledger write mismatch. Always
	// fatal to the enclosing transaction.
	ErrConsistency = errors.New("consistency violation")
)
