package provider

import (
	"errors"
	"fmt"
	"strings"
)

// AuthError indicates that authentication has failed or expired for an
// account's backend.
type AuthError struct {
	Account string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Account, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// NotFoundError indicates a named thing (account, message, attachment,
// label, filter, folder) does not exist. Available, when set, lists the
// identifiers that do exist to aid recovery.
type NotFoundError struct {
	Kind      string
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
	}
	return fmt.Sprintf(
		"%s %q not found (known: %s)",
		e.Kind, e.Name, strings.Join(e.Available, ", "),
	)
}

// IsNotFound reports whether err chains to a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// AmbiguousAccountError indicates no account was specified, none is
// active, and more than one (or zero) is registered.
type AmbiguousAccountError struct {
	Available []string
}

func (e *AmbiguousAccountError) Error() string {
	if len(e.Available) == 0 {
		return "no accounts configured; add one with setup"
	}
	return fmt.Sprintf(
		"no active account; specify one of: %s",
		strings.Join(e.Available, ", "),
	)
}

// CollisionError indicates an alias assignment would clash with an
// existing alias or another account's email.
type CollisionError struct {
	Alias         string
	ConflictsWith string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf(
		"alias %q already in use by %s", e.Alias, e.ConflictsWith,
	)
}

// ConnectionError wraps a protocol-level failure. The stateful adapter
// raises it only after its single transparent reconnect attempt has
// also failed.
type ConnectionError struct {
	Account string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error (%s): %v", e.Account, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// UnsupportedError indicates an operation that the account's backend
// does not provide (for example label operations on an IMAP account).
type UnsupportedError struct {
	Operation string
	Provider  Type
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf(
		"operation %q is not supported by %s accounts",
		e.Operation, e.Provider,
	)
}
