// Package fault defines the error taxonomy shared by the bindhub core.
// Storage and directory failures are translated into these kinds before
// they cross a package boundary.
package fault

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindInvalidArgument covers malformed input and accounts that do not
	// exist or are inactive at registration time.
	KindInvalidArgument Kind = "invalid_argument"
	// KindAlreadyExists signals a duplicate binding for the same
	// account + connector-type pair, or a duplicate schema version.
	KindAlreadyExists Kind = "already_exists"
	// KindNotFound signals an unknown id on a direct lookup.
	KindNotFound Kind = "not_found"
	// KindDataIntegrity signals corrupt persisted state, e.g. a typed
	// override blob that no longer decodes. Never silently ignored.
	KindDataIntegrity Kind = "data_integrity"
	// KindUnavailable signals an unreachable or timed-out external
	// collaborator; safe to retry.
	KindUnavailable Kind = "unavailable"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		if e.Msg != "" {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the taxonomy kind carried by err, or "" when err carries
// none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
