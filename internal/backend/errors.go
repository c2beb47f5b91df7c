package backend

import (
	"errors"
	"fmt"

	"requisition-api-server/internal/inventory"
)

// ValidationError covers malformed or incomplete action parameters.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError is returned when a referenced document does not exist.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

func notFoundf(format string, args ...any) error {
	return &NotFoundError{Msg: fmt.Sprintf(format, args...)}
}

// PermissionError is returned when the caller's role does not allow the action.
type PermissionError struct {
	Msg string
}

func (e *PermissionError) Error() string { return e.Msg }

func permissionf(format string, args ...any) error {
	return &PermissionError{Msg: fmt.Sprintf(format, args...)}
}

// errResult converts an action error into the response envelope. Version
// conflicts carry a machine-readable code and the current server version so
// the client can reload and retry.
func errResult(err error) Result {
	out := Result{"result": "error", "error": err.Error()}
	var conflict *inventory.ConflictError
	if errors.As(err, &conflict) {
		out["code"] = "CONFLICT"
		out["serverVersion"] = conflict.ServerVersion
	}
	return out
}
