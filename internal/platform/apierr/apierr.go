package apierr

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/yungbote/kitchenmaster-backend/internal/pkg/errors"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromError maps the domain sentinels onto HTTP statuses. Errors that are
// already an *Error pass through unchanged; anything unrecognized becomes a
// 500 so no internal detail picks its own status by accident.
func FromError(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		return New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, pkgerrors.ErrUnauthorized):
		return New(http.StatusForbidden, "forbidden", err)
	case errors.Is(err, pkgerrors.ErrInvalidArgument):
		return New(http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, pkgerrors.ErrSessionBusy):
		return New(http.StatusConflict, "session_busy", err)
	case errors.Is(err, pkgerrors.ErrUnsupportedArtifactKind):
		return New(http.StatusUnprocessableEntity, "unsupported_artifact_kind", err)
	case errors.Is(err, pkgerrors.ErrGenerationFailed):
		return New(http.StatusBadGateway, "generation_failed", err)
	default:
		return New(http.StatusInternalServerError, "internal", err)
	}
}
