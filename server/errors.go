package server

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/teranos/skytrace/errors"
	"github.com/teranos/skytrace/logger"
)

// statusForError maps the domain sentinels to HTTP status codes.
// Timeouts are checked before store failures because a timed out find is
// marked as both.
func statusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.IsInvalidArgument(err):
		return http.StatusBadRequest
	case errors.IsActorStopped(err),
		errors.Is(err, errors.ErrServiceUnavailable),
		errors.Is(err, errors.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.IsQueryFailed(err), errors.IsStoreUnavailable(err):
		return http.StatusBadGateway
	case errors.IsNotFoundError(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeWrappedError logs err with its stack and writes a JSON error whose
// status follows the error's sentinel. Client errors are logged at debug.
func writeWrappedError(w http.ResponseWriter, log *zap.SugaredLogger, err error, msg string) int {
	status := statusForError(err)
	wrapped := errors.Wrap(err, msg)

	if status >= http.StatusInternalServerError {
		log.Errorw(msg,
			logger.FieldError, wrapped.Error(),
			logger.FieldStatus, status,
		)
		log.Debugw("Error detail", "detail", fmt.Sprintf("%+v", wrapped))
	} else {
		log.Debugw(msg,
			logger.FieldError, wrapped.Error(),
			logger.FieldStatus, status,
		)
	}

	message := err.Error()
	if hints := errors.FlattenHints(err); hints != "" {
		message += " (" + hints + ")"
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, status, message)
	return status
}
