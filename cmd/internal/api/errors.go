package api

import (
	"errors"
	"log/slog"
	"net/http"

	"wishsync/cmd/internal/owner"
	"wishsync/cmd/internal/wishlist"
)

// writeServiceError maps domain error kinds onto HTTP statuses. Unknown errors
// are logged and reported as 500 without detail.
func writeServiceError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	status, code := http.StatusInternalServerError, "server_error"
	switch wishlist.KindOf(err) {
	case wishlist.ErrNotFound:
		status, code = http.StatusNotFound, "not_found"
	case wishlist.ErrConflict:
		status, code = http.StatusConflict, "conflict"
	case wishlist.ErrInvalidState:
		status, code = http.StatusConflict, "invalid_state"
	case wishlist.ErrInvalidAmount:
		status, code = http.StatusUnprocessableEntity, "invalid_amount"
	case wishlist.ErrInvalidInput:
		status, code = http.StatusBadRequest, "invalid_input"
	case wishlist.ErrUnauthorized:
		status, code = http.StatusUnauthorized, "unauthorized"
	case wishlist.ErrForbidden:
		status, code = http.StatusForbidden, "forbidden"
	default:
		log.Error("api."+op+".fail", "err", err)
		writeError(w, status, code, "internal error")
		return
	}
	writeError(w, status, code, publicMessage(err))
}

func publicMessage(err error) string {
	kind := wishlist.KindOf(err)
	var oe wishlist.OpError
	if !errors.As(err, &oe) || oe.Msg == "" {
		return kind.Error()
	}
	if kind == wishlist.ErrNotFound {
		return oe.Msg + " not found"
	}
	return oe.Msg
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, owner.ErrExpiredToken):
		writeError(w, http.StatusUnauthorized, "token_expired", "token expired")
	case errors.Is(err, owner.ErrNoToken):
		writeError(w, http.StatusUnauthorized, "unauthorized", "bearer token required")
	default:
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
	}
}
