package web

import (
	"errors"
	"log/slog"
	"net/http"

	"agora/cmd/internal/board"
	"agora/cmd/internal/notify"
)

// WriteDomainError maps a board or notify error to the HTTP contract:
//
//	invalid input -> 400, not found -> 404, forbidden -> 403,
//	conflict -> 409, storage unavailable -> 503, anything else -> 500.
//
// Unknown errors are logged; mapped errors already carried their context when
// they were created.
func WriteDomainError(log *slog.Logger, w http.ResponseWriter, err error) {
	switch {
	case board.IsInvalidInput(err):
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case board.IsNotFound(err):
		WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case board.IsForbidden(err):
		WriteError(w, http.StatusForbidden, "forbidden", "insufficient permissions")
	case board.IsConflict(err):
		WriteError(w, http.StatusConflict, "conflict", err.Error())
	case board.IsStorage(err):
		WriteError(w, http.StatusServiceUnavailable, "storage_unavailable", "storage unavailable")
	default:
		log.Error("api.unmapped_error", "err", err)
		WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

// WriteLedgerError maps notify ledger errors onto the same contract.
func WriteLedgerError(log *slog.Logger, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, notify.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, notify.ErrStorage):
		WriteError(w, http.StatusServiceUnavailable, "storage_unavailable", "storage unavailable")
	default:
		log.Error("api.unmapped_error", "err", err)
		WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}
