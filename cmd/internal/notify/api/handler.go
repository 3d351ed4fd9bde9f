// Package notifyapi exposes the durable notification ledger over REST:
// listing unread notifications and marking them read.
package notifyapi

import (
	"log/slog"
	"net/http"
	"time"

	"agora/cmd/internal/notify"
	"agora/cmd/internal/web"
)

// Handler wires the notification routes to the ledger.
type Handler struct {
	log    *slog.Logger
	ledger notify.Ledger
}

// NewHandler constructs a notifications Handler.
func NewHandler(log *slog.Logger, ledger notify.Ledger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, ledger: ledger}
}

// Register wires the notification routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("GET /notifications", h.handleListUnread)
	mux.HandleFunc("POST /notifications/read", h.handleMarkAllRead)
}

type notificationResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	MessageID string    `json:"message_id"`
	Value     int       `json:"value,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type notificationListResponse struct {
	Notifications []notificationResponse `json:"notifications"`
}

type markReadResponse struct {
	Marked int64 `json:"marked"`
}

func (h *Handler) handleListUnread(w http.ResponseWriter, r *http.Request) {
	p, ok := web.RequirePrincipal(w, r)
	if !ok {
		return
	}

	rows, err := h.ledger.ListUnread(r.Context(), p.UserID)
	if err != nil {
		web.WriteLedgerError(h.log, w, err)
		return
	}

	out := make([]notificationResponse, 0, len(rows))
	for _, n := range rows {
		out = append(out, notificationResponse{
			ID:        n.ID,
			Type:      n.Type,
			MessageID: n.MessageID,
			Value:     n.Value,
			CreatedAt: n.CreatedAt,
		})
	}
	web.WriteJSON(w, http.StatusOK, notificationListResponse{Notifications: out})
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	p, ok := web.RequirePrincipal(w, r)
	if !ok {
		return
	}

	marked, err := h.ledger.MarkAllRead(r.Context(), p.UserID)
	if err != nil {
		web.WriteLedgerError(h.log, w, err)
		return
	}

	h.log.Info("notify.mark_read", "user_id", p.UserID, "marked", marked)
	web.WriteJSON(w, http.StatusOK, markReadResponse{Marked: marked})
}
