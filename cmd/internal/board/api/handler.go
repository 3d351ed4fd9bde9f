// Package boardapi exposes the discussion REST surface: the message feed,
// threads, reactions, tags, and reports.
package boardapi

import (
	"log/slog"
	"net/http"
	"strings"

	"agora/cmd/internal/board"
	"agora/cmd/internal/web"
)

const defaultMaxBodyBytes = int64(64 << 10)

// Handler wires the discussion routes to the board service.
type Handler struct {
	log          *slog.Logger
	svc          *board.Service
	maxBodyBytes int64
}

// NewHandler constructs a board Handler.
func NewHandler(log *slog.Logger, svc *board.Service) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, svc: svc, maxBodyBytes: defaultMaxBodyBytes}
}

// Register wires the discussion routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("GET /messages", h.handleListMessages)
	mux.HandleFunc("POST /messages", h.handleCreateMessage)
	mux.HandleFunc("GET /messages/{id}", h.handleGetMessage)
	mux.HandleFunc("PUT /messages/{id}", h.handleUpdateMessage)
	mux.HandleFunc("DELETE /messages/{id}", h.handleDeleteMessage)
	mux.HandleFunc("GET /messages/{id}/replies", h.handleListReplies)
	mux.HandleFunc("POST /messages/{id}/reaction", h.handleReaction)
	mux.HandleFunc("POST /messages/{id}/report", h.handleReport)
	mux.HandleFunc("PUT /messages/{id}/tags", h.handleApplyTags)
	mux.HandleFunc("GET /tags", h.handleListTags)
	mux.HandleFunc("POST /tags", h.handleCreateTag)
}

// ---- messages ----

// handleListMessages serves the feed. Without filters it returns root
// messages only; a q or tag filter widens the search to every message,
// replies included.
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	tagID := strings.TrimSpace(r.URL.Query().Get("tag"))

	f := board.ListFilter{Query: q, TagID: tagID, Scope: board.ScopeRoot}
	if q != "" || tagID != "" {
		f.Scope = board.ScopeAny
	}

	msgs, err := h.svc.ListMessages(r.Context(), f)
	if err != nil {
		web.WriteDomainError(h.log, w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, toMessageListResponse(msgs))
}

func (h *Handler) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	p, ok := web.RequirePrincipal(w, r)
	if !ok {
		return
	}

	var req createMessageRequest
	if err := web.DecodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	msg, err := h.svc.CreateMessage(r.Context(), p, req.Content, req.ParentID)
	if err != nil {
		web.WriteDomainError(h.log, w, err)
		return
	}

	h.log.Info("board.message.create", "message_id", msg.ID, "author_id", p.UserID, "reply", msg.ParentID != nil)
	web.WriteJSON(w, http.StatusCreated, toMessageResponse(msg))
}

func (h *Handler) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := h.svc.GetMessage(r.Context(), r.PathValue("id"))
	if err != nil {
		web.WriteDomainError(h.log, w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, toMessageResponse(msg))
}

func (h *Handler) handleUpdateMessage(w http.ResponseWriter, r *http.Request) {
	p, ok := web.RequirePrincipal(w, r)
	if !ok {
		return
	}

	var req updateMessageRequest
	if err := web.DecodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	msg, err := h.svc.UpdateMessage(r.Context(), p, r.PathValue("id"), req.Content)
	if err != nil {
		web.WriteDomainError(h.log, w, err)
		return
	}

	h.log.Info("board.message.update", "message_id", msg.ID, "actor_id", p.UserID)
	web.WriteJSON(w, http.StatusOK, toMessageResponse(msg))
}

func (h *Handler) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	p, ok := web.RequirePrincipal(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if err := h.svc.DeleteMessage(r.Context(), p, id); err != nil {
		web.WriteDomainError(h.log, w, err)
		return
	}

	h.log.Info("board.message.delete", "message_id", id, "actor_id", p.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListReplies(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.svc.ListReplies(r.Context(), r.PathValue("id"))
	if err != nil {
		web.WriteDomainError(h.log, w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, toMessageListResponse(msgs))
}

// ---- reactions ----

func (h *Handler) handleReaction(w http.ResponseWriter, r *http.Request) {
	p, ok := web.RequirePrincipal(w, r)
	if !ok {
		return
	}

	var req reactionRequest
	if err := web.DecodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	counts, err := h.svc.React(r.Context(), p, r.PathValue("id"), req.Value)
	if err != nil {
		web.WriteDomainError(h.log, w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, reactionResponse{Likes: counts.Likes, Dislikes: counts.Dislikes})
}

// ---- reports ----

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	p, ok := web.RequirePrincipal(w, r)
	if !ok {
		return
	}

	var req reportRequest
	if err := web.DecodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	rep, err := h.svc.ReportMessage(r.Context(), p, r.PathValue("id"), req.Reason)
	if err != nil {
		web.WriteDomainError(h.log, w, err)
		return
	}

	h.log.Info("board.report.create", "report_id", rep.ID, "message_id", rep.MessageID, "reporter_id", p.UserID)
	web.WriteJSON(w, http.StatusCreated, reportResponse{
		ID:        rep.ID,
		MessageID: rep.MessageID,
		CreatedAt: rep.CreatedAt,
	})
}

// ---- tags ----

func (h *Handler) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.ListTags(r.Context())
	if err != nil {
		web.WriteDomainError(h.log, w, err)
		return
	}
	out := make([]tagResponse, 0, len(tags))
	for _, t := range tags {
		out = append(out, toTagResponse(t))
	}
	web.WriteJSON(w, http.StatusOK, tagListResponse{Tags: out})
}

func (h *Handler) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	p, ok := web.RequirePrincipal(w, r)
	if !ok {
		return
	}

	var req createTagRequest
	if err := web.DecodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	tag, err := h.svc.CreateTag(r.Context(), p, req.Name)
	if err != nil {
		web.WriteDomainError(h.log, w, err)
		return
	}

	h.log.Info("board.tag.create", "tag_id", tag.ID, "name", tag.Name, "actor_id", p.UserID)
	web.WriteJSON(w, http.StatusCreated, toTagResponse(tag))
}

func (h *Handler) handleApplyTags(w http.ResponseWriter, r *http.Request) {
	p, ok := web.RequirePrincipal(w, r)
	if !ok {
		return
	}

	var req applyTagsRequest
	if err := web.DecodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	msg, err := h.svc.ApplyTags(r.Context(), p, r.PathValue("id"), req.TagIDs)
	if err != nil {
		web.WriteDomainError(h.log, w, err)
		return
	}

	h.log.Info("board.tags.apply", "message_id", msg.ID, "tags", len(req.TagIDs), "actor_id", p.UserID)
	web.WriteJSON(w, http.StatusOK, toMessageResponse(msg))
}
