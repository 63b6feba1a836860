package history

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sdmusic/service/internal/middleware"
	"github.com/sdmusic/service/internal/response"
	"github.com/sdmusic/service/internal/song"
)

// Handler holds HTTP handlers for history endpoints.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates a new history Handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

type recordRequest struct {
	SongID string `json:"songId" example:"0b7c2f0e-31c5-4d7e-a0d8-3c6f3f1f7a45"`
}

// Record godoc
//
//	@Summary		Record a play
//	@Tags			history
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		recordRequest	true	"Played song"
//	@Success		201		{object}	response.Envelope{data=Entry}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/history [post]
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	e, err := h.svc.Record(r.Context(), userID, req.SongID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, "play recorded", e)
}

// List godoc
//
//	@Summary		Listening history
//	@Description	Returns a user's plays, newest first. Only the user or an admin may read it.
//	@Tags			history
//	@Produce		json
//	@Security		BearerAuth
//	@Param			userId	path		string	true	"User ID"
//	@Param			limit	query		int		false	"Page size (default 50, max 200)"
//	@Success		200		{object}	response.Envelope{data=[]Entry}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/history/{userId} [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.svc.List(r.Context(), callerID, middleware.IsAdmin(r.Context()), chi.URLParam(r, "userId"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, entries)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "cannot read another user's history")
	case errors.Is(err, song.ErrInvalidID):
		response.BadRequest(w, "invalid song id")
	case errors.Is(err, song.ErrNotFound):
		response.NotFound(w, "song not found")
	default:
		h.logger.Error("history request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		response.InternalError(w)
	}
}
