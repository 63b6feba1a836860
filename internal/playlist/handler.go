package playlist

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sdmusic/service/internal/middleware"
	"github.com/sdmusic/service/internal/response"
)

// Handler holds HTTP handlers for playlist endpoints.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates a new playlist Handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

type createRequest struct {
	Name  string   `json:"name"  example:"Morning run"`
	Songs []string `json:"songs"`
}

// List godoc
//
//	@Summary		List playlists
//	@Tags			playlists
//	@Produce		json
//	@Success		200	{object}	response.Envelope{data=[]Playlist}
//	@Failure		500	{object}	response.Envelope
//	@Router			/playlists [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, playlists)
}

// Create godoc
//
//	@Summary		Create a playlist
//	@Tags			playlists
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		createRequest	true	"Playlist"
//	@Success		201		{object}	response.Envelope{data=Playlist}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/playlists [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	p, err := h.svc.Create(r.Context(), req.Name, userID, req.Songs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, "playlist created", p)
}

// Songs godoc
//
//	@Summary		List playlist songs
//	@Description	Returns the playlist's songs in order, skipping songs that no longer exist.
//	@Tags			playlists
//	@Produce		json
//	@Param			playlistId	path		string	true	"Playlist ID"
//	@Success		200			{object}	response.Envelope{data=[]song.Song}
//	@Failure		400			{object}	response.Envelope
//	@Failure		404			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/playlists/{playlistId}/songs [get]
func (h *Handler) Songs(w http.ResponseWriter, r *http.Request) {
	songs, err := h.svc.Songs(r.Context(), chi.URLParam(r, "playlistId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, songs)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidName):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrInvalidSong):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrInvalidID):
		response.BadRequest(w, "invalid playlist id")
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "playlist not found")
	default:
		h.logger.Error("playlist request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		response.InternalError(w)
	}
}
