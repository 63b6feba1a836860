package song

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sdmusic/service/internal/response"
	"github.com/sdmusic/service/internal/token"
)

// Handler holds HTTP handlers for song endpoints.
type Handler struct {
	svc            *Service
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewHandler creates a new song Handler. maxUploadBytes bounds the multipart body.
func NewHandler(svc *Service, maxUploadBytes int64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, maxUploadBytes: maxUploadBytes, logger: logger}
}

type songData struct {
	Song *Song `json:"song"`
}

type updateRequest struct {
	Title  *string `json:"title"  example:"Song X"`
	Artist *string `json:"artist" example:"Some Artist"`
}

type deleteRequest struct {
	Password string `json:"password" example:"admin-secret"`
}

// Upload godoc
//
//	@Summary		Upload a song
//	@Description	Uploads the audio file and cover image concurrently to object storage, then stores the song. Nothing is stored unless both uploads succeed.
//	@Tags			songs
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			audioFile	formData	file	true	"Audio file"
//	@Param			coverImage	formData	file	true	"Cover image"
//	@Param			title		formData	string	false	"Title (default Untitled)"
//	@Param			artist		formData	string	false	"Artist (default Unknown)"
//	@Success		201			{object}	response.Envelope{data=songData}
//	@Failure		400			{object}	response.Envelope
//	@Failure		429			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/songs/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		response.BadRequest(w, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	audio, err := formFile(r, "audioFile")
	if err != nil {
		response.BadRequest(w, "invalid audio file")
		return
	}
	image, err := formFile(r, "coverImage")
	if err != nil {
		response.BadRequest(w, "invalid cover image")
		return
	}

	s, err := h.svc.Upload(r.Context(), UploadInput{
		Audio:  audio,
		Image:  image,
		Title:  r.FormValue("title"),
		Artist: r.FormValue("artist"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Created(w, "song uploaded successfully", songData{Song: s})
}

// List godoc
//
//	@Summary		List songs
//	@Description	Returns every song, newest first.
//	@Tags			songs
//	@Produce		json
//	@Success		200	{object}	response.Envelope{data=[]Song}
//	@Failure		500	{object}	response.Envelope
//	@Router			/songs [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	songs, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, songs)
}

// Home godoc
//
//	@Summary		Home feed
//	@Description	Returns the ten newest songs.
//	@Tags			songs
//	@Produce		json
//	@Success		200	{object}	response.Envelope{data=[]Song}
//	@Failure		500	{object}	response.Envelope
//	@Router			/songs/home [get]
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	songs, err := h.svc.Latest(r.Context(), HomeFeedSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, songs)
}

// Get godoc
//
//	@Summary		Get a song
//	@Tags			songs
//	@Produce		json
//	@Param			songId	path		string	true	"Song ID"
//	@Success		200		{object}	response.Envelope{data=Song}
//	@Failure		400		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/songs/{songId} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Get(r.Context(), chi.URLParam(r, "songId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, s)
}

// Update godoc
//
//	@Summary		Update a song
//	@Description	Changes the title and/or artist. Omitted or blank fields are left unchanged.
//	@Tags			songs
//	@Accept			json
//	@Produce		json
//	@Param			songId	path		string			true	"Song ID"
//	@Param			request	body		updateRequest	true	"Fields to change"
//	@Success		200		{object}	response.Envelope{data=songData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/songs/{songId} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	s, err := h.svc.Update(r.Context(), chi.URLParam(r, "songId"), Changes{Title: req.Title, Artist: req.Artist})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OKMessage(w, "song updated successfully", songData{Song: s})
}

// Delete godoc
//
//	@Summary		Delete a song
//	@Description	Removes the song after a best-effort cleanup of its remote assets. Requires the admin password in the body or an admin bearer token.
//	@Tags			songs
//	@Accept			json
//	@Produce		json
//	@Param			songId	path		string			true	"Song ID"
//	@Param			request	body		deleteRequest	false	"Admin password"
//	@Security		BearerAuth
//	@Success		200		{object}	response.Envelope
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/songs/{songId} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "invalid request body")
		return
	}

	credential := req.Password
	if credential == "" {
		credential, _ = token.FromRequest(r)
	}

	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "songId"), credential); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OKMessage(w, "song deleted successfully", nil)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrMissingAsset):
		response.BadRequest(w, "audio file and cover image are required")
	case errors.Is(err, ErrInvalidID):
		response.BadRequest(w, "invalid song id")
	case errors.Is(err, ErrUnauthorized):
		response.Unauthorized(w, "unauthorized: incorrect admin credential")
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "song not found")
	case errors.Is(err, ErrUploadFailed):
		h.logger.Error("song upload failed", "path", r.URL.Path, "error", err)
		response.Error(w, http.StatusInternalServerError, "upload failed")
	default:
		h.logger.Error("song request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		response.InternalError(w)
	}
}

// formFile reads a whole multipart file. A missing field yields an empty File
// so the service can report which asset is absent.
func formFile(r *http.Request, field string) (File, error) {
	f, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return File{}, nil
	}
	if err != nil {
		return File{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return File{}, err
	}
	return File{Data: data, Filename: header.Filename, ContentType: contentType(header)}, nil
}

func contentType(h *multipart.FileHeader) string {
	if ct := h.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
