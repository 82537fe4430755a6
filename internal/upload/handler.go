package upload

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/everstar/backend/internal/middleware"
	"github.com/everstar/backend/internal/response"
)

// Handler holds HTTP handlers for file uploads.
type Handler struct {
	uploader  *Uploader
	maxMemory int64
}

// NewHandler creates a new upload Handler. maxMemory bounds the part of a
// multipart body held in memory while parsing.
func NewHandler(uploader *Uploader, maxMemory int64) *Handler {
	return &Handler{uploader: uploader, maxMemory: maxMemory}
}

type uploadData struct {
	URL string `json:"url" example:"http://localhost:9000/everstar/avatar.png"`
}

// Upload godoc
//
//	@Summary		Upload file
//	@Description	Store the file under its original filename and return its public URL. A file with the same name is overwritten.
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			file	formData	file	true	"File to upload"
//	@Success		201		{object}	response.Envelope{data=uploadData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/files [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		response.BadRequest(w, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		response.BadRequest(w, "file is required")
		return
	}

	url, err := h.uploader.SaveFile(r.Context(), FromMultipart(files[0]))
	if err != nil {
		response.Fail(w, err)
		return
	}

	log.Info().Str("user_id", middleware.UserID(r.Context())).Str("url", url).Msg("file uploaded")
	response.Created(w, uploadData{URL: url})
}
