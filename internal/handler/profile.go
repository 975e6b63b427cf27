package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/news-api/internal/apperror"
	"github.com/sakif/news-api/internal/media"
	"github.com/sakif/news-api/internal/model"
	"github.com/sakif/news-api/internal/service"
)

// pictureField is the multipart field carrying an uploaded profile picture.
const pictureField = "profile_picture"

// ProfileHandler serves /api/users: profiles, pictures and reading history.
type ProfileHandler struct {
	profiles *service.ProfileService
	mediaURL string // URL prefix the media root is served under, e.g. "/media/"
	logger   *slog.Logger
}

func NewProfileHandler(profiles *service.ProfileService, mediaURL string, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, mediaURL: mediaURL, logger: logger}
}

// profileResponse adds the picture's public URL to the stored profile.
type profileResponse struct {
	*model.Profile
	ProfilePictureURL string `json:"profile_picture_url"`
}

func (h *ProfileHandler) respond(w http.ResponseWriter, status int, p *model.Profile) {
	res := profileResponse{Profile: p}
	if p.ProfilePicture != "" {
		res.ProfilePictureURL = h.mediaURL + p.ProfilePicture
	}
	writeJSON(w, status, res)
}

// HandleGet returns the caller's profile, creating it on first access.
//
// HTTP: GET /api/users/profile (bearer)
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.respond(w, http.StatusOK, p)
}

// HandlePublic returns another user's profile.
//
// HTTP: GET /api/users/profile/{id}
func (h *ProfileHandler) HandlePublic(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.respond(w, http.StatusOK, p)
}

type updateProfileRequest struct {
	FullName    *string `json:"full_name"    validate:"omitnil,max=200"`
	Bio         *string `json:"bio"          validate:"omitnil,max=500"`
	DateOfBirth *string `json:"date_of_birth"`
	PhoneNumber *string `json:"phone_number" validate:"omitnil,max=20"`
	Address     *string `json:"address"      validate:"omitnil,max=500"`
}

// HandleUpdate edits the caller's profile. Omitted fields are unchanged.
//
// HTTP: PUT /api/users/profile (bearer)
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	p, err := h.profiles.Update(r.Context(), userID, service.ProfileUpdate{
		FullName:    req.FullName,
		Bio:         req.Bio,
		DateOfBirth: req.DateOfBirth,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.respond(w, http.StatusOK, p)
}

// HandleUploadPicture replaces the caller's profile picture.
//
// HTTP: POST /api/users/profile/picture (bearer, multipart/form-data)
// FORM FIELD: profile_picture (jpg, jpeg, png, gif or bmp, at most 5 MiB)
func (h *ProfileHandler) HandleUploadPicture(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	// Room for the file plus the multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxUploadSize+64<<10)
	file, header, err := r.FormFile(pictureField)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			err = apperror.Invalid(pictureField, media.ErrTooLarge)
		default:
			err = apperror.ValidationFailed(pictureField, "no image was uploaded")
		}
		writeError(w, r, h.logger, err)
		return
	}
	defer file.Close()

	p, err := h.profiles.UploadPicture(r.Context(), userID, header.Filename, file)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.respond(w, http.StatusOK, p)
}

// HandleDeletePicture removes the caller's profile picture.
//
// HTTP: DELETE /api/users/profile/picture (bearer)
func (h *ProfileHandler) HandleDeletePicture(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.profiles.DeletePicture(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.respond(w, http.StatusOK, p)
}

// HandleHistory pages through the caller's reading history.
//
// HTTP: GET /api/users/reading-history (bearer)
func (h *ProfileHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.profiles.History(r.Context(), userID, page)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleClearHistory deletes the caller's reading history.
//
// HTTP: DELETE /api/users/reading-history/clear (bearer)
// RESPONSE: {"deleted": n, "message"}
func (h *ProfileHandler) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	n, err := h.profiles.ClearHistory(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n, "message": "Reading history cleared"})
}
