package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/news-api/internal/service"
)

// EngagementHandler serves likes, bookmarks and comments. Articles are
// addressed by id here, not slug.
type EngagementHandler struct {
	engagement *service.EngagementService
	logger     *slog.Logger
}

func NewEngagementHandler(engagement *service.EngagementService, logger *slog.Logger) *EngagementHandler {
	return &EngagementHandler{engagement: engagement, logger: logger}
}

type likeResponse struct {
	Liked     bool   `json:"liked"`
	LikeCount int    `json:"like_count"`
	Message   string `json:"message"`
}

// HandleLike toggles the caller's like.
//
// HTTP: POST /api/news/{id}/like (bearer)
// RESPONSE: 201 {"liked": true, ...} when a like was added, 200 when removed.
func (h *EngagementHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.engagement.ToggleLike(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if res.Created {
		writeJSON(w, http.StatusCreated, likeResponse{Liked: true, LikeCount: res.LikeCount, Message: "News liked"})
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{Liked: false, LikeCount: res.LikeCount, Message: "Like removed"})
}

type bookmarkResponse struct {
	Bookmarked bool   `json:"bookmarked"`
	Message    string `json:"message"`
}

// HandleBookmark toggles the caller's bookmark.
//
// HTTP: POST /api/news/{id}/bookmark (bearer)
func (h *EngagementHandler) HandleBookmark(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.engagement.ToggleBookmark(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if res.Created {
		writeJSON(w, http.StatusCreated, bookmarkResponse{Bookmarked: true, Message: "News bookmarked"})
		return
	}
	writeJSON(w, http.StatusOK, bookmarkResponse{Bookmarked: false, Message: "Bookmark removed"})
}

// HandleListComments pages through an article's comments, newest first.
//
// HTTP: GET /api/news/{id}/comments
func (h *EngagementHandler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.engagement.Comments(r.Context(), chi.URLParam(r, "id"), page)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type commentRequest struct {
	Content string `json:"content" validate:"required"`
}

// HandleCreateComment posts a comment.
//
// HTTP: POST /api/news/{id}/comments (bearer)
func (h *EngagementHandler) HandleCreateComment(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	c, err := h.engagement.AddComment(r.Context(), userID, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleUpdateComment edits the caller's comment.
//
// HTTP: PUT /api/news/{id}/comments/{commentID} (bearer)
func (h *EngagementHandler) HandleUpdateComment(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	c, err := h.engagement.EditComment(r.Context(), userID, chi.URLParam(r, "commentID"), req.Content)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleDeleteComment removes the caller's comment.
//
// HTTP: DELETE /api/news/{id}/comments/{commentID} (bearer) → 204
func (h *EngagementHandler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.engagement.DeleteComment(r.Context(), userID, chi.URLParam(r, "commentID")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
