package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/news-api/internal/model"
	"github.com/sakif/news-api/internal/service"
)

// ArticleHandler serves articles, the reader's own listings and
// recommendations under /api/news.
type ArticleHandler struct {
	articles        *service.ArticleService
	engagement      *service.EngagementService
	recommendations *service.RecommendationService
	logger          *slog.Logger
}

func NewArticleHandler(
	articles *service.ArticleService,
	engagement *service.EngagementService,
	recommendations *service.RecommendationService,
	logger *slog.Logger,
) *ArticleHandler {
	return &ArticleHandler{
		articles:        articles,
		engagement:      engagement,
		recommendations: recommendations,
		logger:          logger,
	}
}

// HandleList returns published articles.
//
// HTTP: GET /api/news?category=&author=&search=&ordering=&page=&page_size=
// RESPONSE: {"count", "page", "page_size", "results": [...]}
func (h *ArticleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q := r.URL.Query()

	res, err := h.articles.List(r.Context(), service.ListQuery{
		Category:    q.Get("category"),
		Author:      q.Get("author"),
		Search:      q.Get("search"),
		Ordering:    q.Get("ordering"),
		PageRequest: page,
	}, viewerID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleSearch is the advanced search.
//
// HTTP: GET /api/news/search?q=&category=&author=&date_from=YYYY-MM-DD&date_to=YYYY-MM-DD
func (h *ArticleHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q := r.URL.Query()

	res, err := h.articles.Search(r.Context(), service.SearchQuery{
		Q:           q.Get("q"),
		Category:    q.Get("category"),
		Author:      q.Get("author"),
		DateFrom:    q.Get("date_from"),
		DateTo:      q.Get("date_to"),
		PageRequest: page,
	}, viewerID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleGet returns one article with its latest comments.
//
// HTTP: GET /api/news/{slug}
func (h *ArticleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	detail, err := h.articles.Get(r.Context(), chi.URLParam(r, "slug"), viewerID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type createArticleRequest struct {
	Title    string   `json:"title"    validate:"required,max=200"`
	Content  string   `json:"content"  validate:"required"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"     validate:"max=20,dive,max=50"`
	Status   string   `json:"status"   validate:"omitempty,oneof=draft published archived"`
}

// HandleCreate writes a new article authored by the caller.
//
// HTTP: POST /api/news (bearer)
// REQUEST BODY: {"title", "content", "category"?, "tags"?: ["name"], "status"?}
func (h *ArticleHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req createArticleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	article, err := h.articles.Create(r.Context(), userID, service.ArticleInput{
		Title:      req.Title,
		Content:    req.Content,
		CategoryID: req.Category,
		Tags:       req.Tags,
		Status:     model.Status(req.Status),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, article)
}

type updateArticleRequest struct {
	Title    *string   `json:"title"    validate:"omitnil,max=200"`
	Content  *string   `json:"content"`
	Category *string   `json:"category"`
	Tags     *[]string `json:"tags"`
	Status   *string   `json:"status"   validate:"omitnil,oneof=draft published archived"`
}

// HandleUpdate edits the caller's article. Omitted fields are unchanged;
// "category": "" removes the category.
//
// HTTP: PUT /api/news/{slug} (bearer)
func (h *ArticleHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req updateArticleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	in := service.ArticleUpdate{
		Title:      req.Title,
		Content:    req.Content,
		CategoryID: req.Category,
		Tags:       req.Tags,
	}
	if req.Status != nil {
		st := model.Status(*req.Status)
		in.Status = &st
	}

	article, err := h.articles.Update(r.Context(), userID, chi.URLParam(r, "slug"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

// HandleDelete removes the caller's article.
//
// HTTP: DELETE /api/news/{slug} (bearer) → 204
func (h *ArticleHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.articles.Delete(r.Context(), userID, chi.URLParam(r, "slug")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePublish moves a draft to published.
//
// HTTP: POST /api/news/{slug}/publish (bearer)
func (h *ArticleHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.articles.Publish, "Article published successfully")
}

// HandleArchive moves a published article to archived.
//
// HTTP: POST /api/news/{slug}/archive (bearer)
func (h *ArticleHandler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.articles.Archive, "Article archived successfully")
}

type transitionFunc func(ctx context.Context, userID, slug string) (*model.Article, error)

func (h *ArticleHandler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc, msg string) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	article, err := fn(r.Context(), userID, chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg, "news": article})
}

// HandleMine lists the caller's articles in every status.
//
// HTTP: GET /api/news/my/articles (bearer)
func (h *ArticleHandler) HandleMine(w http.ResponseWriter, r *http.Request) {
	userID, page, ok := h.userPage(w, r)
	if !ok {
		return
	}
	res, err := h.articles.Mine(r.Context(), userID, page)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleMyLikes lists the published articles the caller liked.
//
// HTTP: GET /api/news/my/likes (bearer)
func (h *ArticleHandler) HandleMyLikes(w http.ResponseWriter, r *http.Request) {
	userID, page, ok := h.userPage(w, r)
	if !ok {
		return
	}
	res, err := h.articles.Liked(r.Context(), userID, page)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleMyBookmarks lists the caller's bookmarks.
//
// HTTP: GET /api/news/my/bookmarks (bearer)
func (h *ArticleHandler) HandleMyBookmarks(w http.ResponseWriter, r *http.Request) {
	userID, page, ok := h.userPage(w, r)
	if !ok {
		return
	}
	res, err := h.engagement.Bookmarks(r.Context(), userID, page)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// userPage reads the caller and pagination, writing the error if either fails.
func (h *ArticleHandler) userPage(w http.ResponseWriter, r *http.Request) (string, service.PageRequest, bool) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return "", service.PageRequest{}, false
	}
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return "", service.PageRequest{}, false
	}
	return userID, page, true
}

// HandleRecommendations suggests up to 10 articles from the reading history.
//
// HTTP: GET /api/news/recommendations (bearer)
// RESPONSE: {"count", "results": [...]}
func (h *ArticleHandler) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	articles, err := h.recommendations.Recommend(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(articles), "results": articles})
}
