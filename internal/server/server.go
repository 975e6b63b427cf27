// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer: it connects the database, services,
// handlers and middleware, and decides
//   - which URL patterns map to which handler functions
//   - which routes need a bearer token and which merely accept one
//   - how the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → sqlite.DB ─┬→ services → handlers → routes
//	                mail.Mailer ┘
//
// Everything is assembled in New. No other package constructs a service.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/news-api/internal/auth"
	"github.com/sakif/news-api/internal/config"
	"github.com/sakif/news-api/internal/handler"
	"github.com/sakif/news-api/internal/mail"
	"github.com/sakif/news-api/internal/media"
	"github.com/sakif/news-api/internal/middleware"
	sqliteRepo "github.com/sakif/news-api/internal/repository/sqlite"
	"github.com/sakif/news-api/internal/service"
)

// mediaURL is the URL prefix uploaded media is served under.
const mediaURL = "/media/"

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database connection; Start closes it on shutdown so
// the WAL is checkpointed and the file lock released.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	auth   *service.AuthService
}

// New opens the database, picks a mailer and wires every route.
//
// With no SMTP host configured, verification emails are logged instead of
// sent, which is what local development wants.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if !strings.HasPrefix(cfg.DBPath, ":memory:") {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	var mailer mail.Mailer = mail.NewLogMailer(logger)
	if cfg.SMTP.Host != "" {
		mailer = mail.NewSMTPMailer(cfg.SMTP)
	} else {
		logger.Warn("SMTP_HOST not set, verification emails will only be logged")
	}

	s, err := newServer(cfg, logger, db, mailer, auth.NewPasswordService())
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// newServer wires a server around an open database. Tests call it directly
// to swap the mailer and the bcrypt cost.
func newServer(cfg config.Config, logger *slog.Logger, db *sqliteRepo.DB, mailer mail.Mailer, passwords *auth.PasswordService) (*Server, error) {
	store, err := media.NewStore(cfg.MediaDir)
	if err != nil {
		return nil, fmt.Errorf("opening media store: %w", err)
	}
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	// The sqlite DB implements every repository interface, so it is passed
	// once per role.
	verification := service.NewVerificationService(db, db, mailer, cfg.APIBaseURL, logger)
	authService := service.NewAuthService(db, db, verification, tokens, passwords, logger)
	articles := service.NewArticleService(db, db, db, db, logger)
	engagement := service.NewEngagementService(db, db, db, logger)
	recommendations := service.NewRecommendationService(db, db, logger)
	taxonomy := service.NewTaxonomyService(db, db, logger)
	profiles := service.NewProfileService(db, db, store, logger)

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		auth:   authService,
	}

	s.setupRoutes(routes{
		tokens:     tokens,
		media:      store,
		health:     handler.NewHealthHandler(db, logger),
		auth:       handler.NewAuthHandler(authService, verification, logger),
		articles:   handler.NewArticleHandler(articles, engagement, recommendations, logger),
		engagement: handler.NewEngagementHandler(engagement, logger),
		taxonomy:   handler.NewTaxonomyHandler(taxonomy, logger),
		profiles:   handler.NewProfileHandler(profiles, mediaURL, logger),
	})
	return s, nil
}

// routes carries what setupRoutes needs.
type routes struct {
	tokens     *auth.TokenService
	media      *media.Store
	health     *handler.HealthHandler
	auth       *handler.AuthHandler
	articles   *handler.ArticleHandler
	engagement *handler.EngagementHandler
	taxonomy   *handler.TaxonomyHandler
	profiles   *handler.ProfileHandler
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /healthz                      → database ping
//	GET  /media/*                      → uploaded profile pictures
//	     /api/auth/...                 → registration, login, tokens, account
//	     /api/news/...                 → articles, taxonomy, engagement
//	     /api/users/...                → profiles, reading history
//
// Under /news, static segments (search, my, categories, tags,
// recommendations) win over {slug}. Article slugs skip those words, so an
// article titled "Search" lives at /news/search-2.
//
// MIDDLEWARE ORDER MATTERS:
// RequestID first so the logger can print it, RealIP before anything reads
// the client address, Recoverer innermost of the globals so a panic is still
// logged as a 500.
func (s *Server) setupRoutes(h routes) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	requireAuth := auth.RequireAuth(h.tokens)
	optionalAuth := auth.OptionalAuth(h.tokens)

	s.router.Get("/healthz", h.health.HandleHealth)
	s.router.Handle(mediaURL+"*", http.StripPrefix(mediaURL, noListing(http.FileServer(http.Dir(h.media.Root())))))

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.auth.HandleRegister)
			r.Post("/login", h.auth.HandleLogin)
			r.Post("/token/refresh", h.auth.HandleRefresh)
			r.Post("/verify-email", h.auth.HandleVerifyEmail)
			r.Post("/resend-verification", h.auth.HandleResendVerification)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/logout", h.auth.HandleLogout)
				r.Get("/profile", h.auth.HandleMe)
				r.Put("/profile", h.auth.HandleUpdateMe)
				r.Post("/change-password", h.auth.HandleChangePassword)
			})
		})

		r.Route("/news", func(r chi.Router) {
			// Anonymous or authenticated. A token only changes what the
			// caller sees (drafts, is_liked, reading history).
			r.Group(func(r chi.Router) {
				r.Use(optionalAuth)
				r.Get("/", h.articles.HandleList)
				r.Get("/search", h.articles.HandleSearch)
				r.Get("/categories", h.taxonomy.HandleListCategories)
				r.Get("/categories/{slug}", h.taxonomy.HandleGetCategory)
				r.Get("/tags", h.taxonomy.HandleListTags)
				r.Get("/{slug}", h.articles.HandleGet)
				r.Get("/{id}/comments", h.engagement.HandleListComments)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", h.articles.HandleCreate)
				r.Get("/recommendations", h.articles.HandleRecommendations)
				r.Get("/my/articles", h.articles.HandleMine)
				r.Get("/my/likes", h.articles.HandleMyLikes)
				r.Get("/my/bookmarks", h.articles.HandleMyBookmarks)
				r.Post("/categories", h.taxonomy.HandleCreateCategory)

				r.Put("/{slug}", h.articles.HandleUpdate)
				r.Delete("/{slug}", h.articles.HandleDelete)
				r.Post("/{slug}/publish", h.articles.HandlePublish)
				r.Post("/{slug}/archive", h.articles.HandleArchive)

				r.Post("/{id}/like", h.engagement.HandleLike)
				r.Post("/{id}/bookmark", h.engagement.HandleBookmark)
				r.Post("/{id}/comments", h.engagement.HandleCreateComment)
				r.Put("/{id}/comments/{commentID}", h.engagement.HandleUpdateComment)
				r.Delete("/{id}/comments/{commentID}", h.engagement.HandleDeleteComment)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/profile/{id}", h.profiles.HandlePublic)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/profile", h.profiles.HandleGet)
				r.Put("/profile", h.profiles.HandleUpdate)
				r.Post("/profile/picture", h.profiles.HandleUploadPicture)
				r.Delete("/profile/picture", h.profiles.HandleDeletePicture)
				r.Get("/reading-history", h.profiles.HandleHistory)
				r.Delete("/reading-history/clear", h.profiles.HandleClearHistory)
			})
		})
	})
}

// noListing hides directory indexes of the media root.
func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP makes the server usable with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	// Revocation entries past their refresh token's expiry can never match
	// again.
	purgeCtx, cancelPurge := context.WithTimeout(context.Background(), 10*time.Second)
	if n, err := s.auth.PurgeRevocations(purgeCtx); err != nil {
		s.logger.Warn("purging revoked tokens failed", slog.String("error", err.Error()))
	} else if n > 0 {
		s.logger.Info("purged expired token revocations", slog.Int64("count", n))
	}
	cancelPurge()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.APIBaseURL),
			slog.String("database", s.config.DBPath),
			slog.String("media", s.config.MediaDir),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
