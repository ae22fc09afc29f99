package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crates/cache"
	"crates/config"
	"crates/core/auth"
	"crates/core/collection"
	"crates/core/discogs"
	"crates/core/enrich"
	"crates/core/spotify"
	"crates/logger"
	"crates/storage"

	"github.com/gorilla/mux"
)

// Deps are the services behind the HTTP API. Covers and the limiters may be
// nil.
type Deps struct {
	Auth            *auth.Service
	Collections     *collection.Service
	Discogs         *discogs.Client
	Spotify         *spotify.Service
	Enricher        *enrich.Enricher
	Covers          *storage.CoverStore
	RegisterLimiter *cache.RateLimiter
	LoginLimiter    *cache.RateLimiter
}

// NewRouter wires every route.
func NewRouter(d Deps) *mux.Router {
	apiHandler := NewAPIHandler(d.Auth, d.Collections)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	authRouter := router.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/register", rateLimit(d.RegisterLimiter,
		"Too many registration attempts, please try again later.", apiHandler.RegisterHandler)).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", rateLimit(d.LoginLimiter,
		"Too many login attempts, please try again later.", apiHandler.LoginHandler)).Methods(http.MethodPost)
	authRouter.HandleFunc("/verify-email", apiHandler.VerifyEmailHandler).Methods(http.MethodGet)
	authRouter.HandleFunc("/forgot-password", rateLimit(d.RegisterLimiter,
		"Too many registration attempts, please try again later.", apiHandler.ForgotPasswordHandler)).Methods(http.MethodPost)
	authRouter.HandleFunc("/reset-password", apiHandler.ResetPasswordHandler).Methods(http.MethodPost)
	authRouter.HandleFunc("/resend-verification", apiHandler.ResendVerificationHandler).Methods(http.MethodPost)
	authRouter.Handle("/me", apiHandler.AuthMiddleware(http.HandlerFunc(apiHandler.MeHandler))).Methods(http.MethodGet)

	// Album routes are registered before /{id} so "album" is never taken
	// as a collection id.
	collectionRouter := router.PathPrefix("/collection").Subrouter()
	collectionRouter.Use(apiHandler.AuthMiddleware)
	collectionRouter.HandleFunc("/album", apiHandler.AddAlbumHandler).Methods(http.MethodPost)
	collectionRouter.HandleFunc("/album/from-discogs", apiHandler.AddFromDiscogsHandler).Methods(http.MethodPost)
	collectionRouter.HandleFunc("/album/{albumId}", apiHandler.GetAlbumHandler).Methods(http.MethodGet)
	collectionRouter.HandleFunc("/album/{albumId}", apiHandler.UpdateAlbumHandler).Methods(http.MethodPut)
	collectionRouter.HandleFunc("/album/{albumId}", apiHandler.DeleteAlbumHandler).Methods(http.MethodDelete)
	collectionRouter.HandleFunc("/album/{albumId}/enrich", apiHandler.EnrichAlbumHandler).Methods(http.MethodPost)
	for _, root := range []string{"", "/"} {
		collectionRouter.HandleFunc(root, apiHandler.ListCollectionsHandler).Methods(http.MethodGet)
		collectionRouter.HandleFunc(root, apiHandler.CreateCollectionHandler).Methods(http.MethodPost)
	}
	collectionRouter.HandleFunc("/{id}", apiHandler.GetCollectionHandler).Methods(http.MethodGet)
	collectionRouter.HandleFunc("/{id}", apiHandler.UpdateCollectionHandler).Methods(http.MethodPut)
	collectionRouter.HandleFunc("/{id}", apiHandler.DeleteCollectionHandler).Methods(http.MethodDelete)

	if d.Discogs != nil {
		NewDiscogsHandler(d.Discogs).register(router.PathPrefix("/api/discogs").Subrouter())
	}
	if d.Spotify != nil {
		NewSpotifyHandler(d.Spotify, d.Enricher).register(router.PathPrefix("/api/spotify").Subrouter())
	}

	router.Handle("/covers/{key:.+}", NewCoverHandler(d.Covers)).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	// Preflight requests match no method-bound route and land here, where
	// router middleware does not run.
	router.MethodNotAllowedHandler = corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}))
	return router
}

// Start serves handler on cfg.Port until ctx is cancelled or the process
// receives SIGINT or SIGTERM, then shuts down gracefully.
func Start(ctx context.Context, cfg *config.Config, handler http.Handler) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// enrichment of a long tracklist holds the response open
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
