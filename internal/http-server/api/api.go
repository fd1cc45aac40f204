package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
	"wedlink/internal/config"
	"wedlink/internal/lifecycle"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	handlerErrors "wedlink/internal/http-server/handlers/errors"
	"wedlink/internal/http-server/handlers/invitation"
	"wedlink/internal/http-server/handlers/public"
	"wedlink/internal/http-server/handlers/review"
	"wedlink/internal/http-server/handlers/session"
	"wedlink/internal/http-server/middleware/authenticate"
	"wedlink/internal/http-server/middleware/reqlog"
	"wedlink/internal/http-server/middleware/timeout"
	"wedlink/lib/sl"
)

const requestTimeout = 15 * time.Second

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	invitation.Core
	session.Core
	review.Core
	public.Core
}

// NewRouter builds the routes; it is separate from New so tests can serve it.
func NewRouter(conf *config.Config, log *slog.Logger, handler Handler) http.Handler {
	router := chi.NewRouter()
	router.Use(timeout.Timeout(requestTimeout))
	router.Use(middleware.RequestID)
	router.Use(reqlog.New(log))
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(handlerErrors.NotFound(log))
	router.MethodNotAllowed(handlerErrors.NotAllowed(log))

	router.Get("/i/{slug}", public.Resolve(log, handler))

	router.Route("/v1", func(rootApi chi.Router) {
		rootApi.Use(authenticate.New(log, handler))

		rootApi.Route("/invitations", func(inv chi.Router) {
			inv.Get("/", invitation.List(log, handler))
			inv.Post("/", invitation.Create(log, handler))
			inv.Route("/{id}", func(one chi.Router) {
				one.Get("/", invitation.Get(log, handler))
				one.Delete("/", invitation.Delete(log, handler))
				one.Post("/validate", invitation.Validate(log, handler))
				one.Get("/notification", invitation.Notification(log, handler))
				one.Get("/requests", invitation.Requests(log, handler))
				for _, action := range lifecycle.Actions {
					one.Post("/"+string(action), invitation.Transition(log, handler, action))
				}
			})
		})
		rootApi.Route("/sessions", func(s chi.Router) {
			s.Post("/", session.Open(log, handler))
			s.Post("/{sid}/save", session.Save(log, handler))
			s.Post("/{sid}/uploads", session.Upload(log, handler, conf.Editor.MaxUploadMB<<20))
			s.Delete("/{sid}", session.Close(log, handler))
		})
		rootApi.Get("/admin/requests", review.Pending(log, handler))
	})

	return router
}

// New starts serving and blocks until ctx is done or the listener fails.
func New(ctx context.Context, conf *config.Config, log *slog.Logger, handler Handler) error {
	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      NewRouter(conf, log, handler),
		ErrorLog:     httpLog,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.httpServer.Shutdown(shutdownCtx); err != nil {
			server.log.Error("shutdown", sl.Err(err))
		}
	}()

	server.log.Info("starting api server", slog.String("address", serverAddress))

	err = server.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
