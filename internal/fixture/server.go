// Package fixture serves a performance collection over HTTP with the query,
// pagination and response shape of a Strapi REST endpoint. It backs local
// development and the HTTP client tests.
package fixture

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cwarden/afisha/internal/afisha"
)

type Server struct {
	store      *afisha.Store
	collection string
	logger     *slog.Logger
	router     chi.Router
}

func NewServer(store *afisha.Store, collection string, logger *slog.Logger) *Server {
	if collection == "" {
		collection = "performances"
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:      store,
		collection: collection,
		logger:     logger,
	}
	s.router = s.routes()
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/api/{collection}", s.handleCollection)

	return r
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "collection") != s.collection {
		writeError(w, http.StatusNotFound, "NotFoundError", "Not Found")
		return
	}

	q, page, err := afisha.ParseValues(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}

	result := s.store.Query(q, page)
	resp := afisha.CollectionJSON{
		Data: afisha.ConvertPerformancesToJSON(result.Items),
		Meta: &afisha.MetaJSON{
			Pagination: &afisha.PaginationJSON{
				Page:      result.Pagination.Page,
				PageSize:  result.Pagination.PageSize,
				PageCount: result.Pagination.PageCount,
				Total:     result.Pagination.Total,
			},
		},
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("encode collection response", "error", err)
	}
}

type errorBody struct {
	Data  any         `json:"data"`
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Status  int    `json:"status"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, name, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{Status: status, Name: name, Message: message},
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("fixture request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
		)
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("fixture server listening", "addr", "http://"+addr, "collection", s.collection, "performances", s.store.Len())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("fixture server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
