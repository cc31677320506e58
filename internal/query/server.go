// Package query serves the loaded data over a small read-only HTTP API.
package query

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/ajitpratap0/polyload/pkg/logger"
	"github.com/ajitpratap0/polyload/pkg/observability"
)

// GracefulShutdownTimeout bounds how long in-flight requests may run after Start's context ends.
const GracefulShutdownTimeout = 10 * time.Second

// Server is the query API.
type Server struct {
	Echo *echo.Echo

	repo   Repository
	listen string
	logger *zap.Logger
}

// NewServer creates a server over repo listening on listen.
func NewServer(repo Repository, listen string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		Echo:   e,
		repo:   repo,
		listen: listen,
		logger: logger.Get().With(zap.String("component", "query")),
	}
	e.HTTPErrorHandler = s.errorHandler
	s.setupMiddlewares()
	s.bind()
	return s
}

func (s *Server) setupMiddlewares() {
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(echo.WrapMiddleware(observability.TracingMiddleware("polyload-query")))
	s.Echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogMethod:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency))
			return nil
		},
	}))
}

func (s *Server) bind() {
	s.Echo.GET("/health", s.health)

	rel := s.Echo.Group("/api/relational")
	rel.GET("/ratings_by_user/:user_id", s.ratingsByUser)
	rel.GET("/users_who_rated/:book_id", s.usersWhoRated)
	rel.GET("/top5_books", s.top5Books)

	dw := s.Echo.Group("/api/dw")
	dw.GET("/ratings_over_time", s.ratingsOverTime)
	dw.GET("/top10_books", s.top10Books)
	dw.GET("/ratings_for_genre/:genre", s.ratingsForGenre)
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("query api listening", zap.String("listen", s.listen))
		if err := s.Echo.Start(s.listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), GracefulShutdownTimeout)
	defer cancel()
	return s.Echo.Shutdown(shutdownCtx)
}

func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = c.JSON(he.Code, map[string]interface{}{"error": he.Message})
		return
	}
	s.logger.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
	_ = c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

func (s *Server) health(c echo.Context) error {
	if err := s.repo.Ping(c.Request().Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func intParam(c echo.Context, name string) (int64, error) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be an integer")
	}
	return v, nil
}

func (s *Server) ratingsByUser(c echo.Context) error {
	id, err := intParam(c, "user_id")
	if err != nil {
		return err
	}
	rows, err := s.repo.RatingsByUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func (s *Server) usersWhoRated(c echo.Context) error {
	id, err := intParam(c, "book_id")
	if err != nil {
		return err
	}
	rows, err := s.repo.UsersWhoRated(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func (s *Server) top5Books(c echo.Context) error {
	rows, err := s.repo.TopBooks(c.Request().Context(), 5)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func (s *Server) ratingsOverTime(c echo.Context) error {
	rows, err := s.repo.RatingsOverTime(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func (s *Server) top10Books(c echo.Context) error {
	rows, err := s.repo.TopWarehouseBooks(c.Request().Context(), 10)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func (s *Server) ratingsForGenre(c echo.Context) error {
	genre := c.Param("genre")
	n, err := s.repo.RatingsForGenre(c.Request().Context(), genre)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"genre": genre, "total_ratings": n})
}
