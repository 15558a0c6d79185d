// Пакет server — HTTP-сервер File Organizer с graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apierrors "github.com/bigkaa/goartstore/file-organizer/internal/api/errors"
	"github.com/bigkaa/goartstore/file-organizer/internal/api/generated"
	"github.com/bigkaa/goartstore/file-organizer/internal/api/middleware"
	"github.com/bigkaa/goartstore/file-organizer/internal/config"
)

// HealthProvider — health endpoints для Kubernetes probes.
type HealthProvider interface {
	HealthLive(w http.ResponseWriter, r *http.Request)
	HealthReady(w http.ResponseWriter, r *http.Request)
}

// RouterOptions — параметры сборки маршрутов.
type RouterOptions struct {
	// APIPrefix — префикс операций API (например, /api)
	APIPrefix string
	// CORSAllowedOrigins — разрешённые источники; nil — без CORS
	CORSAllowedOrigins []string
	// StaticDir — директория фронтенда, отдаётся с /; пустая — не отдаётся
	StaticDir string
}

// Server — HTTP-сервер File Organizer.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер.
// Маршруты API монтируются под cfg.APIPrefix; /health/live, /health/ready
// и /metrics — вне префикса. operationMiddlewares (JWT, лимит загрузок)
// выполняются после роутинга, внутри операций API.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	handler generated.ServerInterface,
	health HealthProvider,
	operationMiddlewares ...func(http.Handler) http.Handler,
) *Server {
	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: NewRouter(RouterOptions{
			APIPrefix:          cfg.APIPrefix,
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
			StaticDir:          cfg.StaticDir,
		}, logger, handler, health, operationMiddlewares...),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi router со всеми маршрутами.
func NewRouter(
	opts RouterOptions,
	logger *slog.Logger,
	handler generated.ServerInterface,
	health HealthProvider,
	operationMiddlewares ...func(http.Handler) http.Handler,
) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())

	// Preflight обрабатывается до роутинга и до JWT
	if len(opts.CORSAllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{"Content-Disposition"},
			MaxAge:         300,
		}))
	}

	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Handle("/metrics", promhttp.Handler())

	opMW := make([]generated.MiddlewareFunc, 0, len(operationMiddlewares))
	// Wrapper применяет middleware в обратном порядке: последний — внешний
	for i := len(operationMiddlewares) - 1; i >= 0; i-- {
		opMW = append(opMW, generated.MiddlewareFunc(operationMiddlewares[i]))
	}

	generated.HandlerWithOptions(handler, generated.ChiServerOptions{
		BaseURL:     opts.APIPrefix,
		BaseRouter:  router,
		Middlewares: opMW,
		ErrorHandlerFunc: func(w http.ResponseWriter, _ *http.Request, err error) {
			apierrors.ValidationError(w, err.Error())
		},
	})

	if opts.StaticDir != "" {
		router.Handle("/*", http.FileServer(http.Dir(opts.StaticDir)))
	}

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
			slog.String("api_prefix", s.cfg.APIPrefix),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
