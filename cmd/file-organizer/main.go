// Точка входа File Organizer — сервиса раскладки загруженных файлов по категориям.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/bigkaa/goartstore/file-organizer/internal/api/handlers"
	"github.com/bigkaa/goartstore/file-organizer/internal/api/middleware"
	"github.com/bigkaa/goartstore/file-organizer/internal/config"
	"github.com/bigkaa/goartstore/file-organizer/internal/domain/category"
	"github.com/bigkaa/goartstore/file-organizer/internal/mirror"
	"github.com/bigkaa/goartstore/file-organizer/internal/server"
	"github.com/bigkaa/goartstore/file-organizer/internal/service"
	"github.com/bigkaa/goartstore/file-organizer/internal/storage/journal"
	"github.com/bigkaa/goartstore/file-organizer/internal/storage/layout"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("File Organizer запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("api_prefix", cfg.APIPrefix),
		slog.String("store", cfg.Store),
	)

	ctx := context.Background()

	// --- Инициализация компонентов ---

	// 1. Таблица категорий
	table, err := category.LoadTable(cfg.CategoriesFile)
	if err != nil {
		logger.Error("Ошибка загрузки таблицы категорий", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Таблица категорий загружена", slog.Int("extensions", table.Len()))

	// 2. Хранилище записей
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка открытия хранилища записей", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.close()

	// 3. Раскладка на диске и журнал операций
	fsLayout := layout.New(cfg.OrganizedDir, cfg.UploadDir)
	if err := fsLayout.EnsureUploadDir(); err != nil {
		logger.Error("Ошибка создания директории загрузок", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logDiskUsage(logger, cfg.OrganizedDir, int64(cfg.MaxFiles)*cfg.MaxFileSize)

	opJournal, err := journal.New(cfg.JournalDir, logger)
	if err != nil {
		logger.Error("Ошибка инициализации журнала", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Зеркало S3 (опционально, best effort)
	var fileMirror service.Mirror
	var s3Mirror *mirror.Mirror
	if cfg.MirrorEnabled() {
		s3Mirror, err = mirror.New(ctx, mirror.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		}, cfg.S3Prefix, logger)
		if err != nil {
			logger.Warn("S3-зеркало недоступно, запуск без зеркалирования",
				slog.String("endpoint", cfg.S3Endpoint),
				slog.String("error", err.Error()),
			)
		} else {
			fileMirror = s3Mirror
			logger.Info("S3-зеркало настроено",
				slog.String("endpoint", cfg.S3Endpoint),
				slog.String("bucket", cfg.S3Bucket),
			)
		}
	}

	// 5. Сервисы
	statsSvc := service.NewStatsService(store.repo, cfg.StatsCacheTTL, logger)
	organizeSvc := service.NewOrganizeService(fsLayout, table, store.repo, opJournal, statsSvc, fileMirror, logger)
	clearSvc := service.NewClearService(fsLayout, store.repo, opJournal, statsSvc, fileMirror, logger)
	exportSvc := service.NewExportService(store.repo, logger)
	arranger := service.NewArranger(cfg.CollationLocale)

	// 5.1 Восстановление незавершённых операций до приёма запросов
	recovered, err := service.NewRecoveryService(fsLayout, store.repo, opJournal, clearSvc, logger).Recover(ctx)
	if err != nil {
		logger.Error("Ошибка восстановления журнала", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Журнал операций проверен",
		slog.Int("rolled_back", recovered.RolledBack),
		slog.Int("completed", recovered.Completed),
		slog.Int("cleared", recovered.Cleared),
	)

	// 6. Фоновые процессы

	// 6.1 Сверка записей с диском
	reconcileSvc := service.NewReconcileService(store.repo, fsLayout, cfg.ReconcileInterval, logger)
	reconcileSvc.Start(ctx)

	// 6.2 topologymetrics — мониторинг зависимостей
	targets := service.DephealthTargets{JWKSURL: cfg.JWKSUrl}
	if store.pgDB != nil {
		targets.DB = store.pgDB
		targets.PostgresURL = cfg.DatabaseURL()
	}
	if fileMirror != nil {
		targets.MirrorURL = service.MirrorEndpointURL(cfg.S3Endpoint, cfg.S3UseSSL)
	}

	var deps handlers.DependencyHealth
	dephealthSvc, err := service.NewDephealthService(serviceID(), cfg.DephealthGroup, targets, cfg.DephealthCheckInterval, logger)
	switch {
	case errors.Is(err, service.ErrNoDependencies):
		logger.Info("Внешних зависимостей нет, topologymetrics не запущен")
	case err != nil:
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
	default:
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
			dephealthSvc = nil
		} else {
			deps = dephealthSvc
		}
	}

	// 7. Handlers
	healthHandler := handlers.NewHealthHandler(cfg.OrganizedDir, cfg.UploadDir, store.readiness, deps)
	apiHandler := handlers.NewAPIHandler(
		handlers.NewFilesHandler(organizeSvc, arranger, clearSvc, cfg.MaxFileSize, cfg.MaxFiles, logger),
		handlers.NewQueryHandler(statsSvc, exportSvc, logger),
		handlers.NewMaintenanceHandler(reconcileSvc),
		healthHandler,
	)

	// 8. Middleware операций: JWT (если включён) и лимит загрузок
	var operationMW []func(http.Handler) http.Handler
	if cfg.AuthEnabled() {
		jwtAuth, err := middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:         cfg.JWKSUrl,
			ClientTimeout:   cfg.JWKSClientTimeout,
			RefreshInterval: cfg.JWKSRefreshInterval,
			JWTLeeway:       cfg.JWTLeeway,
		}, logger)
		if err != nil {
			logger.Error("Ошибка инициализации JWT", slog.String("error", err.Error()))
			os.Exit(1)
		}
		operationMW = append(operationMW, jwtAuth.Middleware())
		logger.Info("JWT аутентификация настроена", slog.String("jwks_url", cfg.JWKSUrl))
	}
	operationMW = append(operationMW,
		middleware.RateLimit(cfg.UploadRateLimit, cfg.UploadRateBurst, logger, cfg.APIPrefix+"/upload"))

	// 9. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, healthHandler, operationMW...)
	runErr := srv.Run()

	// --- Остановка фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	reconcileSvc.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	if s3Mirror != nil {
		closeCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
		if err := s3Mirror.Close(closeCtx); err != nil {
			logger.Warn("Очередь зеркала не обработана", slog.String("error", err.Error()))
		}
		cancel()
	}

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		store.close()
		os.Exit(1)
	}
	logger.Info("File Organizer остановлен")
}
