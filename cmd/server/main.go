package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/theater-qr-provisioning/internal/cache"
	"github.com/iliyamo/theater-qr-provisioning/internal/config"
	"github.com/iliyamo/theater-qr-provisioning/internal/database"
	"github.com/iliyamo/theater-qr-provisioning/internal/handler"
	"github.com/iliyamo/theater-qr-provisioning/internal/middleware"
	"github.com/iliyamo/theater-qr-provisioning/internal/model"
	"github.com/iliyamo/theater-qr-provisioning/internal/provision"
	"github.com/iliyamo/theater-qr-provisioning/internal/qrimage"
	"github.com/iliyamo/theater-qr-provisioning/internal/queue"
	"github.com/iliyamo/theater-qr-provisioning/internal/repository"
	"github.com/iliyamo/theater-qr-provisioning/internal/router"
	queue_publisher "github.com/iliyamo/theater-qr-provisioning/internal/service"
	"github.com/iliyamo/theater-qr-provisioning/internal/storage"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env wins
	config.SetLogLevel(os.Getenv("LOG_LEVEL"))
	logger := config.GetLogger()

	cfg := config.Load()
	provCfg := config.LoadProvisionConfig()
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- MySQL ----
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.WithError(err).Fatal("open database")
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logger.WithError(err).Fatal("migrate database")
		}
	}

	// ---- Redis (optional) ----
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}
	var sessions provision.SessionGuard = provision.NewLocalSessionGuard()
	if locker := config.NewRedisLocker(rdb); locker != nil {
		sessions = provision.NewRedisSessionGuard(locker, provCfg.SessionLockTTL)
	}

	// ---- Object storage ----
	images, err := storage.New(ctx, config.LoadStorageConfig())
	if err != nil {
		logger.WithError(err).Fatal("open object storage")
	}
	if gcs, ok := images.(*storage.GCSStore); ok {
		defer gcs.Close()
	}

	// ---- Rendering ----
	enc, err := qrimage.NewEncoder(provCfg.Encoder)
	if err != nil {
		logger.WithError(err).Fatal("select qr encoder")
	}
	renderer := qrimage.NewCompositor(enc,
		qrimage.NewCachedLoader(qrimage.NewHTTPBrandingLoader(provCfg.BrandingTimeout), provCfg.BrandingCacheTTL))
	renderer.QuietZone = provCfg.QuietZone
	renderer.OuterBorder = provCfg.LogoOuterBorder
	renderer.InnerBorder = provCfg.LogoInnerBorder

	// ---- Repositories and services ----
	theaters := repository.NewTheaterRepo(db)
	names := repository.NewQRNameRepo(db)
	codes := repository.NewCodeRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	index := cache.NewIndex(rdb, cacheCfg, provCfg.IndexTTL)
	events := queue_publisher.NewPublisher(cfg.AMQPURL)
	settings := provision.SettingsFrom(provCfg)

	orch := &provision.Orchestrator{
		Theaters: theaters,
		Names:    names,
		Codes:    codes,
		Images:   images,
		Renderer: renderer,
		Index:    index,
		Events:   events,
		Sessions: sessions,
		Log:      logger,
		Settings: settings,
	}
	seats := &provision.SeatService{
		Codes:    codes,
		Images:   images,
		Renderer: renderer,
		Index:    index,
		Events:   events,
		Log:      logger,
		Settings: settings,
	}

	if err := bootstrapAdmin(ctx, users, cfg); err != nil {
		logger.WithError(err).Fatal("bootstrap admin")
	}

	if cfg.AMQPURL != "" {
		go func() {
			if err := queue.StartConsumer(ctx, cfg.AMQPURL, envOr("PROVISIONING_LOG_PATH", queue.DefaultLogPath)); err != nil && !errors.Is(err, context.Canceled) {
				config.LogError(logger, "main", "StartConsumer", "queue consumer stopped", nil, err)
			}
		}()
	}

	// ---- HTTP ----
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(requestLogger(logger))
	e.Use(middleware.NewTokenBucket(rlCfg, rdb))

	if ls, ok := images.(*storage.LocalStore); ok {
		e.Static("/files", ls.Dir())
	}

	router.RegisterRoutes(e, handler.NewHealthHandler(db, rdb), handler.NewScanHandler(codes))
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, theaters), cfg.JWTSecret)
	router.RegisterOperator(e, router.Operator{
		Theaters:  handler.NewTheaterHandler(theaters),
		Names:     handler.NewQRNameHandler(names, orch, index),
		Selection: handler.NewSelectionHandler(provCfg.MaxSeats),
		Codes:     handler.NewCodeHandler(orch, seats, codes, provCfg),
	}, cfg.JWTSecret, rdb, cacheCfg, rlCfg)

	addr := ":" + cfg.Port
	logger.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "redis": rdb != nil, "amqp": cfg.AMQPURL != ""}).Info("listening")

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("http shutdown")
	}
	logger.Info("stopped")
}

// bootstrapAdmin creates the first admin from ADMIN_EMAIL/ADMIN_PASSWORD
// when no account uses that email yet.
func bootstrapAdmin(ctx context.Context, users *repository.UserRepo, cfg config.Config) error {
	email, password := strings.TrimSpace(os.Getenv("ADMIN_EMAIL")), os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil
	}
	_, err := users.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	id, err := users.Create(ctx, email, password, model.RoleAdmin, 0, cfg.BcryptCost)
	if err != nil && !errors.Is(err, repository.ErrEmailExists) {
		return err
	}
	config.GetLogger().WithFields(logrus.Fields{"user_id": id, "email": email}).Info("bootstrap admin created")
	return nil
}

// requestLogger writes one logrus line per request.
func requestLogger(logger *logrus.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
				"ip":      v.RemoteIP,
				"user_id": middleware.UserID(c),
			})
			if v.Status >= http.StatusInternalServerError {
				entry.Warn("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	})
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
