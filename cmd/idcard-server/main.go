package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/student-idcard/api/swagger"
	"github.com/noah-isme/student-idcard/internal/card"
	"github.com/noah-isme/student-idcard/internal/handler"
	internalmiddleware "github.com/noah-isme/student-idcard/internal/middleware"
	"github.com/noah-isme/student-idcard/internal/repository"
	"github.com/noah-isme/student-idcard/internal/service"
	"github.com/noah-isme/student-idcard/pkg/config"
	"github.com/noah-isme/student-idcard/pkg/export"
	"github.com/noah-isme/student-idcard/pkg/jobs"
	"github.com/noah-isme/student-idcard/pkg/logger"
	corsmiddleware "github.com/noah-isme/student-idcard/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/student-idcard/pkg/middleware/requestid"
	"github.com/noah-isme/student-idcard/pkg/storage"
)

// @title Student ID Card API
// @version 1.0.0
// @description Student records with printable two-page ID cards
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	cardFiles, err := storage.NewLocalStorage(cfg.Cards.OutputDir)
	if err != nil {
		logr.Fatal("failed to prepare card directory", zap.String("dir", cfg.Cards.OutputDir), zap.Error(err))
	}
	photoFiles, err := storage.NewLocalStorage(cfg.Photos.Dir)
	if err != nil {
		logr.Fatal("failed to prepare photo directory", zap.String("dir", cfg.Photos.Dir), zap.Error(err))
	}
	if len(cfg.Auth.Users) == 0 {
		logr.Warn("no operator accounts configured; set AUTH_USERS to enable login")
	}

	validate := validator.New()
	store := repository.NewStudentStore(cfg.Store.DataFile, logr.Named("store"))
	metricsSvc := service.NewMetricsService()
	signer := storage.NewSignedURLSigner(cfg.Downloads.SignedURLSecret, cfg.Downloads.SignedURLTTL)

	engine := card.NewEngine(card.Assets{
		FrontBackground: cfg.Cards.FrontBackground,
		BackBackground:  cfg.Cards.BackBackground,
	}, logr.Named("layout"))
	cardSvc := service.NewCardService(store, engine, card.NewRenderer(), cardFiles, signer, metricsSvc, logr.Named("cards"), service.CardConfig{
		APIPrefix: cfg.APIPrefix,
	})
	photoSvc := service.NewPhotoService(photoFiles, service.PhotoConfig{
		SizePx:         cfg.Photos.SizePx,
		MaxUploadBytes: cfg.Photos.MaxUploadBytes,
	}, logr.Named("photos"))
	studentSvc := service.NewStudentService(store, cardSvc, photoSvc, validate, logr.Named("students"), service.StudentConfig{
		DeletePhotoOnRemove: cfg.Photos.DeleteOnRemove,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cardWorker := service.NewCardWorker(cardSvc, logr.Named("card-worker"))
	renderQueue := jobs.NewQueue("card-render", cardWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Cards.RenderWorkers,
		MaxRetries: 2,
		Logger:     logr.Named("queue"),
	})
	renderQueue.Start(ctx)
	defer renderQueue.Stop()
	if err := metricsSvc.TrackQueue("card_render", renderQueue); err != nil {
		logr.Warn("queue metrics unavailable", zap.Error(err))
	}

	transferSvc := service.NewTransferService(store, export.NewCSVExporter(export.WithBOM()), export.NewXLSXExporter(export.DefaultSheet), cardSvc, photoSvc, renderQueue, logr.Named("transfer"))
	authSvc := service.NewAuthService(validate, logr.Named("auth"), service.AuthConfig{
		Users:             cfg.Auth.Users,
		AccessTokenSecret: cfg.Auth.JWTSecret,
		AccessTokenExpiry: cfg.Auth.Expiration,
	})

	studentHandler := handler.NewStudentHandler(studentSvc, validate)
	cardHandler := handler.NewCardHandler(cardSvc, validate)
	transferHandler := handler.NewTransferHandler(transferSvc, cfg.Imports.MaxFileSizeBytes)
	authHandler := handler.NewAuthHandler(authSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, store)

	r := gin.New()
	r.MaxMultipartMemory = cfg.Imports.MaxFileSizeBytes
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics"))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/downloads/:token", cardHandler.SignedDownload)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc, logr.Named("auth")))
	secured.GET("/auth/me", authHandler.Me)
	secured.POST("/auth/refresh", authHandler.Refresh)

	students := secured.Group("/students")
	students.GET("", studentHandler.List)
	students.POST("", studentHandler.Create)
	students.GET("/export", transferHandler.Export)
	students.POST("/import", transferHandler.Import)
	students.POST("/bulk-delete", studentHandler.BulkDelete)
	students.GET("/:id", studentHandler.Get)
	students.PUT("/:id", studentHandler.Update)
	students.DELETE("/:id", studentHandler.Delete)
	students.GET("/:id/card", cardHandler.Download)
	students.POST("/:id/card", cardHandler.Regenerate)
	students.GET("/:id/card/link", cardHandler.Link)

	cards := secured.Group("/cards")
	cards.POST("/regenerate", cardHandler.BulkRegenerate)
	cards.POST("/bundle", cardHandler.Bundle)

	secured.GET("/stats", studentHandler.Stats)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "data_file", store.Path())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	logr.Info("server stopped")
}
