package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"reportvault/internal/conf"
	"reportvault/internal/pkg/database"
	"reportvault/internal/pkg/logger"
	"reportvault/internal/report/biz"
	"reportvault/internal/report/data"
	"reportvault/internal/report/service"
	"reportvault/internal/server"
)

var (
	configFile = flag.String("config", "config.yaml", "config file path")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger with config
	logConfig := &logger.Config{
		Level:            config.Log.Level,
		Format:           config.Log.Format,
		Output:           config.Log.Output,
		EnableCaller:     config.Log.EnableCaller,
		EnableStacktrace: config.Log.EnableStacktrace,
		File: logger.FileConfig{
			Filename:   config.Log.File.Filename,
			MaxSize:    config.Log.File.MaxSize,
			MaxAge:     config.Log.File.MaxAge,
			MaxBackups: config.Log.File.MaxBackups,
			Compress:   config.Log.File.Compress,
		},
	}

	log, err := logger.New(logConfig)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	if err := logger.InitGlobal(logConfig); err != nil {
		log.Fatal("failed to initialize global logger", zap.Error(err))
	}

	log.Info("config loaded successfully")

	// Initialize database
	dbConfig := &database.Config{
		Host:            config.Database.Host,
		Port:            config.Database.Port,
		User:            config.Database.User,
		Password:        config.Database.Password,
		DBName:          config.Database.DBName,
		SSLMode:         config.Database.SSLMode,
		MaxIdleConns:    config.Database.MaxIdleConns,
		MaxOpenConns:    config.Database.MaxOpenConns,
		ConnMaxLifetime: config.Database.ConnMaxLifetime,
		LogLevel:        config.Database.LogLevel,
		SlowThreshold:   config.Database.SlowThreshold,
		AutoMigrate:     config.Database.AutoMigrate,
	}

	db, err := database.New(dbConfig, log)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	if err := db.AutoMigrate(&data.ReportPO{}); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Initialize blob store
	blobStore, err := data.NewLocalBlobStore(config.Storage.Dir)
	if err != nil {
		log.Fatal("failed to initialize blob store", zap.Error(err))
	}

	// Initialize repository and use case
	reportRepo := data.NewReportRepo(db)
	policy := biz.UploadPolicy{
		AllowedType: config.Storage.AllowedType,
		MaxSize:     config.Storage.MaxUploadSize,
	}
	reportUseCase := biz.NewReportUseCase(reportRepo, blobStore, policy, log)

	// Initialize service and server
	reportService := service.NewReportService(reportUseCase, log.Logger)
	httpServer := server.NewHTTPServer(config, log.Logger, db, reportService)

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	log.Info("server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
