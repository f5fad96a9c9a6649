package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/notesync/internal/bluesky"
	"github.com/xxxsen/notesync/internal/config"
	"github.com/xxxsen/notesync/internal/db"
	"github.com/xxxsen/notesync/internal/filestore"
	"github.com/xxxsen/notesync/internal/github"
	"github.com/xxxsen/notesync/internal/handler"
	"github.com/xxxsen/notesync/internal/job"
	"github.com/xxxsen/notesync/internal/middleware"
	"github.com/xxxsen/notesync/internal/repo"
	"github.com/xxxsen/notesync/internal/schedule"
	"github.com/xxxsen/notesync/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "notesync",
		Short: "notesync backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run notesync server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.Int64("github_app_id", cfg.GitHub.AppID),
	)

	userRepo := repo.NewUserRepo(conn)
	bookRepo := repo.NewBookRepo(conn)
	statusRepo := repo.NewSyncStatusRepo(conn)
	noteRepo := repo.NewNoteRepo(conn)
	postRepo := repo.NewPostRecordRepo(conn)
	accountRepo := repo.NewSocialAccountRepo(conn)

	ghClient, err := github.New(cfg.GitHub.AppID, cfg.GitHub.PrivateKeyFile, github.WithAPIBase(cfg.GitHub.APIBase))
	if err != nil {
		return fmt.Errorf("init github client: %w", err)
	}
	poster := bluesky.NewPoster(cfg.Bluesky.ServiceURL)

	syncOpts := []service.SyncOption{
		service.WithFetchWorkers(cfg.GitHub.FetchWorkers),
		service.WithFetchRetries(cfg.GitHub.FetchRetries),
	}
	if cfg.Archive.Enable {
		store, err := filestore.New(cfg.Archive.Type, cfg.Archive.Data)
		if err != nil {
			return fmt.Errorf("init archive store: %w", err)
		}
		syncOpts = append(syncOpts, service.WithArchiver(store))
	}
	syncService := service.NewSyncService(ghClient, noteRepo, statusRepo, syncOpts...)
	fanoutService := service.NewFanoutService(accountRepo, postRepo, poster, cfg.Bluesky.PostWorkers)
	bookService := service.NewBookService(bookRepo, statusRepo, noteRepo, postRepo, syncService, fanoutService)
	authService := service.NewAuthService(userRepo, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
	accountService := service.NewAccountService(accountRepo)

	deps := handler.RouterDeps{
		Auth:       handler.NewAuthHandler(authService),
		Books:      handler.NewBookHandler(bookService),
		Account:    handler.NewAccountHandler(accountService),
		Webhook:    handler.NewWebhookHandler(bookService),
		JWTSecret:  []byte(cfg.JWTSecret),
		SyncWindow: 10 * time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Resync.Enable {
		scheduler := schedule.NewCronScheduler()
		if err := scheduler.AddJob(job.NewResyncJob(bookRepo, syncService, fanoutService), cfg.Resync.CronSpec); err != nil {
			return fmt.Errorf("schedule resync job: %w", err)
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
