package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-editor/internal/account"
	"resume-editor/internal/auth"
	"resume-editor/internal/editor"
	"resume-editor/internal/realtime"
	"resume-editor/internal/reconcile"
	"resume-editor/internal/resumes"
	"resume-editor/internal/services/health"
	"resume-editor/internal/shared/config"
	"resume-editor/internal/shared/server"
	"resume-editor/internal/shared/server/middleware"
	"resume-editor/internal/shared/storage/db"
	"resume-editor/internal/shared/telemetry"
	"resume-editor/internal/users"
)

// App holds shared dependencies.
type App struct {
	Config         config.Config
	Router         *gin.Engine
	DB             *sql.DB
	Channel        realtime.Channel
	ResumesRepo    resumes.Repo
	UsersRepo      users.Repo
	ResumesService *resumes.Service
	UsersService   *users.Service
	Sessions       *editor.Manager
	Health         *health.Service
	ResumeHandler  *resumes.Handler
	EditorHandler  *editor.Handler
	UsersHandler   *users.Handler
	AccountHandler *account.Handler
	LinkedInAuth   *auth.LinkedInService

	closers []func() error
}

// Build connects backing services and wires handlers and routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	app := &App{
		Config: cfg,
		Health: health.NewService(),
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB
	if sqlDB != nil {
		app.Health.Register("database", sqlDB)
		app.closers = append(app.closers, sqlDB.Close)
	}

	channel, err := buildChannel(cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Channel = channel

	if err := buildServices(app); err != nil {
		_ = app.Close()
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:         app.Config,
		Health:         app.Health,
		ResumeHandler:  app.ResumeHandler,
		EditorHandler:  app.EditorHandler,
		UserHandler:    app.UsersHandler,
		AccountHandler: app.AccountHandler,
		LinkedInAuth:   app.LinkedInAuth,
		RateLimiter:    middleware.NewRateLimiter(nil),
	})

	return app, nil
}

// Close stops sessions and releases connections in reverse build order.
func (a *App) Close() error {
	if a.Sessions != nil {
		a.Sessions.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": err.Error()})
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildChannel(cfg config.Config) (realtime.Channel, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_realtime", map[string]any{"reason": "REDIS_URL empty"})
			return realtime.NewMemoryHub(), nil
		}
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	ch, err := realtime.NewRedisChannel(cfg.RedisURL)
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_realtime", map[string]any{"reason": err.Error()})
			return realtime.NewMemoryHub(), nil
		}
		return nil, err
	}
	return ch, nil
}

func buildServices(app *App) error {
	var resumeRepo resumes.Repo
	var userRepo users.Repo

	if app.DB != nil {
		resumeRepo = &resumes.PGRepo{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
	} else {
		resumeRepo = resumes.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
	}

	switch ch := app.Channel.(type) {
	case *realtime.RedisChannel:
		app.Health.Register("redis", health.PingFunc(ch.Ping))
		app.closers = append(app.closers, ch.Close)
	case *realtime.MemoryHub:
		app.closers = append(app.closers, ch.Close)
	}

	userSvc := users.NewService(userRepo)
	resumeSvc := &resumes.Service{
		Repo:      resumeRepo,
		Profiles:  userSvc,
		Publisher: app.Channel,
	}
	sessions := editor.NewManager(reconcile.Deps{
		Store:    resumeSvc,
		Channel:  app.Channel,
		Debounce: app.Config.SaveDebounce,
	}, app.Config.SessionIdleTimeout)

	app.ResumesRepo = resumeRepo
	app.UsersRepo = userRepo
	app.UsersService = userSvc
	app.ResumesService = resumeSvc
	app.Sessions = sessions
	app.ResumeHandler = resumes.NewHandler(resumeSvc)
	app.EditorHandler = editor.NewHandler(sessions)
	app.UsersHandler = users.NewHandler(userSvc)
	app.AccountHandler = account.NewHandler(account.NewService(resumeRepo, sessions))
	app.LinkedInAuth = auth.NewLinkedInService(
		app.Config.LinkedInClientID,
		app.Config.LinkedInClientSecret,
		app.Config.LinkedInRedirectURL,
		app.Config.UIRedirectURL,
		userSvc,
	)

	if app.ResumeHandler == nil || app.EditorHandler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}
