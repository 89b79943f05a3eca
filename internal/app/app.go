// Package app wires configuration, infrastructure and services into the
// processes started by cmd/server and cmd/ticketctl.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/notification"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/router"
	"github.com/iliyamo/event-ticketing/internal/scheduler"
	"github.com/iliyamo/event-ticketing/internal/service"
	"github.com/iliyamo/event-ticketing/internal/storage"
)

// App holds every long lived dependency of the process.
type App struct {
	Cfg    config.Config
	Integ  *config.Integrations
	Logger *slog.Logger

	DB     *sqlx.DB
	Redis  *redis.Client
	Images storage.ImageStore
	Jobs   *queue.DelayQueue

	Dispatcher *notification.Dispatcher
	Publisher  queue.Publisher

	Auth         *service.AuthService
	Events       *service.EventService
	Tickets      *service.TicketService
	Vouchers     *service.VoucherService
	Loyalty      *service.LoyaltyService
	Transactions *service.TransactionService
	Attendees    *service.AttendeeService
	Dashboard    *service.DashboardService
	Sweeper      *service.Sweeper

	closers []func() error
}

// New loads configuration and connects to MySQL and (optionally) Redis.
func New(ctx context.Context) (*App, error) {
	config.LoadDotEnv()
	cfg := config.Load()
	integ, err := config.LoadIntegrations(ctx)
	if err != nil {
		return nil, err
	}
	logger := config.NewLogger(cfg)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &App{Cfg: cfg, Integ: integ, Logger: logger, DB: db}
	a.closers = append(a.closers, db.Close)

	a.Redis = config.NewRedisClient(logger)
	if a.Redis != nil {
		a.closers = append(a.closers, a.Redis.Close)
	}

	a.Images, err = storage.New(integ.Storage, cfg.PublicBaseURL, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	if s3, ok := a.Images.(*storage.S3Store); ok {
		bctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := s3.EnsureBucket(bctx); err != nil {
			logger.Warn("bucket check failed, uploads may fail", "error", err)
		}
		cancel()
	}
	a.Jobs = queue.NewDelayQueue(a.Redis)

	if err := a.wireNotifications(); err != nil {
		a.Close()
		return nil, err
	}
	a.wireServices()
	return a, nil
}

func (a *App) wireNotifications() error {
	render, err := notification.NewRenderer(a.Integ.Mail.FromName)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	a.Dispatcher = notification.NewDispatcher(render,
		notification.NewSender(a.Integ.Mail, a.Logger),
		notification.NewPusher(a.Integ.PubNub, a.Logger),
		a.Logger)

	if a.Integ.AMQP.Enabled {
		pub := queue.NewAMQPPublisher(a.Integ.AMQP.URL, a.Integ.AMQP.Queue, a.Logger)
		a.closers = append(a.closers, pub.Close)
		a.Publisher = pub
		return nil
	}
	direct := queue.NewDirectPublisher(a.Dispatcher, a.Logger)
	a.closers = append(a.closers, func() error { direct.Wait(); return nil })
	a.Publisher = direct
	return nil
}

func (a *App) wireServices() {
	repos := repository.NewSet()
	a.Auth = service.NewAuthService(a.DB, repos, a.Publisher, a.Cfg, a.Integ.Loyalty, a.Logger)
	a.Events = service.NewEventService(a.DB, repos, a.Images, a.Integ.Storage.MaxBytes, a.Logger)
	a.Tickets = service.NewTicketService(a.DB, repos)
	a.Vouchers = service.NewVoucherService(a.DB, repos)
	a.Loyalty = service.NewLoyaltyService(a.DB, repos)
	a.Transactions = service.NewTransactionService(a.DB, repos, a.Jobs, a.Publisher, a.Images, a.Integ, a.Logger)
	a.Attendees = service.NewAttendeeService(a.DB, repos)
	a.Dashboard = service.NewDashboardService(a.DB, repos)
	a.Sweeper = service.NewSweeper(a.DB, repos, a.Transactions, int(a.Integ.Jobs.BatchSize), a.Logger)
}

// Migrate applies pending schema migrations.
func (a *App) Migrate(ctx context.Context) ([]string, error) {
	return database.Migrate(ctx, a.DB, a.Logger)
}

// Router builds the HTTP API.
func (a *App) Router() *echo.Echo {
	checks := map[string]handler.Pinger{"mysql": a.DB.PingContext}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}
	h := router.Handlers{
		Health:       handler.NewHealthHandler(checks),
		Auth:         handler.NewAuthHandler(a.Auth),
		Events:       handler.NewEventHandler(a.Events),
		Tickets:      handler.NewTicketHandler(a.Tickets),
		Vouchers:     handler.NewVoucherHandler(a.Vouchers),
		Loyalty:      handler.NewLoyaltyHandler(a.Loyalty),
		Transactions: handler.NewTransactionHandler(a.Transactions),
		Attendees:    handler.NewAttendeeHandler(a.Attendees),
		Dashboard:    handler.NewDashboardHandler(a.Dashboard),
	}
	opt := router.Options{
		JWTSecret: a.Cfg.JWTSecret,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		Redis:     a.Redis,
		BodyLimit: fmt.Sprintf("%dK", a.Integ.Storage.MaxBytes/1024+512),
	}
	if local, ok := a.Images.(*storage.LocalStore); ok {
		opt.UploadsDir = local.Dir()
	}
	return router.New(h, opt, a.Logger)
}

// Scheduler builds the sweep cron and the deferred job poller.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	var poller scheduler.Poller
	if a.Jobs.Enabled() {
		poller = queue.NewPoller(a.Jobs, a.Transactions.RunJob, a.Integ.Jobs.PollInterval, a.Integ.Jobs.BatchSize, a.Logger)
	}
	return scheduler.New(a.Sweeper, poller, a.Integ.Jobs.SweepInterval, a.Logger)
}

// RunWorkers runs the scheduler and, when AMQP is enabled, the notification
// consumer.  It blocks until ctx is done.
func (a *App) RunWorkers(ctx context.Context) error {
	sched, err := a.Scheduler()
	if err != nil {
		return err
	}
	errc := make(chan error, 1)
	if a.Integ.AMQP.Enabled {
		consumer := queue.NewConsumer(a.Integ.AMQP.URL, a.Integ.AMQP.Queue, a.Dispatcher, a.Logger)
		go func() { errc <- consumer.Run(ctx) }()
	} else {
		errc <- nil
	}
	sched.Run(ctx)
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Serve runs the HTTP server (and the workers when RunWorkers is set) until
// ctx is cancelled, then shuts down gracefully.
func (a *App) Serve(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	e := a.Router()
	addr := ":" + a.Cfg.Port

	workersDone := make(chan error, 1)
	if a.Cfg.RunWorkers {
		go func() { workersDone <- a.RunWorkers(ctx) }()
	} else {
		workersDone <- nil
	}

	serveErr := make(chan error, 1)
	go func() {
		a.Logger.Info("listening", "addr", addr, "env", a.Cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var err error
	select {
	case err = <-serveErr:
		stop()
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("http shutdown failed", "error", err)
	}
	if werr := <-workersDone; err == nil {
		err = werr
	}
	return err
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close failed", "error", err)
		}
	}
}
