package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/message-scheduler/internal/api"
	"github.com/LeventeLantos/message-scheduler/internal/cache"
	"github.com/LeventeLantos/message-scheduler/internal/client"
	"github.com/LeventeLantos/message-scheduler/internal/config"
	"github.com/LeventeLantos/message-scheduler/internal/dispatch"
	"github.com/LeventeLantos/message-scheduler/internal/logging"
	"github.com/LeventeLantos/message-scheduler/internal/queue"
	"github.com/LeventeLantos/message-scheduler/internal/repo"
	"github.com/LeventeLantos/message-scheduler/internal/scheduler"
	"github.com/LeventeLantos/message-scheduler/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	logCloser, err := logging.Setup(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("message scheduler exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := repo.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("store ready", "dialect", db.Dialect())

	schedules := repo.NewSQLScheduleRepo(db)
	contacts := repo.NewSQLContactDirectory(db)
	history := repo.NewSQLDispatchLog(db)

	var dc cache.DispatchCache = cache.Nop{}
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unavailable, continuing without dispatch cache", "addr", cfg.Redis.Address, "err", err)
		} else {
			dc = cache.NewRedisCache(rdb, cfg.Redis.TTL)
		}
	}

	coordinator := dispatch.NewCoordinator(
		dispatch.NewEmailAdapter(client.NewSMTPClient(cfg.SMTP), cfg.SMTP.Timeout),
		dispatch.NewWhatsAppAdapter(
			client.NewWhatsAppClient(cfg.WhatsApp.URL, cfg.WhatsApp.Token, cfg.WhatsApp.Timeout),
			cfg.WhatsApp.Timeout,
		),
	)

	sweeper := service.NewSweeper(schedules, coordinator).
		WithCache(dc).
		WithWorkers(cfg.Scheduler.Workers).
		WithRate(cfg.Scheduler.RatePerSecond)

	sweepFn := func(trigger string) func(context.Context) {
		return func(ctx context.Context) {
			if _, err := sweeper.Sweep(ctx, trigger); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("sweep failed", "trigger", trigger, "err", err)
			}
		}
	}

	sched, err := scheduler.NewFromSpec(cfg.Scheduler.Spec, cfg.Scheduler.Interval, sweepFn("periodic"))
	if err != nil {
		return err
	}

	svc := service.NewScheduleService(schedules, contacts, history, coordinator, sweeper, cfg.Schedule.BodyMax)

	if cfg.AMQP.Enabled {
		trigger, err := queue.DialAMQPTrigger(cfg.AMQP.URL, cfg.Scheduler.OnceExpiry, sweepFn("once"))
		if err != nil {
			return err
		}
		defer trigger.Close()

		go func() {
			if err := trigger.Run(ctx); err != nil {
				slog.Error("amqp sweep trigger stopped", "err", err)
			}
		}()
		svc.WithTrigger(trigger, cfg.Scheduler.ExpediteWindow)
	} else {
		once, err := scheduler.NewOnceRunner(cfg.Scheduler.OnceExpiry, sweepFn("once"))
		if err != nil {
			return err
		}
		defer once.Close()
		svc.WithTrigger(once, cfg.Scheduler.ExpediteWindow)
	}

	if cfg.Scheduler.AutoStart {
		sched.Start()
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           loggingMiddleware(api.Router(api.NewHandler(sched, svc))),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("message scheduler listening",
			"addr", cfg.Server.Address,
			"schedule", sched.Status().Schedule,
			"workers", cfg.Scheduler.Workers,
			"redis", cfg.Redis.Enabled,
			"amqp", cfg.AMQP.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", w.Header().Get(api.RequestIDHeader),
		)
	})
}
