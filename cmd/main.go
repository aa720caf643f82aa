package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/danktime/internal/adapters/http/api"
	"github.com/okian/danktime/internal/adapters/http/swagger"
	"github.com/okian/danktime/internal/adapters/repository"
	"github.com/okian/danktime/internal/adapters/telegram"
	app "github.com/okian/danktime/internal/app"
	"github.com/okian/danktime/internal/config"
	"github.com/okian/danktime/internal/scheduler"
	"github.com/okian/danktime/pkg/logger"
	"github.com/okian/danktime/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// Only the private registry is exposed.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWith(os.Stdout, cfg.LogFormat); err != nil {
		_, _ = os.Stderr.WriteString("invalid log_format, using text: " + err.Error() + "\n")
		_ = logger.Init()
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal(ctx, "dank time bot failed", logger.Error(err))
	}
}

// run wires every component and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	svc := app.New(
		app.WithLogger(log.Named("service")),
		app.WithStore(store),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithDefaultTimezone(cfg.DefaultTimezone),
	)

	var (
		router *telegram.Router
		sender scheduler.Sender
	)
	if cfg.BotToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			_ = store.Close()
			return fmt.Errorf("telegram login: %w", err)
		}
		router = telegram.NewRouter(bot, svc,
			telegram.WithSelf(bot.Self.ID, bot.Self.UserName),
			telegram.WithPollTimeout(cfg.PollTimeoutSec),
			telegram.WithLogger(log.Named("telegram")),
		)
		svc.SetSender(router)
		sender = router
		log.Info(ctx, "telegram bot authorized", logger.String("bot", bot.Self.UserName))
	} else {
		log.Warn(ctx, "bot_token not set; running without telegram transport")
	}

	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("start service: %w", err)
	}
	metrics.UpdateQueueCapacity(cfg.QueueSize)

	sched := scheduler.New(svc, sender,
		scheduler.WithInterval(time.Duration(cfg.SchedulerIntervalSec)*time.Second),
		scheduler.WithLogger(log.Named("scheduler")),
	)
	// producers feed the service; they finish before it stops.
	var producers sync.WaitGroup
	producers.Add(1)
	go func() {
		defer producers.Done()
		sched.Run(ctx)
	}()
	if router != nil {
		producers.Add(1)
		go func() {
			defer producers.Done()
			router.Run(ctx)
		}()
	}
	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := newHTTPServer(cfg, svc)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := waitGroup(shutdownCtx, &producers); err != nil {
		errs = append(errs, fmt.Errorf("stop producers: %w", err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("service stop: %w", err))
	}
	log.Info(ctx, "dank time bot stopped")
	return errors.Join(errs...)
}

// waitGroup waits for wg or until ctx is done.
func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// openStore returns the configured chat store.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.StoreDriver == config.StoreSQLite {
		store, err := repository.OpenSQLite(ctx, cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.DBPath, err)
		}
		return store, nil
	}
	return repository.NewMemoryStore(), nil
}

func newHTTPServer(cfg *config.Config, deps api.Dependencies) *http.Server {
	mux := http.NewServeMux()
	swagger.Register(mux)
	api.NewServer(deps, cfg.MaxLeaderboardLimit).Register(mux)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}

func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if chats, ok := stats["chats"].(int); ok {
		metrics.UpdateActiveChats(chats)
	}
}
