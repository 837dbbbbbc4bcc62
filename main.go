package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"whalesignal/config"
	"whalesignal/internal/dashboard"
	"whalesignal/internal/evaluator"
	"whalesignal/internal/metrics"
	"whalesignal/internal/notify"
	"whalesignal/internal/reader/okx"
	"whalesignal/internal/render"
	"whalesignal/internal/scheduler"
	"whalesignal/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "", "Path to configuration file (defaults by APP_ENV)")
	flag.Parse()

	path := config.ResolveConfigPath(*configPath)
	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{"path": path}).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":    cfg.App.Name,
		"version":    cfg.App.Version,
		"env":        config.AppEnvironment(),
		"instrument": cfg.Instrument.InstID,
	}).Info("starting whalesignal")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, cfg.Logging.ReportInterval)
	}

	var collectors *metrics.Collectors
	if cfg.Metrics.Prometheus {
		collectors = metrics.Init()
	}

	var wg sync.WaitGroup

	if cfg.Metrics.CloudWatch.Enabled {
		publisher, err := metrics.NewCloudWatchPublisher(ctx, metrics.CloudWatchOptions{
			Region:          cfg.Metrics.CloudWatch.Region,
			Namespace:       cfg.Metrics.CloudWatch.Namespace,
			AccessKeyID:     cfg.Metrics.CloudWatch.AccessKeyID,
			SecretAccessKey: cfg.Metrics.CloudWatch.SecretAccessKey,
		})
		if err != nil {
			log.WithError(err).Error("failed to create cloudwatch publisher")
			os.Exit(1)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			publisher.Run(ctx)
		}()
	}

	eval := evaluator.New(cfg, okx.NewClient(cfg))

	notifier := notify.NewManager(collectors)
	notifier.AddNotifier(notify.NewTelegramNotifier(cfg.Notify.Telegram))
	startupCtx, cancelStartup := context.WithTimeout(ctx, cfg.Notify.Telegram.Timeout+time.Second)
	notifier.SendStartup(startupCtx, cfg.Notify.Telegram.StartMessage)
	cancelStartup()

	dash, err := dashboard.NewServer(cfg.Dashboard, cfg.Instrument.InstID, log)
	if err != nil {
		log.WithError(err).Error("failed to create dashboard server")
		os.Exit(1)
	}
	if dash != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dash.Run(ctx, cfg.App.Name); err != nil {
				log.WithError(err).Error("dashboard server stopped")
			}
		}()
	}

	sched := scheduler.New(cfg, eval, collectors,
		render.NewConsole(os.Stdout, cfg.Scheduler.ClearScreen),
		notifier,
		dash,
	)
	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("scheduler stopped")
	}

	log.Info("starting graceful shutdown")
	stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("whalesignal stopped")
}
