package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tg_broadcast_bot/internal/broadcast"
	"tg_broadcast_bot/internal/config"
	"tg_broadcast_bot/internal/feature/operator"
	"tg_broadcast_bot/internal/feature/tracker"
	"tg_broadcast_bot/internal/health"
	"tg_broadcast_bot/internal/logging"
	"tg_broadcast_bot/internal/store"
	"tg_broadcast_bot/internal/telegram"
	"tg_broadcast_bot/internal/wizard"
)

const (
	telegramShutdownTimeout = 10 * time.Second
	healthShutdownTimeout   = 5 * time.Second
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":      "startup",
		"chats_file": cfg.ChatsFile,
	}).Info("configuration loaded")

	registry, err := store.Open(cfg.ChatsFile)
	if err != nil {
		logger.WithError(err).Error("chat registry open error")

		var corrupt *store.CorruptError
		if errors.As(err, &corrupt) {
			fmt.Fprintf(os.Stderr, "chat registry file %s is unreadable: %v\n", corrupt.Path, err)
			fmt.Fprintln(os.Stderr, "fix or remove the file, then restart; the bot never rewrites a file it cannot parse")
		} else {
			fmt.Fprintf(os.Stderr, "chat registry open error: %v\n", err)
		}
		os.Exit(1)
	}

	logger.WithFields(logging.Fields{
		"event": "registry_open",
		"chats": registry.Len(),
	}).Info("chat registry loaded")

	gate, err := operator.NewGate(cfg.BotOwnerID, logger)
	if err != nil {
		logger.WithError(err).Error("operator gate setup error")
		fmt.Fprintf(os.Stderr, "operator gate setup error: %v\n", err)
		os.Exit(1)
	}

	chatTracker := tracker.NewTracker(registry, logger)
	sessions := wizard.NewManager(logger)

	factory := func(sender *telegram.PostSender) (telegram.Broadcaster, error) {
		opts := []broadcast.Option{
			broadcast.WithWorkers(cfg.BroadcastWorkers),
			broadcast.WithRate(cfg.BroadcastRate),
			broadcast.WithLogger(logger),
		}
		if cfg.AutoUnregister {
			opts = append(opts, broadcast.WithRemover(registry))
		}
		return broadcast.NewDispatcher(sender, telegram.ClassifySendError, opts...)
	}

	tgClient, err := telegram.NewClient(cfg, logger,
		telegram.WithRegistry(registry),
		telegram.WithTracker(chatTracker),
		telegram.WithSessions(sessions),
		telegram.WithOperatorGate(gate),
		telegram.WithBroadcasterFactory(factory),
	)
	if err != nil {
		logger.WithError(err).Error("telegram client setup error")
		fmt.Fprintf(os.Stderr, "telegram client setup error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	healthServer := health.NewServer(cfg.HTTPPort, registry, logger)
	go func() {
		if err := healthServer.ListenAndServe(); err != nil {
			logger.WithError(err).Error("health server error")
		}
	}()

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telegramCtx, cancelTelegram := context.WithCancel(context.Background())
	tgDone := make(chan struct{})

	go func() {
		tgClient.Start(telegramCtx)
		close(tgDone)
	}()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping telegram polling")
	case <-tgDone:
		logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
	}

	cancelTelegram()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), telegramShutdownTimeout)
	select {
	case <-tgDone:
	case <-waitCtx.Done():
		logger.WithField("event", "telegram_shutdown_timeout").Warn("timed out waiting for telegram client to stop")
	}
	cancelWait()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), healthShutdownTimeout)
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("health server shutdown error")
	}
	cancelShutdown()

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}
