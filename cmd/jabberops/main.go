// Package main provides the entry point for the jabberops scripting bot.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opsbotio/jabberops/internal/auth"
	"github.com/opsbotio/jabberops/internal/config"
	"github.com/opsbotio/jabberops/internal/router"
	"github.com/opsbotio/jabberops/internal/script"
	"github.com/opsbotio/jabberops/internal/session"
	"github.com/opsbotio/jabberops/internal/xmpp"
)

const (
	// shutdownTimeout is the maximum time to wait for in-flight handlers.
	shutdownTimeout = 30 * time.Second

	// connectRetryPeriod is the pause between connection attempts. Transport
	// failures are never fatal to the process; the bot keeps retrying.
	connectRetryPeriod = 30 * time.Second
)

func main() {
	os.Exit(runMain())
}

func runMain() int {
	if os.Getenv("JABBEROPS_DEBUG") == "1" {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		log.Println("Debug logging enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutting down gracefully...")
		cancel()
	}()

	if err := run(ctx); err != nil {
		log.Printf("Error: %v", err)
		return 1
	}
	return 0
}

func run(ctx context.Context) error {
	logger := slog.Default()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	client := xmpp.NewClient(cfg.XMPPHost, cfg.JID, cfg.Password, cfg.Resource, cfg.UseTLS)
	if err := connectWithRetry(ctx, client, logger); err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(); err != nil {
			logger.Error("Failed to disconnect", slog.Any("error", err))
		}
	}()

	authenticator := auth.NewStaticAuthenticator(cfg.Users)
	factory := script.NewGojaFactory(authenticator)
	registry := session.NewRegistry(factory)
	messenger := xmpp.NewMessenger(client)

	sweeper := session.NewSweeperWithTimeouts(registry, messenger,
		cfg.IdleTimeout, cfg.WarnBefore, cfg.ScanPeriod)
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session sweeper: %w", err)
	}
	defer sweeper.Stop()

	limiter := router.NewLimiter(cfg.FloodCapacity, cfg.FloodRefill, cfg.FloodPeriod)
	rtr := router.New(registry, messenger, router.WithLimiter(limiter))

	events, err := messenger.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to messages: %w", err)
	}

	logger.InfoContext(ctx, "jabberops started, listening for messages",
		slog.String("jid", cfg.JID),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		rtr.Run(ctx, events)
	}()

	<-ctx.Done()

	// Disconnecting unblocks the receive loop; then wait, bounded, for
	// in-flight handlers to finish.
	if err := client.Disconnect(); err != nil {
		logger.Error("Failed to disconnect", slog.Any("error", err))
	}
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		logger.Warn("Timed out waiting for in-flight handlers")
	}
	return nil
}

// connectWithRetry keeps dialing until the connection succeeds or the
// context is canceled.
func connectWithRetry(ctx context.Context, client *xmpp.GoXMPPClient, logger *slog.Logger) error {
	for {
		err := client.Connect(ctx)
		if err == nil {
			return nil
		}
		logger.ErrorContext(ctx, "Failed to connect, will retry",
			slog.Any("error", err),
			slog.Duration("retry_in", connectRetryPeriod),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("shutdown before connection succeeded: %w", ctx.Err())
		case <-time.After(connectRetryPeriod):
		}
	}
}
