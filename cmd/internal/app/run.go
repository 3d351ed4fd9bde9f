package app

import (
	"context"
	"os/signal"
	"syscall"
)

// Run loads config, builds the agora runtime, and serves until SIGINT or
// SIGTERM. It is the only thing cmd/agora calls; returning an error instead
// of exiting keeps defers effective and the binary trivially testable.
func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := LoadConfig()
	log := NewLogger(cfg.LogLevel)

	a, err := New(cfg, log)
	if err != nil {
		log.Error("app.init.fail", "err", err)
		return err
	}

	return a.Run(ctx)
}
