package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"dinesync/internal/config"
	"dinesync/internal/resource"
	"dinesync/internal/services"
	"dinesync/internal/store"
	"dinesync/internal/subscription"
	"dinesync/internal/transport"
)

// Kitchen display client: live events from the kitchen feed with the
// 10-second poll as the consistency backstop. Headless here; it logs the
// board instead of rendering it.
func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", "dinesync-kds").Logger()

	cfg := config.FromEnv()
	gatewayURL := os.Getenv("GATEWAY_URL")
	if gatewayURL == "" {
		gatewayURL = "http://127.0.0.1:" + cfg.HTTPPort
	}

	api := resource.NewClient(gatewayURL, 5*time.Second)
	api.SetDeviceID("kds-" + hostname())

	var tr transport.Transport
	if os.Getenv("REALTIME_DISABLED") != "" {
		tr = transport.NewDisabled()
		log.Warn().Msg("realtime disabled, relying on polling only")
	} else {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DialTimeout: 2 * time.Second})
		tr = transport.NewRedis(rdb, log)
	}

	st := store.New(log)
	subs := subscription.NewManager(tr, log)
	sync := services.NewSyncService(api, st, subs, cfg.KitchenPollInterval, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sync.Start(ctx)
	defer sync.Close()

	if err := sync.SetSubject(ctx, services.Subject{Kitchen: true}); err != nil {
		log.Fatal().Err(err).Msg("kitchen feed subscribe failed")
	}
	if err := sync.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("initial fetch failed, waiting for poll")
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	var lastLogged int

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case <-ticker.C:
			snap := sync.Snapshot()
			active := 0
			for _, o := range snap.Orders {
				if !o.Status.Terminal() {
					active++
				}
			}
			if active != lastLogged {
				lastLogged = active
				log.Info().Int("active_orders", active).Int("total", len(snap.Orders)).Msg("board updated")
			}
		}
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
