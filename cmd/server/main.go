package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Jam/internal/adapters/http"
	wsignal "github.com/dkeye/Jam/internal/adapters/signal"
	"github.com/dkeye/Jam/internal/app"
	"github.com/dkeye/Jam/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	repo := app.NewRepository()
	lifecycle := app.NewLifecycle(repo, cfg.RoomCapacity)
	registry := app.NewRegistry()
	projector := app.NewProjector(cfg.ComposeTime, cfg.VoteTime)

	ctl := wsignal.NewController(lifecycle, repo, registry, projector)
	if cfg.ReadLimit > 0 {
		ctl.ReadLimit = cfg.ReadLimit
	}
	if cfg.PingPeriod > 0 {
		ctl.PingPeriod = cfg.PingPeriod
	}

	go runReaper(ctx, cfg.ReapInterval, lifecycle, ctl)

	r := router.SetupRouter(ctx, cfg, ctl, repo)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Jam server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

// runReaper periodically sweeps disconnected members and empty rooms,
// pushing the surviving rooms' new state to their members.
func runReaper(ctx context.Context, interval time.Duration, lifecycle *app.Lifecycle, ctl *wsignal.Controller) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updated, destroyed := lifecycle.ReapIdle()
			for _, room := range updated {
				ctl.BroadcastRoomUpdated(room)
			}
			for _, id := range destroyed {
				ctl.Registry.EvictRoom(id)
			}
		}
	}
}
