package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"marketquotes/internal/app"
	"marketquotes/internal/config"
	"marketquotes/internal/logger"
)

func main() {
	log := logger.New()

	// a missing .env is fine
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAgeDays); err != nil {
		log.WithError(err).Fatal("logger")
	}
	if cfg.MarketAPI.Enabled && cfg.MarketAPI.APIKey == "" {
		log.Warn("marketapi.enabled=true but MARKETAPI_API_KEY not set")
	}

	a, err := app.New(cfg, log, app.Options{})
	if err != nil {
		log.WithError(err).Fatal("app")
	}

	sched := cron.New()
	if _, err := sched.AddFunc(cfg.Cache.SweepSchedule, func() {
		st := a.State.Sweep()
		log.WithComponent("sweep").WithFields(logger.Fields{
			"items":   st.Items,
			"batches": st.Batches,
			"clients": st.Clients,
		}).Debug("swept expired state")
	}); err != nil {
		log.WithError(err).Fatal("cache.sweep_schedule")
	}
	sched.Start()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           newServer(a, cfg, log).handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout() + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithFields(logger.Fields{"addr": srv.Addr}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server")
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown")
	}
	<-sched.Stop().Done()
}
