package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jredh-dev/greenswap/config"
	"github.com/jredh-dev/greenswap/internal/database"
	"github.com/jredh-dev/greenswap/internal/firebaseapp"
	"github.com/jredh-dev/greenswap/internal/items"
	"github.com/jredh-dev/greenswap/internal/metrics"
	"github.com/jredh-dev/greenswap/internal/notify"
	"github.com/jredh-dev/greenswap/internal/review"
	"github.com/jredh-dev/greenswap/internal/swap"
	"github.com/jredh-dev/greenswap/internal/token"
	"github.com/jredh-dev/greenswap/internal/web/handlers"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := cfg.NewLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	db, err := database.New(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	fb, err := firebaseapp.Open(ctx, firebaseapp.FromConfig(cfg.Firebase))
	if err != nil {
		return err
	}
	defer fb.Close()

	sink, closeSink, err := newSink(cfg, fb, log)
	if err != nil {
		return err
	}
	defer closeSink()

	dispatcher := notify.NewDispatcher(sink, cfg.Notify.Buffer, log, m)
	defer dispatcher.Close()

	if cfg.JWT.SigningKey == "" {
		if !cfg.IsDevelopment() {
			return errors.New("JWT_SIGNING_KEY is required outside development")
		}
		key, err := token.GenerateSigningKey()
		if err != nil {
			return err
		}
		log.Warn("JWT_SIGNING_KEY is empty, using a random key; tokens will not survive a restart")
		cfg.JWT.SigningKey = key
	}
	var tokens *token.Service
	if fb != nil {
		tokens = token.New(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.TokenTTL, fb.Auth)
	} else {
		tokens = token.New(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.TokenTTL, nil)
	}

	engine := swap.New(db, items.NewStore(db), dispatcher, log, m, swap.Config{
		SideEffectAttempts: cfg.Swap.SideEffectAttempts,
		SideEffectBackoff:  cfg.Swap.SideEffectBackoff,
		SideEffectBudget:   cfg.Swap.SideEffectBudget,
	})
	h := handlers.New(db, items.New(db, log), engine, review.New(db, dispatcher, log, m), tokens, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	h.Routes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("greenswap server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Server.Env),
			zap.String("notify_sink", cfg.Notify.Sink))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.Swap.ReconcileInterval > 0 {
		g.Go(func() error {
			reconcileLoop(gctx, engine, cfg.Swap.ReconcileInterval, log)
			return nil
		})
	}

	err = g.Wait()
	log.Info("server stopped")
	return err
}

func reconcileLoop(ctx context.Context, engine *swap.Engine, every time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := engine.Reconcile(ctx); err != nil && ctx.Err() == nil {
				log.Error("periodic reconcile failed", zap.Error(err))
			}
		}
	}
}

// newSink builds the configured notification sink and its cleanup.
func newSink(cfg *config.Config, fb *firebaseapp.Clients, log *zap.Logger) (notify.Sink, func(), error) {
	switch cfg.Notify.Sink {
	case config.SinkKafka:
		s := notify.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		return s, func() {
			if err := s.Close(); err != nil {
				log.Warn("close kafka sink", zap.Error(err))
			}
		}, nil
	case config.SinkFirestore:
		if fb == nil {
			return nil, nil, errors.New("firestore sink needs a firebase project")
		}
		return notify.NewFirestoreSink(fb.Firestore, notify.Collection), func() {}, nil
	}
	return notify.LogSink{Log: log}, func() {}, nil
}
