package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"property-intelligence/internal/analysis"
	"property-intelligence/internal/common/config"
	"property-intelligence/internal/common/database"
	stderrors "property-intelligence/internal/common/errors"
	"property-intelligence/internal/common/logger"
	"property-intelligence/internal/common/observability"
	"property-intelligence/internal/llm"
	"property-intelligence/internal/rss"
	"property-intelligence/internal/server"
	"property-intelligence/internal/store"
	"property-intelligence/internal/websearch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	logStream := server.NewLogStream()
	zapLogger := logger.NewTee(cfg.Logging.Level, cfg.Logging.Format, logStream)
	defer zapLogger.Sync()
	log := logger.NewZapAdapter(zapLogger)

	log.Info("starting api-server", map[string]interface{}{
		"service":     cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	// Postgres with startup retry; the database container often comes up
	// slower than the app.
	var pg *database.PostgresDB
	err = retryWithBackoff(5, 2*time.Second, func() error {
		var connErr error
		pg, connErr = database.NewPostgres(cfg.Database.Postgres)
		if connErr != nil {
			return connErr
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return pg.Ping(ctx)
	}, log)
	if err != nil {
		log.WithError(stderrors.NewDatabaseConnectionError(err)).Error("could not connect to postgres, exiting", nil)
		os.Exit(1)
	}
	defer pg.Close()

	st := store.New(pg, log)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	if err := st.EnsureSchema(startupCtx); err != nil {
		log.WithError(err).Error("schema bootstrap failed, exiting", nil)
		os.Exit(1)
	}
	if cfg.App.SeedDemoUsers {
		if err := st.SeedDemoUsers(startupCtx); err != nil {
			log.WithError(err).Warn("demo user seeding failed", nil)
		}
	}

	// Redis is optional; the RSS cache degrades to direct fetches.
	var redisClient *database.RedisClient
	if rc, rErr := database.NewRedis(cfg.Database.Redis); rErr == nil {
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if pingErr := rc.Ping(pingCtx); pingErr != nil {
			log.WithError(pingErr).Warn("redis unreachable, running without RSS cache", nil)
		} else {
			redisClient = rc
			defer redisClient.Close()
		}
		cancel()
	}

	claude := llm.NewClaude(cfg.LLM.Claude, log)
	gemini := llm.NewGemini(cfg.LLM.Gemini, log)
	news := rss.New(cfg.RSS, redisClient, log)
	search := websearch.New(cfg.APIs.WebSearch, log)

	svc := analysis.NewService(analysis.Options{
		BudgetLimit:        cfg.Budget.SessionTokenLimit,
		DecisionMaxTokens:  cfg.LLM.DecisionMaxTokens,
		SynthesisMaxTokens: cfg.LLM.SynthesisMaxTokens,
		StepTimeout:        config.GetDuration(cfg.LLM.StepTimeout),
		PresetQuestions:    cfg.App.ExampleQuestions,
	}, claude, gemini, st, news, search, log, obs)

	srv := server.New(*cfg, svc, st, logStream, func() map[string]bool {
		return map[string]bool{
			"claude":     claude.Available(),
			"gemini":     gemini.Available(),
			"web_search": search.Available(),
			"redis":      redisClient != nil,
		}
	}, log)

	httpServer := srv.HTTPServer()

	go func() {
		log.Info("http server listening", map[string]interface{}{
			"addr": httpServer.Addr,
		})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server failed", nil)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown incomplete", nil)
	}
}

// retryWithBackoff runs fn up to attempts times with exponentially growing
// sleeps between failures.
func retryWithBackoff(attempts int, initialDelay time.Duration, fn func() error, log logger.Logger) error {
	delay := initialDelay
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts {
			log.WithError(err).Warn("attempt failed, retrying", map[string]interface{}{
				"attempt": i,
				"delay":   delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}
