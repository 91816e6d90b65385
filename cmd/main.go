package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-io-live/live-service/internal/archive"
	"github.com/weiawesome/wes-io-live/live-service/internal/client"
	"github.com/weiawesome/wes-io-live/live-service/internal/config"
	"github.com/weiawesome/wes-io-live/live-service/internal/grpcserver"
	"github.com/weiawesome/wes-io-live/live-service/internal/handler"
	"github.com/weiawesome/wes-io-live/live-service/internal/hub"
	"github.com/weiawesome/wes-io-live/live-service/internal/kafka"
	"github.com/weiawesome/wes-io-live/live-service/internal/service"
	"github.com/weiawesome/wes-io-live/live-service/internal/store"
	pkgconfig "github.com/weiawesome/wes-io-live/live-service/pkg/config"
	"github.com/weiawesome/wes-io-live/live-service/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-live/live-service/pkg/log"
	"github.com/weiawesome/wes-io-live/live-service/pkg/middleware"
	"github.com/weiawesome/wes-io-live/live-service/pkg/pubsub"
	"github.com/weiawesome/wes-io-live/live-service/pkg/storage"
)

func main() {
	// Load configuration
	cfg, v, err := config.LoadFrom(pkgconfig.GetEnv("CONFIG_PATH", "./config"), "config")
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting live-service")

	if pkgconfig.Watch(v, func(v *viper.Viper) {
		lvl := pkglog.SetLevel(v.GetString("log.level"))
		logger.Info().Str("level", lvl.String()).Msg("log level reloaded")
	}) {
		logger.Info().Str("file", v.ConfigFileUsed()).Msg("watching config file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := service.Dependencies{}

	// Recorder control channel
	if cfg.Recorder.Enabled {
		ps, err := pubsub.NewPubSub(cfg.PubSub)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize pubsub")
		}
		defer ps.Close()
		deps.PubSub = ps
		logger.Info().Str("driver", cfg.PubSub.Driver).Msg("recorder channel ready")
	}

	// Kafka producer for session events
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka producer, session events disabled")
		} else {
			defer producer.Close()
			deps.Producer = producer
			logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("connected to kafka")
		}
	}

	// Session snapshot store
	sessions, err := store.New(cfg.Store)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize session store")
	}
	defer sessions.Close()
	deps.Store = sessions
	logger.Info().Str("type", cfg.Store.Type).Msg("session store ready")

	// Session report archive
	var reports *archive.Writer
	if cfg.Archive.Enabled {
		objects, err := storage.New(ctx, cfg.Archive.Storage)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize archive storage")
		}
		reports = archive.NewWriter(objects, cfg.Archive.Prefix)
		deps.Archive = reports
		logger.Info().Str("type", cfg.Archive.Storage.Type).Str("prefix", cfg.Archive.Prefix).Msg("report archive ready")
	}

	// Identity
	var authMiddleware *middleware.AuthMiddleware
	tokens, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 0)
	switch {
	case err == nil:
		deps.Tokens = tokens
		authMiddleware = middleware.NewAuthMiddleware(tokens)
	case cfg.Auth.Required:
		logger.Fatal().Err(err).Msg("auth.required is set but no jwt secret is configured")
	default:
		logger.Warn().Msg("no jwt secret configured, watch tokens ignored and admin routes disabled")
	}
	if cfg.Profile.HTTPAddress != "" {
		deps.Profiles = client.NewProfileClient(cfg.Profile.HTTPAddress, cfg.Profile.Timeout, cfg.Profile.CacheTTL)
		logger.Info().Str("address", cfg.Profile.HTTPAddress).Msg("profile client configured")
	}

	// Initialize hub
	wsHub := hub.NewHub(cfg.WebSocket)
	deps.Notifier = wsHub

	// Initialize service
	liveSvc := service.NewLiveService(deps, cfg.Loop, cfg.Auth)
	if err := liveSvc.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start live service")
	}

	// HTTP
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), pkglog.GinMiddleware(logger))

	wsHandler := handler.NewWSHandler(wsHub, liveSvc, cfg.WebSocket.AllowedOrigins)
	httpHandler := handler.NewHandler(liveSvc, sessions, wsHandler, authMiddleware, cfg.Auth.AdminRole, cfg.ICE.WebRTCServers())
	if reports != nil {
		httpHandler.WithReports(reports, cfg.Archive.URLExpiry)
	}
	httpHandler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var grpcSrv *grpcserver.Server
	if cfg.GRPC.Enabled {
		grpcSrv = grpcserver.New(logger)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("live-service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if grpcSrv != nil {
		g.Go(func() error {
			return grpcSrv.ListenAndServe(cfg.GRPC.Addr())
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info().Msg("shutting down live-service")

		httpHandler.SetServing(false)
		if grpcSrv != nil {
			grpcSrv.SetServing(false)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server forced to shutdown")
		}

		// disconnect handlers still need the service loop, so it stops after they return
		wsHub.Stop()
		if err := wsHub.Wait(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("connections did not drain before shutdown timeout")
		}
		liveSvc.Stop()

		if grpcSrv != nil {
			grpcSrv.Shutdown()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("live-service exited with error")
	}
	logger.Info().Msg("live-service stopped")
}
