package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/photo-describer/internal/auth"
	"github.com/example/photo-describer/internal/config"
	"github.com/example/photo-describer/internal/handlers"
	"github.com/example/photo-describer/internal/inference"
	"github.com/example/photo-describer/internal/logging"
)

func main() {
	cfg, cfgErr := config.LoadGateway()

	debug := cfg != nil && cfg.Debug
	logger, err := logging.NewLogger(debug)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfgErr != nil {
		logger.Fatal("invalid configuration", zap.Error(logging.NewOperationError("config.load", "", cfgErr)))
	}

	describer, err := inference.NewClient(inference.Options{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("failed to build inference client", zap.Error(err))
	}

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(cfg, describer, logger)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("photo gateway listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("model", cfg.Model),
		zap.Duration("inference_timeout", cfg.Timeout),
		zap.Bool("auth_enabled", cfg.JWTSecret != ""),
	)
	if err := serveHTTPServer(server, cfg.ShutdownTimeout, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newRouter(cfg *config.Gateway, describer inference.Service, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = cfg.MaxUploadBytes

	var authMiddleware gin.HandlerFunc
	if cfg.JWTSecret != "" {
		authMiddleware = auth.JWTMiddleware(cfg.JWTSecret, cfg.JWTAudience)
	}

	handlers.RegisterRoutes(r, handlers.NewGateway(describer, logger, cfg.MaxUploadBytes), authMiddleware)
	return r
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	sigCh := signalCh
	if sigCh == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigCh = ch
	}

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
