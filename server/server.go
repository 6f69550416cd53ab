// Package server wires the HTTP surface: the echo instance, the v1 API
// routes, the metrics endpoint, and the background retention sweep.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/shenlehan/fashion-recommendation/internal/profile"
	"github.com/shenlehan/fashion-recommendation/observability/metrics"
	apiv1 "github.com/shenlehan/fashion-recommendation/server/router/api/v1"
	"github.com/shenlehan/fashion-recommendation/session"
	"github.com/shenlehan/fashion-recommendation/store"
)

type Server struct {
	echoServer *echo.Echo
	profile    *profile.Profile
	store      *store.Store
	cleanupJob *session.CleanupJob
	exporter   *metrics.Exporter
}

func NewServer(ctx context.Context, instanceProfile *profile.Profile, storeInstance *store.Store) (*Server, error) {
	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request", "uri", v.URI, "status", v.Status)
			return nil
		},
	}))

	exporter := metrics.NewExporter(metrics.DefaultConfig())

	apiService, err := apiv1.NewAPIV1Service(ctx, instanceProfile, storeInstance, exporter)
	if err != nil {
		return nil, errors.Wrap(err, "create API v1 service")
	}

	server := &Server{
		echoServer: echoServer,
		profile:    instanceProfile,
		store:      storeInstance,
		exporter:   exporter,
		cleanupJob: session.NewCleanupJob(storeInstance, apiService.Sessions, session.CleanupConfig{
			RetentionDays: instanceProfile.SessionRetentionDays,
		}),
	}

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(200, "Service ready.")
	})
	echoServer.GET("/metrics", echo.WrapHandler(exporter.Handler()))
	apiService.RegisterRoutes(echoServer.Group("/api/v1"))

	return server, nil
}

func (s *Server) Start(ctx context.Context) error {
	s.cleanupJob.Start(ctx, s.exporter.RecordSessionsSwept)

	if s.profile.UNIXSock != "" {
		go func() {
			if err := startUnixListener(s.echoServer, s.profile.UNIXSock); err != nil {
				slog.Error("unix listener stopped", "error", err)
			}
		}()
		return nil
	}

	address := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	go func() {
		if err := s.echoServer.Start(address); err != nil {
			slog.Error("listener stopped", "error", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	s.cleanupJob.Stop()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shut down server", "error", err)
	}
	if err := s.store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	slog.Info("server shut down")
}
