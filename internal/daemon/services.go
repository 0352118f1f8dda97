package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"

	"github.com/muurk/argo/internal/config"
	"github.com/muurk/argo/internal/logging"
	"github.com/muurk/argo/internal/transport"
)

// service adapts a function to suture.Service with a readable name in
// supervisor events.
type service struct {
	name  string
	serve func(ctx context.Context) error
}

func asService(name string, fn func(ctx context.Context) error) suture.Service {
	return &service{name: name, serve: fn}
}

func (s *service) Serve(ctx context.Context) error { return s.serve(ctx) }

func (s *service) String() string { return s.name }

// noRestartErr keeps the cause visible while telling suture not to restart.
type noRestartErr struct {
	err error
}

func noRestart(err error) error {
	if err == nil {
		return suture.ErrDoNotRestart
	}
	return &noRestartErr{err}
}

func (e *noRestartErr) Error() string { return e.err.Error() }

func (e *noRestartErr) Unwrap() error { return e.err }

func (e *noRestartErr) Is(target error) bool { return target == suture.ErrDoNotRestart }

// receiverService runs one configured receiver transport. Configuration
// errors stop only this transport; anything else is restarted with backoff.
type receiverService struct {
	config   config.Transport
	registry *transport.Registry
	expand   func(string) string
	dispatch transport.ProbeProcessor
}

func (s *receiverService) String() string {
	return "transport/" + s.config.Name
}

func (s *receiverService) Serve(ctx context.Context) error {
	r, err := s.registry.NewReceiver(s.config.Type)
	if err != nil {
		logging.Error("Unknown transport type, transport disabled",
			zap.String("transport", s.config.Name),
			zap.String("type", s.config.Type),
			zap.Error(err))
		return noRestart(err)
	}

	props := transport.Properties(s.config.Properties).Map(s.expand)
	if err := r.Initialize(props); err != nil {
		if transport.IsConfigError(err) {
			logging.Error("Transport failed to start, transport disabled",
				zap.String("transport", s.config.Name),
				zap.String("type", s.config.Type),
				zap.Error(err))
			return noRestart(err)
		}
		return fmt.Errorf("transport %s: %w", s.config.Name, err)
	}
	defer r.Close()

	logging.Info("Transport listening",
		zap.String("transport", s.config.Name),
		zap.String("type", s.config.Type),
		zap.Int("max_payload", r.MaxPayloadSize()))

	if err := r.Listen(ctx, s.dispatch); err != nil {
		return fmt.Errorf("transport %s: %w", s.config.Name, err)
	}
	if ctx.Err() == nil {
		// Listen ended on its own: let the supervisor restart it
		return fmt.Errorf("transport %s: receive loop ended", s.config.Name)
	}
	return nil
}

// serveMetrics exposes /metrics (Prometheus) and /stats (JSON snapshot).
func (d *Daemon) serveMetrics(ctx context.Context) error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})))
	e.GET("/stats", func(c echo.Context) error {
		return c.JSON(http.StatusOK, d.engine.Stats().Snapshot())
	})

	srv := &http.Server{
		Addr:              d.config.MetricsAddr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errChan := make(chan error, 1)
	go func() {
		logging.Info("Metrics server listening", zap.String("addr", d.config.MetricsAddr))
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
