package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/angelmondragon/carestaff-backend/pkg/config"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
)

const (
	readHeaderTimeout      = 10 * time.Second
	defaultShutdownTimeout = 15 * time.Second
)

// NewServer wraps the router in otelhttp server spans and binds it to addr.
func NewServer(cfg *config.Config, addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(handler, "carestaff-"+cfg.Service.Kind),
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// Serve runs srv until ctx is canceled, then drains in-flight requests for up to timeout.
func Serve(ctx context.Context, srv *http.Server, timeout time.Duration, logg *logger.Logger) error {
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	srv.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if logg != nil {
		logg.Info(ctx, "api server draining")
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
