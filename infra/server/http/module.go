// Package httpsrv hosts the client-facing HTTP surface: the WebSocket
// endpoint, the long-poll fallback, and operational endpoints.
package httpsrv

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"

	"github.com/nimblechat/presence-delivery-service/config"
	"github.com/nimblechat/presence-delivery-service/internal/domain/registry"
	"github.com/nimblechat/presence-delivery-service/internal/handler/lp"
	"github.com/nimblechat/presence-delivery-service/internal/handler/ws"
)

func NewRouter(wsHandler *ws.WSHandler, lpHandler *lp.LPHandler, hub registry.Hubber) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)

	r.Method(http.MethodGet, "/ws", wsHandler)
	r.Get("/poll", lpHandler.Poll)

	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(hub.Stats())
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}

var Module = fx.Module("http-server",
	fx.Provide(
		ws.NewWSHandler,
		lp.NewLPHandler,
		NewRouter,
	),

	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, mux *chi.Mux, logger *slog.Logger) {
		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("http server failed", slog.Any("err", err))
					}
				}()
				logger.Info("http server listening", slog.String("addr", cfg.HTTP.Addr))
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
		})
	}),
)
