package postgres

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/nimblechat/presence-delivery-service/config"
	"github.com/nimblechat/presence-delivery-service/internal/storage"
)

func init() {
	storage.RegisterDriver("postgres", newBackend)
}

func newBackend(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (storage.ConversationStore, storage.MessageStore, error) {
	pool, err := Connect(context.Background(), cfg.Storage.DSN)
	if err != nil {
		return nil, nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	logger.Info("postgres pool established")
	st := NewStore(pool)
	return st, st, nil
}
