package memory

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/nimblechat/presence-delivery-service/config"
	"github.com/nimblechat/presence-delivery-service/internal/storage"
)

func init() {
	storage.RegisterDriver("memory", newBackend)
}

func newBackend(_ fx.Lifecycle, _ *config.Config, logger *slog.Logger) (storage.ConversationStore, storage.MessageStore, error) {
	logger.Warn("memory storage driver active; state is lost on restart")
	st := NewStore()
	return st, st, nil
}
