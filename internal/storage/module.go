package storage

import (
	"fmt"
	"log/slog"

	"go.uber.org/fx"

	"github.com/nimblechat/presence-delivery-service/config"
)

// Backends bundles the two store interfaces a driver provides.
type Backends struct {
	fx.Out

	Conversations ConversationStore
	Messages      MessageStore
}

// Factory builds a configured backend. Driver packages register themselves
// from init so this package never imports its own implementations.
type Factory func(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (ConversationStore, MessageStore, error)

var factories = map[string]Factory{}

// RegisterDriver is called from driver package init functions.
func RegisterDriver(name string, f Factory) {
	factories[name] = f
}

func NewBackends(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (Backends, error) {
	f, ok := factories[cfg.Storage.Driver]
	if !ok {
		return Backends{}, fmt.Errorf("storage: unknown driver %q", cfg.Storage.Driver)
	}

	convs, msgs, err := f(lc, cfg, logger)
	if err != nil {
		return Backends{}, err
	}

	logger.Info("storage backend ready", slog.String("driver", cfg.Storage.Driver))
	return Backends{Conversations: convs, Messages: msgs}, nil
}

var Module = fx.Module("storage",
	fx.Provide(NewBackends),
)
