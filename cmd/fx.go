package cmd

import (
	"go.uber.org/fx"

	"github.com/nimblechat/presence-delivery-service/config"
	httpsrv "github.com/nimblechat/presence-delivery-service/infra/server/http"
	"github.com/nimblechat/presence-delivery-service/internal/domain/registry"
	amqphandler "github.com/nimblechat/presence-delivery-service/internal/handler/amqp"
	"github.com/nimblechat/presence-delivery-service/internal/service"
	"github.com/nimblechat/presence-delivery-service/internal/storage"

	// Storage drivers register themselves with the storage factory.
	_ "github.com/nimblechat/presence-delivery-service/internal/storage/memory"
	_ "github.com/nimblechat/presence-delivery-service/internal/storage/postgres"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
		),
		storage.Module,
		registry.Module,
		service.Module,
		amqphandler.Module,
		httpsrv.Module,
	)
}
