package service

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/nimblechat/presence-delivery-service/config"
	"github.com/nimblechat/presence-delivery-service/internal/domain/registry"
	"github.com/nimblechat/presence-delivery-service/internal/storage"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		NewPresenceBroadcaster,
		NewMessageLifecycle,
		NewSignalRelay,

		func(hub registry.Hubber, msgs storage.MessageStore, exporter ReceiptExporter, logger *slog.Logger, cfg *config.Config) *DeliveryReconciler {
			return NewDeliveryReconciler(hub, msgs, exporter, logger, cfg.Delivery.SweepCap)
		},

		func(cfg *config.Config) Auther {
			return NewJWTAuther(cfg.Auth.JWTSecret)
		},

		fx.Annotate(
			NewSessionManager,
			fx.As(new(Deliverer)),
		),
	),
)
