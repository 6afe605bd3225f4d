package amqp

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"

	pubsubadapter "github.com/nimblechat/presence-delivery-service/internal/adapter/pubsub"
	"github.com/nimblechat/presence-delivery-service/internal/service"
)

var Module = fx.Module("amqp-handler",
	fx.Provide(
		pubsubadapter.NewPublisherProvider,
		pubsubadapter.NewSubscriberProvider,

		func(pp *pubsubadapter.PublisherProvider) (pubsubadapter.EventDispatcher, error) {
			pub, err := pp.Build(DeliveryEventsExchange)
			if err != nil {
				return nil, err
			}
			return pubsubadapter.NewEventDispatcher(pub), nil
		},
		func(d pubsubadapter.EventDispatcher) service.ReceiptExporter { return d },

		NewMessageHandler,
		NewWatermillRouter,
	),

	fx.Invoke(func(h *MessageHandler, router *message.Router, subProvider *pubsubadapter.SubscriberProvider) error {
		return h.RegisterHandlers(router, subProvider)
	}),

	fx.Invoke(func(lc fx.Lifecycle, router *message.Router) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					_ = router.Run(context.Background())
				}()
				return nil
			},
			OnStop: func(context.Context) error {
				return router.Close()
			},
		})
	}),
)
