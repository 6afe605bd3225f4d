package amqp

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/lithammer/shortuuid/v3"

	"github.com/nimblechat/presence-delivery-service/internal/adapter/pubsub"
	"github.com/nimblechat/presence-delivery-service/internal/domain/registry"
	"github.com/nimblechat/presence-delivery-service/internal/service"
)

const (
	// ------------------- EXCHANGES (SOURCES) -------------------
	MessageEventsExchange      = "chat_message.events"
	ConversationEventsExchange = "chat_conversation.events"
	DeliveryEventsExchange     = "chat_delivery.events"

	// ------------------- TOPICS (ROUTING KEYS) -----------------
	TopicMessageCreated   = "chat_message.#.message.created.v1"
	TopicConversationRead = "chat_conversation.#.conversation.read.v1"
	TopicReceipts         = "chat_delivery.v1.#"

	// ------------------- QUEUES (CONSUMERS) --------------------
	DeliveryProcessorQueue = "presence-delivery.incoming-processor.v1"
	DeliveryPoisonTopic    = "presence-delivery.incoming-processor.v1.poison"
)

type MessageHandler struct {
	hub        registry.Hubber
	logger     *slog.Logger
	lifecycle  *service.MessageLifecycle
	dispatcher pubsub.EventDispatcher
}

func NewMessageHandler(hub registry.Hubber, logger *slog.Logger, lifecycle *service.MessageLifecycle, dispatcher pubsub.EventDispatcher) *MessageHandler {
	return &MessageHandler{hub, logger, lifecycle, dispatcher}
}

func NewWatermillRouter(logger watermill.LoggerAdapter) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{}, logger)
}

// RegisterHandlers binds every domain listener into the consumer pipeline.
func (h *MessageHandler) RegisterHandlers(router *message.Router, subProvider *pubsub.SubscriberProvider) error {
	poison, err := middleware.PoisonQueue(h.dispatcher.Publisher(), DeliveryPoisonTopic)
	if err != nil {
		return fmt.Errorf("POISON_SETUP_FAILED: %w", err)
	}

	configs := []struct {
		name     string
		exchange string
		topic    string
		handler  message.NoPublishHandlerFunc
	}{
		{"ON_MSG_CREATED", MessageEventsExchange, TopicMessageCreated, Bind(h, h.OnMessageCreatedV1)},
		{"ON_CONV_READ", ConversationEventsExchange, TopicConversationRead, Bind(h, h.OnConversationReadV1)},
		{"ON_RECEIPT", DeliveryEventsExchange, TopicReceipts, Bind(h, h.OnReceiptV1)},
	}

	for _, c := range configs {
		// One queue per handler per node: every node observes every event and
		// the locality filter decides which one acts.
		handlerQueue := fmt.Sprintf("%s.%s.%s", DeliveryProcessorQueue, shortuuid.New()[:8], c.name)

		sub, err := subProvider.Build(handlerQueue, c.exchange, c.topic)
		if err != nil {
			return err
		}

		router.AddNoPublisherHandler(c.name, c.topic, sub, c.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			NewRetryMiddleware().Middleware,
			poison,
			middleware.NewThrottle(100, time.Second).Middleware,
			middleware.Timeout(time.Second*30),
		)
	}

	h.logger.Info("AMQP_PIPELINE_READY", "queue", DeliveryProcessorQueue)
	return nil
}
