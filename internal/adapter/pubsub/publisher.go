package pubsub

import (
	"github.com/ThreeDotsLabs/watermill"
	amqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/nimblechat/presence-delivery-service/config"
)

// PublisherProvider builds AMQP publishers bound to a topic exchange.
type PublisherProvider struct {
	cfg    *config.Config
	logger watermill.LoggerAdapter
}

func NewPublisherProvider(cfg *config.Config, logger watermill.LoggerAdapter) *PublisherProvider {
	return &PublisherProvider{cfg: cfg, logger: logger}
}

func (pp *PublisherProvider) Build(exchange string) (message.Publisher, error) {
	c := amqp.NewDurablePubSubConfig(pp.cfg.AMQP.URL, nil)
	c.Exchange.GenerateName = func(string) string { return exchange }
	c.Exchange.Type = "topic"
	c.Exchange.Durable = true
	// The watermill "topic" is the AMQP routing key on this exchange.
	c.Publish.GenerateRoutingKey = func(topic string) string { return topic }

	return amqp.NewPublisher(c, pp.logger)
}
