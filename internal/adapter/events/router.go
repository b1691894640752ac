package events

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

const consumerGroup = "stock-ledger-alerts"

// NewRedisPubSub builds a Redis Streams publisher and a consumer-group subscriber.
func NewRedisPubSub(rdb *redis.Client, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: rdb}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("redis publisher: %w", err)
	}

	sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        rdb,
		ConsumerGroup: consumerGroup,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("redis subscriber: %w", err)
	}
	return pub, sub, nil
}

// NewGoChannelPubSub is the in-process transport used when Redis is not configured.
func NewGoChannelPubSub(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{}, logger)
}

func NewRouter(sub message.Subscriber, alerts *AlertHandler, logger watermill.LoggerAdapter) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, err
	}

	breaker := middleware.NewCircuitBreaker(gobreaker.Settings{
		Name:    "alerts",
		Timeout: 5 * time.Second,
	})
	router.AddMiddleware(
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: 100 * time.Millisecond,
			Logger:          logger,
		}.Middleware,
		breaker.Middleware,
	)

	router.AddNoPublisherHandler(
		"stock_alerts",
		TopicTransactionRecorded,
		sub,
		alerts.Handle,
	)
	return router, nil
}
