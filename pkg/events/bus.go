// Package events carries failure notices between the dispatcher and whoever
// wants to report them, over an in-process watermill pub/sub.
package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-go-golems/relay/pkg/helpers"
	"github.com/rs/zerolog/log"
)

type Bus struct {
	logger     watermill.LoggerAdapter
	Publisher  message.Publisher
	Subscriber message.Subscriber
	router     *message.Router
}

type BusOption func(*Bus)

func WithLogger(logger watermill.LoggerAdapter) BusOption {
	return func(b *Bus) {
		b.logger = logger
	}
}

// WithVerbose logs watermill's own messages through zerolog.
func WithVerbose(verbose bool) BusOption {
	return func(b *Bus) {
		if verbose {
			b.logger = helpers.NewWatermill(log.Logger)
		}
	}
}

func NewBus(options ...BusOption) (*Bus, error) {
	ret := &Bus{
		logger: watermill.NopLogger{},
	}
	for _, o := range options {
		o(ret)
	}

	pubSub := gochannel.NewGoChannel(gochannel.Config{
		BlockPublishUntilSubscriberAck: true,
	}, ret.logger)
	ret.Publisher = helpers.CorrelationPublisherDecorator{Publisher: pubSub}
	ret.Subscriber = pubSub

	router, err := message.NewRouter(message.RouterConfig{}, ret.logger)
	if err != nil {
		return nil, err
	}
	ret.router = router

	return ret, nil
}

func (b *Bus) AddHandler(name string, topic string, f message.NoPublishHandlerFunc) {
	b.router.AddNoPublisherHandler(name, topic, b.Subscriber, f)
}

func (b *Bus) Run(ctx context.Context) error {
	return b.router.Run(ctx)
}

func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

// Close shuts down the router first, then the pub/sub.
func (b *Bus) Close() error {
	if err := b.router.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close router")
	}
	if err := b.Publisher.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close pubsub")
		return err
	}
	return nil
}
