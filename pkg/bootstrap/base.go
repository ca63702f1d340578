package bootstrap

import (
	"context"
	"fmt"

	"microsite/internal/broker"
	"microsite/internal/config"
	"microsite/internal/logger"
)

// Base holds what every command shares: config, logger and the broker
// connections the command opened.
type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Producer broker.Producer
	Consumer broker.Consumer
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// InitProducer connects the analytics producer. It is a no-op when no broker
// is configured.
func (b *Base) InitProducer() error {
	if b.Config.Broker.Type == "" {
		return nil
	}

	producer, err := broker.NewProducer(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}

	b.Producer = producer
	return nil
}

// InitConsumer joins the configured consumer group, tagging broker metrics and
// logs with serviceName.
func (b *Base) InitConsumer(serviceName string) error {
	consumer, err := broker.NewConsumer(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	consumer.SetServiceName(serviceName)

	b.Consumer = consumer
	return nil
}

func (b *Base) closeBroker() []error {
	var errs []error
	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}
	if b.Consumer != nil {
		if err := b.Consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close error: %w", err))
		}
	}
	return errs
}

// Shutdown runs release first and closes the broker connections last, so
// nothing still publishing sees a closed producer.
func (b *Base) Shutdown(ctx context.Context, release func(ctx context.Context) []error) error {
	b.Logger.InfowCtx(ctx, "Shutting down")

	var errs []error
	if release != nil {
		errs = append(errs, release(ctx)...)
	}
	errs = append(errs, b.closeBroker()...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.InfowCtx(ctx, "Shutdown complete")
	return nil
}
