package broker

import (
	"fmt"

	"microsite/internal/config"
	"microsite/internal/logger"
)

// TypeKafka is the only broker the service publishes analytics to.
const TypeKafka = "kafka"

func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	if cfg.Type != TypeKafka {
		return nil, fmt.Errorf("unsupported broker type %q", cfg.Type)
	}
	return NewKafkaProducer(cfg.Kafka, log.Named("kafka-producer")), nil
}

func NewConsumer(cfg config.BrokerConfig, log logger.Logger) (Consumer, error) {
	if cfg.Type != TypeKafka {
		return nil, fmt.Errorf("unsupported broker type %q", cfg.Type)
	}
	return NewKafkaConsumer(cfg.Kafka, log.Named("kafka-consumer")), nil
}
