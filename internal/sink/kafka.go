package sink

import (
	"Go2NetSentinel/internal/config"
	"errors"
	"fmt"

	sarama "github.com/Shopify/sarama"
	log "github.com/sirupsen/logrus"
)

// KafkaSink produces every scored event to a Kafka topic. The producer is
// synchronous so a broker failure surfaces as a failed delivery.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaSink connects a producer to the configured brokers.
func NewKafkaSink(cfg config.KafkaSinkConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka sink requires at least one broker")
	}
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Version = sarama.V2_8_0_0
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	kafkaConfig.Producer.Compression = sarama.CompressionLZ4

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	log.Printf("Producing scored events to Kafka topic '%s'", cfg.Topic)
	return newKafkaSink(producer, cfg.Topic), nil
}

func newKafkaSink(producer sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

// ID implements hub.Subscriber.
func (s *KafkaSink) ID() string { return sinkID("kafka", s.topic) }

// Send implements hub.Subscriber.
func (s *KafkaSink) Send(payload []byte) error {
	_, _, err := s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: s.topic,
		Value: sarama.ByteEncoder(payload),
	})
	return err
}

// Close flushes and closes the producer.
func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
