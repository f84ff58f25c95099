package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const (
	producerClientID     = "pos-order-service"
	producerSendTimeout  = 10 * time.Second
	producerRetryBackoff = 100 * time.Millisecond
	producerMaxRetries   = 5
)

// Producer публикует события заказов в Kafka через sync producer.
// Хранит sarama.Client отдельно, чтобы health check мог проверять брокеры.
type Producer struct {
	client   sarama.Client
	producer sarama.SyncProducer
	logger   *log.Entry
}

// NewProducer подключается к брокерам и создает идемпотентный sync producer.
func NewProducer(brokers []string) (*Producer, error) {
	client, err := sarama.NewClient(brokers, producerConfig())
	if err != nil {
		return nil, fmt.Errorf("connect to kafka brokers: %w", err)
	}

	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &Producer{
		client:   client,
		producer: producer,
		logger:   log.WithField("component", "kafka-producer"),
	}, nil
}

func producerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = producerClientID
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1 // требование идемпотентного producer
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = producerMaxRetries
	config.Producer.Retry.Backoff = producerRetryBackoff
	config.Producer.Timeout = producerSendTimeout
	config.Producer.Compression = sarama.CompressionSnappy
	return config
}

// Publish сериализует payload в JSON и отправляет в topic.
// Ключ определяет партицию: события одного заказа сохраняют порядок.
func (p *Producer) Publish(topic, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal kafka payload: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(value),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"topic": topic,
			"key":   key,
		}).Error("kafka publish failed")
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.WithFields(log.Fields{
		"topic":     topic,
		"partition": partition,
		"offset":    offset,
	}).Debug("kafka message published")

	return nil
}

// CheckBrokers проверяет доступность брокеров обновлением метаданных.
// RefreshMetadata блокирующий, поэтому ждем его в горутине с учетом ctx.
func (p *Producer) CheckBrokers(ctx context.Context) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("kafka client is not initialized")
	}

	done := make(chan error, 1)
	go func() {
		done <- p.client.RefreshMetadata()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("refresh kafka metadata: %w", err)
		}
		return nil
	}
}

// Close останавливает producer и закрывает клиентское подключение.
func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	if p.client != nil && !p.client.Closed() {
		if err := p.client.Close(); err != nil {
			return fmt.Errorf("close kafka client: %w", err)
		}
	}
	return nil
}
