// Package events publishes transaction log entries to Kafka for downstream
// consumers. Publishing is fire-and-forget; gateway flows never block on or
// fail from the bus.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/malwarebo/paybridge/models"
)

type transactionEvent struct {
	Type       string                      `json:"type"`
	Tenant     string                      `json:"tenant"`
	OccurredAt string                      `json:"occurred_at"`
	Entry      *models.TransactionLogEntry `json:"entry"`
}

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	log      *zap.SugaredLogger
	inflight sync.WaitGroup
}

// NewKafkaPublisher connects a sync producer to the broker list. An empty
// broker list disables publishing and returns nil.
func NewKafkaPublisher(brokers []string, topic string, log *zap.SugaredLogger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, nil
	}
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{producer: producer, topic: topic, log: log}, nil
}

// PublishTransaction emits one entry. The send runs off the caller's
// goroutine so a slow broker never delays a payment response; send errors
// are logged and dropped.
func (p *KafkaPublisher) PublishTransaction(entry *models.TransactionLogEntry) {
	ev := transactionEvent{
		Type:       "transaction." + string(entry.Type),
		Tenant:     entry.TenantAPIURL,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
		Entry:      entry,
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(entry.TenantAPIURL),
		Value: sarama.ByteEncoder(b),
	}
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		if _, _, err := p.producer.SendMessage(msg); err != nil {
			p.log.Warnw("transaction event publish failed", "topic", p.topic, "error", err)
		}
	}()
}

// Close waits for in-flight sends to drain before closing the producer.
func (p *KafkaPublisher) Close() error {
	p.inflight.Wait()
	return p.producer.Close()
}
