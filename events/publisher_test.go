package events

import (
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"go.uber.org/zap"

	"github.com/malwarebo/paybridge/models"
)

func testEntry() *models.TransactionLogEntry {
	return &models.TransactionLogEntry{
		ID:           "log-1",
		TenantAPIURL: "https://shop.example.com/graphql",
		Type:         models.TxTypeCharge,
		Status:       models.TxStatusSuccess,
		Amount:       100.50,
		Currency:     "INR",
	}
}

func TestPublishTransactionDoesNotBlockCaller(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	release := make(chan struct{})
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		<-release
		var ev transactionEvent
		return json.Unmarshal(val, &ev)
	})

	p := &KafkaPublisher{producer: producer, topic: "paybridge.transactions", log: zap.NewNop().Sugar()}

	// The broker side is held open until release is closed, so this call
	// returning at all proves the send happens off the caller's goroutine.
	p.PublishTransaction(testEntry())
	close(release)

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestPublishTransactionSwallowsSendErrors(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := &KafkaPublisher{producer: producer, topic: "paybridge.transactions", log: zap.NewNop().Sugar()}

	p.PublishTransaction(testEntry())

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
