package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mbeoliero/kit/log"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/workhive/chat-server/internal/entity"
)

// Event kinds consumed by the marketplace notification service
const (
	KindMessageCreated   = "message.created"
	KindConversationRead = "conversation.read"
)

// Event is the envelope written to the chat-events topic
type Event struct {
	Kind string      `json:"kind"`
	At   int64       `json:"at"`
	Data interface{} `json:"data"`
}

// ReadData is the payload of conversation.read events
type ReadData struct {
	ConversationId string `json:"conversation_id"`
	ReaderId       string `json:"reader_id"`
	ReadAt         int64  `json:"read_at"`
}

// Producer publishes committed chat events to Kafka for downstream
// consumers (email/push notification service). Delivery is fire-and-forget:
// a publish failure is logged and never fails the originating operation.
type Producer struct {
	writer *kafkago.Writer
}

// NewProducer creates a new Producer
func NewProducer(brokers []string, topic string) *Producer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
		Async:        true,
	}
	return &Producer{writer: w}
}

// MessageCreated implements service.Notifier
func (p *Producer) MessageCreated(ctx context.Context, msg *entity.MessageInfo) {
	p.publish(ctx, msg.ConversationId, &Event{
		Kind: KindMessageCreated,
		At:   time.Now().UnixMilli(),
		Data: msg,
	})
}

// ConversationRead implements service.Notifier
func (p *Producer) ConversationRead(ctx context.Context, conversationId, readerId string, readAt int64) {
	p.publish(ctx, conversationId, &Event{
		Kind: KindConversationRead,
		At:   time.Now().UnixMilli(),
		Data: &ReadData{
			ConversationId: conversationId,
			ReaderId:       readerId,
			ReadAt:         readAt,
		},
	})
}

func (p *Producer) publish(ctx context.Context, key string, event *Event) {
	b, err := json.Marshal(event)
	if err != nil {
		log.CtxWarn(ctx, "marshal notify event failed: kind=%s, error=%v", event.Kind, err)
		return
	}

	msg := kafkago.Message{
		Key:   []byte(key),
		Value: b,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.CtxWarn(ctx, "publish notify event failed: kind=%s, error=%v", event.Kind, err)
	}
}

// Close closes the underlying writer
func (p *Producer) Close() error {
	return p.writer.Close()
}
