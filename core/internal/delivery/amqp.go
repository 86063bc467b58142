package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/twh32/my-fix-project/sdk/domain"
	"github.com/twh32/my-fix-project/sdk/utils"
)

// AMQPChannel subconjunto de *amqp.Channel usado por el sink.
type AMQPChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// amqpConfirmBuffer capacidad del canal de confirms; absorbe confirms tardíos
// de entregas cuyo contexto expiró.
const amqpConfirmBuffer = 64

// AMQPConfig configuración del sink RabbitMQ.
type AMQPConfig struct {
	URL          string
	Queue        string
	DialAttempts int
}

// AMQPSink publica cada orden en una cola durable con delivery mode persistente.
//
// El canal opera en modo confirm: Deliver retorna recién cuando el broker
// confirmó (ack) la publicación. Las publicaciones se serializan para poder
// asociar cada confirm con su delivery tag.
type AMQPSink struct {
	conn     *amqp.Connection
	channel  AMQPChannel
	queue    string
	confirms chan amqp.Confirmation

	mu      sync.Mutex
	lastTag uint64
}

// NewAMQPSink conecta a RabbitMQ (con reintentos) y declara la cola.
func NewAMQPSink(ctx context.Context, cfg AMQPConfig) (*AMQPSink, error) {
	if cfg.URL == "" {
		return nil, domain.NewError(domain.ErrInvalidConfig, "amqp sink requires a url")
	}

	var conn *amqp.Connection
	err := retryConnect(ctx, "amqp dial", cfg.DialAttempts, func() error {
		c, err := amqp.Dial(cfg.URL)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrSinkUnavailable, "amqp connect", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, domain.WrapError(domain.ErrSinkUnavailable, "amqp channel", err)
	}

	sink, err := NewAMQPSinkWithChannel(ch, cfg.Queue)
	if err != nil {
		conn.Close()
		return nil, err
	}
	sink.conn = conn
	return sink, nil
}

// NewAMQPSinkWithChannel declara la cola sobre un canal existente y lo pone
// en modo confirm.
func NewAMQPSinkWithChannel(ch AMQPChannel, queue string) (*AMQPSink, error) {
	if queue == "" {
		queue = "orders"
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, domain.WrapError(domain.ErrSinkUnavailable, fmt.Sprintf("amqp declare %s", queue), err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, domain.WrapError(domain.ErrSinkUnavailable, "amqp confirm mode", err)
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, amqpConfirmBuffer))
	return &AMQPSink{channel: ch, queue: queue, confirms: confirms}, nil
}

// Name implementa Named.
func (s *AMQPSink) Name() string { return "amqp" }

// Deliver implementa Sink.
func (s *AMQPSink) Deliver(ctx context.Context, order domain.CanonicalOrder) error {
	payload, err := utils.MarshalJSON(order)
	if err != nil {
		return domain.WrapError(domain.ErrDeliveryFailed, "encode canonical order", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    order.Key(),
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.channel.PublishWithContext(ctx, "", s.queue, false, false, msg); err != nil {
		return domain.WrapError(domain.ErrSinkUnavailable, fmt.Sprintf("amqp publish to %s", s.queue), err)
	}
	s.lastTag++
	return s.awaitConfirm(ctx, s.lastTag)
}

// awaitConfirm espera el confirm de tag. Los confirms de tags anteriores
// (entregas que ya retornaron por contexto) se descartan.
func (s *AMQPSink) awaitConfirm(ctx context.Context, tag uint64) error {
	for {
		select {
		case c, ok := <-s.confirms:
			if !ok {
				return domain.WrapError(domain.ErrSinkUnavailable, "amqp channel closed before confirm", amqp.ErrClosed)
			}
			if c.DeliveryTag < tag {
				continue
			}
			if !c.Ack {
				return domain.NewError(domain.ErrSinkUnavailable,
					fmt.Sprintf("amqp broker nacked delivery %d to %s", c.DeliveryTag, s.queue))
			}
			return nil
		case <-ctx.Done():
			return domain.WrapError(domain.ErrSinkUnavailable, fmt.Sprintf("amqp confirm from %s", s.queue), ctx.Err())
		}
	}
}

// Close cierra canal y conexión.
func (s *AMQPSink) Close() error {
	err := s.channel.Close()
	if s.conn != nil {
		err = errors.Join(err, s.conn.Close())
	}
	return err
}
