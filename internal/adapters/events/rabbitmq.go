package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"tg-challenge-backend/internal/domain"
	"tg-challenge-backend/internal/infra/metrics"
)

// RabbitPublisher публикует доменные события в topic-exchange.
// Их читают внешние обработчики: батч завершения челленджей и
// пересчёт глобального рейтинга.
type RabbitPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      zerolog.Logger
}

var _ domain.EventPublisher = (*RabbitPublisher)(nil)

// NewRabbitPublisher подключается к брокеру и объявляет exchange.
func NewRabbitPublisher(url, exchange string, logger zerolog.Logger) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("подключение к rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("открытие канала: %w", err)
	}
	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("объявление exchange: %w", err)
	}
	return &RabbitPublisher{conn: conn, channel: channel, exchange: exchange, log: logger}, nil
}

// Publish отправляет событие. Ошибка публикации не фатальна для
// вызывающего кода, но учитывается в метриках.
func (p *RabbitPublisher) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	err = p.channel.PublishWithContext(ctx, p.exchange, event.Kind, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        payload,
	})
	if err != nil {
		metrics.EventPublishErrors.Inc()
		return fmt.Errorf("publish %s: %w", event.Kind, err)
	}
	return nil
}

// Close закрывает канал и соединение.
func (p *RabbitPublisher) Close() {
	_ = p.channel.Close()
	_ = p.conn.Close()
}

// NoopPublisher используется, когда брокер не сконфигурирован.
type NoopPublisher struct{}

var _ domain.EventPublisher = NoopPublisher{}

// Publish ничего не делает.
func (NoopPublisher) Publish(context.Context, domain.Event) error { return nil }
