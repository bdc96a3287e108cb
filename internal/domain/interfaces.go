package domain

import (
	"context"
	"time"
)

// DocStore — порт документного хранилища. Каждый вызов атомарен сам по
// себе; межвызовных транзакций нет, движок правил обязан это учитывать.
type DocStore interface {
	// Get читает документ в out. Отсутствие документа — не ошибка:
	// возвращается found=false.
	Get(ctx context.Context, collection, id string, out any) (bool, error)
	// Set пишет документ. При merge=true незатронутые поля сохраняются,
	// при merge=false документ перезаписывается целиком.
	Set(ctx context.Context, collection, id string, doc any, merge bool) error
	// Increment атомарно сдвигает числовое поле. Отсутствующее поле
	// считается нулём, отсутствующий документ создаётся.
	Increment(ctx context.Context, collection, id, field string, delta int64) error
	// Append атомарно дописывает элемент в массив. Дубликаты не
	// схлопываются.
	Append(ctx context.Context, collection, id, field string, element any) error
	// List возвращает документы коллекции в естественном порядке
	// хранилища, опционально по равенству поля.
	List(ctx context.Context, collection string, filter map[string]any, out any) error
}

// Event — доменное событие для внешних обработчиков (батч завершения
// челленджей, пересчёт рейтинга).
type Event struct {
	Kind        string    `json:"kind"`
	ChallengeID string    `json:"challengeId"`
	UserID      string    `json:"userId,omitempty"`
	EndDate     time.Time `json:"endDate,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Виды событий.
const (
	EventChallengeCreated = "challenge.created"
	EventChallengeJoined  = "challenge.joined"
)

// EventPublisher отправляет события наружу. Доставка не гарантируется
// и не подтверждается вызывающим кодом.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// Locker выдаёт взаимоисключающую блокировку по ключу. Используется,
// чтобы сериализовать изменения одного пользователя между проверкой
// лимита и записью счётчика.
type Locker interface {
	// WithLock выполняет fn под блокировкой ключа.
	WithLock(ctx context.Context, key string, fn func() error) error
}
