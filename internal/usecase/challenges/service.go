package challenges

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-challenge-backend/internal/domain"
	"tg-challenge-backend/internal/infra/metrics"
)

// ErrChallengeNotFound возвращается при вступлении в несуществующий
// челлендж.
var ErrChallengeNotFound = errors.New("челлендж не найден")

// Service — движок правил поверх документного хранилища: читает
// снапшот, оценивает правила, применяет план записи.
type Service struct {
	store   domain.DocStore
	events  domain.EventPublisher
	locker  domain.Locker
	limits  domain.Limits
	adminID string
	log     zerolog.Logger

	now   func() time.Time
	newID func() string
}

// NewService создаёт сервис челленджей.
func NewService(store domain.DocStore, events domain.EventPublisher, locker domain.Locker, limits domain.Limits, adminID string, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		events:  events,
		locker:  locker,
		limits:  limits,
		adminID: adminID,
		log:     logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

func (s *Service) user(ctx context.Context, id string) (domain.User, error) {
	var stored domain.User
	found, err := s.store.Get(ctx, domain.CollectionUsers, id, &stored)
	if err != nil {
		return domain.User{}, fmt.Errorf("чтение пользователя: %w", err)
	}
	if !found {
		return domain.UserOrDefault(nil, id), nil
	}
	return domain.UserOrDefault(&stored, id), nil
}

// ListActive возвращает активные челленджи, видимые пользователю.
// Отсутствующий пользователь считается обычным, без премиума.
func (s *Service) ListActive(ctx context.Context, userID string) ([]domain.Challenge, error) {
	metrics.IncRequest("list_active")
	var challenges []domain.Challenge
	if err := s.store.List(ctx, domain.CollectionChallenges, map[string]any{"isActive": true}, &challenges); err != nil {
		return nil, fmt.Errorf("чтение челленджей: %w", err)
	}
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	return domain.FilterActive(challenges, user), nil
}

// ListAll возвращает все челленджи без фильтрации.
func (s *Service) ListAll(ctx context.Context) ([]domain.Challenge, error) {
	metrics.IncRequest("list_all")
	var challenges []domain.Challenge
	if err := s.store.List(ctx, domain.CollectionChallenges, nil, &challenges); err != nil {
		return nil, fmt.Errorf("чтение челленджей: %w", err)
	}
	return challenges, nil
}

// Join вступает в челлендж от имени пользователя. Изменения одного
// пользователя сериализуются через locker; с NoopLocker проверка
// лимита и запись счётчика могут перемежаться, как в исходной системе.
func (s *Service) Join(ctx context.Context, challengeID, userID string) error {
	metrics.IncRequest("join")
	return s.locker.WithLock(ctx, "user:"+userID, func() error {
		var challenge domain.Challenge
		found, err := s.store.Get(ctx, domain.CollectionChallenges, challengeID, &challenge)
		if err != nil {
			return fmt.Errorf("чтение челленджа: %w", err)
		}
		if !found {
			return ErrChallengeNotFound
		}
		challenge.ID = challengeID
		user, err := s.user(ctx, userID)
		if err != nil {
			return err
		}
		now := s.now()
		plan, err := domain.EvaluateJoin(challenge, user, s.limits, now)
		if err != nil {
			if rej, ok := domain.AsRejection(err); ok {
				metrics.IncRejection(string(rej.Code))
			}
			return err
		}
		if err := s.apply(ctx, plan); err != nil {
			return err
		}
		s.publish(ctx, domain.Event{
			Kind:        domain.EventChallengeJoined,
			ChallengeID: challengeID,
			UserID:      userID,
			EndDate:     challenge.EndDate,
			OccurredAt:  now,
		})
		return nil
	})
}

// Create создаёт пользовательский челлендж и возвращает его ключ.
func (s *Service) Create(ctx context.Context, title, userID string, friendIDs []string) (string, error) {
	metrics.IncRequest("create")
	var challengeID string
	err := s.locker.WithLock(ctx, "user:"+userID, func() error {
		user, err := s.user(ctx, userID)
		if err != nil {
			return err
		}
		now := s.now()
		challenge := domain.NewUserChallenge(s.newID(), title, userID, friendIDs, now)
		plan, err := domain.EvaluateCreate(challenge, user, s.limits)
		if err != nil {
			if rej, ok := domain.AsRejection(err); ok {
				metrics.IncRejection(string(rej.Code))
			}
			return err
		}
		if err := s.apply(ctx, plan); err != nil {
			return err
		}
		challengeID = challenge.ID
		s.publish(ctx, domain.Event{
			Kind:        domain.EventChallengeCreated,
			ChallengeID: challenge.ID,
			UserID:      userID,
			EndDate:     challenge.EndDate,
			OccurredAt:  now,
		})
		return nil
	})
	return challengeID, err
}

// CreateMain создаёт main-челлендж. Разрешено только админу,
// лимиты создателя не действуют.
func (s *Service) CreateMain(ctx context.Context, requesterID, title string) (string, error) {
	metrics.IncRequest("create_main")
	now := s.now()
	challenge := domain.NewMainChallenge(s.newID(), title, requesterID, now)
	plan, err := domain.EvaluateCreateMain(challenge, requesterID, s.adminID)
	if err != nil {
		if rej, ok := domain.AsRejection(err); ok {
			metrics.IncRejection(string(rej.Code))
		}
		return "", err
	}
	if err := s.apply(ctx, plan); err != nil {
		return "", err
	}
	s.publish(ctx, domain.Event{
		Kind:        domain.EventChallengeCreated,
		ChallengeID: challenge.ID,
		UserID:      requesterID,
		EndDate:     challenge.EndDate,
		OccurredAt:  now,
	})
	return challenge.ID, nil
}

// apply выполняет шаги плана по порядку. Компенсаций нет: если шаг
// упал, уже выполненные шаги остаются в хранилище.
func (s *Service) apply(ctx context.Context, plan []domain.Mutation) error {
	for _, m := range plan {
		var err error
		switch m.Op {
		case domain.MutationSet:
			err = s.store.Set(ctx, m.Collection, m.ID, m.Doc, m.Merge)
		case domain.MutationIncrement:
			err = s.store.Increment(ctx, m.Collection, m.ID, m.Field, m.Delta)
		case domain.MutationAppend:
			err = s.store.Append(ctx, m.Collection, m.ID, m.Field, m.Element)
		default:
			err = fmt.Errorf("неизвестная операция плана: %s", m.Op)
		}
		if err != nil {
			return fmt.Errorf("запись %s %s/%s: %w", m.Op, m.Collection, m.ID, err)
		}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event domain.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("kind", event.Kind).Msg("событие не опубликовано")
	}
}
