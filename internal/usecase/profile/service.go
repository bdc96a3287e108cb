package profile

import (
	"context"
	"fmt"

	"tg-challenge-backend/internal/domain"
	"tg-challenge-backend/internal/infra/metrics"
)

// Service собирает профиль пользователя. Только чтение, ничего не
// мутирует.
type Service struct {
	store domain.DocStore
}

// NewService создаёт сервис профиля.
func NewService(store domain.DocStore) *Service {
	return &Service{store: store}
}

// Get возвращает профиль с производными полями. Отсутствующие записи
// пользователя и рейтинга — не ошибка, а значения по умолчанию.
func (s *Service) Get(ctx context.Context, userID string) (domain.Profile, error) {
	metrics.IncRequest("profile")
	var storedUser domain.User
	userFound, err := s.store.Get(ctx, domain.CollectionUsers, userID, &storedUser)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("чтение пользователя: %w", err)
	}
	var userPtr *domain.User
	if userFound {
		userPtr = &storedUser
	}

	var storedRanking domain.RankingEntry
	rankingFound, err := s.store.Get(ctx, domain.CollectionGlobalRanking, userID, &storedRanking)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("чтение рейтинга: %w", err)
	}
	var rankingPtr *domain.RankingEntry
	if rankingFound {
		rankingPtr = &storedRanking
	}

	return domain.BuildProfile(
		domain.UserOrDefault(userPtr, userID),
		domain.RankingOrDefault(rankingPtr),
	), nil
}
