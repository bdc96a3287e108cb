package challenges

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-challenge-backend/internal/adapters/docstore"
	"tg-challenge-backend/internal/domain"
	"tg-challenge-backend/internal/infra/lock"
)

type capturingPublisher struct {
	events []domain.Event
}

func (p *capturingPublisher) Publish(_ context.Context, event domain.Event) error {
	p.events = append(p.events, event)
	return nil
}

func newTestService(store *docstore.Memory, adminID string) (*Service, *capturingPublisher) {
	pub := &capturingPublisher{}
	svc := NewService(store, pub, lock.NoopLocker{}, domain.DefaultLimits(), adminID, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	seq := 0
	svc.newID = func() string { seq++; return "gen" + string(rune('0'+seq)) }
	return svc, pub
}

func seedChallenge(t *testing.T, store *docstore.Memory, c domain.Challenge) {
	t.Helper()
	if err := store.Set(context.Background(), domain.CollectionChallenges, c.ID, c, false); err != nil {
		t.Fatalf("не удалось записать челлендж: %v", err)
	}
}

func openChallenge(id, typ string, now time.Time) domain.Challenge {
	return domain.Challenge{
		ID:           id,
		Title:        "Test",
		Type:         typ,
		Days:         domain.ChallengeDays,
		CurrentDay:   1,
		Participants: []domain.Participant{},
		CreatedBy:    "creator",
		JoinDeadline: now.Add(24 * time.Hour),
		EndDate:      now.Add(domain.ChallengeTerm),
		IsActive:     true,
	}
}

func TestJoinFreshUser(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	svc, pub := newTestService(store, "admin")
	now := svc.now()
	seedChallenge(t, store, openChallenge("ch1", domain.ChallengeTypeUser, now))

	if err := svc.Join(ctx, "ch1", "u1"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	var c domain.Challenge
	if _, err := store.Get(ctx, domain.CollectionChallenges, "ch1", &c); err != nil {
		t.Fatalf("чтение челленджа: %v", err)
	}
	if len(c.Participants) != 1 || c.Participants[0].UserID != "u1" || c.Participants[0].Score != 0 {
		t.Fatalf("неожиданные участники: %+v", c.Participants)
	}
	var u domain.User
	if _, err := store.Get(ctx, domain.CollectionUsers, "u1", &u); err != nil {
		t.Fatalf("чтение пользователя: %v", err)
	}
	if u.ChallengesJoined != 1 {
		t.Fatalf("счётчик должен стать 1, получили %d", u.ChallengesJoined)
	}
	var uc domain.UserChallenge
	found, err := store.Get(ctx, domain.CollectionUserChallenges, "u1_ch1", &uc)
	if err != nil || !found {
		t.Fatalf("ожидали запись об участии: found=%v err=%v", found, err)
	}
	if !uc.Joined || len(uc.DailyProgress) != 0 {
		t.Fatalf("неожиданная запись об участии: %+v", uc)
	}
	if len(pub.events) != 1 || pub.events[0].Kind != domain.EventChallengeJoined {
		t.Fatalf("ожидали событие о вступлении: %+v", pub.events)
	}
}

func TestJoinMissingChallenge(t *testing.T) {
	store := docstore.NewMemory()
	svc, _ := newTestService(store, "admin")
	if err := svc.Join(context.Background(), "nope", "u1"); err != ErrChallengeNotFound {
		t.Fatalf("ожидали ErrChallengeNotFound, получили %v", err)
	}
}

func TestJoinRejectionLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	svc, pub := newTestService(store, "admin")
	now := svc.now()
	c := openChallenge("ch1", domain.ChallengeTypeUser, now)
	c.JoinDeadline = now.Add(-time.Hour)
	seedChallenge(t, store, c)

	err := svc.Join(ctx, "ch1", "u1")
	rej, ok := domain.AsRejection(err)
	if !ok || rej.Code != domain.CodeDeadlinePassed {
		t.Fatalf("ожидали DEADLINE_PASSED, получили %v", err)
	}
	if _, found := store.Dump(domain.CollectionUsers, "u1"); found {
		t.Fatal("при отказе пользователь не должен появляться")
	}
	if len(pub.events) != 0 {
		t.Fatal("при отказе событий быть не должно")
	}
}

func TestRejoinResetsProgress(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	svc, _ := newTestService(store, "admin")
	now := svc.now()
	seedChallenge(t, store, openChallenge("ch1", domain.ChallengeTypeUser, now))
	if err := store.Set(ctx, domain.CollectionUsers, "u1", map[string]any{"premium": true}, false); err != nil {
		t.Fatalf("запись пользователя: %v", err)
	}
	old := domain.UserChallenge{UserID: "u1", ChallengeID: "ch1", DailyProgress: []string{"day1", "day2"}, Joined: true}
	if err := store.Set(ctx, domain.CollectionUserChallenges, "u1_ch1", old, false); err != nil {
		t.Fatalf("запись участия: %v", err)
	}

	if err := svc.Join(ctx, "ch1", "u1"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	var uc domain.UserChallenge
	if _, err := store.Get(ctx, domain.CollectionUserChallenges, "u1_ch1", &uc); err != nil {
		t.Fatalf("чтение участия: %v", err)
	}
	// Повторное вступление перезаписывает прогресс, запись одна.
	if len(uc.DailyProgress) != 0 {
		t.Fatalf("прогресс должен сброситься: %+v", uc)
	}
}

func TestCreateChallenge(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	svc, pub := newTestService(store, "admin")

	id, err := svc.Create(ctx, "T", "u1", []string{"u2", "u3"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if id == "" {
		t.Fatal("ожидали ключ нового челленджа")
	}
	var c domain.Challenge
	found, err := store.Get(ctx, domain.CollectionChallenges, id, &c)
	if err != nil || !found {
		t.Fatalf("ожидали записанный челлендж: found=%v err=%v", found, err)
	}
	if c.Type != domain.ChallengeTypeUser || c.Days != 30 || c.CurrentDay != 1 || !c.IsActive {
		t.Fatalf("неожиданная форма: %+v", c)
	}
	if len(c.Participants) != 3 || c.Participants[0].UserID != "u1" || c.Participants[1].UserID != "u2" || c.Participants[2].UserID != "u3" {
		t.Fatalf("неожиданные участники: %+v", c.Participants)
	}
	var u domain.User
	if _, err := store.Get(ctx, domain.CollectionUsers, "u1", &u); err != nil {
		t.Fatalf("чтение пользователя: %v", err)
	}
	if u.ChallengesCreated != 1 {
		t.Fatalf("счётчик создателя должен стать 1, получили %d", u.ChallengesCreated)
	}
	if len(pub.events) != 1 || pub.events[0].Kind != domain.EventChallengeCreated {
		t.Fatalf("ожидали событие о создании: %+v", pub.events)
	}
}

func TestCreateChallengeLimit(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	svc, _ := newTestService(store, "admin")
	if err := store.Set(ctx, domain.CollectionUsers, "u1", map[string]any{"challengesCreated": 3}, false); err != nil {
		t.Fatalf("запись пользователя: %v", err)
	}

	_, err := svc.Create(ctx, "T", "u1", nil)
	rej, ok := domain.AsRejection(err)
	if !ok || rej.Code != domain.CodeCreateLimitExceeded {
		t.Fatalf("ожидали CREATE_LIMIT_EXCEEDED, получили %v", err)
	}
	var challenges []domain.Challenge
	if err := store.List(ctx, domain.CollectionChallenges, nil, &challenges); err != nil {
		t.Fatalf("чтение челленджей: %v", err)
	}
	if len(challenges) != 0 {
		t.Fatal("при отказе челлендж не должен записываться")
	}
}

func TestCreateMain(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	svc, _ := newTestService(store, "admin")

	if _, err := svc.CreateMain(ctx, "intruder", "T"); err == nil {
		t.Fatal("ожидали NOT_ADMIN")
	}

	id, err := svc.CreateMain(ctx, "admin", "T")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	var c domain.Challenge
	if _, err := store.Get(ctx, domain.CollectionChallenges, id, &c); err != nil {
		t.Fatalf("чтение челленджа: %v", err)
	}
	if c.Type != domain.ChallengeTypeMain || len(c.Participants) != 0 {
		t.Fatalf("неожиданный main-челлендж: %+v", c)
	}
	// Лимит создателя на админа не действует, счётчик не трогается.
	if _, found := store.Dump(domain.CollectionUsers, "admin"); found {
		t.Fatal("счётчик админа не должен меняться")
	}
}

func TestListActiveHidesMainFromFree(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	svc, _ := newTestService(store, "admin")
	now := svc.now()
	seedChallenge(t, store, openChallenge("user1", domain.ChallengeTypeUser, now))
	seedChallenge(t, store, openChallenge("main1", domain.ChallengeTypeMain, now))
	inactive := openChallenge("old", domain.ChallengeTypeUser, now)
	inactive.IsActive = false
	seedChallenge(t, store, inactive)

	visible, err := svc.ListActive(ctx, "nobody")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != "user1" {
		t.Fatalf("free должен видеть только user-челленджи: %+v", visible)
	}

	if err := store.Set(ctx, domain.CollectionUsers, "vip", map[string]any{"premium": true}, false); err != nil {
		t.Fatalf("запись пользователя: %v", err)
	}
	visible, err = svc.ListActive(ctx, "vip")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("premium должен видеть оба активных: %+v", visible)
	}
}

func TestListAll(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	svc, _ := newTestService(store, "admin")
	now := svc.now()
	seedChallenge(t, store, openChallenge("a", domain.ChallengeTypeUser, now))
	inactive := openChallenge("b", domain.ChallengeTypeMain, now)
	inactive.IsActive = false
	seedChallenge(t, store, inactive)

	all, err := svc.ListAll(ctx)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ожидали все челленджи без фильтра: %+v", all)
	}
}
