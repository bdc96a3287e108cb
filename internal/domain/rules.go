package domain

import (
	"errors"
	"time"
)

// Фиксированные параметры челленджа.
const (
	ChallengeDays = 30
	JoinWindow    = 3 * 24 * time.Hour
	ChallengeTerm = 30 * 24 * time.Hour
)

// RejectionCode — машинно-проверяемый код отказа по бизнес-правилу.
type RejectionCode string

const (
	CodeDeadlinePassed      RejectionCode = "DEADLINE_PASSED"
	CodePremiumRequired     RejectionCode = "PREMIUM_REQUIRED"
	CodeJoinLimitExceeded   RejectionCode = "JOIN_LIMIT_EXCEEDED"
	CodeCreateLimitExceeded RejectionCode = "CREATE_LIMIT_EXCEEDED"
	CodeNotAdmin            RejectionCode = "NOT_ADMIN"
)

// Rejection — ожидаемый отказ по бизнес-правилу. Это не сбой
// инфраструктуры: наружу уходит 4xx, в логи — не ошибка.
type Rejection struct {
	Code    RejectionCode
	Message string
}

func (r *Rejection) Error() string { return string(r.Code) + ": " + r.Message }

// Тексты отказов пользователю, как их показывает веб-приложение.
var (
	ErrDeadlinePassed  = &Rejection{CodeDeadlinePassed, "Qo'shilish muddati tugagan"}
	ErrPremiumRequired = &Rejection{CodePremiumRequired, "Premium kerak"}
	ErrJoinLimit       = &Rejection{CodeJoinLimitExceeded, "Faqat premium foydalanuvchilar 2 tadan ko'p challenge'ga qo'shila oladi"}
	ErrCreateLimit     = &Rejection{CodeCreateLimitExceeded, "Challenge yaratish limiti tugagan"}
	ErrNotAdmin        = &Rejection{CodeNotAdmin, "Faqat admin challenge qo'shishi mumkin"}
)

// AsRejection возвращает отказ, если ошибка им является.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// Limits описывает ограничения участия по тарифу.
type Limits struct {
	FreeJoin      int
	FreeCreate    int
	PremiumCreate int
}

// DefaultLimits возвращает ограничения по умолчанию.
func DefaultLimits() Limits {
	return Limits{FreeJoin: 2, FreeCreate: 3, PremiumCreate: 5}
}

// CreateLimit возвращает лимит созданных челленджей для пользователя.
func (l Limits) CreateLimit(u User) int {
	if u.Premium {
		return l.PremiumCreate
	}
	return l.FreeCreate
}

// UserOrDefault превращает отсутствующую запись пользователя в
// пользователя по умолчанию: без премиума, с нулевыми счётчиками и
// пустыми списками. nil-списки выравниваются и у хранимых записей:
// документ, заведённый одним инкрементом счётчика, полей-массивов не
// имеет, а наружу должны уходить [], а не null.
func UserOrDefault(u *User, id string) User {
	out := User{ID: id}
	if u != nil {
		out = *u
		out.ID = id
	}
	if out.Friends == nil {
		out.Friends = []string{}
	}
	if out.Subscriptions == nil {
		out.Subscriptions = []string{}
	}
	return out
}

// RankingOrDefault превращает отсутствующую запись рейтинга в нулевую.
func RankingOrDefault(r *RankingEntry) RankingEntry {
	if r == nil {
		return RankingEntry{}
	}
	return *r
}

// MutationOp — вид записи в документное хранилище.
type MutationOp string

const (
	MutationSet       MutationOp = "set"
	MutationIncrement MutationOp = "increment"
	MutationAppend    MutationOp = "append"
)

// Mutation — один шаг плана записи. Шаги применяются по порядку,
// каждый атомарен сам по себе, общей транзакции нет.
type Mutation struct {
	Op         MutationOp
	Collection string
	ID         string
	Field      string
	Delta      int64
	Element    any
	Doc        any
	Merge      bool
}

// FilterActive скрывает main-челленджи от пользователей без премиума.
// Порядок входного списка сохраняется.
func FilterActive(challenges []Challenge, u User) []Challenge {
	filtered := make([]Challenge, 0, len(challenges))
	for _, c := range challenges {
		if c.Type == ChallengeTypeMain && !u.Premium {
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered
}

// EvaluateJoin проверяет право пользователя вступить в челлендж и
// возвращает план записи. Порядок проверок закреплён: сначала дедлайн,
// потом премиум, потом лимит.
func EvaluateJoin(c Challenge, u User, limits Limits, now time.Time) ([]Mutation, error) {
	if !c.JoinOpen(now) {
		return nil, ErrDeadlinePassed
	}
	if c.Type == ChallengeTypeMain && !u.Premium {
		return nil, ErrPremiumRequired
	}
	if !u.Premium && u.ChallengesJoined >= limits.FreeJoin {
		return nil, ErrJoinLimit
	}
	joined := now
	return []Mutation{
		{
			Op:         MutationAppend,
			Collection: CollectionChallenges,
			ID:         c.ID,
			Field:      "participants",
			Element:    Participant{UserID: u.ID, Score: 0, JoinedDay: &joined},
		},
		{
			Op:         MutationIncrement,
			Collection: CollectionUsers,
			ID:         u.ID,
			Field:      "challengesJoined",
			Delta:      1,
		},
		{
			Op:         MutationSet,
			Collection: CollectionUserChallenges,
			ID:         UserChallengeID(u.ID, c.ID),
			Doc: UserChallenge{
				UserID:        u.ID,
				ChallengeID:   c.ID,
				DailyProgress: []string{},
				Joined:        true,
			},
		},
	}, nil
}

// NewUserChallenge собирает пользовательский челлендж: создатель первым
// участником, затем друзья. Друзья — доверенный ввод, без проверок и
// дедупликации.
func NewUserChallenge(id, title, creatorID string, friendIDs []string, now time.Time) Challenge {
	participants := make([]Participant, 0, len(friendIDs)+1)
	participants = append(participants, Participant{UserID: creatorID, Score: 0})
	for _, friendID := range friendIDs {
		participants = append(participants, Participant{UserID: friendID, Score: 0})
	}
	return Challenge{
		ID:           id,
		Title:        title,
		Type:         ChallengeTypeUser,
		Days:         ChallengeDays,
		CurrentDay:   1,
		Participants: participants,
		CreatedBy:    creatorID,
		JoinDeadline: now.Add(JoinWindow),
		EndDate:      now.Add(ChallengeTerm),
		IsActive:     true,
	}
}

// NewMainChallenge собирает админский челлендж: та же форма, но тип
// main и без участников.
func NewMainChallenge(id, title, adminID string, now time.Time) Challenge {
	return Challenge{
		ID:           id,
		Title:        title,
		Type:         ChallengeTypeMain,
		Days:         ChallengeDays,
		CurrentDay:   1,
		Participants: []Participant{},
		CreatedBy:    adminID,
		JoinDeadline: now.Add(JoinWindow),
		EndDate:      now.Add(ChallengeTerm),
		IsActive:     true,
	}
}

// EvaluateCreate проверяет лимит созданных челленджей и возвращает
// план записи нового челленджа.
func EvaluateCreate(c Challenge, u User, limits Limits) ([]Mutation, error) {
	if u.ChallengesCreated >= limits.CreateLimit(u) {
		return nil, ErrCreateLimit
	}
	return []Mutation{
		{
			Op:         MutationSet,
			Collection: CollectionChallenges,
			ID:         c.ID,
			Doc:        c,
		},
		{
			Op:         MutationIncrement,
			Collection: CollectionUsers,
			ID:         u.ID,
			Field:      "challengesCreated",
			Delta:      1,
		},
	}, nil
}

// EvaluateCreateMain пускает только сконфигурированного админа.
// Лимиты на админа не действуют, счётчик создателя не трогается.
func EvaluateCreateMain(c Challenge, requesterID, adminID string) ([]Mutation, error) {
	if adminID == "" || requesterID != adminID {
		return nil, ErrNotAdmin
	}
	return []Mutation{
		{
			Op:         MutationSet,
			Collection: CollectionChallenges,
			ID:         c.ID,
			Doc:        c,
		},
	}, nil
}

// BuildProfile собирает профиль с производными полями.
func BuildProfile(u User, ranking RankingEntry) Profile {
	return Profile{
		User:        u,
		FriendCount: len(u.Friends),
		SubCount:    len(u.Subscriptions),
		GlobalRank:  ranking.Score,
	}
}
