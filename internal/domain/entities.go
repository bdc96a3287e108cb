package domain

import "time"

// Имена коллекций в документном хранилище. Совпадают с ключами,
// которые уже использует веб-приложение.
const (
	CollectionUsers          = "users"
	CollectionChallenges     = "challenges"
	CollectionUserChallenges = "userChallenges"
	CollectionGlobalRanking  = "globalRanking"
)

// Тип челленджа.
const (
	ChallengeTypeMain = "main"
	ChallengeTypeUser = "user"
)

// User описывает пользователя Telegram в системе.
type User struct {
	// ID не хранится в теле документа: он и есть ключ документа.
	ID                string   `bson:"-" json:"-"`
	Premium           bool     `bson:"premium" json:"premium"`
	ChallengesJoined  int      `bson:"challengesJoined" json:"challengesJoined"`
	ChallengesCreated int      `bson:"challengesCreated" json:"challengesCreated"`
	Friends           []string `bson:"friends" json:"friends"`
	Subscriptions     []string `bson:"subscriptions" json:"subscriptions"`
	TotalScore        int      `bson:"totalScore" json:"totalScore"`
}

// Participant описывает участника челленджа.
type Participant struct {
	UserID    string     `bson:"userId" json:"userId"`
	Score     int        `bson:"score" json:"score"`
	JoinedDay *time.Time `bson:"joinedDay,omitempty" json:"joinedDay,omitempty"`
}

// Challenge описывает групповой челлендж с окном вступления.
type Challenge struct {
	ID           string        `bson:"_id,omitempty" json:"id,omitempty"`
	Title        string        `bson:"title" json:"title"`
	Type         string        `bson:"type" json:"type"`
	Days         int           `bson:"days" json:"days"`
	CurrentDay   int           `bson:"currentDay" json:"currentDay"`
	Participants []Participant `bson:"participants" json:"participants"`
	CreatedBy    string        `bson:"createdBy" json:"createdBy"`
	JoinDeadline time.Time     `bson:"joinDeadline" json:"joinDeadline"`
	EndDate      time.Time     `bson:"endDate" json:"endDate"`
	IsActive     bool          `bson:"isActive" json:"isActive"`
}

// UserChallenge хранит запись об участии пользователя в челлендже.
// Ключ документа составной: "<userId>_<challengeId>".
type UserChallenge struct {
	UserID        string   `bson:"userId" json:"userId"`
	ChallengeID   string   `bson:"challengeId" json:"challengeId"`
	DailyProgress []string `bson:"dailyProgress" json:"dailyProgress"`
	Joined        bool     `bson:"joined" json:"joined"`
}

// RankingEntry — запись глобального рейтинга. Заполняется внешним
// процессом, здесь только читается.
type RankingEntry struct {
	Score int `bson:"score" json:"score"`
}

// Profile — агрегированный профиль для выдачи наружу.
type Profile struct {
	User
	FriendCount int `json:"friendCount"`
	SubCount    int `json:"subCount"`
	GlobalRank  int `json:"globalRank"`
}

// UserChallengeID возвращает составной ключ записи об участии.
func UserChallengeID(userID, challengeID string) string {
	return userID + "_" + challengeID
}

// JoinOpen сообщает, открыто ли ещё окно вступления.
func (c Challenge) JoinOpen(now time.Time) bool {
	return !now.After(c.JoinDeadline)
}
