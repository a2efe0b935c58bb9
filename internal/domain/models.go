package domain

import "time"

// Status is the lifecycle state of a battle.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// MaxParticipants is the fixed size of a battle.
const MaxParticipants = 2

// NoAnswer is submitted when the countdown expires before an option is picked.
const NoAnswer = -1

// Battle is one two-party competitive quiz session.
type Battle struct {
	ID               string     `json:"id"`
	SubjectID        string     `json:"subjectId,omitempty"`
	Status           Status     `json:"status"`
	IsPrivate        bool       `json:"isPrivate"`
	RoomCode         string     `json:"roomCode"`
	CreatedBy        string     `json:"createdBy"`
	WinnerID         string     `json:"winnerId,omitempty"`
	ParticipantCount int        `json:"participantCount"`
	CreatedAt        time.Time  `json:"createdAt"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

// Participant is a user's membership in a battle.
type Participant struct {
	BattleID      string    `json:"battleId"`
	UserID        string    `json:"userId"`
	Score         int       `json:"score"`
	CorrectCount  int       `json:"correctCount"`
	AnsweredCount int       `json:"answeredCount"`
	TotalTimeMs   int64     `json:"totalTimeMs"`
	Ready         bool      `json:"ready"`
	JoinedAt      time.Time `json:"joinedAt"`
}

// Question is one multiple-choice question from the question repository.
type Question struct {
	ID            string   `json:"id"`
	SubjectID     string   `json:"subjectId,omitempty"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correctOption"`
	Difficulty    string   `json:"difficulty,omitempty"`
}

// QuestionAssignment pins a question to a position in a battle's frozen sequence.
type QuestionAssignment struct {
	BattleID   string   `json:"battleId"`
	QuestionID string   `json:"questionId"`
	OrderIndex int      `json:"orderIndex"`
	Question   Question `json:"question"`
}

// PublicQuestion is what clients see: the frozen question without its answer.
type PublicQuestion struct {
	OrderIndex int      `json:"orderIndex"`
	QuestionID string   `json:"questionId"`
	Text       string   `json:"text"`
	Options    []string `json:"options"`
	Difficulty string   `json:"difficulty,omitempty"`
}

// AnswerEvent is one participant's response to one question. It only exists
// through its effect on the participant tallies.
type AnswerEvent struct {
	BattleID           string
	UserID             string
	QuestionOrderIndex int
	IsCorrect          bool
	TimeSpentMs        int64
	PointsAwarded      int
}

// AnswerResult summarizes the outcome of a submission for a single user.
type AnswerResult struct {
	QuestionOrderIndex int  `json:"questionOrderIndex"`
	Correct            bool `json:"correct"`
	Awarded            int  `json:"awarded"`
	TotalScore         int  `json:"totalScore"`
	CorrectCount       int  `json:"correctCount"`
	Duplicate          bool `json:"duplicate,omitempty"`
}

// CompletionResult is returned to every caller of CompleteBattle. Transitioned
// is true only for the caller whose write moved the battle to completed.
type CompletionResult struct {
	Battle       Battle `json:"battle"`
	WinnerID     string `json:"winnerId"`
	Transitioned bool   `json:"transitioned"`
}

// Profile is display data resolved from the identity service.
type Profile struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// ParticipantView is a participant enriched with profile data for display.
type ParticipantView struct {
	Participant
	Profile *Profile `json:"profile,omitempty"`
}

// BattleSnapshot is the authoritative state used for reconciliation pulls.
type BattleSnapshot struct {
	Battle        Battle            `json:"battle"`
	Participants  []ParticipantView `json:"participants"`
	QuestionCount int               `json:"questionCount"`
	ReadAt        time.Time         `json:"readAt"`
}

// Participant returns the view for userID, if present.
func (s BattleSnapshot) Participant(userID string) (ParticipantView, bool) {
	for _, p := range s.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return ParticipantView{}, false
}
