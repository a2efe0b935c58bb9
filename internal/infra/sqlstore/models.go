package sqlstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"quiz-battle-service/internal/domain"
)

type battleRow struct {
	bun.BaseModel `bun:"table:battles,alias:b"`

	ID               string     `bun:"id,pk"`
	SubjectID        *string    `bun:"subject_id"`
	Status           string     `bun:"status,notnull"`
	IsPrivate        bool       `bun:"is_private,notnull"`
	RoomCode         string     `bun:"room_code,notnull"`
	CreatedBy        string     `bun:"created_by,notnull"`
	WinnerID         *string    `bun:"winner_id"`
	ParticipantCount int        `bun:"participant_count,notnull"`
	CreatedAt        time.Time  `bun:"created_at,notnull"`
	StartedAt        *time.Time `bun:"started_at"`
	CompletedAt      *time.Time `bun:"completed_at"`
}

type participantRow struct {
	bun.BaseModel `bun:"table:battle_participants,alias:p"`

	BattleID      string    `bun:"battle_id,pk"`
	UserID        string    `bun:"user_id,pk"`
	Score         int       `bun:"score,notnull"`
	CorrectCount  int       `bun:"correct_count,notnull"`
	AnsweredCount int       `bun:"answered_count,notnull"`
	TotalTimeMs   int64     `bun:"total_time_ms,notnull"`
	Ready         bool      `bun:"ready,notnull"`
	JoinedAt      time.Time `bun:"joined_at,notnull"`
}

type battleQuestionRow struct {
	bun.BaseModel `bun:"table:battle_questions,alias:bq"`

	BattleID      string `bun:"battle_id,pk"`
	OrderIndex    int    `bun:"order_index,pk"`
	QuestionID    string `bun:"question_id,notnull"`
	CorrectOption int    `bun:"correct_option,notnull"`
	Payload       string `bun:"payload,notnull"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID            string `bun:"id,pk"`
	SubjectID     string `bun:"subject_id,notnull"`
	Text          string `bun:"text,notnull"`
	Options       string `bun:"options,notnull"`
	CorrectOption int    `bun:"correct_option,notnull"`
	Difficulty    string `bun:"difficulty,notnull"`
}

func (r battleRow) toDomain() domain.Battle {
	b := domain.Battle{
		ID:               r.ID,
		Status:           domain.Status(r.Status),
		IsPrivate:        r.IsPrivate,
		RoomCode:         r.RoomCode,
		CreatedBy:        r.CreatedBy,
		ParticipantCount: r.ParticipantCount,
		CreatedAt:        r.CreatedAt.UTC(),
	}
	if r.SubjectID != nil {
		b.SubjectID = *r.SubjectID
	}
	if r.WinnerID != nil {
		b.WinnerID = *r.WinnerID
	}
	if r.StartedAt != nil {
		t := r.StartedAt.UTC()
		b.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := r.CompletedAt.UTC()
		b.CompletedAt = &t
	}
	return b
}

func (r participantRow) toDomain() domain.Participant {
	return domain.Participant{
		BattleID:      r.BattleID,
		UserID:        r.UserID,
		Score:         r.Score,
		CorrectCount:  r.CorrectCount,
		AnsweredCount: r.AnsweredCount,
		TotalTimeMs:   r.TotalTimeMs,
		Ready:         r.Ready,
		JoinedAt:      r.JoinedAt.UTC(),
	}
}

func newParticipantRow(p domain.Participant) participantRow {
	return participantRow{
		BattleID:      p.BattleID,
		UserID:        p.UserID,
		Score:         p.Score,
		CorrectCount:  p.CorrectCount,
		AnsweredCount: p.AnsweredCount,
		TotalTimeMs:   p.TotalTimeMs,
		Ready:         p.Ready,
		JoinedAt:      p.JoinedAt.UTC(),
	}
}

func newBattleQuestionRow(a domain.QuestionAssignment) (battleQuestionRow, error) {
	payload, err := json.Marshal(a.Question)
	if err != nil {
		return battleQuestionRow{}, fmt.Errorf("marshal question %s: %w", a.QuestionID, err)
	}
	return battleQuestionRow{
		BattleID:      a.BattleID,
		OrderIndex:    a.OrderIndex,
		QuestionID:    a.QuestionID,
		CorrectOption: a.Question.CorrectOption,
		Payload:       string(payload),
	}, nil
}

func (r battleQuestionRow) toDomain() (domain.QuestionAssignment, error) {
	var q domain.Question
	if err := json.Unmarshal([]byte(r.Payload), &q); err != nil {
		return domain.QuestionAssignment{}, fmt.Errorf("unmarshal question %s: %w", r.QuestionID, err)
	}
	q.CorrectOption = r.CorrectOption
	return domain.QuestionAssignment{
		BattleID:   r.BattleID,
		QuestionID: r.QuestionID,
		OrderIndex: r.OrderIndex,
		Question:   q,
	}, nil
}

func (r questionRow) toDomain() (domain.Question, error) {
	var options []string
	if err := json.Unmarshal([]byte(r.Options), &options); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal options of %s: %w", r.ID, err)
	}
	return domain.Question{
		ID:            r.ID,
		SubjectID:     r.SubjectID,
		Text:          r.Text,
		Options:       options,
		CorrectOption: r.CorrectOption,
		Difficulty:    r.Difficulty,
	}, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
