package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/uptrace/bun"
	"quiz-battle-service/internal/domain"
)

// QuestionLoader reads question pools from the questions table of the battle database.
type QuestionLoader struct {
	db *bun.DB
}

func NewQuestionLoader(db *bun.DB) *QuestionLoader {
	return &QuestionLoader{db: db}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context, subjectID string) ([]domain.Question, error) {
	var rows []questionRow
	err := l.db.NewSelect().Model(&rows).
		Where("subject_id = ?", subjectID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrSubjectUnavailable
	}
	out := make([]domain.Question, 0, len(rows))
	for _, r := range rows {
		q, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// SeedQuestions upserts questions by id.
func SeedQuestions(ctx context.Context, db bun.IDB, questions []domain.Question) error {
	if len(questions) == 0 {
		return nil
	}
	rows := make([]questionRow, 0, len(questions))
	for _, q := range questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("marshal options of %s: %w", q.ID, err)
		}
		rows = append(rows, questionRow{
			ID:            q.ID,
			SubjectID:     q.SubjectID,
			Text:          q.Text,
			Options:       string(options),
			CorrectOption: q.CorrectOption,
			Difficulty:    q.Difficulty,
		})
	}
	_, err := db.NewInsert().Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("subject_id = EXCLUDED.subject_id").
		Set("text = EXCLUDED.text").
		Set("options = EXCLUDED.options").
		Set("correct_option = EXCLUDED.correct_option").
		Set("difficulty = EXCLUDED.difficulty").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("seed questions: %w", err)
	}
	return nil
}
