package app

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"

	"quiz-battle-service/internal/domain"
)

// QuestionSequencer picks and orders the questions a battle is played with.
type QuestionSequencer struct {
	questions       QuestionRepository
	fallbackSubject string
}

func NewQuestionSequencer(questions QuestionRepository, fallbackSubject string) *QuestionSequencer {
	return &QuestionSequencer{questions: questions, fallbackSubject: fallbackSubject}
}

// Freeze selects count questions for the subject, padding from the fallback
// pool when the subject is short, and returns them in a fixed order. The
// order is derived from the battle id so a retried freeze yields the same
// sequence. It never returns fewer than count questions.
func (q *QuestionSequencer) Freeze(ctx context.Context, battleID, subjectID string, count int) ([]domain.QuestionAssignment, error) {
	if count <= 0 {
		return nil, fmt.Errorf("question count must be positive, got %d", count)
	}

	selected, err := q.fetch(ctx, subjectID, count, nil)
	if err != nil {
		return nil, err
	}
	if len(selected) < count && subjectID != q.fallbackSubject {
		seen := make(map[string]struct{}, len(selected))
		for _, question := range selected {
			seen[question.ID] = struct{}{}
		}
		padding, err := q.fetch(ctx, q.fallbackSubject, count, seen)
		if err != nil {
			return nil, err
		}
		for _, question := range padding {
			if len(selected) == count {
				break
			}
			selected = append(selected, question)
		}
	}
	if len(selected) < count {
		return nil, fmt.Errorf("%w: %q has %d of %d questions", domain.ErrSubjectUnavailable, subjectID, len(selected), count)
	}
	selected = selected[:count]

	rng := rand.New(rand.NewSource(seedFor(battleID)))
	rng.Shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})

	assignments := make([]domain.QuestionAssignment, 0, count)
	for i, question := range selected {
		assignments = append(assignments, domain.QuestionAssignment{
			BattleID:   battleID,
			QuestionID: question.ID,
			OrderIndex: i,
			Question:   question,
		})
	}
	return assignments, nil
}

// fetch returns usable questions for subjectID, skipping ids in exclude. An
// unknown subject is an empty pool, not an error.
func (q *QuestionSequencer) fetch(ctx context.Context, subjectID string, count int, exclude map[string]struct{}) ([]domain.Question, error) {
	// over-fetch so duplicates and malformed entries do not leave us short
	questions, err := q.questions.FetchQuestions(ctx, subjectID, count+len(exclude))
	if errors.Is(err, domain.ErrSubjectUnavailable) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch questions for %q: %w", subjectID, err)
	}

	out := make([]domain.Question, 0, len(questions))
	seen := make(map[string]struct{}, len(questions))
	for _, question := range questions {
		if _, skip := exclude[question.ID]; skip {
			continue
		}
		if _, dup := seen[question.ID]; dup {
			continue
		}
		if !validQuestion(question) {
			continue
		}
		seen[question.ID] = struct{}{}
		out = append(out, question)
	}
	return out, nil
}

func validQuestion(q domain.Question) bool {
	return q.ID != "" && len(q.Options) >= 2 && q.CorrectOption >= 0 && q.CorrectOption < len(q.Options)
}

func seedFor(battleID string) int64 {
	sum := sha256.Sum256([]byte(battleID))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}
