package app

import (
	"context"
	"errors"
	"sort"

	"quiz-battle-service/internal/domain"
)

const (
	maxPoints      = 150
	minPoints      = 100
	pointDecayMs   = 100
	maxDecaySteps  = maxPoints - minPoints
	maxTimeSpentMs = int64(24 * 60 * 60 * 1000)
)

// Points returns the award for one answer: 150 minus one point per full
// 100ms spent, never below 100 for a correct answer, and 0 for a wrong one.
func Points(correct bool, timeSpentMs int64) int {
	if !correct {
		return 0
	}
	if timeSpentMs < 0 {
		timeSpentMs = 0
	}
	steps := timeSpentMs / pointDecayMs
	if steps >= maxDecaySteps {
		return minPoints
	}
	return maxPoints - int(steps)
}

// RankParticipants orders participants best first: score desc, correct
// answers desc, total answer time asc, earliest join, then user id.
func RankParticipants(participants []domain.Participant) []domain.Participant {
	ranked := append([]domain.Participant(nil), participants...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.CorrectCount != b.CorrectCount {
			return a.CorrectCount > b.CorrectCount
		}
		if a.TotalTimeMs != b.TotalTimeMs {
			return a.TotalTimeMs < b.TotalTimeMs
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.UserID < b.UserID
	})
	return ranked
}

// DetermineWinner returns the top ranked participant, or "" when there are none.
// Equal scores still produce a winner through the RankParticipants tie-break.
func DetermineWinner(participants []domain.Participant) string {
	ranked := RankParticipants(participants)
	if len(ranked) == 0 {
		return ""
	}
	return ranked[0].UserID
}

// DetermineWinner reads the battle's participants and returns the current leader.
func (s *BattleService) DetermineWinner(ctx context.Context, battleID string) (string, error) {
	participants, err := s.store.Participants(ctx, battleID)
	if err != nil {
		return "", err
	}
	if len(participants) == 0 {
		if _, err := s.store.GetBattle(ctx, battleID); err != nil {
			return "", err
		}
	}
	return DetermineWinner(participants), nil
}

// SubmitAnswer scores one answer against the frozen question at
// questionOrderIndex. The store adds the points to freshly read tallies, and a
// repeat submission for the same question comes back with Duplicate set.
func (s *BattleService) SubmitAnswer(ctx context.Context, battleID, userID string, questionOrderIndex, selectedOption int, timeSpentMs int64) (domain.AnswerResult, error) {
	questions, err := s.store.Questions(ctx, battleID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if questionOrderIndex < 0 || questionOrderIndex >= len(questions) {
		if len(questions) == 0 {
			if _, err := s.store.GetBattle(ctx, battleID); err != nil {
				return domain.AnswerResult{}, err
			}
		}
		return domain.AnswerResult{}, domain.ErrQuestionNotFound
	}
	question := questions[questionOrderIndex].Question

	if timeSpentMs < 0 {
		timeSpentMs = 0
	}
	if timeSpentMs > maxTimeSpentMs {
		timeSpentMs = maxTimeSpentMs
	}
	correct := selectedOption != domain.NoAnswer && selectedOption == question.CorrectOption
	points := Points(correct, timeSpentMs)

	participant, err := s.store.ApplyAnswer(ctx, domain.AnswerEvent{
		BattleID:           battleID,
		UserID:             userID,
		QuestionOrderIndex: questionOrderIndex,
		IsCorrect:          correct,
		TimeSpentMs:        timeSpentMs,
		PointsAwarded:      points,
	})
	if errors.Is(err, domain.ErrDuplicateAnswer) {
		return domain.AnswerResult{
			QuestionOrderIndex: questionOrderIndex,
			TotalScore:         participant.Score,
			CorrectCount:       participant.CorrectCount,
			Duplicate:          true,
		}, nil
	}
	if err != nil {
		return domain.AnswerResult{}, err
	}

	s.publish(ctx, domain.EventScoreChanged, battleID, userID)
	return domain.AnswerResult{
		QuestionOrderIndex: questionOrderIndex,
		Correct:            correct,
		Awarded:            points,
		TotalScore:         participant.Score,
		CorrectCount:       participant.CorrectCount,
	}, nil
}
