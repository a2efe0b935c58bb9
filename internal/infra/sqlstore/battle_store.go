package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
)

// BattleStore persists battles with bun. Every guarded transition is a
// conditional UPDATE inside a transaction, so concurrent callers on any
// number of service instances see exactly one winner per transition.
type BattleStore struct {
	db *bun.DB
}

func NewBattleStore(db *bun.DB) *BattleStore {
	return &BattleStore{db: db}
}

func (s *BattleStore) CreateBattle(ctx context.Context, battle domain.Battle, creator domain.Participant, questions []domain.QuestionAssignment) error {
	questionRows := make([]battleQuestionRow, 0, len(questions))
	for _, q := range questions {
		row, err := newBattleQuestionRow(q)
		if err != nil {
			return err
		}
		questionRows = append(questionRows, row)
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// the partial unique index on room_code turns a collision into a no-op insert
		res, err := tx.ExecContext(ctx, `
INSERT INTO battles (id, subject_id, status, is_private, room_code, created_by, participant_count, created_at)
VALUES (?, ?, ?, ?, ?, ?, 1, ?)
ON CONFLICT DO NOTHING`,
			battle.ID,
			nullable(battle.SubjectID),
			string(domain.StatusWaiting),
			battle.IsPrivate,
			battle.RoomCode,
			battle.CreatedBy,
			battle.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert battle: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return domain.ErrRoomCodeTaken
		}

		row := newParticipantRow(creator)
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert creator: %w", err)
		}
		if len(questionRows) > 0 {
			if _, err := tx.NewInsert().Model(&questionRows).Exec(ctx); err != nil {
				return fmt.Errorf("insert questions: %w", err)
			}
		}
		return nil
	})
}

func (s *BattleStore) GetBattle(ctx context.Context, battleID string) (domain.Battle, error) {
	return getBattle(ctx, s.db, battleID)
}

func (s *BattleStore) FindWaitingByRoomCode(ctx context.Context, roomCode string) (domain.Battle, error) {
	var row battleRow
	err := s.db.NewSelect().Model(&row).
		Where("room_code = ?", roomCode).
		Where("status = ?", string(domain.StatusWaiting)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Battle{}, domain.ErrBattleNotFound
	}
	if err != nil {
		return domain.Battle{}, fmt.Errorf("find battle by room code: %w", err)
	}
	return row.toDomain(), nil
}

func (s *BattleStore) ListOpenBattles(ctx context.Context, limit int) ([]domain.Battle, error) {
	var rows []battleRow
	q := s.db.NewSelect().Model(&rows).
		Where("status = ?", string(domain.StatusWaiting)).
		Where("is_private = ?", false).
		OrderExpr("created_at DESC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list open battles: %w", err)
	}
	out := make([]domain.Battle, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *BattleStore) Participants(ctx context.Context, battleID string) ([]domain.Participant, error) {
	if _, err := getBattle(ctx, s.db, battleID); err != nil {
		return nil, err
	}
	return participants(ctx, s.db, battleID)
}

func (s *BattleStore) Questions(ctx context.Context, battleID string) ([]domain.QuestionAssignment, error) {
	if _, err := getBattle(ctx, s.db, battleID); err != nil {
		return nil, err
	}
	var rows []battleQuestionRow
	err := s.db.NewSelect().Model(&rows).
		Where("battle_id = ?", battleID).
		Order("order_index ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load battle questions: %w", err)
	}
	out := make([]domain.QuestionAssignment, 0, len(rows))
	for _, r := range rows {
		a, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *BattleStore) AddParticipant(ctx context.Context, participant domain.Participant, activate bool, now time.Time) (bool, error) {
	var activated bool
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := getBattle(ctx, tx, participant.BattleID); err != nil {
			return err
		}
		if _, err := getParticipant(ctx, tx, participant.BattleID, participant.UserID); err == nil {
			return domain.ErrAlreadyJoined
		} else if !errors.Is(err, domain.ErrNotParticipant) {
			return err
		}

		res, err := tx.ExecContext(ctx, `
UPDATE battles SET participant_count = participant_count + 1
WHERE id = ? AND status = ? AND participant_count < ?`,
			participant.BattleID, string(domain.StatusWaiting), domain.MaxParticipants)
		if err != nil {
			return fmt.Errorf("claim seat: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			current, err := getBattle(ctx, tx, participant.BattleID)
			if err != nil {
				return err
			}
			if current.Status != domain.StatusWaiting && current.ParticipantCount < domain.MaxParticipants {
				return domain.ErrBattleNotWaiting
			}
			return domain.ErrBattleFull
		}

		row := newParticipantRow(participant)
		res, err = tx.NewInsert().Model(&row).On("CONFLICT DO NOTHING").Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return domain.ErrAlreadyJoined
		}

		if !activate {
			return nil
		}
		activated, err = activateBattle(ctx, tx, participant.BattleID, now)
		return err
	})
	if err != nil {
		return false, err
	}
	return activated, nil
}

func (s *BattleStore) SetReady(ctx context.Context, battleID, userID string, ready bool, now time.Time) (bool, error) {
	var activated bool
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockBattle(ctx, tx, battleID); err != nil {
			return err
		}
		battle, err := getBattle(ctx, tx, battleID)
		if err != nil {
			return err
		}
		if _, err := getParticipant(ctx, tx, battleID, userID); err != nil {
			return err
		}
		if battle.Status != domain.StatusWaiting {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `UPDATE battle_participants SET ready = ? WHERE battle_id = ? AND user_id = ?`, ready, battleID, userID); err != nil {
			return fmt.Errorf("set ready: %w", err)
		}
		if battle.ParticipantCount < domain.MaxParticipants {
			return nil
		}
		notReady, err := tx.NewSelect().Model((*participantRow)(nil)).
			Where("battle_id = ?", battleID).
			Where("ready = ?", false).
			Count(ctx)
		if err != nil {
			return fmt.Errorf("count unready participants: %w", err)
		}
		if notReady > 0 {
			return nil
		}
		activated, err = activateBattle(ctx, tx, battleID, now)
		return err
	})
	if err != nil {
		return false, err
	}
	return activated, nil
}

func (s *BattleStore) ApplyAnswer(ctx context.Context, answer domain.AnswerEvent) (domain.Participant, error) {
	var current domain.Participant
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// serializes with CompleteBattle so no answer lands after the winner is fixed
		if err := lockBattle(ctx, tx, answer.BattleID); err != nil {
			return err
		}
		battle, err := getBattle(ctx, tx, answer.BattleID)
		if err != nil {
			return err
		}
		current, err = getParticipant(ctx, tx, answer.BattleID, answer.UserID)
		if err != nil {
			return err
		}
		switch {
		case current.AnsweredCount > answer.QuestionOrderIndex:
			return domain.ErrDuplicateAnswer
		case battle.Status != domain.StatusActive:
			return domain.ErrBattleNotActive
		case current.AnsweredCount < answer.QuestionOrderIndex:
			return domain.ErrAnswerOutOfOrder
		}

		correct := 0
		if answer.IsCorrect {
			correct = 1
		}
		res, err := tx.ExecContext(ctx, `
UPDATE battle_participants
SET score = score + ?,
    correct_count = correct_count + ?,
    answered_count = answered_count + 1,
    total_time_ms = total_time_ms + ?
WHERE battle_id = ? AND user_id = ? AND answered_count = ?`,
			answer.PointsAwarded, correct, answer.TimeSpentMs,
			answer.BattleID, answer.UserID, answer.QuestionOrderIndex)
		if err != nil {
			return fmt.Errorf("apply answer: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return domain.ErrDuplicateAnswer
		}
		current, err = getParticipant(ctx, tx, answer.BattleID, answer.UserID)
		return err
	})
	return current, err
}

func (s *BattleStore) CompleteBattle(ctx context.Context, battleID string, now time.Time, pick app.WinnerFunc) (domain.Battle, bool, error) {
	var (
		battle       domain.Battle
		transitioned bool
	)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE battles SET status = ?, completed_at = ? WHERE id = ? AND status = ?`,
			string(domain.StatusCompleted), now.UTC(), battleID, string(domain.StatusActive))
		if err != nil {
			return fmt.Errorf("complete battle: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			battle, err = getBattle(ctx, tx, battleID)
			if err != nil {
				return err
			}
			if battle.Status != domain.StatusCompleted {
				return domain.ErrBattleNotActive
			}
			return nil
		}

		ps, err := participants(ctx, tx, battleID)
		if err != nil {
			return err
		}
		winner := pick(ps)
		if _, err := tx.ExecContext(ctx, `UPDATE battles SET winner_id = ? WHERE id = ?`, nullable(winner), battleID); err != nil {
			return fmt.Errorf("record winner: %w", err)
		}
		transitioned = true
		battle, err = getBattle(ctx, tx, battleID)
		return err
	})
	if err != nil {
		return domain.Battle{}, false, err
	}
	return battle, transitioned, nil
}

func (s *BattleStore) CancelBattle(ctx context.Context, battleID string, _ time.Time) (domain.Battle, bool, error) {
	var (
		battle       domain.Battle
		transitioned bool
	)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE battles SET status = ? WHERE id = ? AND status = ?`,
			string(domain.StatusCancelled), battleID, string(domain.StatusWaiting))
		if err != nil {
			return fmt.Errorf("cancel battle: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		battle, err = getBattle(ctx, tx, battleID)
		if err != nil {
			return err
		}
		if n == 1 {
			transitioned = true
			return nil
		}
		if battle.Status != domain.StatusCancelled {
			return domain.ErrBattleNotWaiting
		}
		return nil
	})
	if err != nil {
		return domain.Battle{}, false, err
	}
	return battle, transitioned, nil
}

// lockBattle takes the battle row lock for the rest of the transaction.
func lockBattle(ctx context.Context, db bun.IDB, battleID string) error {
	res, err := db.ExecContext(ctx, `UPDATE battles SET participant_count = participant_count WHERE id = ?`, battleID)
	if err != nil {
		return fmt.Errorf("lock battle: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrBattleNotFound
	}
	return nil
}

func activateBattle(ctx context.Context, db bun.IDB, battleID string, now time.Time) (bool, error) {
	res, err := db.ExecContext(ctx, `
UPDATE battles SET status = ?, started_at = ?
WHERE id = ? AND status = ? AND participant_count = ?`,
		string(domain.StatusActive), now.UTC(), battleID, string(domain.StatusWaiting), domain.MaxParticipants)
	if err != nil {
		return false, fmt.Errorf("activate battle: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func getBattle(ctx context.Context, db bun.IDB, battleID string) (domain.Battle, error) {
	var row battleRow
	err := db.NewSelect().Model(&row).Where("id = ?", battleID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Battle{}, domain.ErrBattleNotFound
	}
	if err != nil {
		return domain.Battle{}, fmt.Errorf("load battle: %w", err)
	}
	return row.toDomain(), nil
}

func getParticipant(ctx context.Context, db bun.IDB, battleID, userID string) (domain.Participant, error) {
	var row participantRow
	err := db.NewSelect().Model(&row).
		Where("battle_id = ?", battleID).
		Where("user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Participant{}, domain.ErrNotParticipant
	}
	if err != nil {
		return domain.Participant{}, fmt.Errorf("load participant: %w", err)
	}
	return row.toDomain(), nil
}

func participants(ctx context.Context, db bun.IDB, battleID string) ([]domain.Participant, error) {
	var rows []participantRow
	err := db.NewSelect().Model(&rows).
		Where("battle_id = ?", battleID).
		OrderExpr("joined_at ASC, user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	out := make([]domain.Participant, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
