package domain

import "errors"

var (
	// ErrBattleNotFound is returned when no battle matches the id or room code.
	ErrBattleNotFound = errors.New("battle not found")
	// ErrAlreadyJoined is returned when a user joins a battle they are already in.
	ErrAlreadyJoined = errors.New("already joined battle")
	// ErrBattleFull is returned when a battle already has two participants.
	ErrBattleFull = errors.New("battle is full")
	// ErrBattleNotWaiting is returned when an operation needs a waiting battle.
	ErrBattleNotWaiting = errors.New("battle is not waiting for players")
	// ErrBattleNotActive is returned when an operation needs an active battle.
	ErrBattleNotActive = errors.New("battle is not active")
	// ErrNotParticipant is returned when a user acts on a battle they have not joined.
	ErrNotParticipant = errors.New("user is not a participant")
	// ErrNotCreator is returned when a creator-only action is attempted by someone else.
	ErrNotCreator = errors.New("only the battle creator can do that")
	// ErrSubjectUnavailable indicates neither the subject nor the fallback pool has enough questions.
	ErrSubjectUnavailable = errors.New("subject has no questions")
	// ErrQuestionNotFound indicates the order index is outside the frozen sequence.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrDuplicateAnswer indicates the question was already answered by this participant.
	ErrDuplicateAnswer = errors.New("question already answered")
	// ErrAnswerOutOfOrder indicates an answer for a question ahead of the participant's progress.
	ErrAnswerOutOfOrder = errors.New("answer submitted out of order")
	// ErrQuestionsRemaining indicates completion was requested before the caller answered everything.
	ErrQuestionsRemaining = errors.New("questions remaining")
	// ErrRoomCodeTaken indicates a room code collided with another waiting battle.
	ErrRoomCodeTaken = errors.New("room code already in use")
	// ErrInvalidRoomCode indicates a malformed room code.
	ErrInvalidRoomCode = errors.New("invalid room code")
)

// ErrUserRequired is returned when an operation is attempted without a user id.
var ErrUserRequired = errors.New("user id required")
