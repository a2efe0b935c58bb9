package domain

import "time"

// EventType names a state change pushed over the sync channel.
type EventType string

const (
	EventParticipantJoined EventType = "participant_joined"
	EventReadyChanged      EventType = "ready_changed"
	EventBattleActive      EventType = "battle_active"
	EventScoreChanged      EventType = "score_changed"
	EventBattleCompleted   EventType = "battle_completed"
	EventBattleCancelled   EventType = "battle_cancelled"
)

// Event is a wake-up hint. Consumers re-read state instead of applying it as a delta.
type Event struct {
	Type     EventType `json:"type"`
	BattleID string    `json:"battleId"`
	UserID   string    `json:"userId,omitempty"`
	At       time.Time `json:"at"`
}

// JoinResult is the user-facing outcome of joining by room code.
type JoinResult string

const (
	JoinSuccess       JoinResult = "success"
	JoinAlreadyJoined JoinResult = "alreadyJoined"
	JoinFull          JoinResult = "full"
	JoinNotFound      JoinResult = "notFound"
	JoinIsOwnBattle   JoinResult = "isOwnBattle"
)

// JoinOutcome pairs a JoinResult with the battle it refers to, when known.
type JoinOutcome struct {
	Result JoinResult `json:"result"`
	Battle *Battle    `json:"battle,omitempty"`
}

// Invite asks the notification service to tell a friend about a pending battle.
type Invite struct {
	BattleID  string    `json:"battleId"`
	RoomCode  string    `json:"roomCode"`
	SubjectID string    `json:"subjectId,omitempty"`
	InviterID string    `json:"inviterId"`
	FriendID  string    `json:"friendId"`
	SentAt    time.Time `json:"sentAt"`
}
