package memory

import (
	"context"
	"log"
	"sync"

	"quiz-battle-service/internal/domain"
)

// LogNotifier records invites and writes them to the log. It stands in for a
// real push channel in single-node and test setups.
type LogNotifier struct {
	mu      sync.Mutex
	invites []domain.Invite
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) NotifyInvite(_ context.Context, invite domain.Invite) error {
	n.mu.Lock()
	n.invites = append(n.invites, invite)
	n.mu.Unlock()
	log.Printf("invite: %s -> %s battle %s room %s", invite.InviterID, invite.FriendID, invite.BattleID, invite.RoomCode)
	return nil
}

// Sent returns the invites delivered so far.
func (n *LogNotifier) Sent() []domain.Invite {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Invite(nil), n.invites...)
}
