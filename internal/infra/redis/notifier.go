package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"quiz-battle-service/internal/domain"
)

// NotificationsChannel is consumed by the notification service, which pushes
// invites to the friend's devices.
const NotificationsChannel = "notifications"

type inviteNotification struct {
	Type string `json:"type"`
	domain.Invite
}

// Notifier publishes battle invites on the notifications channel.
type Notifier struct {
	client *redis.Client
}

func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) NotifyInvite(ctx context.Context, invite domain.Invite) error {
	payload, err := json.Marshal(inviteNotification{Type: "battle_invite", Invite: invite})
	if err != nil {
		return fmt.Errorf("marshal invite: %w", err)
	}
	if err := n.client.Publish(ctx, NotificationsChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish invite: %w", err)
	}
	log.Printf("published battle_invite for %s (battle %s)", invite.FriendID, invite.BattleID)
	return nil
}
