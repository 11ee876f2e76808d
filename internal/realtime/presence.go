package realtime

import (
	"hospital-queue/internal/models"

	"github.com/rs/zerolog"
)

// PresenceTracker turns registry online/offline transitions into presence_update
// messages on the presence room. Flapping connections are reported as-is.
type PresenceTracker struct {
	registry  *Registry
	publisher Publisher
	log       zerolog.Logger
}

func NewPresenceTracker(log zerolog.Logger, registry *Registry, publisher Publisher) *PresenceTracker {
	t := &PresenceTracker{
		registry:  registry,
		publisher: publisher,
		log:       log.With().Str("component", "presence").Logger(),
	}
	registry.OnPresence(t.observe)
	return t
}

// observe runs under the registry lock; Publish only enqueues.
func (t *PresenceTracker) observe(change PresenceChange) {
	status := models.PresenceOffline
	if change.Online {
		status = models.PresenceOnline
	}

	t.log.Info().Str("user_id", change.UserID).Str("status", status).Msg("presence changed")
	t.publisher.Publish(PresenceRoom, encode(t.log, models.PresenceUpdate{
		Type:      models.MessagePresenceUpdate,
		UserID:    change.UserID,
		Username:  change.Username,
		Status:    status,
		Timestamp: change.At,
	}))
}

func (t *PresenceTracker) IsOnline(userID string) bool {
	return t.registry.IsOnline(userID)
}

func (t *PresenceTracker) OnlineUsers() models.OnlineUsers {
	users := t.registry.OnlineUsers()
	return models.OnlineUsers{
		Type:  models.MessageOnlineUsers,
		Count: len(users),
		Users: users,
	}
}
