package notify

import (
	"github.com/google/uuid"
)

// HubNotifier adapts the hub to the poll engine's notifier port. Events are
// fanned out to local watchers and published to Redis for other instances.
type HubNotifier struct {
	hub *Hub
}

// NewHubNotifier wraps a hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

// PollEvent broadcasts a poll lifecycle event to everyone watching the poll.
func (n *HubNotifier) PollEvent(pollID uuid.UUID, event string, payload interface{}) {
	n.hub.BroadcastToPollAndPublish(pollID, event, payload)
}
