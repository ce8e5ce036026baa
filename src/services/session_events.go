package services

import (
	"sync"
	"time"
)

// SessionEventType names a change in a user's authentication state.
type SessionEventType string

const (
	EventSignedIn         SessionEventType = "SIGNED_IN"
	EventSignedOut        SessionEventType = "SIGNED_OUT"
	EventPasswordRecovery SessionEventType = "PASSWORD_RECOVERY"
	EventUserUpdated      SessionEventType = "USER_UPDATED"
)

const subscriberBuffer = 16

// SessionEvent is delivered to every subscriber of the user it concerns.
type SessionEvent struct {
	Type   SessionEventType `json:"type"`
	UserID int64            `json:"user_id"`
	At     time.Time        `json:"at"`
}

type subscriber struct {
	userID int64
	out    chan SessionEvent
}

// SessionEvents fans session changes out to open client connections.
type SessionEvents struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

func NewSessionEvents() *SessionEvents {
	return &SessionEvents{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers a listener for userID. The returned cancel func must be
// called when the listener goes away; it closes the channel.
func (b *SessionEvents) Subscribe(userID int64) (<-chan SessionEvent, func()) {
	sub := &subscriber{userID: userID, out: make(chan SessionEvent, subscriberBuffer)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return sub.out, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
			close(sub.out)
		})
	}
}

// Publish never blocks; a subscriber with a full buffer misses the event.
func (b *SessionEvents) Publish(userID int64, eventType SessionEventType) {
	ev := SessionEvent{Type: eventType, UserID: userID, At: time.Now().UTC()}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if sub.userID != userID {
			continue
		}
		select {
		case sub.out <- ev:
		default:
		}
	}
}

// Subscribers reports how many listeners userID has.
func (b *SessionEvents) Subscribers(userID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for sub := range b.subs {
		if sub.userID == userID {
			n++
		}
	}
	return n
}
