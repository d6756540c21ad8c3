// internal/notify/notify.go
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Severity classifies a notification for display.
type Severity string

const (
	Success Severity = "success"
	Error   Severity = "error"
	Info    Severity = "info"
)

// DefaultDismiss is how long a dashboard toast stays visible.
const DefaultDismiss = 3 * time.Second

// Notifier shows a short message to the user. Fire-and-forget.
type Notifier interface {
	Notify(message string, severity Severity)
}

// Notification is one toast as delivered to clients. ExpiresAt tells the
// client when to dismiss it.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Hub fans notifications out to every subscriber. Slow subscribers drop
// messages rather than block the sender.
type Hub struct {
	mu      sync.Mutex
	subs    map[uuid.UUID]chan Notification
	dismiss time.Duration
	logger  *logrus.Logger
	now     func() time.Time
}

// NewHub returns a hub whose notifications expire after dismiss.
func NewHub(dismiss time.Duration, logger *logrus.Logger) *Hub {
	if dismiss <= 0 {
		dismiss = DefaultDismiss
	}
	return &Hub{
		subs:    make(map[uuid.UUID]chan Notification),
		dismiss: dismiss,
		logger:  logger,
		now:     time.Now,
	}
}

// Subscribe registers a buffered receiver. Call the returned func to detach.
func (h *Hub) Subscribe(buffer int) (<-chan Notification, func()) {
	if buffer <= 0 {
		buffer = 10
	}
	id := uuid.New()
	ch := make(chan Notification, buffer)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Notify implements Notifier using the hub's own dismiss interval.
func (h *Hub) Notify(message string, severity Severity) {
	h.send(message, severity, h.dismiss)
}

func (h *Hub) send(message string, severity Severity, dismiss time.Duration) {
	now := h.now()
	n := Notification{
		ID:        uuid.New(),
		Message:   message,
		Severity:  severity,
		CreatedAt: now,
		ExpiresAt: now.Add(dismiss),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- n:
		default:
			if h.logger != nil {
				h.logger.WithField("subscriber", id).Warnf("notification dropped: %q", message)
			}
		}
	}
}

// Recorder keeps every notification in memory. Handlers give each request
// its own recorder and return what it caught in the response; tests use it
// to assert on messages.
type Recorder struct {
	// Dismiss sets ExpiresAt relative to CreatedAt. Zero leaves ExpiresAt
	// equal to CreatedAt.
	Dismiss time.Duration

	mu   sync.Mutex
	Sent []Notification
}

func (r *Recorder) Notify(message string, severity Severity) {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = append(r.Sent, Notification{
		ID:        uuid.New(),
		Message:   message,
		Severity:  severity,
		CreatedAt: now,
		ExpiresAt: now.Add(r.Dismiss),
	})
}

// All returns a copy of everything recorded so far, never nil.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.Sent))
	copy(out, r.Sent)
	return out
}

// Last returns the most recent notification, if any.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Sent) == 0 {
		return Notification{}, false
	}
	return r.Sent[len(r.Sent)-1], true
}

// Multi forwards to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(message string, severity Severity) {
	for _, n := range m {
		if n != nil {
			n.Notify(message, severity)
		}
	}
}
