package usecase

import (
	"time"

	"livescribe/internal/domain"
	"livescribe/internal/ports"
)

const notificationTTL = 3 * time.Second

// notifier shows one banner at a time. Expiry callbacks are posted back to
// the controller loop, and dismissal only hides the banner it was armed for.
type notifier struct {
	surface ports.Presentation
	clock   ports.Clock
	post    func(func())

	seq     uint64
	current uint64
	timer   ports.Timer
}

func newNotifier(surface ports.Presentation, clock ports.Clock, post func(func())) *notifier {
	return &notifier{surface: surface, clock: clock, post: post}
}

func (n *notifier) Success(message string) domain.Notification {
	return n.show(message, domain.NotificationSuccess)
}

func (n *notifier) Error(message string) domain.Notification {
	return n.show(message, domain.NotificationError)
}

func (n *notifier) show(message string, kind domain.NotificationKind) domain.Notification {
	if n.timer != nil {
		n.timer.Stop()
	}

	n.seq++
	id := n.seq
	notification := domain.Notification{
		ID:        id,
		Message:   message,
		Kind:      kind,
		ExpiresAt: n.clock.Now().Add(notificationTTL),
	}
	n.current = id
	n.surface.ShowNotification(notification)
	n.timer = n.clock.AfterFunc(notificationTTL, func() {
		n.post(func() { n.Dismiss(id) })
	})
	return notification
}

// Dismiss hides notification id if it is still the one on screen.
func (n *notifier) Dismiss(id uint64) bool {
	if id == 0 || n.current != id {
		return false
	}
	n.current = 0
	n.timer = nil
	n.surface.HideNotification(id)
	return true
}

func (n *notifier) Close() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}
