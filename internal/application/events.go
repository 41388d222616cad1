package application

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/statlerhq/accounts/internal/domain/entity"
	"github.com/statlerhq/accounts/pkg/helpers"
)

// Lifecycle event names. The "user." prefix keeps them routable alongside
// other aggregates on a shared bus.
const (
	EventAdded           = "user.added"
	EventActivated       = "user.activated"
	EventDeactivated     = "user.deactivated"
	EventEdited          = "user.edited"
	EventDeleted         = "user.deleted"
	EventActivatedEdited = "user.activated.edited"
)

// Event is the payload published for each lifecycle change.
type Event struct {
	Name   string    `json:"name"`
	UserID int64     `json:"user_id"`
	UUID   string    `json:"uuid"`
	Email  string    `json:"email"`
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

// EventSink receives lifecycle events. Emission is fire-and-forget: the
// service never fails an operation because a sink misbehaved.
type EventSink interface {
	Emit(ctx context.Context, name string, u *entity.User)
}

// RabbitEventSink publishes events to a durable RabbitMQ queue. Publish
// failures are logged and swallowed.
type RabbitEventSink struct {
	Pub    *helpers.RabbitPublisher
	Logger *logrus.Logger
}

func NewRabbitEventSink(pub *helpers.RabbitPublisher, logger *logrus.Logger) *RabbitEventSink {
	return &RabbitEventSink{Pub: pub, Logger: logger}
}

func (s *RabbitEventSink) Emit(ctx context.Context, name string, u *entity.User) {
	if s.Pub == nil {
		return
	}
	ev := Event{
		Name:   name,
		UserID: u.ID,
		UUID:   u.UUID,
		Email:  u.Email,
		Status: string(u.Status),
		At:     time.Now().UTC(),
	}
	if err := s.Pub.PublishJSON(ctx, ev); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithFields(logrus.Fields{
			"event":   name,
			"user_id": u.ID,
		}).Warn("event publish failed")
	}
}

// updateEvents derives the lifecycle events for a persisted update from the
// status transition. A status change within or out of the active class
// emits activated/deactivated; an edit that leaves an active account's
// status untouched emits activated.edited. Every update emits edited.
func updateEvents(prev, next entity.Status) []string {
	var names []string
	if prev != next {
		if next.IsActiveClass() {
			names = append(names, EventActivated)
		} else {
			names = append(names, EventDeactivated)
		}
	} else if next.IsActiveClass() {
		names = append(names, EventActivatedEdited)
	}
	return append(names, EventEdited)
}
