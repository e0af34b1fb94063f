package notify

import (
	"context"
	"fmt"
	"time"

	"freightflow/internal/shared/mq"
	"freightflow/internal/shared/util"
)

// Dispatcher publishes user-facing events onto the topic exchange with the
// routing key "notify.<event_type>". Delivery is best effort: a broker hiccup
// is logged and swallowed so it never fails the business operation that
// produced the event.
type Dispatcher struct {
	publisher *mq.Publisher
	logger    *util.Logger
}

func NewDispatcher(publisher *mq.Publisher, logger *util.Logger) *Dispatcher {
	return &Dispatcher{publisher: publisher, logger: logger}
}

type envelope struct {
	UserID    string                 `json:"user_id"`
	EventType string                 `json:"event_type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	SentAt    time.Time              `json:"sent_at"`
}

func (d *Dispatcher) Notify(ctx context.Context, userID, eventType string, payload map[string]interface{}) {
	instance := "Dispatcher.Notify"

	msg := envelope{
		UserID:    userID,
		EventType: eventType,
		Payload:   payload,
		SentAt:    time.Now().UTC(),
	}

	if err := d.publisher.Publish(ctx, "notify."+eventType, msg); err != nil {
		d.logger.Warn(instance, fmt.Sprintf("dropped %s notification for user %s: %v", eventType, userID, err))
		return
	}
	d.logger.Info(instance, fmt.Sprintf("published %s for user %s", eventType, userID))
}
