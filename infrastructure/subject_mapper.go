package infrastructure

import (
	"fmt"

	"crashd/domain/events"
)

// subjectCategories groups event types under second-level subject tokens so
// consumers can subscribe per concern (crash.events.round.>, ...).
var subjectCategories = map[events.EventType]string{
	events.EventTypeUserCreated:         "user",
	events.EventTypeBalanceChange:       "wallet",
	events.EventTypeWagerPlaced:         "wager",
	events.EventTypeWagerCashedOut:      "wager",
	events.EventTypeRoundStarted:        "round",
	events.EventTypeRoundRunning:        "round",
	events.EventTypeRoundCrashed:        "round",
	events.EventTypeDegradedConsistency: "alert",
}

// SubjectFor maps a domain event to its NATS subject
func SubjectFor(event events.Event) string {
	category, ok := subjectCategories[event.Type()]
	if !ok {
		category = "misc"
	}
	return fmt.Sprintf("%s.%s.%s", eventSubjectRoot, category, event.Type())
}
