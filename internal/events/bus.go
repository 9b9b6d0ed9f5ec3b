// Package events defines the two events that link the intro pipeline to the AMC
// ledger. The bus is platform/events; nothing here leaves the process.
package events

import (
	platformevents "intro_pipeline_backend/platform/events"
	"intro_pipeline_backend/platform/logger"
)

type (
	Event       = platformevents.Event
	Bus         = platformevents.Bus
	Handler     = platformevents.Handler
	HandlerFunc = platformevents.HandlerFunc
	BaseEvent   = platformevents.BaseEvent
	InMemoryBus = platformevents.InMemoryBus
)

var NewBaseEvent = platformevents.NewBaseEvent

// NewInMemoryBus returns the bus shared by the intros and ledger modules. Handlers run
// asynchronously; cmd/api drains them with Wait on shutdown.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}
