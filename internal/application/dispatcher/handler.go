package dispatcher

import (
	"context"

	"github.com/hrsuite/approval-engine/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo pairs a handler with the name used in dispatch logs
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}
