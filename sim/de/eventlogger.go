package de

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/tempora/sim/eventqueue"
	"github.com/sarchlab/tempora/sim/hooking"
)

// EventLogger is a hook that logs every dispatched event at debug level.
type EventLogger struct {
	logger logrus.FieldLogger
}

// NewEventLogger creates an EventLogger writing to l.
func NewEventLogger(l logrus.FieldLogger) *EventLogger {
	return &EventLogger{logger: l}
}

// Func logs the events of a firing.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosBeforeFire {
		return
	}

	batch, ok := ctx.Detail.([]eventqueue.Event)
	if !ok {
		return
	}

	for _, e := range batch {
		h.logger.WithFields(logrus.Fields{
			"time":      e.Tag.Time,
			"microstep": e.Tag.Microstep,
			"depth":     e.Depth,
			"actor":     e.Actor.Name(),
		}).Debug(e.String())
	}
}
