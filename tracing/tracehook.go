package tracing

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/sarchlab/tempora/sim/de"
	"github.com/sarchlab/tempora/sim/eventqueue"
	"github.com/sarchlab/tempora/sim/hooking"
	"github.com/sarchlab/tempora/sim/modal"
	"github.com/sarchlab/tempora/sim/naming"
	"github.com/sarchlab/tempora/sim/process"
	"github.com/sarchlab/tempora/sim/realtime"
)

// CollectTrace makes tracer collect the trace of domain, which is usually a
// director. A tracer can be attached to a domain only once.
func CollectTrace(domain hooking.Hookable, tracer Tracer) {
	for _, h := range domain.Hooks() {
		if th, ok := h.(*traceHook); ok && th.t == tracer {
			panic(fmt.Sprintf("domain already has tracer %s",
				reflect.TypeOf(tracer)))
		}
	}

	domain.AcceptHook(&traceHook{t: tracer})
}

type traceHook struct {
	t Tracer
}

func (h *traceHook) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case de.HookPosAfterFire:
		batch, _ := ctx.Detail.([]eventqueue.Event)
		h.t.Fired(Firing{
			Director: nameOf(ctx.Domain),
			Actor:    nameOf(ctx.Item),
			Tag:      ctx.Tag,
			Events:   len(batch),
		})
	case process.HookPosBeforeFire:
		h.t.Fired(Firing{
			Director: nameOf(ctx.Domain),
			Actor:    nameOf(ctx.Item),
		})
	case de.HookPosDeadlineMissed:
		h.t.DeadlineMissed(missOf(ctx))
	case modal.HookPosModeTransition:
		t, _ := ctx.Detail.(modal.Transition)
		h.t.ModeChanged(ModeChange{
			Model:      nameOf(ctx.Item),
			Transition: t.String(),
			From:       t.From,
			To:         t.To,
			Reset:      t.Reset,
			Tag:        ctx.Tag,
		})
	}
}

func missOf(ctx hooking.HookCtx) Miss {
	m := Miss{Actor: nameOf(ctx.Item), Tag: ctx.Tag}

	err, _ := ctx.Detail.(error)

	var missed *realtime.DeadlineMissed
	if errors.As(err, &missed) {
		m.Actor = missed.Actor
		m.Tag = missed.Tag
		m.Deadline = missed.Deadline
		m.Lateness = missed.Lateness()
	}

	return m
}

type fullNamer interface {
	FullName() string
}

func nameOf(v any) string {
	switch n := v.(type) {
	case fullNamer:
		return n.FullName()
	case naming.Named:
		return n.Name()
	case nil:
		return ""
	default:
		return reflect.TypeOf(v).String()
	}
}
