// Package hooking lets observers attach to directors and managers without
// changing scheduling behavior.
package hooking

import (
	"log"

	"github.com/sarchlab/tempora/sim/timing"
)

// HookPos names a point in execution where hooks are invoked.
type HookPos struct {
	Name string
}

func (p *HookPos) String() string {
	return p.Name
}

// HookCtx carries what a hook needs to know about the site that triggered it.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Tag    timing.Tag

	// Item is the thing the hook is about, usually an actor or an event.
	Item interface{}

	// Detail is position specific, for example the error of a failed firing
	// or a *realtime.DeadlineMissed.
	Detail interface{}
}

// Hookable is implemented by anything that accepts hooks.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
	Hooks() []Hook
}

// Hook is invoked by a Hookable at its hook positions. Hooks must not
// schedule events or mutate the model.
type Hook interface {
	Func(ctx HookCtx)
}

// HookableBase implements Hookable. Embed it and call InvokeHook.
type HookableBase struct {
	hookList []Hook
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hookList)
}

// Hooks returns all the hooks registered, in registration order.
func (h *HookableBase) Hooks() []Hook {
	return h.hookList
}

// AcceptHook registers a hook. Registering the same hook twice panics.
func (h *HookableBase) AcceptHook(hook Hook) {
	for _, existing := range h.hookList {
		if existing == hook {
			log.Panic("duplicated hook")
		}
	}

	h.hookList = append(h.hookList, hook)
}

// RemoveHook unregisters a hook. Unknown hooks are ignored.
func (h *HookableBase) RemoveHook(hook Hook) {
	for i, existing := range h.hookList {
		if existing == hook {
			h.hookList = append(h.hookList[:i], h.hookList[i+1:]...)
			return
		}
	}
}

// InvokeHook calls every registered hook with ctx. When the context does not
// name a domain, the caller is expected to fill it in.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hookList {
		hook.Func(ctx)
	}
}

// HookCollector is a Hook that keeps every context it sees. It is useful in
// tests and for short diagnostic runs.
type HookCollector struct {
	Positions []*HookPos
	Ctxs      []HookCtx
}

// Func records ctx if its position is one of the watched positions, or if no
// positions are set.
func (c *HookCollector) Func(ctx HookCtx) {
	if len(c.Positions) > 0 {
		found := false

		for _, p := range c.Positions {
			if p == ctx.Pos {
				found = true
				break
			}
		}

		if !found {
			return
		}
	}

	c.Ctxs = append(c.Ctxs, ctx)
}
