// Package hook ports Akita's Hookable instrumentation pattern so trace
// writers and other observers can attach to simulation milestones without
// the driver calling them directly.
package hook

// HookPos names a point in the simulation where hooks may be invoked.
type HookPos struct {
	Name string
}

// Positions the timestep driver and scheduler invoke hooks at.
var (
	PosBeforeTimestep   = &HookPos{Name: "BeforeTimestep"}
	PosAfterTimestep    = &HookPos{Name: "AfterTimestep"}
	PosMessageScheduled = &HookPos{Name: "MessageScheduled"}
	PosNeuronFired      = &HookPos{Name: "NeuronFired"}
)

// Ctx carries the context a hook is invoked with.
type Ctx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// Hook is invoked by a Hookable at one or more HookPos.
type Hook interface {
	Func(ctx Ctx)
}

// Hookable accepts hooks.
type Hookable interface {
	AcceptHook(h Hook)
}

// Base provides a default Hookable implementation to embed.
type Base struct {
	hooks []Hook
}

// AcceptHook registers a hook.
func (b *Base) AcceptHook(h Hook) {
	b.hooks = append(b.hooks, h)
}

// NumHooks returns the number of hooks currently registered.
func (b *Base) NumHooks() int {
	return len(b.hooks)
}

// InvokeHook runs every registered hook with ctx.
func (b *Base) InvokeHook(ctx Ctx) {
	for _, h := range b.hooks {
		h.Func(ctx)
	}
}

// FuncHook adapts a plain function to the Hook interface, filtering to a
// single HookPos.
type FuncHook struct {
	Pos *HookPos
	F   func(ctx Ctx)
}

// Func implements Hook.
func (h FuncHook) Func(ctx Ctx) {
	if h.Pos != nil && ctx.Pos != h.Pos {
		return
	}
	h.F(ctx)
}
