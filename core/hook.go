package core

import "context"

// Stage names a lifecycle point observable through hooks.
type Stage string

const (
	// StageBuild surrounds graph build and validation.
	StageBuild Stage = "build"
	// StageExecute surrounds the complete execution of a single node.
	StageExecute Stage = "execute"
	// StageAggregate surrounds draining and merging of a node's in-edges.
	StageAggregate Stage = "aggregate_in"
	// StageForward surrounds the node's forward step.
	StageForward Stage = "forward"
	// StageDispatch surrounds fan-out of the forward output.
	StageDispatch Stage = "dispatch_out"
)

// Moment positions a hook relative to its stage.
type Moment string

const (
	// MomentBefore runs ahead of the stage.
	MomentBefore Moment = "before"
	// MomentAfter runs on success and receives the stage result.
	MomentAfter Moment = "after"
	// MomentError runs on failure and receives the error.
	MomentError Moment = "error"
)

// HookContext carries the observable state at a lifecycle point. Message is
// the stage input at BEFORE and the stage result at AFTER; Err is set only
// at ERROR.
type HookContext struct {
	Graph   string
	Node    string
	RunID   string
	Stage   Stage
	Moment  Moment
	Message Message
	Err     error
}

// Hook is a callback registered at a named lifecycle stage and moment.
// A hook's own error propagates and aborts execution; implementations must
// be defensive.
type Hook interface {
	Stage() Stage
	Moment() Moment
	Execute(ctx context.Context, hookCtx *HookContext) error
}

// FunctionHook wraps a plain function as a Hook.
type FunctionHook struct {
	stage  Stage
	moment Moment
	fn     func(ctx context.Context, hookCtx *HookContext) error
}

// NewFunctionHook creates a hook from a function for the given stage and
// moment.
func NewFunctionHook(stage Stage, moment Moment, fn func(ctx context.Context, hookCtx *HookContext) error) *FunctionHook {
	return &FunctionHook{stage: stage, moment: moment, fn: fn}
}

// Stage returns the stage this hook observes.
func (h *FunctionHook) Stage() Stage { return h.stage }

// Moment returns the moment this hook observes.
func (h *FunctionHook) Moment() Moment { return h.moment }

// Execute calls the wrapped function.
func (h *FunctionHook) Execute(ctx context.Context, hookCtx *HookContext) error {
	return h.fn(ctx, hookCtx)
}

// HookManager routes lifecycle notifications to registered hooks. Hooks for
// the same stage and moment run in registration order; the first error stops
// the chain and aborts the surrounding operation. Registration is not safe
// for concurrent use; execution is.
type HookManager struct {
	hooks map[Stage]map[Moment][]Hook
}

// NewHookManager creates an empty manager.
func NewHookManager() *HookManager {
	return &HookManager{hooks: map[Stage]map[Moment][]Hook{}}
}

// Register adds a hook for its stage and moment.
func (hm *HookManager) Register(h Hook) {
	if hm.hooks[h.Stage()] == nil {
		hm.hooks[h.Stage()] = map[Moment][]Hook{}
	}
	hm.hooks[h.Stage()][h.Moment()] = append(hm.hooks[h.Stage()][h.Moment()], h)
}

// Run executes all hooks registered for stage and moment. A nil manager is
// valid and runs nothing, so callers can invoke it unconditionally.
func (hm *HookManager) Run(ctx context.Context, stage Stage, moment Moment, hookCtx *HookContext) error {
	if hm == nil {
		return nil
	}
	for _, h := range hm.hooks[stage][moment] {
		if err := h.Execute(ctx, hookCtx); err != nil {
			return err
		}
	}
	return nil
}
