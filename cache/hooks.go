package cache

import (
	"context"
	"time"
)

// Hook event payloads are mutable: a before hook may rewrite the value or
// TTL about to be stored. A hook returning an error aborts the operation
// and propagates to the original caller.

// SetEvent is the payload for set interception.
type SetEvent struct {
	Key   string
	Value any
	TTL   time.Duration
	Tags  []string
}

// GetEvent is the payload for get interception. Value and Found are only
// populated for after hooks.
type GetEvent struct {
	Key   string
	Value any
	Found bool
}

// DeleteEvent is the payload for delete interception. Deleted is only
// populated for after hooks.
type DeleteEvent struct {
	Key     string
	Deleted bool
}

// ClearEvent is the payload for clear interception.
type ClearEvent struct {
	// EntriesBefore is a best-effort count, only populated for after hooks.
	EntriesBefore int
}

// Hooks is the closed set of lifecycle interception points around direct
// operations. Each slot is one operation kind; there are no stringly-typed
// event names.
type Hooks struct {
	BeforeSet func(ctx context.Context, e *SetEvent) error
	AfterSet  func(ctx context.Context, e *SetEvent) error

	BeforeGet func(ctx context.Context, e *GetEvent) error
	AfterGet  func(ctx context.Context, e *GetEvent) error

	BeforeDelete func(ctx context.Context, e *DeleteEvent) error
	AfterDelete  func(ctx context.Context, e *DeleteEvent) error

	BeforeClear func(ctx context.Context, e *ClearEvent) error
	AfterClear  func(ctx context.Context, e *ClearEvent) error
}

// hookSet holds registered hooks in subscription order.
type hookSet struct {
	beforeSet []func(ctx context.Context, e *SetEvent) error
	afterSet  []func(ctx context.Context, e *SetEvent) error

	beforeGet []func(ctx context.Context, e *GetEvent) error
	afterGet  []func(ctx context.Context, e *GetEvent) error

	beforeDelete []func(ctx context.Context, e *DeleteEvent) error
	afterDelete  []func(ctx context.Context, e *DeleteEvent) error

	beforeClear []func(ctx context.Context, e *ClearEvent) error
	afterClear  []func(ctx context.Context, e *ClearEvent) error
}

func (h *hookSet) add(hooks Hooks) {
	if hooks.BeforeSet != nil {
		h.beforeSet = append(h.beforeSet, hooks.BeforeSet)
	}
	if hooks.AfterSet != nil {
		h.afterSet = append(h.afterSet, hooks.AfterSet)
	}
	if hooks.BeforeGet != nil {
		h.beforeGet = append(h.beforeGet, hooks.BeforeGet)
	}
	if hooks.AfterGet != nil {
		h.afterGet = append(h.afterGet, hooks.AfterGet)
	}
	if hooks.BeforeDelete != nil {
		h.beforeDelete = append(h.beforeDelete, hooks.BeforeDelete)
	}
	if hooks.AfterDelete != nil {
		h.afterDelete = append(h.afterDelete, hooks.AfterDelete)
	}
	if hooks.BeforeClear != nil {
		h.beforeClear = append(h.beforeClear, hooks.BeforeClear)
	}
	if hooks.AfterClear != nil {
		h.afterClear = append(h.afterClear, hooks.AfterClear)
	}
}

func runHooks[E any](ctx context.Context, hooks []func(ctx context.Context, e *E) error, event *E) error {
	for _, hook := range hooks {
		if err := hook(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
