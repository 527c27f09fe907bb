package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultHookTimeout bounds a single after-hook run
const DefaultHookTimeout = 30 * time.Second

// HookRunner runs after-hooks in the background. Failures and panics are
// logged and never reach the caller of the primary operation.
type HookRunner struct {
	log     logrus.FieldLogger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewHookRunner creates a runner logging to log. A zero timeout uses DefaultHookTimeout.
func NewHookRunner(log logrus.FieldLogger, timeout time.Duration) *HookRunner {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	if timeout <= 0 {
		timeout = DefaultHookTimeout
	}
	return &HookRunner{log: log, timeout: timeout}
}

// Go starts fn detached from the cancellation of ctx. Values carried by ctx
// (request id, identity) stay visible to the hook.
func (h *HookRunner) Go(ctx context.Context, entity, op, id string, fn func(context.Context) error) {
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer cancel()
		start := time.Now()
		entry := h.log.WithFields(logrus.Fields{
			"entity": entity,
			"hook":   op,
			"id":     id,
		})
		defer func() {
			if r := recover(); r != nil {
				entry.WithField("stack", string(debug.Stack())).
					Errorf("after-hook panicked: %v", r)
			}
		}()
		if err := fn(hctx); err != nil {
			entry.WithError(err).Error("after-hook failed")
			return
		}
		entry.WithField("duration", time.Since(start)).Debug("after-hook completed")
	}()
}

// Wait blocks until every started hook has returned
func (h *HookRunner) Wait() {
	h.wg.Wait()
}

// WaitContext is Wait bounded by ctx
func (h *HookRunner) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for after-hooks: %w", ctx.Err())
	}
}
