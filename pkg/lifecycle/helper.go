// Package lifecycle provides the asynchronous shutdown helper embedded by
// every long-lived proxystore-go component: the Store, the endpoint daemon,
// each peer Manager, the relay server, and the relay client. It generalizes
// the teacher's ShutdownHelper (share/shutdown_helper.go) unchanged in
// mechanism: a once-handler, pausable scheduling, and recursive child
// shutdown with a WaitGroup.
package lifecycle

import (
	"context"
	"sync"

	"github.com/proxystore-go/proxystore/pkg/pslog"
)

// OnceShutdownHandler is implemented by the object a Helper manages. It is
// invoked exactly once, in its own goroutine, never while shutdown is paused.
type OnceShutdownHandler interface {
	HandleOnceShutdown(completionErr error) error
}

// AsyncShutdowner is the minimal external contract of a lifecycle-managed
// object: start shutdown, observe completion.
type AsyncShutdowner interface {
	StartShutdown(completionErr error)
	ShutdownDoneChan() <-chan struct{}
	IsDoneShutdown() bool
	WaitShutdown() error
}

// Helper is embedded by value in every lifecycle-managed component.
type Helper struct {
	pslog.Logger

	Lock sync.Mutex

	handler OnceShutdownHandler

	pauseCount int
	activated  bool
	scheduled  bool
	started    bool
	done       bool
	err        error

	startedChan chan struct{}
	handlerChan chan struct{}
	doneChan    chan struct{}

	wg sync.WaitGroup
}

// Init must be called before any other Helper method.
func (h *Helper) Init(logger pslog.Logger, handler OnceShutdownHandler) {
	h.Logger = logger
	h.handler = handler
	h.startedChan = make(chan struct{})
	h.handlerChan = make(chan struct{})
	h.doneChan = make(chan struct{})
}

func (h *Helper) asyncRun() {
	close(h.startedChan)
	go func() {
		h.err = h.handler.HandleOnceShutdown(h.err)
		close(h.handlerChan)
		h.wg.Wait()
		h.Lock.Lock()
		h.done = true
		h.Lock.Unlock()
		close(h.doneChan)
	}()
}

// Activate marks the helper as activated. Fails if shutdown already started.
func (h *Helper) Activate() error {
	h.Lock.Lock()
	defer h.Lock.Unlock()
	if !h.activated {
		if h.started {
			return h.Errorf("cannot activate: shutdown already initiated")
		}
		h.activated = true
	}
	return nil
}

func (h *Helper) IsActivated() bool { return h.activated }

// PauseShutdown defers the actual start of shutdown until a matching
// ResumeShutdown call. Fails if shutdown has already started.
func (h *Helper) PauseShutdown() error {
	h.Lock.Lock()
	defer h.Lock.Unlock()
	if h.started {
		return h.Errorf("shutdown already started; cannot pause")
	}
	h.pauseCount++
	return nil
}

// ResumeShutdown reverses PauseShutdown, and starts shutdown immediately if
// it was scheduled while paused.
func (h *Helper) ResumeShutdown() {
	h.Lock.Lock()
	if h.pauseCount < 1 {
		h.Lock.Unlock()
		h.PanicOnError(h.Errorf("ResumeShutdown before PauseShutdown"))
		return
	}
	h.pauseCount--
	runNow := h.pauseCount == 0 && h.scheduled && !h.started
	if runNow {
		h.started = true
	}
	h.Lock.Unlock()
	if runNow {
		h.asyncRun()
	}
}

// StartShutdown schedules shutdown. Only the first call has any effect.
func (h *Helper) StartShutdown(completionErr error) {
	var runNow bool
	h.Lock.Lock()
	if !h.scheduled {
		h.err = completionErr
		h.scheduled = true
		runNow = h.pauseCount == 0
		h.started = runNow
	}
	h.Lock.Unlock()
	if runNow {
		h.asyncRun()
	}
}

// ShutdownDoneChan is closed once shutdown has fully completed, including
// all registered children.
func (h *Helper) ShutdownDoneChan() <-chan struct{} { return h.doneChan }

// IsDoneShutdown reports whether shutdown has fully completed.
func (h *Helper) IsDoneShutdown() bool {
	h.Lock.Lock()
	defer h.Lock.Unlock()
	return h.done
}

// WaitShutdown blocks until shutdown is complete and returns its status.
func (h *Helper) WaitShutdown() error {
	<-h.doneChan
	return h.err
}

// Shutdown starts (if needed) and waits for shutdown, returning its status.
func (h *Helper) Shutdown(completionErr error) error {
	h.StartShutdown(completionErr)
	return h.WaitShutdown()
}

// Close implements io.Closer as a synchronous shutdown with no advisory error.
func (h *Helper) Close() error {
	return h.Shutdown(nil)
}

// ShutdownOnContext starts shutdown with ctx.Err() if ctx completes before
// shutdown is otherwise started.
func (h *Helper) ShutdownOnContext(ctx context.Context) {
	go func() {
		select {
		case <-h.startedChan:
		case <-ctx.Done():
			h.StartShutdown(ctx.Err())
		}
	}()
}

// AddShutdownChild registers a child to be shut down once this helper's own
// HandleOnceShutdown returns, and waited on before this helper reports done.
func (h *Helper) AddShutdownChild(child AsyncShutdowner) {
	h.wg.Add(1)
	go func() {
		select {
		case <-child.ShutdownDoneChan():
		case <-h.handlerChan:
			child.StartShutdown(h.err)
			child.WaitShutdown()
		}
		h.wg.Done()
	}()
}

// AddShutdownChildChan waits on an externally-closed channel before this
// helper reports shutdown complete.
func (h *Helper) AddShutdownChildChan(done <-chan struct{}) {
	h.wg.Add(1)
	go func() {
		<-done
		h.wg.Done()
	}()
}
