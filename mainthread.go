package xplorer

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// ErrMainThreadTimeout is returned by MainThreadDispatcher.RunSync when the
// submitted job does not complete before ctx is done.
var ErrMainThreadTimeout = errors.New("xplorer: main thread dispatch timed out")

// MainThreadDispatcher models the single-threaded, cooperative UI execution
// context that UI-introspection handlers are written against: one dedicated
// goroutine drains a job queue, and callers already running on that
// goroutine are recognized as such so a route already on the UI context
// dispatches inline instead of resubmitting to itself (which would
// deadlock).
type MainThreadDispatcher struct {
	jobs        chan func()
	mainGoID    atomic.Int64
	initialized atomic.Bool
	stopOnce    sync.Once
}

// NewMainThreadDispatcher starts the run loop goroutine and returns a
// dispatcher bound to it. Stop must be called to terminate the loop when
// the server shuts down.
func NewMainThreadDispatcher() *MainThreadDispatcher {
	d := &MainThreadDispatcher{
		jobs: make(chan func()),
	}

	ready := make(chan struct{})
	go d.runLoop(ready)
	<-ready

	return d
}

// runLoop is the body of the single cooperative-executor goroutine.
func (d *MainThreadDispatcher) runLoop(ready chan struct{}) {
	d.mainGoID.Store(currentGoroutineID())
	d.initialized.Store(true)
	close(ready)

	for fn := range d.jobs {
		fn()
	}
}

// IsMainThread reports whether the calling goroutine is the dispatcher's
// run loop goroutine. Go exposes no public goroutine-identity API, so this
// parses the numeric id `runtime.Stack` prints at the head of every
// goroutine's trace — the same trick a handful of goroutine-affinity
// libraries in the wild use to bind state to "the" UI goroutine. It is read
// once per call and never cached across goroutines, only the dispatcher's
// own main id is cached.
func (d *MainThreadDispatcher) IsMainThread() bool {
	if !d.initialized.Load() {
		return false
	}
	return currentGoroutineID() == d.mainGoID.Load()
}

// currentGoroutineID extracts the calling goroutine's numeric id from the
// header line of its own stack trace ("goroutine 123 [running]:").
func currentGoroutineID() int64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]

	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}

	id, err := strconv.ParseInt(string(buf), 10, 64)
	if err != nil {
		return -1
	}
	return id
}

// Stop terminates the run loop. It is idempotent. Callers are expected to
// stop transports (which stop submitting main-thread work) before stopping
// the dispatcher.
func (d *MainThreadDispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.jobs) })
}

// RunSync submits fn to the run loop and blocks until it returns or ctx is
// done, whichever comes first. On timeout, ErrMainThreadTimeout is
// returned. If ctx is done before the loop accepts fn (the loop is busy
// with an earlier job), fn is never run. If the loop has already accepted
// fn, it is not cancelled (it cannot be, since it is running cooperatively
// on the loop) and runs to completion even though RunSync's caller has
// moved on: the timeout only frees the serving worker, never the handler.
func (d *MainThreadDispatcher) RunSync(ctx context.Context, fn func() *Response) (*Response, error) {
	done := make(chan *Response, 1)

	select {
	case d.jobs <- func() { done <- fn() }:
	case <-ctx.Done():
		return nil, ErrMainThreadTimeout
	}

	select {
	case resp := <-done:
		return resp, nil
	case <-ctx.Done():
		return nil, ErrMainThreadTimeout
	}
}

// RunOnMainThread runs fn synchronously on d's run loop with no timeout,
// for callers (tests, bundled endpoints) that need main-thread execution
// outside of the request/response trampoline. A caller already on the run
// loop runs fn inline: resubmitting to the loop from the loop itself would
// never be drained.
func (d *MainThreadDispatcher) RunOnMainThread(fn func()) {
	if d.IsMainThread() {
		fn()
		return
	}

	done := make(chan struct{})
	d.jobs <- func() {
		defer close(done)
		fn()
	}
	<-done
}
