package emulator

import (
	"context"
	"sync"
)

type restoreRequest struct {
	blob   []byte
	result chan error
}

// Control is the state shared between the execution loop and the
// producers of control signals, such as the host's input handler.
//
// Requests are served only between instruction cycles. A request also
// interrupts a pending key wait, which resumes once the request is served.
type Control struct {
	mutex    sync.Mutex
	running  bool
	stopped  bool // Stop arrived before the loop started.
	stop     context.CancelFunc
	runCtx   context.Context
	wakeCtx  context.Context
	wake     context.CancelFunc
	saves    []chan []byte
	restores []restoreRequest
}

// NewControl creates an idle control state.
func NewControl() *Control {
	return &Control{}
}

// Running returns true while an execution loop is active.
func (ctl *Control) Running() bool {
	ctl.mutex.Lock()
	defer ctl.mutex.Unlock()

	return ctl.running
}

// Stop requests the execution loop to end. When idle, the stop is held
// for the next loop, which then ends before its first instruction.
func (ctl *Control) Stop() {
	ctl.mutex.Lock()
	defer ctl.mutex.Unlock()

	if ctl.stop != nil {
		ctl.stop()
		return
	}

	ctl.stopped = true
}

// RequestSave asks for a snapshot at the next cycle boundary.
// The channel is closed without a value if the loop ends first.
func (ctl *Control) RequestSave() <-chan []byte {
	ch := make(chan []byte, 1)

	ctl.mutex.Lock()
	defer ctl.mutex.Unlock()

	if !ctl.running {
		close(ch)
		return ch
	}

	ctl.saves = append(ctl.saves, ch)
	ctl.wake()
	return ch
}

// RequestRestore asks for a snapshot to be applied at the next cycle
// boundary. The channel receives the result, ErrStopped if the loop ends
// first.
func (ctl *Control) RequestRestore(blob []byte) <-chan error {
	ch := make(chan error, 1)

	ctl.mutex.Lock()
	defer ctl.mutex.Unlock()

	if !ctl.running {
		ch <- ErrStopped
		return ch
	}

	ctl.restores = append(ctl.restores, restoreRequest{blob: blob, result: ch})
	ctl.wake()
	return ch
}

// start marks the loop as running, and returns the context that Stop cancels.
func (ctl *Control) start(ctx context.Context) (runCtx context.Context) {
	ctl.mutex.Lock()
	defer ctl.mutex.Unlock()

	ctl.running = true
	ctl.runCtx, ctl.stop = context.WithCancel(ctx)
	ctl.wakeCtx, ctl.wake = context.WithCancel(ctl.runCtx)

	if ctl.stopped {
		ctl.stopped = false
		ctl.stop()
	}

	return ctl.runCtx
}

// cycle returns the context for the next instruction, and takes the
// pending requests to serve before it.
func (ctl *Control) cycle() (ctx context.Context, saves []chan []byte, restores []restoreRequest) {
	ctl.mutex.Lock()
	defer ctl.mutex.Unlock()

	saves, restores = ctl.saves, ctl.restores
	ctl.saves, ctl.restores = nil, nil

	if ctl.wakeCtx.Err() != nil && ctl.runCtx.Err() == nil {
		ctl.wake()
		ctl.wakeCtx, ctl.wake = context.WithCancel(ctl.runCtx)
	}

	return ctl.wakeCtx, saves, restores
}

// finish resets the control state, failing outstanding requests.
func (ctl *Control) finish() {
	ctl.mutex.Lock()
	defer ctl.mutex.Unlock()

	for _, ch := range ctl.saves {
		close(ch)
	}
	for _, req := range ctl.restores {
		req.result <- ErrStopped
	}

	if ctl.wake != nil {
		ctl.wake()
	}
	if ctl.stop != nil {
		ctl.stop()
	}

	ctl.running = false
	ctl.stopped = false
	ctl.stop, ctl.wake = nil, nil
	ctl.runCtx, ctl.wakeCtx = nil, nil
	ctl.saves, ctl.restores = nil, nil
}
