package io

import (
	"context"
	"errors"
	"sync"
)

const (
	KEY_COUNT = 16 // Keys in the input matrix.
)

// Keypad is the 16 key input matrix.
//
// Key events arrive from the host's input goroutine, while the execution
// loop tests keys and waits for presses. A single mutex guards the held
// mask, the last pressed key and the wait condition.
type Keypad struct {
	mutex   sync.Mutex
	cond    *sync.Cond
	held    uint16
	last    uint8
	presses uint64
}

// wake must be called with the mutex held.
func (kp *Keypad) wake() *sync.Cond {
	if kp.cond == nil {
		kp.cond = sync.NewCond(&kp.mutex)
	}
	return kp.cond
}

// KeyDown marks a key as held and wakes any pending wait.
// Keys outside the matrix are ignored.
func (kp *Keypad) KeyDown(key uint8) {
	if key >= KEY_COUNT {
		return
	}

	kp.mutex.Lock()
	defer kp.mutex.Unlock()

	kp.held |= 1 << key
	kp.last = key
	kp.presses++
	kp.wake().Broadcast()
}

// KeyUp marks a key as released.
func (kp *Keypad) KeyUp(key uint8) {
	if key >= KEY_COUNT {
		return
	}

	kp.mutex.Lock()
	defer kp.mutex.Unlock()

	kp.held &^= 1 << key
}

// IsPressed returns true if the key is held. Keys outside the matrix are
// never pressed.
func (kp *Keypad) IsPressed(key uint8) bool {
	if key >= KEY_COUNT {
		return false
	}

	kp.mutex.Lock()
	defer kp.mutex.Unlock()

	return kp.held&(1<<key) != 0
}

// Held returns the mask of held keys.
func (kp *Keypad) Held() uint16 {
	kp.mutex.Lock()
	defer kp.mutex.Unlock()

	return kp.held
}

// Last returns the most recently pressed key.
func (kp *Keypad) Last() uint8 {
	kp.mutex.Lock()
	defer kp.mutex.Unlock()

	return kp.last
}

// WaitKeyPress blocks until the next key down event, and returns that key.
// If ctx is done first, the error joins ErrKeyWaitCanceled and ctx.Err().
func (kp *Keypad) WaitKeyPress(ctx context.Context) (key uint8, err error) {
	kp.mutex.Lock()
	defer kp.mutex.Unlock()

	cond := kp.wake()
	stop := context.AfterFunc(ctx, func() {
		kp.mutex.Lock()
		defer kp.mutex.Unlock()
		cond.Broadcast()
	})
	defer stop()

	start := kp.presses
	for kp.presses == start {
		if ctx.Err() != nil {
			err = errors.Join(ErrKeyWaitCanceled, ctx.Err())
			return
		}
		cond.Wait()
	}

	key = kp.last
	return
}

// Clear releases all keys and forgets the last pressed key.
func (kp *Keypad) Clear() {
	kp.mutex.Lock()
	defer kp.mutex.Unlock()

	kp.held = 0
	kp.last = 0
}
