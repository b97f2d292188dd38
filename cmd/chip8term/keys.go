package main

import (
	goio "io"
	"strings"
	"sync"
	"time"

	"github.com/ezrec/chip8/emulator"
	"github.com/ezrec/chip8/io"
)

// KEY_HOLD is how long a key stays down after its last keystroke. A terminal
// reports no key releases, only repeats.
const KEY_HOLD = 150 * time.Millisecond

const (
	KEY_ESCAPE = 0x1b
	KEY_CTRL_C = 0x03
)

// keyReader turns terminal keystrokes into keypad presses.
type keyReader struct {
	keypad  *io.Keypad
	control *emulator.Control
	keymap  map[byte]uint8
	hold    time.Duration

	mutex   sync.Mutex
	release map[uint8]*time.Timer
}

// newKeyReader maps single character key names, case-insensitively.
func newKeyReader(keypad *io.Keypad, control *emulator.Control, keymap map[string]uint8) (kr *keyReader) {
	kr = &keyReader{
		keypad:  keypad,
		control: control,
		keymap:  make(map[byte]uint8),
		hold:    KEY_HOLD,
		release: make(map[uint8]*time.Timer),
	}

	for name, index := range keymap {
		if len(name) != 1 {
			continue
		}
		kr.keymap[strings.ToLower(name)[0]] = index
		kr.keymap[strings.ToUpper(name)[0]] = index
	}

	return
}

// press holds a keypad key, extending the hold on repeats.
func (kr *keyReader) press(index uint8) {
	kr.mutex.Lock()
	defer kr.mutex.Unlock()

	timer, ok := kr.release[index]
	if ok && timer.Stop() {
		timer.Reset(kr.hold)
		return
	}

	kr.keypad.KeyDown(index)

	var release *time.Timer
	release = time.AfterFunc(kr.hold, func() {
		kr.mutex.Lock()
		defer kr.mutex.Unlock()

		if kr.release[index] == release {
			delete(kr.release, index)
			kr.keypad.KeyUp(index)
		}
	})
	kr.release[index] = release
}

// handle processes one read from the terminal. A lone escape, or ^C,
// stops the emulator. Escape sequences are ignored.
func (kr *keyReader) handle(buf []byte) (stop bool) {
	if len(buf) == 0 {
		return
	}

	if buf[0] == KEY_ESCAPE {
		if len(buf) == 1 {
			kr.control.Stop()
			stop = true
		}
		return
	}

	for _, ch := range buf {
		if ch == KEY_CTRL_C {
			kr.control.Stop()
			stop = true
			return
		}
		index, ok := kr.keymap[ch]
		if ok {
			kr.press(index)
		}
	}

	return
}

// run reads keystrokes until a stop key or a read error.
func (kr *keyReader) run(input goio.Reader) {
	buf := make([]byte, 16)
	for {
		n, err := input.Read(buf)
		if n > 0 && kr.handle(buf[:n]) {
			return
		}
		if err != nil {
			kr.control.Stop()
			return
		}
	}
}
