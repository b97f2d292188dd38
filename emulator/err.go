package emulator

import (
	"errors"

	"github.com/ezrec/chip8/translate"
)

var f = translate.From

var (
	ErrInvalidSaveFile = errors.New(f("invalid save file"))
	ErrStopped         = errors.New(f("emulation stopped"))
)

// ErrRuntime indicates the location of a runtime error.
type ErrRuntime struct {
	Pc     uint16
	LineNo int // Source line, when a program listing is available.
	Err    error
}

func (err *ErrRuntime) Error() string {
	if err.LineNo > 0 {
		return f("line %d (0x%03x) %v", err.LineNo, err.Pc, err.Err)
	}
	return f("0x%03x %v", err.Pc, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}
