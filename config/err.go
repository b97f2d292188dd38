package config

import (
	"errors"

	"github.com/ezrec/chip8/translate"
)

var f = translate.From

var (
	ErrType  = errors.New(f("wrong type"))
	ErrRange = errors.New(f("value out of range"))
	ErrColor = errors.New(f("invalid color"))
	ErrKey   = errors.New(f("invalid key name"))
)

// ErrConfig reports the file and setting a configuration error came from.
type ErrConfig struct {
	Path    string
	Setting string
	Err     error
}

func (err *ErrConfig) Error() string {
	if len(err.Setting) == 0 {
		return f("%v: %v", err.Path, err.Err)
	}
	return f("%v: %v: %v", err.Path, err.Setting, err.Err)
}

func (err *ErrConfig) Unwrap() error {
	return err.Err
}
