package io

import (
	"errors"

	"github.com/ezrec/chip8/translate"
)

var f = translate.From

var (
	// Keypad errors
	ErrKeyWaitCanceled = errors.New(f("key wait canceled"))

	// Depot errors
	ErrSlotRange = errors.New(f("save slot out of range"))
	ErrSlotEmpty = errors.New(f("save slot empty"))
)
