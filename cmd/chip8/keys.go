package main

import (
	"fmt"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/ezrec/chip8/config"
)

// keyNames maps configuration key names to host keys.
var keyNames = map[string]ebiten.Key{
	"0": ebiten.KeyDigit0, "1": ebiten.KeyDigit1, "2": ebiten.KeyDigit2,
	"3": ebiten.KeyDigit3, "4": ebiten.KeyDigit4, "5": ebiten.KeyDigit5,
	"6": ebiten.KeyDigit6, "7": ebiten.KeyDigit7, "8": ebiten.KeyDigit8,
	"9": ebiten.KeyDigit9,

	"A": ebiten.KeyA, "B": ebiten.KeyB, "C": ebiten.KeyC, "D": ebiten.KeyD,
	"E": ebiten.KeyE, "F": ebiten.KeyF, "G": ebiten.KeyG, "H": ebiten.KeyH,
	"I": ebiten.KeyI, "J": ebiten.KeyJ, "K": ebiten.KeyK, "L": ebiten.KeyL,
	"M": ebiten.KeyM, "N": ebiten.KeyN, "O": ebiten.KeyO, "P": ebiten.KeyP,
	"Q": ebiten.KeyQ, "R": ebiten.KeyR, "S": ebiten.KeyS, "T": ebiten.KeyT,
	"U": ebiten.KeyU, "V": ebiten.KeyV, "W": ebiten.KeyW, "X": ebiten.KeyX,
	"Y": ebiten.KeyY, "Z": ebiten.KeyZ,

	"NUMPAD0": ebiten.KeyNumpad0, "NUMPAD1": ebiten.KeyNumpad1,
	"NUMPAD2": ebiten.KeyNumpad2, "NUMPAD3": ebiten.KeyNumpad3,
	"NUMPAD4": ebiten.KeyNumpad4, "NUMPAD5": ebiten.KeyNumpad5,
	"NUMPAD6": ebiten.KeyNumpad6, "NUMPAD7": ebiten.KeyNumpad7,
	"NUMPAD8": ebiten.KeyNumpad8, "NUMPAD9": ebiten.KeyNumpad9,

	"UP":    ebiten.KeyArrowUp,
	"DOWN":  ebiten.KeyArrowDown,
	"LEFT":  ebiten.KeyArrowLeft,
	"RIGHT": ebiten.KeyArrowRight,
	"SPACE": ebiten.KeySpace,
	"TAB":   ebiten.KeyTab,
	",":     ebiten.KeyComma,
	".":     ebiten.KeyPeriod,
	"/":     ebiten.KeySlash,
	";":     ebiten.KeySemicolon,
	"'":     ebiten.KeyQuote,
	"[":     ebiten.KeyBracketLeft,
	"]":     ebiten.KeyBracketRight,
}

// hostKeys resolves a configured keymap to host keys.
func hostKeys(keymap map[string]uint8) (keys map[ebiten.Key]uint8, err error) {
	keys = make(map[ebiten.Key]uint8, len(keymap))
	for name, index := range keymap {
		key, ok := keyNames[strings.ToUpper(name)]
		if !ok {
			err = fmt.Errorf("%w: %q", config.ErrKey, name)
			return
		}
		keys[key] = index
	}

	return
}
