// Package config loads emulator settings from a Starlark file.
//
// A configuration file is a Starlark program whose globals name settings:
//
//	clock_rate = 700
//	scale = 12
//	foreground = "#33ff66"
//	background = (0, 0, 0)
//	keymap = {"X": 0x0, "1": 0x1}
//	save_dir = "~/.chip8"
//	language = "fr"
//
// Globals that are not set keep their defaults. A keymap replaces the
// default mapping entirely.
package config

import (
	"fmt"
	"image/color"
	"maps"
	"os"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/chip8/emulator"
	"github.com/ezrec/chip8/io"
)

// Config holds the frontend settings.
type Config struct {
	ClockRate  int              // Instructions per second.
	Scale      int              // Host pixels per display pixel.
	Foreground color.RGBA       // Lit pixel color.
	Background color.RGBA       // Unlit pixel color.
	Keymap     map[string]uint8 // Host key name to keypad index.
	SaveDir    string           // Directory of the save slots.
	Language   string           // BCP 47 tag for messages, empty for the host locale.
}

// DefaultKeymap is the conventional layout of the hex keypad on the left
// of a QWERTY keyboard.
var DefaultKeymap = map[string]uint8{
	"1": 0x1, "2": 0x2, "3": 0x3, "4": 0xC,
	"Q": 0x4, "W": 0x5, "E": 0x6, "R": 0xD,
	"A": 0x7, "S": 0x8, "D": 0x9, "F": 0xE,
	"Z": 0xA, "X": 0x0, "C": 0xB, "V": 0xF,
}

// Default returns the built-in settings.
func Default() (cfg *Config) {
	cfg = &Config{
		ClockRate:  emulator.DEFAULT_CLOCK_RATE,
		Scale:      io.DEFAULT_SCALE,
		Foreground: color.RGBA{0xFF, 0xFF, 0xFF, 0xFF},
		Background: color.RGBA{0x00, 0x00, 0x00, 0xFF},
		Keymap:     maps.Clone(DefaultKeymap),
		SaveDir:    ".",
	}

	return
}

// Load reads a configuration file over the defaults.
func Load(path string) (cfg *Config, err error) {
	src, err := os.ReadFile(path)
	if err != nil {
		err = &ErrConfig{Path: path, Err: err}
		return
	}

	return Parse(path, src)
}

// Parse evaluates configuration source over the defaults.
func Parse(path string, src []byte) (cfg *Config, err error) {
	thread := &starlark.Thread{Name: "config"}
	opts := &syntax.FileOptions{}

	predeclared := starlark.StringDict{
		"DEFAULT_CLOCK_RATE": starlark.MakeInt(emulator.DEFAULT_CLOCK_RATE),
		"MIN_CLOCK_RATE":     starlark.MakeInt(emulator.MIN_CLOCK_RATE),
		"MAX_CLOCK_RATE":     starlark.MakeInt(emulator.MAX_CLOCK_RATE),
	}

	globals, err := starlark.ExecFileOptions(opts, thread, path, src, predeclared)
	if err != nil {
		err = &ErrConfig{Path: path, Err: err}
		return
	}

	cfg = Default()
	for _, setting := range settings {
		value, ok := globals[setting.name]
		if !ok {
			continue
		}
		err = setting.apply(cfg, value)
		if err != nil {
			cfg = nil
			err = &ErrConfig{Path: path, Setting: setting.name, Err: err}
			return
		}
	}

	return
}

type setting struct {
	name  string
	apply func(cfg *Config, value starlark.Value) error
}

var settings = []setting{
	{"clock_rate", func(cfg *Config, value starlark.Value) (err error) {
		cfg.ClockRate, err = intOf(value, emulator.MIN_CLOCK_RATE, emulator.MAX_CLOCK_RATE)
		return
	}},
	{"scale", func(cfg *Config, value starlark.Value) (err error) {
		cfg.Scale, err = intOf(value, 1, 64)
		return
	}},
	{"foreground", func(cfg *Config, value starlark.Value) (err error) {
		cfg.Foreground, err = colorOf(value)
		return
	}},
	{"background", func(cfg *Config, value starlark.Value) (err error) {
		cfg.Background, err = colorOf(value)
		return
	}},
	{"keymap", func(cfg *Config, value starlark.Value) (err error) {
		cfg.Keymap, err = keymapOf(value)
		return
	}},
	{"save_dir", func(cfg *Config, value starlark.Value) (err error) {
		cfg.SaveDir, err = stringOf(value)
		return
	}},
	{"language", func(cfg *Config, value starlark.Value) (err error) {
		cfg.Language, err = stringOf(value)
		return
	}},
}

func intOf(value starlark.Value, low, high int) (n int, err error) {
	i, ok := value.(starlark.Int)
	if !ok {
		err = fmt.Errorf("%w: %v", ErrType, value.Type())
		return
	}
	i64, ok := i.Int64()
	if !ok || i64 < int64(low) || i64 > int64(high) {
		err = fmt.Errorf("%w: %v not in [%d, %d]", ErrRange, i, low, high)
		return
	}

	n = int(i64)
	return
}

func stringOf(value starlark.Value) (s string, err error) {
	str, ok := value.(starlark.String)
	if !ok {
		err = fmt.Errorf("%w: %v", ErrType, value.Type())
		return
	}

	s = string(str)
	return
}

// colorOf accepts "#rrggbb" or an (r, g, b) tuple.
func colorOf(value starlark.Value) (c color.RGBA, err error) {
	c.A = 0xFF

	switch v := value.(type) {
	case starlark.String:
		text := string(v)
		if len(text) != 7 || text[0] != '#' {
			err = fmt.Errorf("%w: %q", ErrColor, text)
			return
		}
		var rgb uint64
		rgb, err = strconv.ParseUint(text[1:], 16, 32)
		if err != nil {
			err = fmt.Errorf("%w: %q", ErrColor, text)
			return
		}
		c.R, c.G, c.B = uint8(rgb>>16), uint8(rgb>>8), uint8(rgb)
	case starlark.Tuple:
		if v.Len() != 3 {
			err = fmt.Errorf("%w: %v", ErrColor, v)
			return
		}
		var rgb [3]int
		for n := range rgb {
			rgb[n], err = intOf(v.Index(n), 0, 255)
			if err != nil {
				return
			}
		}
		c.R, c.G, c.B = uint8(rgb[0]), uint8(rgb[1]), uint8(rgb[2])
	default:
		err = fmt.Errorf("%w: %v", ErrType, value.Type())
	}

	return
}

func keymapOf(value starlark.Value) (keymap map[string]uint8, err error) {
	dict, ok := value.(*starlark.Dict)
	if !ok {
		err = fmt.Errorf("%w: %v", ErrType, value.Type())
		return
	}

	keymap = make(map[string]uint8, dict.Len())
	for _, item := range dict.Items() {
		var name string
		name, err = stringOf(item[0])
		if err != nil {
			return
		}
		if len(name) == 0 {
			err = fmt.Errorf("%w: %q", ErrKey, name)
			return
		}
		var key int
		key, err = intOf(item[1], 0, io.KEY_COUNT-1)
		if err != nil {
			return
		}
		keymap[strings.ToUpper(name)] = uint8(key)
	}

	return
}
