// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/pkg/term"

	"github.com/ezrec/chip8/config"
	"github.com/ezrec/chip8/emulator"
	"github.com/ezrec/chip8/translate"
)

const TTY = "/dev/tty"

func main() {
	var rom string
	var compile string
	var clock int
	var configFile string
	var verbose bool

	flag.StringVar(&rom, "rom", "", "ROM image to run")
	flag.StringVar(&compile, "c", "", "assembly source to compile and run")
	flag.IntVar(&clock, "clock", emulator.DEFAULT_CLOCK_RATE, "Instructions per second")
	flag.StringVar(&configFile, "config", "", "Starlark configuration file")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	cfg := config.Default()
	if len(configFile) != 0 {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			log.Fatal(err)
		}
	}

	flag.Visit(func(fl *flag.Flag) {
		if fl.Name == "clock" {
			cfg.ClockRate = clock
		}
	})

	if len(cfg.Language) != 0 {
		err := translate.SetLanguage(cfg.Language)
		if err != nil {
			log.Fatalf("%v: language: %v", configFile, err)
		}
	}

	emu := emulator.NewEmulator()
	emu.Verbose = verbose
	emu.SetClockRate(cfg.ClockRate)

	switch {
	case len(compile) != 0:
		inf, err := os.Open(compile)
		if err != nil {
			log.Fatal(err)
		}
		err = emu.Assemble(inf)
		inf.Close()
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
	case len(rom) != 0:
		image, err := os.ReadFile(rom)
		if err != nil {
			log.Fatal(err)
		}
		err = emu.LoadRom(image)
		if err != nil {
			log.Fatalf("%v: %v", rom, err)
		}
	default:
		log.Fatalf("%v: one of -rom or -c is required", os.Args[0])
	}

	err := run(emu, cfg)
	if err != nil {
		log.Fatal(err)
	}
}

// run plays the loaded program on the controlling terminal, restoring the
// terminal mode afterwards.
func run(emu *emulator.Emulator, cfg *config.Config) (err error) {
	tty, err := term.Open(TTY, term.RawMode)
	if err != nil {
		return
	}
	defer tty.Close()
	defer tty.Restore()

	fmt.Fprint(tty, ANSI_CLEAR+ANSI_HIDE)
	defer fmt.Fprint(tty, ANSI_SHOW)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	keys := newKeyReader(&emu.Keypad, emu.Control, cfg.Keymap)
	go keys.run(tty)

	painted := make(chan struct{})
	go func() {
		defer close(painted)
		for range emu.Refresh {
			if !emu.Control.Running() {
				return
			}
			if emu.Display.ConsumeRepaintPending() {
				grid, _ := emu.Display.Pixels()
				fmt.Fprint(tty, frame(&grid))
			}
		}
	}()

	err = emu.Run(ctx)

	// Wake the painter so it sees the loop has ended.
	select {
	case emu.Refresh <- struct{}{}:
	default:
	}
	<-painted

	return
}
