// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/ezrec/chip8/config"
	"github.com/ezrec/chip8/emulator"
	"github.com/ezrec/chip8/io"
	"github.com/ezrec/chip8/sound"
	"github.com/ezrec/chip8/translate"
)

// beepers fans the buzzer out to several outputs.
type beepers []emulator.Beeper

func (bs beepers) Beep(on bool) {
	for _, b := range bs {
		b.Beep(on)
	}
}

func main() {
	var rom string
	var compile string
	var output string
	var clock int
	var scale int
	var configFile string
	var restore string
	var slots string
	var wavFile string
	var stats string
	var verbose bool

	flag.StringVar(&rom, "rom", "", "ROM image to run")
	flag.StringVar(&compile, "c", "", "assembly source to compile and run")
	flag.StringVar(&output, "o", "", "Write the compiled ROM, do not execute")
	flag.IntVar(&clock, "clock", emulator.DEFAULT_CLOCK_RATE, "Instructions per second")
	flag.IntVar(&scale, "scale", io.DEFAULT_SCALE, "Window pixels per display pixel")
	flag.StringVar(&configFile, "config", "", "Starlark configuration file")
	flag.StringVar(&restore, "restore", "", "Snapshot file to resume from")
	flag.StringVar(&slots, "slots", "", "Save slot set name (default from the program file)")
	flag.StringVar(&wavFile, "wav", "", "Record the buzzer to a WAV file")
	flag.StringVar(&stats, "statsview", "", "Serve runtime statistics on this address")
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

	// Flags given on the command line override the config file.
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "clock":
			cfg.ClockRate = clock
		case "scale":
			cfg.Scale = scale
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

	var load func() error
	name := slots
	switch {
	case len(compile) != 0:
		load = func() (err error) {
			inf, err := os.Open(compile)
			if err != nil {
				return
			}
			defer inf.Close()
			return emu.Assemble(inf)
		}
		if len(name) == 0 {
			name = baseName(compile)
		}
	case len(rom) != 0:
		image, err := os.ReadFile(rom)
		if err != nil {
			log.Fatal(err)
		}
		load = func() error {
			return emu.LoadRom(image)
		}
		if len(name) == 0 {
			name = baseName(rom)
		}
	}
	if len(name) == 0 {
		name = "chip8"
	}

	if len(output) != 0 {
		if len(compile) == 0 {
			log.Fatalf("%v: -o requires -c", os.Args[0])
		}
		err := load()
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		err = os.WriteFile(output, emu.Program.Binary(), 0o644)
		if err != nil {
			log.Fatal(err)
		}
		return
	}

	if load != nil {
		// Report assembly errors before opening a window.
		err := load()
		if err != nil {
			log.Fatal(err)
		}
	}

	var snapshot []byte
	if len(restore) != 0 {
		var err error
		snapshot, err = os.ReadFile(restore)
		if err != nil {
			log.Fatal(err)
		}
	}

	if len(stats) != 0 {
		viewer.SetConfiguration(viewer.WithAddr(stats))
		go statsview.New().Start()
		log.Printf("chip8: stats server at http://%v/debug/statsview", stats)
	}

	tone := sound.NewTone(sound.DEFAULT_SAMPLE_RATE)
	bs := beepers{tone}

	player, err := audio.NewContext(sound.DEFAULT_SAMPLE_RATE).NewPlayer(tone)
	if err != nil {
		log.Fatal(err)
	}
	player.Play()
	defer player.Close()

	var recorder *sound.Recorder
	if len(wavFile) != 0 {
		recorder = sound.NewRecorder(sound.DEFAULT_SAMPLE_RATE)
		bs = append(bs, recorder)
	}
	emu.Beeper = bs

	err = os.MkdirAll(cfg.SaveDir, 0o755)
	if err != nil {
		log.Fatal(err)
	}

	game, err := NewGame(emu, cfg, name, load)
	if err != nil {
		log.Fatal(err)
	}

	err = game.Start(snapshot)
	if err != nil {
		log.Fatal(err)
	}

	scale = emu.Display.PixelScale()
	ebiten.SetWindowSize(io.WIDTH*scale, io.HEIGHT*scale)
	ebiten.SetWindowTitle("CHIP-8: " + name)

	err = ebiten.RunGame(game)
	game.Shutdown()
	if err != nil {
		log.Print(err)
	}

	if recorder != nil {
		ouf, err := os.Create(wavFile)
		if err != nil {
			log.Fatal(err)
		}
		defer ouf.Close()

		err = recorder.WriteWav(ouf)
		if err != nil {
			log.Fatalf("%v: %v", wavFile, err)
		}
	}
}

// baseName strips the directory and extension of a program file.
func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
