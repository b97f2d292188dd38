package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/ezrec/chip8/config"
	"github.com/ezrec/chip8/emulator"
	"github.com/ezrec/chip8/io"
)

const NOTE_TIME = 2 * time.Second

// Game is the desktop frontend: it feeds host keys to the keypad and paints
// the display while the emulator runs on its own goroutine.
type Game struct {
	emu   *emulator.Emulator
	cfg   *config.Config
	keys  map[ebiten.Key]uint8
	load  func() error // Loads the program, nil if there is none.
	name  string       // Save slot and screenshot name.
	saves io.DirFS
	slot  int

	screen  *ebiten.Image
	pixels  []byte
	painted bool

	running bool
	done    chan error
	notes   chan string
	depotCh chan *io.Depot

	note      string
	noteUntil time.Time
	lastErr   error
}

// NewGame prepares the frontend. Save slots are read from the save directory.
func NewGame(emu *emulator.Emulator, cfg *config.Config, name string, load func() error) (game *Game, err error) {
	keys, err := hostKeys(cfg.Keymap)
	if err != nil {
		return
	}

	emu.Display.Scale = cfg.Scale
	emu.Display.Foreground = cfg.Foreground
	emu.Display.Background = cfg.Background

	game = &Game{
		emu:     emu,
		cfg:     cfg,
		keys:    keys,
		load:    load,
		name:    name,
		saves:   io.DirFS(cfg.SaveDir),
		screen:  ebiten.NewImage(io.WIDTH, io.HEIGHT),
		pixels:  make([]byte, io.WIDTH*io.HEIGHT*4),
		done:    make(chan error, 1),
		notes:   make(chan string, 8),
		depotCh: make(chan *io.Depot, 1),
	}

	depot := &io.Depot{Name: name}
	err = depot.Unmarshal(game.saves)
	if err != nil {
		log.Printf("chip8: %v: %v", cfg.SaveDir, err)
		err = nil
	}
	game.depotCh <- depot

	return
}

// Start loads the program, applies an optional snapshot, and runs it.
// A snapshot alone is enough to run.
func (g *Game) Start(snapshot []byte) (err error) {
	if g.running || (g.load == nil && snapshot == nil) {
		return
	}

	if g.load != nil {
		err = g.load()
		if err != nil {
			return
		}
	}

	if snapshot != nil {
		err = g.emu.Restore(snapshot)
		if err != nil {
			return
		}
	}

	g.running = true
	g.lastErr = nil
	go func() {
		g.done <- g.emu.Run(context.Background())
	}()

	return
}

func (g *Game) notify(format string, args ...any) {
	select {
	case g.notes <- fmt.Sprintf(format, args...):
	default:
	}
}

// save stores a snapshot in the current slot and writes the depot out.
func (g *Game) save() {
	slot := g.slot
	saved := g.emu.Control.RequestSave()
	go func() {
		blob, ok := <-saved
		if !ok {
			g.notify("save: not running")
			return
		}

		depot := <-g.depotCh
		defer func() { g.depotCh <- depot }()

		err := depot.Save(slot, blob)
		if err == nil {
			err = depot.Marshal(g.saves)
		}
		if err != nil {
			g.notify("save: %v", err)
			return
		}
		g.notify("saved slot %02d", slot)
	}()
}

// restore loads the current slot, starting the program if it is idle.
func (g *Game) restore() {
	depot := <-g.depotCh
	blob, err := depot.Load(g.slot)
	g.depotCh <- depot
	if err != nil {
		g.notify("load: %v", err)
		return
	}

	if !g.running {
		err = g.Start(blob)
		if err != nil {
			g.notify("load: %v", err)
		}
		return
	}

	slot := g.slot
	restored := g.emu.Control.RequestRestore(blob)
	go func() {
		err := <-restored
		if err != nil {
			g.notify("load: %v", err)
			return
		}
		g.notify("loaded slot %02d", slot)
	}()
}

// screenshot writes the display as a PNG in the save directory.
func (g *Game) screenshot() {
	name := fmt.Sprintf("%s-%s.png", g.name, time.Now().Format("20060102-150405"))
	file, err := g.saves.Create(name)
	if err != nil {
		g.notify("screenshot: %v", err)
		return
	}

	err = errors.Join(g.emu.Display.WritePNG(file, g.cfg.Scale), file.Close())
	if err != nil {
		g.notify("screenshot: %v", err)
		return
	}

	g.notify("wrote %v", filepath.Join(string(g.saves), name))
}

func (g *Game) setClockRate(rate int) {
	rate = g.emu.SetClockRate(rate)
	g.notify("clock %d Hz", rate)
}

// Update implements ebiten.Game.
func (g *Game) Update() error {
	select {
	case err := <-g.done:
		g.running = false
		g.lastErr = err
		if err != nil {
			log.Printf("chip8: %v", err)
		}
	default:
	}

	select {
	case note := <-g.notes:
		g.note = note
		g.noteUntil = time.Now().Add(NOTE_TIME)
	default:
	}

	for key, index := range g.keys {
		if inpututil.IsKeyJustPressed(key) {
			g.emu.Keypad.KeyDown(index)
		}
		if inpututil.IsKeyJustReleased(key) {
			g.emu.Keypad.KeyUp(index)
		}
	}

	rate := g.emu.ClockRate()
	step := max(1, rate/10)

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		if !g.running {
			return ebiten.Termination
		}
		g.emu.Control.Stop()
	case inpututil.IsKeyJustPressed(ebiten.KeyEnter):
		err := g.Start(nil)
		if err != nil {
			g.lastErr = err
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyF5):
		g.save()
	case inpututil.IsKeyJustPressed(ebiten.KeyF6):
		g.slot = (g.slot + io.SLOT_LIMIT - 1) % io.SLOT_LIMIT
		g.notify("slot %02d", g.slot)
	case inpututil.IsKeyJustPressed(ebiten.KeyF7):
		g.slot = (g.slot + 1) % io.SLOT_LIMIT
		g.notify("slot %02d", g.slot)
	case inpututil.IsKeyJustPressed(ebiten.KeyF9):
		g.restore()
	case inpututil.IsKeyJustPressed(ebiten.KeyF12):
		g.screenshot()
	case inpututil.IsKeyJustPressed(ebiten.KeyEqual), inpututil.IsKeyJustPressed(ebiten.KeyNumpadAdd):
		g.setClockRate(rate + step)
	case inpututil.IsKeyJustPressed(ebiten.KeyMinus), inpututil.IsKeyJustPressed(ebiten.KeyNumpadSubtract):
		g.setClockRate(rate - step)
	}

	return nil
}

// paint copies the display into the screen texture.
func (g *Game) paint() {
	grid, _ := g.emu.Display.Pixels()
	fg, bg := g.cfg.Foreground, g.cfg.Background
	for y := range io.HEIGHT {
		for x := range io.WIDTH {
			c := bg
			if grid[y][x/8]&(0x80>>(x%8)) != 0 {
				c = fg
			}
			offset := (y*io.WIDTH + x) * 4
			g.pixels[offset+0] = c.R
			g.pixels[offset+1] = c.G
			g.pixels[offset+2] = c.B
			g.pixels[offset+3] = c.A
		}
	}
	g.screen.WritePixels(g.pixels)
}

// home describes the idle screen.
func (g *Game) home() string {
	lines := []string{"CHIP-8", ""}
	if g.load != nil {
		lines = append(lines, "Enter  run "+g.name)
	} else {
		lines = append(lines, "no program loaded")
	}
	lines = append(lines,
		fmt.Sprintf("F9     load slot %02d", g.slot),
		"Esc    quit",
	)
	if g.lastErr != nil {
		lines = append(lines, "", g.lastErr.Error())
	}

	return strings.Join(lines, "\n")
}

// Draw implements ebiten.Game.
func (g *Game) Draw(screen *ebiten.Image) {
	repaint := g.emu.Display.ConsumeRepaintPending() || !g.painted
	select {
	case <-g.emu.Refresh:
		repaint = true
	default:
	}
	if repaint {
		g.paint()
		g.painted = true
	}

	scale := float64(g.emu.Display.PixelScale())
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(scale, scale)
	screen.DrawImage(g.screen, op)

	if !g.running {
		ebitenutil.DebugPrint(screen, g.home())
	}

	if time.Now().Before(g.noteUntil) {
		ebitenutil.DebugPrintAt(screen, g.note, 0, screen.Bounds().Dy()-16)
	}
}

// Layout implements ebiten.Game.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	scale := g.emu.Display.PixelScale()
	return io.WIDTH * scale, io.HEIGHT * scale
}

// Shutdown stops a running program and waits for it.
func (g *Game) Shutdown() {
	if !g.running {
		return
	}

	g.emu.Control.Stop()
	err := <-g.done
	g.running = false
	if err != nil {
		log.Printf("chip8: %v", err)
	}
}

var _ ebiten.Game = (*Game)(nil)
