// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"context"
	"errors"
	"fmt"
	goio "io"
	"iter"
	"log"
	"sync/atomic"
	"time"

	"github.com/ezrec/chip8/cpu"
	"github.com/ezrec/chip8/internal"
	"github.com/ezrec/chip8/io"
)

const (
	DEFAULT_CLOCK_RATE = 500    // Instructions per second.
	MIN_CLOCK_RATE     = 1      // Slowest clock rate.
	MAX_CLOCK_RATE     = 100000 // Fastest clock rate.
	TIMER_RATE         = 60     // Timer decrements per second.
)

var _emulator_defines = map[string]string{
	"TIMER_RATE": fmt.Sprintf("%d", TIMER_RATE),
}

// Beeper is told the sound state after every timer tick.
type Beeper interface {
	Beep(on bool)
}

// Emulator state. CPU + display + keypad, and the real time loop.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Listing of the loaded program, if assembled.

	Display io.Display // Framebuffer.
	Keypad  io.Keypad  // Input matrix.
	Control *Control   // Stop, save and restore requests.
	Beeper  Beeper     // Optional sound output.

	// Refresh is signaled on a timer tick when a repaint is pending.
	Refresh chan struct{}

	clockRate atomic.Int64
	cycles    int // Instructions since the last timer tick.
}

// NewEmulator creates a new emulator.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{
		Program: &cpu.Program{},
		Control: NewControl(),
		Refresh: make(chan struct{}, 1),
	}

	emu.Cpu = cpu.NewCpu(&emu.Display, &emu.Keypad)
	emu.SetClockRate(DEFAULT_CLOCK_RATE)

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(internal.IterSeq2Sorted(_emulator_defines),
		emu.Cpu.Defines(),
		emu.Display.Defines(),
	)
}

// SetClockRate changes the instructions per second, clamped to
// [MIN_CLOCK_RATE, MAX_CLOCK_RATE]. A running loop uses the new rate from
// its next cycle.
func (emu *Emulator) SetClockRate(rate int) (clamped int) {
	clamped = min(max(rate, MIN_CLOCK_RATE), MAX_CLOCK_RATE)
	emu.clockRate.Store(int64(clamped))

	return
}

// ClockRate returns the instructions per second.
func (emu *Emulator) ClockRate() int {
	return int(emu.clockRate.Load())
}

// RefreshCycle returns the instructions per timer tick.
func (emu *Emulator) RefreshCycle() int {
	return max(1, emu.ClockRate()/TIMER_RATE)
}

// CpuWait returns the time budget of one instruction.
func (emu *Emulator) CpuWait() time.Duration {
	return time.Second / time.Duration(emu.ClockRate())
}

// Reset clears the machine: registers, memory, display, and keypad.
func (emu *Emulator) Reset() {
	emu.Cpu.Verbose = emu.Verbose
	emu.Cpu.Reset()
	emu.Display.Clear()
	emu.Keypad.Clear()
	emu.cycles = 0
}

// LoadRom resets the machine and loads a ROM image, dropping any assembly
// listing. An oversized ROM is rejected before anything changes.
func (emu *Emulator) LoadRom(rom []byte) (err error) {
	if len(rom) > cpu.ROM_LIMIT {
		err = fmt.Errorf("%w: %d > %d", cpu.ErrRomTooLarge, len(rom), cpu.ROM_LIMIT)
		return
	}

	emu.Reset()
	emu.Program = &cpu.Program{}
	err = emu.Cpu.Memory.Load(rom)
	if err != nil {
		return
	}

	if emu.Verbose {
		log.Printf("emulator: loaded %d byte rom", len(rom))
	}

	return
}

// Assemble assembles a program, with the emulator's defines available, and
// loads it.
func (emu *Emulator) Assemble(source goio.Reader) (err error) {
	asm := &cpu.Assembler{Verbose: emu.Verbose}
	for key, value := range emu.Defines() {
		asm.Predefine(key, value)
	}

	prog, err := asm.Parse(source)
	if err != nil {
		return
	}

	err = emu.LoadRom(prog.Binary())
	if err != nil {
		return
	}

	emu.Program = prog
	return
}

// LineNo returns the current line number for the executing opcode.
func (emu *Emulator) LineNo() int {
	return emu.lineNoAt(emu.Cpu.Memory.Pc)
}

func (emu *Emulator) lineNoAt(pc uint16) int {
	if emu.Program == nil {
		return 0
	}

	dbg := emu.Program.Debug(pc)
	if dbg.Opcode == nil {
		return 0
	}

	return dbg.LineNo
}

// Tick performs a single instruction cycle, and the timer tick that
// follows every RefreshCycle instructions. Done is set once the CPU halts.
func (emu *Emulator) Tick(ctx context.Context) (done bool, err error) {
	// Set CPU verbosity
	emu.Cpu.Verbose = emu.Verbose

	if emu.Cpu.Halted {
		done = true
		return
	}

	pc := emu.Cpu.Memory.Pc
	defer func() {
		if err != nil {
			err = &ErrRuntime{Pc: pc, LineNo: emu.lineNoAt(pc), Err: err}
		}
	}()

	err = emu.Cpu.Tick(ctx)
	if err != nil {
		done = emu.Cpu.Halted
		return
	}

	emu.cycles++
	if emu.cycles >= emu.RefreshCycle() {
		emu.cycles = 0
		emu.tickTimers()
	}

	return
}

func (emu *Emulator) tickTimers() {
	emu.Cpu.TickTimers()

	if emu.Beeper != nil {
		emu.Beeper.Beep(emu.Cpu.ST > 0)
	}

	if emu.Display.RepaintPending() {
		emu.refresh()
	}
}

// refresh signals the presentation layer without blocking.
func (emu *Emulator) refresh() {
	select {
	case emu.Refresh <- struct{}{}:
	default:
	}
}

// serve handles save and restore requests between cycles.
func (emu *Emulator) serve(saves []chan []byte, restores []restoreRequest) {
	for _, ch := range saves {
		ch <- emu.Save()
		close(ch)
	}

	for _, req := range restores {
		err := emu.Restore(req.blob)
		if err == nil {
			emu.refresh()
		}
		req.result <- err
	}
}

// Run executes the loaded program in real time until Control.Stop, ctx is
// done, or the CPU halts. The machine is cleared on return. A stop is not
// an error.
func (emu *Emulator) Run(ctx context.Context) (err error) {
	runCtx := emu.Control.start(ctx)

	timer := time.NewTimer(time.Hour)
	timer.Stop()

	defer func() {
		timer.Stop()
		emu.Control.finish()
		emu.Reset()
		if emu.Beeper != nil {
			emu.Beeper.Beep(false)
		}
		emu.refresh()
		if emu.Verbose {
			log.Printf("emulator: stopped after %d ticks: %v", emu.Cpu.Ticks, err)
		}
	}()

	for {
		start := time.Now()

		cycleCtx, saves, restores := emu.Control.cycle()
		emu.serve(saves, restores)

		if runCtx.Err() != nil {
			return
		}

		_, err = emu.Tick(cycleCtx)
		if errors.Is(err, cpu.ErrKeyWait) {
			// Stopped, or interrupted by a request.
			err = nil
			continue
		}
		if err != nil {
			return
		}

		wait := emu.CpuWait() - time.Since(start)
		if wait <= 0 {
			continue
		}

		timer.Reset(wait)
		select {
		case <-runCtx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}
