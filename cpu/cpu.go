package cpu

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"math/rand/v2"

	"github.com/ezrec/chip8/internal"
)

// Display is the framebuffer the CPU draws on.
type Display interface {
	// Erase turns off all pixels.
	Erase()
	// Draw XORs a sprite at (x, y), one byte per row, and reports
	// whether any lit pixel was turned off.
	Draw(x, y uint8, sprite []byte) (collision bool)
}

// Keypad is the 16 key input matrix.
type Keypad interface {
	IsPressed(key uint8) bool
	// WaitKeyPress blocks until the next key down, or until ctx is done.
	WaitKeyPress(ctx context.Context) (key uint8, err error)
}

const (
	REG_FLAG = 0xF // V[F] is the carry, borrow, and collision flag.
)

// Cpu is the simulation context for the CHIP-8 processor.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	V      [16]uint8 // General purpose registers.
	I      uint16    // Address register.
	DT     uint8     // Delay timer.
	ST     uint8     // Sound timer.
	Stack  Stack     // Return address stack.
	Memory Memory    // Memory and program counter.

	Display Display
	Keypad  Keypad
	Rand    *rand.Rand // Source for RND.

	Halted bool // Set when a fatal error stops execution.
	Ticks  int  // CPU ticks counter.
}

// NewCpu creates a reset CPU attached to a display and keypad.
func NewCpu(display Display, keypad Keypad) (cpu *Cpu) {
	cpu = &Cpu{
		Display: display,
		Keypad:  keypad,
		Rand:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	cpu.Reset()

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(
		cpu.Memory.Defines(),
		func(yield func(string, string) bool) {
			_ = yield("STACK_LIMIT", fmt.Sprintf("%d", STACK_LIMIT)) &&
				yield("REG_FLAG", fmt.Sprintf("0x%x", REG_FLAG))
		},
	)
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	text += fmt.Sprintf("   pc: %03X\n", cpu.Memory.Pc)
	text += fmt.Sprintf("    i: %03X\n", cpu.I)
	for n, v := range cpu.V {
		text += fmt.Sprintf("   v%X: %02X\n", n, v)
	}
	text += fmt.Sprintf("   dt: %02X\n", cpu.DT)
	text += fmt.Sprintf("   st: %02X\n", cpu.ST)
	if val, err := cpu.Stack.Peek(); err == nil {
		text += fmt.Sprintf("stack: %03X (%d)\n", val, cpu.Stack.Pointer)
	} else {
		text += "stack: --- (0)\n"
	}

	return
}

// Reset the CPU state.
// - Clears the registers, timers, and stack.
// - Clears memory and reinstalls the glyphs.
// - Sets the PC to PROGRAM_START.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	clear(cpu.V[:])
	cpu.I = 0
	cpu.DT = 0
	cpu.ST = 0
	cpu.Stack.Reset()
	cpu.Memory.Clear()
	cpu.Halted = false
	cpu.Ticks = 0
}

// TickTimers decrements the delay and sound timers toward zero.
func (cpu *Cpu) TickTimers() {
	if cpu.DT > 0 {
		cpu.DT--
	}
	if cpu.ST > 0 {
		cpu.ST--
	}
}

// Tick executes a single fetch, decode, and execute cycle.
// A fatal error leaves the CPU Halted.
func (cpu *Cpu) Tick(ctx context.Context) (err error) {
	if cpu.Halted {
		err = ErrHalted
		return
	}

	pc := cpu.Memory.Pc
	code := cpu.Memory.Fetch()

	err = cpu.Execute(ctx, code)
	if err != nil {
		if errors.Is(err, ErrKeyWait) {
			// Leave the machine at the instruction boundary.
			cpu.Memory.Pc = pc
		} else {
			cpu.Halted = true
		}
		return
	}

	cpu.Ticks++
	return
}

// Execute executes a single instruction. The PC must already point past it.
func (cpu *Cpu) Execute(ctx context.Context, code Code) (err error) {
	if cpu.Verbose {
		log.Printf("%03x: %v", cpu.Memory.Pc-2, code)
	}

	shape, args, err := code.Decode()
	if err != nil {
		return
	}

	err = executors[shape.Op](cpu, ctx, args)
	if err != nil {
		err = errors.Join(ErrOpcode(code), err)
	}

	return
}

type executor func(cpu *Cpu, ctx context.Context, args []uint16) error

var executors = [OP_COUNT]executor{
	OP_CLS:        (*Cpu).execCls,
	OP_RET:        (*Cpu).execRet,
	OP_JP_ADDR:    (*Cpu).execJp,
	OP_CALL_ADDR:  (*Cpu).execCall,
	OP_SE_VX:      (*Cpu).execSeByte,
	OP_SNE_VX:     (*Cpu).execSneByte,
	OP_SE_VX_VY:   (*Cpu).execSeReg,
	OP_LD_VX:      (*Cpu).execLdByte,
	OP_ADD_VX:     (*Cpu).execAddByte,
	OP_LD_VX_VY:   (*Cpu).execLdReg,
	OP_OR_VX_VY:   (*Cpu).execOr,
	OP_AND_VX_VY:  (*Cpu).execAnd,
	OP_XOR_VX_VY:  (*Cpu).execXor,
	OP_ADD_VX_VY:  (*Cpu).execAddReg,
	OP_SUB_VX_VY:  (*Cpu).execSub,
	OP_SHR_VX_VY:  (*Cpu).execShr,
	OP_SUBN_VX_VY: (*Cpu).execSubn,
	OP_SHL_VX_VY:  (*Cpu).execShl,
	OP_SNE_VX_VY:  (*Cpu).execSneReg,
	OP_LD_I_ADDR:  (*Cpu).execLdI,
	OP_JP_V0_ADDR: (*Cpu).execJpV0,
	OP_RND_VX:     (*Cpu).execRnd,
	OP_DRW_VX_VY:  (*Cpu).execDrw,
	OP_SKP_VX:     (*Cpu).execSkp,
	OP_SKNP_VX:    (*Cpu).execSknp,
	OP_LD_VX_DT:   (*Cpu).execLdVxDt,
	OP_LD_VX_K:    (*Cpu).execLdVxK,
	OP_LD_DT_VX:   (*Cpu).execLdDtVx,
	OP_LD_ST_VX:   (*Cpu).execLdStVx,
	OP_ADD_I_VX:   (*Cpu).execAddIVx,
	OP_LD_F_VX:    (*Cpu).execLdFVx,
	OP_LD_B_VX:    (*Cpu).execLdBVx,
	OP_LD_I_VX:    (*Cpu).execStore,
	OP_LD_VX_I:    (*Cpu).execLoad,
	OP_SYS_ADDR:   (*Cpu).execSys,
}

func (cpu *Cpu) skipIf(cond bool) {
	if cond {
		cpu.Memory.Pc += 2
	}
}

func (cpu *Cpu) execCls(ctx context.Context, args []uint16) error {
	cpu.Display.Erase()
	return nil
}

func (cpu *Cpu) execRet(ctx context.Context, args []uint16) (err error) {
	pc, err := cpu.Stack.Pop()
	if err != nil {
		return
	}
	cpu.Memory.Pc = pc
	return
}

func (cpu *Cpu) execJp(ctx context.Context, args []uint16) error {
	cpu.Memory.Pc = args[0]
	return nil
}

func (cpu *Cpu) execCall(ctx context.Context, args []uint16) (err error) {
	err = cpu.Stack.Push(cpu.Memory.Pc)
	if err != nil {
		return
	}
	cpu.Memory.Pc = args[0]
	return
}

func (cpu *Cpu) execSeByte(ctx context.Context, args []uint16) error {
	cpu.skipIf(cpu.V[args[0]] == uint8(args[1]))
	return nil
}

func (cpu *Cpu) execSneByte(ctx context.Context, args []uint16) error {
	cpu.skipIf(cpu.V[args[0]] != uint8(args[1]))
	return nil
}

func (cpu *Cpu) execSeReg(ctx context.Context, args []uint16) error {
	cpu.skipIf(cpu.V[args[0]] == cpu.V[args[1]])
	return nil
}

func (cpu *Cpu) execSneReg(ctx context.Context, args []uint16) error {
	cpu.skipIf(cpu.V[args[0]] != cpu.V[args[1]])
	return nil
}

func (cpu *Cpu) execLdByte(ctx context.Context, args []uint16) error {
	cpu.V[args[0]] = uint8(args[1])
	return nil
}

// ADD Vx, kk never touches the flag register.
func (cpu *Cpu) execAddByte(ctx context.Context, args []uint16) error {
	cpu.V[args[0]] += uint8(args[1])
	return nil
}

func (cpu *Cpu) execLdReg(ctx context.Context, args []uint16) error {
	cpu.V[args[0]] = cpu.V[args[1]]
	return nil
}

func (cpu *Cpu) execOr(ctx context.Context, args []uint16) error {
	cpu.V[args[0]] |= cpu.V[args[1]]
	return nil
}

func (cpu *Cpu) execAnd(ctx context.Context, args []uint16) error {
	cpu.V[args[0]] &= cpu.V[args[1]]
	return nil
}

func (cpu *Cpu) execXor(ctx context.Context, args []uint16) error {
	cpu.V[args[0]] ^= cpu.V[args[1]]
	return nil
}

// flagged stores an ALU result whose flag was computed from the operands
// before either was written. VF is written first, so an instruction
// targeting VF keeps the result.
func (cpu *Cpu) flagged(x uint16, result uint8, flag bool) {
	cpu.V[REG_FLAG] = 0
	if flag {
		cpu.V[REG_FLAG] = 1
	}
	cpu.V[x] = result
}

func (cpu *Cpu) execAddReg(ctx context.Context, args []uint16) error {
	sum := uint16(cpu.V[args[0]]) + uint16(cpu.V[args[1]])
	cpu.flagged(args[0], uint8(sum), sum > 0xFF)
	return nil
}

// SUB sets VF when no borrow occurs.
func (cpu *Cpu) execSub(ctx context.Context, args []uint16) error {
	vx, vy := cpu.V[args[0]], cpu.V[args[1]]
	cpu.flagged(args[0], vx-vy, vx > vy)
	return nil
}

func (cpu *Cpu) execSubn(ctx context.Context, args []uint16) error {
	vx, vy := cpu.V[args[0]], cpu.V[args[1]]
	cpu.flagged(args[0], vy-vx, vy > vx)
	return nil
}

// Shifts operate on Vx alone; Vy is ignored.
func (cpu *Cpu) execShr(ctx context.Context, args []uint16) error {
	vx := cpu.V[args[0]]
	cpu.flagged(args[0], vx>>1, vx&0x01 != 0)
	return nil
}

func (cpu *Cpu) execShl(ctx context.Context, args []uint16) error {
	vx := cpu.V[args[0]]
	cpu.flagged(args[0], vx<<1, vx&0x80 != 0)
	return nil
}

func (cpu *Cpu) execLdI(ctx context.Context, args []uint16) error {
	cpu.I = args[0]
	return nil
}

func (cpu *Cpu) execJpV0(ctx context.Context, args []uint16) error {
	cpu.Memory.Pc = args[0] + uint16(cpu.V[0])
	return nil
}

func (cpu *Cpu) execRnd(ctx context.Context, args []uint16) error {
	cpu.V[args[0]] = uint8(cpu.Rand.Uint32()) & uint8(args[1])
	return nil
}

func (cpu *Cpu) execDrw(ctx context.Context, args []uint16) error {
	sprite := make([]byte, args[2])
	cpu.Memory.Read(cpu.I, sprite)

	collision := cpu.Display.Draw(cpu.V[args[0]], cpu.V[args[1]], sprite)
	cpu.V[REG_FLAG] = 0
	if collision {
		cpu.V[REG_FLAG] = 1
	}
	return nil
}

func (cpu *Cpu) execSkp(ctx context.Context, args []uint16) error {
	cpu.skipIf(cpu.Keypad.IsPressed(cpu.V[args[0]]))
	return nil
}

func (cpu *Cpu) execSknp(ctx context.Context, args []uint16) error {
	cpu.skipIf(!cpu.Keypad.IsPressed(cpu.V[args[0]]))
	return nil
}

func (cpu *Cpu) execLdVxDt(ctx context.Context, args []uint16) error {
	cpu.V[args[0]] = cpu.DT
	return nil
}

func (cpu *Cpu) execLdVxK(ctx context.Context, args []uint16) (err error) {
	key, err := cpu.Keypad.WaitKeyPress(ctx)
	if err != nil {
		if !errors.Is(err, ErrKeyWait) {
			err = errors.Join(ErrKeyWait, err)
		}
		return
	}
	cpu.V[args[0]] = key
	return
}

func (cpu *Cpu) execLdDtVx(ctx context.Context, args []uint16) error {
	cpu.DT = cpu.V[args[0]]
	return nil
}

func (cpu *Cpu) execLdStVx(ctx context.Context, args []uint16) error {
	cpu.ST = cpu.V[args[0]]
	return nil
}

func (cpu *Cpu) execAddIVx(ctx context.Context, args []uint16) error {
	cpu.I += uint16(cpu.V[args[0]])
	return nil
}

// LD F, Vx scales the whole register; only 0-F address a glyph.
func (cpu *Cpu) execLdFVx(ctx context.Context, args []uint16) error {
	cpu.I = FONT_BASE + uint16(cpu.V[args[0]])*GLYPH_SIZE
	return nil
}

func (cpu *Cpu) execLdBVx(ctx context.Context, args []uint16) error {
	vx := cpu.V[args[0]]
	cpu.Memory.WriteByte(cpu.I, vx/100)
	cpu.Memory.WriteByte(cpu.I+1, (vx/10)%10)
	cpu.Memory.WriteByte(cpu.I+2, vx%10)
	return nil
}

func (cpu *Cpu) execStore(ctx context.Context, args []uint16) error {
	for n := uint16(0); n <= args[0]; n++ {
		cpu.Memory.WriteByte(cpu.I+n, cpu.V[n])
	}
	return nil
}

func (cpu *Cpu) execLoad(ctx context.Context, args []uint16) error {
	for n := uint16(0); n <= args[0]; n++ {
		cpu.V[n] = cpu.Memory.ReadByte(cpu.I + n)
	}
	return nil
}

// SYS calls host machine code, which is not available.
func (cpu *Cpu) execSys(ctx context.Context, args []uint16) error {
	if cpu.Verbose {
		log.Printf("cpu: ignoring sys 0x%03x", args[0])
	}
	return nil
}
