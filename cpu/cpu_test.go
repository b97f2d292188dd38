package cpu

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// testScreen is a minimal unpacked 64x32 display.
type testScreen struct {
	pixel   [32][64]bool
	cleared int
}

func (ts *testScreen) Erase() {
	ts.pixel = [32][64]bool{}
	ts.cleared++
}

func (ts *testScreen) Draw(x, y uint8, sprite []byte) (collision bool) {
	for row, bits := range sprite {
		for bit := range 8 {
			if bits&(0x80>>bit) == 0 {
				continue
			}
			py, px := (int(y)+row)%32, (int(x)+bit)%64
			if ts.pixel[py][px] {
				collision = true
			}
			ts.pixel[py][px] = !ts.pixel[py][px]
		}
	}
	return
}

// testKeys is a keypad with a scripted key wait.
type testKeys struct {
	held uint16
	next chan uint8
}

func (tk *testKeys) IsPressed(key uint8) bool {
	return key < 16 && tk.held&(1<<key) != 0
}

func (tk *testKeys) WaitKeyPress(ctx context.Context) (key uint8, err error) {
	select {
	case key = <-tk.next:
	case <-ctx.Done():
		err = errors.Join(ErrKeyWait, ctx.Err())
	}
	return
}

func newTestCpu(program ...Code) (cpu *Cpu, screen *testScreen, keys *testKeys) {
	screen = &testScreen{}
	keys = &testKeys{next: make(chan uint8, 1)}
	cpu = NewCpu(screen, keys)
	cpu.Rand = rand.New(rand.NewPCG(1, 2))

	var rom []byte
	for _, code := range program {
		rom = append(rom, code.Bytes()...)
	}
	err := cpu.Memory.Load(rom)
	if err != nil {
		panic(err)
	}

	return
}

func runTicks(t *testing.T, cpu *Cpu, count int) {
	for range count {
		err := cpu.Tick(context.Background())
		if err != nil {
			t.Fatalf("%v\n%v", err, cpu)
		}
	}
}

func TestCpu_Reset(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := newTestCpu(Encode(OP_LD_VX, 3, 0x42))
	runTicks(t, cpu, 1)
	assert.Equal(uint8(0x42), cpu.V[3])
	assert.Equal(1, cpu.Ticks)

	cpu.Halted = true
	cpu.Reset()
	assert.Equal(uint8(0), cpu.V[3])
	assert.Equal(PROGRAM_START, cpu.Memory.Pc)
	assert.Equal(0, cpu.Ticks)
	assert.False(cpu.Halted)
	assert.Equal(byte(0), cpu.Memory.Data[0x200])
}

func TestCpu_Call(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := newTestCpu(Code(0x2EA0))
	cpu.Memory.Data[0xEA0] = 0x00
	cpu.Memory.Data[0xEA1] = 0xEE

	runTicks(t, cpu, 1)
	assert.Equal(uint16(0x0EA0), cpu.Memory.Pc)
	top, err := cpu.Stack.Peek()
	assert.NoError(err)
	assert.Equal(uint16(0x202), top)

	runTicks(t, cpu, 1)
	assert.Equal(uint16(0x202), cpu.Memory.Pc)
	assert.True(cpu.Stack.Empty())
}

func TestCpu_StackOverflow(t *testing.T) {
	assert := assert.New(t)

	// Recursive call to self.
	cpu, _, _ := newTestCpu(Encode(OP_CALL_ADDR, 0x200))
	runTicks(t, cpu, STACK_LIMIT)

	err := cpu.Tick(context.Background())
	assert.ErrorIs(err, ErrStackOverflow)
	assert.ErrorIs(err, ErrOpcode(0))
	assert.True(cpu.Halted)

	err = cpu.Tick(context.Background())
	assert.ErrorIs(err, ErrHalted)
}

func TestCpu_StackUnderflow(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := newTestCpu(Encode(OP_RET))
	err := cpu.Tick(context.Background())
	assert.ErrorIs(err, ErrStackUnderflow)
	assert.True(cpu.Halted)
}

func TestCpu_UnknownInstruction(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := newTestCpu(Code(0xFFFF))
	err := cpu.Tick(context.Background())
	assert.ErrorIs(err, ErrUnknownInstruction)
	assert.True(cpu.Halted)
}

func TestCpu_RunOffEnd(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := newTestCpu(Encode(OP_LD_VX, 1, 0x42))
	assert.NoError(cpu.Tick(context.Background()))

	err := cpu.Tick(context.Background())
	assert.ErrorIs(err, ErrUnknownInstruction)
	assert.ErrorIs(err, ErrOpcode(0))
	assert.True(cpu.Halted)
	assert.Equal(uint16(0x204), cpu.Memory.Pc)
}

func TestCpu_Skip(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		code Code
		skip bool
	}){
		{Encode(OP_SE_VX, 1, 0x11), true},
		{Encode(OP_SE_VX, 1, 0x12), false},
		{Encode(OP_SNE_VX, 1, 0x11), false},
		{Encode(OP_SNE_VX, 1, 0x12), true},
		{Encode(OP_SE_VX_VY, 1, 2), true},
		{Encode(OP_SE_VX_VY, 1, 3), false},
		{Encode(OP_SNE_VX_VY, 1, 2), false},
		{Encode(OP_SNE_VX_VY, 1, 3), true},
		{Encode(OP_SKP_VX, 4), true},
		{Encode(OP_SKP_VX, 5), false},
		{Encode(OP_SKNP_VX, 4), false},
		{Encode(OP_SKNP_VX, 5), true},
	}

	for _, entry := range table {
		cpu, _, keys := newTestCpu(entry.code)
		cpu.V[1] = 0x11
		cpu.V[2] = 0x11
		cpu.V[3] = 0x33
		cpu.V[4] = 0x7
		cpu.V[5] = 0x8
		keys.held = 1 << 7

		runTicks(t, cpu, 1)
		expected := uint16(0x202)
		if entry.skip {
			expected = 0x204
		}
		assert.Equal(expected, cpu.Memory.Pc, entry.code.String())
	}
}

func TestCpu_Alu(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		op     Op
		vx, vy uint8
		result uint8
		flag   uint8
	}){
		{OP_LD_VX_VY, 0x12, 0x34, 0x34, 0xAA},
		{OP_OR_VX_VY, 0xF0, 0x0F, 0xFF, 0xAA},
		{OP_AND_VX_VY, 0xF3, 0x3F, 0x33, 0xAA},
		{OP_XOR_VX_VY, 0xFF, 0x0F, 0xF0, 0xAA},
		{OP_ADD_VX_VY, 0xFF, 0x01, 0x00, 1},
		{OP_ADD_VX_VY, 0x01, 0x01, 0x02, 0},
		{OP_ADD_VX_VY, 0x80, 0x80, 0x00, 1},
		{OP_SUB_VX_VY, 0x05, 0x03, 0x02, 1},
		{OP_SUB_VX_VY, 0x03, 0x05, 0xFE, 0},
		{OP_SUB_VX_VY, 0x05, 0x05, 0x00, 0},
		{OP_SUBN_VX_VY, 0x03, 0x05, 0x02, 1},
		{OP_SUBN_VX_VY, 0x05, 0x03, 0xFE, 0},
		{OP_SHR_VX_VY, 0x05, 0xFF, 0x02, 1},
		{OP_SHR_VX_VY, 0x04, 0xFF, 0x02, 0},
		{OP_SHL_VX_VY, 0x81, 0x00, 0x02, 1},
		{OP_SHL_VX_VY, 0x41, 0x00, 0x82, 0},
	}

	for _, entry := range table {
		cpu, _, _ := newTestCpu(Encode(entry.op, 1, 2))
		cpu.V[1] = entry.vx
		cpu.V[2] = entry.vy
		cpu.V[REG_FLAG] = 0xAA

		runTicks(t, cpu, 1)
		assert.Equal(entry.result, cpu.V[1], "%v %02x %02x", entry.op, entry.vx, entry.vy)
		assert.Equal(entry.flag, cpu.V[REG_FLAG], "%v %02x %02x", entry.op, entry.vx, entry.vy)
	}
}

func TestCpu_Alu_FlagTarget(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := newTestCpu(Encode(OP_ADD_VX_VY, REG_FLAG, 1))
	cpu.V[REG_FLAG] = 0xFF
	cpu.V[1] = 0x02

	runTicks(t, cpu, 1)
	assert.Equal(uint8(0x01), cpu.V[REG_FLAG])
}

func TestCpu_Immediate(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := newTestCpu(
		Encode(OP_LD_VX, 2, 0xFE),
		Encode(OP_ADD_VX, 2, 0x03),
		Encode(OP_LD_I_ADDR, 0x345),
		Encode(OP_LD_VX, 0, 0x10),
		Encode(OP_JP_V0_ADDR, 0x300),
	)
	cpu.V[REG_FLAG] = 0x55

	runTicks(t, cpu, 2)
	assert.Equal(uint8(0x01), cpu.V[2])
	assert.Equal(uint8(0x55), cpu.V[REG_FLAG])

	runTicks(t, cpu, 3)
	assert.Equal(uint16(0x345), cpu.I)
	assert.Equal(uint16(0x310), cpu.Memory.Pc)
}

func TestCpu_Jump(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := newTestCpu(Code(0x1F2A))
	runTicks(t, cpu, 1)
	assert.Equal(uint16(0x0F2A), cpu.Memory.Pc)
}

func TestCpu_Rnd(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := newTestCpu(Encode(OP_RND_VX, 1, 0x0F), Encode(OP_RND_VX, 2, 0x00))
	cpu.V[2] = 0x99
	runTicks(t, cpu, 2)
	assert.Equal(uint8(0), cpu.V[1]&0xF0)
	assert.Equal(uint8(0), cpu.V[2])
}

func TestCpu_Timers(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := newTestCpu(
		Encode(OP_LD_VX, 1, 2),
		Encode(OP_LD_DT_VX, 1),
		Encode(OP_LD_ST_VX, 1),
		Encode(OP_LD_VX_DT, 3),
	)
	runTicks(t, cpu, 3)
	assert.Equal(uint8(2), cpu.DT)
	assert.Equal(uint8(2), cpu.ST)

	cpu.TickTimers()
	runTicks(t, cpu, 1)
	assert.Equal(uint8(1), cpu.V[3])

	cpu.TickTimers()
	cpu.TickTimers()
	assert.Equal(uint8(0), cpu.DT)
	assert.Equal(uint8(0), cpu.ST)
}

func TestCpu_LdFont(t *testing.T) {
	table := [...]struct {
		vx uint8
		i  uint16
	}{
		{0x00, 0x000},
		{0x0F, 0x04B},
		{0x10, 0x050},
		{0xFF, 0x4FB},
	}

	for _, entry := range table {
		assert := assert.New(t)

		cpu, _, _ := newTestCpu(
			Encode(OP_LD_VX, 3, uint16(entry.vx)),
			Encode(OP_LD_F_VX, 3),
		)
		runTicks(t, cpu, 2)
		assert.Equal(entry.i, cpu.I, "LD F, 0x%02x", entry.vx)
	}
}

func TestCpu_Draw(t *testing.T) {
	assert := assert.New(t)

	cpu, screen, _ := newTestCpu(
		Encode(OP_LD_VX, 0, 0x0A),
		Encode(OP_LD_F_VX, 0),
		Encode(OP_LD_VX, 1, 62),
		Encode(OP_DRW_VX_VY, 1, 1, 5),
		Encode(OP_DRW_VX_VY, 1, 1, 5),
		Encode(OP_CLS),
	)

	runTicks(t, cpu, 2)
	assert.Equal(uint16(0xA*GLYPH_SIZE), cpu.I)

	runTicks(t, cpu, 2)
	assert.Equal(uint8(0), cpu.V[REG_FLAG])
	// Glyph 'A' top row is 0xF0: columns 62, 63, 0, 1 of row 62 % 32.
	assert.True(screen.pixel[30][62])
	assert.True(screen.pixel[30][63])
	assert.True(screen.pixel[30][0])
	assert.True(screen.pixel[30][1])
	assert.False(screen.pixel[30][2])

	runTicks(t, cpu, 1)
	assert.Equal(uint8(1), cpu.V[REG_FLAG])
	assert.Equal([32][64]bool{}, screen.pixel)

	cleared := screen.cleared
	runTicks(t, cpu, 1)
	assert.Equal(cleared+1, screen.cleared)
}

func TestCpu_Bcd(t *testing.T) {
	assert := assert.New(t)

	for _, value := range []uint8{0, 7, 42, 100, 255} {
		cpu, _, _ := newTestCpu(Encode(OP_LD_B_VX, 4))
		cpu.V[4] = value
		cpu.I = 0x300
		cpu.Memory.Data[0x300] = 0xEE
		cpu.Memory.Data[0x301] = 0xEE
		cpu.Memory.Data[0x302] = 0xEE

		runTicks(t, cpu, 1)
		assert.Equal([]byte{value / 100, (value / 10) % 10, value % 10}, cpu.Memory.Data[0x300:0x303])
	}
}

func TestCpu_StoreLoad(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := newTestCpu(
		Encode(OP_LD_I_VX, 3),
		Encode(OP_LD_I_ADDR, 0x400),
		Encode(OP_LD_VX_I, 2),
		Encode(OP_ADD_I_VX, 4),
	)
	copy(cpu.V[:], []uint8{1, 2, 3, 4, 0x10})
	cpu.I = 0x500
	cpu.Memory.Data[0x400] = 0xA0
	cpu.Memory.Data[0x401] = 0xA1
	cpu.Memory.Data[0x402] = 0xA2
	cpu.Memory.Data[0x403] = 0xA3

	runTicks(t, cpu, 1)
	assert.Equal([]byte{1, 2, 3, 4, 0}, cpu.Memory.Data[0x500:0x505])
	assert.Equal(uint16(0x500), cpu.I)

	runTicks(t, cpu, 2)
	assert.Equal([]uint8{0xA0, 0xA1, 0xA2, 4}, cpu.V[:4])
	assert.Equal(uint16(0x400), cpu.I)

	runTicks(t, cpu, 1)
	assert.Equal(uint16(0x410), cpu.I)
}

func TestCpu_KeyWait(t *testing.T) {
	assert := assert.New(t)

	cpu, _, keys := newTestCpu(Encode(OP_LD_VX_K, 6))
	keys.next <- 0xB

	runTicks(t, cpu, 1)
	assert.Equal(uint8(0xB), cpu.V[6])
	assert.Equal(uint16(0x202), cpu.Memory.Pc)
}

func TestCpu_KeyWait_Cancel(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := newTestCpu(Encode(OP_LD_VX_K, 6))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := cpu.Tick(ctx)
	assert.ErrorIs(err, ErrKeyWait)
	assert.ErrorIs(err, context.DeadlineExceeded)
	assert.False(cpu.Halted)
	assert.Equal(PROGRAM_START, cpu.Memory.Pc)
}

func TestCpu_Sys(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := newTestCpu(Code(0x0123))
	runTicks(t, cpu, 1)
	assert.Equal(uint16(0x202), cpu.Memory.Pc)
}

func TestCpu_String(t *testing.T) {
	assert := assert.New(t)

	cpu, _, _ := newTestCpu()
	cpu.V[0xA] = 0x5C
	text := cpu.String()
	assert.Contains(text, "   pc: 200\n")
	assert.Contains(text, "   vA: 5C\n")
	assert.Contains(text, "stack: --- (0)\n")
}
