package cpu

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func FuzzCpu(f *testing.F) {
	for n := range Shapes {
		f.Add(Shapes[n].Pattern, uint8(0x5A), uint8(0xA5), uint16(0x300))
	}
	f.Add(uint16(0xFFFF), uint8(0), uint8(0), uint16(0xFFFF))

	f.Fuzz(func(t *testing.T, opcode uint16, vx uint8, vy uint8, index uint16) {
		assert := assert.New(t)

		cpu, _, keys := newTestCpu(Code(opcode))
		keys.held = 0x00FF
		keys.next <- vx & 0xF

		x := (opcode >> 8) & 0xF
		y := (opcode >> 4) & 0xF
		cpu.V[x] = vx
		cpu.V[y] = vy
		cpu.I = index

		before := *cpu

		err := cpu.Tick(context.Background())

		shape, ok := Decode(opcode)
		if !ok {
			assert.ErrorIs(err, ErrUnknownInstruction)
			assert.True(cpu.Halted)
			return
		}

		switch shape.Op {
		case OP_RET:
			assert.ErrorIs(err, ErrStackUnderflow)
			return
		case OP_CALL_ADDR:
			assert.NoError(err)
			assert.Equal(opcode&0xFFF, cpu.Memory.Pc)
			assert.Equal(1, cpu.Stack.Pointer)
			return
		}

		if !assert.NoError(err, "%v", Code(opcode)) {
			return
		}
		assert.False(errors.Is(err, ErrHalted))
		assert.Equal(before.Ticks+1, cpu.Ticks)

		// Only the documented side effects may occur.
		switch shape.Op {
		case OP_JP_ADDR, OP_JP_V0_ADDR:
		case OP_SE_VX, OP_SNE_VX, OP_SE_VX_VY, OP_SNE_VX_VY, OP_SKP_VX, OP_SKNP_VX:
			assert.Contains([]uint16{0x202, 0x204}, cpu.Memory.Pc)
		default:
			assert.Equal(uint16(0x202), cpu.Memory.Pc)
		}

		switch shape.Op {
		case OP_LD_B_VX, OP_LD_I_VX:
		default:
			assert.Equal(before.Memory.Data, cpu.Memory.Data)
		}
	})
}
