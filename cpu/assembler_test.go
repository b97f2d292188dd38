package cpu

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func assemble(t *testing.T, program ...string) (prog *Program, err error) {
	asm := &Assembler{}
	prog, err = asm.Parse(strings.NewReader(strings.Join(program, "\n")))
	return
}

func TestAssembler(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}

	prog, err := asm.Parse(strings.NewReader(""))
	assert.NoError(err)
	assert.Equal(0, len(prog.Opcodes))

	assert.Equal("0", asm.Equate["LINENO"])
	assert.Equal("0x200", asm.Equate["PROGRAM_START"])
	assert.Equal("5", asm.Equate["GLYPH_SIZE"])
}

func TestAssembler_Instructions(t *testing.T) {
	assert := assert.New(t)

	program := []string{
		"cls",
		"ret",
		"sys 0x123",
		"jp 0x345",
		"call 0x456",
		"se v1, 0x42",
		"sne v2, 17",
		"se v3, v4",
		"ld v5, 'A'",
		"add v6, -1",
		"ld v7, v8",
		"or v1, v2",
		"and v1, v2",
		"xor v1, v2",
		"add v1, v2",
		"sub v1, v2",
		"shr v1, v2",
		"subn v1, v2",
		"shl v1, v2",
		"sne v9, vA",
		"ld i, 0x789",
		"jp v0, 0x100",
		"rnd vB, 0x0F",
		"drw v1, v2, 15",
		"skp vC",
		"sknp vD",
		"ld vE, dt",
		"ld vF, k",
		"ld dt, v0",
		"ld st, v1",
		"add i, v2",
		"ld f, v3",
		"ld b, v4",
		"ld [i], v5",
		"ld v6, [I]",
	}

	expected := []Code{
		0x00E0, 0x00EE, 0x0123, 0x1345, 0x2456,
		0x3142, 0x4211, 0x5340, 0x6541, 0x76FF,
		0x8780, 0x8121, 0x8122, 0x8123, 0x8124,
		0x8125, 0x8126, 0x8127, 0x812E,
		0x99A0, 0xA789, 0xB100, 0xCB0F, 0xD12F,
		0xEC9E, 0xEDA1, 0xFE07, 0xFF0A, 0xF015,
		0xF118, 0xF21E, 0xF329, 0xF433, 0xF555,
		0xF665,
	}

	prog, err := assemble(t, program...)
	if !assert.NoError(err) {
		return
	}

	var codes []Code
	for addr, code := range prog.Codes() {
		assert.Equal(PROGRAM_START+uint16(2*len(codes)), addr)
		codes = append(codes, code)
	}
	assert.Equal(expected, codes)
}

func TestAssembler_Labels(t *testing.T) {
	assert := assert.New(t)

	prog, err := assemble(t,
		"start:",
		"  ld i, sprite   ; forward reference",
		"loop: drw v0, v1, 2",
		"  call sub",
		"  jp loop",
		"sub: ret",
		"sprite: .db 0x81 0x42",
		"  .dw 0x1234, -2",
	)
	if !assert.NoError(err) {
		return
	}

	assert.Equal([]byte{
		0xA2, 0x0A, // ld i, sprite
		0xD0, 0x12, // loop
		0x22, 0x08, // call sub
		0x12, 0x02, // jp loop
		0x00, 0xEE, // sub
		0x81, 0x42, // sprite
		0x12, 0x34, 0xFF, 0xFE,
	}, prog.Binary())

	dbg := prog.Debug(0x20B)
	if assert.NotNil(dbg.Opcode) {
		assert.Equal(7, dbg.LineNo)
		assert.Equal(1, dbg.Index)
		assert.True(dbg.Data)
	}
}

func TestAssembler_Equates(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	asm.Predefine("WIDTH", "64")

	prog, err := asm.Parse(strings.NewReader(strings.Join([]string{
		".equ X v3",
		".equ COUNT 10",
		"ld X, COUNT",
		"ld X, $(WIDTH - COUNT)",
		"ld i, $(FONT_BASE + GLYPH_SIZE * 2)",
		"ld FLAG, $(LINENO)",
	}, "\n")))
	if !assert.NoError(err) {
		return
	}

	assert.Equal([]byte{0x63, 0x0A, 0x63, 0x36, 0xA0, 0x0A, 0x6F, 0x06}, prog.Binary())
}

func TestAssembler_Macro(t *testing.T) {
	assert := assert.New(t)

	prog, err := assemble(t,
		".macro wait REG",
		"@loop: ld REG, dt",
		"  se REG, 0",
		"  jp @loop",
		".endm",
		"  ld dt, v0",
		"  wait v1",
	)
	if !assert.NoError(err) {
		return
	}

	assert.Equal([]byte{0xF0, 0x15, 0xF1, 0x07, 0x31, 0x00, 0x12, 0x02}, prog.Binary())
}

func TestAssembler_Errors(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		program []string
		err     error
	}){
		{[]string{"bogus v1"}, ErrInstructionInvalid},
		{[]string{"cls v1"}, ErrOpcodeExtraArgs},
		{[]string{"ld v1"}, ErrOpcodeValueMissing},
		{[]string{"ld v1, 0x100"}, ErrOperandRange},
		{[]string{"drw v1, v2, 16"}, ErrOperandRange},
		{[]string{"ld i, v2"}, ErrInstructionInvalid},
		{[]string{"sys 0xE0"}, ErrInstructionInvalid},
		{[]string{"sys 0"}, ErrInstructionInvalid},
		{[]string{"jp nowhere"}, ErrLabelMissing("nowhere")},
		{[]string{"a: cls", "a: cls"}, ErrLabelDuplicate},
		{[]string{".equ A 1", ".equ A 2"}, ErrEquateDuplicate},
		{[]string{".equ A"}, ErrEquateSyntax},
		{[]string{".macro m", ".macro n"}, ErrMacroNesting},
		{[]string{".macro m"}, ErrMacroLonely},
		{[]string{".endm"}, ErrMacroLonelyEndm},
		{[]string{".macro m", ".endm", ".macro m", ".endm"}, ErrMacroDuplicate},
		{[]string{".macro m A", ".endm", "m"}, ErrMacroSyntax},
		{[]string{".db 0x100"}, ErrOperandRange},
		{[]string{".db"}, ErrOpcodeValueMissing},
		{[]string{".db 0x12 0x34", ".dw $(1 / 0)"}, nil},
	}

	for _, entry := range table {
		_, err := assemble(t, entry.program...)
		if entry.err == nil {
			assert.Error(err, entry.program)
			continue
		}
		assert.ErrorIs(err, entry.err, entry.program)
		assert.ErrorAs(err, new(*ErrSyntax), entry.program)
	}
}

func TestAssembler_TooLarge(t *testing.T) {
	assert := assert.New(t)

	lines := make([]string, ROM_LIMIT/2+1)
	for n := range lines {
		lines[n] = "cls"
	}

	_, err := assemble(t, lines...)
	assert.ErrorIs(err, ErrProgramTooLarge)

	prog, err := assemble(t, lines[1:]...)
	assert.NoError(err)
	assert.Equal(ROM_LIMIT, len(prog.Binary()))
}

func TestAssembler_Disassemble(t *testing.T) {
	assert := assert.New(t)

	// Every shape round trips through its own text form.
	for n := range Shapes {
		shape := &Shapes[n]
		args := make([]uint16, len(shape.Fields))
		for i, field := range shape.Fields {
			args[i] = (0x3A7 + uint16(i)*5) & field.Max()
		}
		code := Encode(shape.Op, args...)

		prog, err := assemble(t, code.String())
		if !assert.NoError(err, code.String()) {
			continue
		}
		assert.Equal(code.Bytes(), prog.Binary(), code.String())
	}
}
