package cpu

import (
	"fmt"
	"math/bits"
	"strings"
)

// Op is the tag of an instruction shape.
type Op int

const (
	OP_CLS        = Op(0)  // 00E0
	OP_RET        = Op(1)  // 00EE
	OP_JP_ADDR    = Op(2)  // 1nnn
	OP_CALL_ADDR  = Op(3)  // 2nnn
	OP_SE_VX      = Op(4)  // 3xkk
	OP_SNE_VX     = Op(5)  // 4xkk
	OP_SE_VX_VY   = Op(6)  // 5xy0
	OP_LD_VX      = Op(7)  // 6xkk
	OP_ADD_VX     = Op(8)  // 7xkk
	OP_LD_VX_VY   = Op(9)  // 8xy0
	OP_OR_VX_VY   = Op(10) // 8xy1
	OP_AND_VX_VY  = Op(11) // 8xy2
	OP_XOR_VX_VY  = Op(12) // 8xy3
	OP_ADD_VX_VY  = Op(13) // 8xy4
	OP_SUB_VX_VY  = Op(14) // 8xy5
	OP_SHR_VX_VY  = Op(15) // 8xy6
	OP_SUBN_VX_VY = Op(16) // 8xy7
	OP_SHL_VX_VY  = Op(17) // 8xyE
	OP_SNE_VX_VY  = Op(18) // 9xy0
	OP_LD_I_ADDR  = Op(19) // Annn
	OP_JP_V0_ADDR = Op(20) // Bnnn
	OP_RND_VX     = Op(21) // Cxkk
	OP_DRW_VX_VY  = Op(22) // Dxyn
	OP_SKP_VX     = Op(23) // Ex9E
	OP_SKNP_VX    = Op(24) // ExA1
	OP_LD_VX_DT   = Op(25) // Fx07
	OP_LD_VX_K    = Op(26) // Fx0A
	OP_LD_DT_VX   = Op(27) // Fx15
	OP_LD_ST_VX   = Op(28) // Fx18
	OP_ADD_I_VX   = Op(29) // Fx1E
	OP_LD_F_VX    = Op(30) // Fx29
	OP_LD_B_VX    = Op(31) // Fx33
	OP_LD_I_VX    = Op(32) // Fx55
	OP_LD_VX_I    = Op(33) // Fx65
	OP_SYS_ADDR   = Op(34) // 0nnn

	OP_COUNT = 35
)

// ArgKind is the type of an operand field.
//
//go:generate go tool stringer -linecomment -type=ArgKind
type ArgKind int

const (
	ARG_REG    = ArgKind(0) // register index 0-15
	ARG_BYTE   = ArgKind(1) // 8-bit constant
	ARG_ADDR   = ArgKind(2) // 12-bit address
	ARG_NIBBLE = ArgKind(3) // 4-bit constant
)

// Field is a single operand field of an instruction word.
type Field struct {
	Kind ArgKind
	Mask uint16
}

// Extract the field value from an instruction word.
func (field Field) Extract(word uint16) uint16 {
	return (word & field.Mask) >> bits.TrailingZeros16(field.Mask)
}

// Place a field value into its position in an instruction word.
func (field Field) Place(value uint16) uint16 {
	return (value << bits.TrailingZeros16(field.Mask)) & field.Mask
}

// Max returns the largest value the field can hold.
func (field Field) Max() uint16 {
	return field.Mask >> bits.TrailingZeros16(field.Mask)
}

var (
	fieldX    = Field{ARG_REG, 0x0F00}
	fieldY    = Field{ARG_REG, 0x00F0}
	fieldKK   = Field{ARG_BYTE, 0x00FF}
	fieldNNN  = Field{ARG_ADDR, 0x0FFF}
	fieldN    = Field{ARG_NIBBLE, 0x000F}
	fieldNone = []Field{}
)

// Shape is one of the fixed instruction bit patterns.
//
// Syntax lists the assembly operands in order: "vx" and "vy" are register
// fields, "kk", "nnn" and "n" are value fields, anything else is a literal
// keyword. Field-bearing operands appear in the same order as Fields.
type Shape struct {
	Op       Op
	Name     string
	Mnemonic string
	Pattern  uint16
	Mask     uint16
	Fields   []Field
	Syntax   []string
}

// Shapes is the instruction table in decode priority order.
var Shapes = [...]Shape{
	{OP_CLS, "CLS", "cls", 0x00E0, 0xFFFF, fieldNone, nil},
	{OP_RET, "RET", "ret", 0x00EE, 0xFFFF, fieldNone, nil},
	{OP_JP_ADDR, "JP_ADDR", "jp", 0x1000, 0xF000, []Field{fieldNNN}, []string{"nnn"}},
	{OP_CALL_ADDR, "CALL_ADDR", "call", 0x2000, 0xF000, []Field{fieldNNN}, []string{"nnn"}},
	{OP_SE_VX, "SE_VX", "se", 0x3000, 0xF000, []Field{fieldX, fieldKK}, []string{"vx", "kk"}},
	{OP_SNE_VX, "SNE_VX", "sne", 0x4000, 0xF000, []Field{fieldX, fieldKK}, []string{"vx", "kk"}},
	{OP_SE_VX_VY, "SE_VX_VY", "se", 0x5000, 0xF00F, []Field{fieldX, fieldY}, []string{"vx", "vy"}},
	{OP_LD_VX, "LD_VX", "ld", 0x6000, 0xF000, []Field{fieldX, fieldKK}, []string{"vx", "kk"}},
	{OP_ADD_VX, "ADD_VX", "add", 0x7000, 0xF000, []Field{fieldX, fieldKK}, []string{"vx", "kk"}},
	{OP_LD_VX_VY, "LD_VX_VY", "ld", 0x8000, 0xF00F, []Field{fieldX, fieldY}, []string{"vx", "vy"}},
	{OP_OR_VX_VY, "OR_VX_VY", "or", 0x8001, 0xF00F, []Field{fieldX, fieldY}, []string{"vx", "vy"}},
	{OP_AND_VX_VY, "AND_VX_VY", "and", 0x8002, 0xF00F, []Field{fieldX, fieldY}, []string{"vx", "vy"}},
	{OP_XOR_VX_VY, "XOR_VX_VY", "xor", 0x8003, 0xF00F, []Field{fieldX, fieldY}, []string{"vx", "vy"}},
	{OP_ADD_VX_VY, "ADD_VX_VY", "add", 0x8004, 0xF00F, []Field{fieldX, fieldY}, []string{"vx", "vy"}},
	{OP_SUB_VX_VY, "SUB_VX_VY", "sub", 0x8005, 0xF00F, []Field{fieldX, fieldY}, []string{"vx", "vy"}},
	{OP_SHR_VX_VY, "SHR_VX_VY", "shr", 0x8006, 0xF00F, []Field{fieldX, fieldY}, []string{"vx", "vy"}},
	{OP_SUBN_VX_VY, "SUBN_VX_VY", "subn", 0x8007, 0xF00F, []Field{fieldX, fieldY}, []string{"vx", "vy"}},
	{OP_SHL_VX_VY, "SHL_VX_VY", "shl", 0x800E, 0xF00F, []Field{fieldX, fieldY}, []string{"vx", "vy"}},
	{OP_SNE_VX_VY, "SNE_VX_VY", "sne", 0x9000, 0xF00F, []Field{fieldX, fieldY}, []string{"vx", "vy"}},
	{OP_LD_I_ADDR, "LD_I_ADDR", "ld", 0xA000, 0xF000, []Field{fieldNNN}, []string{"i", "nnn"}},
	{OP_JP_V0_ADDR, "JP_V0_ADDR", "jp", 0xB000, 0xF000, []Field{fieldNNN}, []string{"v0", "nnn"}},
	{OP_RND_VX, "RND_VX", "rnd", 0xC000, 0xF000, []Field{fieldX, fieldKK}, []string{"vx", "kk"}},
	{OP_DRW_VX_VY, "DRW_VX_VY", "drw", 0xD000, 0xF000, []Field{fieldX, fieldY, fieldN}, []string{"vx", "vy", "n"}},
	{OP_SKP_VX, "SKP_VX", "skp", 0xE09E, 0xF0FF, []Field{fieldX}, []string{"vx"}},
	{OP_SKNP_VX, "SKNP_VX", "sknp", 0xE0A1, 0xF0FF, []Field{fieldX}, []string{"vx"}},
	{OP_LD_VX_DT, "LD_VX_DT", "ld", 0xF007, 0xF0FF, []Field{fieldX}, []string{"vx", "dt"}},
	{OP_LD_VX_K, "LD_VX_K", "ld", 0xF00A, 0xF0FF, []Field{fieldX}, []string{"vx", "k"}},
	{OP_LD_DT_VX, "LD_DT_VX", "ld", 0xF015, 0xF0FF, []Field{fieldX}, []string{"dt", "vx"}},
	{OP_LD_ST_VX, "LD_ST_VX", "ld", 0xF018, 0xF0FF, []Field{fieldX}, []string{"st", "vx"}},
	{OP_ADD_I_VX, "ADD_I_VX", "add", 0xF01E, 0xF0FF, []Field{fieldX}, []string{"i", "vx"}},
	{OP_LD_F_VX, "LD_F_VX", "ld", 0xF029, 0xF0FF, []Field{fieldX}, []string{"f", "vx"}},
	{OP_LD_B_VX, "LD_B_VX", "ld", 0xF033, 0xF0FF, []Field{fieldX}, []string{"b", "vx"}},
	{OP_LD_I_VX, "LD_I_VX", "ld", 0xF055, 0xF0FF, []Field{fieldX}, []string{"[i]", "vx"}},
	{OP_LD_VX_I, "LD_VX_I", "ld", 0xF065, 0xF0FF, []Field{fieldX}, []string{"vx", "[i]"}},
	{OP_SYS_ADDR, "SYS_ADDR", "sys", 0x0000, 0xF000, []Field{fieldNNN}, []string{"nnn"}},
}

var shapeByOp [OP_COUNT]*Shape

func init() {
	for n := range Shapes {
		shape := &Shapes[n]
		if shapeByOp[shape.Op] != nil {
			panic(fmt.Sprintf("shape %v listed twice", shape.Op))
		}
		shapeByOp[shape.Op] = shape
	}

	// Two shapes can both match a word only if their patterns agree on
	// every bit both masks test. That is only permitted when the earlier
	// shape is strictly more specific, so priority order decides.
	for n := range Shapes {
		for m := n + 1; m < len(Shapes); m++ {
			a, b := &Shapes[n], &Shapes[m]
			if (a.Pattern^b.Pattern)&(a.Mask&b.Mask) != 0 {
				continue
			}
			if a.Mask == b.Mask || (a.Mask&b.Mask) != b.Mask {
				panic(fmt.Sprintf("shapes %v and %v overlap", a.Name, b.Name))
			}
		}
	}
}

// String returns the shape name, e.g. "LD_VX_VY".
func (op Op) String() string {
	if op < 0 || int(op) >= OP_COUNT {
		return fmt.Sprintf("Op(%d)", int(op))
	}
	return shapeByOp[op].Name
}

// ShapeOf returns the shape for an Op.
func ShapeOf(op Op) *Shape {
	if op < 0 || int(op) >= OP_COUNT {
		return nil
	}
	return shapeByOp[op]
}

// Match returns true if the word belongs to the shape.
func (shape *Shape) Match(word uint16) bool {
	return (word & shape.Mask) == shape.Pattern
}

// Arguments extracts the operand values of a word, in field order.
func (shape *Shape) Arguments(word uint16) (args []uint16) {
	args = make([]uint16, len(shape.Fields))
	for n, field := range shape.Fields {
		args[n] = field.Extract(word)
	}
	return
}

// String returns the shape in assembler syntax, with field placeholders.
func (shape *Shape) String() string {
	if len(shape.Syntax) == 0 {
		return shape.Mnemonic
	}
	return shape.Mnemonic + " " + strings.Join(shape.Syntax, ", ")
}

// Decode finds the first shape matching the word. The zero word is never
// decoded, so a program that runs off into cleared memory halts.
func Decode(word uint16) (shape *Shape, ok bool) {
	if word == 0x0000 {
		return
	}
	for n := range Shapes {
		if Shapes[n].Match(word) {
			return &Shapes[n], true
		}
	}
	return
}

// Encode builds an instruction word from an Op and its operands.
// Operands wider than their field are truncated.
func Encode(op Op, args ...uint16) Code {
	shape := ShapeOf(op)
	if shape == nil {
		panic(fmt.Sprintf("encode: unknown op %d", int(op)))
	}
	if len(args) != len(shape.Fields) {
		panic(fmt.Sprintf("encode %v: want %d args, got %d", op, len(shape.Fields), len(args)))
	}

	word := shape.Pattern
	for n, field := range shape.Fields {
		word |= field.Place(args[n])
	}

	return Code(word)
}

// Code is a single 16-bit instruction word.
type Code uint16

// Decode returns the shape and operands of the code, or an ErrOpcode joined
// with ErrUnknownInstruction when no shape matches.
func (code Code) Decode() (shape *Shape, args []uint16, err error) {
	shape, ok := Decode(uint16(code))
	if !ok {
		err = fmt.Errorf("%w: %w", ErrUnknownInstruction, ErrOpcode(code))
		return
	}

	args = shape.Arguments(uint16(code))
	return
}

// Bytes returns the big-endian encoding of the code.
func (code Code) Bytes() []byte {
	return []byte{byte(code >> 8), byte(code)}
}

// String returns the assembly language representation of the code.
func (code Code) String() string {
	shape, args, err := code.Decode()
	if err != nil {
		return fmt.Sprintf(".dw 0x%04x", uint16(code))
	}

	var operands []string
	arg := 0
	for _, syn := range shape.Syntax {
		switch syn {
		case "vx", "vy":
			operands = append(operands, fmt.Sprintf("v%x", args[arg]))
			arg++
		case "kk":
			operands = append(operands, fmt.Sprintf("0x%02x", args[arg]))
			arg++
		case "nnn":
			operands = append(operands, fmt.Sprintf("0x%03x", args[arg]))
			arg++
		case "n":
			operands = append(operands, fmt.Sprintf("%d", args[arg]))
			arg++
		default:
			operands = append(operands, syn)
		}
	}

	if len(operands) == 0 {
		return shape.Mnemonic
	}
	return shape.Mnemonic + " " + strings.Join(operands, ", ")
}
