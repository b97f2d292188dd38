package cpu

import (
	"iter"
)

// Opcode is a single assembled source line.
type Opcode struct {
	LineNo    int      // Source line number.
	Addr      uint16   // Load address of the first byte.
	Words     []string // Source words, after equate expansion.
	Bytes     []byte   // Assembled bytes.
	Data      bool     // Set for .db and .dw lines.
	LinkLabel string   // Label to link into the nnn field, if any.
}

// Program is an assembled ROM with its line information.
type Program struct {
	Opcodes []Opcode
}

type Debug struct {
	*Opcode
	Index int // Byte offset within the opcode.
}

// Debug finds the source line holding addr.
func (prog *Program) Debug(addr uint16) (dbg Debug) {
	for n, op := range prog.Opcodes {
		if addr >= op.Addr && addr < op.Addr+uint16(len(op.Bytes)) {
			dbg = Debug{
				Opcode: &prog.Opcodes[n],
				Index:  int(addr - op.Addr),
			}
			break
		}
	}

	return
}

// Binary returns the ROM image, suitable for Memory.Load.
func (prog *Program) Binary() (rom []byte) {
	for _, op := range prog.Opcodes {
		offset := int(op.Addr - PROGRAM_START)
		if len(rom) < offset {
			rom = append(rom, make([]byte, offset-len(rom))...)
		}
		rom = append(rom[:offset], op.Bytes...)
	}

	return
}

// Codes iterates over the instruction words by address. Data lines are skipped.
func (prog *Program) Codes() iter.Seq2[uint16, Code] {
	return func(yield func(addr uint16, code Code) bool) {
		for _, op := range prog.Opcodes {
			if op.Data {
				continue
			}
			for n := 0; n+1 < len(op.Bytes); n += 2 {
				code := Code(uint16(op.Bytes[n])<<8 | uint16(op.Bytes[n+1]))
				if !yield(op.Addr+uint16(n), code) {
					return
				}
			}
		}
	}
}
