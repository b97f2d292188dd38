package cpu

import (
	"fmt"
	"iter"

	"github.com/ezrec/chip8/internal"
)

// Memory map constants.
const (
	MEMORY_SIZE   = 4096                // Total addressable bytes.
	MEMORY_MASK   = uint16(MEMORY_SIZE - 1)
	PROGRAM_START = uint16(0x200)       // Load address of a ROM, and the reset PC.
	FONT_BASE     = uint16(0x000)       // Address of the hexadecimal glyphs.
	GLYPH_SIZE    = 5                   // Bytes per glyph.
	ROM_LIMIT     = MEMORY_SIZE - 0x200 // Largest loadable ROM.
)

// Glyphs are the built-in 4x5 hexadecimal digit sprites, 0 through F.
var Glyphs = [16 * GLYPH_SIZE]byte{
	0xF0, 0x90, 0x90, 0x90, 0xF0, // 0
	0x20, 0x60, 0x20, 0x20, 0x70, // 1
	0xF0, 0x10, 0xF0, 0x80, 0xF0, // 2
	0xF0, 0x10, 0xF0, 0x10, 0xF0, // 3
	0x90, 0x90, 0xF0, 0x10, 0x10, // 4
	0xF0, 0x80, 0xF0, 0x10, 0xF0, // 5
	0xF0, 0x80, 0xF0, 0x90, 0xF0, // 6
	0xF0, 0x10, 0x20, 0x40, 0x40, // 7
	0xF0, 0x90, 0xF0, 0x90, 0xF0, // 8
	0xF0, 0x90, 0xF0, 0x10, 0xF0, // 9
	0xF0, 0x90, 0xF0, 0x90, 0x90, // A
	0xE0, 0x90, 0xE0, 0x90, 0xE0, // B
	0xF0, 0x80, 0x80, 0x80, 0xF0, // C
	0xE0, 0x90, 0x90, 0x90, 0xE0, // D
	0xF0, 0x80, 0xF0, 0x80, 0xF0, // E
	0xF0, 0x80, 0xF0, 0x80, 0x80, // F
}

var _memory_defines = map[string]string{
	"MEMORY_SIZE":   fmt.Sprintf("0x%x", MEMORY_SIZE),
	"PROGRAM_START": fmt.Sprintf("0x%x", PROGRAM_START),
	"FONT_BASE":     fmt.Sprintf("0x%x", FONT_BASE),
	"GLYPH_SIZE":    fmt.Sprintf("%d", GLYPH_SIZE),
}

// Memory is the 4KB byte-addressable store plus the program counter.
//
// All addresses wrap modulo MEMORY_SIZE.
type Memory struct {
	Data [MEMORY_SIZE]byte
	Pc   uint16
}

// Defines for the memory map.
func (mem *Memory) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Sorted(_memory_defines)
}

// Clear zeros memory, reinstalls the glyphs, and resets the PC.
func (mem *Memory) Clear() {
	clear(mem.Data[:])
	copy(mem.Data[FONT_BASE:], Glyphs[:])
	mem.Pc = PROGRAM_START
}

// Load copies a ROM image to PROGRAM_START.
// Memory is untouched if the ROM does not fit.
func (mem *Memory) Load(rom []byte) (err error) {
	if len(rom) > ROM_LIMIT {
		err = fmt.Errorf("%w: %d > %d", ErrRomTooLarge, len(rom), ROM_LIMIT)
		return
	}

	copy(mem.Data[PROGRAM_START:], rom)
	return
}

// ReadByte returns the byte at addr.
func (mem *Memory) ReadByte(addr uint16) byte {
	return mem.Data[addr&MEMORY_MASK]
}

// WriteByte stores the byte at addr.
func (mem *Memory) WriteByte(addr uint16, value byte) {
	mem.Data[addr&MEMORY_MASK] = value
}

// Read copies len(buf) bytes starting at addr.
func (mem *Memory) Read(addr uint16, buf []byte) {
	for n := range buf {
		buf[n] = mem.ReadByte(addr + uint16(n))
	}
}

// Word returns the big-endian instruction word at addr.
func (mem *Memory) Word(addr uint16) Code {
	return Code(uint16(mem.ReadByte(addr))<<8 | uint16(mem.ReadByte(addr+1)))
}

// Fetch returns the instruction at the PC, and advances the PC past it.
func (mem *Memory) Fetch() (code Code) {
	code = mem.Word(mem.Pc)
	mem.Pc += 2
	return
}
