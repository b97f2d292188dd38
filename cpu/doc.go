// Package cpu implements the processor, memory and assembler for a CHIP-8
// style virtual machine.
//
// The CPU consists of sixteen 8-bit registers (V0-VF), a 16-bit address
// register (I), a program counter, delay and sound timers, and a sixteen
// level call stack. Instructions are 16-bit big-endian words decoded against
// a fixed table of 35 instruction shapes; each shape carries its match
// pattern, its match mask, and the field masks its operands are extracted
// from.
//
// The display and keypad are external collaborators, attached to the CPU
// through the Display and Keypad interfaces.
//
// The assembler provides a small assembly language for the same instruction
// table, supporting macros, labels, equates, and compile-time expression
// evaluation.
package cpu
