package emulator

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/ezrec/chip8/cpu"
	"github.com/ezrec/chip8/io"
)

const (
	SNAPSHOT_MAGIC   = "C8SV"
	SNAPSHOT_VERSION = 1
)

// snapshot is the fixed, big-endian save layout. A CRC-32 (IEEE) of the
// encoded struct follows it.
type snapshot struct {
	Magic        [4]byte
	Version      uint8
	V            [16]uint8
	I            uint16
	DT           uint8
	ST           uint8
	Stack        [cpu.STACK_LIMIT]uint16
	StackPointer uint8
	Pc           uint16
	Memory       [cpu.MEMORY_SIZE]byte
	Pixels       io.Grid
	Collision    uint8
}

var snapshotSize = binary.Size(snapshot{})

// SnapshotSize is the length of a save blob.
func SnapshotSize() int {
	return snapshotSize + crc32.Size
}

// Save captures the machine state. It must only be called between
// instruction cycles.
func (emu *Emulator) Save() (blob []byte) {
	snap := snapshot{
		Version:      SNAPSHOT_VERSION,
		V:            emu.Cpu.V,
		I:            emu.Cpu.I,
		DT:           emu.Cpu.DT,
		ST:           emu.Cpu.ST,
		Stack:        emu.Cpu.Stack.Data,
		StackPointer: uint8(emu.Cpu.Stack.Pointer),
		Pc:           emu.Cpu.Memory.Pc,
		Memory:       emu.Cpu.Memory.Data,
	}
	copy(snap.Magic[:], SNAPSHOT_MAGIC)

	var collision bool
	snap.Pixels, collision = emu.Display.Pixels()
	if collision {
		snap.Collision = 1
	}

	buf := bytes.NewBuffer(make([]byte, 0, SnapshotSize()))
	// Writes to a bytes.Buffer of a fixed size struct do not fail.
	_ = binary.Write(buf, binary.BigEndian, &snap)
	blob = binary.BigEndian.AppendUint32(buf.Bytes(), crc32.ChecksumIEEE(buf.Bytes()))

	return
}

// Restore applies a blob from Save. A malformed blob fails with
// ErrInvalidSaveFile and leaves the machine untouched.
func (emu *Emulator) Restore(blob []byte) (err error) {
	if len(blob) != SnapshotSize() {
		err = fmt.Errorf("%w: length %d", ErrInvalidSaveFile, len(blob))
		return
	}

	body, trailer := blob[:snapshotSize], blob[snapshotSize:]
	if crc32.ChecksumIEEE(body) != binary.BigEndian.Uint32(trailer) {
		err = fmt.Errorf("%w: checksum", ErrInvalidSaveFile)
		return
	}

	var snap snapshot
	err = binary.Read(bytes.NewReader(body), binary.BigEndian, &snap)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidSaveFile, err)
		return
	}

	switch {
	case string(snap.Magic[:]) != SNAPSHOT_MAGIC:
		err = fmt.Errorf("%w: magic", ErrInvalidSaveFile)
	case snap.Version != SNAPSHOT_VERSION:
		err = fmt.Errorf("%w: version %d", ErrInvalidSaveFile, snap.Version)
	case int(snap.StackPointer) > cpu.STACK_LIMIT:
		err = fmt.Errorf("%w: stack pointer %d", ErrInvalidSaveFile, snap.StackPointer)
	case snap.Collision > 1:
		err = fmt.Errorf("%w: collision %d", ErrInvalidSaveFile, snap.Collision)
	}
	if err != nil {
		return
	}

	c := emu.Cpu
	c.V = snap.V
	c.I = snap.I
	c.DT = snap.DT
	c.ST = snap.ST
	c.Stack.Data = snap.Stack
	c.Stack.Pointer = int(snap.StackPointer)
	c.Memory.Pc = snap.Pc
	c.Memory.Data = snap.Memory
	c.Halted = false
	emu.Display.SetPixels(snap.Pixels, snap.Collision != 0)

	return
}
