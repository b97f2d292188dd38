package io

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"regexp"
	"strconv"
	"strings"

	"github.com/ezrec/chip8/internal"
)

const (
	// SLOT_LIMIT is the number of save slots in a depot.
	SLOT_LIMIT = 100
	// SLOT_EXT is the file extension of a save slot.
	SLOT_EXT = ".c8s"
	// DEPOT_EXT is the directory extension of a named depot.
	DEPOT_EXT = ".slots"
)

var reSlot = regexp.MustCompile(`^[0-9][0-9]\` + SLOT_EXT + `$`)

// Depot is a collection of numbered save slots, each holding a snapshot.
// A depot with a Name is stored in its own NAME.slots directory.
type Depot struct {
	Name  string
	Slots map[int][]byte
}

func (depot *Depot) dir() string {
	return depot.Name + DEPOT_EXT
}

// Unmarshal loads save slots from a file system, scanning for files
// matching NN.c8s. A named depot with no directory yet is empty.
func (depot *Depot) Unmarshal(filesys fs.FS) (err error) {
	if len(depot.Name) != 0 {
		filesys, err = fs.Sub(filesys, depot.dir())
		if err != nil {
			return
		}
		_, err = fs.Stat(filesys, ".")
		if errors.Is(err, fs.ErrNotExist) {
			err = nil
			return
		}
		if err != nil {
			return
		}
	}

	return fs.WalkDir(filesys, ".", func(path string, d fs.DirEntry, err_in error) (err error) {
		if err_in != nil {
			return err_in
		}
		if d.IsDir() {
			if path != "." {
				err = fs.SkipDir
			}
			return
		}
		name := d.Name()
		if !reSlot.MatchString(name) {
			return
		}
		slot, err := strconv.Atoi(strings.TrimSuffix(name, SLOT_EXT))
		if err != nil {
			return
		}

		blob, err := fs.ReadFile(filesys, path)
		if err != nil {
			return
		}

		if depot.Slots == nil {
			depot.Slots = make(map[int][]byte)
		}
		depot.Slots[slot] = blob

		return
	})
}

// Marshal writes the depot's slots to a file system, creating the
// NAME.slots directory of a named depot as needed.
func (depot *Depot) Marshal(filesys CreateFS) (err error) {
	if len(depot.Name) != 0 {
		var subsys CreateFS
		subsys, err = filesys.Sub(depot.dir())
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return
			}
			// Create the directory
			err = filesys.Mkdir(depot.dir(), 0755)
			if err != nil {
				return
			}
			subsys, err = filesys.Sub(depot.dir())
			if err != nil {
				return
			}
		}
		filesys = subsys
	}

	for slot, blob := range depot.All() {
		err = depot.marshalSlot(filesys, slot, blob)
		if err != nil {
			return
		}
	}

	return
}

func (depot *Depot) marshalSlot(filesys CreateFS, slot int, blob []byte) (err error) {
	file, err := filesys.Create(fmt.Sprintf("%02d%s", slot, SLOT_EXT))
	if err != nil {
		return
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()

	_, err = bytes.NewReader(blob).WriteTo(file)
	return
}

// Save stores a snapshot in a slot.
func (depot *Depot) Save(slot int, blob []byte) (err error) {
	if slot < 0 || slot >= SLOT_LIMIT {
		err = fmt.Errorf("%w: %d", ErrSlotRange, slot)
		return
	}

	if depot.Slots == nil {
		depot.Slots = make(map[int][]byte)
	}
	depot.Slots[slot] = bytes.Clone(blob)
	return
}

// Load returns the snapshot in a slot.
func (depot *Depot) Load(slot int) (blob []byte, err error) {
	if slot < 0 || slot >= SLOT_LIMIT {
		err = fmt.Errorf("%w: %d", ErrSlotRange, slot)
		return
	}

	blob, ok := depot.Slots[slot]
	if !ok {
		err = fmt.Errorf("%w: %d", ErrSlotEmpty, slot)
		return
	}

	return
}

// All iterates over the filled slots in order.
func (depot *Depot) All() iter.Seq2[int, []byte] {
	return internal.IterSeq2Sorted(depot.Slots)
}
