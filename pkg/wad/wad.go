// Package wad gives read access to an in-memory WAD resource blob: the
// lump directory and lookup by the 8-character lump names Doom assets use.
package wad

import (
	"encoding/binary"
	"errors"
	"strings"
)

var (
	// ErrBadFormat reports a blob that is not a usable WAD.
	ErrBadFormat = errors.New("wad: malformed file")
)

const (
	headerSize   = 12
	dirEntrySize = 16
	maxNameLen   = 8
)

type lump struct {
	name string
	off  uint32
	size uint32
}

// File is an immutable view over WAD bytes. Lump data is returned as
// sub-slices of the original blob; callers must treat it as read-only.
type File struct {
	data  []byte
	lumps []lump
}

// Load validates the header and directory of a WAD blob. The blob is
// borrowed, not copied.
func Load(data []byte) (*File, error) {
	if len(data) < headerSize {
		return nil, ErrBadFormat
	}
	magic := string(data[0:4])
	if magic != "IWAD" && magic != "PWAD" {
		return nil, ErrBadFormat
	}

	numLumps := binary.LittleEndian.Uint32(data[4:8])
	dirOffset := binary.LittleEndian.Uint32(data[8:12])
	dirSize := uint64(numLumps) * dirEntrySize
	if uint64(dirOffset)+dirSize > uint64(len(data)) {
		return nil, ErrBadFormat
	}

	f := &File{data: data, lumps: make([]lump, 0, numLumps)}
	for i := uint32(0); i < numLumps; i++ {
		entry := data[dirOffset+i*dirEntrySize:]
		off := binary.LittleEndian.Uint32(entry[0:4])
		size := binary.LittleEndian.Uint32(entry[4:8])
		if uint64(off)+uint64(size) > uint64(len(data)) {
			return nil, ErrBadFormat
		}
		f.lumps = append(f.lumps, lump{
			name: trimName(entry[8:16]),
			off:  off,
			size: size,
		})
	}
	return f, nil
}

func trimName(raw []byte) string {
	end := 0
	for end < maxNameLen && raw[end] != 0 {
		end++
	}
	return strings.ToUpper(string(raw[:end]))
}

// NumLumps returns the number of directory entries.
func (f *File) NumLumps() int {
	return len(f.lumps)
}

// LumpName returns the name of a lump, or "" for an out-of-range index.
func (f *File) LumpName(i int) string {
	if i < 0 || i >= len(f.lumps) {
		return ""
	}
	return f.lumps[i].name
}

// LumpNumForName finds a lump by case-insensitive name, searching from the
// end of the directory so later entries shadow earlier ones. Returns -1
// when no lump matches.
func (f *File) LumpNumForName(name string) int {
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	name = strings.ToUpper(name)
	for i := len(f.lumps) - 1; i >= 0; i-- {
		if f.lumps[i].name == name {
			return i
		}
	}
	return -1
}

// LumpData returns the raw bytes of a lump, or nil for an out-of-range
// index.
func (f *File) LumpData(i int) []byte {
	if i < 0 || i >= len(f.lumps) {
		return nil
	}
	l := f.lumps[i]
	return f.data[l.off : l.off+l.size]
}
