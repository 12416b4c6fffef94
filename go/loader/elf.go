package loader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/lunixbochs/rvexec/go/models/cpu"
)

var elfMagic = []byte{0x7f, 0x45, 0x4c, 0x46}

const (
	EI_CLASS   = 4
	ELFCLASS32 = 1
	ELFCLASS64 = 2

	PT_NULL    = 0
	PT_LOAD    = 1
	PT_DYNAMIC = 2
	PT_INTERP  = 3
	PT_NOTE    = 4
	PT_PHDR    = 6

	PF_X = 1 << 0
	PF_W = 1 << 1
	PF_R = 1 << 2
)

var progTypeNames = map[uint32]string{
	PT_NULL:    "NULL",
	PT_LOAD:    "LOAD",
	PT_DYNAMIC: "DYNAMIC",
	PT_INTERP:  "INTERP",
	PT_NOTE:    "NOTE",
	PT_PHDR:    "PHDR",
}

// FileHeader64 is the ELF64 file header as laid out on disk.
type FileHeader64 struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

// ProgHeader64 is one ELF64 program header table entry.
type ProgHeader64 struct {
	Type   uint32
	Flags  uint32
	Off    uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

// Perm is the page permission set for the segment. User access is implied.
func (p *ProgHeader64) Perm() int {
	perm := cpu.PTE_U
	if p.Flags&PF_R != 0 {
		perm |= cpu.PTE_R
	}
	if p.Flags&PF_W != 0 {
		perm |= cpu.PTE_W
	}
	if p.Flags&PF_X != 0 {
		perm |= cpu.PTE_X
	}
	return perm
}

func (p *ProgHeader64) TypeName() string {
	if name, ok := progTypeNames[p.Type]; ok {
		return name
	}
	return fmt.Sprintf("0x%x", p.Type)
}

// on-disk sizes, fixed by the struct layouts above
var (
	fileHeaderSize = mustSizeof(&FileHeader64{})
	progHeaderSize = mustSizeof(&ProgHeader64{})
)

func mustSizeof(i interface{}) int {
	size, err := struc.Sizeof(i)
	if err != nil {
		panic(err)
	}
	return size
}

type ElfFile struct {
	Header FileHeader64
	// every program header in file order, loadable or not
	Progs []ProgHeader64
}

func (e *ElfFile) Entry() uint64 {
	return e.Header.Entry
}

func MatchElf(r io.ReaderAt) bool {
	return bytes.Equal(getMagic(r), elfMagic)
}

// reads exactly sizeof(i) bytes at off, reporting a short read as io.ErrUnexpectedEOF
func unpackAt(r io.ReaderAt, i interface{}, off int64) (int, error) {
	size, err := struc.Sizeof(i)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, size)
	n, err := r.ReadAt(buf, off)
	if n < size {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return n, errors.Wrapf(err, "read %d of %d bytes at %#x", n, size, off)
	}
	return size, struc.UnpackWithOrder(bytes.NewReader(buf), i, binary.LittleEndian)
}

// ParseElf decodes and validates the file header and program header table.
// Nothing is returned unless every program header was read.
func ParseElf(r io.ReaderAt) (*ElfFile, error) {
	var f ElfFile
	h := &f.Header
	if _, err := unpackAt(r, h, 0); err != nil {
		return nil, errors.Wrap(ErrTruncatedHeader, err.Error())
	}
	if !bytes.Equal(h.Ident[:len(elfMagic)], elfMagic) {
		return nil, errors.Wrapf(ErrInvalidFormat, "bad magic % x", h.Ident[:len(elfMagic)])
	}
	if h.Ident[EI_CLASS] != ELFCLASS64 {
		return nil, errors.Wrapf(ErrUnsupportedClass, "class %d", h.Ident[EI_CLASS])
	}
	if h.Phnum == 0 {
		return &f, nil
	}
	if int(h.Phentsize) < progHeaderSize {
		return nil, errors.Wrapf(ErrInvalidProgHeader, "entry size %d < %d", h.Phentsize, progHeaderSize)
	}
	f.Progs = make([]ProgHeader64, h.Phnum)
	for i := range f.Progs {
		off := h.Phoff + uint64(i)*uint64(h.Phentsize)
		if off < h.Phoff || int64(off) < 0 {
			return nil, errors.Wrapf(ErrInvalidProgHeader, "entry %d offset overflows", i)
		}
		if _, err := unpackAt(r, &f.Progs[i], int64(off)); err != nil {
			return nil, errors.Wrapf(ErrInvalidProgHeader, "entry %d: %v", i, err)
		}
	}
	return &f, nil
}
