package loader

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/lunixbochs/rvexec/go/models/cpu"
)

type testProg struct {
	ProgHeader64
	Data []byte
}

// buildElf lays out a little-endian ELF64 image: file header, program header
// table, then each prog's Data in order. Off and Filesz are filled in from
// Data unless already set.
func buildElf(t testing.TB, entry uint64, progs ...testProg) []byte {
	hdrSize, entSize := fileHeaderSize, progHeaderSize
	h := FileHeader64{
		Type:      2,
		Machine:   243, // EM_RISCV
		Version:   1,
		Entry:     entry,
		Phoff:     uint64(hdrSize),
		Ehsize:    uint16(hdrSize),
		Phentsize: uint16(entSize),
		Phnum:     uint16(len(progs)),
	}
	copy(h.Ident[:], elfMagic)
	h.Ident[EI_CLASS] = ELFCLASS64
	h.Ident[5] = 1 // little endian
	h.Ident[6] = 1

	var data bytes.Buffer
	off := uint64(hdrSize + entSize*len(progs))
	phdrs := make([]ProgHeader64, len(progs))
	for i, p := range progs {
		ph := p.ProgHeader64
		if len(p.Data) > 0 {
			if ph.Off == 0 {
				ph.Off = off + uint64(data.Len())
			}
			if ph.Filesz == 0 {
				ph.Filesz = uint64(len(p.Data))
			}
			data.Write(p.Data)
		}
		phdrs[i] = ph
	}

	var out bytes.Buffer
	if err := struc.PackWithOrder(&out, &h, binary.LittleEndian); err != nil {
		t.Fatal(err)
	}
	for i := range phdrs {
		if err := struc.PackWithOrder(&out, &phdrs[i], binary.LittleEndian); err != nil {
			t.Fatal(err)
		}
	}
	out.Write(data.Bytes())
	return out.Bytes()
}

func load(vaddr, memsz uint64, flags uint32, data []byte) testProg {
	return testProg{ProgHeader64: ProgHeader64{Type: PT_LOAD, Flags: flags, Vaddr: vaddr, Memsz: memsz, Align: 0x1000}, Data: data}
}

func TestElfParse(t *testing.T) {
	img := buildElf(t, 0x1000,
		testProg{ProgHeader64: ProgHeader64{Type: PT_NOTE, Flags: PF_R, Vaddr: 0x9000, Memsz: 4}, Data: []byte("note")},
		load(0x1000, 0x1000, PF_R|PF_X, bytes.Repeat([]byte{0xab}, 10)),
	)
	if !MatchElf(bytes.NewReader(img)) {
		t.Fatal("MatchElf() rejected a valid image")
	}
	f, err := ParseElf(bytes.NewReader(img))
	if err != nil {
		t.Fatal(err)
	}
	if f.Entry() != 0x1000 {
		t.Errorf("entry = %#x", f.Entry())
	}
	if len(f.Progs) != 2 {
		t.Fatalf("got %d program headers, want 2", len(f.Progs))
	}
	if f.Progs[0].Type != PT_NOTE || f.Progs[0].TypeName() != "NOTE" {
		t.Errorf("non-loadable entry not kept in order: %+v", f.Progs[0])
	}
	p := f.Progs[1]
	if p.Type != PT_LOAD || p.Vaddr != 0x1000 || p.Filesz != 10 || p.Memsz != 0x1000 {
		t.Errorf("bad load entry: %+v", p)
	}
	if p.Off != 64+2*56+4 {
		t.Errorf("bad file offset %#x", p.Off)
	}
	if p.Perm() != cpu.PTE_U|cpu.PTE_R|cpu.PTE_X {
		t.Errorf("bad perm %s", cpu.PermString(p.Perm()))
	}
}

func TestElfMagicClass(t *testing.T) {
	img := buildElf(t, 0, load(0x1000, 0x1000, PF_R, []byte{1}))
	if _, err := ParseElf(bytes.NewReader(img)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		bad := append([]byte(nil), img...)
		bad[i] ^= 0xff
		if _, err := ParseElf(bytes.NewReader(bad)); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("corrupt magic byte %d: got %v", i, err)
		}
	}
	for _, class := range []byte{0, ELFCLASS32, 3, 0xff} {
		bad := append([]byte(nil), img...)
		bad[EI_CLASS] = class
		if _, err := ParseElf(bytes.NewReader(bad)); !errors.Is(err, ErrUnsupportedClass) {
			t.Errorf("class %d: got %v", class, err)
		}
	}
}

func TestElfTruncatedHeader(t *testing.T) {
	img := buildElf(t, 0, load(0x1000, 0x1000, PF_R, []byte{1}))
	for _, n := range []int{0, 4, 10, 63} {
		if _, err := ParseElf(bytes.NewReader(img[:n])); !errors.Is(err, ErrTruncatedHeader) {
			t.Errorf("%d byte header: got %v", n, err)
		}
	}
}

func TestElfTruncatedProgHeader(t *testing.T) {
	img := buildElf(t, 0,
		load(0x1000, 0x1000, PF_R, nil),
		load(0x2000, 0x1000, PF_R, nil),
	)
	// cut the second entry in half
	f, err := ParseElf(bytes.NewReader(img[:64+56+20]))
	if !errors.Is(err, ErrInvalidProgHeader) {
		t.Fatalf("got %v", err)
	}
	if f != nil {
		t.Error("partial program header list returned")
	}
}

func TestElfSmallEntrySize(t *testing.T) {
	img := buildElf(t, 0, load(0x1000, 0x1000, PF_R, nil))
	// e_phentsize lives at offset 54
	binary.LittleEndian.PutUint16(img[54:], 32)
	if _, err := ParseElf(bytes.NewReader(img)); !errors.Is(err, ErrInvalidProgHeader) {
		t.Errorf("got %v", err)
	}
}

func TestElfHeaderSizes(t *testing.T) {
	if fileHeaderSize != 64 || progHeaderSize != 56 {
		t.Errorf("header sizes %d/%d, want 64/56", fileHeaderSize, progHeaderSize)
	}
}

func TestElfNoProgs(t *testing.T) {
	img := buildElf(t, 0x4000)
	f, err := ParseElf(bytes.NewReader(img))
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Progs) != 0 || f.Entry() != 0x4000 {
		t.Errorf("unexpected result: %+v", f)
	}
}
