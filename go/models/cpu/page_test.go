package cpu

import (
	"testing"
)

func TestPageFind(t *testing.T) {
	mem := Pages{
		&Page{Addr: 0x1000, Size: 0x1000},
		&Page{Addr: 0x2000, Size: 0x1000},
		&Page{Addr: 0x4000, Size: 0x2000},
		&Page{Addr: 0x6000, Size: 0x2000},
	}
	if mem.Find(0x1000) != mem[0] ||
		mem.Find(0x1001) != mem[0] ||
		mem.Find(0x1fff) != mem[0] ||
		mem.Find(0x7fff) != mem[3] {
		t.Error("Find() failed")
	}
	if mem.Find(0x3000) != nil ||
		mem.Find(0x1) != nil ||
		mem.Find(0x10000) != nil {
		t.Error("Find() negative failed")
	}
}

func TestPageString(t *testing.T) {
	pg := &Page{Addr: 0x1000, Size: 0x1000, Perm: PTE_V | PTE_U | PTE_R | PTE_X, Frame: &Frame{Phys: 0x80000000}}
	if s := pg.String(); s != "0x1000-0x2000 ur-x [phys 0x80000000]" {
		t.Errorf("bad page string: %q", s)
	}
	if s := PermString(PTE_URWX); s != "urwx" {
		t.Errorf("bad perm string: %q", s)
	}
	if s := PermString(0); s != "----" {
		t.Errorf("bad perm string: %q", s)
	}
}
