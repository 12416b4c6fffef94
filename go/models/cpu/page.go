package cpu

import (
	"fmt"
	"strings"
)

// Page is one installed virtual page and the frame backing it.
type Page struct {
	Addr  uint64
	Size  uint64
	Perm  int
	Frame *Frame
}

func (p *Page) String() string {
	desc := fmt.Sprintf("0x%x-0x%x %s", p.Addr, p.Addr+p.Size, PermString(p.Perm))
	if p.Frame != nil {
		desc += fmt.Sprintf(" [phys 0x%x]", p.Frame.Phys)
	}
	return desc
}

func (p *Page) Contains(addr uint64) bool {
	return addr >= p.Addr && addr < p.Addr+p.Size
}

func (p *Page) Data() []byte {
	if p.Frame == nil {
		return nil
	}
	return p.Frame.Data
}

type Pages []*Page

func (p Pages) Len() int           { return len(p) }
func (p Pages) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
func (p Pages) Less(i, j int) bool { return p[i].Addr < p[j].Addr }

func (p Pages) String() string {
	s := make([]string, len(p))
	for i, v := range p {
		s[i] = v.String()
	}
	return strings.Join(s, "\n")
}

// binary search to find index of the page containing addr, if any, else -1
func (p Pages) bsearch(addr uint64) int {
	l := 0
	r := len(p) - 1
	for l <= r {
		mid := (l + r) / 2
		e := p[mid]
		if addr >= e.Addr {
			if addr < e.Addr+e.Size {
				return mid
			}
			l = mid + 1
		} else if addr < e.Addr {
			r = mid - 1
		}
	}
	return -1
}

func (p Pages) Find(addr uint64) *Page {
	i := p.bsearch(addr)
	if i >= 0 {
		return p[i]
	}
	return nil
}

// Addrs returns the start address of every page, in order.
func (p Pages) Addrs() []uint64 {
	ret := make([]uint64, len(p))
	for i, v := range p {
		ret[i] = v.Addr
	}
	return ret
}
