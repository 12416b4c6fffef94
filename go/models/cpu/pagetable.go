package cpu

import (
	"sort"
	"sync"
)

// PageTable maps page-aligned virtual addresses to frames for one address space.
// Installing over a live mapping is refused; callers must Unmap first.
type PageTable struct {
	PageSize uint64

	mu    sync.Mutex
	pages map[uint64]*Page
}

func NewPageTable(pageSize uint64) *PageTable {
	return &PageTable{PageSize: pageSize, pages: make(map[uint64]*Page)}
}

// Install maps frame f at va with perm. On success the table owns f.
func (t *PageTable) Install(va uint64, f *Frame, perm int) error {
	size := int(t.PageSize)
	if va&(t.PageSize-1) != 0 {
		return &MemError{Addr: va, Size: size, Enum: MEM_MAP_UNALIGNED}
	}
	if f == nil || uint64(len(f.Data)) != t.PageSize {
		return &MemError{Addr: va, Size: size, Enum: MEM_BAD_FRAME}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pages[va]; ok {
		return &MemError{Addr: va, Size: size, Enum: MEM_MAP_CONFLICT}
	}
	t.pages[va] = &Page{Addr: va, Size: t.PageSize, Perm: perm | PTE_V, Frame: f}
	return nil
}

// Unmap removes the mapping at va and hands its frame back to the caller.
func (t *PageTable) Unmap(va uint64) (*Frame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pg, ok := t.pages[va]
	if !ok {
		return nil, &MemError{Addr: va, Size: int(t.PageSize), Enum: MEM_NOT_MAPPED}
	}
	delete(t.pages, va)
	return pg.Frame, nil
}

// Lookup finds the page containing addr.
func (t *PageTable) Lookup(addr uint64) (*Page, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pg, ok := t.pages[addr&^(t.PageSize-1)]
	return pg, ok
}

func (t *PageTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pages)
}

// Mappings returns every installed page sorted by address.
func (t *PageTable) Mappings() Pages {
	t.mu.Lock()
	ret := make(Pages, 0, len(t.pages))
	for _, pg := range t.pages {
		ret = append(ret, pg)
	}
	t.mu.Unlock()
	sort.Sort(ret)
	return ret
}

// Read copies mapped memory at addr into p, crossing page boundaries.
func (t *PageTable) Read(addr uint64, p []byte) error {
	pages := t.Mappings()
	start, size := addr, len(p)
	for len(p) > 0 {
		pg := pages.Find(addr)
		if pg == nil {
			return &MemError{Addr: start, Size: size, Enum: MEM_READ_UNMAPPED}
		}
		n := copy(p, pg.Data()[addr-pg.Addr:])
		addr, p = addr+uint64(n), p[n:]
	}
	return nil
}

// Teardown unmaps everything, passing each released frame to free.
func (t *PageTable) Teardown(free func(*Frame) error) error {
	var first error
	for _, pg := range t.Mappings() {
		f, err := t.Unmap(pg.Addr)
		if err == nil {
			err = free(f)
		}
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}
