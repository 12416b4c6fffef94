package cpu

import (
	"fmt"
)

type MemError struct {
	Addr uint64
	Size int
	Enum int
}

func (m *MemError) Error() string {
	reason := "memory error"
	switch m.Enum {
	case MEM_READ_UNMAPPED:
		reason = "unmapped read"
	case MEM_NOT_MAPPED:
		reason = "page not mapped"
	case MEM_MAP_CONFLICT:
		reason = "page already mapped"
	case MEM_MAP_UNALIGNED:
		reason = "unaligned mapping"
	case MEM_BAD_FRAME:
		reason = "frame size mismatch"
	}
	return fmt.Sprintf("%s at %#x(%d)", reason, m.Addr, m.Size)
}
