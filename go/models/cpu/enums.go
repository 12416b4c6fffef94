package cpu

// page table entry bits, laid out like a RISC-V Sv39 leaf PTE
const (
	PTE_V = 1 << 0
	PTE_R = 1 << 1
	PTE_W = 1 << 2
	PTE_X = 1 << 3
	PTE_U = 1 << 4

	PTE_RWX  = PTE_R | PTE_W | PTE_X
	PTE_URWX = PTE_U | PTE_RWX
)

// these errors are used for MemError.Enum
const (
	MEM_READ_UNMAPPED = 19
	MEM_NOT_MAPPED    = 20
	MEM_MAP_CONFLICT  = 30
	MEM_MAP_UNALIGNED = 31
	MEM_BAD_FRAME     = 32
)

// PermString renders a permission set as "urwx", with "-" for missing bits.
func PermString(perm int) string {
	bits := []int{PTE_U, PTE_R, PTE_W, PTE_X}
	chars := "urwx"
	s := make([]byte, len(bits))
	for i, b := range bits {
		if perm&b != 0 {
			s[i] = chars[i]
		} else {
			s[i] = '-'
		}
	}
	return string(s)
}
