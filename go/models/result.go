package models

import (
	"fmt"
)

// AddressSpaceResult is what process creation gets back from a load.
type AddressSpaceResult struct {
	// highest page-aligned address used by any mapped page
	HighWater uint64
	// HighWater in pages, the process's page budget
	MaxPage uint64
	// first page above HighWater, reserved as the user stack base
	StackBase uint64
	// format-declared entry point, only set on the ELF path
	Entry    uint64
	HasEntry bool
	// number of pages installed by this load
	Pages int
}

func (r *AddressSpaceResult) String() string {
	s := fmt.Sprintf("high=0x%x stack=0x%x pages=%d", r.HighWater, r.StackBase, r.Pages)
	if r.HasEntry {
		s += fmt.Sprintf(" entry=0x%x", r.Entry)
	}
	return s
}
