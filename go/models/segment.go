package models

import (
	"fmt"

	"github.com/lunixbochs/rvexec/go/models/cpu"
)

// SegmentData is a loadable segment resolved against the page size:
// [Start, End) is the page-rounded virtual range, and the file bytes
// [Off, Off+FileSize) land at Addr.
type SegmentData struct {
	Off      uint64
	Addr     uint64
	FileSize uint64
	MemSize  uint64
	Perm     int

	Segment
}

func (s *SegmentData) Pages(pageSize uint64) uint64 {
	return (s.End - s.Start) / pageSize
}

func (s *SegmentData) ContainsVirt(addr uint64) bool {
	return s.Addr <= addr && addr < s.Addr+s.MemSize
}

func (s *SegmentData) String() string {
	return fmt.Sprintf("0x%x-0x%x %s off=%#x filesz=%#x memsz=%#x",
		s.Start, s.End, cpu.PermString(s.Perm), s.Off, s.FileSize, s.MemSize)
}

type Segment struct {
	Start, End uint64
}

func (s *Segment) Overlaps(o *Segment) bool {
	return (s.Start >= o.Start && s.Start < o.End) || (o.Start >= s.Start && o.Start < s.End)
}

func (s *Segment) Merge(o *Segment) {
	if s.Start > o.Start {
		s.Start = o.Start
	}
	if s.End < o.End {
		s.End = o.End
	}
}
