package models

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lunixbochs/rvexec/go/models/cpu"
)

func TestRuns(t *testing.T) {
	rx := cpu.PTE_V | cpu.PTE_U | cpu.PTE_R | cpu.PTE_X
	rw := cpu.PTE_V | cpu.PTE_U | cpu.PTE_R | cpu.PTE_W
	pages := cpu.Pages{
		{Addr: 0x1000, Size: 0x1000, Perm: rx},
		{Addr: 0x2000, Size: 0x1000, Perm: rx},
		{Addr: 0x3000, Size: 0x1000, Perm: rw},
		{Addr: 0x5000, Size: 0x1000, Perm: rw},
	}
	want := []MappingRun{
		{Start: 0x1000, End: 0x3000, Perm: rx, Pages: 2},
		{Start: 0x3000, End: 0x4000, Perm: rw, Pages: 1},
		{Start: 0x5000, End: 0x6000, Perm: rw, Pages: 1},
	}
	if diff := cmp.Diff(want, Runs(pages)); diff != "" {
		t.Errorf("runs mismatch (-want +got):\n%s", diff)
	}

	var buf bytes.Buffer
	PrintMappings(&buf, pages, &AddressSpaceResult{HighWater: 0x6000, StackBase: 0x7000, Pages: 4}, false)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got output:\n%s", buf.String())
	}
	if lines[0] != "0x00001000-0x00003000 ur-x      2 page(s)" {
		t.Errorf("bad first line %q", lines[0])
	}
	if lines[3] != "high=0x6000 stack=0x7000 pages=4" {
		t.Errorf("bad result line %q", lines[3])
	}
}

func TestSegmentOverlaps(t *testing.T) {
	a := Segment{Start: 0x1000, End: 0x3000}
	for _, tc := range []struct {
		b    Segment
		want bool
	}{
		{Segment{0x2000, 0x4000}, true},
		{Segment{0x0, 0x1001}, true},
		{Segment{0x1800, 0x1900}, true},
		{Segment{0x3000, 0x4000}, false},
		{Segment{0x0, 0x1000}, false},
	} {
		if got := a.Overlaps(&tc.b); got != tc.want {
			t.Errorf("%#x-%#x overlaps %#x-%#x = %v", a.Start, a.End, tc.b.Start, tc.b.End, got)
		}
	}
}
