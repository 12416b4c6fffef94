package models

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lunixbochs/rvexec/go/models/cpu"
)

func testPages(t *testing.T) cpu.Pages {
	pool, err := cpu.NewFramePool(0x1000, DefaultPhysBase, 4)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pool.Close() })
	pt := cpu.NewPageTable(0x1000)
	for i, perm := range []int{cpu.PTE_U | cpu.PTE_R | cpu.PTE_X, cpu.PTE_U | cpu.PTE_R | cpu.PTE_W} {
		f, err := pool.Alloc()
		if err != nil {
			t.Fatal(err)
		}
		f.Zero()
		copy(f.Data, bytes.Repeat([]byte{byte(i + 0x41)}, 100))
		if err := pt.Install(uint64(i+1)*0x1000, f, perm); err != nil {
			t.Fatal(err)
		}
	}
	return pt.Mappings()
}

func TestSnapshot(t *testing.T) {
	pages := testPages(t)
	res := &AddressSpaceResult{HighWater: 0x3000, MaxPage: 3, StackBase: 0x4000, Entry: 0x1000, HasEntry: true, Pages: 2}
	var buf bytes.Buffer
	if err := SaveSnapshot(&buf, res, 0x1000, pages); err != nil {
		t.Fatal(err)
	}
	snap, err := ReadSnapshot(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(res, snap.Result()); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if len(snap.Pages) != 2 {
		t.Fatalf("got %d pages", len(snap.Pages))
	}
	for i, pg := range snap.Pages {
		if pg.Addr != pages[i].Addr || pg.Perm != pages[i].Perm || !bytes.Equal(pg.Data, pages[i].Data()) {
			t.Errorf("page %d differs: %#x %s", i, pg.Addr, cpu.PermString(pg.Perm))
		}
	}

	bad := append([]byte(nil), buf.Bytes()...)
	bad[len(bad)-1] ^= 0xff
	if _, err := ReadSnapshot(bytes.NewReader(bad)); err == nil {
		t.Error("corrupt body accepted")
	}
	bad = append([]byte(nil), buf.Bytes()...)
	copy(bad, "XXXX")
	if _, err := ReadSnapshot(bytes.NewReader(bad)); err == nil {
		t.Error("bad magic accepted")
	}
	if _, err := ReadSnapshot(bytes.NewReader(buf.Bytes()[:60])); err == nil {
		t.Error("truncated snapshot accepted")
	}
}

func TestSnapshotBadHeader(t *testing.T) {
	for _, h := range []SnapshotHeader{
		{PageSize: 0, HighWater: 0x3000},
		{PageSize: 0x1800, HighWater: 0x3000},
		{PageSize: 1 << 40, Count: 1},
		{PageSize: 0x1000, Count: 1 << 31, BodyLen: 1 << 31},
	} {
		h.Magic = SnapshotMagic
		h.Version = snapshotVersion
		var buf bytes.Buffer
		if err := (&StrucStream{W: &buf, Order: binary.LittleEndian}).Pack(&h); err != nil {
			t.Fatal(err)
		}
		if snap, err := ReadSnapshot(&buf); err == nil {
			t.Errorf("page size %#x count %d accepted: %+v", h.PageSize, h.Count, snap.Header)
		}
	}
}
