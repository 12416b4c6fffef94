package kernel

import (
	"bytes"
	"testing"

	"github.com/lunixbochs/rvexec/go/loader"
	"github.com/lunixbochs/rvexec/go/models"
	"github.com/lunixbochs/rvexec/go/models/cpu"
)

func TestProcLifecycle(t *testing.T) {
	pool, err := cpu.NewFramePool(0x1000, 0x80000000, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	p := NewProc("init", 0x1000, pool)
	q := NewProc("sh", 0x1000, pool)
	if p.Pid == q.Pid {
		t.Fatal("pids are not unique")
	}
	for _, va := range []uint64{0x0, 0x1000} {
		f, err := pool.Alloc()
		if err != nil {
			t.Fatal(err)
		}
		if err := p.Mapper().Install(va, f, cpu.PTE_URWX); err != nil {
			t.Fatal(err)
		}
	}
	if err := p.SpawnThread(0, 0x3000); err != nil {
		t.Fatal(err)
	}
	if err := p.SpawnThread(0, 0x3000); err == nil {
		t.Error("second initial thread was allowed")
	}
	if err := p.Exit(); err != nil {
		t.Fatal(err)
	}
	if pool.Available() != 4 || p.Pages.Len() != 0 {
		t.Errorf("exit leaked: %d free frames, %d pages", pool.Available(), p.Pages.Len())
	}
}

func TestProcLoadFlat(t *testing.T) {
	pool, err := cpu.NewFramePool(0x1000, 0x80000000, 8)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	cfg := models.DefaultConfig()
	cfg.FlatBase = 0x10000
	l := loader.NewLoader(cfg, pool)
	p := NewProc("init", cfg.PageSize, pool)
	res, err := l.Load(bytes.NewReader(bytes.Repeat([]byte{0x73}, 0x1800)), p, loader.ModeFlat)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pages != 2 || len(p.Threads) != 1 || p.Threads[0].PC != 0x10000 || p.Threads[0].SP != res.StackBase {
		t.Errorf("result %s, threads %+v", res, p.Threads)
	}
	if pg, ok := p.Pages.Lookup(0x11000); !ok || pg.Frame.Phys < 0x80000000 {
		t.Errorf("page 0x11000 not backed by a pool frame")
	}
	if err := p.Exit(); err != nil {
		t.Fatal(err)
	}
	if pool.InUse() != 0 {
		t.Errorf("%d frames still in use after exit", pool.InUse())
	}
}
