package models

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/lunixbochs/rvexec/go/models/cpu"
)

// snapshot format:
//
// file header (little endian)
// [4]byte("RVAS"), uint32(version)
// uint64(page size), uint64(high water), uint64(stack base), uint64(entry)
// uint32(flags: 1 = entry valid), uint32(page count)
// uint32(crc32 of compressed body), uint32(compressed body length)
//
// remainder is a snappy stream of page records:
// uint64(addr), uint32(perm), <page size raw bytes>

const SnapshotMagic = "RVAS"
const snapshotVersion = 1

const snapFlagEntry = 1

type SnapshotHeader struct {
	Magic     string `struc:"[4]byte"`
	Version   uint32
	PageSize  uint64
	HighWater uint64
	StackBase uint64
	Entry     uint64
	Flags     uint32
	Count     uint32
	Crc       uint32
	BodyLen   uint32
}

type snapshotRecord struct {
	Addr uint64
	Perm uint32
}

type SnapshotPage struct {
	Addr uint64
	Perm int
	Data []byte
}

type Snapshot struct {
	Header SnapshotHeader
	Pages  []SnapshotPage
}

func (s *Snapshot) Result() *AddressSpaceResult {
	h := &s.Header
	return &AddressSpaceResult{
		HighWater: h.HighWater,
		MaxPage:   h.HighWater / h.PageSize,
		StackBase: h.StackBase,
		Entry:     h.Entry,
		HasEntry:  h.Flags&snapFlagEntry != 0,
		Pages:     len(s.Pages),
	}
}

// SaveSnapshot writes the address space of a finished load to w.
func SaveSnapshot(w io.Writer, res *AddressSpaceResult, pageSize uint64, pages cpu.Pages) error {
	var body bytes.Buffer
	zw := snappy.NewBufferedWriter(&body)
	s := &StrucStream{W: zw, Order: binary.LittleEndian}
	for _, pg := range pages {
		if uint64(len(pg.Data())) != pageSize {
			return errors.Errorf("page 0x%x has %d bytes, expected %d", pg.Addr, len(pg.Data()), pageSize)
		}
		if err := s.Pack(&snapshotRecord{Addr: pg.Addr, Perm: uint32(pg.Perm)}); err != nil {
			return errors.Wrap(err, "failed to pack page record")
		}
		if _, err := zw.Write(pg.Data()); err != nil {
			return errors.Wrap(err, "failed to compress page")
		}
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "failed to flush snapshot body")
	}
	header := &SnapshotHeader{
		Magic:     SnapshotMagic,
		Version:   snapshotVersion,
		PageSize:  pageSize,
		HighWater: res.HighWater,
		StackBase: res.StackBase,
		Entry:     res.Entry,
		Count:     uint32(len(pages)),
		Crc:       crc32.ChecksumIEEE(body.Bytes()),
		BodyLen:   uint32(body.Len()),
	}
	if res.HasEntry {
		header.Flags |= snapFlagEntry
	}
	hs := &StrucStream{W: w, Order: binary.LittleEndian}
	if err := hs.Pack(header); err != nil {
		return errors.Wrap(err, "failed to pack snapshot header")
	}
	_, err := body.WriteTo(w)
	return errors.Wrap(err, "failed to write snapshot body")
}

func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	snap := &Snapshot{}
	h := &snap.Header
	hs := &StrucStream{R: r, Order: binary.LittleEndian}
	if err := hs.Unpack(h); err != nil {
		return nil, errors.Wrap(err, "failed to unpack snapshot header")
	}
	if h.Magic != SnapshotMagic {
		return nil, errors.New("invalid snapshot magic")
	}
	if h.Version != snapshotVersion {
		return nil, errors.Errorf("unsupported snapshot version %d", h.Version)
	}
	if err := CheckPageSize(h.PageSize); err != nil {
		return nil, errors.Wrap(err, "invalid snapshot header")
	}
	// the header is outside the checksum, so nothing is sized by it up front
	body, err := io.ReadAll(io.LimitReader(r, int64(h.BodyLen)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read snapshot body")
	}
	if len(body) != int(h.BodyLen) {
		return nil, errors.Errorf("truncated snapshot body: %d of %d bytes", len(body), h.BodyLen)
	}
	if crc32.ChecksumIEEE(body) != h.Crc {
		return nil, errors.New("snapshot checksum mismatch")
	}
	zr := snappy.NewReader(bytes.NewReader(body))
	s := &StrucStream{R: zr, Order: binary.LittleEndian}
	for i := uint32(0); i < h.Count; i++ {
		var rec snapshotRecord
		if err := s.Unpack(&rec); err != nil {
			return nil, errors.Wrapf(err, "failed to unpack page record %d", i)
		}
		data := make([]byte, h.PageSize)
		if _, err := io.ReadFull(zr, data); err != nil {
			return nil, errors.Wrapf(err, "failed to read page 0x%x", rec.Addr)
		}
		snap.Pages = append(snap.Pages, SnapshotPage{Addr: rec.Addr, Perm: int(rec.Perm), Data: data})
	}
	return snap, nil
}
