package loader

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

func getMagic(r io.ReaderAt) []byte {
	ret := make([]byte, 4)
	r.ReadAt(ret, 0)
	return ret
}

type sizer interface {
	Size() int64
}

type stater interface {
	Stat() (os.FileInfo, error)
}

// readerSize finds the length of r, probing with reads when r can't say.
func readerSize(r io.ReaderAt) (uint64, error) {
	switch v := r.(type) {
	case sizer:
		return uint64(v.Size()), nil
	case stater:
		fi, err := v.Stat()
		if err != nil {
			return 0, errors.Wrap(err, "failed to stat image")
		}
		return uint64(fi.Size()), nil
	}
	buf := make([]byte, 0x1000)
	var size int64
	for {
		n, err := r.ReadAt(buf, size)
		size += int64(n)
		if err == io.EOF || n == 0 {
			break
		} else if err != nil {
			return 0, errors.Wrap(err, "failed to read image")
		}
	}
	return uint64(size), nil
}
