package models

import (
	"encoding/binary"
	"io"

	"github.com/lunixbochs/struc"
)

// StrucStream packs or unpacks a sequence of structs, keeping the first error.
type StrucStream struct {
	W     io.Writer
	R     io.Reader
	Order binary.ByteOrder
	Err   error
}

func (s *StrucStream) Pack(vals ...interface{}) error {
	for _, v := range vals {
		if s.Err != nil {
			break
		}
		s.Err = struc.PackWithOrder(s.W, v, s.Order)
	}
	return s.Err
}

func (s *StrucStream) Unpack(vals ...interface{}) error {
	for _, v := range vals {
		if s.Err != nil {
			break
		}
		s.Err = struc.UnpackWithOrder(s.R, v, s.Order)
	}
	return s.Err
}
