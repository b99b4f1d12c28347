package utils

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

var errShortBuffer = errors.New("unexpected end of buffer")

type OutputBuf struct {
	buf []byte
}

func (o *OutputBuf) AppendBigInt(x *big.Int) {
	zbuf := make([]byte, 32)
	b := x.Bytes()
	for i := 0; i < len(b); i++ {
		zbuf[i] = b[len(b)-i-1]
	}
	o.buf = append(o.buf, zbuf...)
}

// AppendField writes the canonical value of x as 32 little-endian bytes.
func (o *OutputBuf) AppendField(x *fr.Element) {
	o.AppendBigInt(x.BigInt(new(big.Int)))
}

func (o *OutputBuf) AppendFields(xs []fr.Element) {
	o.AppendUint32(uint32(len(xs)))
	for i := range xs {
		o.AppendField(&xs[i])
	}
}

func (o *OutputBuf) AppendUint32(x uint32) {
	o.buf = binary.LittleEndian.AppendUint32(o.buf, x)
}

func (o *OutputBuf) AppendUint64(x uint64) {
	o.buf = binary.LittleEndian.AppendUint64(o.buf, x)
}

// AppendBytes writes a length-prefixed byte string.
func (o *OutputBuf) AppendBytes(b []byte) {
	o.AppendUint32(uint32(len(b)))
	o.buf = append(o.buf, b...)
}

func (o *OutputBuf) Bytes() []byte {
	return o.buf
}

type InputBuf struct {
	buf []byte
}

func NewInputBuf(buf []byte) *InputBuf {
	return &InputBuf{buf: buf}
}

func (i *InputBuf) ReadUint32() (uint32, error) {
	if len(i.buf) < 4 {
		return 0, errShortBuffer
	}
	x := binary.LittleEndian.Uint32(i.buf[:4])
	i.buf = i.buf[4:]
	return x, nil
}

func (i *InputBuf) ReadUint64() (uint64, error) {
	if len(i.buf) < 8 {
		return 0, errShortBuffer
	}
	x := binary.LittleEndian.Uint64(i.buf[:8])
	i.buf = i.buf[8:]
	return x, nil
}

func (i *InputBuf) ReadBigInt() (*big.Int, error) {
	if len(i.buf) < 32 {
		return nil, errShortBuffer
	}
	zbuf := make([]byte, 32)
	for j := 0; j < 32; j++ {
		zbuf[j] = i.buf[31-j]
	}
	x := new(big.Int).SetBytes(zbuf)
	i.buf = i.buf[32:]
	return x, nil
}

// ReadField reads a field element and rejects non-canonical encodings, so
// that decoding followed by encoding reproduces the input bytes.
func (i *InputBuf) ReadField() (fr.Element, error) {
	var e fr.Element
	x, err := i.ReadBigInt()
	if err != nil {
		return e, err
	}
	if x.Cmp(fr.Modulus()) >= 0 {
		return e, errors.New("non-canonical field element")
	}
	e.SetBigInt(x)
	return e, nil
}

// ReadFields reads a length-prefixed field element vector. The length is
// bounded by the remaining input before anything is allocated.
func (i *InputBuf) ReadFields() ([]fr.Element, error) {
	n, err := i.ReadUint32()
	if err != nil {
		return nil, err
	}
	if uint64(n)*32 > uint64(len(i.buf)) {
		return nil, errShortBuffer
	}
	res := make([]fr.Element, n)
	for j := range res {
		if res[j], err = i.ReadField(); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (i *InputBuf) ReadBytes() ([]byte, error) {
	n, err := i.ReadUint32()
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(len(i.buf)) {
		return nil, errShortBuffer
	}
	b := make([]byte, n)
	copy(b, i.buf[:n])
	i.buf = i.buf[n:]
	return b, nil
}

// Len returns the number of unread bytes.
func (i *InputBuf) Len() int {
	return len(i.buf)
}
