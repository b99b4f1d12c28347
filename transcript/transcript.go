// Package transcript implements the Fiat–Shamir transcript shared by the
// prover and the verifier of a session.
package transcript

import (
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"golang.org/x/crypto/sha3"
)

// Hash names accepted by New.
const (
	Keccak256 = "keccak256"
	SHA3      = "sha3-256"
	MiMC      = "mimc"
)

const blockSize = fr.Bytes

// Transcript absorbs prover messages and squeezes challenges. Everything is
// written to the hash as 32-byte canonical field blocks, which every
// supported hash accepts.
//
// A Transcript is not safe for concurrent use; a session owns exactly one.
type Transcript struct {
	h     hash.Hash
	nbMsg int
}

func newHash(name string) (hash.Hash, error) {
	switch name {
	case Keccak256, "":
		return sha3.NewLegacyKeccak256(), nil
	case SHA3:
		return sha3.New256(), nil
	case MiMC:
		return mimc.NewMiMC(), nil
	}
	return nil, fmt.Errorf("unknown transcript hash %q", name)
}

// New returns a transcript whose state is bound to domain.
func New(hashName, domain string) (*Transcript, error) {
	h, err := newHash(hashName)
	if err != nil {
		return nil, err
	}
	t := &Transcript{h: h}
	t.AppendBytes("domain", []byte(domain))
	return t, nil
}

func (t *Transcript) writeBlock(b *[blockSize]byte) {
	// hash.Hash never fails on canonical blocks
	_, _ = t.h.Write(b[:])
}

func (t *Transcript) writeRaw(b []byte) {
	var lenBlock [blockSize]byte
	binary.BigEndian.PutUint64(lenBlock[blockSize-8:], uint64(len(b)))
	t.writeBlock(&lenBlock)
	for len(b) > 0 {
		var block [blockSize]byte
		n := blockSize - 1
		if n > len(b) {
			n = len(b)
		}
		copy(block[1:], b[:n])
		t.writeBlock(&block)
		b = b[n:]
	}
}

// AppendBytes absorbs an opaque message such as a commitment.
func (t *Transcript) AppendBytes(label string, b []byte) {
	t.writeRaw([]byte(label))
	t.writeRaw(b)
	t.nbMsg++
}

// AppendField absorbs field elements under label.
func (t *Transcript) AppendField(label string, elems ...fr.Element) {
	t.writeRaw([]byte(label))
	var lenBlock [blockSize]byte
	binary.BigEndian.PutUint64(lenBlock[blockSize-8:], uint64(len(elems)))
	t.writeBlock(&lenBlock)
	for i := range elems {
		b := elems[i].Bytes()
		t.writeBlock(&b)
	}
	t.nbMsg++
}

// AppendInt64 absorbs signed integers, lifted into the field.
func (t *Transcript) AppendInt64(label string, xs ...int64) {
	elems := make([]fr.Element, len(xs))
	for i, x := range xs {
		elems[i].SetInt64(x)
	}
	t.AppendField(label, elems...)
}

// Challenge derives the next challenge from everything absorbed so far and
// re-seeds the state with the digest.
func (t *Transcript) Challenge(label string) fr.Element {
	t.writeRaw([]byte(label))
	digest := t.h.Sum(nil)
	t.h.Reset()
	var c fr.Element
	c.SetBytes(digest)
	b := c.Bytes()
	t.writeBlock(&b)
	return c
}

// Challenges derives n challenges in sequence.
func (t *Transcript) Challenges(label string, n int) []fr.Element {
	res := make([]fr.Element, n)
	for i := range res {
		res[i] = t.Challenge(label)
	}
	return res
}

// NbMessages returns how many messages have been absorbed, the domain
// message written by New included.
func (t *Transcript) NbMessages() int {
	return t.nbMsg
}
