package commit

import (
	"fmt"
	"sort"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

type PolyKind uint8

const (
	PolyInput PolyKind = iota
	PolyWeight
	PolyBias
	PolyOutput
	PolyChunk
	PolyHelper
	PolyMultiplicity
)

var polyKindNames = [...]string{"input", "weight", "bias", "output", "chunk", "helper", "multiplicity"}

func (k PolyKind) String() string {
	if int(k) < len(polyKindNames) {
		return polyKindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// PolyID names a committed table: the layer that owns it, what it holds and
// an index among tables of the same kind.
type PolyID struct {
	Layer int
	Kind  PolyKind
	Index int
}

func (id PolyID) String() string {
	return fmt.Sprintf("%s[%d.%d]", id.Kind, id.Layer, id.Index)
}

// Less orders ids by layer, then kind, then index.
func (id PolyID) Less(o PolyID) bool {
	if id.Layer != o.Layer {
		return id.Layer < o.Layer
	}
	if id.Kind != o.Kind {
		return id.Kind < o.Kind
	}
	return id.Index < o.Index
}

// Claim asserts that a table evaluates to Value at Point.
type Claim struct {
	Point []fr.Element
	Value fr.Element
}

// Book files the claims made about committed tables during a session.
type Book struct {
	claims map[PolyID][]Claim
}

func NewBook() *Book {
	return &Book{claims: make(map[PolyID][]Claim)}
}

func (b *Book) Add(id PolyID, c Claim) {
	b.claims[id] = append(b.claims[id], c)
}

func (b *Book) Claims(id PolyID) []Claim {
	return b.claims[id]
}

// IDs returns the ids holding at least one claim, in opening order.
func (b *Book) IDs() []PolyID {
	ids := make([]PolyID, 0, len(b.claims))
	for id := range b.claims {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

func (b *Book) Len() int {
	return len(b.claims)
}
