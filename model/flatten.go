package model

// Flatten reshapes its input to a vector.
type Flatten struct{}

func (f *Flatten) Kind() Kind { return KindFlatten }
func (f *Flatten) isLayer()   {}

func (f *Flatten) OutputShape(in []int) ([]int, error) {
	if err := checkRank(KindFlatten, in, len(in)); err != nil {
		return nil, err
	}
	return []int{ShapeLen(in)}, nil
}

func (f *Flatten) OutputBits(inBits int) (int, error) { return inBits, nil }
func (f *Flatten) PadValue(in int64) int64            { return in }
func (f *Flatten) Public() Layer                      { return &Flatten{} }
func (f *Flatten) Describe() string                   { return "Flatten" }
