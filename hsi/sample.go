package hsi

import (
	"fmt"
	"math/rand"
)

// Split holds the pixel indexes sampled for each subset of a scene.
// All lists the labelled pixels in scene order for map rendering.
type Split struct {
	Train []int
	Val   []int
	Test  []int
	All   []int
}

// NewSplit samples the labelled pixels of the scene into train, validation
// and test subsets. If perClass is set then that many training pixels are
// drawn from each class, else ratio gives the training fraction per class.
// The count is clamped so at least one pixel per class is held out.
// valRatio is the fraction of the held out pixels in each class which go to
// the validation set, the remainder is the test set.
func NewSplit(s *Scene, perClass int, ratio, valRatio float64, rng *rand.Rand) Split {
	byClass := make([][]int, s.NumClasses())
	var sp Split
	for ix, l := range s.Labels {
		if l != 0 {
			byClass[l-1] = append(byClass[l-1], ix)
			sp.All = append(sp.All, ix)
		}
	}
	for _, pixels := range byClass {
		size := len(pixels)
		if size == 0 {
			continue
		}
		n := perClass
		if n == 0 {
			n = int(ratio*float64(size) + 0.5)
			if n < 1 {
				n = 1
			}
		}
		if n > size-1 {
			n = size - 1
		}
		nval := int(valRatio*float64(size-n) + 0.5)
		for i, p := range rng.Perm(size) {
			switch {
			case i < n:
				sp.Train = append(sp.Train, pixels[p])
			case i < n+nval:
				sp.Val = append(sp.Val, pixels[p])
			default:
				sp.Test = append(sp.Test, pixels[p])
			}
		}
	}
	return sp
}

func (sp Split) String() string {
	return fmt.Sprintf("split: train=%d valid=%d test=%d of %d labelled",
		len(sp.Train), len(sp.Val), len(sp.Test), len(sp.All))
}
