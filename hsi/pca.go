package hsi

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Project reduces the scene spectra to the leading principal components.
// The scene is updated in place with bands replaced by components and the
// band statistics cleared. Returns the fraction of variance retained.
func Project(s *Scene, components int) (float64, error) {
	if components < 1 || components > s.Bands {
		return 0, fmt.Errorf("pca: components must be between 1 and %d: got %d", s.Bands, components)
	}
	n, d := s.Pixels(), s.Bands
	data := make([]float64, n*d)
	for i, v := range s.Data {
		data[i] = float64(v)
	}
	m := mat.NewDense(n, d, data)
	var pc stat.PC
	if ok := pc.PrincipalComponents(m, nil); !ok {
		return 0, fmt.Errorf("pca: decomposition failed")
	}
	vars := pc.VarsTo(nil)
	total, kept := 0.0, 0.0
	for i, v := range vars {
		total += v
		if i < components {
			kept += v
		}
	}
	var vec mat.Dense
	pc.VectorsTo(&vec)
	// centre each band before projecting onto the components
	for j := 0; j < d; j++ {
		mean := stat.Mean(mat.Col(nil, j, m), nil)
		for i := 0; i < n; i++ {
			data[i*d+j] -= mean
		}
	}
	var proj mat.Dense
	proj.Mul(m, vec.Slice(0, d, 0, components))
	out := make([]float32, n*components)
	for i := 0; i < n; i++ {
		for j := 0; j < components; j++ {
			out[i*components+j] = float32(proj.At(i, j))
		}
	}
	s.Data = out
	s.Bands = components
	s.Wavelength = nil
	s.Mean, s.StdDev = nil, nil
	explained := 1.0
	if total > 0 {
		explained = kept / total
	}
	return explained, nil
}
