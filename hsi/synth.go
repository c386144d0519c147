package hsi

import (
	"math"
	"math/rand"
	"strconv"
)

const plotSize = 8

// Demo synthesises a labelled scene for testing without real data.
// Classes occupy square plots separated by unlabelled border pixels, each
// class has a smooth random spectral signature and gaussian noise is added
// per pixel. The first plots cycle through all the classes so every class
// is present. Requires width and height of at least 2*plotSize.
func Demo(width, height, bands, classes int, noise float64, rng *rand.Rand) *Scene {
	names := make([]string, classes)
	for i := range names {
		names[i] = "class " + strconv.Itoa(i+1)
	}
	s := NewScene("demo", width, height, bands, names)
	background := signature(bands, rng)
	sig := make([][]float32, classes)
	for c := range sig {
		sig[c] = signature(bands, rng)
	}
	bw := (width + plotSize - 1) / plotSize
	bh := (height + plotSize - 1) / plotSize
	blocks := make([]int32, bw*bh)
	for i := range blocks {
		if i < classes {
			blocks[i] = int32(i + 1)
		} else {
			blocks[i] = int32(rng.Intn(classes) + 1)
		}
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			ix := y*width + x
			spec := background
			if x%plotSize != 0 && y%plotSize != 0 {
				label := blocks[(y/plotSize)*bw+x/plotSize]
				s.Labels[ix] = label
				spec = sig[label-1]
			}
			pix := s.Pixel(ix)
			for b := range pix {
				pix[b] = spec[b] + float32(rng.NormFloat64()*noise)
			}
		}
	}
	return s
}

// smooth random spectrum built from two gaussian bumps
func signature(bands int, rng *rand.Rand) []float32 {
	spec := make([]float32, bands)
	for k := 0; k < 2; k++ {
		centre := rng.Float64() * float64(bands)
		width := (0.05 + 0.2*rng.Float64()) * float64(bands)
		amp := 0.5 + rng.Float64()
		for b := range spec {
			x := (float64(b) - centre) / width
			spec[b] += float32(amp * math.Exp(-x*x))
		}
	}
	return spec
}
