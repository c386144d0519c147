// Package hsi handles hyperspectral scene data: ENVI import, normalisation,
// spectral reduction and patch sampling for training.
package hsi

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/leeguandong/mmhyperspectralcls/nnet"
	"github.com/leeguandong/mmhyperspectralcls/stats"
)

// Scene is a hyperspectral image cube with ground truth labels.
// Data is stored pixel major so each spectrum is contiguous, label 0 marks
// unlabelled background pixels and classes are numbered from 1.
type Scene struct {
	SceneHead
	Data   []float32
	Labels []int32
}

type SceneHead struct {
	Name       string
	Width      int
	Height     int
	Bands      int
	Class      []string
	Wavelength []float32
	Mean       []float32
	StdDev     []float32
}

// Create a new empty scene with given dimensions
func NewScene(name string, width, height, bands int, classes []string) *Scene {
	return &Scene{
		SceneHead: SceneHead{Name: name, Width: width, Height: height, Bands: bands, Class: classes},
		Data:      make([]float32, width*height*bands),
		Labels:    make([]int32, width*height),
	}
}

// Pixels function returns the total number of pixels
func (s *Scene) Pixels() int { return s.Width * s.Height }

// NumClasses function returns the number of labelled classes
func (s *Scene) NumClasses() int { return len(s.Class) }

// Pixel returns the spectrum for the ith pixel in row major order
func (s *Scene) Pixel(ix int) []float32 {
	return s.Data[ix*s.Bands : (ix+1)*s.Bands]
}

// At returns the spectrum for the pixel at x, y
func (s *Scene) At(x, y int) []float32 {
	return s.Pixel(y*s.Width + x)
}

// LabelAt returns the class label for the pixel at x, y
func (s *Scene) LabelAt(x, y int) int32 {
	return s.Labels[y*s.Width+x]
}

// ClassCounts returns the number of pixels per label, entry 0 is the
// unlabelled background count.
func (s *Scene) ClassCounts() []int {
	counts := make([]int, s.NumClasses()+1)
	for _, l := range s.Labels {
		counts[l]++
	}
	return counts
}

// LabelledIndexes returns the pixel indexes which have a ground truth label
func (s *Scene) LabelledIndexes() []int {
	var ix []int
	for i, l := range s.Labels {
		if l != 0 {
			ix = append(ix, i)
		}
	}
	return ix
}

func (s *Scene) String() string {
	labelled := s.Pixels() - s.ClassCounts()[0]
	return fmt.Sprintf("%s: %dx%d pixels %d bands %d classes %d labelled",
		s.Name, s.Width, s.Height, s.Bands, s.NumClasses(), labelled)
}

// Calculate per band mean and stddev for the scene
func (s *Scene) GetStats() (mean, std []float32) {
	stat := make([]*stats.Average, s.Bands)
	for i := range stat {
		stat[i] = new(stats.Average)
	}
	for ix := 0; ix < s.Pixels(); ix++ {
		for b, val := range s.Pixel(ix) {
			stat[b].Add(float64(val))
		}
	}
	mean = make([]float32, s.Bands)
	std = make([]float32, s.Bands)
	for i, st := range stat {
		mean[i] = float32(st.Mean)
		std[i] = float32(st.StdDev)
	}
	return mean, std
}

// Normalise scales the scene in place so each band has zero mean and unit
// stddev, the band statistics are saved in the header.
func (s *Scene) Normalise() {
	mean, std := s.GetStats()
	for b := 0; b < s.Bands; b++ {
		if std[b] == 0 {
			std[b] = 1
		}
	}
	for ix := 0; ix < s.Pixels(); ix++ {
		pix := s.Pixel(ix)
		for b := range pix {
			pix[b] = (pix[b] - mean[b]) / std[b]
		}
	}
	s.Mean, s.StdDev = mean, std
}

// Encode scene to binary file
func (s *Scene) Encode(w io.Writer) error {
	enc := gob.NewEncoder(w)
	if err := enc.Encode(&s.SceneHead); err != nil {
		return fmt.Errorf("error encoding header: %s", err)
	}
	if err := enc.Encode(s.Labels); err != nil {
		return fmt.Errorf("error encoding labels: %s", err)
	}
	if err := enc.Encode(s.Data); err != nil {
		return fmt.Errorf("error encoding data: %s", err)
	}
	return nil
}

// Decode scene from binary file
func (s *Scene) Decode(r io.Reader) error {
	s.SceneHead = SceneHead{}
	dec := gob.NewDecoder(r)
	if err := dec.Decode(&s.SceneHead); err != nil {
		return fmt.Errorf("error decoding header: %s", err)
	}
	if err := dec.Decode(&s.Labels); err != nil {
		return fmt.Errorf("error decoding labels: %s", err)
	}
	if err := dec.Decode(&s.Data); err != nil {
		return fmt.Errorf("error decoding data: %s", err)
	}
	return nil
}

// Save scene in gob format under the data directory
func SaveScene(s *Scene, name string) error {
	f, err := os.Create(path.Join(nnet.DataDir, name+".scene"))
	if err != nil {
		return err
	}
	defer f.Close()
	return s.Encode(f)
}

// Load scene in gob format from the data directory
func LoadScene(name string) (*Scene, error) {
	f, err := os.Open(path.Join(nnet.DataDir, name+".scene"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s := new(Scene)
	if err = s.Decode(f); err != nil {
		return nil, err
	}
	return s, nil
}
