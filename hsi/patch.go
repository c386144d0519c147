package hsi

import (
	"runtime"
	"sync"
)

// Patches presents a set of scene pixels as a data set for training.
// Each sample is the size x size patch of spectra centred on the pixel so
// the feature shape is [size*size, bands] with the patch pixels as channels.
// Labels are shifted down by one since background pixels are never sampled.
type Patches struct {
	scene   *Scene
	index   []int
	size    int
	pad     int
	threads int
}

// NewPatches creates a patch data set over the given scene pixel indexes.
// Patches are extracted in parallel using threads workers.
func NewPatches(s *Scene, index []int, patchSize, threads int) *Patches {
	if patchSize < 1 || patchSize%2 == 0 {
		panic("Patches: patch size must be a positive odd number")
	}
	if threads < 1 {
		threads = runtime.GOMAXPROCS(0)
	}
	return &Patches{scene: s, index: index, size: patchSize, pad: patchSize / 2, threads: threads}
}

// Len function returns the number of samples
func (p *Patches) Len() int { return len(p.index) }

// Classes function returns the scene class names
func (p *Patches) Classes() []string { return p.scene.Class }

// Shape returns patch pixels, bands
func (p *Patches) Shape() []int { return []int{p.size * p.size, p.scene.Bands} }

// SceneIndex maps a sample number back to its scene pixel
func (p *Patches) SceneIndex(i int) int { return p.index[i] }

// Label returns the zero based class for the given samples
func (p *Patches) Label(index []int, label []int32) {
	for i, ix := range index {
		label[i] = p.scene.Labels[p.index[ix]] - 1
	}
}

// Input extracts a batch of patches into buf
func (p *Patches) Input(index []int, buf []float32) {
	nfeat := p.size * p.size * p.scene.Bands
	if p.threads == 1 || len(index) == 1 {
		for i, ix := range index {
			p.extract(p.index[ix], buf[i*nfeat:(i+1)*nfeat])
		}
		return
	}
	var wg sync.WaitGroup
	queue := make(chan int, p.threads)
	for t := 0; t < p.threads; t++ {
		wg.Add(1)
		go func() {
			for i := range queue {
				p.extract(p.index[index[i]], buf[i*nfeat:(i+1)*nfeat])
			}
			wg.Done()
		}()
	}
	for i := range index {
		queue <- i
	}
	close(queue)
	wg.Wait()
}

// copy the mirror padded patch centred on scene pixel ix into buf
func (p *Patches) extract(ix int, buf []float32) {
	s := p.scene
	x0, y0 := ix%s.Width, ix/s.Width
	pos := 0
	for dy := -p.pad; dy <= p.pad; dy++ {
		y := mirror(y0+dy, s.Height)
		for dx := -p.pad; dx <= p.pad; dx++ {
			x := mirror(x0+dx, s.Width)
			copy(buf[pos:pos+s.Bands], s.At(x, y))
			pos += s.Bands
		}
	}
}

// mirror reflects the coordinate at the borders without repeating the edge
func mirror(c, n int) int {
	if n == 1 {
		return 0
	}
	for c < 0 || c >= n {
		if c < 0 {
			c = -c
		}
		if c >= n {
			c = 2*(n-1) - c
		}
	}
	return c
}
