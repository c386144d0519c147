package exp

import (
	"encoding/gob"
	"os"

	"github.com/leeguandong/mmhyperspectralcls/nnet"
)

// Checkpoint holds the trained weights for one run together with the exact
// merged config and seed used, so the run can be reproduced or resumed.
type Checkpoint struct {
	Version string
	Conf    nnet.Config
	Run     int
	Seed    int64
	Epochs  int
	Classes []string
	Weights [][]float32
}

// NewCheckpoint captures the weights from a trained network
func NewCheckpoint(conf nnet.Config, run int, seed int64, epochs int, classes []string, net *nnet.Network) *Checkpoint {
	return &Checkpoint{
		Version: Version, Conf: conf, Run: run, Seed: seed, Epochs: epochs,
		Classes: classes, Weights: net.Weights(),
	}
}

// Save checkpoint in gob format
func (c *Checkpoint) Save(file string) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(c)
}

// Restore the saved weights into the network
func (c *Checkpoint) Restore(net *nnet.Network) error {
	return net.SetWeights(c.Weights)
}

// LoadCheckpoint reads a checkpoint written by Save
func LoadCheckpoint(file string) (*Checkpoint, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c := new(Checkpoint)
	if err = gob.NewDecoder(f).Decode(c); err != nil {
		return nil, err
	}
	return c, nil
}
