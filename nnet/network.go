// Package nnet contains routines for constructing, training and testing neural networks.
package nnet

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/leeguandong/mmhyperspectralcls/num"
)

// Network type represents a multilayer neural network model.
type Network struct {
	Config
	Layers    []Layer
	queue     num.Queue
	classes   num.Array
	diffs     num.Array
	total     num.Array
	batchErr  num.Array
	batchLoss num.Array
	inputGrad num.Array
	inShape   []int
}

// New function creates a new network from the given config.
// inShape is the shape of a single input sample, the rng is used by dropout layers.
func New(queue num.Queue, conf Config, batchSize int, inShape []int, rng *rand.Rand) *Network {
	n := &Network{Config: conf, queue: queue}
	if conf.FlattenInput {
		n.inShape = []int{batchSize, num.Prod(inShape)}
	} else {
		n.inShape = append([]int{batchSize}, inShape...)
	}
	shape := n.inShape
	var prev Layer
	for _, l := range conf.Layers {
		layer := l.Unmarshal()
		if d, ok := layer.(*dropout); ok {
			d.rng = rng
		}
		layer.Init(queue, shape, prev)
		n.Layers = append(n.Layers, layer)
		shape = layer.OutShape(shape)
		prev = layer
	}
	n.batchLoss = queue.NewArray(num.Float32)
	return n
}

// Queue which was used to allocate the network
func (n *Network) Queue() num.Queue { return n.queue }

// Input shape including the leading batch dimension
func (n *Network) InShape() []int { return n.inShape }

// SetTraining enables or disables the dropout layers.
func (n *Network) SetTraining(on bool) {
	for _, layer := range n.Layers {
		if d, ok := layer.(*dropout); ok {
			d.train = on
		}
	}
}

// Initialise network weights using a uniform or normal distribution.
// Weights for each layer are scaled by 1/sqrt(nin)
func (n *Network) InitWeights(rng *rand.Rand) {
	shape := n.inShape
	for _, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			nin := num.Prod(shape[1:])
			scale := float32(1 / math.Sqrt(float64(nin)))
			l.InitParams(scale, float32(n.Bias), n.NormalWeights, rng)
		}
		shape = layer.OutShape(shape)
	}
	if n.DebugLevel >= 2 {
		n.PrintWeights()
	}
}

// Copy weights and bias arrays to destination net
func (n *Network) CopyTo(net *Network) {
	n.queue.Finish()
	for i, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			W, B := l.Params()
			net.Layers[i].(ParamLayer).SetParams(W, B)
		}
	}
	net.queue.Finish()
}

// Weights returns a copy of the weight and bias values for each parameter layer.
func (n *Network) Weights() [][]float32 {
	var res [][]float32
	for _, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			W, B := l.Params()
			w := make([]float32, W.Size())
			b := make([]float32, B.Size())
			n.queue.Call(num.Read(W, w), num.Read(B, b))
			res = append(res, w, b)
		}
	}
	n.queue.Finish()
	return res
}

// SetWeights restores weight and bias values as returned from Weights.
func (n *Network) SetWeights(data [][]float32) error {
	i := 0
	for _, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			if len(data) < i+2 {
				return fmt.Errorf("SetWeights: missing data for layer %d", i/2)
			}
			W, B := l.Params()
			if len(data[i]) != W.Size() || len(data[i+1]) != B.Size() {
				return fmt.Errorf("SetWeights: weight size mismatch for layer %d", i/2)
			}
			n.queue.Call(
				num.Write(W, data[i]),
				num.Write(B, data[i+1]),
			)
			i += 2
		}
	}
	if i != len(data) {
		return fmt.Errorf("SetWeights: have %d surplus arrays", len(data)-i)
	}
	n.queue.Finish()
	return nil
}

// Accessor for output layer
func (n *Network) OutLayer() OutputLayer {
	return n.Layers[len(n.Layers)-1].(OutputLayer)
}

// Feed forward the input to get the predicted output
func (n *Network) Fprop(input num.Array) num.Array {
	pred := input
	for i, layer := range n.Layers {
		if n.DebugLevel >= 3 && pred != nil {
			fmt.Printf("layer %d input\n%s", i, pred.String(n.queue))
		}
		pred = layer.Fprop(pred)
	}
	return pred
}

// Predict output given input data
func (n *Network) Predict(input, classes num.Array) num.Array {
	yPred := n.Fprop(input)
	if n.DebugLevel >= 3 {
		fmt.Printf("yPred\n%s", yPred.String(n.queue))
	}
	n.queue.Call(num.Unhot(yPred, classes))
	return yPred
}

// Calculate the error from the predicted versus actual values
// if pred slice is not nil then also return the predicted output classes.
func (n *Network) Error(dset *Dataset, pred []int32) float64 {
	q := n.queue
	n.allocArrays(dset.BatchSize)
	q.Call(num.Fill(n.total, 0))
	dset.Rewind()
	for batch := 0; batch < dset.Batches; batch++ {
		q.Finish()
		x, y, _ := dset.NextBatch()
		n.Predict(x, n.classes)
		q.Call(
			num.Neq(n.classes, y, n.diffs),
			num.Sum(n.diffs, n.batchErr, 1),
			num.Axpy(1, n.batchErr, n.total),
		)
		if pred != nil {
			start := batch * dset.BatchSize
			q.Call(num.Read(n.classes, pred[start:start+dset.BatchSize]))
		}
		if n.DebugLevel >= 2 || (n.DebugLevel >= 1 && batch == 0) {
			fmt.Printf("batch %d error =%s\n", batch, n.batchErr.String(q))
			fmt.Println(y.String(q))
			fmt.Println(n.classes.String(q))
		}
	}
	err := []float32{0}
	q.Call(num.Read(n.total, err)).Finish()
	return float64(err[0]) / float64(dset.Samples)
}

// Print network description
func (n *Network) String() string {
	s := make([]string, len(n.Layers))
	shape := n.inShape
	for i, layer := range n.Layers {
		s[i] = fmt.Sprintf("%2d: %-25s %v", i, layer.ToString(), shape)
		shape = layer.OutShape(shape)
	}
	return fmt.Sprintf("%s\n== Network ==\n%s", n.Config.configString(), strings.Join(s, "\n"))
}

// Print network weights
func (n *Network) PrintWeights() {
	for i, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			W, B := l.Params()
			fmt.Printf("== Layer %d weights ==\n%s %s\n", i, W.String(n.queue), B.String(n.queue))
		}
	}
}

func (n *Network) allocArrays(size int) {
	if n.classes == nil || n.classes.Dims()[0] != size {
		n.classes = n.queue.NewArray(num.Int32, size)
		n.diffs = n.queue.NewArray(num.Int32, size)
		n.batchErr = n.queue.NewArray(num.Float32)
		n.total = n.queue.NewArray(num.Float32)
	}
}

// NewRng returns a seeded random number generator, seeded from the clock if seed <= 0
func NewRng(seed int64) *rand.Rand {
	if seed <= 0 {
		seed = time.Now().UTC().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Exit in case of error
func CheckErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
