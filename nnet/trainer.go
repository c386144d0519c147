package nnet

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/leeguandong/mmhyperspectralcls/num"
	"github.com/leeguandong/mmhyperspectralcls/stats"
)

const emaN = 10

// Training statistics for one epoch
type Stats struct {
	Epoch     int
	Values    []float64
	BestSince int
	Elapsed   time.Duration
}

func StatsHeaders(d map[string]Data) []string {
	h := []string{"loss"}
	for _, key := range DataTypes {
		if _, ok := d[key]; ok {
			h = append(h, key+" error")
			if key == "valid" {
				h = append(h, "valid avg")
			}
		}
	}
	return h
}

func (s Stats) Format() []string {
	str := []string{fmt.Sprintf("%7.4f", s.Values[0])}
	for _, v := range s.Values[1:] {
		str = append(str, fmt.Sprintf("%6.2f%%", v*100))
	}
	return str
}

// Tester interface to evaluate the performance after each epoch, Test method returns true if training should stop.
type Tester interface {
	Test(net *Network, epoch int, loss float64, start time.Time) bool
}

// Tester which evaluates the loss and error for each of the data sets and updates the stats.
type TestBase struct {
	Net     *Network
	Data    map[string]*Dataset
	Pred    map[string][]int32
	Stats   []Stats
	Headers []string
	Samples int
}

// Create a new base class which implements the Tester interface.
func NewTestBase() *TestBase {
	return &TestBase{Stats: []Stats{}}
}

// Initialise the test datasets, network and other configuration.
func (t *TestBase) Init(queue num.Queue, conf Config, data map[string]Data, rng *rand.Rand) *TestBase {
	t.Data = make(map[string]*Dataset)
	t.Headers = StatsHeaders(data)
	// cap all the datasets to the train set size so they share one batch size
	t.Samples = data["train"].Len()
	if conf.MaxSamples > 0 && conf.MaxSamples < t.Samples {
		t.Samples = conf.MaxSamples
	}
	t.Pred = nil
	if conf.DebugLevel >= 1 {
		fmt.Printf("init tester: samples=%d batch size=%d\n", t.Samples, conf.TestBatch)
	}
	for key, d := range data {
		if conf.DebugLevel >= 1 {
			fmt.Println("dataset =>", key)
		}
		t.Data[key] = NewDataset(queue.Dev(), d, conf.TestBatch, t.Samples, conf.FlattenInput, rng)
	}
	t.Net = New(queue, conf, t.Data["train"].BatchSize, t.Data["train"].Shape(), rng)
	return t
}

// Generate the predicted results when test is next run.
func (t *TestBase) Predict() *TestBase {
	t.Pred = make(map[string][]int32)
	for key, dset := range t.Data {
		t.Pred[key] = make([]int32, dset.Samples)
	}
	return t
}

// Reset stats prior to new run
func (t *TestBase) Reset() {
	t.Stats = t.Stats[:0]
}

// Release any pending dataset loads
func (t *TestBase) Release() {
	for _, dset := range t.Data {
		dset.Release()
	}
}

// Test performance of the network, called from the Train function on completion of each epoch.
func (t *TestBase) Test(net *Network, epoch int, loss float64, start time.Time) bool {
	net.CopyTo(t.Net)
	if net.DebugLevel >= 1 {
		fmt.Printf("== TEST EPOCH %d ==\n", epoch)
	}
	s := Stats{Epoch: epoch, Values: []float64{loss}, BestSince: -1}
	for ix, key := range DataTypes {
		if dset, ok := t.Data[key]; ok {
			if dset.Samples < dset.Len() {
				dset.Shuffle()
			}
			var pred []int32
			if t.Pred != nil {
				pred = t.Pred[key]
			}
			errVal := t.Net.Error(dset, pred)
			s.Values = append(s.Values, errVal)
			if key == "valid" {
				// save exponential moving average of validation error
				avgVal := 0.0
				if epoch > 1 {
					avgVal = t.Stats[epoch-2].Values[ix+2]
				}
				avgVal = stats.EMA(avgVal).Add(errVal, emaN)
				s.Values = append(s.Values, avgVal)
				// get number of epochs since average validation error last improved
				for ep := epoch - 1; ep >= 1; ep-- {
					prevErr := t.Stats[ep-1].Values[ix+2]
					if prevErr > avgVal {
						s.BestSince = epoch - ep - 1
						break
					}
				}
			}
		}
	}
	s.Elapsed = time.Since(start)
	t.Stats = append(t.Stats, s)
	return epoch >= net.MaxEpoch || loss <= net.MinLoss || (net.StopAfter > 0 && s.BestSince >= net.StopAfter)
}

// Tester which logs the stats for each epoch in addition to recording them.
type TestLogger struct {
	*TestBase
	log *log.Logger
}

// Create a new tester which logs the stats for each epoch.
func NewTestLogger(queue num.Queue, conf Config, data map[string]Data, rng *rand.Rand, logger *log.Logger) *TestLogger {
	return &TestLogger{TestBase: NewTestBase().Init(queue, conf, data, rng), log: logger}
}

func (t *TestLogger) Test(net *Network, epoch int, loss float64, start time.Time) bool {
	done := t.TestBase.Test(net, epoch, loss, start)
	s := t.Stats[len(t.Stats)-1]
	if done || net.LogEvery == 0 || epoch%net.LogEvery == 0 {
		msg := fmt.Sprintf("epoch %3d:", epoch)
		for i, val := range s.Format() {
			msg += fmt.Sprintf("  %s =%s", t.Headers[i], val)
		}
		if s.BestSince >= 0 {
			msg += fmt.Sprintf(" [%d]", s.BestSince)
		}
		t.log.Println(msg)
	}
	if done {
		t.log.Printf("run time: %s", s.Elapsed.Round(10*time.Millisecond))
	}
	return done
}

// Train the network on the given training set by updating the weights
func Train(net *Network, dset *Dataset, test Tester) {
	acc := net.queue.NewArray(num.Float32)
	net.SetTraining(true)
	defer net.SetTraining(false)
	done := false
	start := time.Now()
	for epoch := 1; epoch <= net.MaxEpoch && !done; epoch++ {
		loss := TrainEpoch(net, dset, acc)
		done = test.Test(net, epoch, loss, start)
	}
}

// Perform one training epoch on dataset, returns the average loss prior to updating the weights.
func TrainEpoch(net *Network, dset *Dataset, acc num.Array) float64 {
	q := net.queue
	if net.inputGrad == nil {
		net.inputGrad = q.NewArray(num.Float32, dset.BatchSize, len(dset.Classes()))
	}
	if net.Shuffle {
		dset.Shuffle()
	}
	weightDecay := float32(net.Eta*net.Lambda) / float32(dset.Samples)
	q.Call(num.Fill(acc, 0))
	dset.NextEpoch()
	for batch := 0; batch < dset.Batches; batch++ {
		if net.DebugLevel >= 2 || (net.DebugLevel == 1 && batch == 0) {
			fmt.Printf("== train batch %d ==\n", batch)
		}
		q.Finish()
		x, _, yOneHot := dset.NextBatch()
		yPred := net.Fprop(x)
		if net.DebugLevel >= 2 {
			fmt.Printf("yOneHot:\n%s", yOneHot.String(q))
			fmt.Printf("yPred:\n%s", yPred.String(q))
		}
		// sum average loss over batches
		losses := net.OutLayer().Loss(yOneHot, yPred)
		q.Call(
			num.Sum(losses, net.batchLoss, 1),
			num.Axpy(1, net.batchLoss, acc),
		)
		// get difference at output
		q.Call(
			num.Copy(net.inputGrad, yPred),
			num.Axpy(-1, yOneHot, net.inputGrad),
		)
		if net.DebugLevel >= 2 {
			fmt.Printf("input grad:\n%s", net.inputGrad.String(q))
		}
		// back propagate gradient
		grad := net.inputGrad
		for i := len(net.Layers) - 1; i >= 0; i-- {
			grad = net.Layers[i].Bprop(grad)
			if net.DebugLevel >= 3 && grad != nil {
				fmt.Printf("layer %d bprop output:\n%s", i, grad.String(q))
			}
		}
		// update weights
		for _, layer := range net.Layers {
			if l, ok := layer.(ParamLayer); ok {
				l.UpdateParams(float32(net.Eta), weightDecay, float32(net.Momentum))
			}
		}
		if net.DebugLevel >= 2 || (batch == dset.Batches-1 && net.DebugLevel >= 1) {
			net.PrintWeights()
		}
	}
	lossVal := make([]float32, 1)
	q.Call(num.Read(acc, lossVal)).Finish()
	return float64(lossVal[0] / float32(dset.Samples))
}
