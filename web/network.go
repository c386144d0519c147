// Package web has a browser based dashboard for training hyperspectral
// scene classifiers and viewing the predicted class maps.
package web

import (
	"encoding/gob"
	"fmt"
	"html/template"
	"log"
	"math/rand"
	"os"
	"path"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leeguandong/mmhyperspectralcls/exp"
	"github.com/leeguandong/mmhyperspectralcls/hsi"
	"github.com/leeguandong/mmhyperspectralcls/nnet"
	"github.com/leeguandong/mmhyperspectralcls/num"
	"github.com/leeguandong/mmhyperspectralcls/stats"
)

// Network wraps the neural net together with the scene data, the training
// state and the stats shown on the dashboard.
type Network struct {
	*NetworkData
	net     *nnet.Network
	test    *nnet.TestBase
	scene   *hsi.Scene
	split   hsi.Split
	Data    map[string]nnet.Data
	dset    *nnet.Dataset
	queue   num.Queue
	rng     *rand.Rand
	testRng *rand.Rand
	conn    *websocket.Conn
	running bool
	stop    bool
	updated bool
	sync.Mutex
}

// NetworkData is the state which is persisted to file between sessions.
type NetworkData struct {
	Model   string
	Conf    nnet.Config
	MaxRun  int
	Run     int
	Epoch   int
	Stats   []nnet.Stats
	Pred    []int32
	Cm      *stats.Confusion
	Weights [][]float32
	History []RunResult
}

// RunResult holds the evaluation summary for one completed run.
type RunResult struct {
	Run     int
	Seed    int64
	Epochs  int
	Overall float64
	Average float64
	Kappa   float64
	Elapsed time.Duration
}

func (r RunResult) Format() []string {
	return []string{
		strconv.Itoa(r.Run + 1),
		strconv.FormatInt(r.Seed, 10),
		strconv.Itoa(r.Epochs),
		fmt.Sprintf("%.2f%%", 100*r.Overall),
		fmt.Sprintf("%.2f%%", 100*r.Average),
		fmt.Sprintf("%.4f", r.Kappa),
		r.Elapsed.Round(10 * time.Millisecond).String(),
	}
}

// Create a new network load any saved state given the model name
func NewNetwork(model string) (*Network, error) {
	n := &Network{test: nnet.NewTestBase()}
	log.Println("load model:", model)
	var err error
	n.NetworkData, err = LoadNetwork(model, false)
	if err != nil {
		return nil, err
	}
	if err = n.Init(n.Conf); err != nil {
		return nil, err
	}
	if err = n.Import(); err != nil {
		return nil, err
	}
	return n, nil
}

// Initialise the network on a fresh copy of the scene
func (n *Network) Init(conf nnet.Config) error {
	log.Printf("init network: dataSet=%s seed=%d", conf.DataSet, conf.RandSeed)
	n.release()
	scene, err := hsi.LoadScene(conf.DataSet)
	if err != nil {
		return err
	}
	if conf.Normalise {
		scene.Normalise()
	}
	if conf.Components > 0 {
		if _, err = hsi.Project(scene, conf.Components); err != nil {
			return err
		}
	}
	n.scene = scene
	n.rng = nnet.NewRng(conf.RandSeed)
	n.testRng = nnet.NewRng(conf.RandSeed)
	n.split = hsi.NewSplit(scene, conf.SamplesPerClass, conf.TrainRatio, conf.ValRatio, n.rng)
	log.Println(n.split)
	threads := n.threads(conf)
	n.Data = map[string]nnet.Data{
		"train": hsi.NewPatches(scene, n.split.Train, conf.PatchSize, threads),
		"test":  hsi.NewPatches(scene, n.split.Test, conf.PatchSize, threads),
	}
	if len(n.split.Val) > 0 {
		n.Data["valid"] = hsi.NewPatches(scene, n.split.Val, conf.PatchSize, threads)
	}
	dev := num.NewCPUDevice()
	n.queue = dev.NewQueue(threads)
	n.dset = nnet.NewDataset(dev, n.Data["train"], conf.TrainBatch, conf.MaxSamples, conf.FlattenInput, n.rng)
	n.net = nnet.New(n.queue, conf, n.dset.BatchSize, n.dset.Shape(), n.rng)
	n.test.Init(n.queue, conf, n.Data, n.testRng).Predict()
	n.Conf = conf
	return nil
}

func (n *Network) threads(conf nnet.Config) int {
	if conf.Threads < 1 {
		return runtime.GOMAXPROCS(0)
	}
	return conf.Threads
}

// release buffers from any previous initialisation
func (n *Network) release() {
	if n.dset != nil {
		n.dset.Release()
	}
	if n.test != nil {
		n.test.Release()
	}
	if n.queue != nil {
		n.queue.Shutdown()
		n.queue = nil
	}
}

// Start a new training run with freshly initialised weights
func (n *Network) Start(conf nnet.Config, lock bool) error {
	if lock {
		n.Lock()
		defer n.Unlock()
	}
	if err := n.Init(conf); err != nil {
		return err
	}
	n.test.Reset()
	log.Println("init weights")
	n.net.InitWeights(n.rng)
	n.Epoch = 0
	n.updated = false
	return nil
}

// Train the network in the background, if restart is set then reinitialise
// the weights and start from run 0.
func (n *Network) Train(restart bool) error {
	log.Printf("train %s: restart=%v", n.Model, restart)
	nruns := n.Conf.Runs
	if nruns < 1 {
		nruns = 1
	}
	base := n.Conf.RandSeed - int64(n.Run)
	n.MaxRun = nruns
	if restart {
		if n.Epoch != 0 || n.Run != 0 || n.updated {
			n.Run = 0
			conf := n.Conf
			conf.RandSeed = base
			if err := n.Start(conf, false); err != nil {
				return err
			}
		}
		n.Epoch = 1
	} else if n.Epoch > 0 {
		n.Epoch++
	}
	if n.Epoch == 0 || n.Epoch > n.Conf.MaxEpoch {
		return nil
	}
	n.running = true
	n.stop = false
	go n.trainLoop(base)
	return nil
}

// training loop runs in the background and notifies progress via the websocket
func (n *Network) trainLoop(base int64) {
	quit := false
	first := true
	for n.Run < n.MaxRun && !quit {
		if !first {
			conf := n.Conf
			conf.RandSeed = base + int64(n.Run)
			if err := n.Start(conf, true); err != nil {
				log.Println("train:", err)
				return
			}
			n.Epoch = 1
		}
		first = false
		log.Printf("train run %d / %d epoch=%d", n.Run+1, n.MaxRun, n.Epoch)
		n.queue.Profiling(n.Conf.Profile)
		acc := n.queue.NewArray(num.Float32)
		n.net.SetTraining(true)
		runStart := time.Now()
		epoch := n.Epoch
		done := false
		for !done && !quit {
			loss := nnet.TrainEpoch(n.net, n.dset, acc)
			done = n.test.Test(n.net, epoch, loss, runStart)
			epoch, quit = n.nextEpoch(epoch)
		}
		n.net.SetTraining(false)
		if done && !quit {
			if err := n.endRun(runStart); err != nil {
				log.Println("train: end of run error:", err)
			}
			n.Lock()
			n.Run++
			n.Unlock()
		}
		if n.Conf.Profile {
			n.queue.PrintProfile()
		}
	}
	n.Lock()
	n.running = false
	n.stop = false
	n.Export()
	err := SaveNetwork(n.NetworkData)
	n.Unlock()
	if err != nil {
		log.Println("train: error saving state:", err)
	}
	log.Println("train: end - quit =", quit)
}

// update state at the end of each epoch and push progress to the browser
func (n *Network) nextEpoch(epoch int) (int, bool) {
	quit := false
	n.Lock()
	n.Epoch = epoch
	n.Stats = n.test.Stats
	if n.stop {
		n.stop = false
		n.running = false
		quit = true
	}
	conn := n.conn
	n.Unlock()
	if conn != nil {
		msg := []byte(strconv.Itoa(n.Run+1) + ":" + strconv.Itoa(epoch))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Println("nextEpoch: error writing to websocket", err)
		}
	}
	return epoch + 1, quit
}

// evaluate the trained network over the test set and the whole scene to
// update the prediction map, then save a record of the run
func (n *Network) endRun(start time.Time) error {
	cm, _ := exp.Evaluate(n.queue, n.Conf, n.net, n.Data["test"].(*hsi.Patches))
	all := hsi.NewPatches(n.scene, n.split.All, n.Conf.PatchSize, n.threads(n.Conf))
	_, preds := exp.Evaluate(n.queue, n.Conf, n.net, all)
	res := RunResult{
		Run: n.Run, Seed: n.Conf.RandSeed, Epochs: n.Epoch,
		Overall: cm.Overall(), Average: cm.Average(), Kappa: cm.Kappa(),
		Elapsed: time.Since(start),
	}
	log.Printf("run %d: overall=%.4f average=%.4f kappa=%.4f", n.Run, res.Overall, res.Average, res.Kappa)
	n.Lock()
	defer n.Unlock()
	n.Cm = cm
	n.Pred = preds
	n.History = append(n.History, res)
	n.Export()
	return SaveNetwork(n.NetworkData)
}

// Export the current weights and stats prior to saving the state
func (n *Network) Export() {
	n.Stats = n.test.Stats
	if n.net != nil {
		n.Weights = n.net.Weights()
	}
}

// Import restores the saved training state after loading from file
func (n *Network) Import() error {
	n.test.Stats = n.Stats
	if n.Epoch == 0 || len(n.Weights) == 0 {
		log.Println("init weights")
		n.net.InitWeights(n.rng)
		return nil
	}
	log.Println("import weights")
	if err := n.net.SetWeights(n.Weights); err != nil {
		log.Println("import weights:", err)
		n.Run, n.Epoch = 0, 0
		n.test.Reset()
		n.Stats = n.test.Stats
		n.net.InitWeights(n.rng)
	}
	return nil
}

// swap replaces the current model releasing the old state
func (n *Network) swap(data *NetworkData) error {
	if n.running {
		return fmt.Errorf("cannot load a new model while training")
	}
	n.NetworkData = data
	if err := n.Init(n.Conf); err != nil {
		return err
	}
	return n.Import()
}

func (n *Network) heading() template.HTML {
	s := fmt.Sprintf(`%s: run <span id="run">%d</span>/%d epoch <span id="epoch">%d</span>/%d`,
		n.Model, n.Run+1, n.MaxRun, n.Epoch, n.Conf.MaxEpoch)
	return template.HTML(s)
}

// Encode state in gob format and save to file under nnet.DataDir
func SaveNetwork(data *NetworkData) error {
	f, err := os.Create(path.Join(nnet.DataDir, data.Model+".state"))
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(*data)
}

// Remove any saved state so the next load starts from the config defaults
func ResetNetwork(model string) {
	os.Remove(path.Join(nnet.DataDir, model+".state"))
}

// Read back the saved state file, if not found or reset is set then load
// the model config instead.
func LoadNetwork(model string, reset bool) (*NetworkData, error) {
	data := &NetworkData{Model: model, MaxRun: 1, Stats: []nnet.Stats{}}
	if !reset {
		if nnet.FileExists(model + ".state") {
			if err := loadGob(model+".state", data); err != nil {
				log.Println("error loading state:", err)
				reset = true
			}
		} else {
			reset = true
		}
	}
	if reset {
		var err error
		if data.Conf, err = nnet.LoadConfig(model + ".net"); err != nil {
			return nil, err
		}
	}
	if data.MaxRun < 1 {
		data.MaxRun = data.Conf.Runs
		if data.MaxRun < 1 {
			data.MaxRun = 1
		}
	}
	return data, nil
}

func loadGob(name string, data *NetworkData) error {
	f, err := os.Open(path.Join(nnet.DataDir, name))
	if err != nil {
		return err
	}
	defer f.Close()
	log.Println("loading network state from", name)
	return gob.NewDecoder(f).Decode(data)
}
