package exp

import (
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"runtime"
	"strings"
	"time"

	"github.com/leeguandong/mmhyperspectralcls/hsi"
	"github.com/leeguandong/mmhyperspectralcls/nnet"
	"github.com/leeguandong/mmhyperspectralcls/num"
	"github.com/leeguandong/mmhyperspectralcls/stats"
)

// Runner trains and evaluates the configured model over a series of runs
// with consecutive random seeds.
type Runner struct {
	Conf          nnet.Config
	Model         string
	WorkDir       string
	Log           *log.Logger
	Resume        string
	NoValidate    bool
	Deterministic bool
	dev           num.Device
	scene         *hsi.Scene
	logFile       *os.File
}

// resolveWorkDir picks the working directory: command line flag first, then
// the config WorkDir field, else results/<model>.
func resolveWorkDir(flagDir string, conf nnet.Config, model string) string {
	if flagDir != "" {
		return flagDir
	}
	if conf.WorkDir != "" {
		return conf.WorkDir
	}
	return path.Join("results", model)
}

// NewRunner creates the work directory, opens a timestamped log file which
// tees to stdout and dumps the merged config ready for training.
func NewRunner(conf nnet.Config, model, flagDir string) (*Runner, error) {
	r := &Runner{Conf: conf, Model: model, dev: num.NewCPUDevice()}
	r.WorkDir = resolveWorkDir(flagDir, conf, model)
	if err := os.MkdirAll(r.WorkDir, 0755); err != nil {
		return nil, err
	}
	stamp := time.Now().Format("20060102_150405")
	f, err := os.Create(path.Join(r.WorkDir, stamp+".log"))
	if err != nil {
		return nil, err
	}
	r.logFile = f
	r.Log = log.New(io.MultiWriter(os.Stdout, f), "", log.LstdFlags)
	if err := conf.SaveFile(path.Join(r.WorkDir, model+".net")); err != nil {
		return nil, err
	}
	return r, nil
}

// Close the run log file
func (r *Runner) Close() {
	if r.logFile != nil {
		r.logFile.Close()
	}
}

// Run loads and preprocesses the scene then trains Runs networks with seeds
// RandSeed, RandSeed+1, ... evaluating each and logging the aggregated
// metrics at the end.
func (r *Runner) Run() error {
	sep := strings.Repeat("-", 60)
	r.Log.Printf("environment:\n%s\n%s\n%s", sep, EnvInfo(), sep)
	r.Log.Printf("model %s => work dir %s", r.Model, r.WorkDir)
	r.Log.Printf("config:\n%s\n%s\n%s", sep, r.Conf, sep)
	scene, err := hsi.LoadScene(r.Conf.DataSet)
	if err != nil {
		return err
	}
	if r.Conf.Normalise {
		scene.Normalise()
		r.Log.Println("normalised scene to zero mean unit stddev per band")
	}
	if r.Conf.Components > 0 {
		bands := scene.Bands
		explained, err := hsi.Project(scene, r.Conf.Components)
		if err != nil {
			return err
		}
		r.Log.Printf("pca: %d => %d bands keeping %.1f%% of variance", bands, scene.Bands, 100*explained)
	}
	r.Log.Println(scene)
	r.scene = scene
	if err = hsi.SavePNG(path.Join(r.WorkDir, "ground_truth.png"), scene.ClassMap(nil)); err != nil {
		return err
	}
	runs := r.Conf.Runs
	if runs < 1 {
		runs = 1
	}
	set := stats.NewRunSet(scene.NumClasses())
	var oa, aa, kappa []float64
	for run := 0; run < runs; run++ {
		seed := r.Conf.RandSeed + int64(run)
		cm, err := r.trainRun(run, runs, seed)
		if err != nil {
			return err
		}
		set.Add(cm)
		oa = append(oa, cm.Overall())
		aa = append(aa, cm.Average())
		kappa = append(kappa, cm.Kappa())
		r.Log.Printf("run %d: overall=%.4f average=%.4f kappa=%.4f", run, cm.Overall(), cm.Average(), cm.Kappa())
		if r.Conf.DebugLevel >= 1 {
			r.Log.Printf("confusion matrix:\n%s", cm)
		}
	}
	r.Log.Printf("results over %d runs", set.Runs())
	r.Log.Printf("overall: %s", list(oa))
	r.Log.Printf("average: %s", list(aa))
	r.Log.Printf("kappa:   %s", list(kappa))
	r.Log.Printf("aggregate:\n%s\n%s%s", sep, set, sep)
	return nil
}

// train and evaluate a single seeded run
func (r *Runner) trainRun(run, runs int, seed int64) (*stats.Confusion, error) {
	conf := r.Conf
	r.Log.Printf("run %d/%d: set random seed to %d (deterministic: %v)", run+1, runs, seed, r.Deterministic)
	rng := nnet.NewRng(seed)
	valRatio := conf.ValRatio
	if r.NoValidate {
		valRatio = 0
	}
	split := hsi.NewSplit(r.scene, conf.SamplesPerClass, conf.TrainRatio, valRatio, rng)
	r.Log.Println(split)
	threads := conf.Threads
	if threads < 1 {
		threads = runtime.GOMAXPROCS(0)
	}
	if r.Deterministic {
		threads = 1
	}
	data := map[string]nnet.Data{
		"train": hsi.NewPatches(r.scene, split.Train, conf.PatchSize, threads),
		"test":  hsi.NewPatches(r.scene, split.Test, conf.PatchSize, threads),
	}
	if len(split.Val) > 0 {
		data["valid"] = hsi.NewPatches(r.scene, split.Val, conf.PatchSize, threads)
	}
	queue := r.dev.NewQueue(threads)
	if conf.Profile {
		queue.Profiling(true)
	}
	dset := nnet.NewDataset(r.dev, data["train"], conf.TrainBatch, conf.MaxSamples, conf.FlattenInput, rng)
	defer dset.Release()
	net := nnet.New(queue, conf, dset.BatchSize, dset.Shape(), rng)
	net.InitWeights(rng)
	if run == 0 && r.Resume != "" {
		cp, err := LoadCheckpoint(r.Resume)
		if err != nil {
			return nil, err
		}
		if err = cp.Restore(net); err != nil {
			return nil, err
		}
		r.Log.Printf("resumed weights from %s: run %d seed %d after %d epochs", r.Resume, cp.Run, cp.Seed, cp.Epochs)
	}
	tester := nnet.NewTestLogger(queue, conf, data, rng, r.Log)
	nnet.Train(net, dset, tester)
	epochs := 0
	if len(tester.Stats) > 0 {
		epochs = tester.Stats[len(tester.Stats)-1].Epoch
	}
	cm, _ := Evaluate(queue, conf, net, data["test"].(*hsi.Patches))
	all := hsi.NewPatches(r.scene, split.All, conf.PatchSize, threads)
	_, preds := Evaluate(queue, conf, net, all)
	mapFile := path.Join(r.WorkDir, fmt.Sprintf("run_%d_map.png", run))
	if err := hsi.SavePNG(mapFile, r.scene.ClassMap(r.scene.PredictionRaster(split.All, preds))); err != nil {
		return nil, err
	}
	cp := NewCheckpoint(conf, run, seed, epochs, r.scene.Class, net)
	file := path.Join(r.WorkDir, fmt.Sprintf("run_%d.checkpoint", run))
	if err := cp.Save(file); err != nil {
		return nil, err
	}
	r.Log.Printf("saved checkpoint to %s", file)
	if conf.Profile {
		queue.PrintProfile()
	}
	tester.Release()
	queue.Shutdown()
	return cm, nil
}

func list(vals []float64) string {
	s := make([]string, len(vals))
	for i, v := range vals {
		s[i] = fmt.Sprintf("%.4f", v)
	}
	return "[" + strings.Join(s, " ") + "]"
}
