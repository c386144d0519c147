package exp

import (
	"os"
	"path"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/leeguandong/mmhyperspectralcls/hsi"
	"github.com/leeguandong/mmhyperspectralcls/nnet"
	"github.com/leeguandong/mmhyperspectralcls/num"
)

var dev = num.NewCPUDevice()

// small MLP over the synthetic demo scene
func demoConfig() nnet.Config {
	return nnet.Config{
		DataSet:         "demo",
		Eta:             0.5,
		Momentum:        0.5,
		Bias:            0.1,
		PatchSize:       1,
		SamplesPerClass: 16,
		TrainBatch:      16,
		TestBatch:       32,
		MaxEpoch:        10,
		LogEvery:        5,
		FlattenInput:    true,
		Shuffle:         true,
		RandSeed:        42,
		Runs:            2,
		Threads:         1,
	}.AddLayers(
		nnet.Linear{Nout: 16},
		nnet.Activation{Atype: "relu"},
		nnet.Linear{Nout: 3},
		nnet.LogRegression{},
	)
}

func demoScene(seed int64) *hsi.Scene {
	return hsi.Demo(32, 32, 8, 3, 0.1, nnet.NewRng(seed))
}

func TestWorkDir(t *testing.T) {
	conf := nnet.Config{}
	if dir := resolveWorkDir("", conf, "demo_mlp"); dir != "results/demo_mlp" {
		t.Error("default work dir: got", dir)
	}
	conf.WorkDir = "/data/hsi/exp1"
	if dir := resolveWorkDir("", conf, "demo_mlp"); dir != "/data/hsi/exp1" {
		t.Error("config work dir: got", dir)
	}
	if dir := resolveWorkDir("/tmp/override", conf, "demo_mlp"); dir != "/tmp/override" {
		t.Error("flag should override config: got", dir)
	}
}

func TestEnvInfo(t *testing.T) {
	info := EnvInfo()
	t.Logf("environment:\n%s", info)
	for _, field := range []string{"version: " + Version, "platform:", "go version:", "num cpu:"} {
		if !strings.Contains(info, field) {
			t.Error("missing env field", field)
		}
	}
}

func TestCheckpoint(t *testing.T) {
	conf := demoConfig()
	q := dev.NewQueue(1)
	defer q.Shutdown()
	rng := nnet.NewRng(1)
	net := nnet.New(q, conf, 4, []int{8}, rng)
	net.InitWeights(rng)
	cp := NewCheckpoint(conf, 1, 43, 7, []string{"corn", "wheat", "soy"}, net)
	file := path.Join(t.TempDir(), "run_1.checkpoint")
	if err := cp.Save(file); err != nil {
		t.Fatal(err)
	}
	cp2, err := LoadCheckpoint(file)
	if err != nil {
		t.Fatal(err)
	}
	if cp2.Version != Version || cp2.Run != 1 || cp2.Seed != 43 || cp2.Epochs != 7 {
		t.Error("metadata mismatch:", cp2.Version, cp2.Run, cp2.Seed, cp2.Epochs)
	}
	if cp2.Conf.DataSet != "demo" || len(cp2.Conf.Layers) != 4 {
		t.Error("config not restored")
	}
	if !reflect.DeepEqual(cp2.Classes, cp.Classes) {
		t.Error("classes mismatch:", cp2.Classes)
	}
	if !reflect.DeepEqual(cp2.Weights, cp.Weights) {
		t.Error("weights differ after reload")
	}
	net2 := nnet.New(q, conf, 4, []int{8}, rng)
	if err = cp2.Restore(net2); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(net2.Weights(), cp.Weights) {
		t.Error("weights differ after restore")
	}
}

func TestEvaluate(t *testing.T) {
	scene := demoScene(3)
	index := scene.LabelledIndexes()
	p := hsi.NewPatches(scene, index, 1, 1)
	conf := demoConfig()
	q := dev.NewQueue(1)
	defer q.Shutdown()
	// weights are zero so every sample should predict class 0
	net := nnet.New(q, conf, conf.TestBatch, p.Shape(), nnet.NewRng(1))
	cm, preds := Evaluate(q, conf, net, p)
	if len(preds) != p.Len() {
		t.Fatal("expected prediction per sample: got", len(preds))
	}
	for i, pred := range preds {
		if pred != 0 {
			t.Fatal("expected class 0 at sample", i, "got", pred)
		}
	}
	if cm.Total() != int64(p.Len()) {
		t.Error("padding should be excluded: total =", cm.Total())
	}
	counts := scene.ClassCounts()
	for c := 1; c < len(counts); c++ {
		if got := cm.Count(c-1, 0); got != int64(counts[c]) {
			t.Error("class", c, "count: expect", counts[c], "got", got)
		}
	}
	want := float64(counts[1]) / float64(p.Len())
	if oa := cm.Overall(); oa != want {
		t.Error("overall accuracy: expect", want, "got", oa)
	}
}

func TestRunnerSmallTrainSplit(t *testing.T) {
	// the default configs ship with a test batch much larger than the train
	// split, so the tester must cope with TestBatch > train samples
	nnet.DataDir = t.TempDir()
	if err := hsi.SaveScene(demoScene(1), "demo"); err != nil {
		t.Fatal(err)
	}
	conf := demoConfig()
	conf.TestBatch = 64 // 3 classes x 16 samples = 48 train samples
	conf.ValRatio = 0.2
	conf.MaxEpoch = 3
	conf.Runs = 1
	r, err := NewRunner(conf, "demo_mlp", path.Join(t.TempDir(), "results"))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if err = r.Run(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path.Join(r.WorkDir, "run_0.checkpoint")); err != nil {
		t.Error("missing checkpoint after run")
	}
}

func TestRunner(t *testing.T) {
	nnet.DataDir = t.TempDir()
	if err := hsi.SaveScene(demoScene(1), "demo"); err != nil {
		t.Fatal(err)
	}
	r, err := NewRunner(demoConfig(), "demo_mlp", path.Join(t.TempDir(), "results"))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if err = r.Run(); err != nil {
		t.Fatal(err)
	}
	for _, file := range []string{
		"demo_mlp.net", "ground_truth.png",
		"run_0.checkpoint", "run_0_map.png",
		"run_1.checkpoint", "run_1_map.png",
	} {
		if _, err := os.Stat(path.Join(r.WorkDir, file)); err != nil {
			t.Error("missing artifact:", file)
		}
	}
	logs, _ := filepath.Glob(path.Join(r.WorkDir, "*.log"))
	if len(logs) != 1 {
		t.Fatal("expected one log file: got", logs)
	}
	text, err := os.ReadFile(logs[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(text), "results over 2 runs") {
		t.Error("log missing aggregate results")
	}
	conf, err := nnet.LoadConfigFile(path.Join(r.WorkDir, "demo_mlp.net"))
	if err != nil {
		t.Fatal(err)
	}
	if conf.DataSet != "demo" {
		t.Error("saved config mismatch:", conf.DataSet)
	}
}
