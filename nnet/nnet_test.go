package nnet

import (
	"path"
	"reflect"
	"testing"

	"github.com/leeguandong/mmhyperspectralcls/num"
)

var dev = num.NewCPUDevice()

func testConfig() Config {
	return Config{
		DataSet:         "blobs",
		Eta:             1,
		Momentum:        0.5,
		Bias:            0.1,
		PatchSize:       1,
		SamplesPerClass: 4,
		TrainBatch:      4,
		TestBatch:       4,
		MaxEpoch:        100,
		FlattenInput:    true,
	}.AddLayers(Linear{Nout: 2}, LogRegression{})
}

// two well separated clusters, one per class
func blobData() Data {
	inputs := []float32{
		0, 0, 0.2, 0, 0, 0.2, 0.2, 0.2,
		1, 1, 0.8, 1, 1, 0.8, 0.8, 0.8,
	}
	labels := []int32{0, 0, 0, 0, 1, 1, 1, 1}
	return NewData(2, []int{2}, labels, inputs)
}

// blob clusters repeated n times over
func repeatBlobData(n int) Data {
	base := blobData().(data)
	var inputs []float32
	var labels []int32
	for i := 0; i < n; i++ {
		inputs = append(inputs, base.Inputs...)
		labels = append(labels, base.Labels...)
	}
	return NewData(2, []int{2}, labels, inputs)
}

func TestConfig(t *testing.T) {
	conf := testConfig()
	if err := conf.Validate(); err != nil {
		t.Fatal(err)
	}
	conf, err := conf.SetString("Eta", "0.5")
	if err != nil {
		t.Fatal(err)
	}
	if v := conf.Get("Eta"); v != 0.5 {
		t.Error("got", v, "expect", 0.5)
	}
	conf, err = conf.SetString("Shuffle", "true")
	if err != nil {
		t.Fatal(err)
	}
	if v := conf.Get("Shuffle"); v != true {
		t.Error("got", v, "expect", true)
	}
	if _, err = conf.SetString("NoSuchKey", "1"); err == nil {
		t.Error("expect error for invalid key")
	}
	bad := conf
	bad.PatchSize = 2
	if err := bad.Validate(); err == nil {
		t.Error("expect error for even patch size")
	}
}

func TestConfigFile(t *testing.T) {
	conf := testConfig()
	file := path.Join(t.TempDir(), "blobs.net")
	if err := conf.SaveFile(file); err != nil {
		t.Fatal(err)
	}
	c2, err := LoadConfigFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if c2.Eta != conf.Eta || len(c2.Layers) != len(conf.Layers) {
		t.Error("config mismatch after reload")
	}
	t.Logf("%s", c2)
}

func TestLinearLayer(t *testing.T) {
	q := dev.NewQueue(1)
	cfg := Linear{Nout: 2}.Marshal()
	layer := cfg.Unmarshal().Init(q, []int{2, 2}, nil)
	l := layer.(ParamLayer)
	W, B := l.Params()
	q.Call(
		num.Write(W, []float32{1, 2, 3, 4}),
		num.Write(B, []float32{0.5, -0.5}),
	)
	src := dev.NewArray(num.Float32, 2, 2)
	q.Call(num.Write(src, []float32{1, 2, 3, 4}))
	dst := layer.Fprop(src)
	res := make([]float32, 4)
	q.Call(num.Read(dst, res)).Finish()
	expect := []float32{7.5, 9.5, 15.5, 21.5}
	if !reflect.DeepEqual(res, expect) {
		t.Error("fprop: got", res, "expect", expect)
	}
	grad := dev.NewArray(num.Float32, 2, 2)
	q.Call(num.Write(grad, []float32{1, 0, 0, 1}))
	dsrc := layer.Bprop(grad)
	dW, dB := l.ParamGrads()
	dwv := make([]float32, 4)
	dbv := make([]float32, 2)
	dsv := make([]float32, 4)
	q.Call(
		num.Read(dW, dwv),
		num.Read(dB, dbv),
		num.Read(dsrc, dsv),
	).Finish()
	if !reflect.DeepEqual(dbv, []float32{1, 1}) {
		t.Error("db: got", dbv)
	}
	if !reflect.DeepEqual(dwv, []float32{1, 3, 2, 4}) {
		t.Error("dw: got", dwv)
	}
	if !reflect.DeepEqual(dsv, []float32{1, 3, 2, 4}) {
		t.Error("dsrc: got", dsv)
	}
}

func TestDropoutLayer(t *testing.T) {
	q := dev.NewQueue(1)
	cfg := Dropout{Ratio: 0.5}.Marshal()
	layer := cfg.Unmarshal()
	d := layer.(*dropout)
	d.rng = NewRng(42)
	layer.Init(q, []int{2, 4}, nil)
	src := dev.NewArray(num.Float32, 2, 4)
	q.Call(num.Write(src, []float32{1, 2, 3, 4, 5, 6, 7, 8}))
	// pass through when not training
	if out := layer.Fprop(src); out != src {
		t.Error("expect pass through when not training")
	}
	d.train = true
	dst := layer.Fprop(src)
	res := make([]float32, 8)
	q.Call(num.Read(dst, res)).Finish()
	in := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	for i, v := range res {
		if v != 0 && v != 2*in[i] {
			t.Error("got", res)
			break
		}
	}
	// gradient is masked in the same pattern
	grad := dev.NewArray(num.Float32, 2, 4)
	q.Call(num.Fill(grad, 1))
	dsrc := layer.Bprop(grad)
	gres := make([]float32, 8)
	q.Call(num.Read(dsrc, gres)).Finish()
	for i := range gres {
		if (gres[i] == 0) != (res[i] == 0) {
			t.Error("mask mismatch: fprop", res, "bprop", gres)
			break
		}
	}
}

func TestDataset(t *testing.T) {
	rng := NewRng(42)
	dset := NewDataset(dev, blobData(), 4, 0, true, rng)
	if dset.Batches != 2 || dset.Samples != 8 || dset.BatchSize != 4 {
		t.Fatal("unexpected sizing:", dset.Batches, dset.Samples, dset.BatchSize)
	}
	dset.NextEpoch()
	_, y, y1h := dset.NextBatch()
	labels := make([]int32, 4)
	onehot := make([]float32, 8)
	q := dev.NewQueue(1)
	q.Call(
		num.Read(y, labels),
		num.Read(y1h, onehot),
	).Finish()
	if !reflect.DeepEqual(labels, []int32{0, 0, 0, 0}) {
		t.Error("labels: got", labels)
	}
	if !reflect.DeepEqual(onehot, []float32{1, 0, 1, 0, 1, 0, 1, 0}) {
		t.Error("one hot: got", onehot)
	}
	_, y, _ = dset.NextBatch()
	q.Call(num.Read(y, labels)).Finish()
	dset.Release()
	if !reflect.DeepEqual(labels, []int32{1, 1, 1, 1}) {
		t.Error("labels: got", labels)
	}
}

func TestDatasetShuffle(t *testing.T) {
	read := func(seed int64) []int32 {
		dset := NewDataset(dev, blobData(), 8, 0, true, NewRng(seed))
		dset.Shuffle()
		dset.NextEpoch()
		_, y, _ := dset.NextBatch()
		labels := make([]int32, 8)
		q := dev.NewQueue(1)
		q.Call(num.Read(y, labels)).Finish()
		dset.Release()
		return labels
	}
	a, b := read(42), read(42)
	if !reflect.DeepEqual(a, b) {
		t.Error("shuffle not deterministic: got", a, "and", b)
	}
}

func TestNetwork(t *testing.T) {
	conf := testConfig()
	q := dev.NewQueue(1)
	rng := NewRng(conf.RandSeed + 1)
	net := New(q, conf, 4, []int{2}, rng)
	t.Logf("%s", net)
	net.InitWeights(rng)
	w := net.Weights()
	if len(w) != 2 || len(w[0]) != 4 || len(w[1]) != 2 {
		t.Fatal("unexpected weight shapes")
	}
	w[0][0] = 42
	if err := net.SetWeights(w); err != nil {
		t.Fatal(err)
	}
	w2 := net.Weights()
	if w2[0][0] != 42 {
		t.Error("got", w2[0][0], "expect", 42)
	}
	net2 := New(q, conf, 4, []int{2}, rng)
	net.CopyTo(net2)
	w3 := net2.Weights()
	if !reflect.DeepEqual(w2, w3) {
		t.Error("weights differ after copy")
	}
}

func TestTesterBatchCap(t *testing.T) {
	// test batch larger than the train set: all the tester datasets should be
	// capped to the train set size so they match the tester network batch
	conf := testConfig()
	conf.TestBatch = 16
	conf.MaxEpoch = 20
	q := dev.NewQueue(1)
	rng := NewRng(1)
	data := map[string]Data{"train": blobData(), "test": repeatBlobData(3)}
	tester := NewTestBase().Init(q, conf, data, rng)
	if tester.Samples != 8 {
		t.Error("samples: got", tester.Samples, "expect", 8)
	}
	train, test := tester.Data["train"], tester.Data["test"]
	if train.BatchSize != 8 || test.BatchSize != train.BatchSize {
		t.Fatal("tester batch size mismatch: train", train.BatchSize, "test", test.BatchSize)
	}
	dset := NewDataset(dev, data["train"], conf.TrainBatch, 0, conf.FlattenInput, rng)
	net := New(q, conf, dset.BatchSize, dset.Shape(), rng)
	net.InitWeights(rng)
	Train(net, dset, tester)
	dset.Release()
	tester.Release()
	if len(tester.Stats) == 0 {
		t.Fatal("no stats recorded")
	}
	q.Shutdown()
}

func TestTrain(t *testing.T) {
	conf := testConfig()
	q := dev.NewQueue(1)
	rng := NewRng(1)
	data := map[string]Data{"train": blobData(), "test": blobData()}
	dset := NewDataset(dev, data["train"], conf.TrainBatch, 0, conf.FlattenInput, rng)
	net := New(q, conf, dset.BatchSize, dset.Shape(), rng)
	net.InitWeights(rng)
	tester := NewTestBase().Init(q, conf, data, rng)
	Train(net, dset, tester)
	dset.Release()
	tester.Release()
	if len(tester.Stats) == 0 {
		t.Fatal("no stats recorded")
	}
	first := tester.Stats[0]
	last := tester.Stats[len(tester.Stats)-1]
	t.Logf("epoch %d: loss=%.4f err=%.2f => epoch %d: loss=%.4f err=%.2f",
		first.Epoch, first.Values[0], first.Values[2], last.Epoch, last.Values[0], last.Values[2])
	if last.Values[0] >= first.Values[0] {
		t.Error("loss did not decrease: got", last.Values[0], "from", first.Values[0])
	}
	if last.Values[2] > 0.25 {
		t.Error("test error too high: got", last.Values[2])
	}
	q.Shutdown()
}
