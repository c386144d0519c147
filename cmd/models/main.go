package main

import (
	"fmt"

	"github.com/leeguandong/mmhyperspectralcls/nnet"
)

// default model definitions written as .net config files under the data dir
func main() {
	base := nnet.Config{
		Eta:        0.01,
		Momentum:   0.9,
		Lambda:     0.0001,
		Shuffle:    true,
		Normalise:  true,
		Runs:       10,
		RandSeed:   2021,
		ValRatio:   0.1,
		TrainBatch: 32,
		TestBatch:  256,
		MaxEpoch:   200,
		LogEvery:   10,
		StopAfter:  3,
	}

	indian := base
	indian.DataSet = "indian_pines"
	indian.SamplesPerClass = 50
	indian.PatchSize = 1

	mlp := indian
	mlp.FlattenInput = true
	save("indian_mlp", mlp.AddLayers(
		nnet.Linear{Nout: 256},
		nnet.Activation{Atype: "relu"},
		nnet.Dropout{Ratio: 0.4},
		nnet.Linear{Nout: 128},
		nnet.Activation{Atype: "relu"},
		nnet.Linear{Nout: 16},
		nnet.LogRegression{},
	))

	cnn := indian
	cnn.PatchSize = 5
	cnn.Components = 30
	save("indian_cnn", cnn.AddLayers(
		nnet.Conv{Nfeats: 64, Size: 7},
		nnet.Activation{Atype: "relu"},
		nnet.MaxPool{Size: 2},
		nnet.Conv{Nfeats: 128, Size: 5},
		nnet.Activation{Atype: "relu"},
		nnet.MaxPool{Size: 2},
		nnet.Flatten{},
		nnet.Linear{Nout: 128},
		nnet.Activation{Atype: "relu"},
		nnet.Dropout{Ratio: 0.4},
		nnet.Linear{Nout: 16},
		nnet.LogRegression{},
	))

	pavia := base
	pavia.DataSet = "pavia_university"
	pavia.TrainRatio = 0.05
	pavia.PatchSize = 5
	pavia.Components = 15
	save("pavia_cnn", pavia.AddLayers(
		nnet.Conv{Nfeats: 32, Size: 5},
		nnet.Activation{Atype: "relu"},
		nnet.MaxPool{Size: 2},
		nnet.Flatten{},
		nnet.Linear{Nout: 128},
		nnet.Activation{Atype: "relu"},
		nnet.Linear{Nout: 9},
		nnet.LogRegression{},
	))

	demo := base
	demo.DataSet = "demo"
	demo.SamplesPerClass = 20
	demo.PatchSize = 1
	demo.FlattenInput = true
	demo.Runs = 3
	demo.MaxEpoch = 50
	demo.LogEvery = 5
	save("demo_mlp", demo.AddLayers(
		nnet.Linear{Nout: 32},
		nnet.Activation{Atype: "relu"},
		nnet.Linear{Nout: 5},
		nnet.LogRegression{},
	))
}

func save(name string, conf nnet.Config) {
	fmt.Println("==", name, "==")
	fmt.Println(conf)
	err := conf.SaveDefault(name)
	nnet.CheckErr(err)
}
