package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/leeguandong/mmhyperspectralcls/exp"
	"github.com/leeguandong/mmhyperspectralcls/nnet"
)

// repeated -opt Key=Value flags
type options []string

func (o *options) String() string { return strings.Join(*o, " ") }

func (o *options) Set(val string) error {
	if !strings.Contains(val, "=") {
		return fmt.Errorf("expecting Key=Value: got %q", val)
	}
	*o = append(*o, val)
	return nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: train [opts] <model>")
		os.Exit(1)
	}
	model := os.Args[len(os.Args)-1]
	fmt.Println("load model:", model)
	conf, err := nnet.LoadConfig(model + ".net")
	nnet.CheckErr(err)

	// override config settings from command line
	var opts options
	var workDir, resume string
	var noValidate, deterministic bool
	flag.StringVar(&workDir, "workdir", "", "working directory for logs, maps and checkpoints")
	flag.StringVar(&resume, "resume", "", "checkpoint file to restore weights from")
	flag.BoolVar(&noValidate, "novalidate", false, "train without a validation set")
	flag.BoolVar(&deterministic, "deterministic", false, "single threaded loading so runs are bit reproducible")
	flag.Int64Var(&conf.RandSeed, "seed", conf.RandSeed, "base random seed, run i uses seed+i")
	flag.IntVar(&conf.Runs, "runs", conf.Runs, "number of training runs")
	flag.IntVar(&conf.Threads, "workers", conf.Threads, "worker threads, default GOMAXPROCS")
	flag.IntVar(&conf.MaxEpoch, "epochs", conf.MaxEpoch, "max epochs per run")
	flag.IntVar(&conf.DebugLevel, "debug", conf.DebugLevel, "debug logging level")
	flag.BoolVar(&conf.Profile, "profile", conf.Profile, "print profiling info")
	flag.Var(&opts, "opt", "set config field as Key=Value, may be repeated")
	flag.Parse()

	for _, opt := range opts {
		key, val, _ := strings.Cut(opt, "=")
		conf, err = conf.SetString(key, val)
		nnet.CheckErr(err)
	}
	nnet.CheckErr(conf.Validate())

	runner, err := exp.NewRunner(conf, model, workDir)
	nnet.CheckErr(err)
	defer runner.Close()
	runner.Resume = resume
	runner.NoValidate = noValidate
	runner.Deterministic = deterministic
	nnet.CheckErr(runner.Run())
}
