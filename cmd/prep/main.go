package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/leeguandong/mmhyperspectralcls/hsi"
	"github.com/leeguandong/mmhyperspectralcls/nnet"
)

const (
	demoSize    = 64
	demoBands   = 32
	demoClasses = 5
	demoNoise   = 0.1
)

func main() {
	demo := flag.Bool("demo", false, "generate a small synthetic scene for tests")
	seed := flag.Int64("seed", 2021, "random seed for the demo scene")
	flag.Parse()

	var s *hsi.Scene
	var err error
	if *demo {
		s = hsi.Demo(demoSize, demoSize, demoBands, demoClasses, demoNoise, nnet.NewRng(*seed))
	} else {
		if flag.NArg() != 3 {
			fmt.Println("usage: prep [opts] <name> <image file> <ground truth file>")
			fmt.Println("       prep -demo")
			os.Exit(1)
		}
		s, err = hsi.Import(flag.Arg(0), flag.Arg(1), flag.Arg(2))
		nnet.CheckErr(err)
	}
	fmt.Println(s)
	counts := s.ClassCounts()
	for i, name := range s.Class {
		fmt.Printf("%2d: %-30s %6d pixels\n", i+1, name, counts[i+1])
	}
	mean, std := s.GetStats()
	fmt.Printf("band 1 of %d: mean=%.3f stddev=%.3f\n", s.Bands, mean[0], std[0])
	err = hsi.SaveScene(s, s.Name)
	nnet.CheckErr(err)
	fmt.Printf("saved scene to %s/%s.scene\n", nnet.DataDir, s.Name)
}
