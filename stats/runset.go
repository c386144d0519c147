package stats

import (
	"fmt"
	"math"
	"strings"
)

// RunSet accumulates evaluation metrics over a series of training runs
// so the mean and spread of each statistic can be reported.
type RunSet struct {
	Classes  int
	OA       Average
	AA       Average
	Kappa    Average
	PerClass []Average
}

func NewRunSet(classes int) *RunSet {
	return &RunSet{Classes: classes, PerClass: make([]Average, classes)}
}

// Add the metrics from one completed run.
func (r *RunSet) Add(c *Confusion) {
	if c.Classes != r.Classes {
		panic("RunSet: confusion matrix has wrong number of classes")
	}
	r.OA.Add(c.Overall())
	r.AA.Add(c.Average())
	r.Kappa.Add(c.Kappa())
	for i, acc := range c.PerClass() {
		if !math.IsNaN(acc) {
			r.PerClass[i].Add(acc)
		}
	}
}

// Runs is the number of results added so far.
func (r *RunSet) Runs() int {
	return int(r.OA.Count)
}

func (r *RunSet) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "overall accuracy: %s\n", r.OA.String())
	fmt.Fprintf(&sb, "average accuracy: %s\n", r.AA.String())
	fmt.Fprintf(&sb, "kappa:            %s\n", r.Kappa.String())
	for i := range r.PerClass {
		fmt.Fprintf(&sb, "class %2d:         %s\n", i+1, r.PerClass[i].String())
	}
	return sb.String()
}
